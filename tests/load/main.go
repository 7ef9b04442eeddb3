// Command load runs a local benchmark of the client stack against an
// in-process stand-in for the processing service. It reports per-scenario
// latency percentiles and evaluates the interactive-path targets.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fadehq/redact-client/internal/api"
	"github.com/fadehq/redact-client/internal/cache"
	"github.com/fadehq/redact-client/internal/redaction"
)

type scenarioResult struct {
	Name          string   `json:"name"`
	Total         int      `json:"total"`
	Success       int      `json:"success"`
	Errors        int      `json:"errors"`
	P50MS         float64  `json:"p50_ms"`
	P95MS         float64  `json:"p95_ms"`
	P99MS         float64  `json:"p99_ms"`
	MaxMS         float64  `json:"max_ms"`
	ThroughputRPS float64  `json:"throughput_rps"`
	ErrorSamples  []string `json:"error_samples,omitempty"`
}

type cacheResult struct {
	ColdLoads  int     `json:"cold_loads"`
	WarmLoads  int     `json:"warm_loads"`
	HitRatePct float64 `json:"hit_rate_pct"`
}

type runResult struct {
	GeneratedAtUTC string           `json:"generated_at_utc"`
	Environment    string           `json:"environment"`
	Results        []scenarioResult `json:"results"`
	PreviewCache   cacheResult      `json:"preview_cache"`
	SLOEvaluation  map[string]bool  `json:"slo_evaluation"`
}

func main() {
	uploadTotal := flag.Int("upload-total", 200, "total upload requests")
	uploadConcurrency := flag.Int("upload-concurrency", 16, "concurrency for upload requests")
	submitTotal := flag.Int("submit-total", 300, "total submission requests")
	submitConcurrency := flag.Int("submit-concurrency", 24, "concurrency for submission requests")
	statusTotal := flag.Int("status-total", 400, "total status poll requests")
	statusConcurrency := flag.Int("status-concurrency", 32, "concurrency for status poll requests")
	previewTotal := flag.Int("preview-total", 200, "total preview fetches")
	previewConcurrency := flag.Int("preview-concurrency", 20, "concurrency for preview fetches")
	outputPath := flag.String("output", "", "optional path to persist benchmark results JSON")
	flag.Parse()

	server := startBenchmarkBackend()
	defer server.Close()

	client := api.NewClient(api.ClientConfig{
		BaseURL: server.URL,
		Token:   "benchmark-token",
		Timeout: 10 * time.Second,
	})
	config, err := redaction.Build(redaction.SelectAll(), redaction.GlobalOptions{})
	if err != nil {
		log.Fatalf("failed to build benchmark config: %v", err)
	}

	uploadScenario := runScenario("document_upload", *uploadTotal, *uploadConcurrency, func(index int) error {
		filename := fmt.Sprintf("benchmark-%d.pdf", index)
		_, err := client.UploadDocument(context.Background(), filename, strings.NewReader("%PDF-1.7 benchmark"))
		return err
	})

	var jobCounter int64
	submitScenario := runScenario("job_submission", *submitTotal, *submitConcurrency, func(index int) error {
		code := fmt.Sprintf("doc%04d", (index%*uploadTotal)+1)
		job, err := client.SubmitJob(context.Background(), code, config)
		if err != nil {
			return err
		}
		atomic.StoreInt64(&jobCounter, job.ID)
		return nil
	})

	statusScenario := runScenario("status_poll", *statusTotal, *statusConcurrency, func(index int) error {
		maxJob := atomic.LoadInt64(&jobCounter)
		if maxJob == 0 {
			return fmt.Errorf("no submitted jobs to poll")
		}
		_, err := client.JobStatus(context.Background(), int64(index)%maxJob+1)
		return err
	})

	previewScenario := runScenario("preview_fetch", *previewTotal, *previewConcurrency, func(index int) error {
		maxJob := atomic.LoadInt64(&jobCounter)
		if maxJob == 0 {
			return fmt.Errorf("no submitted jobs to preview")
		}
		jobID := int64(index)%maxJob + 1
		code := fmt.Sprintf("doc%04d", (index%*uploadTotal)+1)
		_, err := client.PreviewURLs(context.Background(), code, jobID)
		return err
	})

	previewCache := runPreviewCacheScenario(client, atomic.LoadInt64(&jobCounter))

	results := []scenarioResult{
		uploadScenario,
		submitScenario,
		statusScenario,
		previewScenario,
	}

	slo := map[string]bool{
		"submit_p95_le_1000ms":      submitScenario.P95MS <= 1000,
		"status_poll_p95_le_500ms":  statusScenario.P95MS <= 500,
		"preview_fetch_p95_le_1s":   previewScenario.P95MS <= 1000,
		"upload_error_rate_le_1pct": uploadScenario.Total == 0 || float64(uploadScenario.Errors)/float64(uploadScenario.Total) <= 0.01,
	}

	report := runResult{
		GeneratedAtUTC: time.Now().UTC().Format(time.RFC3339Nano),
		Environment:    "local-httptest",
		Results:        results,
		PreviewCache:   previewCache,
		SLOEvaluation:  slo,
	}

	encoded, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		log.Fatalf("failed to marshal benchmark report: %v", err)
	}

	if *outputPath != "" {
		if err := os.WriteFile(*outputPath, encoded, 0o644); err != nil {
			log.Fatalf("failed to write output file: %v", err)
		}
	}

	_, _ = fmt.Fprintln(os.Stdout, string(encoded))
}

// startBenchmarkBackend serves the subset of the processing API the
// scenarios hit. Every submitted job reports completed immediately so the
// benchmark measures transport and decode cost, not processing time.
func startBenchmarkBackend() *httptest.Server {
	var documentCounter int64
	var jobCounter int64

	mux := http.NewServeMux()
	mux.HandleFunc("/api/documents/upload/", func(w http.ResponseWriter, r *http.Request) {
		_, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, `{"error": "missing file"}`, http.StatusBadRequest)
			return
		}
		code := fmt.Sprintf("doc%04d", atomic.AddInt64(&documentCounter, 1))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"success": true, "document": {"document_code": %q, "filename": %q, "file_size": 1024, "page_count": 1}}`, code, header.Filename)
	})
	mux.HandleFunc("/api/documents/process/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		jobID := atomic.AddInt64(&jobCounter, 1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"success": true, "processed_document": {"id": %d, "status": "pending"}}`, jobID)
	})
	mux.HandleFunc("/api/documents/processed-info/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status": "completed", "sensitive_fields": [{"page": 1, "type": "email", "value": "a@b.c", "method": "black"}], "total_fields": 1, "processed_fields": 1}`)
	})
	mux.HandleFunc("/api/documents/preview/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"original_url": "https://files/original.pdf", "processed_url": "https://files/processed.pdf"}`)
	})

	return httptest.NewServer(mux)
}

// runPreviewCacheScenario measures how much of the preview traffic the
// in-memory cache absorbs under a repeated-selection access pattern.
func runPreviewCacheScenario(client *api.Client, maxJob int64) cacheResult {
	if maxJob == 0 {
		return cacheResult{}
	}

	store := cache.NewMemoryStore(cache.Config{TTL: time.Minute})
	cold := 0
	warm := 0
	for i := 0; i < 200; i++ {
		jobID := int64(i)%10 + 1
		if jobID > maxJob {
			continue
		}
		if _, ok := store.Get(context.Background(), jobID); ok {
			warm++
			continue
		}
		cold++
		preview, err := client.PreviewURLs(context.Background(), fmt.Sprintf("doc%04d", jobID), jobID)
		if err != nil {
			continue
		}
		detail, err := client.JobDetail(context.Background(), jobID)
		if err != nil {
			continue
		}
		store.Set(context.Background(), jobID, cache.Entry{
			DocumentCode: fmt.Sprintf("doc%04d", jobID),
			Preview:      preview,
			Detail:       detail,
		})
	}

	total := cold + warm
	hitRate := 0.0
	if total > 0 {
		hitRate = round2(float64(warm) / float64(total) * 100)
	}
	return cacheResult{ColdLoads: cold, WarmLoads: warm, HitRatePct: hitRate}
}

func runScenario(
	name string,
	total int,
	concurrency int,
	requestFn func(index int) error,
) scenarioResult {
	if total <= 0 {
		return scenarioResult{Name: name}
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	startedAt := time.Now()
	type sample struct {
		durationMS float64
		err        string
	}

	jobs := make(chan int, total)
	results := make(chan sample, total)
	for i := 0; i < total; i++ {
		jobs <- i
	}
	close(jobs)

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for index := range jobs {
				requestStart := time.Now()
				err := requestFn(index)
				s := sample{
					durationMS: float64(time.Since(requestStart).Microseconds()) / 1000.0,
				}
				if err != nil {
					s.err = err.Error()
				}
				results <- s
			}
		}()
	}
	wg.Wait()
	close(results)

	durations := make([]float64, 0, total)
	errorSamples := make([]string, 0, 5)
	success := 0
	errorsCount := 0
	for item := range results {
		durations = append(durations, item.durationMS)
		if item.err == "" {
			success++
			continue
		}
		errorsCount++
		if len(errorSamples) < 5 {
			errorSamples = append(errorSamples, item.err)
		}
	}

	sort.Float64s(durations)
	elapsedSeconds := time.Since(startedAt).Seconds()
	throughput := 0.0
	if elapsedSeconds > 0 {
		throughput = float64(total) / elapsedSeconds
	}

	return scenarioResult{
		Name:          name,
		Total:         total,
		Success:       success,
		Errors:        errorsCount,
		P50MS:         percentile(durations, 0.50),
		P95MS:         percentile(durations, 0.95),
		P99MS:         percentile(durations, 0.99),
		MaxMS:         percentile(durations, 1.00),
		ThroughputRPS: round2(throughput),
		ErrorSamples:  errorSamples,
	}
}

func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	if p <= 0 {
		return round2(values[0])
	}
	if p >= 1 {
		return round2(values[len(values)-1])
	}
	rank := int(math.Ceil(float64(len(values))*p)) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(values) {
		rank = len(values) - 1
	}
	return round2(values[rank])
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
