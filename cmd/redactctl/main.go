package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/fadehq/redact-client/internal/api"
	"github.com/fadehq/redact-client/internal/batch"
	"github.com/fadehq/redact-client/internal/cache"
	"github.com/fadehq/redact-client/internal/config"
	"github.com/fadehq/redact-client/internal/domain"
	"github.com/fadehq/redact-client/internal/history"
	"github.com/fadehq/redact-client/internal/pdfinfo"
	"github.com/fadehq/redact-client/internal/poll"
	"github.com/fadehq/redact-client/internal/reconcile"
	"github.com/fadehq/redact-client/internal/redaction"
	"github.com/fadehq/redact-client/internal/registry"
	"github.com/fadehq/redact-client/internal/sink"
	"github.com/fadehq/redact-client/internal/submit"
)

func main() {
	logger := log.New(os.Stdout, "[redactctl] ", log.LstdFlags|log.LUTC|log.Lmicroseconds)
	config.LoadDotEnv(".env", ".env.local")
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	app, closer := newApp(ctx, cfg, logger)
	defer closer()

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "upload":
		err = app.upload(ctx, args)
	case "list":
		err = app.list(ctx)
	case "submit":
		err = app.submit(ctx, args, false)
	case "reprocess":
		err = app.submit(ctx, args, true)
	case "watch":
		err = app.watch(ctx)
	case "download":
		err = app.download(ctx, args)
	case "export":
		err = app.export(ctx)
	case "delete":
		err = app.delete(ctx, args)
	case "history":
		err = app.history(ctx, args)
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		if errors.Is(err, api.ErrAuthExpired) {
			logger.Printf("session expired or invalid, re-authenticate and set REDACT_API_TOKEN")
			os.Exit(1)
		}
		logger.Printf("%s failed: %v", command, err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: redactctl <command> [args]

commands:
  upload <file.pdf...>                     upload PDFs
  list                                     show the document list
  submit [flags] <code...>                 submit redaction jobs and wait
  reprocess [flags] <code...>              resubmit with a changed config
  watch                                    follow all outstanding jobs
  download <job-id...>                     store redacted PDFs
  export                                   store a zip of all processed documents
  delete <code...>                         delete documents (cascades to jobs)
  history <code>                           show the local audit trail

submit flags:
  -all                        redact every field with the default black cover
  -fields k=v[,k=v...]        e.g. name=black,email=mosaic:20,sens_number=blur:31
  -gpu                        use GPU compute mode
  -llm                        use the LLM detector model`)
}

type app struct {
	cfg        config.Config
	logger     *log.Logger
	client     *api.Client
	registry   *registry.Registry
	poller     *poll.Poller
	submitter  *submit.Submitter
	reconciler *reconcile.Reconciler
	store      cache.Store
	audit      history.Repository
	sink       sink.Sink
}

func newApp(ctx context.Context, cfg config.Config, logger *log.Logger) (*app, func()) {
	client := api.NewClient(api.ClientConfig{
		BaseURL:    cfg.APIBaseURL,
		Token:      cfg.APIToken,
		Timeout:    time.Duration(cfg.APITimeoutMS) * time.Millisecond,
		MaxRetries: cfg.APIMaxRetries,
	})

	store, storeCloser := setupCache(ctx, cfg, logger)
	audit, auditCloser := setupAudit(ctx, cfg, logger)
	artifactSink := setupSink(ctx, cfg, logger)

	poller := poll.New(client, poll.Config{
		Interval: time.Duration(cfg.PollIntervalMS) * time.Millisecond,
		Logger:   logger,
	})
	reconciler := reconcile.New(client, reconcile.Config{
		Store:  store,
		Logger: logger,
	})
	poller.OnTransition(func(job domain.Job, previous, next domain.JobStatus) {
		reconciler.Observe(ctx, job, previous, next)
	})
	poller.OnTransition(func(job domain.Job, previous, next domain.JobStatus) {
		record := history.Record{
			ID:           uuid.NewString(),
			JobID:        job.ID,
			DocumentCode: job.DocumentCode,
			Event:        history.EventStatusChanged,
			Detail:       fmt.Sprintf("%s -> %s", previous, next),
			CreatedAt:    time.Now().UTC(),
		}
		if err := audit.Append(ctx, record); err != nil {
			logger.Printf("audit append failed job_id=%d err=%v", job.ID, err)
		}
	})

	reg := registry.New(client)
	reg.OnRemove(poller.UnwatchDocument)

	submitter := submit.New(client, poller, submit.Config{
		MaxInFlight: cfg.SubmitMaxInFlight,
		RPS:         cfg.SubmitRPS,
		Burst:       cfg.SubmitBurst,
		Logger:      logger,
		Audit:       audit,
	})

	a := &app{
		cfg:        cfg,
		logger:     logger,
		client:     client,
		registry:   reg,
		poller:     poller,
		submitter:  submitter,
		reconciler: reconciler,
		store:      store,
		audit:      audit,
		sink:       artifactSink,
	}
	return a, func() {
		poller.Stop()
		storeCloser()
		auditCloser()
	}
}

func setupCache(ctx context.Context, cfg config.Config, logger *log.Logger) (cache.Store, func()) {
	ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
	if cfg.RedisAddr == "" {
		return cache.NewMemoryStore(cache.Config{TTL: ttl, MaxEntries: cfg.CacheMaxEntries}), func() {}
	}
	redisStore, err := cache.NewRedisStore(ctx, cache.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		TTL:      ttl,
		Logger:   logger,
	})
	if err != nil {
		logger.Printf("failed to initialize redis cache, fallback to memory: %v", err)
		return cache.NewMemoryStore(cache.Config{TTL: ttl, MaxEntries: cfg.CacheMaxEntries}), func() {}
	}
	logger.Printf("redis preview cache initialized")
	return redisStore, func() {
		_ = redisStore.Close()
	}
}

func setupAudit(ctx context.Context, cfg config.Config, logger *log.Logger) (history.Repository, func()) {
	if cfg.DatabaseURL == "" {
		return history.NewMemoryRepository(), func() {}
	}
	pgRepo, err := history.NewPostgresRepository(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Printf("failed to initialize postgres audit log, fallback to memory: %v", err)
		return history.NewMemoryRepository(), func() {}
	}
	logger.Printf("postgres audit log initialized")
	return pgRepo, func() {
		pgRepo.Close()
	}
}

func setupSink(ctx context.Context, cfg config.Config, logger *log.Logger) sink.Sink {
	if cfg.MinioEndpoint != "" {
		minioSink, err := sink.NewMinioSink(ctx, sink.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err == nil {
			logger.Printf("minio artifact sink initialized bucket=%s", cfg.MinioBucket)
			return minioSink
		}
		logger.Printf("failed to initialize minio sink, fallback to local dir: %v", err)
	}
	localSink, err := sink.NewLocalSink(cfg.DownloadDir)
	if err != nil {
		logger.Printf("failed to create download dir, using working directory: %v", err)
		localSink, _ = sink.NewLocalSink(".")
	}
	return localSink
}

func (a *app) upload(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return errors.New("no files given")
	}
	for _, path := range paths {
		info, err := pdfinfo.Inspect(path)
		if err != nil {
			a.logger.Printf("skipping %s: %v", path, err)
			continue
		}
		file, err := os.Open(path)
		if err != nil {
			a.logger.Printf("skipping %s: %v", path, err)
			continue
		}
		doc, err := a.client.UploadDocument(ctx, info.Filename, file)
		file.Close()
		if err != nil {
			var conflict *api.ConflictError
			if errors.As(err, &conflict) {
				a.logger.Printf("%s already uploaded (%s), reusing code=%s",
					info.Filename, conflict.Reason, conflict.ExistingDocument.Code)
				a.registry.Add(conflict.ExistingDocument)
				continue
			}
			return fmt.Errorf("upload %s: %w", info.Filename, err)
		}
		a.registry.Add(doc)
		a.logger.Printf("uploaded %s code=%s pages=%d size=%.2fMB",
			doc.Filename, doc.Code, info.PageCount, float64(info.SizeBytes)/(1024*1024))
	}
	return a.registry.Reload(ctx)
}

func (a *app) list(ctx context.Context) error {
	if err := a.registry.Reload(ctx); err != nil {
		return err
	}
	documents := a.registry.List()
	if len(documents) == 0 {
		a.logger.Printf("no documents uploaded")
		return nil
	}
	for _, doc := range documents {
		a.logger.Printf("%s  %s  %d pages  %.2fMB  %s",
			doc.Code, doc.Filename, doc.PageCount, float64(doc.SizeBytes)/(1024*1024), doc.UploadStatus)
	}
	return nil
}

func (a *app) submit(ctx context.Context, args []string, reprocess bool) error {
	selection, options, codes, err := parseSubmitArgs(args)
	if err != nil {
		return err
	}

	cfg, err := redaction.Build(selection, options)
	if err != nil {
		return err
	}
	if err := a.registry.Reload(ctx); err != nil {
		return err
	}
	for _, code := range codes {
		if _, err := a.registry.FindByCode(code); err != nil {
			return fmt.Errorf("document %s: %w", code, err)
		}
	}

	var submission domain.BatchSubmission
	if reprocess {
		submission, err = a.submitter.ResubmitBatch(ctx, codes, cfg)
	} else {
		submission, err = a.submitter.SubmitBatch(ctx, codes, cfg)
	}
	if err != nil {
		return err
	}

	outcome := batch.Summarize(submission)
	a.logger.Printf("%s", outcome.Message())

	navigation := outcome.Next()
	if navigation.Kind == batch.NavigatePreview {
		if job, ok := a.poller.Job(navigation.JobID); ok {
			a.reconciler.Select(ctx, job)
		}
	}
	return a.followPolling(ctx, navigation)
}

func (a *app) watch(ctx context.Context) error {
	jobs, err := a.client.ListJobs(ctx)
	if err != nil {
		return err
	}
	a.poller.Rebuild(jobs)
	if !a.poller.Active() {
		a.printJobs()
		return nil
	}
	return a.followPolling(ctx, batch.Navigation{Kind: batch.NavigateStay})
}

func (a *app) followPolling(ctx context.Context, navigation batch.Navigation) error {
	for a.poller.Active() {
		select {
		case <-ctx.Done():
			a.poller.Stop()
			return ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
	a.printJobs()

	if navigation.Kind == batch.NavigatePreview {
		view := a.reconciler.View()
		switch view.State {
		case reconcile.StateLoaded:
			a.logger.Printf("preview ready original=%s processed=%s", view.Preview.OriginalURL, view.Preview.ProcessedURL)
			for _, field := range view.Detail.SensitiveFields {
				a.logger.Printf("  page %d: %s %q -> %s", field.Page, field.Type, field.Value, field.Method)
			}
		case reconcile.StateError:
			a.logger.Printf("preview unavailable: %v", view.Err)
		}
	}
	return nil
}

func (a *app) printJobs() {
	for _, job := range a.poller.Jobs() {
		a.logger.Printf("job %d document=%s status=%s", job.ID, job.DocumentCode, job.Status)
	}
}

func (a *app) download(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("no job ids given")
	}
	for _, arg := range args {
		jobID, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid job id %q", arg)
		}
		body, err := a.client.DownloadArtifact(ctx, jobID)
		if err != nil {
			// Per-item isolation: report and keep going.
			a.logger.Printf("download failed job_id=%d err=%v", jobID, err)
			continue
		}
		location, err := a.sink.Store(ctx, fmt.Sprintf("processed_document_%d.pdf", jobID), body)
		body.Close()
		if err != nil {
			a.logger.Printf("store failed job_id=%d err=%v", jobID, err)
			continue
		}
		a.logger.Printf("stored job_id=%d at %s", jobID, location)
	}
	return nil
}

func (a *app) export(ctx context.Context) error {
	body, err := a.client.ExportAll(ctx)
	if err != nil {
		return err
	}
	defer body.Close()

	name := fmt.Sprintf("all_processed_documents_%s.zip", time.Now().UTC().Format("2006-01-02"))
	location, err := a.sink.Store(ctx, name, body)
	if err != nil {
		return err
	}
	a.logger.Printf("export stored at %s", location)
	return nil
}

func (a *app) delete(ctx context.Context, codes []string) error {
	if len(codes) == 0 {
		return errors.New("no document codes given")
	}
	for _, code := range codes {
		jobs := a.poller.Jobs()
		if err := a.client.DeleteDocument(ctx, code); err != nil {
			a.logger.Printf("delete failed document=%s err=%v", code, err)
			continue
		}
		if err := a.registry.Remove(code); err != nil && !errors.Is(err, registry.ErrNotFound) {
			return err
		}
		a.poller.UnwatchDocument(code)
		for _, job := range jobs {
			if job.DocumentCode == code {
				a.store.Delete(ctx, job.ID)
			}
		}
		a.logger.Printf("deleted document=%s", code)
	}
	return a.registry.Reload(ctx)
}

func (a *app) history(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("expected one document code")
	}
	records, err := a.audit.ListByDocument(ctx, args[0])
	if err != nil {
		return err
	}
	if len(records) == 0 {
		a.logger.Printf("no audit records for document=%s", args[0])
		return nil
	}
	for _, record := range records {
		a.logger.Printf("%s  job=%d  %s  %s", record.CreatedAt.Format(time.RFC3339), record.JobID, record.Event, record.Detail)
	}
	return nil
}

func parseSubmitArgs(args []string) (redaction.Selection, redaction.GlobalOptions, []string, error) {
	selection := redaction.Selection{}
	options := redaction.GlobalOptions{}
	codes := make([]string, 0, len(args))
	selectAll := false

	for i := 0; i < len(args); i++ {
		switch arg := args[i]; arg {
		case "-all":
			selectAll = true
		case "-gpu":
			options.ComputeMode = domain.ComputeModeGPU
		case "-llm":
			options.ModelType = domain.ModelTypeLLM
		case "-fields":
			i++
			if i >= len(args) {
				return nil, options, nil, errors.New("-fields needs a value")
			}
			parsed, err := parseSelection(args[i])
			if err != nil {
				return nil, options, nil, err
			}
			for key, choice := range parsed {
				selection[key] = choice
			}
		default:
			codes = append(codes, arg)
		}
	}

	if selectAll {
		// Select-all deterministically overrides any partial selection.
		selection = redaction.SelectAll()
	}
	return selection, options, codes, nil
}

func parseSelection(spec string) (redaction.Selection, error) {
	selection := redaction.Selection{}
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("invalid field spec %q, expected key=method[:param]", part)
		}
		method, param, _ := strings.Cut(value, ":")

		choice := redaction.FieldChoice{Checked: true, Method: domain.Method(method)}
		switch domain.Method(method) {
		case domain.MethodBlack:
			choice.Color = param
		case domain.MethodMosaic:
			if param != "" {
				size, err := strconv.Atoi(param)
				if err != nil {
					return nil, fmt.Errorf("invalid mosaic size %q for %s", param, key)
				}
				choice.MosaicSize = size
			}
		case domain.MethodBlur:
			if param != "" {
				kernel, err := strconv.Atoi(param)
				if err != nil {
					return nil, fmt.Errorf("invalid blur kernel %q for %s", param, key)
				}
				choice.BlurKernel = kernel
			}
		}
		selection[domain.FieldKey(key)] = choice
	}
	return selection, nil
}
