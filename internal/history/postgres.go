package history

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(ctx context.Context, databaseURL string) (*PostgresRepository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pg pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping pg: %w", err)
	}
	repo := &PostgresRepository{pool: pool}
	if err := repo.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return repo, nil
}

func (r *PostgresRepository) Close() {
	r.pool.Close()
}

func (r *PostgresRepository) ensureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS redaction_audit (
			id TEXT PRIMARY KEY,
			job_id BIGINT NOT NULL,
			document_code TEXT NOT NULL,
			config_hash TEXT NOT NULL,
			event TEXT NOT NULL,
			detail TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure audit schema: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Append(ctx context.Context, record Record) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO redaction_audit (
			id,
			job_id,
			document_code,
			config_hash,
			event,
			detail,
			created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7)
	`,
		record.ID,
		record.JobID,
		record.DocumentCode,
		record.ConfigHash,
		string(record.Event),
		record.Detail,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListByDocument(ctx context.Context, documentCode string) ([]Record, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, job_id, document_code, config_hash, event, detail, created_at
		FROM redaction_audit
		WHERE document_code = $1
		ORDER BY created_at ASC
	`, documentCode)
	if err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		var (
			record Record
			event  string
		)
		if err := rows.Scan(
			&record.ID,
			&record.JobID,
			&record.DocumentCode,
			&record.ConfigHash,
			&event,
			&record.Detail,
			&record.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		record.Event = Event(event)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit records: %w", err)
	}
	return records, nil
}
