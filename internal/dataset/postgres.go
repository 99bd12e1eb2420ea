package dataset

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createDatasetsTable = `CREATE TABLE IF NOT EXISTS salesforce_datasets (
	dataset_id  TEXT        NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	format      TEXT        NOT NULL,
	payload     BYTEA       NOT NULL
)`

// Postgres stores every dataset write as one row.
type Postgres struct {
	db  *pgxpool.Pool
	now func() time.Time
}

// NewPostgres connects to databaseURL and ensures the table exists.
func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, wrapError(CodeEndpointUnreachable, true, fmt.Errorf("connect dataset database: %w", err))
	}
	p := &Postgres{db: pool, now: time.Now}
	if _, err := pool.Exec(ctx, createDatasetsTable); err != nil {
		pool.Close()
		return nil, wrapError(CodeWriteFailed, true, fmt.Errorf("create dataset table: %w", err))
	}
	return p, nil
}

func (p *Postgres) WriteDataset(ctx context.Context, datasetID string, data []byte) error {
	if err := ValidateID(datasetID); err != nil {
		return err
	}
	_, err := p.db.Exec(ctx,
		`INSERT INTO salesforce_datasets (dataset_id, created_at, format, payload) VALUES ($1, $2, $3, $4)`,
		datasetID, p.now().UTC(), Extension(data), data)
	if err != nil {
		return wrapError(CodeWriteFailed, true, fmt.Errorf("insert dataset %s: %w", datasetID, err))
	}
	return nil
}

// Latest returns the most recent payload of datasetID.
func (p *Postgres) Latest(ctx context.Context, datasetID string) ([]byte, error) {
	var payload []byte
	err := p.db.QueryRow(ctx,
		`SELECT payload FROM salesforce_datasets WHERE dataset_id = $1 ORDER BY created_at DESC LIMIT 1`,
		datasetID).Scan(&payload)
	if err == pgx.ErrNoRows {
		return nil, wrapError(CodeObjectNotFound, false, fmt.Errorf("dataset %s has no payload", datasetID))
	}
	if err != nil {
		return nil, wrapError(CodeWriteFailed, true, err)
	}
	return payload, nil
}

// Close releases the pool.
func (p *Postgres) Close() {
	p.db.Close()
}
