package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jonathan/transcript-pipeline/internal/types"
)

const selectRecordsSQL = `
SELECT key, source_url, title, duration_seconds, status, audio_file_path,
       raw_transcript_path, conversation_path, remote_job_id, created_at,
       transcribed_at, last_error
FROM job_records`

const upsertRecordSQL = `
INSERT INTO job_records (key, source_url, title, duration_seconds, status, audio_file_path,
	raw_transcript_path, conversation_path, remote_job_id, created_at, transcribed_at, last_error)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (key) DO UPDATE SET
	source_url = $2, title = $3, duration_seconds = $4, status = $5, audio_file_path = $6,
	raw_transcript_path = $7, conversation_path = $8, remote_job_id = $9,
	transcribed_at = $11, last_error = $12, updated_at = NOW()`

// Store is a job index store backed by the job_records table.
type Store struct {
	db *DB
}

// NewStore creates a Store on an open connection.
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// Load reads every job record.
func (s *Store) Load(ctx context.Context) (types.Index, error) {
	rows, err := s.db.pool.Query(ctx, selectRecordsSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to load job records: %w", err)
	}
	defer rows.Close()

	idx := types.NewIndex()
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job record: %w", err)
		}
		idx[rec.Key] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load job records: %w", err)
	}
	return idx, nil
}

// Persist upserts every record in a single transaction.
func (s *Store) Persist(ctx context.Context, idx types.Index) error {
	tx, err := s.db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, key := range idx.Keys() {
		batch.Queue(upsertRecordSQL, recordArgs(idx[key])...)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to upsert job records: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit job records: %w", err)
	}
	return nil
}

func recordArgs(r *types.JobRecord) []any {
	return []any{
		r.Key, r.SourceURL, r.Title, r.Duration, string(r.Status), r.AudioFilePath,
		r.RawTranscriptPath, r.ConversationPath, r.RemoteJobID, r.CreatedAt,
		r.TranscribedAt, r.LastError,
	}
}

func scanRecord(row pgx.Row) (*types.JobRecord, error) {
	var r types.JobRecord
	var status string
	err := row.Scan(
		&r.Key, &r.SourceURL, &r.Title, &r.Duration, &status, &r.AudioFilePath,
		&r.RawTranscriptPath, &r.ConversationPath, &r.RemoteJobID, &r.CreatedAt,
		&r.TranscribedAt, &r.LastError,
	)
	if err != nil {
		return nil, err
	}
	r.Status = types.Status(status)
	if !r.Status.IsValid() {
		r.Status = types.StatusNew
	}
	return &r, nil
}
