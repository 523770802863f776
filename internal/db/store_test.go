package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/transcript-pipeline/internal/types"
)

func setupTestDB(t *testing.T) *DB {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("Skipping integration test: DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	db, err := Connect(ctx, dbURL)
	if err != nil {
		t.Skipf("Skipping integration test: failed to connect to DB: %v", err)
	}
	require.NoError(t, db.EnsureSchema(context.Background()))
	return db
}

func TestRecordArgs_Order(t *testing.T) {
	d := 12.5
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	rec := &types.JobRecord{
		Key:               "k",
		SourceURL:         "https://youtu.be/k",
		Title:             "t",
		Duration:          &d,
		Status:            types.StatusCompleted,
		RawTranscriptPath: "raw",
		CreatedAt:         now,
		TranscribedAt:     &now,
	}

	args := recordArgs(rec)
	require.Len(t, args, 12)
	assert.Equal(t, "k", args[0])
	assert.Equal(t, "completed", args[4])
	assert.Equal(t, "raw", args[6])
	assert.Equal(t, &now, args[10])
}

func TestStore_RoundTrip_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()
	s := NewStore(db)

	key := "it-" + time.Now().Format("150405.000000")
	t.Cleanup(func() {
		_, _ = db.pool.Exec(context.Background(), `DELETE FROM job_records WHERE key = $1`, key)
	})

	idx := types.NewIndex()
	rec := types.NewJobRecord(key, "https://youtu.be/"+key, time.Now().Truncate(time.Microsecond))
	rec.Status = types.StatusDownloaded
	rec.AudioFilePath = "downloads/" + key + ".wav"
	idx[key] = rec
	require.NoError(t, s.Persist(ctx, idx))

	rec.Status = types.StatusUploading
	require.NoError(t, s.Persist(ctx, idx))

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	require.Contains(t, loaded, key)
	assert.Equal(t, types.StatusUploading, loaded[key].Status)
	assert.Equal(t, rec.AudioFilePath, loaded[key].AudioFilePath)
	assert.Nil(t, loaded[key].TranscribedAt)
}
