// Package pipeline drives jobs through download, transcription and
// reconstruction, persisting the job index after every state change.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/transcript-pipeline/internal/fsutil"
	"github.com/jonathan/transcript-pipeline/internal/poller"
	"github.com/jonathan/transcript-pipeline/internal/retry"
	"github.com/jonathan/transcript-pipeline/internal/schemas"
	"github.com/jonathan/transcript-pipeline/internal/store"
	"github.com/jonathan/transcript-pipeline/internal/types"
)

// Metadata describes a source before it is downloaded.
type Metadata struct {
	Title    string
	Duration *float64 // seconds
}

// SubmitOptions are passed to the transcription service with each upload.
type SubmitOptions struct {
	SpeakerLabels bool
	SpeechModel   string
}

// Acquirer downloads the audio for source and returns the local file path.
// name is the base file name to use; the extension is chosen by the acquirer.
type Acquirer interface {
	Acquire(ctx context.Context, source, name string) (string, error)
}

// MetadataFetcher looks up the title and duration of a source.
type MetadataFetcher interface {
	FetchMetadata(ctx context.Context, source string) (Metadata, error)
}

// Submitter uploads audio and starts a remote transcription job, returning its id.
type Submitter interface {
	Submit(ctx context.Context, audioPath string, opts SubmitOptions) (string, error)
}

// StatusClient queries remote transcription jobs.
type StatusClient = poller.StatusClient

// Expander turns collection references into individual sources.
type Expander interface {
	IsCollection(source string) bool
	Expand(ctx context.Context, source string) ([]string, error)
}

// ConversationBuilder writes the conversation for a raw transcript and returns the segment count.
type ConversationBuilder interface {
	ReconstructFile(rawPath, outPath string) (int, error)
}

// ArtifactScanner discovers transcripts that exist on disk.
type ArtifactScanner interface {
	Scan() ([]store.Artifact, error)
}

// Observer receives counters as jobs progress.
type Observer interface {
	Retried(stage Stage)
	Polled(state poller.RemoteState)
	JobFinished(status types.Status, elapsed time.Duration)
}

// Options configures an Orchestrator.
type Options struct {
	Layout        Layout
	DownloadRetry retry.Policy
	UploadRetry   retry.Policy
	Poll          poller.Policy
	// MaxJobsPerRun caps newly processed jobs. Zero means unlimited.
	MaxJobsPerRun int
	Diarization   bool
	SpeechModel   string
	OnProgress    ProgressCallback
}

// Collaborators are the external services an Orchestrator drives.
// Acquirer, Submitter and Status are required.
type Collaborators struct {
	Acquirer      Acquirer
	Metadata      MetadataFetcher
	Submitter     Submitter
	Status        StatusClient
	Expander      Expander
	Conversations ConversationBuilder
	Scanner       ArtifactScanner
	Observer      Observer
}

// Orchestrator runs jobs sequentially. It is the only writer of the index.
type Orchestrator struct {
	opts   Options
	c      Collaborators
	store  store.Store
	logger *slog.Logger
	poller *poller.Poller
	sleep  retry.Sleeper
	now    func() time.Time
	exists func(string) bool
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithSleeper replaces the sleeper used between retries and polls.
func WithSleeper(s retry.Sleeper) Option {
	return func(o *Orchestrator) { o.sleep = s }
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(opts Options, c Collaborators, st store.Store, logger *slog.Logger, options ...Option) (*Orchestrator, error) {
	switch {
	case st == nil:
		return nil, errors.New("pipeline: store is required")
	case c.Acquirer == nil:
		return nil, errors.New("pipeline: acquirer is required")
	case c.Submitter == nil:
		return nil, errors.New("pipeline: submitter is required")
	case c.Status == nil:
		return nil, errors.New("pipeline: status client is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	o := &Orchestrator{
		opts:   opts,
		c:      c,
		store:  st,
		logger: logger,
		sleep:  retry.SleepContext,
		now:    time.Now,
		exists: fsutil.Exists,
	}
	for _, opt := range options {
		opt(o)
	}

	o.poller = poller.New(c.Status, opts.Poll, logger,
		poller.WithSleeper(o.sleep),
		poller.WithOnPoll(func(_ string, _ int, state poller.RemoteState) {
			if c.Observer != nil {
				c.Observer.Polled(state)
			}
		}),
	)
	return o, nil
}

type job struct {
	key    string
	source string
}

// Run processes sources in order and returns the run summary. The error is
// only set for fatal conditions: the index could not be loaded or saved, an
// illegal transition was attempted, or ctx was cancelled.
func (o *Orchestrator) Run(ctx context.Context, sources []string) (Summary, error) {
	sum := Summary{RunID: uuid.NewString()}
	logger := o.logger.With("run_id", sum.RunID)

	idx, err := o.store.Load(ctx)
	if err != nil {
		return sum, fmt.Errorf("failed to load index: %w", err)
	}

	healed := store.Heal(idx, o.exists)
	for _, key := range healed {
		logger.Warn("transcript missing, job reset", "key", key)
	}
	sum.Healed = len(healed)
	sum.Reconciled = o.reconcile(idx, logger)
	if sum.Healed > 0 || sum.Reconciled > 0 {
		if err := o.persist(ctx, idx); err != nil {
			return sum, err
		}
	}

	jobs, err := o.expand(ctx, sources, logger)
	if err != nil {
		return sum, err
	}
	sum.Total = len(jobs)

	for i, j := range jobs {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		rec := idx[j.key]
		if rec != nil && rec.Status == types.StatusCompleted && o.exists(rec.RawTranscriptPath) {
			sum.Skipped++
			logger.Debug("already transcribed", "key", j.key)
			o.emit(ProgressEvent{RunID: sum.RunID, Index: i + 1, Total: sum.Total, Key: j.key, Status: rec.Status, Message: "skipped"})
			continue
		}
		if o.opts.MaxJobsPerRun > 0 && sum.Processed >= o.opts.MaxJobsPerRun {
			sum.Deferred++
			continue
		}

		if rec == nil {
			rec = types.NewJobRecord(j.key, j.source, o.now())
			idx[j.key] = rec
		} else if rec.SourceURL == "" {
			rec.SourceURL = j.source
		}

		sum.Processed++
		o.emit(ProgressEvent{RunID: sum.RunID, Index: i + 1, Total: sum.Total, Key: j.key, Status: rec.Status, Message: "processing"})

		started := o.now()
		serr, err := o.process(ctx, idx, rec, logger.With("key", j.key))
		if err != nil {
			return sum, err
		}
		if o.c.Observer != nil {
			o.c.Observer.JobFinished(rec.Status, o.now().Sub(started))
		}

		if serr != nil {
			sum.Failed++
			sum.Failures = append(sum.Failures, JobFailure{
				Key:    rec.Key,
				Source: rec.SourceURL,
				Status: rec.Status,
				Stage:  serr.Stage,
				Error:  rec.LastError,
			})
			o.emit(ProgressEvent{RunID: sum.RunID, Index: i + 1, Total: sum.Total, Key: j.key, Stage: serr.Stage, Status: rec.Status, Message: rec.LastError})
			continue
		}
		sum.Completed++
		o.emit(ProgressEvent{RunID: sum.RunID, Index: i + 1, Total: sum.Total, Key: j.key, Status: rec.Status, Message: "completed"})
	}

	logger.Info("run finished",
		"total", sum.Total, "processed", sum.Processed, "skipped", sum.Skipped,
		"failed", sum.Failed, "deferred", sum.Deferred)
	return sum, nil
}

// reconcile merges transcripts found on disk and returns how many records changed.
func (o *Orchestrator) reconcile(idx types.Index, logger *slog.Logger) int {
	if o.c.Scanner == nil {
		return 0
	}
	found, err := o.c.Scanner.Scan()
	if err != nil {
		logger.Warn("failed to scan transcripts", "error", err)
		return 0
	}

	before := idx.Clone()
	store.Reconcile(idx, found)

	changed := 0
	for key, rec := range idx {
		prev, ok := before[key]
		if !ok || prev.Status != rec.Status || prev.RawTranscriptPath != rec.RawTranscriptPath || prev.ConversationPath != rec.ConversationPath {
			changed++
		}
	}
	return changed
}

// expand resolves collections and drops sources that map to an already seen key.
func (o *Orchestrator) expand(ctx context.Context, sources []string, logger *slog.Logger) ([]job, error) {
	var jobs []job
	seen := make(map[string]bool)
	add := func(src string) {
		src = strings.TrimSpace(src)
		if src == "" {
			return
		}
		key := DeriveKey(src)
		if seen[key] {
			logger.Debug("duplicate source", "source", src, "key", key)
			return
		}
		seen[key] = true
		jobs = append(jobs, job{key: key, source: src})
	}

	for _, src := range sources {
		if o.c.Expander == nil || !o.c.Expander.IsCollection(src) {
			add(src)
			continue
		}
		items, err := o.c.Expander.Expand(ctx, src)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			logger.Warn("failed to expand collection", "source", src, "error", err)
			continue
		}
		logger.Info("expanded collection", "source", src, "items", len(items))
		for _, item := range items {
			add(item)
		}
	}
	return jobs, nil
}

// process drives one record as far as it can go. A non-nil StageError means
// the job failed and the failure is recorded on the record; a non-nil error is fatal.
func (o *Orchestrator) process(ctx context.Context, idx types.Index, rec *types.JobRecord, logger *slog.Logger) (*StageError, error) {
	o.rewind(rec, logger)

	if rec.Status == types.StatusNew {
		o.fetchMetadata(ctx, rec, logger)
		if serr, err := o.acquire(ctx, idx, rec, logger); serr != nil || err != nil {
			return serr, err
		}
	}

	if rec.Status == types.StatusDownloaded {
		if serr, err := o.submit(ctx, idx, rec, logger); serr != nil || err != nil {
			return serr, err
		}
	}

	if rec.Status == types.StatusPolling {
		if serr, err := o.await(ctx, idx, rec, logger); serr != nil || err != nil {
			return serr, err
		}
	}

	if !rec.Status.IsTerminal() {
		return nil, fmt.Errorf("job %s stopped in unexpected status %s", rec.Key, rec.Status)
	}
	return nil, o.reconstruct(ctx, idx, rec, logger)
}

// rewind moves a record left behind by an earlier run back to a resumable status.
// These recovery moves do not go through the forward state machine.
func (o *Orchestrator) rewind(rec *types.JobRecord, logger *slog.Logger) {
	from := rec.Status
	audio := o.exists(rec.AudioFilePath)

	switch {
	case rec.Status.IsFailed(), rec.Status == types.StatusCompleted:
		// completed only reaches here with the transcript gone
		rec.Reset()
		rec.RemoteJobID = ""
	case rec.Status == types.StatusDownloading:
		rec.Status = types.StatusNew
	case rec.Status == types.StatusDownloaded, rec.Status == types.StatusUploading:
		if audio {
			rec.Status = types.StatusDownloaded
		} else {
			rec.Status = types.StatusNew
		}
	case rec.Status == types.StatusPolling:
		if rec.RemoteJobID == "" {
			if audio {
				rec.Status = types.StatusDownloaded
			} else {
				rec.Status = types.StatusNew
			}
		}
	}
	if rec.Status != from {
		logger.Info("resuming job", "from", from, "to", rec.Status)
	}
}

func (o *Orchestrator) fetchMetadata(ctx context.Context, rec *types.JobRecord, logger *slog.Logger) {
	if rec.Title != "" || o.c.Metadata == nil {
		return
	}
	md, err := o.c.Metadata.FetchMetadata(ctx, rec.SourceURL)
	if err != nil {
		logger.Debug("metadata unavailable", "error", err)
		return
	}
	rec.Title = md.Title
	if rec.Duration == nil {
		rec.Duration = md.Duration
	}
}

func (o *Orchestrator) acquire(ctx context.Context, idx types.Index, rec *types.JobRecord, logger *slog.Logger) (*StageError, error) {
	def := stageDefinition(StageAcquire)
	if o.exists(rec.AudioFilePath) {
		logger.Info("reusing downloaded audio", "path", rec.AudioFilePath)
		return nil, o.advance(ctx, idx, rec, def.Done)
	}

	if err := o.advance(ctx, idx, rec, def.Active); err != nil {
		return nil, err
	}
	logger.Info("downloading audio", "source", rec.SourceURL)

	name := o.opts.Layout.AudioName(rec.Key)
	path, err := retry.Do(ctx, o.opts.DownloadRetry, func(ctx context.Context) (string, error) {
		return o.c.Acquirer.Acquire(ctx, rec.SourceURL, name)
	}, o.retryOptions(StageAcquire, logger)...)
	if err != nil {
		return o.fail(ctx, idx, rec, StageAcquire, err, logger)
	}

	rec.AudioFilePath = path
	return nil, o.advance(ctx, idx, rec, def.Done)
}

func (o *Orchestrator) submit(ctx context.Context, idx types.Index, rec *types.JobRecord, logger *slog.Logger) (*StageError, error) {
	def := stageDefinition(StageSubmit)
	if err := o.advance(ctx, idx, rec, def.Active); err != nil {
		return nil, err
	}
	logger.Info("submitting audio", "path", rec.AudioFilePath)

	opts := SubmitOptions{SpeakerLabels: o.opts.Diarization, SpeechModel: o.opts.SpeechModel}
	id, err := retry.Do(ctx, o.opts.UploadRetry, func(ctx context.Context) (string, error) {
		return o.c.Submitter.Submit(ctx, rec.AudioFilePath, opts)
	}, o.retryOptions(StageSubmit, logger)...)
	if err != nil {
		return o.fail(ctx, idx, rec, StageSubmit, err, logger)
	}

	rec.RemoteJobID = id
	return nil, o.advance(ctx, idx, rec, def.Done)
}

// await polls the remote job and stores the finished transcript.
func (o *Orchestrator) await(ctx context.Context, idx types.Index, rec *types.JobRecord, logger *slog.Logger) (*StageError, error) {
	logger.Info("waiting for transcript", "remote_job_id", rec.RemoteJobID)

	status, err := o.poller.Poll(ctx, rec.RemoteJobID)
	if err != nil {
		return o.fail(ctx, idx, rec, StagePoll, err, logger)
	}

	path := o.opts.Layout.RawTranscriptPath(rec.Key)
	if err := writeRawTranscript(path, status); err != nil {
		return o.fail(ctx, idx, rec, StageStore, err, logger)
	}

	now := o.now().UTC()
	rec.RawTranscriptPath = path
	rec.TranscribedAt = &now
	rec.LastError = ""
	if err := o.advance(ctx, idx, rec, stageDefinition(StagePoll).Done); err != nil {
		return nil, err
	}
	logger.Info("transcript saved", "path", path)
	return nil, nil
}

// reconstruct builds the conversation file. Failures are logged and leave the record untouched.
func (o *Orchestrator) reconstruct(ctx context.Context, idx types.Index, rec *types.JobRecord, logger *slog.Logger) error {
	if !o.opts.Diarization || o.c.Conversations == nil {
		return nil
	}
	out := o.opts.Layout.ConversationPath(rec.Key)
	n, err := o.c.Conversations.ReconstructFile(rec.RawTranscriptPath, out)
	if err != nil {
		logger.Warn("failed to reconstruct conversation", "error", &StageError{Stage: StageReconstruct, Key: rec.Key, Err: err})
		return nil
	}
	logger.Info("conversation saved", "path", out, "segments", n)
	if rec.ConversationPath == out {
		return nil
	}
	rec.ConversationPath = out
	return o.persist(ctx, idx)
}

// fail records a stage failure on the record. Cancellation is returned as fatal
// without touching the record so the next run resumes from the persisted state.
func (o *Orchestrator) fail(ctx context.Context, idx types.Index, rec *types.JobRecord, stage Stage, cause error, logger *slog.Logger) (*StageError, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	serr := &StageError{Stage: stage, Key: rec.Key, Err: cause}
	def, ok := LookupStage(stage)
	if !ok || def.Failed == "" {
		return nil, fmt.Errorf("stage %s cannot fail a job: %w", stage, serr)
	}

	rec.LastError = serr.Error()
	logger.Error("job failed", "stage", stage, "error", cause)
	if err := o.advance(ctx, idx, rec, def.Failed); err != nil {
		return nil, err
	}
	return serr, nil
}

// advance applies a checked transition and persists the index.
func (o *Orchestrator) advance(ctx context.Context, idx types.Index, rec *types.JobRecord, to types.Status) error {
	if err := rec.Transition(to); err != nil {
		return err
	}
	return o.persist(ctx, idx)
}

func (o *Orchestrator) persist(ctx context.Context, idx types.Index) error {
	if err := o.store.Persist(ctx, idx); err != nil {
		return &PersistError{Err: err}
	}
	return nil
}

func (o *Orchestrator) retryOptions(stage Stage, logger *slog.Logger) []retry.Option {
	return []retry.Option{
		retry.WithSleeper(o.sleep),
		retry.WithOnRetry(func(attempt int, delay time.Duration, err error) {
			logger.Warn("retrying", "stage", stage, "attempt", attempt, "delay", delay, "error", err)
			if o.c.Observer != nil {
				o.c.Observer.Retried(stage)
			}
		}),
	}
}

func (o *Orchestrator) emit(ev ProgressEvent) {
	if o.opts.OnProgress != nil {
		o.opts.OnProgress(ev)
	}
}

// rawDocument is the on-disk raw transcript: the service's status, text and id
// plus the full response under "raw".
type rawDocument struct {
	Status string          `json:"status"`
	Text   string          `json:"text,omitempty"`
	ID     string          `json:"id,omitempty"`
	Raw    json.RawMessage `json:"raw"`
}

func writeRawTranscript(path string, status *poller.Status) error {
	doc := rawDocument{Status: string(status.State), ID: status.JobID, Raw: json.RawMessage("null")}
	if len(status.Payload) > 0 {
		var head struct {
			Status string `json:"status"`
			Text   string `json:"text"`
			ID     string `json:"id"`
		}
		if err := json.Unmarshal(status.Payload, &head); err != nil {
			return fmt.Errorf("failed to decode transcript payload: %w", err)
		}
		if head.Status != "" {
			doc.Status = head.Status
		}
		if head.ID != "" {
			doc.ID = head.ID
		}
		doc.Text = head.Text
		doc.Raw = status.Payload
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode raw transcript: %w", err)
	}
	if err := schemas.Validate(schemas.RawTranscript, data); err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(path, append(data, '\n'), 0o644)
}
