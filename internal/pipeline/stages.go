package pipeline

import "github.com/jonathan/transcript-pipeline/internal/types"

// Stage names a step of the per-job pipeline.
type Stage string

const (
	StageAcquire     Stage = "acquire"
	StageSubmit      Stage = "submit"
	StagePoll        Stage = "poll"
	StageStore       Stage = "store_transcript"
	StageReconstruct Stage = "reconstruct"
)

// StageDefinition describes the record statuses a stage moves through.
type StageDefinition struct {
	Name Stage
	// Active is the status persisted before the stage blocks.
	Active types.Status
	// Done is the status after success.
	Done types.Status
	// Failed is the status after the stage gives up. Empty means failures are not recorded.
	Failed types.Status
}

// StageRegistry holds the definition of every stage in execution order.
var StageRegistry = []StageDefinition{
	{Name: StageAcquire, Active: types.StatusDownloading, Done: types.StatusDownloaded, Failed: types.StatusAudioDownloadFailed},
	{Name: StageSubmit, Active: types.StatusUploading, Done: types.StatusPolling, Failed: types.StatusTranscriptFailed},
	{Name: StagePoll, Active: types.StatusPolling, Done: types.StatusCompleted, Failed: types.StatusTranscriptFailed},
	{Name: StageStore, Active: types.StatusPolling, Done: types.StatusCompleted, Failed: types.StatusTranscriptFailed},
	{Name: StageReconstruct, Active: types.StatusCompleted, Done: types.StatusCompleted},
}

// stageDefinition returns the registered definition of a built-in stage.
func stageDefinition(name Stage) StageDefinition {
	def, ok := LookupStage(name)
	if !ok {
		panic("pipeline: unregistered stage " + string(name))
	}
	return def
}

// LookupStage returns the definition for name.
func LookupStage(name Stage) (StageDefinition, bool) {
	for _, def := range StageRegistry {
		if def.Name == name {
			return def, true
		}
	}
	return StageDefinition{}, false
}
