package pipeline

import "fmt"

// Stage names the pipeline's sequential states. A run moves strictly
// Rasterizing → Recognizing → Aggregating → Extracting → Done; a failure at
// any stage absorbs the run into Failed(stage).
type Stage string

const (
	StageIdle        Stage = "IDLE"
	StageRasterizing Stage = "RASTERIZING"
	StageRecognizing Stage = "RECOGNIZING"
	StageAggregating Stage = "AGGREGATING"
	StageExtracting  Stage = "EXTRACTING"
	StageDone        Stage = "DONE"
)

// StageError tags a failure with the stage it occurred in and wraps the
// underlying cause, which itself wraps one of the common.Err* sentinels.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("pipeline failed while %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
