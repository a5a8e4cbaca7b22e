package constants

// RunStatus is the canonical status for rows in the extraction run store.
type RunStatus string

// Stable values (store these exact strings in the DB).
const (
	RunStatusQueued  RunStatus = "QUEUED"  // queued for processing
	RunStatusRunning RunStatus = "RUNNING" // in progress
	RunStatusDone    RunStatus = "DONE"    // pipeline completed, fields stored
	RunStatusFailed  RunStatus = "FAILED"  // terminal failure at some stage
)
