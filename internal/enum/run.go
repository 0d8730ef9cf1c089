package enum

type RunStatus string

const (
	RunStatusCompleted RunStatus = "completed"
	RunStatusSkipped   RunStatus = "skipped"
	RunStatusFailed    RunStatus = "failed"
)

func (s RunStatus) String() string {
	return string(s)
}

type RunState string

const (
	RunStateIdle            RunState = "idle"
	RunStateConnecting      RunState = "connecting"
	RunStateFetching        RunState = "fetching"
	RunStateProcessingBatch RunState = "processing_batch"
	RunStateCommitting      RunState = "committing"
	RunStateDone            RunState = "done"
	RunStateAborted         RunState = "aborted"
)

func (s RunState) String() string {
	return string(s)
}

func (s RunState) IsTerminal() bool {
	return s == RunStateDone || s == RunStateAborted
}
