package types

// RunMode selects which parts of the process start
type RunMode string

const (
	// ModeLocal runs the API server and the Temporal worker in one process
	ModeLocal          RunMode = "local"
	ModeAPI            RunMode = "api"
	ModeTemporalWorker RunMode = "temporal_worker"
)

func (m RunMode) RunsAPI() bool {
	return m == ModeLocal || m == ModeAPI || m == ""
}

func (m RunMode) RunsWorker() bool {
	return m == ModeLocal || m == ModeTemporalWorker || m == ""
}
