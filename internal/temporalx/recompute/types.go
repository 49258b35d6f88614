package recompute

const (
	WorkflowName    = "agrisense.recompute"
	ActivityExecute = "agrisense.recompute.execute"
)

// WorkflowID is the deterministic execution id for a job, so a second start
// for the same job is rejected by the server.
func WorkflowID(jobID string) string { return "recompute-" + jobID }

type Input struct {
	JobID string `json:"job_id"`
}
