package runtime

// FinalStatus is the terminal outcome of an entire pipeline run (§4.2.1),
// distinct from StageStatus which describes a single stage's Outcome.
type FinalStatus string

const (
	FinalSuccess FinalStatus = "success"
	FinalFailure FinalStatus = "failure"
)
