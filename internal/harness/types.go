package harness

// TraceEvent is one rewrite attempt from the audit log, in seq order.
// Rejected attempts carry a non-empty Tag naming the rejection reason.
type TraceEvent struct {
	Seq     int64  `json:"seq"`
	RuleID  string `json:"rule_id"`
	Root    string `json:"root"`
	Applied bool   `json:"applied"`
	Tag     string `json:"tag,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall scenario success.
	// True if every assertion holds.
	Pass bool `json:"pass"`

	// RunToken and PackageID identify the recorded run.
	RunToken  string `json:"run_token"`
	PackageID string `json:"package_id"`

	// Stable and Verdicts are the analyzer's final report: whether the
	// pair reached a fixed point and which termination conditions held.
	Stable   bool     `json:"stable"`
	Verdicts []string `json:"verdicts"`

	// Applied and Rejected count the rewrite attempts in the trace.
	Applied  int `json:"applied"`
	Rejected int `json:"rejected"`

	// Trace contains every attempt in seq order.
	// Used for trace assertions and golden comparison.
	Trace []TraceEvent `json:"trace"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for scenario execution.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Verdicts: []string{},
		Trace:    []TraceEvent{},
		Errors:   []string{},
	}
}

// AddError adds an assertion failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
