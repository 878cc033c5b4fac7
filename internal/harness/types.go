package harness

// Outcome records what one query or batch produced.
type Outcome struct {
	Kind  string `json:"kind"` // "query" or "batch"
	Index int    `json:"index"`
	Key   string `json:"key"`

	// Values is []float64 for queries and [][][]float64 for batches.
	Values any `json:"values,omitempty"`

	// Error is the error code, empty on success.
	Error string `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall scenario success.
	Pass bool `json:"pass"`

	// Keys is the sorted key list after Finalize.
	Keys []string `json:"keys"`

	// FinalizeError is the error code Finalize returned, if any.
	FinalizeError string `json:"finalize_error,omitempty"`

	// Outcomes holds queries first, then batches, in scenario order.
	Outcomes []Outcome `json:"outcomes"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Keys:     []string{},
		Outcomes: []Outcome{},
		Errors:   []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
