// Package flow defines the input model for a flow definition and compiles
// it into a DAG ready for orchestration.
package flow

// DefaultMaxRetries is applied to a step that does not set MaxRetries.
const DefaultMaxRetries = 3

// StepDefinition describes one action in a flow and how it connects to its
// children.
type StepDefinition struct {
	// Action is the unique id of this step within the flow.
	Action string `toml:"action" json:"action"`

	// Next lists the action ids invoked after this step succeeds.
	Next []string `toml:"next" json:"next"`

	// MaxRetries bounds how many times invoke/compensate is retried after
	// its first attempt before the step is considered permanently failed.
	// Nil means "unset" (DefaultMaxRetries applies); an explicit zero
	// means the step gets exactly one attempt. Use EffectiveMaxRetries or
	// MaxAttempts to read the resolved value.
	MaxRetries *int `toml:"maxRetries" json:"maxRetries"`

	// ContinueOnPermanentFailure allows the transaction to keep making
	// forward progress past this step's siblings/descendants even after
	// this step exhausts its invoke retries, instead of moving the whole
	// transaction into compensation (or to FAILED when no step has
	// completed yet).
	ContinueOnPermanentFailure bool `toml:"continueOnPermanentFailure" json:"continueOnPermanentFailure"`

	// ForwardResponse injects this step's handler response into the
	// payload of its immediate children under the "_response" key.
	ForwardResponse bool `toml:"forwardResponse" json:"forwardResponse"`

	// NoWait lets children of this step be scheduled as soon as this step
	// enters INVOKING, rather than waiting for it to reach INVOKED_OK.
	NoWait bool `toml:"noWait" json:"noWait"`

	// Async suspends this step after invoke is dispatched; the
	// transaction only resumes it once an external caller reports the
	// step's outcome via registerStepSuccess/registerStepFailure.
	Async bool `toml:"async" json:"async"`
}

// EffectiveMaxRetries returns MaxRetries if set, otherwise DefaultMaxRetries.
func (s StepDefinition) EffectiveMaxRetries() int {
	if s.MaxRetries != nil {
		return *s.MaxRetries
	}
	return DefaultMaxRetries
}

// MaxAttempts returns the total number of invoke/compensate attempts
// allowed for this step: the initial attempt plus EffectiveMaxRetries
// retries.
func (s StepDefinition) MaxAttempts() int {
	return s.EffectiveMaxRetries() + 1
}

// Retries returns a pointer to n, for populating StepDefinition.MaxRetries
// from a literal in Go-authored flow definitions.
func Retries(n int) *int {
	return &n
}

// Definition is the input model for a flow: a name, the set of action ids
// that form the first layer (the implicit root's children), and the full
// step list.
type Definition struct {
	// Name identifies the flow and becomes metadata.producer on every
	// dispatch. Supports ${VAR} / ${VAR:default} interpolation against the
	// process environment when loaded via LoadTOML.
	Name  string           `toml:"name" json:"name" env_interpolation:"yes"`
	Root  []string         `toml:"root" json:"root"`
	Steps []StepDefinition `toml:"steps" json:"steps"`
}
