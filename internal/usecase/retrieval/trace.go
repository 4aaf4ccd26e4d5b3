package retrieval

import domret "github.com/kailas-cloud/medrag/internal/domain/retrieval"

// State is a step of the retrieve state machine.
type State int

const (
	StateInitial State = iota
	StateFirstPass
	StateEnrich
	StateSecondPass
	StateReturn
)

func (s State) String() string {
	switch s {
	case StateInitial:
		return "initial"
	case StateFirstPass:
		return "first_pass"
	case StateEnrich:
		return "enrich"
	case StateSecondPass:
		return "second_pass"
	case StateReturn:
		return "return"
	default:
		return "unknown"
	}
}

// SourceTrace records what one source produced in one pass.
type SourceTrace struct {
	Name    string
	Kind    domret.Kind
	Outcome domret.OutcomeKind
	Hits    int
}

// Trace describes how a retrieve call ran.
type Trace struct {
	States []State
	Passes int
	// Enrichments counts ingestion attempts, eager and reactive.
	Enrichments int
	EagerFetch  bool
	// Sources holds one entry per pass, in source order.
	Sources [][]SourceTrace
}

func (t *Trace) enter(s State) { t.States = append(t.States, s) }
