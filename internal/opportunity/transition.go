package opportunity

import "fmt"

// TransitionPolicy decides whether an opportunity may move between two stages.
type TransitionPolicy interface {
	Allow(from, to Stage) error
}

type unrestricted struct{}

func (unrestricted) Allow(_, _ Stage) error { return nil }

// Unrestricted accepts any stage from any other, terminal stages included.
var Unrestricted TransitionPolicy = unrestricted{}

var strictTransitions = map[Stage]map[Stage]bool{
	StageQualified:   {StageProposal: true, StageLost: true},
	StageProposal:    {StageNegotiation: true, StageLost: true},
	StageNegotiation: {StageClosing: true, StageLost: true},
	StageClosing:     {StageWon: true, StageLost: true},
	StageWon:         {},
	StageLost:        {},
}

type strict struct{}

func (strict) Allow(from, to Stage) error {
	if from == to {
		return nil
	}

	if !strictTransitions[from][to] {
		return fmt.Errorf("%w: %s -> %s", ErrTransitionNotAllowed, from, to)
	}

	return nil
}

// Strict only allows moving one stage forward or dropping an open deal to lost.
// Won and lost are final.
var Strict TransitionPolicy = strict{}
