package training

// Trigger is a predicate over training progress. The control loop evaluates
// triggers after every optimization step and interprets a true result itself;
// triggers have no side effects beyond their own firing memory.
type Trigger interface {
	IsTriggered(state *State) bool
}

type severalIteration struct {
	interval  int
	lastFired int
}

// SeveralIteration fires on iterations n, 2n, 3n, ... and never on others.
// It remembers its last satisfying point so a given iteration fires at most
// once even if evaluated repeatedly.
func SeveralIteration(interval int) Trigger {
	if interval <= 0 {
		interval = 1
	}
	return &severalIteration{interval: interval, lastFired: -1}
}

func (t *severalIteration) IsTriggered(state *State) bool {
	if state.Iteration <= 0 || state.Iteration%t.interval != 0 {
		return false
	}
	if state.Iteration == t.lastFired {
		return false
	}
	t.lastFired = state.Iteration
	return true
}

type maxIteration struct {
	max int
}

// MaxIteration is the terminal signal: false below max, true for every
// iteration at or beyond it.
func MaxIteration(max int) Trigger {
	return &maxIteration{max: max}
}

func (t *maxIteration) IsTriggered(state *State) bool {
	return state.Iteration >= t.max
}

type maxEpoch struct {
	max int
}

// MaxEpoch fires once the epoch count reaches max and stays true.
func MaxEpoch(max int) Trigger {
	return &maxEpoch{max: max}
}

func (t *maxEpoch) IsTriggered(state *State) bool {
	return state.Epoch >= t.max
}

type everyEpoch struct {
	lastEpoch int
}

// EveryEpoch fires on each epoch boundary, at most once per epoch.
func EveryEpoch() Trigger {
	return &everyEpoch{lastEpoch: 0}
}

func (t *everyEpoch) IsTriggered(state *State) bool {
	if state.Epoch > t.lastEpoch {
		t.lastEpoch = state.Epoch
		return true
	}
	return false
}

type orTrigger struct {
	triggers []Trigger
}

// Or fires when any of its triggers fires. All triggers are evaluated so
// their firing memories stay consistent.
func Or(triggers ...Trigger) Trigger {
	return &orTrigger{triggers: triggers}
}

func (t *orTrigger) IsTriggered(state *State) bool {
	fired := false
	for _, trigger := range t.triggers {
		if trigger.IsTriggered(state) {
			fired = true
		}
	}
	return fired
}

type andTrigger struct {
	triggers []Trigger
}

// And fires when all of its triggers fire. All triggers are evaluated so
// their firing memories stay consistent.
func And(triggers ...Trigger) Trigger {
	return &andTrigger{triggers: triggers}
}

func (t *andTrigger) IsTriggered(state *State) bool {
	fired := true
	for _, trigger := range t.triggers {
		if !trigger.IsTriggered(state) {
			fired = false
		}
	}
	return fired
}
