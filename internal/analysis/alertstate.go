package analysis

import "strconv"

// DecisionKind 状态机的判定结果
type DecisionKind int

const (
	NoOp DecisionKind = iota
	Fire
	Reset
)

func (k DecisionKind) String() string {
	switch k {
	case Fire:
		return "fire"
	case Reset:
		return "reset"
	default:
		return "noop"
	}
}

// Decision is the outcome of one Evaluate call. Count is set for Fire.
type Decision struct {
	Kind  DecisionKind
	Count int
}

func (d Decision) String() string {
	if d.Kind == Fire {
		return "fire(" + strconv.Itoa(d.Count) + ")"
	}
	return d.Kind.String()
}

// AlertState remembers the last match count and fires only when it changes
// to a new non-zero value. It is owned by the poll loop and is not safe for
// concurrent use.
type AlertState struct {
	last int
}

// Evaluate applies the transition rules in order and updates the state.
func (s *AlertState) Evaluate(n int) Decision {
	switch {
	case n > 0 && n != s.last:
		s.last = n
		return Decision{Kind: Fire, Count: n}
	case n == 0 && s.last != 0:
		s.last = 0
		return Decision{Kind: Reset}
	default:
		return Decision{Kind: NoOp}
	}
}

// Reset returns the machine to quiescent.
func (s *AlertState) Reset() { s.last = 0 }

func (s *AlertState) LastCount() int { return s.last }
