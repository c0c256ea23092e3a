package inventory

// Action is a workflow command applied to a document
type Action string

const (
	ActionStart    Action = "start"
	ActionComplete Action = "complete"
	ActionApprove  Action = "approve"
)

// String returns the string representation of Action
func (a Action) String() string {
	return string(a)
}

// transitionTable maps a state and an action to the next state.
// Pairs missing from the table are not allowed.
type transitionTable[S ~string] map[S]map[Action]S

func (t transitionTable[S]) next(from S, action Action) (S, bool) {
	to, ok := t[from][action]
	return to, ok
}
