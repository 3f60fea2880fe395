package domain

var transitionMap = map[TicketState][]TicketState{
	TicketStateReserved:  {TicketStateConfirmed, TicketStateExpired, TicketStateCancelled},
	TicketStateConfirmed: {TicketStateCheckedIn, TicketStateCancelled},
}

// CanTransition reports whether a ticket may move from one state to another.
// CheckedIn, Cancelled and Expired are terminal.
func CanTransition(from, to TicketState) bool {
	for _, allowed := range transitionMap[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves s.
func Terminal(s TicketState) bool {
	return len(transitionMap[s]) == 0
}
