package subscription

// Transition is a status change applied by the lifecycle engine.
type Transition struct {
	From SubscriptionStatus
	To   SubscriptionStatus
}

var validTransitions = map[Transition]bool{
	{StatusActive, StatusActive}:    true, // plan change keeps the row active
	{StatusActive, StatusCancelled}: true,
	{StatusActive, StatusExpired}:   true,
}

// CanTransition checks if a transition from one status to another is valid.
// Nothing leaves CANCELLED or EXPIRED.
func CanTransition(from, to SubscriptionStatus) bool {
	return validTransitions[Transition{from, to}]
}
