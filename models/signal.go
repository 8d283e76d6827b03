package models

// SignalType names a notification the engine emits. Delivery is fire-and-forget.
type SignalType string

const (
	SignalMatchStarted    SignalType = "match-started"
	SignalMatchCompleted  SignalType = "match-completed"
	SignalSubmitResults   SignalType = "submit-results"
	SignalMatchCancelled  SignalType = "match-cancelled"
	SignalYouLeftSpot     SignalType = "you-left-spot"
	SignalPlayerLeft      SignalType = "player-left"
	SignalPlayerJoined    SignalType = "player-joined"
	SignalResultsComplete SignalType = "results-complete"
	SignalMatchDisputed   SignalType = "match-disputed"
)
