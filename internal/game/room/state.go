package room

import "fmt"

// State is the round engine state of a room.
type State string

const (
	// StateWaiting means no round has started yet.
	StateWaiting State = "waiting"
	// StateRoundActive means role assignments for the current round were delivered.
	StateRoundActive State = "round_active"
)

// Trigger is an input to the round engine state machine.
type Trigger string

const (
	// TriggerStartRound begins a new round, from either state.
	TriggerStartRound Trigger = "start_round"
)

// Next returns the state that follows s when t fires.
//
// Transitions:
//
//	waiting      --start_round--> round_active
//	round_active --start_round--> round_active
//
// A new round implicitly ends the previous one, so there is no explicit end trigger.
//
// Postcondition: Returns an error for unknown states or triggers.
func Next(s State, t Trigger) (State, error) {
	switch t {
	case TriggerStartRound:
		switch s {
		case StateWaiting, StateRoundActive:
			return StateRoundActive, nil
		}
		return s, fmt.Errorf("room: unknown state %q", s)
	default:
		return s, fmt.Errorf("room: unknown trigger %q", t)
	}
}
