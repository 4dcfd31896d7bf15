// Package models defines conversation lifecycle states for the
// name-collection onboarding flow.
package models

// ConversationState is the lifecycle state of a conversation with
// respect to onboarding.
type ConversationState string

const (
	// StateAwaitingName: first contact, waiting for the contact to say
	// their name.
	StateAwaitingName ConversationState = "AWAITING_NAME"
	// StateConfirmingName: a candidate name was captured and the contact
	// is being asked to confirm it.
	StateConfirmingName ConversationState = "CONFIRMING_NAME"
	// StateActive: onboarding done; messages pass through to the normal
	// reply-generation path.
	StateActive ConversationState = "ACTIVE"
)

// Known reports whether s is one of the defined lifecycle states.
// Unknown values are treated as ACTIVE by the flow, matching the
// datastore's loosely constrained state column.
func (s ConversationState) Known() bool {
	switch s {
	case StateAwaitingName, StateConfirmingName, StateActive:
		return true
	}
	return false
}
