package model

// ConversationState is the position of a user's session in a multi-step
// flow. Idle is both the initial and the terminal state of every flow.
type ConversationState string

const (
	StateIdle             ConversationState = "idle"
	StateAddAwaitingName  ConversationState = "add_awaiting_name"
	StateAddAwaitingDate  ConversationState = "add_awaiting_date"
	StateEditMenu         ConversationState = "edit_menu"
	StateEditAwaitingName ConversationState = "edit_awaiting_name"
	StateEditAwaitingDate ConversationState = "edit_awaiting_date"
	StateDeleteConfirm    ConversationState = "delete_confirm"
)
