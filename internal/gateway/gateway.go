// Package gateway is the boundary to the chat platform that delivers
// messages to users and relays their replies and button presses back as
// webhook events.
package gateway

import "context"

// MessageRef identifies a previously delivered message so it can be edited
// or deleted later. The value is assigned by the platform and opaque here.
type MessageRef string

// Button is one pressable inline control. Action is the opaque token the
// platform echoes back in the callback event when the button is pressed.
type Button struct {
	Label  string `json:"label"`
	Action string `json:"action"`
}

// Controls describes the interactive surface attached to a message. Menu
// rows render as a persistent reply keyboard of plain labels; Inline rows
// render as buttons attached to the message itself. A nil *Controls strips
// any controls from the message.
type Controls struct {
	Menu   [][]string `json:"menu,omitempty"`
	Inline [][]Button `json:"inline,omitempty"`
}

type Gateway interface {
	SendText(ctx context.Context, userID, text string, controls *Controls) (MessageRef, error)
	EditMessage(ctx context.Context, ref MessageRef, text string, controls *Controls) error
	DeleteMessage(ctx context.Context, ref MessageRef) error
}
