package core

import "context"

// OrganizationWipeToken must be typed to confirm deleting every activity of
// the organization.
const OrganizationWipeToken = "DELETE"

// Prompt describes a confirmation dialog.
type Prompt struct {
	Title   string
	Message string

	// RequireTyped, when set, asks the user to type this exact string in
	// addition to accepting the dialog.
	RequireTyped string
}

// Confirmation is the typed result of a confirmation dialog.
type Confirmation struct {
	Confirmed bool   `json:"confirmed"`
	Typed     string `json:"typed,omitempty"`
}

// Satisfies reports whether c confirms p.
func (c Confirmation) Satisfies(p Prompt) bool {
	if !c.Confirmed {
		return false
	}
	if p.RequireTyped != "" && c.Typed != p.RequireTyped {
		return false
	}
	return true
}

// Confirmer asks the user to confirm a destructive operation.
type Confirmer interface {
	Confirm(ctx context.Context, p Prompt) (Confirmation, error)
}

// ConfirmFunc adapts a function to the Confirmer interface.
type ConfirmFunc func(ctx context.Context, p Prompt) (Confirmation, error)

// Confirm calls f(ctx, p).
func (f ConfirmFunc) Confirm(ctx context.Context, p Prompt) (Confirmation, error) {
	return f(ctx, p)
}

// Answer is a Confirmer that always returns the same result, for callers
// that collected the answer before invoking the operation.
type Answer Confirmation

// Confirm returns the stored answer.
func (a Answer) Confirm(context.Context, Prompt) (Confirmation, error) {
	return Confirmation(a), nil
}

// Accept returns an Answer that accepts the dialog with the typed string.
func Accept(typed string) Answer {
	return Answer{Confirmed: true, Typed: typed}
}

// Decline returns an Answer that cancels the dialog.
func Decline() Answer {
	return Answer{}
}
