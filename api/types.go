package api

import (
	"context"

	"taskboard/board"
	"taskboard/domain"
	"taskboard/identity"
)

// Sessions is the authentication surface used by the auth routes.
type Sessions interface {
	SessionVerifier
	SignUp(ctx context.Context, form domain.SignUpForm) (identity.Result, error)
	SignIn(ctx context.Context, form domain.SignInForm) (identity.Result, error)
	SignOut(ctx context.Context, sess identity.Session) error
	User(ctx context.Context, sess identity.Session) (domain.Profile, error)
	RequestPasswordReset(ctx context.Context, form domain.ResetForm) error
	UpdatePassword(ctx context.Context, sess identity.Session, form domain.PasswordForm) error
	DeleteAccount(ctx context.Context, sess identity.Session) error
}

// Boards hands out the controller of a signed-in owner.
type Boards interface {
	Open(ctx context.Context, owner string) (*board.Controller, error)
	Drop(owner string)
}

// SettingsStore persists the theme preference.
type SettingsStore interface {
	GetTheme(ctx context.Context, userID string) (domain.Theme, error)
	SaveTheme(ctx context.Context, userID string, theme domain.Theme) error
}

// Deduper remembers idempotency keys of create requests.
type Deduper interface {
	// Add records the key and returns true if it was newly added.
	Add(ctx context.Context, userID, key string) (bool, error)
	// Result returns the response stored for a completed key.
	Result(ctx context.Context, userID, key string) ([]byte, bool, error)
	// Complete stores the response of a key added earlier.
	Complete(ctx context.Context, userID, key string, body []byte) error
	// Remove deletes a key so the caller may retry after a failure.
	Remove(ctx context.Context, userID, key string) error
}

// Deps carries everything Register wires into the routes. Deduper may be nil.
type Deps struct {
	Sessions Sessions
	Boards   Boards
	Settings SettingsStore
	Deduper  Deduper
}
