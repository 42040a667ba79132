// Package identity implements sign-up, sign-in, sessions, password recovery
// and account deletion.
package identity

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"taskboard/domain"
)

const defaultResetPath = "/reset-password"

// AccountStore keeps credentials keyed by email.
type AccountStore interface {
	InsertAccount(ctx context.Context, a domain.Account) error
	GetAccount(ctx context.Context, email string) (domain.Account, error)
	UpdatePasswordHash(ctx context.Context, email, hash string) error
	DeleteAccount(ctx context.Context, email string) error
}

// ProfileStore keeps the public profile row of each user.
type ProfileStore interface {
	UpsertProfile(ctx context.Context, p domain.Profile) error
	GetProfile(ctx context.Context, userID string) (domain.Profile, error)
	DeleteProfile(ctx context.Context, userID string) error
}

// TaskPurger removes every task row of an owner.
type TaskPurger interface {
	DeleteOwnerTasks(ctx context.Context, owner string) (int, error)
}

// CommandQueue hands commands to the remote account procedures.
type CommandQueue interface {
	EnqueueCommand(ctx context.Context, cmd domain.Command) error
	EnqueueMail(ctx context.Context, cmd domain.Command) error
}

// Revoker tracks signed-out tokens.
type Revoker interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	Revoked(ctx context.Context, tokenID string) (bool, error)
}

// Config holds token lifetimes and the default recovery link target.
type Config struct {
	SessionTTL    time.Duration
	ResetTokenTTL time.Duration
	ResetURL      string
	BcryptCost    int
}

// Result is returned by sign-up and sign-in.
type Result struct {
	Token   string         `json:"access_token"`
	Session Session        `json:"session"`
	Profile domain.Profile `json:"user"`
}

// Service is safe for concurrent use.
type Service struct {
	accounts AccountStore
	profiles ProfileStore
	tasks    TaskPurger
	queue    CommandQueue
	revoker  Revoker
	tokens   *Tokens
	cfg      Config
	logger   *log.Logger
	now      func() time.Time
}

// NewService wires the authentication surface.
func NewService(accounts AccountStore, profiles ProfileStore, tasks TaskPurger, queue CommandQueue, revoker Revoker, tokens *Tokens, cfg Config, logger *log.Logger) *Service {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = time.Hour
	}
	if cfg.ResetTokenTTL <= 0 {
		cfg.ResetTokenTTL = 15 * time.Minute
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Service{
		accounts: accounts,
		profiles: profiles,
		tasks:    tasks,
		queue:    queue,
		revoker:  revoker,
		tokens:   tokens,
		cfg:      cfg,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

var errInvalidCredentials = &domain.AuthError{Reason: "Invalid login credentials"}

// SignUp registers a new account and its profile and starts a session.
func (s *Service) SignUp(ctx context.Context, form domain.SignUpForm) (Result, error) {
	if err := form.Validate(); err != nil {
		return Result{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(form.Password), s.cfg.BcryptCost)
	if err != nil {
		return Result{}, err
	}
	now := s.now()
	acct := domain.Account{
		UserID:       uuid.NewString(),
		Email:        domain.NormalizeEmail(form.Email),
		PasswordHash: string(hash),
		CreatedAt:    now,
	}
	if err := s.accounts.InsertAccount(ctx, acct); err != nil {
		return Result{}, err
	}
	profile := domain.Profile{
		UserID:    acct.UserID,
		Email:     acct.Email,
		FullName:  strings.TrimSpace(form.FullName),
		Username:  strings.TrimSpace(form.Username),
		CreatedAt: now,
	}
	if err := s.profiles.UpsertProfile(ctx, profile); err != nil {
		return Result{}, err
	}
	s.logger.WithField("user", acct.UserID).Info("account created")
	return s.startSession(acct, profile)
}

// SignIn checks the password and starts a session.
func (s *Service) SignIn(ctx context.Context, form domain.SignInForm) (Result, error) {
	if err := form.Validate(); err != nil {
		return Result{}, err
	}
	acct, err := s.accounts.GetAccount(ctx, form.Email)
	if domain.IsNotFound(err) {
		return Result{}, errInvalidCredentials
	}
	if err != nil {
		return Result{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(form.Password)); err != nil {
		return Result{}, errInvalidCredentials
	}
	profile, err := s.profiles.GetProfile(ctx, acct.UserID)
	if err != nil && !domain.IsNotFound(err) {
		return Result{}, err
	}
	if domain.IsNotFound(err) {
		profile = domain.Profile{UserID: acct.UserID, Email: acct.Email, CreatedAt: acct.CreatedAt}
	}
	return s.startSession(acct, profile)
}

func (s *Service) startSession(acct domain.Account, profile domain.Profile) (Result, error) {
	token, sess, err := s.tokens.Issue(acct.UserID, acct.Email, PurposeSession, s.cfg.SessionTTL)
	if err != nil {
		return Result{}, err
	}
	return Result{Token: token, Session: sess, Profile: profile}, nil
}

// Authenticate resolves a bearer token to a live session.
func (s *Service) Authenticate(ctx context.Context, token string) (Session, error) {
	sess, err := s.tokens.Verify(token)
	if err != nil {
		return Session{}, &domain.AuthError{Reason: err.Error()}
	}
	if sess.TokenID != "" {
		revoked, err := s.revoker.Revoked(ctx, sess.TokenID)
		if err != nil {
			return Session{}, &domain.NetworkError{Op: "check session", Err: err}
		}
		if revoked {
			return Session{}, &domain.AuthError{Reason: "session has ended"}
		}
	}
	return sess, nil
}

// SignOut revokes the session token.
func (s *Service) SignOut(ctx context.Context, sess Session) error {
	return s.revoker.Revoke(ctx, sess.TokenID, sess.ExpiresAt.Sub(s.now()))
}

// User returns the profile of the session owner.
func (s *Service) User(ctx context.Context, sess Session) (domain.Profile, error) {
	return s.profiles.GetProfile(ctx, sess.UserID)
}

// RequestPasswordReset mails a recovery link when the address is registered.
// Unknown addresses succeed silently.
func (s *Service) RequestPasswordReset(ctx context.Context, form domain.ResetForm) error {
	if err := form.Validate(); err != nil {
		return err
	}
	acct, err := s.accounts.GetAccount(ctx, form.Email)
	if domain.IsNotFound(err) {
		s.logger.WithField("email", domain.NormalizeEmail(form.Email)).Debug("password reset for unknown address")
		return nil
	}
	if err != nil {
		return err
	}
	token, _, err := s.tokens.Issue(acct.UserID, acct.Email, PurposeRecovery, s.cfg.ResetTokenTTL)
	if err != nil {
		return err
	}
	link, err := s.resetLink(form.RedirectTo, token)
	if err != nil {
		return err
	}
	data, err := sonic.Marshal(domain.ResetMail{Email: acct.Email, Link: link})
	if err != nil {
		return err
	}
	return s.queue.EnqueueMail(ctx, domain.Command{
		ID:        uuid.NewString(),
		Type:      domain.CommandPasswordReset,
		UserID:    acct.UserID,
		Data:      data,
		Timestamp: s.now().UnixMilli(),
	})
}

func (s *Service) resetLink(redirectTo, token string) (string, error) {
	target := redirectTo
	if target == "" {
		target = strings.TrimRight(s.cfg.ResetURL, "/") + defaultResetPath
	}
	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", &domain.ValidationError{Fields: map[string]string{"redirectTo": "Redirect target is invalid"}}
	}
	u.Fragment = ""
	return u.String() + "#access_token=" + url.QueryEscape(token) + "&type=" + PurposeRecovery, nil
}

// UpdatePassword sets a new password for the session owner. A recovery
// session is consumed by the change.
func (s *Service) UpdatePassword(ctx context.Context, sess Session, form domain.PasswordForm) error {
	if err := form.Validate(); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(form.Password), s.cfg.BcryptCost)
	if err != nil {
		return err
	}
	if err := s.accounts.UpdatePasswordHash(ctx, sess.Email, string(hash)); err != nil {
		return err
	}
	if sess.Purpose == PurposeRecovery {
		if err := s.SignOut(ctx, sess); err != nil {
			s.logger.WithError(err).WithField("user", sess.UserID).Warn("failed to revoke recovery token")
		}
	}
	return nil
}

// DeleteAccount removes the owner's tasks, then the profile, then asks the
// account procedure to delete the credentials, and finally signs out. Only
// the first two steps can fail the call.
func (s *Service) DeleteAccount(ctx context.Context, sess Session) error {
	if sess.UserID == "" {
		return &domain.AuthError{Reason: "No user logged in"}
	}
	entry := s.logger.WithField("user", sess.UserID)
	n, err := s.tasks.DeleteOwnerTasks(ctx, sess.UserID)
	if err != nil {
		return err
	}
	if err := s.profiles.DeleteProfile(ctx, sess.UserID); err != nil {
		return err
	}
	data, err := sonic.Marshal(deleteUserData{Email: sess.Email})
	if err == nil {
		err = s.queue.EnqueueCommand(ctx, domain.Command{
			ID:        uuid.NewString(),
			Type:      domain.CommandDeleteUser,
			UserID:    sess.UserID,
			Data:      data,
			Timestamp: s.now().UnixMilli(),
		})
	}
	if err != nil {
		entry.WithError(err).Error("error deleting user")
	}
	if err := s.SignOut(ctx, sess); err != nil {
		entry.WithError(err).Warn("failed to revoke session after account deletion")
	}
	entry.WithField("tasks", n).Info("account deleted")
	return nil
}

type deleteUserData struct {
	Email string `json:"email"`
}
