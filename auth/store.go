// Package auth implements the single-seat session store. Credential checks
// are simulated: there is no user database, a well-formed login simply
// synthesizes the session user.
package auth

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"taskboard-api/domain"
)

// ValidationError reports rejected login or signup input.
type ValidationError string

func (e ValidationError) Error() string { return string(e) }

const (
	errCredentialsRequired ValidationError = "email and password are required"
	errAllFieldsRequired   ValidationError = "all fields are required"
	errPasswordTooShort    ValidationError = "password must be at least 6 characters"
	errInvalidEmail        ValidationError = "please enter a valid email address"
)

var emailPattern = regexp.MustCompile(`\S+@\S+\.\S+`)

// Documents is the persistence surface for the session document.
type Documents interface {
	LoadAuth(ctx context.Context) (domain.AuthState, error)
	SaveAuth(ctx context.Context, state domain.AuthState) error
}

// Store owns the persisted session. Login and signup wait out a configurable
// simulated latency to emulate a round-trip to a real credential backend.
type Store struct {
	store    Documents
	secret   []byte
	latency  time.Duration
	tokenTTL time.Duration
	now      func() time.Time
	newID    func() string
}

// Option configures a Store.
type Option func(*Store)

// WithLatency sets the simulated network latency for login and signup.
func WithLatency(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.latency = d
		}
	}
}

// WithTokenTTL sets the session token lifetime.
func WithTokenTTL(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.tokenTTL = d
		}
	}
}

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDSource overrides the id generator, for tests.
func WithIDSource(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

// NewStore creates a session store. secret signs session tokens; with an
// empty secret sessions are persisted but no token is issued.
func NewStore(store Documents, secret []byte, opts ...Option) *Store {
	s := &Store{
		store:    store,
		secret:   secret,
		tokenTTL: 24 * time.Hour,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Session is the outcome of a successful login or signup.
type Session struct {
	User  domain.User `json:"user"`
	Token string      `json:"token,omitempty"`
}

// Login validates the credentials, synthesizes the session user from the
// email local part, and persists the session. Failed validation leaves the
// persisted state untouched.
func (s *Store) Login(ctx context.Context, email, password string) (Session, error) {
	if err := s.simulateLatency(ctx); err != nil {
		return Session{}, err
	}
	if email == "" || password == "" {
		return Session{}, errCredentialsRequired
	}
	if len(password) < 6 {
		return Session{}, errPasswordTooShort
	}
	name := email
	if at := strings.IndexByte(email, '@'); at >= 0 {
		name = email[:at]
	}
	return s.openSession(ctx, email, name)
}

// Signup validates the fields and persists a fresh session.
func (s *Store) Signup(ctx context.Context, email, password, name string) (Session, error) {
	if err := s.simulateLatency(ctx); err != nil {
		return Session{}, err
	}
	if email == "" || password == "" || name == "" {
		return Session{}, errAllFieldsRequired
	}
	if len(password) < 6 {
		return Session{}, errPasswordTooShort
	}
	if !emailPattern.MatchString(email) {
		return Session{}, errInvalidEmail
	}
	return s.openSession(ctx, email, name)
}

// Logout clears the persisted session.
func (s *Store) Logout(ctx context.Context) error {
	return s.store.SaveAuth(ctx, domain.AuthState{})
}

// CurrentUser returns the session user, or nil when logged out.
func (s *Store) CurrentUser(ctx context.Context) (*domain.User, error) {
	state, err := s.store.LoadAuth(ctx)
	if err != nil {
		return nil, err
	}
	return state.User, nil
}

// IsAuthenticated reports whether a session is active.
func (s *Store) IsAuthenticated(ctx context.Context) (bool, error) {
	state, err := s.store.LoadAuth(ctx)
	if err != nil {
		return false, err
	}
	return state.IsAuthenticated, nil
}

// UserUpdate carries partial user updates; nil fields are left untouched.
type UserUpdate struct {
	Email  *string `json:"email,omitempty"`
	Name   *string `json:"name,omitempty"`
	Avatar *string `json:"avatar,omitempty"`
}

// UpdateUser merges the partial update into the session user. It returns nil
// without error when no session is active.
func (s *Store) UpdateUser(ctx context.Context, update UserUpdate) (*domain.User, error) {
	state, err := s.store.LoadAuth(ctx)
	if err != nil {
		return nil, err
	}
	if state.User == nil {
		return nil, nil
	}
	user := *state.User
	if update.Email != nil {
		user.Email = *update.Email
	}
	if update.Name != nil {
		user.Name = *update.Name
	}
	if update.Avatar != nil {
		user.Avatar = *update.Avatar
	}
	state.User = &user
	if err := s.store.SaveAuth(ctx, state); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) openSession(ctx context.Context, email, name string) (Session, error) {
	user := domain.User{
		ID:        "user-" + s.newID(),
		Email:     email,
		Name:      name,
		CreatedAt: s.now().UTC(),
	}
	state := domain.AuthState{User: &user, IsAuthenticated: true}
	if err := s.store.SaveAuth(ctx, state); err != nil {
		return Session{}, err
	}
	sess := Session{User: user}
	if len(s.secret) > 0 {
		token, err := s.signToken(user)
		if err != nil {
			return Session{}, err
		}
		sess.Token = token
	}
	return sess, nil
}

func (s *Store) signToken(user domain.User) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
		"name":  user.Name,
		"iat":   now.Unix(),
		"nbf":   now.Unix(),
		"exp":   now.Add(s.tokenTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *Store) simulateLatency(ctx context.Context) error {
	if s.latency <= 0 {
		return nil
	}
	timer := time.NewTimer(s.latency)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
