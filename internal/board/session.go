package board

import (
	"context"
	"errors"
	"strings"
	"sync"

	"taskboard/internal/gateway"
	"taskboard/internal/model"

	"github.com/google/uuid"
)

// Identity is the signed-in user.
type Identity struct {
	UserID  uuid.UUID
	Email   string
	Token   string
	Profile *model.Profile
}

// Name is the display name, or the email when the profile is missing.
func (i *Identity) Name() string {
	if i.Profile != nil {
		return i.Profile.Name()
	}
	return i.Email
}

// Authenticator is the auth half of the gateway. *gateway.Client implements it.
type Authenticator interface {
	SignUp(ctx context.Context, email, password, displayName string) (*gateway.Session, error)
	SignIn(ctx context.Context, email, password string) (*gateway.Session, error)
	CurrentSession(ctx context.Context) (*gateway.Session, error)
	SignOut()
}

// Session holds who is signed in and tells observers when that changes.
type Session struct {
	auth Authenticator

	mu      sync.RWMutex
	current *Identity
	version uint64

	observers emitter[*Identity]
}

var _ Identities = (*Session)(nil)

func NewSession(auth Authenticator) *Session {
	return &Session{auth: auth}
}

// Init asks the gateway for the current session once. A missing or rejected
// token leaves the session signed out without error.
func (s *Session) Init(ctx context.Context) error {
	gs, err := s.auth.CurrentSession(ctx)
	switch {
	case err == nil:
		s.set(identityOf(gs))
		return nil
	case errors.Is(err, gateway.ErrNoToken), gateway.IsUnauthorized(err):
		s.auth.SignOut()
		s.set(nil)
		return nil
	default:
		return err
	}
}

func (s *Session) SignUp(ctx context.Context, email, password, displayName string) (*Identity, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, errors.New("email and password are required")
	}

	gs, err := s.auth.SignUp(ctx, email, password, strings.TrimSpace(displayName))
	if err != nil {
		return nil, err
	}
	id := identityOf(gs)
	s.set(id)
	return id, nil
}

func (s *Session) SignIn(ctx context.Context, email, password string) (*Identity, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, errors.New("email and password are required")
	}

	gs, err := s.auth.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	id := identityOf(gs)
	s.set(id)
	return id, nil
}

func (s *Session) SignOut() {
	s.auth.SignOut()
	s.set(nil)
}

// Current returns a copy of the signed-in identity, or nil.
func (s *Session) Current() *Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	id := *s.current
	return &id
}

// OnChange registers fn for sign-in, sign-up and sign-out. fn receives nil on sign-out.
func (s *Session) OnChange(fn func(*Identity)) (cancel func()) {
	return s.observers.add(fn)
}

func (s *Session) set(id *Identity) {
	s.mu.Lock()
	s.current = id
	s.version++
	version := s.version
	s.mu.Unlock()

	var out *Identity
	if id != nil {
		cp := *id
		out = &cp
	}
	s.observers.emit(version, out)
}

func identityOf(gs *gateway.Session) *Identity {
	return &Identity{
		UserID:  gs.User.ID,
		Email:   gs.User.Email,
		Token:   gs.Token,
		Profile: gs.Profile,
	}
}
