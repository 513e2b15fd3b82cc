package gateway

import (
	"context"
	"net/http"

	"taskboard/internal/model"
)

// Session is what the gateway answers to a sign-in. Token is empty when the
// session was read back with CurrentSession.
type Session struct {
	Token   string         `json:"token,omitempty"`
	User    model.User     `json:"user"`
	Profile *model.Profile `json:"profile,omitempty"`
}

// SignUp creates the account. The gateway creates the profile; the client never does.
// On success the returned token is installed.
func (c *Client) SignUp(ctx context.Context, email, password, displayName string) (*Session, error) {
	in := map[string]string{"email": email, "password": password}
	if displayName != "" {
		in["display_name"] = displayName
	}

	var s Session
	if err := c.send(ctx, c.anon, http.MethodPost, c.endpoint("/auth/signup", nil), in, &s); err != nil {
		return nil, err
	}
	c.SetToken(s.Token)
	return &s, nil
}

// SignIn exchanges credentials for a token and installs it.
func (c *Client) SignIn(ctx context.Context, email, password string) (*Session, error) {
	in := map[string]string{"email": email, "password": password}

	var s Session
	if err := c.send(ctx, c.anon, http.MethodPost, c.endpoint("/auth/login", nil), in, &s); err != nil {
		return nil, err
	}
	c.SetToken(s.Token)
	return &s, nil
}

// CurrentSession asks the gateway who the installed token belongs to.
func (c *Client) CurrentSession(ctx context.Context) (*Session, error) {
	var s Session
	if err := c.call(ctx, http.MethodGet, "/auth/session", nil, nil, &s); err != nil {
		return nil, err
	}
	s.Token = c.Token()
	return &s, nil
}

// SignOut forgets the token. Tokens are stateless, so there is nothing to revoke remotely.
func (c *Client) SignOut() {
	c.SetToken("")
}
