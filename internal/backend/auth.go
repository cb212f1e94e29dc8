package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
)

// Credentials are forwarded verbatim to the backend login view.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResult is the signed-in user plus the backend session it opened.
type LoginResult struct {
	Message string  `json:"message"`
	User    User    `json:"user"`
	Session Session `json:"-"`
}

// Login authenticates against the backend and captures its session cookies.
func (c *Client) Login(ctx context.Context, cred Credentials) (LoginResult, error) {
	data, err := json.Marshal(cred)
	if err != nil {
		return LoginResult{}, errors.Wrap(err, "encode credentials")
	}
	resp, err := c.send(ctx, request{
		method:      http.MethodPost,
		resource:    AuthTarget.Name,
		path:        AuthTarget.action("login"),
		body:        bytes.NewReader(data),
		contentType: "application/json",
	})
	if err != nil {
		return LoginResult{}, err
	}
	defer resp.Body.Close()

	var out LoginResult
	if err := decode(resp, &out); err != nil {
		return LoginResult{}, err
	}
	for _, ck := range resp.Cookies() {
		switch ck.Name {
		case sessionCookie:
			out.Session.ID = ck.Value
		case csrfCookie:
			out.Session.CSRFToken = ck.Value
		}
	}
	if out.Session.ID == "" {
		return LoginResult{}, errors.New("backend login returned no session cookie")
	}
	return out, nil
}

// Logout closes the backend session carried by ctx.
func (c *Client) Logout(ctx context.Context) error {
	return c.jsonRequest(ctx, http.MethodPost, AuthTarget.Name, AuthTarget.action("logout"), nil, nil, nil)
}

// CurrentUser returns the user owning the session in ctx.
func (c *Client) CurrentUser(ctx context.Context) (User, error) {
	var out User
	err := c.jsonRequest(ctx, http.MethodGet, AuthTarget.Name, AuthTarget.action("current-user"), nil, nil, &out)
	return out, err
}
