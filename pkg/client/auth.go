package client

import (
	"context"
	"net/http"
)

// SignUp creates an account and signs in. The returned token is used for
// all later requests.
func (c *Client) SignUp(ctx context.Context, email, password string) (*AuthResponse, error) {
	var result AuthResponse
	req := SignUpRequest{Email: email, Password: password}
	if err := c.call(ctx, http.MethodPost, "/api/auth/signup", nil, req, &result); err != nil {
		return nil, err
	}
	c.SetAuthToken(result.Token)
	return &result, nil
}

// SignIn authenticates an existing user. It returns once the server loaded
// the workspace or gave up; AuthResponse.Status tells which.
func (c *Client) SignIn(ctx context.Context, email, password string) (*AuthResponse, error) {
	var result AuthResponse
	req := SignInRequest{Email: email, Password: password}
	if err := c.call(ctx, http.MethodPost, "/api/auth/signin", nil, req, &result); err != nil {
		return nil, err
	}
	c.SetAuthToken(result.Token)
	return &result, nil
}

// SignOut ends the session and forgets the token.
func (c *Client) SignOut(ctx context.Context) error {
	if err := c.call(ctx, http.MethodPost, "/api/auth/signout", nil, nil, nil); err != nil {
		return err
	}
	c.SetAuthToken("")
	return nil
}

func (c *Client) Refresh(ctx context.Context) (*AuthResponse, error) {
	var result AuthResponse
	if err := c.call(ctx, http.MethodPost, "/api/auth/refresh", nil, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) Me(ctx context.Context) (*User, error) {
	var result User
	if err := c.call(ctx, http.MethodGet, "/api/auth/me", nil, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) ResetPassword(ctx context.Context, email string) error {
	return c.call(ctx, http.MethodPost, "/api/auth/reset-password", nil, ResetPasswordRequest{Email: email}, nil)
}

func (c *Client) ConfirmPasswordReset(ctx context.Context, token, password string) error {
	req := ConfirmResetRequest{Token: token, Password: password}
	return c.call(ctx, http.MethodPost, "/api/auth/reset-password/confirm", nil, req, nil)
}
