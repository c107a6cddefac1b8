package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"command-center/internal/model"
)

type LoginResult struct {
	AccessToken  string
	RefreshToken string
	User         *model.UserProfile

	// ExpiresAt is the access token's exp claim, zero when it has none.
	ExpiresAt time.Time
}

type loginResponse struct {
	tokenResponse
	User *model.UserProfile `json:"user"`
}

// Login posts the credentials. It does not touch the token store; the
// caller decides where the tokens go.
func (c *Client) Login(ctx context.Context, email string, password string, device string) (LoginResult, error) {
	var out loginResponse
	resp, err := c.api.R().
		SetContext(WithoutRefresh(ctx)).
		SetBody(map[string]string{
			"email":    email,
			"password": password,
			"device":   device,
		}).
		SetResult(&out).
		Post(LoginPath)
	if err != nil {
		return LoginResult{}, fmt.Errorf("login request: %w", err)
	}
	if resp.IsError() {
		return LoginResult{}, newStatusError(resp.StatusCode(), resp.Body())
	}

	result := LoginResult{
		AccessToken:  out.token(),
		RefreshToken: out.RefreshToken,
		User:         out.User,
	}
	if exp, ok := TokenExpiry(result.AccessToken); ok {
		result.ExpiresAt = exp
	}
	return result, nil
}

// Refresh rotates the access token, sharing the flight with any refresh
// the transport is already running.
func (c *Client) Refresh(ctx context.Context) (string, error) {
	return c.refreshAfter(ctx, c.refreshGeneration())
}

// Logout tells the backend to revoke the refresh token. It does not clear
// the local tokens.
func (c *Client) Logout(ctx context.Context) error {
	req := c.api.R().SetContext(WithoutRefresh(ctx))
	if refreshToken := c.tokens.RefreshToken(ctx); refreshToken != "" {
		req.SetQueryParam("refreshToken", refreshToken)
	}

	resp, err := req.Post(LogoutPath)
	if err != nil {
		return fmt.Errorf("logout request: %w", err)
	}
	if resp.IsError() {
		return newStatusError(resp.StatusCode(), resp.Body())
	}
	return nil
}

// Me fetches the profile of the token's owner.
func (c *Client) Me(ctx context.Context) (*model.UserProfile, error) {
	resp, err := c.api.R().SetContext(ctx).Get(MePath)
	if err != nil {
		return nil, fmt.Errorf("profile request: %w", err)
	}
	if resp.IsError() {
		return nil, newStatusError(resp.StatusCode(), resp.Body())
	}

	profile, err := decodeProfile(resp.Body())
	if err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return profile, nil
}

// decodeProfile accepts a bare profile or one wrapped in "user" or "data".
func decodeProfile(body []byte) (*model.UserProfile, error) {
	var direct model.UserProfile
	if err := json.Unmarshal(body, &direct); err != nil {
		return nil, err
	}
	if direct.ID != "" || direct.Email != "" {
		return &direct, nil
	}

	var wrapped struct {
		User *model.UserProfile `json:"user"`
		Data *model.UserProfile `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, err
	}
	if wrapped.User != nil {
		return wrapped.User, nil
	}
	if wrapped.Data != nil {
		return wrapped.Data, nil
	}
	return nil, fmt.Errorf("response carried no profile")
}
