// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"context"
	"errors"
	"net/http"
)

// ErrNoToken is returned when an auth endpoint answers without a credential.
var ErrNoToken = errors.New("login response did not contain a token")

// Login exchanges credentials for an access token.
func (c *Client) Login(ctx context.Context, email, password string) (*TokenResponse, error) {
	var tok TokenResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/auth/login",
		body:   LoginRequest{Email: email, Password: password},
		out:    &tok,
	})
	if err != nil {
		return nil, err
	}
	if tok.AccessToken == "" {
		return nil, ErrNoToken
	}
	return &tok, nil
}

// Signup registers a new account and returns its first access token.
func (c *Client) Signup(ctx context.Context, req SignupRequest) (*TokenResponse, error) {
	var tok TokenResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/auth/signup",
		body:   req,
		out:    &tok,
	})
	if err != nil {
		return nil, err
	}
	if tok.AccessToken == "" {
		return nil, ErrNoToken
	}
	return &tok, nil
}

// Profile returns the account behind the current credential.
func (c *Client) Profile(ctx context.Context) (*Profile, error) {
	var p Profile
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/users/me", out: &p}); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProfile changes the account's age, region or care target and
// returns the updated profile.
func (c *Client) UpdateProfile(ctx context.Context, update ProfileUpdate) (*Profile, error) {
	var p Profile
	err := c.do(ctx, request{method: http.MethodPut, path: "/api/users/me", body: update, out: &p})
	if err != nil {
		return nil, err
	}
	return &p, nil
}
