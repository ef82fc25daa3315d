////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package rest

import (
	"context"
	"regexp"

	"github.com/pkg/errors"

	"gitlab.com/anonymatch/client/models"
)

var (
	emailRegex     = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	birthDateRegex = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// LoginRequest is the payload for POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate rejects incomplete credentials before any request is issued.
func (r LoginRequest) Validate() error {
	if r.Email == "" || r.Password == "" {
		return errors.New("email and password are required")
	}
	return nil
}

// RegisterRequest is the payload for POST /api/auth/register.
type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	BirthDate string `json:"birthDate"`
}

// Validate rejects malformed registrations client side, before any request
// is issued.
func (r RegisterRequest) Validate() error {
	if r.Email == "" || r.Password == "" || r.FirstName == "" ||
		r.LastName == "" || r.BirthDate == "" {
		return errors.New("all registration fields are required")
	}
	if !emailRegex.MatchString(r.Email) {
		return errors.Errorf("invalid email address %q", r.Email)
	}
	if !birthDateRegex.MatchString(r.BirthDate) {
		return errors.Errorf(
			"invalid birth date %q, expected YYYY-MM-DD", r.BirthDate)
	}
	return nil
}

// AuthResponse is returned by both login and registration.
type AuthResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

// Login authenticates with email and password and returns the session token
// and user.
func (c *Client) Login(ctx context.Context, req LoginRequest) (
	*AuthResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	resp := &AuthResponse{}
	if err := c.post(ctx, "/api/auth/login", req, resp); err != nil {
		return nil, errors.WithMessage(err, "login failed")
	}
	return resp, nil
}

// Register creates an account and returns the session token and user.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (
	*AuthResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	resp := &AuthResponse{}
	if err := c.post(ctx, "/api/auth/register", req, resp); err != nil {
		return nil, errors.WithMessage(err, "registration failed")
	}
	return resp, nil
}
