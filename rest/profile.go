////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package rest

import (
	"context"

	"github.com/pkg/errors"

	"gitlab.com/anonymatch/client/models"
)

// ProfileUpdate carries the editable profile fields. Zero-valued fields are
// omitted so a partial update does not clear the rest of the profile.
type ProfileUpdate struct {
	FirstName      string   `json:"firstName,omitempty"`
	LastName       string   `json:"lastName,omitempty"`
	Bio            string   `json:"bio,omitempty"`
	Interests      []string `json:"interests,omitempty"`
	ProfilePicture string   `json:"profilePicture,omitempty"`
}

// Profile fetches the current user's profile.
func (c *Client) Profile(ctx context.Context) (*models.User, error) {
	user := &models.User{}
	if err := c.get(ctx, "/api/profile", user); err != nil {
		return nil, errors.WithMessage(err, "failed to fetch profile")
	}
	return user, nil
}

// UpdateProfile applies the given profile changes and returns the updated
// profile.
func (c *Client) UpdateProfile(ctx context.Context, update ProfileUpdate) (
	*models.User, error) {
	user := &models.User{}
	if err := c.put(ctx, "/api/profile/update", update, user); err != nil {
		return nil, errors.WithMessage(err, "failed to update profile")
	}
	return user, nil
}

// UserByID fetches another user's public profile.
func (c *Client) UserByID(ctx context.Context, userID string) (
	*models.User, error) {
	user := &models.User{}
	if err := c.get(ctx, "/api/users/"+userID, user); err != nil {
		return nil, errors.WithMessagef(err, "failed to fetch user %s", userID)
	}
	return user, nil
}
