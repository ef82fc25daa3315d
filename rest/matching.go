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

// ErrNoMatch is returned by FindMatch when the feed has nobody new to offer.
var ErrNoMatch = errors.New("no match available")

// rawMatch is a match record as the backend actually sends it. The feed is
// not consistently shaped: users is sometimes absent in favor of a
// pre-derived otherUser, and the id field varies.
type rawMatch struct {
	MongoID   string        `json:"_id"`
	AltID     string        `json:"id"`
	Status    string        `json:"status"`
	Initiator models.User   `json:"initiator"`
	Users     []models.User `json:"users"`
	OtherUser models.User   `json:"otherUser"`
}

// normalizeMatch converts a raw feed entry into the single Match shape the
// rest of the client consumes. OtherUser is derived from the users array
// when present (the participant that is not selfID), falling back to the
// backend's own otherUser field.
func normalizeMatch(raw rawMatch, selfID string) models.Match {
	m := models.Match{
		ID:        raw.MongoID,
		Status:    raw.Status,
		Initiator: raw.Initiator,
		Users:     raw.Users,
		OtherUser: raw.OtherUser,
	}
	if m.ID == "" {
		m.ID = raw.AltID
	}
	for _, u := range raw.Users {
		if u.ID != selfID {
			m.OtherUser = u
			break
		}
	}
	return m
}

// FindMatch asks the matching feed for the next candidate. Returns ErrNoMatch
// when the feed is exhausted.
func (c *Client) FindMatch(ctx context.Context) (*models.Candidate, error) {
	resp := struct {
		Match *models.Candidate `json:"match"`
	}{}
	if err := c.get(ctx, "/api/matching/find", &resp); err != nil {
		return nil, errors.WithMessage(err, "match search failed")
	}
	if resp.Match == nil || resp.Match.ID == "" {
		return nil, ErrNoMatch
	}
	return resp.Match, nil
}

// RequestMatch sends a match request to the given user.
func (c *Client) RequestMatch(ctx context.Context, userID string) error {
	if err := c.post(
		ctx, "/api/matching/request/"+userID, nil, nil); err != nil {
		return errors.WithMessagef(err,
			"failed to request match with %s", userID)
	}
	return nil
}

// AcceptMatch accepts a pending match. The backend enforces that only the
// non-initiating participant may do this; callers gate the affordance with
// models.Match.CanRespond.
func (c *Client) AcceptMatch(ctx context.Context, matchID string) error {
	if err := c.post(
		ctx, "/api/matching/accept/"+matchID, nil, nil); err != nil {
		return errors.WithMessagef(err, "failed to accept match %s", matchID)
	}
	return nil
}

// DeclineMatch declines a pending match.
func (c *Client) DeclineMatch(ctx context.Context, matchID string) error {
	if err := c.post(
		ctx, "/api/matching/decline/"+matchID, nil, nil); err != nil {
		return errors.WithMessagef(err, "failed to decline match %s", matchID)
	}
	return nil
}

// MatchHistory fetches all matches involving the current user, normalized.
func (c *Client) MatchHistory(ctx context.Context, selfID string) (
	[]models.Match, error) {
	resp := struct {
		Matches []rawMatch `json:"matches"`
	}{}
	if err := c.get(ctx, "/api/matching/history", &resp); err != nil {
		return nil, errors.WithMessage(err, "failed to fetch match history")
	}

	matches := make([]models.Match, 0, len(resp.Matches))
	for _, raw := range resp.Matches {
		matches = append(matches, normalizeMatch(raw, selfID))
	}
	return matches, nil
}
