////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package matching drives the match feed and the pending-match workflow on
// top of the REST client, enforcing the response rules the backend also
// enforces so the client never issues a doomed request.
package matching

import (
	"context"

	"github.com/pkg/errors"

	"gitlab.com/anonymatch/client/models"
	"gitlab.com/anonymatch/client/rest"
)

// ErrNotRecipient is returned when the current user tries to accept or
// decline a match they initiated, or one that is no longer pending. Only the
// non-initiating participant of a pending match may respond.
var ErrNotRecipient = errors.New(
	"only the recipient of a pending match may respond to it")

// Service is the matching workflow for one signed-in user.
type Service struct {
	api    *rest.Client
	selfID string
}

// NewService creates a matching service.
func NewService(api *rest.Client, selfID string) *Service {
	return &Service{api: api, selfID: selfID}
}

// FindNext returns the next candidate from the feed, or rest.ErrNoMatch when
// the feed is exhausted.
func (s *Service) FindNext(ctx context.Context) (*models.Candidate, error) {
	return s.api.FindMatch(ctx)
}

// SendRequest initiates a pending match with the given user.
func (s *Service) SendRequest(ctx context.Context, userID string) error {
	return s.api.RequestMatch(ctx, userID)
}

// History returns every match involving the current user.
func (s *Service) History(ctx context.Context) ([]models.Match, error) {
	return s.api.MatchHistory(ctx, s.selfID)
}

// HistorySplit is the match history bucketed for display: requests awaiting
// the current user's response, requests they sent that are still pending,
// and established matches.
type HistorySplit struct {
	PendingReceived []models.Match
	PendingSent     []models.Match
	Accepted        []models.Match
}

// SplitHistory fetches the history and buckets it. Matches in any other
// status (declined, expired) are dropped; the app never shows them.
func (s *Service) SplitHistory(ctx context.Context) (HistorySplit, error) {
	matches, err := s.History(ctx)
	if err != nil {
		return HistorySplit{}, err
	}

	var split HistorySplit
	for _, m := range matches {
		switch {
		case m.CanRespond(s.selfID):
			split.PendingReceived = append(split.PendingReceived, m)
		case m.Status == models.MatchPending:
			split.PendingSent = append(split.PendingSent, m)
		case m.Status == models.MatchAccepted:
			split.Accepted = append(split.Accepted, m)
		}
	}
	return split, nil
}

// Accept accepts a pending match. Returns ErrNotRecipient without issuing a
// request when the current user is not allowed to respond.
func (s *Service) Accept(ctx context.Context, m models.Match) error {
	if !m.CanRespond(s.selfID) {
		return ErrNotRecipient
	}
	return s.api.AcceptMatch(ctx, m.ID)
}

// Decline declines a pending match, under the same rule as Accept.
func (s *Service) Decline(ctx context.Context, m models.Match) error {
	if !m.CanRespond(s.selfID) {
		return ErrNotRecipient
	}
	return s.api.DeclineMatch(ctx, m.ID)
}
