////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package models

import "time"

// Message is one chat message. IDs are unique within a conversation; the
// same message may be delivered both by a history fetch and by the realtime
// channel, and consumers collapse duplicates by ID.
type Message struct {
	ID        string    `json:"_id"`
	MatchID   string    `json:"matchId"`
	SenderID  string    `json:"senderId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Before reports whether m was created strictly before other. Messages
// within one conversation are totally ordered by creation time, with the ID
// as a tiebreak so the order is stable across clients.
func (m Message) Before(other Message) bool {
	if m.CreatedAt.Equal(other.CreatedAt) {
		return m.ID < other.ID
	}
	return m.CreatedAt.Before(other.CreatedAt)
}
