////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package models

// Match statuses. A match is created pending by the initiator and either
// accepted or removed by the other participant.
const (
	MatchPending  = "pending"
	MatchAccepted = "accepted"
)

// Match is a pairing record between exactly two users. It is produced by
// normalization at the fetch boundary, so OtherUser is always populated and
// always refers to the participant that is not the current user.
type Match struct {
	ID        string
	Status    string
	Initiator User
	Users     []User
	OtherUser User
}

// IsParticipant reports whether the given user is one of the two sides of
// the match.
func (m Match) IsParticipant(userID string) bool {
	for _, u := range m.Users {
		if u.ID == userID {
			return true
		}
	}
	// Tolerate feeds that omit the users array; the other side being known
	// implies the current user is the remaining participant.
	return len(m.Users) == 0 && m.OtherUser.ID != "" && m.OtherUser.ID != userID
}

// CanRespond reports whether the given user may accept or decline the match.
// Only the non-initiating participant of a pending match may act.
func (m Match) CanRespond(userID string) bool {
	return m.Status == MatchPending &&
		m.Initiator.ID != userID &&
		m.IsParticipant(userID)
}
