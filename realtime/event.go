////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package realtime maintains the chat socket: one authenticated websocket
// per session, room membership scoped per conversation, and fan-out of
// inbound events to registered listeners. The socket is a process-wide
// singleton owned by the session; screens only register listeners and
// join/leave rooms.
package realtime

import (
	"encoding/json"

	"gitlab.com/anonymatch/client/models"
)

// Frame is the wire envelope for every socket message in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Event is a decoded inbound socket event as delivered to listeners. Exactly
// one of Message, Notification, and Presence is set, matching Name.
type Event struct {
	Name         string
	MatchID      string
	Message      *models.Message
	Notification *Notification
	Presence     *Presence
}

// Notification is an out-of-band server notification, used for messages in
// conversations the client has not joined and for new match requests.
type Notification struct {
	Type    string           `json:"type"`
	Message string           `json:"message"`
	Data    NotificationData `json:"data"`
}

// NotificationData identifies the conversation and sender a notification is
// about.
type NotificationData struct {
	MatchID  string `json:"matchId"`
	SenderID string `json:"senderId"`
}

// Presence is a user_joined/user_left room event.
type Presence struct {
	MatchID string `json:"matchId"`
	UserID  string `json:"userId"`
}

// authPayload is the data of the first frame sent on a fresh socket.
type authPayload struct {
	Token string `json:"token"`
}

// disconnectPayload is the data of a server disconnect frame.
type disconnectPayload struct {
	Reason string `json:"reason"`
}
