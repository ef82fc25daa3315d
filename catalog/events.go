////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package catalog lists the wire-level event names shared between the client
// and the AnonyMatch backend. Pulling event names should always use the
// constants defined here.
package catalog

// Client to server socket events.
const (
	// Auth is the first frame sent on a fresh socket; its data is the bearer
	// token used for the REST API.
	Auth = "auth"

	// JoinChat scopes delivery of NewMessage events to one conversation. Its
	// data is the match ID of the conversation.
	JoinChat = "join_chat"

	// LeaveChat reverses JoinChat.
	LeaveChat = "leave_chat"
)

// Server to client socket events.
const (
	// NewMessage carries a single chat message.
	NewMessage = "new_message"

	// NewNotification carries an out-of-band notification (new message in an
	// unjoined room, new match request, etc).
	NewNotification = "new_notification"

	// UserJoined and UserLeft are presence events for a joined room.
	UserJoined = "user_joined"
	UserLeft   = "user_left"

	// Disconnect is sent by the server before it force-closes the transport.
	Disconnect = "disconnect"
)

// Notification types carried inside a NewNotification payload.
const (
	NotifyNewMessage = "new_message"
	NotifyNewMatch   = "new_match"
)

// Disconnect reasons. Only a server initiated disconnect triggers automatic
// reconnection; a client initiated one means the session is over.
const (
	ReasonServerDisconnect = "io server disconnect"
	ReasonClientDisconnect = "io client disconnect"
)

// Wildcards for listener registration. Think of them as "no conversation in
// particular" and "no event in particular".
const (
	AnyConversation = ""
	AnyEvent        = ""
)
