////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package models

// Conversation is the summary of one message thread, as shown in the
// conversation list. One exists per accepted match with at least one message.
type Conversation struct {
	MatchID     string
	OtherUser   User
	LastMessage Message
	UnreadCount int

	// Unread is the client-local unread flag. It is seeded from UnreadCount
	// at fetch time and maintained by the conversation tracker afterwards.
	Unread bool
}

// HasUnread derives the unread flag from the server-side count. A count of
// self-sent messages never flags the conversation.
func (c Conversation) HasUnread(selfID string) bool {
	return c.UnreadCount > 0 && c.LastMessage.SenderID != selfID
}
