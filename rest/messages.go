////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package rest

import (
	"context"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"gitlab.com/anonymatch/client/models"
)

// ErrEmptyMessage is returned for an empty or whitespace-only send. No
// request is issued.
var ErrEmptyMessage = errors.New("message content is empty")

// rawConversation is a conversation summary as the backend sends it. The
// other participant arrives either as matchInfo or as otherUser depending on
// which side of the bidirectional message record produced the row.
type rawConversation struct {
	MatchID     string         `json:"matchId"`
	MatchInfo   *models.User   `json:"matchInfo"`
	OtherUser   *models.User   `json:"otherUser"`
	LastMessage models.Message `json:"lastMessage"`
	UnreadCount int            `json:"unreadCount"`
}

// Messages fetches the full message history of one conversation, oldest
// first.
func (c *Client) Messages(ctx context.Context, matchID string) (
	[]models.Message, error) {
	var msgs []models.Message
	if err := c.get(ctx, "/api/messages/"+matchID, &msgs); err != nil {
		return nil, errors.WithMessagef(err,
			"failed to fetch messages for match %s", matchID)
	}
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Before(msgs[j])
	})
	return msgs, nil
}

// SendMessage posts one message to a conversation. Empty or whitespace-only
// content is rejected locally with ErrEmptyMessage. The sent message is not
// returned; it arrives through the realtime channel like any other.
func (c *Client) SendMessage(ctx context.Context, matchID, content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyMessage
	}

	body := struct {
		MatchID string `json:"matchId"`
		Content string `json:"content"`
	}{MatchID: matchID, Content: content}

	if err := c.post(ctx, "/api/messages", body, nil); err != nil {
		return errors.WithMessagef(err,
			"failed to send message to match %s", matchID)
	}
	return nil
}

// MarkRead marks every message in the conversation as read by the current
// user.
func (c *Client) MarkRead(ctx context.Context, matchID string) error {
	if err := c.put(
		ctx, "/api/messages/"+matchID+"/read", nil, nil); err != nil {
		return errors.WithMessagef(err,
			"failed to mark match %s read", matchID)
	}
	return nil
}

// Conversations fetches all conversation summaries for the current user,
// normalized: one entry per match ID (keeping the most recent when the raw
// feed contains both directions of the thread), the other participant
// resolved regardless of which side authored the last message, and the list
// ordered most recent first.
func (c *Client) Conversations(ctx context.Context, selfID string) (
	[]models.Conversation, error) {
	var raws []rawConversation
	if err := c.get(ctx, "/api/messages/all", &raws); err != nil {
		return nil, errors.WithMessage(err, "failed to fetch conversations")
	}

	byMatch := make(map[string]models.Conversation, len(raws))
	for _, raw := range raws {
		conv := normalizeConversation(raw, selfID)
		if existing, ok := byMatch[conv.MatchID]; ok &&
			conv.LastMessage.Before(existing.LastMessage) {
			continue
		}
		byMatch[conv.MatchID] = conv
	}

	convs := make([]models.Conversation, 0, len(byMatch))
	for _, conv := range byMatch {
		convs = append(convs, conv)
	}
	sort.SliceStable(convs, func(i, j int) bool {
		return convs[j].LastMessage.Before(convs[i].LastMessage)
	})
	return convs, nil
}

func normalizeConversation(raw rawConversation,
	selfID string) models.Conversation {
	conv := models.Conversation{
		MatchID:     raw.MatchID,
		LastMessage: raw.LastMessage,
		UnreadCount: raw.UnreadCount,
	}
	switch {
	case raw.MatchInfo != nil:
		conv.OtherUser = *raw.MatchInfo
	case raw.OtherUser != nil:
		conv.OtherUser = *raw.OtherUser
	}
	conv.Unread = conv.HasUnread(selfID)
	return conv
}

// UnreadCount fetches the total number of unread messages across all
// conversations.
func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	resp := struct {
		Count int `json:"count"`
	}{}
	if err := c.get(ctx, "/api/messages/unread/count", &resp); err != nil {
		return 0, errors.WithMessage(err, "failed to fetch unread count")
	}
	return resp.Count, nil
}
