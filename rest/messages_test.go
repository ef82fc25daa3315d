////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package rest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
)

// Tests that an empty or whitespace-only send is a complete no-op: no
// request is issued and ErrEmptyMessage is returned.
func TestClient_SendMessage_Empty(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			requests++
		}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	for _, content := range []string{"", "   ", "\n\t "} {
		err := c.SendMessage(context.Background(), "m1", content)
		if !errors.Is(err, ErrEmptyMessage) {
			t.Errorf("SendMessage(%q) returned the wrong error."+
				"\nexpected: %v\nreceived: %v", content, ErrEmptyMessage, err)
		}
	}

	if requests != 0 {
		t.Errorf("Empty sends issued %d requests; expected none.", requests)
	}
}

// Tests that Conversations collapses duplicate matchId rows, keeping the
// entry with the most recent last message, and resolves the other
// participant from either raw shape.
func TestClient_Conversations_Normalization(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/messages/all" {
				t.Errorf("Unexpected path: %s", r.URL.Path)
			}
			// m1 appears twice (both directions of the thread); the newer
			// row must win. m2 uses the otherUser shape.
			w.Write([]byte(`[
				{"matchId": "m1",
				 "matchInfo": {"_id": "b", "firstName": "Bea"},
				 "lastMessage": {"_id": "x1", "matchId": "m1",
					"senderId": "b", "content": "old",
					"createdAt": "2024-03-01T10:00:00Z"},
				 "unreadCount": 0},
				{"matchId": "m1",
				 "matchInfo": {"_id": "b", "firstName": "Bea"},
				 "lastMessage": {"_id": "x2", "matchId": "m1",
					"senderId": "b", "content": "new",
					"createdAt": "2024-03-01T12:00:00Z"},
				 "unreadCount": 2},
				{"matchId": "m2",
				 "otherUser": {"_id": "c", "firstName": "Cal"},
				 "lastMessage": {"_id": "y1", "matchId": "m2",
					"senderId": "self", "content": "hi",
					"createdAt": "2024-03-01T11:00:00Z"},
				 "unreadCount": 1}
			]`))
		}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	convs, err := c.Conversations(context.Background(), "self")
	if err != nil {
		t.Fatalf("Conversations returned an error: %+v", err)
	}

	if len(convs) != 2 {
		t.Fatalf("Conversations returned the wrong number of entries."+
			"\nexpected: %d\nreceived: %d", 2, len(convs))
	}

	// Most recent first.
	if convs[0].MatchID != "m1" {
		t.Errorf("Conversations are not ordered most recent first: %+v",
			convs)
	}
	if convs[0].LastMessage.Content != "new" {
		t.Errorf("Duplicate matchId did not keep the most recent entry."+
			"\nexpected: %s\nreceived: %s", "new",
			convs[0].LastMessage.Content)
	}
	if !convs[0].Unread {
		t.Error("Conversation with unread messages from the partner is " +
			"not flagged unread.")
	}

	if convs[1].OtherUser.ID != "c" {
		t.Errorf("otherUser shape not resolved."+
			"\nexpected: %s\nreceived: %s", "c", convs[1].OtherUser.ID)
	}
	if convs[1].Unread {
		t.Error("Conversation whose last message is self-sent is flagged " +
			"unread.")
	}
}

// Tests that Messages returns history ordered oldest first even when the
// backend feed is unordered.
func TestClient_Messages_Ordering(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[
				{"_id": "b", "matchId": "m1", "senderId": "s",
				 "content": "second", "createdAt": "2024-03-01T11:00:00Z"},
				{"_id": "a", "matchId": "m1", "senderId": "s",
				 "content": "first", "createdAt": "2024-03-01T10:00:00Z"}
			]`))
		}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	msgs, err := c.Messages(context.Background(), "m1")
	if err != nil {
		t.Fatalf("Messages returned an error: %+v", err)
	}

	if len(msgs) != 2 || msgs[0].ID != "a" || msgs[1].ID != "b" {
		t.Errorf("Messages not ordered oldest first: %+v", msgs)
	}
}
