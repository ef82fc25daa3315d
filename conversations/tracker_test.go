////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package conversations

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"gitlab.com/anonymatch/client/catalog"
	"gitlab.com/anonymatch/client/models"
	"gitlab.com/anonymatch/client/realtime"
	"gitlab.com/anonymatch/client/rest"
	"gitlab.com/anonymatch/client/stoppable"
)

// conversationFeed is a fake /api/messages/all backend whose payload can be
// swapped between requests.
type conversationFeed struct {
	mux  sync.Mutex
	rows []map[string]interface{}
}

func (f *conversationFeed) set(rows []map[string]interface{}) {
	f.mux.Lock()
	f.rows = rows
	f.mux.Unlock()
}

func (f *conversationFeed) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mux.Lock()
		defer f.mux.Unlock()
		json.NewEncoder(w).Encode(f.rows)
	}
}

func row(matchID, otherID, lastSender, content string, unread int,
	createdAt time.Time) map[string]interface{} {
	return map[string]interface{}{
		"matchId":   matchID,
		"matchInfo": map[string]interface{}{"_id": otherID},
		"lastMessage": map[string]interface{}{
			"_id":       matchID + "-last",
			"matchId":   matchID,
			"senderId":  lastSender,
			"content":   content,
			"createdAt": createdAt.Format(time.RFC3339),
		},
		"unreadCount": unread,
	}
}

func newTestTracker(t *testing.T, feed *conversationFeed) (
	*Tracker, *realtime.Switchboard) {
	srv := httptest.NewServer(feed.handler())
	t.Cleanup(srv.Close)

	events := realtime.NewSwitchboard()
	tracker := NewTracker(rest.NewClient(srv.URL, nil), events, "self")
	t.Cleanup(tracker.Stop)
	return tracker, events
}

// Tests the aggregate scenario: conversation X has two unread messages from
// the partner, Y has none. The aggregate must be true, and opening X must
// flip it to false.
func TestTracker_AggregateUnread(t *testing.T) {
	now := time.Now().UTC()
	feed := &conversationFeed{}
	feed.set([]map[string]interface{}{
		row("X", "b", "b", "hey", 2, now),
		row("Y", "c", "self", "later", 0, now.Add(-time.Hour)),
	})

	tracker, _ := newTestTracker(t, feed)

	var badges []bool
	tracker.OnUnreadChanged(func(hasUnread bool) {
		badges = append(badges, hasUnread)
	})

	if err := tracker.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh returned an error: %+v", err)
	}
	if !tracker.HasUnread() {
		t.Error("Aggregate unread is false with an unread conversation.")
	}

	tracker.ConversationOpened("X")
	if tracker.HasUnread() {
		t.Error("Aggregate unread is true after the only unread " +
			"conversation was opened.")
	}

	if len(badges) != 2 || !badges[0] || badges[1] {
		t.Errorf("Badge callback sequence incorrect."+
			"\nexpected: [true false]\nreceived: %v", badges)
	}
}

// Tests that a live message from the partner flags its conversation and
// that self-sent messages never do.
func TestTracker_EchoSuppression(t *testing.T) {
	now := time.Now().UTC()
	feed := &conversationFeed{}
	feed.set([]map[string]interface{}{
		row("X", "b", "self", "sent by me", 0, now.Add(-time.Minute)),
	})

	tracker, events := newTestTracker(t, feed)
	if err := tracker.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh returned an error: %+v", err)
	}

	speak := func(senderID string, at time.Time) {
		events.Speak(realtime.Event{
			Name:    catalog.NewMessage,
			MatchID: "X",
			Message: &models.Message{
				ID: "m-" + senderID, MatchID: "X", SenderID: senderID,
				CreatedAt: at,
			},
		})
	}

	speak("self", now)
	if tracker.HasUnread() {
		t.Error("A self-sent message flagged the conversation unread.")
	}

	speak("b", now.Add(time.Second))
	if !tracker.HasUnread() {
		t.Error("A partner message did not flag the conversation unread.")
	}
}

// Tests the out-of-band notification path: a partner notification flags its
// conversation, a notification about the user's own message never does, and
// a notification for an unknown conversation triggers a background refresh
// that picks the new thread up.
func TestTracker_Notifications(t *testing.T) {
	now := time.Now().UTC()
	feed := &conversationFeed{}
	feed.set([]map[string]interface{}{
		row("X", "b", "self", "sent by me", 0, now.Add(-time.Minute)),
	})

	tracker, events := newTestTracker(t, feed)
	if err := tracker.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh returned an error: %+v", err)
	}

	notify := func(matchID, senderID string) {
		events.Speak(realtime.Event{
			Name:    catalog.NewNotification,
			MatchID: matchID,
			Notification: &realtime.Notification{
				Type: catalog.NotifyNewMessage,
				Data: realtime.NotificationData{
					MatchID: matchID, SenderID: senderID,
				},
			},
		})
	}

	// The server notifies the sender too; those never flag.
	notify("X", "self")
	if tracker.HasUnread() {
		t.Error("A notification about a self-sent message flagged the " +
			"conversation unread.")
	}

	notify("X", "b")
	if conv, _ := tracker.Get("X"); !conv.Unread {
		t.Error("A partner notification did not flag the conversation unread.")
	}

	// A notification for a conversation the tracker has never seen means a
	// brand new thread already on the server.
	feed.set([]map[string]interface{}{
		row("X", "b", "self", "sent by me", 0, now.Add(-time.Minute)),
		row("Z", "d", "d", "new thread", 1, now),
	})
	notify("Z", "d")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if conv, ok := tracker.Get("Z"); ok && conv.Unread {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("Tracker never picked up the notified conversation.")
}

// Tests the read/receive race: a message created before the local read mark
// must not re-flag the conversation, while one created strictly after must.
func TestTracker_ReadRace(t *testing.T) {
	now := time.Now().UTC()
	feed := &conversationFeed{}
	feed.set([]map[string]interface{}{
		row("X", "b", "b", "hey", 1, now.Add(-time.Minute)),
	})

	tracker, events := newTestTracker(t, feed)
	if err := tracker.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh returned an error: %+v", err)
	}

	tracker.ConversationOpened("X")
	readAt := time.Now()

	// An in-flight message that predates the read action.
	events.Speak(realtime.Event{
		Name:    catalog.NewMessage,
		MatchID: "X",
		Message: &models.Message{
			ID: "old", MatchID: "X", SenderID: "b",
			CreatedAt: readAt.Add(-time.Second),
		},
	})
	if tracker.HasUnread() {
		t.Error("A message older than the read mark re-flagged the " +
			"conversation.")
	}

	// A genuinely new message after the read action.
	events.Speak(realtime.Event{
		Name:    catalog.NewMessage,
		MatchID: "X",
		Message: &models.Message{
			ID: "new", MatchID: "X", SenderID: "b",
			CreatedAt: readAt.Add(time.Second),
		},
	})
	if !tracker.HasUnread() {
		t.Error("A message newer than the read mark did not flag the " +
			"conversation.")
	}
}

// Tests that a refresh replays local read marks so a just-read conversation
// does not flip back to unread while the server still reports a stale
// unread count.
func TestTracker_Refresh_KeepsReadMarks(t *testing.T) {
	lastAt := time.Now().UTC().Add(-time.Minute)
	feed := &conversationFeed{}
	feed.set([]map[string]interface{}{
		row("X", "b", "b", "hey", 2, lastAt),
	})

	tracker, _ := newTestTracker(t, feed)
	if err := tracker.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh returned an error: %+v", err)
	}

	tracker.ConversationOpened("X")

	// The server has not processed the read receipt yet and still reports
	// the stale count.
	if err := tracker.Refresh(context.Background()); err != nil {
		t.Fatalf("Second refresh returned an error: %+v", err)
	}
	if tracker.HasUnread() {
		t.Error("Stale server unread count overrode the local read mark.")
	}
}

// Tests that an event for an unknown conversation triggers a background
// refresh that picks the new thread up.
func TestTracker_UnknownConversationRefreshes(t *testing.T) {
	now := time.Now().UTC()
	feed := &conversationFeed{}
	feed.set([]map[string]interface{}{})

	tracker, events := newTestTracker(t, feed)
	if err := tracker.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh returned an error: %+v", err)
	}

	// The new thread is already on the server when the event arrives.
	feed.set([]map[string]interface{}{
		row("Z", "d", "d", "new thread", 1, now),
	})
	events.Speak(realtime.Event{
		Name:    catalog.NewMessage,
		MatchID: "Z",
		Message: &models.Message{
			ID: "z1", MatchID: "Z", SenderID: "d", CreatedAt: now,
		},
	})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := tracker.Get("Z"); ok {
			if !tracker.HasUnread() {
				t.Error("Refreshed new thread is not flagged unread.")
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("Tracker never picked up the new conversation.")
}

// Tests that the poller reconciles a missed unread in one cycle.
func TestTracker_Poller_Reconciles(t *testing.T) {
	now := time.Now().UTC()
	feed := &conversationFeed{}
	feed.set([]map[string]interface{}{
		row("X", "b", "b", "hey", 1, now),
	})

	countMux := sync.Mutex{}
	serverCount := 1
	mux := http.NewServeMux()
	mux.HandleFunc("/api/messages/all", feed.handler())
	mux.HandleFunc("/api/messages/unread/count",
		func(w http.ResponseWriter, r *http.Request) {
			countMux.Lock()
			defer countMux.Unlock()
			json.NewEncoder(w).Encode(map[string]int{"count": serverCount})
		})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	events := realtime.NewSwitchboard()
	tracker := NewTracker(rest.NewClient(srv.URL, nil), events, "self")
	defer tracker.Stop()

	// The tracker has never refreshed; the socket "missed" the message.
	stop := tracker.StartPolling(20 * time.Millisecond)
	defer stop.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if tracker.HasUnread() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("Poller never reconciled the missed unread message.")
}

// Tests that a non-positive interval falls back to the default instead of
// panicking in time.NewTicker.
func TestTracker_StartPolling_InvalidInterval(t *testing.T) {
	feed := &conversationFeed{}
	tracker, _ := newTestTracker(t, feed)

	stop := tracker.StartPolling(0)
	if err := stop.Close(); err != nil {
		t.Fatalf("Close returned an error: %+v", err)
	}
	if !stoppable.WaitForStopped(stop, time.Second) {
		t.Error("Poller did not stop.")
	}
}
