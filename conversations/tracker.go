////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package conversations keeps the client's view of all conversation
// summaries consistent across REST refreshes, realtime events, and local
// read actions. The reconciliation is id- and timestamp-based, not
// arrival-order based, so REST results and socket events may interleave in
// any order and converge to the same state.
package conversations

import (
	"context"
	"sort"
	"sync"
	"time"

	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/anonymatch/client/catalog"
	"gitlab.com/anonymatch/client/models"
	"gitlab.com/anonymatch/client/realtime"
	"gitlab.com/anonymatch/client/rest"
)

const refreshTimeout = 30 * time.Second

// UnreadCallback is notified whenever the aggregate "any unread" flag
// changes. It drives the tab badge.
type UnreadCallback func(hasUnread bool)

// Tracker owns the conversation list for one signed-in user.
type Tracker struct {
	api    *rest.Client
	selfID string

	mux   sync.RWMutex
	convs map[string]*models.Conversation
	// readMarks records when each conversation was last opened locally.
	// Messages at or before the mark never re-flag the conversation, even
	// when the server has not confirmed the read yet.
	readMarks     map[string]time.Time
	unreadCB      UnreadCallback
	lastAggregate bool

	listenerIDs []string
	events      *realtime.Switchboard
}

// NewTracker creates a Tracker and registers it on the switchboard for
// message and notification events across all conversations.
func NewTracker(api *rest.Client, events *realtime.Switchboard,
	selfID string) *Tracker {

	t := &Tracker{
		api:       api,
		selfID:    selfID,
		convs:     make(map[string]*models.Conversation),
		readMarks: make(map[string]time.Time),
		events:    events,
	}

	t.listenerIDs = []string{
		events.Register(catalog.AnyConversation, catalog.NewMessage,
			realtime.ListenerFunc(t.onMessage)),
		events.Register(catalog.AnyConversation, catalog.NewNotification,
			realtime.ListenerFunc(t.onNotification)),
	}
	return t
}

// Stop unregisters the tracker from the switchboard.
func (t *Tracker) Stop() {
	for _, id := range t.listenerIDs {
		t.events.Unregister(id)
	}
}

// OnUnreadChanged registers the aggregate unread callback.
func (t *Tracker) OnUnreadChanged(cb UnreadCallback) {
	t.mux.Lock()
	t.unreadCB = cb
	t.mux.Unlock()
}

// Refresh replaces the local state with the server's conversation list.
// Local read marks are replayed on top so a just-read conversation does not
// flip back to unread while the server-side read receipt is still in flight.
func (t *Tracker) Refresh(ctx context.Context) error {
	convs, err := t.api.Conversations(ctx, t.selfID)
	if err != nil {
		return err
	}

	t.mux.Lock()
	t.convs = make(map[string]*models.Conversation, len(convs))
	for i := range convs {
		conv := convs[i]
		if conv.Unread &&
			!conv.LastMessage.CreatedAt.After(t.readMarks[conv.MatchID]) {
			conv.Unread = false
		}
		t.convs[conv.MatchID] = &conv
	}
	t.mux.Unlock()

	t.notifyAggregate()
	return nil
}

// onMessage handles a live message event. Self-sent messages never flag
// unread; a message for an unknown conversation triggers a refresh because
// it means a brand new thread.
func (t *Tracker) onMessage(e realtime.Event) {
	if e.Message == nil {
		return
	}
	msg := *e.Message

	if msg.SenderID == t.selfID {
		return
	}

	t.mux.Lock()
	conv, ok := t.convs[msg.MatchID]
	if !ok {
		t.mux.Unlock()
		t.refreshAsync()
		return
	}
	if conv.LastMessage.Before(msg) {
		conv.LastMessage = msg
	}
	if msg.CreatedAt.After(t.readMarks[msg.MatchID]) {
		conv.Unread = true
	}
	t.mux.Unlock()

	t.notifyAggregate()
}

// onNotification handles a new_message notification for a conversation whose
// room is not joined. Notifications carry no timestamp, so a racing read
// mark cannot be compared; the conversation is flagged and the next refresh
// reconciles. A transient false positive beats a missed message.
func (t *Tracker) onNotification(e realtime.Event) {
	if e.Notification == nil || e.Notification.Type != catalog.NotifyNewMessage {
		return
	}
	data := e.Notification.Data
	if data.SenderID == t.selfID || data.MatchID == "" {
		return
	}

	t.mux.Lock()
	conv, ok := t.convs[data.MatchID]
	if !ok {
		t.mux.Unlock()
		t.refreshAsync()
		return
	}
	conv.Unread = true
	t.mux.Unlock()

	t.notifyAggregate()
}

// ConversationOpened clears the conversation's unread flag and records the
// read time. The server-confirmed read receipt converges on the next
// refresh.
func (t *Tracker) ConversationOpened(matchID string) {
	t.mux.Lock()
	t.readMarks[matchID] = time.Now()
	if conv, ok := t.convs[matchID]; ok {
		conv.Unread = false
	}
	t.mux.Unlock()

	t.notifyAggregate()
}

// HasUnread reports whether any conversation is flagged unread.
func (t *Tracker) HasUnread() bool {
	t.mux.RLock()
	defer t.mux.RUnlock()
	return t.hasUnreadLocked()
}

func (t *Tracker) hasUnreadLocked() bool {
	for _, conv := range t.convs {
		if conv.Unread {
			return true
		}
	}
	return false
}

// Get returns the summary for one conversation.
func (t *Tracker) Get(matchID string) (models.Conversation, bool) {
	t.mux.RLock()
	defer t.mux.RUnlock()
	conv, ok := t.convs[matchID]
	if !ok {
		return models.Conversation{}, false
	}
	return *conv, true
}

// Conversations returns a copy of the list, most recent first.
func (t *Tracker) Conversations() []models.Conversation {
	t.mux.RLock()
	convs := make([]models.Conversation, 0, len(t.convs))
	for _, conv := range t.convs {
		convs = append(convs, *conv)
	}
	t.mux.RUnlock()

	sort.SliceStable(convs, func(i, j int) bool {
		return convs[j].LastMessage.Before(convs[i].LastMessage)
	})
	return convs
}

// notifyAggregate invokes the unread callback when the aggregate flag
// changed.
func (t *Tracker) notifyAggregate() {
	t.mux.Lock()
	agg := t.hasUnreadLocked()
	changed := agg != t.lastAggregate
	t.lastAggregate = agg
	cb := t.unreadCB
	t.mux.Unlock()

	if changed && cb != nil {
		cb(agg)
	}
}

// RefreshInBackground refreshes without blocking the caller. Used when a
// chat closes: the summary list catches up while the viewer navigates back.
func (t *Tracker) RefreshInBackground() {
	t.refreshAsync()
}

// refreshAsync refreshes in the background for events that reference state
// the tracker has not seen yet. Failures are logged only; the next poll or
// manual refresh retries.
func (t *Tracker) refreshAsync() {
	go func() {
		ctx, cancel := context.WithTimeout(
			context.Background(), refreshTimeout)
		defer cancel()
		if err := t.Refresh(ctx); err != nil {
			jww.WARN.Printf("Background conversation refresh failed: %s", err)
		}
	}()
}
