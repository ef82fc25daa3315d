////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package chat runs a single open conversation: it loads the history over
// REST, listens to the realtime room, and merges both feeds into one
// id-deduplicated, creation-ordered message list.
package chat

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"go.uber.org/ratelimit"

	"gitlab.com/anonymatch/client/catalog"
	"gitlab.com/anonymatch/client/models"
	"gitlab.com/anonymatch/client/realtime"
	"gitlab.com/anonymatch/client/rest"
)

// Outbound messages are throttled client side so a held-down send button
// cannot flood the backend.
const sendsPerSecond = 2

var (
	// ErrClosed is returned by operations on a session that has been closed.
	// Closed is terminal; a new session must be opened instead.
	ErrClosed = errors.New("chat session is closed")

	// ErrNotReady is returned by Send when the session is not in the Ready
	// state.
	ErrNotReady = errors.New("chat session is not ready to send")
)

// Rooms is the slice of the realtime channel a session needs: room
// membership and the event switchboard. Satisfied by *realtime.Channel.
type Rooms interface {
	JoinRoom(matchID string) error
	LeaveRoom(matchID string) error
	Switchboard() *realtime.Switchboard
}

// PartnerResolver returns the partner for a match from whatever summary
// cache the caller already holds. A false return falls back to the match
// history.
type PartnerResolver func(matchID string) (models.User, bool)

// StateCallback is notified on every session state change.
type StateCallback func(state State)

// MessagesCallback is notified with the full merged list whenever it grows.
type MessagesCallback func(msgs []models.Message)

// Session is one open conversation.
type Session struct {
	api     *rest.Client
	rooms   Rooms
	selfID  string
	matchID string
	resolve PartnerResolver
	limiter ratelimit.Limiter

	mux        sync.Mutex
	state      State
	partner    models.User
	msgs       []models.Message
	byID       map[string]struct{}
	listenerID string
	stateCB    StateCallback
	msgsCB     MessagesCallback
	onClose    func()
}

// NewSession creates an idle session for the given match. resolve may be nil;
// the partner is then always resolved from the match history.
func NewSession(api *rest.Client, rooms Rooms, selfID, matchID string,
	resolve PartnerResolver) *Session {
	return &Session{
		api:     api,
		rooms:   rooms,
		selfID:  selfID,
		matchID: matchID,
		resolve: resolve,
		limiter: ratelimit.New(sendsPerSecond),
		state:   Idle,
		byID:    make(map[string]struct{}),
	}
}

// OnStateChange registers the state callback.
func (s *Session) OnStateChange(cb StateCallback) {
	s.mux.Lock()
	s.stateCB = cb
	s.mux.Unlock()
}

// OnMessages registers the message list callback.
func (s *Session) OnMessages(cb MessagesCallback) {
	s.mux.Lock()
	s.msgsCB = cb
	s.mux.Unlock()
}

// OnClose registers a hook that runs after the session closes. The owner uses
// it to refresh the conversation list the session was opened from.
func (s *Session) OnClose(hook func()) {
	s.mux.Lock()
	s.onClose = hook
	s.mux.Unlock()
}

// Open runs the opening pipeline, in order: resolve the partner, load the
// history, mark the conversation read, and join the realtime room. A message
// that lands between the history fetch and the room join is caught up by the
// id-deduplicated merge on the next delivery or refresh. A failed read
// receipt does not abort the open; the unread state reconciles on the next
// refresh.
func (s *Session) Open(ctx context.Context) error {
	s.mux.Lock()
	switch s.state {
	case Closed:
		s.mux.Unlock()
		return ErrClosed
	case Idle:
	default:
		s.mux.Unlock()
		return errors.Errorf("chat session for match %s is already open",
			s.matchID)
	}
	s.state = Loading
	s.mux.Unlock()
	s.notifyState(Loading)

	partner, err := s.resolvePartner(ctx)
	if err != nil {
		return s.abortOpen(err)
	}

	history, err := s.api.Messages(ctx, s.matchID)
	if err != nil {
		return s.abortOpen(err)
	}

	if err = s.api.MarkRead(ctx, s.matchID); err != nil {
		jww.WARN.Printf("Failed to mark match %s read: %+v", s.matchID, err)
	}

	// The listener goes in before the join so no frame of the joined room
	// is dropped.
	s.mux.Lock()
	s.partner = partner
	for _, msg := range history {
		s.mergeLocked(msg)
	}
	s.listenerID = s.rooms.Switchboard().Register(
		s.matchID, catalog.NewMessage, realtime.ListenerFunc(s.hear))
	s.mux.Unlock()

	if err = s.rooms.JoinRoom(s.matchID); err != nil {
		return s.abortOpen(errors.WithMessagef(err,
			"failed to join room for match %s", s.matchID))
	}

	s.mux.Lock()
	if s.state == Loading {
		s.state = Ready
	}
	ready := s.state == Ready
	msgs := s.snapshotLocked()
	s.mux.Unlock()

	if ready {
		s.notifyState(Ready)
	}
	s.notifyMessages(msgs)
	return nil
}

// abortOpen tears down the half-opened session and returns it to Idle so the
// viewer can retry.
func (s *Session) abortOpen(err error) error {
	s.mux.Lock()
	listenerID := s.listenerID
	s.listenerID = ""
	if s.state == Loading {
		s.state = Idle
	}
	s.mux.Unlock()

	if listenerID != "" {
		s.rooms.Switchboard().Unregister(listenerID)
		if leaveErr := s.rooms.LeaveRoom(s.matchID); leaveErr != nil {
			jww.WARN.Printf("Failed to leave room for match %s: %+v",
				s.matchID, leaveErr)
		}
	}
	s.notifyState(Idle)
	return err
}

// resolvePartner returns the other participant, preferring the caller's
// summary cache over a match history fetch.
func (s *Session) resolvePartner(ctx context.Context) (models.User, error) {
	if s.resolve != nil {
		if partner, ok := s.resolve(s.matchID); ok {
			return partner, nil
		}
	}

	matches, err := s.api.MatchHistory(ctx, s.selfID)
	if err != nil {
		return models.User{}, errors.WithMessagef(err,
			"failed to resolve the partner for match %s", s.matchID)
	}
	for _, m := range matches {
		if m.ID == s.matchID {
			return m.OtherUser, nil
		}
	}
	return models.User{}, errors.Errorf(
		"match %s is not in the match history", s.matchID)
}

// Send posts one message. Empty or whitespace-only content short-circuits
// with rest.ErrEmptyMessage and no request. The message is not appended
// locally; it arrives back through the realtime room like any other, so the
// list shows only what the server accepted. On failure the caller keeps the
// typed content and may retry.
func (s *Session) Send(ctx context.Context, content string) error {
	if strings.TrimSpace(content) == "" {
		return rest.ErrEmptyMessage
	}

	s.mux.Lock()
	switch s.state {
	case Closed:
		s.mux.Unlock()
		return ErrClosed
	case Ready:
	default:
		s.mux.Unlock()
		return ErrNotReady
	}
	s.state = Sending
	s.mux.Unlock()
	s.notifyState(Sending)

	s.limiter.Take()
	err := s.api.SendMessage(ctx, s.matchID, content)

	s.mux.Lock()
	ready := s.state == Sending
	if ready {
		s.state = Ready
	}
	s.mux.Unlock()
	if ready {
		s.notifyState(Ready)
	}

	return err
}

// hear merges one live message. Duplicates of already-fetched history are
// dropped by ID, so the socket and REST feeds may interleave in any order.
func (s *Session) hear(e realtime.Event) {
	if e.Message == nil || e.Message.MatchID != s.matchID {
		return
	}

	s.mux.Lock()
	if s.state == Closed {
		s.mux.Unlock()
		return
	}
	merged := s.mergeLocked(*e.Message)
	if !merged {
		s.mux.Unlock()
		return
	}
	flagged := s.state == Ready
	if flagged {
		s.state = Receiving
	}
	msgs := s.snapshotLocked()
	s.mux.Unlock()

	if flagged {
		s.notifyState(Receiving)
	}
	s.notifyMessages(msgs)

	if flagged {
		s.mux.Lock()
		if s.state == Receiving {
			s.state = Ready
		}
		s.mux.Unlock()
		s.notifyState(Ready)
	}
}

// mergeLocked inserts the message in creation order unless its ID is already
// present. Requires s.mux.
func (s *Session) mergeLocked(msg models.Message) bool {
	if _, exists := s.byID[msg.ID]; exists {
		return false
	}
	s.byID[msg.ID] = struct{}{}

	n := sort.Search(len(s.msgs), func(i int) bool {
		return msg.Before(s.msgs[i])
	})
	s.msgs = append(s.msgs, models.Message{})
	copy(s.msgs[n+1:], s.msgs[n:])
	s.msgs[n] = msg
	return true
}

// Close leaves the room, stops listening, and permanently ends the session.
func (s *Session) Close() error {
	s.mux.Lock()
	if s.state == Closed {
		s.mux.Unlock()
		return nil
	}
	opened := s.state != Idle
	s.state = Closed
	listenerID := s.listenerID
	s.listenerID = ""
	hook := s.onClose
	s.mux.Unlock()

	if listenerID != "" {
		s.rooms.Switchboard().Unregister(listenerID)
	}
	if opened {
		if err := s.rooms.LeaveRoom(s.matchID); err != nil {
			jww.WARN.Printf("Failed to leave room for match %s: %+v",
				s.matchID, err)
		}
	}

	s.notifyState(Closed)
	if hook != nil {
		hook()
	}
	return nil
}

// Messages returns a copy of the merged list, oldest first.
func (s *Session) Messages() []models.Message {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.snapshotLocked()
}

// Partner returns the other participant. Valid once Open has returned.
func (s *Session) Partner() models.User {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.partner
}

// MatchID returns the match this session belongs to.
func (s *Session) MatchID() string {
	return s.matchID
}

// GetState returns the current session state.
func (s *Session) GetState() State {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.state
}

func (s *Session) snapshotLocked() []models.Message {
	msgs := make([]models.Message, len(s.msgs))
	copy(msgs, s.msgs)
	return msgs
}

func (s *Session) notifyState(state State) {
	s.mux.Lock()
	cb := s.stateCB
	s.mux.Unlock()
	if cb != nil {
		cb(state)
	}
}

func (s *Session) notifyMessages(msgs []models.Message) {
	s.mux.Lock()
	cb := s.msgsCB
	s.mux.Unlock()
	if cb != nil {
		cb(msgs)
	}
}
