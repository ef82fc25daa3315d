////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"gitlab.com/anonymatch/client/catalog"
	"gitlab.com/anonymatch/client/models"
	"gitlab.com/anonymatch/client/realtime"
	"gitlab.com/anonymatch/client/rest"
)

// fakeRooms satisfies Rooms with a bare switchboard and a join counter, so
// session tests run without a socket server.
type fakeRooms struct {
	events *realtime.Switchboard
	mux    sync.Mutex
	joined map[string]int
}

func newFakeRooms() *fakeRooms {
	return &fakeRooms{
		events: realtime.NewSwitchboard(),
		joined: make(map[string]int),
	}
}

func (r *fakeRooms) JoinRoom(matchID string) error {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.joined[matchID]++
	return nil
}

func (r *fakeRooms) LeaveRoom(matchID string) error {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.joined[matchID]--
	return nil
}

func (r *fakeRooms) Switchboard() *realtime.Switchboard { return r.events }

func (r *fakeRooms) joinCount(matchID string) int {
	r.mux.Lock()
	defer r.mux.Unlock()
	return r.joined[matchID]
}

// chatBackend fakes the message and matching endpoints a session touches.
type chatBackend struct {
	mux       sync.Mutex
	history   []models.Message
	matches   []map[string]interface{}
	sent      []string
	failSend  bool
	markReads int
}

func (b *chatBackend) handle(w http.ResponseWriter, r *http.Request) {
	b.mux.Lock()
	defer b.mux.Unlock()

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/api/messages":
		if b.failSend {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]string{"message": "boom"})
			return
		}
		body := struct {
			Content string `json:"content"`
		}{}
		json.NewDecoder(r.Body).Decode(&body)
		b.sent = append(b.sent, body.Content)

	case r.Method == http.MethodPut && strings.HasSuffix(r.URL.Path, "/read"):
		b.markReads++

	case r.Method == http.MethodGet && r.URL.Path == "/api/matching/history":
		json.NewEncoder(w).Encode(
			map[string]interface{}{"matches": b.matches})

	case r.Method == http.MethodGet &&
		strings.HasPrefix(r.URL.Path, "/api/messages/"):
		json.NewEncoder(w).Encode(b.history)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (b *chatBackend) sentMessages() []string {
	b.mux.Lock()
	defer b.mux.Unlock()
	return append([]string{}, b.sent...)
}

func msg(id string, senderID string, at time.Time) models.Message {
	return models.Message{
		ID: id, MatchID: "m1", SenderID: senderID, Content: "msg " + id,
		CreatedAt: at,
	}
}

func newTestSession(t *testing.T, backend *chatBackend,
	resolve PartnerResolver) (*Session, *fakeRooms) {
	srv := httptest.NewServer(http.HandlerFunc(backend.handle))
	t.Cleanup(srv.Close)

	rooms := newFakeRooms()
	return NewSession(
		rest.NewClient(srv.URL, nil), rooms, "self", "m1", resolve), rooms
}

func ids(msgs []models.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

// Tests that the history and live feed merge into one deduplicated,
// creation-ordered list no matter how they interleave.
func TestSession_MergesInterleavedFeeds(t *testing.T) {
	base := time.Now().UTC().Add(-time.Hour)
	backend := &chatBackend{
		history: []models.Message{
			msg("a", "other", base),
			msg("c", "self", base.Add(2*time.Minute)),
		},
	}

	s, rooms := newTestSession(t, backend,
		func(string) (models.User, bool) {
			return models.User{ID: "other", FirstName: "Sam"}, true
		})

	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open returned an error: %+v", err)
	}
	if s.Partner().ID != "other" {
		t.Errorf("Partner was not resolved from the summary cache: %+v",
			s.Partner())
	}

	// A duplicate of a history message and one genuinely new message that
	// sorts between the two fetched ones.
	rooms.events.Speak(realtime.Event{
		Name: catalog.NewMessage, MatchID: "m1",
		Message: &models.Message{
			ID: "a", MatchID: "m1", SenderID: "other", CreatedAt: base,
		},
	})
	newMsg := msg("b", "other", base.Add(time.Minute))
	rooms.events.Speak(realtime.Event{
		Name: catalog.NewMessage, MatchID: "m1", Message: &newMsg,
	})

	got := ids(s.Messages())
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("Merged list is wrong.\nexpected: %v\nreceived: %v",
			[]string{"a", "b", "c"}, got)
	}
}

// orderedRooms records the room join alongside the other opening steps.
type orderedRooms struct {
	*fakeRooms
	record func(string)
}

func (r *orderedRooms) JoinRoom(matchID string) error {
	r.record("join")
	return r.fakeRooms.JoinRoom(matchID)
}

// Tests that Open runs its steps in order: partner resolution, history fetch,
// read receipt, then the room join.
func TestSession_Open_StepOrder(t *testing.T) {
	var mux sync.Mutex
	var steps []string
	record := func(step string) {
		mux.Lock()
		steps = append(steps, step)
		mux.Unlock()
	}

	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			switch {
			case r.Method == http.MethodPut &&
				strings.HasSuffix(r.URL.Path, "/read"):
				record("read")
			case r.Method == http.MethodGet &&
				strings.HasPrefix(r.URL.Path, "/api/messages/"):
				record("history")
				json.NewEncoder(w).Encode([]models.Message{})
			default:
				w.WriteHeader(http.StatusNotFound)
			}
		}))
	t.Cleanup(srv.Close)

	rooms := &orderedRooms{fakeRooms: newFakeRooms(), record: record}
	s := NewSession(rest.NewClient(srv.URL, nil), rooms, "self", "m1",
		func(string) (models.User, bool) {
			record("resolve")
			return models.User{ID: "other"}, true
		})

	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open returned an error: %+v", err)
	}

	expected := []string{"resolve", "history", "read", "join"}
	mux.Lock()
	got := append([]string{}, steps...)
	mux.Unlock()
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("Open ran its steps out of order."+
			"\nexpected: %v\nreceived: %v", expected, got)
	}
}

// Tests that a nil resolver falls back to the match history for the partner.
func TestSession_Open_PartnerFromHistory(t *testing.T) {
	backend := &chatBackend{
		matches: []map[string]interface{}{{
			"_id":    "m1",
			"status": models.MatchAccepted,
			"users": []map[string]interface{}{
				{"_id": "self"}, {"_id": "other", "firstName": "Sam"},
			},
		}},
	}

	s, _ := newTestSession(t, backend, nil)
	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open returned an error: %+v", err)
	}

	if s.Partner().ID != "other" || s.Partner().FirstName != "Sam" {
		t.Errorf("Partner was not resolved from the history: %+v", s.Partner())
	}
}

// Tests that an empty or whitespace-only send is rejected locally with no
// request on the wire.
func TestSession_Send_Empty(t *testing.T) {
	backend := &chatBackend{}
	s, _ := newTestSession(t, backend,
		func(string) (models.User, bool) { return models.User{ID: "o"}, true })
	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open returned an error: %+v", err)
	}

	err := s.Send(context.Background(), "   \n\t")
	if err != rest.ErrEmptyMessage {
		t.Errorf("Empty send returned the wrong error."+
			"\nexpected: %v\nreceived: %v", rest.ErrEmptyMessage, err)
	}
	if got := backend.sentMessages(); len(got) != 0 {
		t.Errorf("Empty send issued a request: %v", got)
	}
	if s.GetState() != Ready {
		t.Errorf("Empty send changed the state to %s.", s.GetState())
	}
}

// Tests that a send never appends locally: a successful send shows nothing
// until the echo arrives, and a failed send leaves the list and state intact
// for a retry.
func TestSession_Send_NonOptimistic(t *testing.T) {
	backend := &chatBackend{}
	s, rooms := newTestSession(t, backend,
		func(string) (models.User, bool) { return models.User{ID: "o"}, true })
	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open returned an error: %+v", err)
	}

	if err := s.Send(context.Background(), "hello"); err != nil {
		t.Fatalf("Send returned an error: %+v", err)
	}
	if got := s.Messages(); len(got) != 0 {
		t.Errorf("Send appended locally before the echo: %v", ids(got))
	}

	// The echo comes back through the room like any other message.
	echo := msg("e1", "self", time.Now().UTC())
	rooms.events.Speak(realtime.Event{
		Name: catalog.NewMessage, MatchID: "m1", Message: &echo,
	})
	if got := s.Messages(); len(got) != 1 || got[0].ID != "e1" {
		t.Errorf("Echoed message did not appear: %v", ids(got))
	}

	// A failed send keeps the session usable.
	backend.mux.Lock()
	backend.failSend = true
	backend.mux.Unlock()
	if err := s.Send(context.Background(), "again"); err == nil {
		t.Error("Send did not return the server error.")
	}
	if s.GetState() != Ready {
		t.Errorf("Failed send left the state %s; expected %s.",
			s.GetState(), Ready)
	}
	if got := s.Messages(); len(got) != 1 {
		t.Errorf("Failed send changed the message list: %v", ids(got))
	}
}

// Tests the session lifecycle: sends are rejected before Open and after
// Close, Close is terminal and idempotent, and the room is left exactly once.
func TestSession_Lifecycle(t *testing.T) {
	backend := &chatBackend{}
	s, rooms := newTestSession(t, backend,
		func(string) (models.User, bool) { return models.User{ID: "o"}, true })

	if err := s.Send(context.Background(), "early"); err != ErrNotReady {
		t.Errorf("Send before Open returned the wrong error."+
			"\nexpected: %v\nreceived: %v", ErrNotReady, err)
	}

	closed := 0
	s.OnClose(func() { closed++ })

	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open returned an error: %+v", err)
	}
	if s.GetState() != Ready {
		t.Fatalf("State after Open is %s; expected %s.", s.GetState(), Ready)
	}
	if rooms.joinCount("m1") != 1 {
		t.Errorf("Room joined %d times; expected %d.",
			rooms.joinCount("m1"), 1)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close returned an error: %+v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Second Close returned an error: %+v", err)
	}
	if closed != 1 {
		t.Errorf("Close hook ran %d times; expected %d.", closed, 1)
	}
	if rooms.joinCount("m1") != 0 {
		t.Errorf("Room join count after Close is %d; expected %d.",
			rooms.joinCount("m1"), 0)
	}

	if err := s.Send(context.Background(), "late"); err != ErrClosed {
		t.Errorf("Send after Close returned the wrong error."+
			"\nexpected: %v\nreceived: %v", ErrClosed, err)
	}
	if err := s.Open(context.Background()); err != ErrClosed {
		t.Errorf("Open after Close returned the wrong error."+
			"\nexpected: %v\nreceived: %v", ErrClosed, err)
	}

	// Messages arriving after Close are dropped.
	late := msg("late", "o", time.Now())
	rooms.events.Speak(realtime.Event{
		Name: catalog.NewMessage, MatchID: "m1", Message: &late,
	})
	if got := s.Messages(); len(got) != 0 {
		t.Errorf("A message was merged after Close: %v", ids(got))
	}
}
