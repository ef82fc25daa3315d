////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package realtime

import (
	"sync"

	"github.com/google/uuid"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/anonymatch/client/catalog"
)

// Listener hears inbound socket events. Implementations must deduplicate
// messages by ID; the same message may also arrive via a REST refetch.
type Listener interface {
	Hear(e Event)
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(e Event)

// Hear adheres to the Listener interface.
func (f ListenerFunc) Hear(e Event) { f(e) }

type listenerRecord struct {
	l  Listener
	id string
}

// Switchboard routes inbound events to listeners registered by conversation
// and event name, either of which may be a wildcard.
type Switchboard struct {
	// matchID -> event name -> registered listeners
	listeners map[string]map[string][]*listenerRecord
	mux       sync.RWMutex
}

// NewSwitchboard returns an empty Switchboard.
func NewSwitchboard() *Switchboard {
	return &Switchboard{
		listeners: make(map[string]map[string][]*listenerRecord),
	}
}

// Register adds a listener for the given conversation and event name.
// catalog.AnyConversation hears every conversation; catalog.AnyEvent hears
// every event. Returns the ID used to unregister the listener later.
//
// If an event matches multiple listeners, all of them hear it.
func (s *Switchboard) Register(matchID, event string, l Listener) string {
	s.mux.Lock()
	defer s.mux.Unlock()

	if s.listeners[matchID] == nil {
		s.listeners[matchID] = make(map[string][]*listenerRecord)
	}

	record := &listenerRecord{l: l, id: uuid.New().String()}
	s.listeners[matchID][event] = append(s.listeners[matchID][event], record)

	return record.id
}

// Unregister removes the listener with the given ID. Unknown IDs are a
// no-op.
func (s *Switchboard) Unregister(id string) {
	s.mux.Lock()
	defer s.mux.Unlock()

	for matchID, perMatch := range s.listeners {
		for event, records := range perMatch {
			for i, record := range records {
				if record.id == id {
					s.listeners[matchID][event] = append(
						records[:i], records[i+1:]...)
					// IDs are unique, so the search can end here.
					return
				}
			}
		}
	}
}

// Speak fans the event out to every matching listener: the exact
// (conversation, event) pair, each single wildcard, and the full wildcard.
func (s *Switchboard) Speak(e Event) {
	s.mux.RLock()
	defer s.mux.RUnlock()

	matched := make([]*listenerRecord, 0)
	matched = append(matched, s.listeners[e.MatchID][e.Name]...)
	matched = append(matched, s.listeners[e.MatchID][catalog.AnyEvent]...)
	if e.MatchID != catalog.AnyConversation {
		matched = append(matched,
			s.listeners[catalog.AnyConversation][e.Name]...)
		matched = append(matched,
			s.listeners[catalog.AnyConversation][catalog.AnyEvent]...)
	}

	if len(matched) == 0 {
		jww.DEBUG.Printf("Event %q for match %q matched no listeners.",
			e.Name, e.MatchID)
		return
	}

	for _, record := range matched {
		record.l.Hear(e)
	}
}
