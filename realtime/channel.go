////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package realtime

import (
	"encoding/json"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/anonymatch/client/catalog"
	"gitlab.com/anonymatch/client/models"
	"gitlab.com/anonymatch/client/stoppable"
)

const (
	socketPath        = "/socket"
	writeTimeout      = 10 * time.Second
	reconnectInterval = 2 * time.Second
	maxReconnects     = 5

	readStoppableName = "realtimeReader"
)

// State is the connection state of the Channel.
type State uint8

const (
	// Disconnected means no socket is open and none is being attempted.
	Disconnected State = iota
	// Connecting means a reconnection attempt is in progress.
	Connecting
	// Live means the socket is open and authenticated.
	Live
	// Down means the reconnection budget ran out; a new Connect call is
	// required to come back up.
	Down
)

// String adheres to the fmt.Stringer interface.
func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Live:
		return "live"
	case Down:
		return "down"
	default:
		return "INVALID STATE"
	}
}

// StateCallback is invoked on every connection state change. Errors passed
// here are non-fatal; already fetched data stays usable while the channel
// recovers.
type StateCallback func(state State, err error)

// Channel is the realtime socket connection. One Channel exists per
// authenticated session and is shared by every consumer; room membership is
// reference counted so a room stays joined while at least one consumer needs
// it.
type Channel struct {
	wsURL  string
	dialer *websocket.Dialer
	events *Switchboard

	mux     sync.Mutex
	conn    *websocket.Conn
	token   string
	rooms   map[string]int
	state   State
	stateCB StateCallback
	reader  *stoppable.Single

	// Overridable for tests.
	retryInterval time.Duration
	maxRetries    uint64
}

// NewChannel creates a Channel for the given server base URL. The socket is
// not opened until Connect.
func NewChannel(serverURL string) (*Channel, error) {
	wsURL, err := deriveSocketURL(serverURL)
	if err != nil {
		return nil, err
	}
	return &Channel{
		wsURL:         wsURL,
		dialer:        websocket.DefaultDialer,
		events:        NewSwitchboard(),
		rooms:         make(map[string]int),
		retryInterval: reconnectInterval,
		maxRetries:    maxReconnects,
	}, nil
}

// deriveSocketURL maps the REST base URL onto the websocket endpoint.
func deriveSocketURL(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", errors.WithMessagef(err,
			"invalid server URL %q", serverURL)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", errors.Errorf("invalid server URL scheme %q", u.Scheme)
	}
	u.Path = socketPath
	return u.String(), nil
}

// Switchboard returns the listener registry for inbound events.
func (c *Channel) Switchboard() *Switchboard {
	return c.events
}

// OnStateChange registers the connection state callback. Must be called
// before Connect.
func (c *Channel) OnStateChange(cb StateCallback) {
	c.mux.Lock()
	c.stateCB = cb
	c.mux.Unlock()
}

// Connect opens and authenticates the socket with the session token and
// starts the read loop. Only the session owner calls this, once per sign-in.
func (c *Channel) Connect(token string) error {
	c.mux.Lock()
	if c.conn != nil {
		c.mux.Unlock()
		return errors.New("realtime channel is already connected")
	}
	c.token = token

	conn, err := c.dial(token)
	if err != nil {
		c.mux.Unlock()
		c.setState(Disconnected, err)
		return err
	}
	c.conn = conn
	c.reader = stoppable.NewSingle(readStoppableName)
	go c.readLoop(c.reader)

	// Joins recorded while offline are flushed now.
	c.sendJoinsLocked()
	c.mux.Unlock()

	c.setState(Live, nil)
	return nil
}

// Close tears the socket down for good. Called when the session ends.
func (c *Channel) Close() error {
	c.mux.Lock()
	reader := c.reader
	conn := c.conn
	c.conn = nil
	c.reader = nil
	c.rooms = make(map[string]int)
	c.mux.Unlock()

	if reader != nil {
		if err := reader.Close(); err != nil {
			jww.WARN.Printf("Failed to signal the read loop: %s", err)
		}
	}
	if conn != nil {
		// Closing the transport unblocks the pending read.
		if err := conn.Close(); err != nil {
			jww.DEBUG.Printf("Socket close: %s", err)
		}
	}
	if reader != nil && !stoppable.WaitForStopped(reader, writeTimeout) {
		return errors.New("timed out waiting for the read loop to stop")
	}

	c.setState(Disconnected, nil)
	return nil
}

// JoinRoom subscribes the channel to one conversation's live stream. Calls
// are reference counted; the join_chat frame goes out on the first interest
// only. Joining while offline records the interest, flushed on the next
// (re)connect.
func (c *Channel) JoinRoom(matchID string) error {
	c.mux.Lock()
	defer c.mux.Unlock()

	c.rooms[matchID]++
	if c.rooms[matchID] > 1 || c.conn == nil {
		return nil
	}
	return c.sendLocked(catalog.JoinChat, matchID)
}

// LeaveRoom releases one interest in the conversation's live stream. The
// leave_chat frame goes out when the last interest is released.
func (c *Channel) LeaveRoom(matchID string) error {
	c.mux.Lock()
	defer c.mux.Unlock()

	if c.rooms[matchID] == 0 {
		return nil
	}
	c.rooms[matchID]--
	if c.rooms[matchID] > 0 {
		return nil
	}
	delete(c.rooms, matchID)
	if c.conn == nil {
		return nil
	}
	return c.sendLocked(catalog.LeaveChat, matchID)
}

// dial opens a fresh socket and authenticates it with the given token.
func (c *Channel) dial(token string) (*websocket.Conn, error) {
	conn, _, err := c.dialer.Dial(c.wsURL, nil)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to dial %s", c.wsURL)
	}

	auth := authPayload{Token: "Bearer " + token}
	data, err := json.Marshal(auth)
	if err != nil {
		conn.Close()
		return nil, errors.WithMessage(err, "failed to encode auth payload")
	}
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err = conn.WriteJSON(Frame{Event: catalog.Auth, Data: data}); err != nil {
		conn.Close()
		return nil, errors.WithMessage(err, "failed to authenticate socket")
	}
	return conn, nil
}

// sendLocked writes one frame. Callers hold the mutex.
func (c *Channel) sendLocked(event string, data interface{}) error {
	if c.conn == nil {
		return errors.Errorf("cannot send %q: channel is not connected", event)
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return errors.WithMessagef(err, "failed to encode %q data", event)
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err = c.conn.WriteJSON(Frame{Event: event, Data: encoded}); err != nil {
		return errors.WithMessagef(err, "failed to send %q", event)
	}
	return nil
}

// sendJoinsLocked replays join_chat for every room with live interest.
// Callers hold the mutex.
func (c *Channel) sendJoinsLocked() {
	for matchID := range c.rooms {
		if err := c.sendLocked(catalog.JoinChat, matchID); err != nil {
			jww.WARN.Printf("Failed to rejoin room %s: %s", matchID, err)
		}
	}
}

// readLoop pumps inbound frames into the switchboard until the channel is
// closed or the connection dies beyond recovery.
func (c *Channel) readLoop(stop *stoppable.Single) {
	for {
		c.mux.Lock()
		conn := c.conn
		c.mux.Unlock()
		if conn == nil {
			c.stopReader(stop)
			return
		}

		var frame Frame
		err := conn.ReadJSON(&frame)
		if err != nil {
			if stop.IsStopping() {
				stop.ToStopped()
				return
			}
			jww.WARN.Printf("Socket read failed: %s", err)
			if !c.reconnect(stop) {
				c.stopReader(stop)
				return
			}
			continue
		}

		if frame.Event == catalog.Disconnect {
			if !c.handleDisconnect(frame, stop) {
				c.stopReader(stop)
				return
			}
			continue
		}

		c.handleFrame(frame)
	}
}

// stopReader marks the read stoppable as stopped regardless of whether the
// exit was requested via Close or forced by a dead connection.
func (c *Channel) stopReader(stop *stoppable.Single) {
	if !stop.IsStopping() {
		// Self-initiated exit; move the status along ourselves.
		if err := stop.Close(); err != nil {
			jww.DEBUG.Printf("Read loop self-close: %s", err)
		}
	}
	stop.ToStopped()
}

// handleDisconnect processes a server disconnect frame. Returns true when
// the loop should keep going on a reconnected socket.
func (c *Channel) handleDisconnect(frame Frame,
	stop *stoppable.Single) bool {
	var payload disconnectPayload
	if err := json.Unmarshal(frame.Data, &payload); err != nil {
		jww.WARN.Printf("Malformed disconnect frame: %s", err)
	}
	jww.INFO.Printf("Server disconnected the socket: %q", payload.Reason)

	if payload.Reason != catalog.ReasonServerDisconnect {
		// The server ended the session deliberately; do not fight it.
		c.mux.Lock()
		if c.conn != nil {
			c.conn.Close()
			c.conn = nil
		}
		c.mux.Unlock()
		c.setState(Down,
			errors.Errorf("server closed the session: %s", payload.Reason))
		return false
	}

	c.mux.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.mux.Unlock()
	return c.reconnect(stop)
}

// reconnect attempts to reopen the socket with constant backoff and a
// bounded retry budget. On success every room with live interest is
// rejoined, so a viewer of a conversation keeps receiving messages without
// navigating away and back. Returns false when the budget is exhausted or
// the channel was closed meanwhile.
func (c *Channel) reconnect(stop *stoppable.Single) bool {
	// The dead socket is released up front, so a Connect call can bring the
	// channel back up if the retry budget runs out below.
	c.mux.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.mux.Unlock()

	c.setState(Connecting, nil)

	op := func() error {
		if stop.IsStopping() {
			return backoff.Permanent(errors.New("channel closed"))
		}
		c.mux.Lock()
		token := c.token
		c.mux.Unlock()
		conn, err := c.dial(token)
		if err != nil {
			jww.WARN.Printf("Reconnect attempt failed: %s", err)
			return err
		}
		c.mux.Lock()
		c.conn = conn
		c.sendJoinsLocked()
		c.mux.Unlock()
		return nil
	}

	policy := backoff.WithMaxRetries(
		backoff.NewConstantBackOff(c.retryInterval), c.maxRetries)
	if err := backoff.Retry(op, policy); err != nil {
		c.setState(Down, errors.WithMessage(err,
			"gave up reconnecting the realtime channel"))
		return false
	}

	c.setState(Live, nil)
	return true
}

// handleFrame decodes one inbound frame and speaks it to the switchboard.
func (c *Channel) handleFrame(frame Frame) {
	switch frame.Event {
	case catalog.NewMessage:
		var msg models.Message
		if err := json.Unmarshal(frame.Data, &msg); err != nil {
			jww.WARN.Printf("Malformed new_message frame: %s", err)
			return
		}
		c.events.Speak(Event{
			Name:    catalog.NewMessage,
			MatchID: msg.MatchID,
			Message: &msg,
		})

	case catalog.NewNotification:
		var n Notification
		if err := json.Unmarshal(frame.Data, &n); err != nil {
			jww.WARN.Printf("Malformed new_notification frame: %s", err)
			return
		}
		c.events.Speak(Event{
			Name:         catalog.NewNotification,
			MatchID:      n.Data.MatchID,
			Notification: &n,
		})

	case catalog.UserJoined, catalog.UserLeft:
		var p Presence
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			jww.WARN.Printf("Malformed presence frame: %s", err)
			return
		}
		c.events.Speak(Event{
			Name:     frame.Event,
			MatchID:  p.MatchID,
			Presence: &p,
		})

	default:
		jww.DEBUG.Printf("Ignoring unknown socket event %q.", frame.Event)
	}
}

// setState records the state and notifies the callback outside the mutex.
func (c *Channel) setState(state State, err error) {
	c.mux.Lock()
	c.state = state
	cb := c.stateCB
	c.mux.Unlock()

	if err != nil {
		jww.WARN.Printf("Realtime channel is %s: %s", state, err)
	} else {
		jww.INFO.Printf("Realtime channel is %s.", state)
	}
	if cb != nil {
		cb(state, err)
	}
}

// GetState returns the current connection state.
func (c *Channel) GetState() State {
	c.mux.Lock()
	defer c.mux.Unlock()
	return c.state
}
