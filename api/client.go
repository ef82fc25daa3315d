////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package api assembles the client: local storage, session, REST, the
// realtime channel, conversation tracking, and matching, wired together
// behind one facade. UIs and the CLI talk to this package only.
package api

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/elixxir/ekv"

	"gitlab.com/anonymatch/client/chat"
	"gitlab.com/anonymatch/client/conversations"
	"gitlab.com/anonymatch/client/matching"
	"gitlab.com/anonymatch/client/models"
	"gitlab.com/anonymatch/client/realtime"
	"gitlab.com/anonymatch/client/rest"
	"gitlab.com/anonymatch/client/session"
	"gitlab.com/anonymatch/client/stoppable"
	"gitlab.com/anonymatch/client/storage"
)

// ErrNotSignedIn is returned by operations that require an active session.
var ErrNotSignedIn = errors.New("no active session")

// stopTimeout bounds the wait for background workers on sign-out.
const stopTimeout = 5 * time.Second

// Client is the assembled AnonyMatch client.
type Client struct {
	params  Params
	session *session.Store
	api     *rest.Client
	channel *realtime.Channel

	// Per-session services, built on sign-in and torn down on sign-out.
	// workers groups every background stoppable so sign-out stops them all.
	mux               sync.Mutex
	tracker           *conversations.Tracker
	matcher           *matching.Service
	workers           *stoppable.Multi
	notifyListenerIDs []string
}

// NewClient opens the local store and builds the client. No network traffic
// happens here; call LoadSession or Login afterwards.
func NewClient(params Params) (*Client, error) {
	var store ekv.KeyValue
	if params.StorageDir == "" {
		jww.WARN.Print("No storage directory set; the session will not " +
			"survive a restart.")
		store = ekv.MakeMemstore()
	} else {
		fs, err := ekv.NewFilestore(
			params.StorageDir, params.StoragePassword)
		if err != nil {
			return nil, errors.WithMessagef(err,
				"failed to open local store in %s", params.StorageDir)
		}
		store = fs
	}

	sess := session.New(storage.NewKV(store))
	channel, err := realtime.NewChannel(params.ServerURL)
	if err != nil {
		return nil, err
	}

	return &Client{
		params:  params,
		session: sess,
		api:     rest.NewClient(params.ServerURL, sess.Token),
		channel: channel,
	}, nil
}

// LoadSession restores a persisted session and, when one exists, brings the
// per-session services up. Returns false when there is nothing to restore.
func (c *Client) LoadSession() bool {
	if !c.session.LoadStored() {
		return false
	}
	c.startServices()
	return true
}

// Login authenticates with the backend, persists the session, and brings the
// per-session services up.
func (c *Client) Login(ctx context.Context, email, password string) error {
	resp, err := c.api.Login(ctx, rest.LoginRequest{
		Email: email, Password: password,
	})
	if err != nil {
		return err
	}
	return c.establishSession(resp)
}

// Register creates an account and signs it in.
func (c *Client) Register(ctx context.Context, req rest.RegisterRequest) error {
	resp, err := c.api.Register(ctx, req)
	if err != nil {
		return err
	}
	return c.establishSession(resp)
}

func (c *Client) establishSession(resp *rest.AuthResponse) error {
	if err := c.session.SignIn(resp.Token, resp.User); err != nil {
		return err
	}
	c.startServices()
	return nil
}

// startServices builds the signed-in service set and connects the realtime
// channel. A failed connect is logged, not fatal: the channel keeps retrying
// on use and the unread poller covers the gap.
func (c *Client) startServices() {
	selfID := c.session.User().ID

	c.mux.Lock()
	c.tracker = conversations.NewTracker(c.api, c.channel.Switchboard(), selfID)
	c.matcher = matching.NewService(c.api, selfID)
	c.workers = stoppable.NewMulti("clientWorkers")
	c.workers.Add(c.tracker.StartPolling(c.params.PollInterval))
	c.mux.Unlock()

	if err := c.channel.Connect(c.session.Token()); err != nil {
		jww.WARN.Printf("Realtime connect failed, continuing degraded: %+v",
			err)
	}
}

// Logout tears the services down and discards the session. Sessions are
// stateless tokens; sign-out is purely a client-side discard.
func (c *Client) Logout() {
	c.stopServices()
	c.session.SignOut()
}

// stopServices shuts the per-session services down in reverse build order.
func (c *Client) stopServices() {
	c.mux.Lock()
	workers, tracker := c.workers, c.tracker
	listenerIDs := c.notifyListenerIDs
	c.workers, c.tracker, c.matcher = nil, nil, nil
	c.notifyListenerIDs = nil
	c.mux.Unlock()

	for _, id := range listenerIDs {
		c.channel.Switchboard().Unregister(id)
	}

	if workers != nil {
		if err := workers.Close(); err != nil {
			jww.WARN.Printf("Failed to stop background workers: %+v", err)
		}
		if !stoppable.WaitForStopped(workers, stopTimeout) {
			jww.WARN.Printf("Background workers %s did not stop within %s.",
				workers.Name(), stopTimeout)
		}
	}
	if tracker != nil {
		tracker.Stop()
	}
	if err := c.channel.Close(); err != nil {
		jww.WARN.Printf("Failed to close the realtime channel: %+v", err)
	}
}

// OpenChat opens a chat session for the match: joins the room, loads the
// history, marks the conversation read, and hooks the conversation list
// refresh to the session's close.
func (c *Client) OpenChat(ctx context.Context, matchID string) (
	*chat.Session, error) {
	if !c.session.Active() {
		return nil, ErrNotSignedIn
	}

	c.mux.Lock()
	tracker := c.tracker
	c.mux.Unlock()
	if tracker == nil {
		return nil, ErrNotSignedIn
	}

	resolve := func(matchID string) (models.User, bool) {
		conv, ok := tracker.Get(matchID)
		if !ok {
			return models.User{}, false
		}
		return conv.OtherUser, true
	}

	s := chat.NewSession(
		c.api, c.channel, c.session.User().ID, matchID, resolve)
	if err := s.Open(ctx); err != nil {
		c.forceSignOutOnAuthError(err)
		return nil, err
	}

	tracker.ConversationOpened(matchID)
	s.OnClose(func() {
		tracker.RefreshInBackground()
	})
	return s, nil
}

// HandleNotifications routes filtered realtime notifications to the handler.
// The current user's own message notifications are suppressed. The handler
// lives for the session; sign-out unregisters it.
func (c *Client) HandleNotifications(handler realtime.NotificationHandler) {
	id := realtime.HandleNotifications(
		c.channel.Switchboard(), c.session.User().ID, handler)

	c.mux.Lock()
	c.notifyListenerIDs = append(c.notifyListenerIDs, id)
	c.mux.Unlock()
}

// forceSignOutOnAuthError signs the user out when the error is a backend
// 401 or 403. An invalid token is never ignored.
func (c *Client) forceSignOutOnAuthError(err error) {
	if !rest.IsAuthError(err) {
		return
	}
	jww.ERROR.Printf("Authentication rejected by the backend, signing "+
		"out: %+v", err)
	c.stopServices()
	c.session.SignOut()
}

// Session returns the session store.
func (c *Client) Session() *session.Store { return c.session }

// REST returns the typed REST client.
func (c *Client) REST() *rest.Client { return c.api }

// Realtime returns the realtime channel.
func (c *Client) Realtime() *realtime.Channel { return c.channel }

// Conversations returns the conversation tracker, or nil when signed out.
func (c *Client) Conversations() *conversations.Tracker {
	c.mux.Lock()
	defer c.mux.Unlock()
	return c.tracker
}

// Matching returns the matching service, or nil when signed out.
func (c *Client) Matching() *matching.Service {
	c.mux.Lock()
	defer c.mux.Unlock()
	return c.matcher
}
