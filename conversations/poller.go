////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package conversations

import (
	"context"
	"time"

	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/anonymatch/client/stoppable"
)

const (
	pollerStoppableName = "unreadPoller"

	// defaultPollInterval is used when the caller passes a non-positive
	// interval, which time.NewTicker would reject.
	defaultPollInterval = 30 * time.Second
)

// StartPolling launches the periodic unread-count poll that backstops the
// realtime channel: if the socket dropped an event, the aggregate unread
// flag is corrected within one poll interval. Poll failures are logged, not
// surfaced; the poll is a background refresh, not a user action.
//
// The returned Stoppable tears the poller down on sign-out or unmount.
func (t *Tracker) StartPolling(interval time.Duration) stoppable.Stoppable {
	if interval <= 0 {
		jww.WARN.Printf("Invalid poll interval %s; using the default %s.",
			interval, defaultPollInterval)
		interval = defaultPollInterval
	}
	stop := stoppable.NewSingle(pollerStoppableName)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop.Quit():
				stop.ToStopped()
				return
			case <-ticker.C:
				t.pollOnce()
			}
		}
	}()

	return stop
}

// pollOnce compares the server's unread count against the local aggregate
// and refreshes on any disagreement, in either direction.
func (t *Tracker) pollOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	count, err := t.api.UnreadCount(ctx)
	if err != nil {
		jww.WARN.Printf("Unread count poll failed: %s", err)
		return
	}

	if (count > 0) != t.HasUnread() {
		jww.DEBUG.Printf("Unread disagreement (server count %d), refreshing.",
			count)
		if err := t.Refresh(ctx); err != nil {
			jww.WARN.Printf("Unread reconciliation refresh failed: %s", err)
		}
	}
}
