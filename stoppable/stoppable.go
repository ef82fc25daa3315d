////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package stoppable provides lifecycle control for the client's long-running
// goroutines (socket read loop, reconnector, unread poller).
package stoppable

import "time"

// How long Close waits between status polls when blocking for a stop to
// complete.
const pollPeriod = 100 * time.Millisecond

// Stoppable is the interface for stopping a goroutine or a group of them.
type Stoppable interface {
	Name() string
	GetStatus() Status
	IsRunning() bool
	Close() error
}

// WaitForStopped polls the Stoppable until it reports Stopped or the timeout
// elapses.
func WaitForStopped(s Stoppable, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if s.GetStatus() == Stopped {
			return true
		}
		time.Sleep(pollPeriod)
	}
	return s.GetStatus() == Stopped
}
