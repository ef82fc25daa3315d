////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package stoppable

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

// Single allows stopping a single goroutine using a channel. It adheres to
// the Stoppable interface.
type Single struct {
	name   string
	quit   chan struct{}
	status Status
	once   sync.Once
}

// NewSingle returns a new single Stoppable.
func NewSingle(name string) *Single {
	return &Single{
		name:   name,
		quit:   make(chan struct{}, 1),
		status: Running,
	}
}

// Name returns the name of the Single Stoppable.
func (s *Single) Name() string {
	return s.name
}

// GetStatus returns the status of the Stoppable.
func (s *Single) GetStatus() Status {
	return Status(atomic.LoadUint32((*uint32)(&s.status)))
}

// IsRunning returns true if the Stoppable is marked as running.
func (s *Single) IsRunning() bool {
	return s.GetStatus() == Running
}

// IsStopping returns true if the Stoppable is marked as stopping.
func (s *Single) IsStopping() bool {
	return s.GetStatus() == Stopping
}

// IsStopped returns true if the Stoppable is marked as stopped.
func (s *Single) IsStopped() bool {
	return s.GetStatus() == Stopped
}

// Quit returns the receive-only channel that is triggered when the Stoppable
// is closed. The controlled goroutine must call ToStopped once it exits.
func (s *Single) Quit() <-chan struct{} {
	return s.quit
}

// ToStopped marks the Single as stopped. Called by the controlled goroutine
// when it exits. Panics if the goroutine was never told to stop.
func (s *Single) ToStopped() {
	if !atomic.CompareAndSwapUint32(
		(*uint32)(&s.status), uint32(Stopping), uint32(Stopped)) {
		jww.FATAL.Panicf("Failed to set the status of single stoppable %q to "+
			"%s when status is %s instead of %s.",
			s.name, Stopped, s.GetStatus(), Stopping)
	}
	jww.DEBUG.Printf("Single stoppable %q switched from %s to %s.",
		s.name, Stopping, Stopped)
}

// Close signals the controlled goroutine to quit. Returns an error if the
// Single is not running.
func (s *Single) Close() error {
	var err error
	s.once.Do(func() {
		if !atomic.CompareAndSwapUint32(
			(*uint32)(&s.status), uint32(Running), uint32(Stopping)) {
			err = errors.Errorf("failed to stop single stoppable %q: "+
				"status is %s instead of %s", s.name, s.GetStatus(), Running)
			return
		}
		jww.TRACE.Printf("Sending on quit channel to single stoppable %q.",
			s.name)
		s.quit <- struct{}{}
	})

	if err != nil {
		jww.ERROR.Print(err.Error())
	}
	return err
}
