////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package stoppable

import (
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Multi holds a group of Stoppables that are stopped together. It adheres to
// the Stoppable interface.
type Multi struct {
	name       string
	stoppables []Stoppable
	mux        sync.RWMutex
	once       sync.Once
}

// NewMulti returns a new empty Multi Stoppable.
func NewMulti(name string) *Multi {
	return &Multi{name: name}
}

// Add adds the given Stoppable to the group.
func (m *Multi) Add(s Stoppable) {
	m.mux.Lock()
	m.stoppables = append(m.stoppables, s)
	m.mux.Unlock()
}

// Name returns the name of the Multi Stoppable and the names of all the
// Stoppables it contains.
func (m *Multi) Name() string {
	m.mux.RLock()
	defer m.mux.RUnlock()
	names := make([]string, len(m.stoppables))
	for i, s := range m.stoppables {
		names[i] = s.Name()
	}
	return m.name + "{" + strings.Join(names, ", ") + "}"
}

// GetStatus returns the lowest status of all the contained Stoppables. An
// empty Multi reports Stopped.
func (m *Multi) GetStatus() Status {
	m.mux.RLock()
	defer m.mux.RUnlock()

	lowest := Stopped
	for _, s := range m.stoppables {
		if status := s.GetStatus(); status < lowest {
			lowest = status
		}
	}
	return lowest
}

// IsRunning returns true if any of the contained Stoppables is running.
func (m *Multi) IsRunning() bool {
	return m.GetStatus() == Running
}

// Close closes all the contained Stoppables concurrently. Returns an error
// listing how many of them failed to stop.
func (m *Multi) Close() error {
	var numErrors uint32
	var numErrorsMux sync.Mutex

	m.once.Do(func() {
		m.mux.Lock()
		defer m.mux.Unlock()

		var wg sync.WaitGroup
		for _, s := range m.stoppables {
			wg.Add(1)
			go func(s Stoppable) {
				defer wg.Done()
				if err := s.Close(); err != nil {
					numErrorsMux.Lock()
					numErrors++
					numErrorsMux.Unlock()
				}
			}(s)
		}
		wg.Wait()
	})

	if numErrors > 0 {
		return errors.Errorf("multi stoppable %q failed to close %d/%d "+
			"stoppables", m.name, numErrors, len(m.stoppables))
	}
	return nil
}
