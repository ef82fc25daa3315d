////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package chat

import "fmt"

// State is the lifecycle of one chat session. Open moves Idle through
// Loading to Ready; Send and inbound messages bounce through Sending and
// Receiving back to Ready. Closed is terminal; a closed session is never
// reused.
type State uint32

const (
	Idle State = iota
	Loading
	Ready
	Sending
	Receiving
	Closed
)

// String adheres to the fmt.Stringer interface.
func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Loading:
		return "Loading"
	case Ready:
		return "Ready"
	case Sending:
		return "Sending"
	case Receiving:
		return "Receiving"
	case Closed:
		return "Closed"
	default:
		return fmt.Sprintf("UNKNOWN STATE: %d", s)
	}
}
