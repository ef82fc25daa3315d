////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package realtime

import (
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/anonymatch/client/catalog"
)

// NotificationHandler receives server notifications that survived filtering.
type NotificationHandler func(n Notification)

// HandleNotifications registers a listener for new_notification events that
// drops notifications about the user's own messages before invoking the
// handler. Returns the listener ID for unregistering.
//
// The echo check is explicit: the server notifies every participant of a
// conversation, including the sender.
func HandleNotifications(s *Switchboard, selfID string,
	handler NotificationHandler) string {

	return s.Register(catalog.AnyConversation, catalog.NewNotification,
		ListenerFunc(func(e Event) {
			if e.Notification == nil {
				return
			}
			n := *e.Notification
			if n.Type == catalog.NotifyNewMessage &&
				n.Data.SenderID == selfID {
				jww.TRACE.Printf(
					"Dropping echo notification for match %s.",
					n.Data.MatchID)
				return
			}
			handler(n)
		}))
}
