////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package api

import "time"

// Params configures a Client.
type Params struct {
	// ServerURL is the backend base URL. The realtime socket endpoint is
	// derived from it.
	ServerURL string

	// StorageDir is the directory holding the encrypted local store. Empty
	// uses an in-memory store that is lost on exit.
	StorageDir string

	// StoragePassword encrypts the local store.
	StoragePassword string

	// PollInterval is the unread reconciliation poll period.
	PollInterval time.Duration
}

// GetDefaultParams returns the default client parameters.
func GetDefaultParams() Params {
	return Params{
		PollInterval: 30 * time.Second,
	}
}
