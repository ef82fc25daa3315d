////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package session owns the authenticated session: the opaque API token and
// the cached user object, persisted to local storage. All reads of "who am I"
// go through here.
package session

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/anonymatch/client/models"
	"gitlab.com/anonymatch/client/storage"
)

const (
	sessionPrefix  = "session"
	tokenKey       = "userToken"
	userKey        = "userData"
	currentVersion = 0
)

// Store holds the current session in memory, backed by the local key value
// store. The zero state is signed out.
type Store struct {
	kv    *storage.KV
	mux   sync.RWMutex
	token string
	user  models.User
}

// New creates a session store on top of the given KV. It does not load
// anything; call LoadStored at process start.
func New(kv *storage.KV) *Store {
	return &Store{kv: kv.Prefix(sessionPrefix)}
}

// LoadStored loads a previously persisted session, if any. Storage failures
// are logged and treated as "no session"; the client fails open to the
// signed-out state rather than refusing to start.
func (s *Store) LoadStored() bool {
	tokenObj, err := s.kv.Get(tokenKey, currentVersion)
	if err != nil {
		jww.WARN.Printf("No stored session token: %s", err)
		return false
	}

	userObj, err := s.kv.Get(userKey, currentVersion)
	if err != nil {
		jww.WARN.Printf("Stored token without user data, treating as no "+
			"session: %s", err)
		return false
	}

	var user models.User
	if err = json.Unmarshal(userObj.Data, &user); err != nil {
		jww.WARN.Printf("Failed to decode stored user data, treating as no "+
			"session: %s", err)
		return false
	}

	s.mux.Lock()
	s.token = string(tokenObj.Data)
	s.user = user
	s.mux.Unlock()

	jww.INFO.Printf("Loaded stored session for user %s", user.ID)
	return true
}

// SignIn persists the token and user and updates the in-memory session. The
// in-memory state only changes once both writes succeed, so a caller never
// observes a half-written session.
func (s *Store) SignIn(token string, user models.User) error {
	userData, err := json.Marshal(user)
	if err != nil {
		return errors.WithMessage(err, "failed to encode user for storage")
	}

	now := time.Now()
	err = s.kv.Set(tokenKey, &storage.Object{
		Version:   currentVersion,
		Timestamp: now,
		Data:      []byte(token),
	})
	if err != nil {
		return errors.WithMessage(err, "failed to persist session token")
	}

	err = s.kv.Set(userKey, &storage.Object{
		Version:   currentVersion,
		Timestamp: now,
		Data:      userData,
	})
	if err != nil {
		return errors.WithMessage(err, "failed to persist user data")
	}

	s.mux.Lock()
	s.token = token
	s.user = user
	s.mux.Unlock()

	jww.INFO.Printf("Signed in user %s", user.ID)
	return nil
}

// SignOut clears the persisted and in-memory session. The in-memory state is
// cleared even if the storage deletes fail; a stale file must never keep a
// user signed in.
func (s *Store) SignOut() {
	if err := s.kv.Delete(tokenKey, currentVersion); err != nil {
		jww.WARN.Printf("Failed to delete stored token: %s", err)
	}
	if err := s.kv.Delete(userKey, currentVersion); err != nil {
		jww.WARN.Printf("Failed to delete stored user data: %s", err)
	}

	s.mux.Lock()
	s.token = ""
	s.user = models.User{}
	s.mux.Unlock()

	jww.INFO.Print("Signed out")
}

// Token returns the current API token, or "" when signed out.
func (s *Store) Token() string {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return s.token
}

// User returns the cached user object for the current session.
func (s *Store) User() models.User {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return s.user
}

// Active reports whether a session is signed in.
func (s *Store) Active() bool {
	return s.Token() != ""
}
