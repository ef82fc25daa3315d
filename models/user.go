////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package models holds the data types exchanged with the AnonyMatch backend.
// The backend is a MongoDB shop, so identifiers come over the wire as "_id".
package models

// User is a user profile as returned by the backend.
type User struct {
	ID             string   `json:"_id"`
	Email          string   `json:"email,omitempty"`
	FirstName      string   `json:"firstName"`
	LastName       string   `json:"lastName"`
	BirthDate      string   `json:"birthDate,omitempty"`
	Age            int      `json:"age,omitempty"`
	Bio            string   `json:"bio,omitempty"`
	Interests      []string `json:"interests,omitempty"`
	ProfilePicture string   `json:"profilePicture,omitempty"`
}

// DisplayName returns the name shown in conversation and match lists.
func (u User) DisplayName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// Candidate is a potential match returned by the matching feed, before any
// match record exists.
type Candidate struct {
	ID             string   `json:"_id"`
	FirstName      string   `json:"firstName"`
	Age            int      `json:"age"`
	Distance       float64  `json:"distance,omitempty"`
	Interests      []string `json:"interests,omitempty"`
	ProfilePicture string   `json:"profilePicture,omitempty"`
}
