////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package storage

import (
	"encoding/json"
	"time"

	jww "github.com/spf13/jwalterweatherman"
)

// Object is the payload stored for every key: the raw data plus the schema
// version it was written with and the time it was written.
type Object struct {
	Version   uint64
	Timestamp time.Time
	Data      []byte
}

// Marshal serializes the Object for the underlying key value store. Adheres
// to the ekv.Marshaler interface.
func (o *Object) Marshal() []byte {
	d, err := json.Marshal(o)
	if err != nil {
		// Cannot happen; Object contains no unmarshalable types.
		jww.FATAL.Panicf("Failed to marshal storage object: %+v", err)
	}
	return d
}

// Unmarshal deserializes raw store data into the Object. Adheres to the
// ekv.Unmarshaler interface.
func (o *Object) Unmarshal(data []byte) error {
	return json.Unmarshal(data, o)
}
