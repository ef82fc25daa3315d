////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package storage

import (
	"bytes"
	"testing"
	"time"

	"gitlab.com/elixxir/ekv"
)

// Tests that an object set into the KV can be retrieved unchanged.
func TestKV_SetGet(t *testing.T) {
	kv := NewKV(ekv.MakeMemstore())

	obj := &Object{
		Version:   1,
		Timestamp: time.Now(),
		Data:      []byte("test data"),
	}

	if err := kv.Set("testKey", obj); err != nil {
		t.Fatalf("Set returned an error: %+v", err)
	}

	loaded, err := kv.Get("testKey", 1)
	if err != nil {
		t.Fatalf("Get returned an error: %+v", err)
	}

	if !bytes.Equal(loaded.Data, obj.Data) {
		t.Errorf("Loaded object has incorrect data."+
			"\nexpected: %q\nreceived: %q", obj.Data, loaded.Data)
	}
}

// Tests that getting a key at the wrong version fails.
func TestKV_Get_VersionMismatch(t *testing.T) {
	kv := NewKV(ekv.MakeMemstore())

	obj := &Object{Version: 0, Timestamp: time.Now(), Data: []byte("d")}
	if err := kv.Set("testKey", obj); err != nil {
		t.Fatalf("Set returned an error: %+v", err)
	}

	if _, err := kv.Get("testKey", 1); err == nil {
		t.Error("Get did not error on a version mismatch.")
	}
}

// Tests that two prefixed KVs over the same store do not collide.
func TestKV_Prefix(t *testing.T) {
	base := NewKV(ekv.MakeMemstore())
	kvA := base.Prefix("a")
	kvB := base.Prefix("b")

	objA := &Object{Timestamp: time.Now(), Data: []byte("a data")}
	objB := &Object{Timestamp: time.Now(), Data: []byte("b data")}

	if err := kvA.Set("key", objA); err != nil {
		t.Fatalf("Set on prefix a returned an error: %+v", err)
	}
	if err := kvB.Set("key", objB); err != nil {
		t.Fatalf("Set on prefix b returned an error: %+v", err)
	}

	loaded, err := kvA.Get("key", 0)
	if err != nil {
		t.Fatalf("Get on prefix a returned an error: %+v", err)
	}
	if !bytes.Equal(loaded.Data, objA.Data) {
		t.Errorf("Prefixed KV returned data from the wrong prefix."+
			"\nexpected: %q\nreceived: %q", objA.Data, loaded.Data)
	}
}

// Tests that Get on a missing key returns an error.
func TestKV_Get_Missing(t *testing.T) {
	kv := NewKV(ekv.MakeMemstore())
	if _, err := kv.Get("missing", 0); err == nil {
		t.Error("Get did not error on a missing key.")
	}
}
