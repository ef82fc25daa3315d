////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package storage wraps the ekv key value store with key prefixing and
// versioned objects. The client persists local state (session token, cached
// user) through this layer only; all durable dating data lives on the
// backend.
package storage

import (
	"fmt"

	"github.com/pkg/errors"
	"gitlab.com/elixxir/ekv"
)

const prefixSeparator = "/"

// KV stores versioned objects under a key prefix.
type KV struct {
	data   ekv.KeyValue
	prefix string
}

// NewKV creates a versioned key value store backed by anything implementing
// ekv.KeyValue (a filestore in production, a Memstore in tests).
func NewKV(data ekv.KeyValue) *KV {
	return &KV{data: data}
}

// Prefix returns a KV scoped under the given prefix. The receiver is not
// modified.
func (kv *KV) Prefix(prefix string) *KV {
	return &KV{
		data:   kv.data,
		prefix: kv.prefix + prefix + prefixSeparator,
	}
}

// Get retrieves the object stored under the key. The stored version must
// match the requested version; version upgrades are handled by the caller.
func (kv *KV) Get(key string, version uint64) (*Object, error) {
	obj := Object{}
	if err := kv.data.Get(kv.makeKey(key, version), &obj); err != nil {
		return nil, errors.WithMessagef(err, "failed to get %q", key)
	}
	if obj.Version != version {
		return nil, errors.Errorf("failed to get %q: version mismatch, "+
			"stored %d, requested %d", key, obj.Version, version)
	}
	return &obj, nil
}

// Set stores the object under the key at the object's version.
func (kv *KV) Set(key string, obj *Object) error {
	if err := kv.data.Set(kv.makeKey(key, obj.Version), obj); err != nil {
		return errors.WithMessagef(err, "failed to set %q", key)
	}
	return nil
}

// Delete removes the key at the given version.
func (kv *KV) Delete(key string, version uint64) error {
	if err := kv.data.Delete(kv.makeKey(key, version)); err != nil {
		return errors.WithMessagef(err, "failed to delete %q", key)
	}
	return nil
}

func (kv *KV) makeKey(key string, version uint64) string {
	return fmt.Sprintf("%s%s_%d", kv.prefix, key, version)
}
