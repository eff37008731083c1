// Package store keeps OCPI resources as JSON documents keyed by
// (kind, country code, party id, id) and offers atomic read-modify-write.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type Kind string

const (
	KindLocation Kind = "locations"
	KindSession  Kind = "sessions"
	KindTariff   Kind = "tariffs"
	KindCdr      Kind = "cdrs"
	KindToken    Kind = "tokens"
)

var (
	ErrNotFound = errors.New("resource not found")
	ErrConflict = errors.New("resource modified concurrently")
)

type Key struct {
	CountryCode string `json:"country_code" bson:"country_code"`
	PartyId     string `json:"party_id" bson:"party_id"`
	Id          string `json:"id" bson:"id"`
}

func (k Key) String() string {
	return fmt.Sprintf("%s*%s*%s", k.CountryCode, k.PartyId, k.Id)
}

type Resource struct {
	Kind        Kind
	Key         Key
	Data        map[string]any
	LastUpdated time.Time
	ETag        string
}

// Clone returns a deep copy, callers may mutate it freely.
func (r *Resource) Clone() *Resource {
	if r == nil {
		return nil
	}
	c := *r
	c.Data = CloneDocument(r.Data)
	return &c
}

// MutateFunc computes the next version of a resource from the current one,
// current is nil when nothing is stored under the key. Returning an error
// aborts the update and leaves the store untouched.
type MutateFunc func(current *Resource) (*Resource, error)

type ListOptions struct {
	CountryCode string
	PartyId     string
	DateFrom    time.Time
	DateTo      time.Time
	Offset      int
	Limit       int
}

func (o ListOptions) match(r *Resource) bool {
	if o.CountryCode != "" && r.Key.CountryCode != o.CountryCode {
		return false
	}
	if o.PartyId != "" && r.Key.PartyId != o.PartyId {
		return false
	}
	if !o.DateFrom.IsZero() && r.LastUpdated.Before(o.DateFrom) {
		return false
	}
	if !o.DateTo.IsZero() && !r.LastUpdated.Before(o.DateTo) {
		return false
	}
	return true
}

type Store interface {
	Get(ctx context.Context, kind Kind, key Key) (*Resource, error)
	// Update applies fn atomically against a single key.
	Update(ctx context.Context, kind Kind, key Key, fn MutateFunc) (*Resource, error)
	Remove(ctx context.Context, kind Kind, key Key) error
	// List returns one page of resources ordered by last update and the total match count.
	List(ctx context.Context, kind Kind, opts ListOptions) ([]*Resource, int, error)
	Close(ctx context.Context) error
}
