// Package resource applies CPO pushed PUT and PATCH requests to stored
// resources, guarding against older versions overwriting newer ones.
package resource

import (
	"context"
	"emsp/internal/mergepatch"
	"emsp/internal/store"
	"emsp/ocpi"
	"errors"
	"fmt"
	"time"
)

var (
	ErrUnknownResource = errors.New("unknown resource")
	ErrValidation      = errors.New("invalid resource")
	ErrDowngrade       = errors.New("resource is not newer than the stored version")
)

// DowngradeError carries the rejected payload and the version that was kept.
type DowngradeError struct {
	Payload     map[string]any
	ETag        string
	LastUpdated time.Time
}

func (e *DowngradeError) Error() string {
	return fmt.Sprintf("%v: stored version from %s", ErrDowngrade, ocpi.FormatTime(e.LastUpdated))
}

func (e *DowngradeError) Unwrap() error {
	return ErrDowngrade
}

type Outcome int

const (
	Created Outcome = iota
	Updated
)

func (o Outcome) String() string {
	if o == Created {
		return "created"
	}
	return "updated"
}

// Result describes the addressed object after an operation.
type Result struct {
	Outcome     Outcome
	Object      map[string]any
	ETag        string
	LastUpdated time.Time
	Resource    *store.Resource
}

type Engine struct {
	store store.Store
	now   func() time.Time
}

func New(s store.Store) *Engine {
	return &Engine{
		store: s,
		now:   time.Now,
	}
}

// SetClock replaces the clock used when a request carries no last_updated.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

func (e *Engine) clock() time.Time {
	return e.now().UTC().Truncate(time.Second)
}

// stampOf resolves the version timestamp of an incoming object.
func (e *Engine) stampOf(value any, present bool) (time.Time, error) {
	if !present {
		return e.clock(), nil
	}
	s, ok := value.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: last_updated must be a string", ErrValidation)
	}
	t, err := ocpi.ParseTime(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: last_updated: %v", ErrValidation, err)
	}
	return t.Truncate(time.Second), nil
}

func seal(current *store.Resource, doc map[string]any) (*store.Resource, error) {
	etag, err := store.Fingerprint(doc)
	if err != nil {
		return nil, err
	}
	next := &store.Resource{Data: doc, LastUpdated: lastUpdated(doc), ETag: etag}
	if current != nil {
		next.Kind = current.Kind
		next.Key = current.Key
	}
	return next, nil
}

func resultOf(outcome Outcome, t Target, r *store.Resource) (*Result, error) {
	object, _, err := t.locate(r.Data)
	if err != nil {
		return nil, err
	}
	if object == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownResource, t)
	}
	result := &Result{
		Outcome:     outcome,
		Object:      object,
		ETag:        r.ETag,
		LastUpdated: r.LastUpdated,
		Resource:    r,
	}
	if t.Nested() {
		if result.ETag, err = store.Fingerprint(object); err != nil {
			return nil, err
		}
		result.LastUpdated = lastUpdated(object)
	}
	return result, nil
}

// Upsert inserts or replaces the addressed object. Unless allowDowngrade is set, a
// payload that is not newer than the stored object is rejected with a *DowngradeError.
func (e *Engine) Upsert(ctx context.Context, t Target, payload map[string]any, allowDowngrade bool) (*Result, error) {
	if err := t.validate(); err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, fmt.Errorf("%w: empty payload", ErrValidation)
	}
	incoming := store.CloneDocument(payload)
	if err := t.bindIdentity(incoming); err != nil {
		return nil, err
	}
	value, present := incoming[memberLastUpdated]
	stamp, err := e.stampOf(value, present)
	if err != nil {
		return nil, err
	}
	setLastUpdated(incoming, stamp)

	var outcome Outcome
	r, err := e.store.Update(ctx, t.Kind, t.Key(), func(current *store.Resource) (*store.Resource, error) {
		outcome = Created
		if current == nil {
			if t.Nested() {
				return nil, fmt.Errorf("%w: location %s", ErrUnknownResource, t.Id)
			}
			return seal(nil, incoming)
		}
		doc := current.Data
		existing, parents, err := t.locate(doc)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			outcome = Updated
			if !allowDowngrade && !stamp.After(lastUpdated(existing)) {
				return nil, e.downgrade(incoming, current, t, existing)
			}
		}
		if !t.Nested() {
			return seal(current, incoming)
		}
		t.place(parents, incoming)
		advance(stamp, parents...)
		return seal(current, doc)
	})
	if err != nil {
		return nil, err
	}
	return resultOf(outcome, t, r)
}

func (e *Engine) downgrade(incoming map[string]any, current *store.Resource, t Target, existing map[string]any) error {
	d := &DowngradeError{
		Payload:     incoming,
		ETag:        current.ETag,
		LastUpdated: current.LastUpdated,
	}
	if t.Nested() {
		d.ETag, _ = store.Fingerprint(existing)
		d.LastUpdated = lastUpdated(existing)
	}
	return d
}

// Patch merges a partial update into the addressed object. The object's last_updated
// is taken from the patch when given, otherwise from the clock, and is written even
// when the patch changes nothing else.
func (e *Engine) Patch(ctx context.Context, t Target, patch mergepatch.Patch) (*Result, error) {
	if err := t.validate(); err != nil {
		return nil, err
	}
	member, id := t.identity()
	if value, ok := patch.Value(member); ok && value != id {
		return nil, fmt.Errorf("%w: %s cannot be changed", ErrValidation, member)
	}
	value, present := patch.Value(memberLastUpdated)
	stamp, err := e.stampOf(value, present)
	if err != nil {
		return nil, err
	}
	p := make(mergepatch.Patch, len(patch)+1)
	for name, field := range patch {
		p[name] = field
	}
	p.Delete(memberLastUpdated)

	r, err := e.store.Update(ctx, t.Kind, t.Key(), func(current *store.Resource) (*store.Resource, error) {
		if current == nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownResource, t)
		}
		object, parents, err := t.locate(current.Data)
		if err != nil {
			return nil, err
		}
		if object == nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownResource, t)
		}
		previous := lastUpdated(object)
		patched := p.Apply(object)
		if stamp.After(previous) {
			setLastUpdated(patched, stamp)
		} else {
			setLastUpdated(patched, previous)
		}
		if !t.Nested() {
			return seal(current, patched)
		}
		t.place(parents, patched)
		advance(stamp, parents...)
		return seal(current, current.Data)
	})
	if err != nil {
		return nil, err
	}
	return resultOf(Updated, t, r)
}

func (e *Engine) Get(ctx context.Context, t Target) (*Result, error) {
	if err := t.validate(); err != nil {
		return nil, err
	}
	r, err := e.store.Get(ctx, t.Kind, t.Key())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownResource, t)
		}
		return nil, err
	}
	return resultOf(Updated, t, r)
}

// Remove deletes a top level resource; nested objects are retired by patching their status.
func (e *Engine) Remove(ctx context.Context, t Target) error {
	if err := t.validate(); err != nil {
		return err
	}
	if t.Nested() {
		return fmt.Errorf("%w: nested objects cannot be removed", ErrValidation)
	}
	if err := e.store.Remove(ctx, t.Kind, t.Key()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrUnknownResource, t)
		}
		return err
	}
	return nil
}

func (e *Engine) List(ctx context.Context, kind store.Kind, opts store.ListOptions) ([]*store.Resource, int, error) {
	return e.store.List(ctx, kind, opts)
}

// EvseUids lists the EVSEs of a stored location; found is false when the location is unknown.
func (e *Engine) EvseUids(ctx context.Context, countryCode, partyId, locationId string) ([]string, bool, error) {
	r, err := e.store.Get(ctx, store.KindLocation, store.Key{CountryCode: countryCode, PartyId: partyId, Id: locationId})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	items, _ := r.Data[memberEvses].([]any)
	uids := make([]string, 0, len(items))
	for _, item := range items {
		if evse, ok := item.(map[string]any); ok {
			if uid, ok := evse[memberUid].(string); ok {
				uids = append(uids, uid)
			}
		}
	}
	return uids, true, nil
}
