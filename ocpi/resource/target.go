package resource

import (
	"emsp/entity"
	"emsp/internal/store"
	"emsp/ocpi"
	"fmt"
	"time"
)

const (
	memberId          = "id"
	memberUid         = "uid"
	memberLastUpdated = "last_updated"
	memberEvses       = "evses"
	memberConnectors  = "connectors"
)

// Target addresses one object: a top level resource or an EVSE or
// connector nested inside a location.
type Target struct {
	Kind        store.Kind `validate:"required"`
	CountryCode string     `validate:"required,len=2"`
	PartyId     string     `validate:"required,len=3"`
	Id          string     `validate:"required,max=39"`
	EvseUid     string     `validate:"omitempty,max=39"`
	ConnectorId string     `validate:"omitempty,max=36"`
}

func (t Target) Key() store.Key {
	return store.Key{CountryCode: t.CountryCode, PartyId: t.PartyId, Id: t.Id}
}

func (t Target) Nested() bool {
	return t.EvseUid != ""
}

func (t Target) String() string {
	s := fmt.Sprintf("%s/%s/%s/%s", t.Kind, t.CountryCode, t.PartyId, t.Id)
	if t.EvseUid != "" {
		s += "/" + t.EvseUid
	}
	if t.ConnectorId != "" {
		s += "/" + t.ConnectorId
	}
	return s
}

// identity names the member that carries the object's own id and its expected value.
func (t Target) identity() (string, string) {
	switch {
	case t.ConnectorId != "":
		return memberId, t.ConnectorId
	case t.EvseUid != "":
		return memberUid, t.EvseUid
	default:
		return memberId, t.Id
	}
}

func (t Target) validate() error {
	if err := entity.Validate(t); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if t.ConnectorId != "" && t.EvseUid == "" {
		return fmt.Errorf("%w: connector without evse", ErrValidation)
	}
	if t.Nested() && t.Kind != store.KindLocation {
		return fmt.Errorf("%w: %s have no nested objects", ErrValidation, t.Kind)
	}
	return nil
}

// bindIdentity writes the identity from the path into the object, a differing value is rejected.
func (t Target) bindIdentity(object map[string]any) error {
	member, id := t.identity()
	if value, ok := object[member]; ok && value != id {
		return fmt.Errorf("%w: %s %v does not match %s", ErrValidation, member, value, id)
	}
	object[member] = id
	return nil
}

// locate finds the addressed object in a location document, returning it with its
// enclosing objects outermost first. The object is nil when only its parent exists.
func (t Target) locate(doc map[string]any) (object map[string]any, parents []map[string]any, err error) {
	if !t.Nested() {
		return doc, nil, nil
	}
	evse := findChild(doc, memberEvses, memberUid, t.EvseUid)
	if t.ConnectorId == "" {
		return evse, []map[string]any{doc}, nil
	}
	if evse == nil {
		return nil, nil, fmt.Errorf("%w: evse %s", ErrUnknownResource, t.EvseUid)
	}
	connector := findChild(evse, memberConnectors, memberId, t.ConnectorId)
	return connector, []map[string]any{doc, evse}, nil
}

// place stores object as the addressed child of the innermost parent.
func (t Target) place(parents []map[string]any, object map[string]any) {
	parent := parents[len(parents)-1]
	if t.ConnectorId != "" {
		setChild(parent, memberConnectors, memberId, t.ConnectorId, object)
		return
	}
	setChild(parent, memberEvses, memberUid, t.EvseUid, object)
}

func findChild(parent map[string]any, member, idMember, id string) map[string]any {
	items, _ := parent[member].([]any)
	for _, item := range items {
		if child, ok := item.(map[string]any); ok && child[idMember] == id {
			return child
		}
	}
	return nil
}

func setChild(parent map[string]any, member, idMember, id string, object map[string]any) {
	items, _ := parent[member].([]any)
	for i, item := range items {
		if child, ok := item.(map[string]any); ok && child[idMember] == id {
			items[i] = object
			return
		}
	}
	parent[member] = append(items, object)
}

// lastUpdated reads the last_updated member, zero when absent or malformed.
func lastUpdated(object map[string]any) time.Time {
	value, _ := object[memberLastUpdated].(string)
	if value == "" {
		return time.Time{}
	}
	t, err := ocpi.ParseTime(value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func setLastUpdated(object map[string]any, t time.Time) {
	object[memberLastUpdated] = ocpi.FormatTime(t)
}

// advance moves the last_updated member of each object forward to t, never back.
func advance(t time.Time, objects ...map[string]any) {
	for _, object := range objects {
		if t.After(lastUpdated(object)) {
			setLastUpdated(object, t)
		}
	}
}
