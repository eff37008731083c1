// Package tokens keeps the EMSP's own tokens and their authorization status.
package tokens

import (
	"context"
	"emsp/entity"
	"emsp/internal/store"
	"emsp/ocpi"
	"emsp/utility"
	"errors"
	"fmt"
	"time"
)

var ErrInvalidToken = errors.New("invalid token")

type Registry struct {
	store       store.Store
	countryCode string
	partyId     string
	now         func() time.Time
}

// New keeps tokens under the EMSP's own country code and party id.
func New(s store.Store, countryCode, partyId string) *Registry {
	return &Registry{
		store:       s,
		countryCode: countryCode,
		partyId:     partyId,
		now:         time.Now,
	}
}

func (r *Registry) key(uid string) store.Key {
	return store.Key{CountryCode: r.countryCode, PartyId: r.partyId, Id: uid}
}

// Put stores the status of a token, replacing any earlier one.
func (r *Registry) Put(ctx context.Context, status *entity.TokenStatus) (*entity.TokenStatus, error) {
	if status.Token.LastUpdated == "" {
		status.Token.LastUpdated = ocpi.FormatTime(r.now())
	}
	if err := entity.Validate(status); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	lastUpdated, err := ocpi.ParseTime(status.Token.LastUpdated)
	if err != nil {
		return nil, fmt.Errorf("%w: last_updated: %v", ErrInvalidToken, err)
	}
	doc, err := toDocument(status)
	if err != nil {
		return nil, err
	}
	etag, err := store.Fingerprint(doc)
	if err != nil {
		return nil, err
	}
	_, err = r.store.Update(ctx, store.KindToken, r.key(status.Token.Uid), func(*store.Resource) (*store.Resource, error) {
		return &store.Resource{Data: doc, LastUpdated: lastUpdated, ETag: etag}, nil
	})
	if err != nil {
		return nil, err
	}
	return status, nil
}

func (r *Registry) Lookup(ctx context.Context, uid string) (*entity.TokenStatus, bool, error) {
	res, err := r.store.Get(ctx, store.KindToken, r.key(uid))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	status, err := fromDocument(res.Data)
	if err != nil {
		return nil, false, err
	}
	return status, true, nil
}

// List pages through the tokens ordered by last update.
func (r *Registry) List(ctx context.Context, opts store.ListOptions) ([]entity.Token, int, error) {
	opts.CountryCode = r.countryCode
	opts.PartyId = r.partyId
	items, total, err := r.store.List(ctx, store.KindToken, opts)
	if err != nil {
		return nil, 0, err
	}
	list := make([]entity.Token, 0, len(items))
	for _, item := range items {
		status, err := fromDocument(item.Data)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, status.Token)
	}
	return list, total, nil
}

func toDocument(status *entity.TokenStatus) (map[string]any, error) {
	b, err := utility.Json.Marshal(status)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err = utility.Json.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func fromDocument(doc map[string]any) (*entity.TokenStatus, error) {
	b, err := utility.Json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	status := &entity.TokenStatus{}
	if err = utility.Json.Unmarshal(b, status); err != nil {
		return nil, err
	}
	return status, nil
}
