package store

import (
	"context"
	"emsp/utility"
	"time"

	bolt "go.etcd.io/bbolt"
)

type boltRecord struct {
	Key         Key            `json:"key"`
	Data        map[string]any `json:"data"`
	LastUpdated time.Time      `json:"last_updated"`
	ETag        string         `json:"etag"`
}

// Bolt is an embedded single-file backend, one bucket per kind.
type Bolt struct {
	db *bolt.DB
}

func NewBolt(path string) (*Bolt, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, kind := range []Kind{KindLocation, KindSession, KindTariff, KindCdr, KindToken} {
			if _, err := tx.CreateBucketIfNotExists([]byte(kind)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Bolt{db: db}, nil
}

func decodeRecord(kind Kind, v []byte) (*Resource, error) {
	var rec boltRecord
	if err := utility.Json.Unmarshal(v, &rec); err != nil {
		return nil, err
	}
	return &Resource{
		Kind:        kind,
		Key:         rec.Key,
		Data:        rec.Data,
		LastUpdated: rec.LastUpdated.UTC(),
		ETag:        rec.ETag,
	}, nil
}

func (s *Bolt) Get(_ context.Context, kind Kind, key Key) (*Resource, error) {
	var r *Resource
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(kind)).Get([]byte(key.String()))
		if v == nil {
			return ErrNotFound
		}
		var err error
		r, err = decodeRecord(kind, v)
		return err
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Bolt) Update(ctx context.Context, kind Kind, key Key, fn MutateFunc) (*Resource, error) {
	var result *Resource
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(kind))
		var current *Resource
		if v := b.Get([]byte(key.String())); v != nil {
			var err error
			if current, err = decodeRecord(kind, v); err != nil {
				return err
			}
		}
		next, err := fn(current.Clone())
		if err != nil {
			return err
		}
		if err = ctx.Err(); err != nil {
			return err
		}
		if next == nil {
			result = current
			return nil
		}
		data, err := utility.Json.Marshal(&boltRecord{
			Key:         key,
			Data:        next.Data,
			LastUpdated: next.LastUpdated.UTC(),
			ETag:        next.ETag,
		})
		if err != nil {
			return err
		}
		result = next.Clone()
		result.Kind = kind
		result.Key = key
		return b.Put([]byte(key.String()), data)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Bolt) Remove(_ context.Context, kind Kind, key Key) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(kind))
		if b.Get([]byte(key.String())) == nil {
			return ErrNotFound
		}
		return b.Delete([]byte(key.String()))
	})
}

func (s *Bolt) List(_ context.Context, kind Kind, opts ListOptions) ([]*Resource, int, error) {
	var matched []*Resource
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(kind)).ForEach(func(_, v []byte) error {
			r, err := decodeRecord(kind, v)
			if err != nil {
				return err
			}
			if opts.match(r) {
				matched = append(matched, r)
			}
			return nil
		})
	})
	if err != nil {
		return nil, 0, err
	}
	sortResources(matched)
	return page(matched, opts.Offset, opts.Limit), len(matched), nil
}

func (s *Bolt) Close(_ context.Context) error {
	return s.db.Close()
}
