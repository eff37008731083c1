package store

import (
	"context"
	"emsp/internal/config"
	"fmt"
)

const (
	TypeMemory   = "memory"
	TypeMongo    = "mongo"
	TypeBolt     = "bolt"
	TypePostgres = "postgres"
)

// New opens the backend selected by store.type.
func New(ctx context.Context, conf *config.Config) (Store, error) {
	switch conf.Store.Type {
	case TypeMemory, "":
		return NewMemory(), nil
	case TypeMongo:
		return NewMongoClient(ctx, conf)
	case TypeBolt:
		return NewBolt(conf.Bolt.Path)
	case TypePostgres:
		return NewPostgres(ctx, conf.Postgres.Url)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", conf.Store.Type)
	}
}
