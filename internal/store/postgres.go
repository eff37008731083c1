package store

import (
	"context"
	"emsp/utility"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
create table if not exists ocpi_resources (
    kind         text        not null,
    country_code text        not null,
    party_id     text        not null,
    id           text        not null,
    data         jsonb       not null,
    last_updated timestamptz not null,
    etag         text        not null,
    primary key (kind, country_code, party_id, id)
);
create index if not exists ocpi_resources_last_updated on ocpi_resources (kind, last_updated);
`

var errInsertRace = errors.New("concurrent insert")

// Postgres keeps all kinds in one jsonb table; updates lock the row for the
// duration of the transaction.
type Postgres struct {
	db *pgxpool.Pool
}

func NewPostgres(ctx context.Context, url string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnIdleTime = 5 * time.Minute
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	p := &Postgres{db: pool}
	if err = p.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResource(kind Kind, row rowScanner) (*Resource, error) {
	r := &Resource{Kind: kind}
	var data []byte
	if err := row.Scan(&r.Key.CountryCode, &r.Key.PartyId, &r.Key.Id, &data, &r.LastUpdated, &r.ETag); err != nil {
		return nil, err
	}
	if err := utility.Json.Unmarshal(data, &r.Data); err != nil {
		return nil, err
	}
	r.LastUpdated = r.LastUpdated.UTC()
	return r, nil
}

func (p *Postgres) Get(ctx context.Context, kind Kind, key Key) (*Resource, error) {
	row := p.db.QueryRow(ctx, `
        select country_code, party_id, id, data, last_updated, etag
        from ocpi_resources where kind=$1 and country_code=$2 and party_id=$3 and id=$4
    `, string(kind), key.CountryCode, key.PartyId, key.Id)
	r, err := scanResource(kind, row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return r, nil
}

func (p *Postgres) Update(ctx context.Context, kind Kind, key Key, fn MutateFunc) (*Resource, error) {
	for attempt := 0; attempt < maxUpdateRetries; attempt++ {
		result, err := p.update(ctx, kind, key, fn)
		if errors.Is(err, errInsertRace) {
			continue
		}
		return result, err
	}
	return nil, ErrConflict
}

func (p *Postgres) update(ctx context.Context, kind Kind, key Key, fn MutateFunc) (*Resource, error) {
	var result *Resource
	err := pgx.BeginFunc(ctx, p.db, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
            select country_code, party_id, id, data, last_updated, etag
            from ocpi_resources where kind=$1 and country_code=$2 and party_id=$3 and id=$4
            for update
        `, string(kind), key.CountryCode, key.PartyId, key.Id)
		current, err := scanResource(kind, row)
		if err != nil {
			if !errors.Is(err, pgx.ErrNoRows) {
				return err
			}
			current = nil
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
		data, err := utility.Json.Marshal(next.Data)
		if err != nil {
			return err
		}

		if current == nil {
			tag, err := tx.Exec(ctx, `
                insert into ocpi_resources (kind, country_code, party_id, id, data, last_updated, etag)
                values ($1,$2,$3,$4,$5::jsonb,$6,$7)
                on conflict do nothing
            `, string(kind), key.CountryCode, key.PartyId, key.Id, string(data), next.LastUpdated.UTC(), next.ETag)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				return errInsertRace
			}
		} else {
			_, err = tx.Exec(ctx, `
                update ocpi_resources set data=$5::jsonb, last_updated=$6, etag=$7
                where kind=$1 and country_code=$2 and party_id=$3 and id=$4
            `, string(kind), key.CountryCode, key.PartyId, key.Id, string(data), next.LastUpdated.UTC(), next.ETag)
			if err != nil {
				return err
			}
		}
		result = next.Clone()
		result.Kind = kind
		result.Key = key
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (p *Postgres) Remove(ctx context.Context, kind Kind, key Key) error {
	tag, err := p.db.Exec(ctx, `
        delete from ocpi_resources where kind=$1 and country_code=$2 and party_id=$3 and id=$4
    `, string(kind), key.CountryCode, key.PartyId, key.Id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) List(ctx context.Context, kind Kind, opts ListOptions) ([]*Resource, int, error) {
	where := []string{"kind=$1"}
	args := []any{string(kind)}
	add := func(clause string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if opts.CountryCode != "" {
		add("country_code=$%d", opts.CountryCode)
	}
	if opts.PartyId != "" {
		add("party_id=$%d", opts.PartyId)
	}
	if !opts.DateFrom.IsZero() {
		add("last_updated>=$%d", opts.DateFrom.UTC())
	}
	if !opts.DateTo.IsZero() {
		add("last_updated<$%d", opts.DateTo.UTC())
	}
	condition := strings.Join(where, " and ")

	var total int
	if err := p.db.QueryRow(ctx, "select count(*) from ocpi_resources where "+condition, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := "select country_code, party_id, id, data, last_updated, etag from ocpi_resources where " +
		condition + " order by last_updated, country_code, party_id, id"
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" limit $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" offset $%d", len(args))
	}
	rows, err := p.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := make([]*Resource, 0)
	for rows.Next() {
		r, err := scanResource(kind, rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, r)
	}
	return items, total, rows.Err()
}

func (p *Postgres) Close(_ context.Context) error {
	p.db.Close()
	return nil
}
