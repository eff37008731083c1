package tokens

import (
	"context"
	"emsp/entity"
	"emsp/internal/store"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func status(uid, lastUpdated string, allowed entity.AllowedType) *entity.TokenStatus {
	return &entity.TokenStatus{
		Token: entity.Token{
			Uid:         uid,
			Type:        entity.TokenRFID,
			AuthId:      "NL-EMS-" + uid,
			Issuer:      "EMS",
			Valid:       true,
			Whitelist:   entity.WhitelistAllowed,
			LastUpdated: lastUpdated,
		},
		Status: allowed,
	}
}

func TestPutAndLookup(t *testing.T) {
	r := New(store.NewMemory(), "NL", "EMS")
	ctx := context.Background()

	_, found, err := r.Lookup(ctx, "T1")
	require.NoError(t, err)
	assert.False(t, found)

	in := status("T1", "2024-03-01T12:00:00Z", entity.Allowed)
	in.Location = &entity.LocationReference{LocationId: "HOME"}
	_, err = r.Put(ctx, in)
	require.NoError(t, err)

	got, found, err := r.Lookup(ctx, "T1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, in, got)
}

func TestPutStampsAndValidates(t *testing.T) {
	r := New(store.NewMemory(), "NL", "EMS")
	r.now = func() time.Time { return time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC) }

	out, err := r.Put(context.Background(), status("T1", "", entity.Blocked))
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01T09:30:00Z", out.Token.LastUpdated)

	_, err = r.Put(context.Background(), status("T2", "", "SOMETIMES"))
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = r.Put(context.Background(), status("T3", "yesterday", entity.Allowed))
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, found, err := r.Lookup(context.Background(), "T3")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestListPages(t *testing.T) {
	s := store.NewMemory()
	r := New(s, "NL", "EMS")
	ctx := context.Background()
	for _, ts := range []struct{ uid, at string }{
		{"T2", "2024-03-01T12:00:00Z"},
		{"T1", "2024-03-01T11:00:00Z"},
		{"T3", "2024-03-01T13:00:00Z"},
	} {
		_, err := r.Put(ctx, status(ts.uid, ts.at, entity.Allowed))
		require.NoError(t, err)
	}

	list, total, err := r.List(ctx, store.ListOptions{Offset: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, list, 2)
	assert.Equal(t, "T2", list[0].Uid)
	assert.Equal(t, "T3", list[1].Uid)

	other := New(s, "DE", "XYZ")
	_, total, err = other.List(ctx, store.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}
