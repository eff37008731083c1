package resource

import (
	"context"
	"emsp/internal/mergepatch"
	"emsp/internal/store"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	t1 = "2024-03-01T10:00:00Z"
	t2 = "2024-03-01T11:00:00Z"
	t3 = "2024-03-01T12:00:00Z"
)

func location() Target {
	return Target{Kind: store.KindLocation, CountryCode: "NL", PartyId: "CPO", Id: "LOC1"}
}

func evse(uid string) Target {
	t := location()
	t.EvseUid = uid
	return t
}

func connector(uid, id string) Target {
	t := evse(uid)
	t.ConnectorId = id
	return t
}

func newEngine(t *testing.T) (*Engine, store.Store) {
	t.Helper()
	s := store.NewMemory()
	e := New(s)
	e.SetClock(func() time.Time { return time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC) })
	return e, s
}

func locationPayload(name, lastUpdated string) map[string]any {
	return map[string]any{
		"id":           "LOC1",
		"name":         name,
		"last_updated": lastUpdated,
		"evses": []any{
			map[string]any{"uid": "E1", "status": "AVAILABLE", "last_updated": lastUpdated,
				"connectors": []any{map[string]any{"id": "1", "standard": "IEC_62196_T2", "last_updated": lastUpdated}}},
		},
	}
}

func TestUpsertCreatesThenUpdates(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	res, err := e.Upsert(ctx, location(), locationPayload("A", t1), false)
	require.NoError(t, err)
	assert.Equal(t, Created, res.Outcome)
	assert.NotEmpty(t, res.ETag)
	assert.Equal(t, t1, res.Object["last_updated"])

	res2, err := e.Upsert(ctx, location(), locationPayload("B", t2), false)
	require.NoError(t, err)
	assert.Equal(t, Updated, res2.Outcome)
	assert.NotEqual(t, res.ETag, res2.ETag)
	assert.Equal(t, "B", res2.Object["name"])
}

func TestUpsertIdenticalContentKeepsETag(t *testing.T) {
	e, s := newEngine(t)
	ctx := context.Background()

	first, err := e.Upsert(ctx, location(), locationPayload("A", t1), false)
	require.NoError(t, err)

	_, err = e.Upsert(ctx, location(), locationPayload("A", t1), false)
	var downgrade *DowngradeError
	require.ErrorAs(t, err, &downgrade)

	forced, err := e.Upsert(ctx, location(), locationPayload("A", t1), true)
	require.NoError(t, err)
	assert.Equal(t, first.ETag, forced.ETag)

	stored, err := s.Get(ctx, store.KindLocation, location().Key())
	require.NoError(t, err)
	assert.Equal(t, first.ETag, stored.ETag)
}

func TestUpsertDowngradeProtection(t *testing.T) {
	e, s := newEngine(t)
	ctx := context.Background()

	newer, err := e.Upsert(ctx, location(), locationPayload("new", t2), false)
	require.NoError(t, err)

	_, err = e.Upsert(ctx, location(), locationPayload("old", t1), false)
	assert.ErrorIs(t, err, ErrDowngrade)
	var downgrade *DowngradeError
	require.ErrorAs(t, err, &downgrade)
	assert.Equal(t, newer.ETag, downgrade.ETag)
	assert.Equal(t, t2, downgrade.LastUpdated.Format(time.RFC3339))
	assert.Equal(t, "old", downgrade.Payload["name"])

	stored, err := s.Get(ctx, store.KindLocation, location().Key())
	require.NoError(t, err)
	assert.Equal(t, "new", stored.Data["name"])

	forced, err := e.Upsert(ctx, location(), locationPayload("old", t1), true)
	require.NoError(t, err)
	assert.Equal(t, Updated, forced.Outcome)
	stored, err = s.Get(ctx, store.KindLocation, location().Key())
	require.NoError(t, err)
	assert.Equal(t, "old", stored.Data["name"])
	assert.Equal(t, t1, stored.LastUpdated.Format(time.RFC3339))
}

func TestUpsertIdentityFromPath(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	payload := locationPayload("A", t1)
	delete(payload, "id")
	res, err := e.Upsert(ctx, location(), payload, false)
	require.NoError(t, err)
	assert.Equal(t, "LOC1", res.Object["id"])

	payload = locationPayload("A", t2)
	payload["id"] = "LOC2"
	_, err = e.Upsert(ctx, location(), payload, false)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUpsertWithoutLastUpdatedUsesClock(t *testing.T) {
	e, _ := newEngine(t)
	res, err := e.Upsert(context.Background(), location(), map[string]any{"name": "A"}, false)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-02T08:00:00Z", res.Object["last_updated"])

	_, err = e.Upsert(context.Background(), location(), map[string]any{"last_updated": "soon"}, true)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUpsertRejectsInvalidTarget(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	bad := location()
	bad.CountryCode = "NLD"
	_, err := e.Upsert(ctx, bad, map[string]any{}, false)
	assert.ErrorIs(t, err, ErrValidation)

	session := Target{Kind: store.KindSession, CountryCode: "NL", PartyId: "CPO", Id: "S1", EvseUid: "E1"}
	_, err = e.Upsert(ctx, session, map[string]any{}, false)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUpsertEvseStampsParent(t *testing.T) {
	e, s := newEngine(t)
	ctx := context.Background()

	_, err := e.Upsert(ctx, evse("E1"), map[string]any{"status": "CHARGING", "last_updated": t2}, false)
	assert.ErrorIs(t, err, ErrUnknownResource)

	loc, err := e.Upsert(ctx, location(), locationPayload("A", t1), false)
	require.NoError(t, err)

	res, err := e.Upsert(ctx, evse("E1"), map[string]any{"status": "CHARGING", "last_updated": t2}, false)
	require.NoError(t, err)
	assert.Equal(t, Updated, res.Outcome)
	assert.Equal(t, "E1", res.Object["uid"])
	assert.Equal(t, t2, res.LastUpdated.Format(time.RFC3339))

	stored, err := s.Get(ctx, store.KindLocation, location().Key())
	require.NoError(t, err)
	assert.Equal(t, t2, stored.Data["last_updated"])
	assert.True(t, stored.LastUpdated.After(loc.LastUpdated))
	assert.NotEqual(t, loc.ETag, stored.ETag)
	evses := stored.Data["evses"].([]any)
	require.Len(t, evses, 1)
	assert.Equal(t, "CHARGING", evses[0].(map[string]any)["status"])

	res, err = e.Upsert(ctx, evse("E2"), map[string]any{"status": "AVAILABLE", "last_updated": t3}, false)
	require.NoError(t, err)
	assert.Equal(t, Created, res.Outcome)
	stored, err = s.Get(ctx, store.KindLocation, location().Key())
	require.NoError(t, err)
	assert.Len(t, stored.Data["evses"], 2)

	_, err = e.Upsert(ctx, evse("E1"), map[string]any{"status": "BLOCKED", "last_updated": t1}, false)
	assert.ErrorIs(t, err, ErrDowngrade)
}

func TestUpsertConnectorRequiresEvse(t *testing.T) {
	e, s := newEngine(t)
	ctx := context.Background()
	_, err := e.Upsert(ctx, location(), locationPayload("A", t1), false)
	require.NoError(t, err)

	_, err = e.Upsert(ctx, connector("E9", "1"), map[string]any{"last_updated": t2}, false)
	assert.ErrorIs(t, err, ErrUnknownResource)

	res, err := e.Upsert(ctx, connector("E1", "2"), map[string]any{"standard": "CHADEMO", "last_updated": t2}, false)
	require.NoError(t, err)
	assert.Equal(t, Created, res.Outcome)
	assert.Equal(t, "2", res.Object["id"])

	stored, err := s.Get(ctx, store.KindLocation, location().Key())
	require.NoError(t, err)
	e1 := stored.Data["evses"].([]any)[0].(map[string]any)
	assert.Len(t, e1["connectors"], 2)
	assert.Equal(t, t2, e1["last_updated"])
	assert.Equal(t, t2, stored.Data["last_updated"])
}

func TestPatchMergesAndStamps(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()
	created, err := e.Upsert(ctx, location(), locationPayload("A", t1), false)
	require.NoError(t, err)

	p := mergepatch.Patch{}.Set("name", "B").Set("city", "Utrecht")
	res, err := e.Patch(ctx, location(), p)
	require.NoError(t, err)
	assert.Equal(t, "B", res.Object["name"])
	assert.Equal(t, "Utrecht", res.Object["city"])
	assert.Equal(t, created.Object["evses"], res.Object["evses"])
	assert.Equal(t, "2024-03-02T08:00:00Z", res.Object["last_updated"])
	assert.NotEqual(t, created.ETag, res.ETag)

	res, err = e.Patch(ctx, location(), mergepatch.Patch{}.Delete("city"))
	require.NoError(t, err)
	_, ok := res.Object["city"]
	assert.False(t, ok)
}

func TestPatchTwiceSameContent(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()
	_, err := e.Upsert(ctx, location(), locationPayload("A", t1), false)
	require.NoError(t, err)

	p, err := mergepatch.Parse([]byte(`{"name":"B","evses":null}`))
	require.NoError(t, err)
	first, err := e.Patch(ctx, location(), p)
	require.NoError(t, err)
	second, err := e.Patch(ctx, location(), p)
	require.NoError(t, err)
	assert.Equal(t, first.Object, second.Object)
}

func TestPatchUsesGivenLastUpdated(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()
	_, err := e.Upsert(ctx, location(), locationPayload("A", t1), false)
	require.NoError(t, err)

	res, err := e.Patch(ctx, location(), mergepatch.Patch{}.Set("last_updated", t3))
	require.NoError(t, err)
	assert.Equal(t, t3, res.Object["last_updated"])
	assert.Equal(t, t3, res.LastUpdated.Format(time.RFC3339))

	res, err = e.Patch(ctx, location(), mergepatch.Patch{}.Set("last_updated", t2))
	require.NoError(t, err)
	assert.Equal(t, t3, res.Object["last_updated"], "last_updated never moves back on patch")
}

func TestPatchRejections(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	_, err := e.Patch(ctx, location(), mergepatch.Patch{}.Set("name", "B"))
	assert.ErrorIs(t, err, ErrUnknownResource)

	_, err = e.Upsert(ctx, location(), locationPayload("A", t1), false)
	require.NoError(t, err)

	_, err = e.Patch(ctx, location(), mergepatch.Patch{}.Set("id", "LOC2"))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = e.Patch(ctx, location(), mergepatch.Patch{}.Delete("id"))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = e.Patch(ctx, evse("E7"), mergepatch.Patch{}.Set("status", "BLOCKED"))
	assert.ErrorIs(t, err, ErrUnknownResource)
}

func TestPatchConnector(t *testing.T) {
	e, s := newEngine(t)
	ctx := context.Background()
	_, err := e.Upsert(ctx, location(), locationPayload("A", t1), false)
	require.NoError(t, err)

	res, err := e.Patch(ctx, connector("E1", "1"), mergepatch.Patch{}.Set("max_amperage", 32.0).Set("last_updated", t2))
	require.NoError(t, err)
	assert.Equal(t, 32.0, res.Object["max_amperage"])
	assert.Equal(t, "IEC_62196_T2", res.Object["standard"])

	stored, err := s.Get(ctx, store.KindLocation, location().Key())
	require.NoError(t, err)
	assert.Equal(t, t2, stored.Data["last_updated"])
	e1 := stored.Data["evses"].([]any)[0].(map[string]any)
	assert.Equal(t, t2, e1["last_updated"])
}

func TestGetAndRemove(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()
	tariff := Target{Kind: store.KindTariff, CountryCode: "NL", PartyId: "CPO", Id: "T1"}

	_, err := e.Get(ctx, tariff)
	assert.ErrorIs(t, err, ErrUnknownResource)

	_, err = e.Upsert(ctx, tariff, map[string]any{"currency": "EUR", "last_updated": t1}, false)
	require.NoError(t, err)
	res, err := e.Get(ctx, tariff)
	require.NoError(t, err)
	assert.Equal(t, "EUR", res.Object["currency"])

	require.NoError(t, e.Remove(ctx, tariff))
	assert.ErrorIs(t, e.Remove(ctx, tariff), ErrUnknownResource)
	assert.ErrorIs(t, e.Remove(ctx, evse("E1")), ErrValidation)
}

func TestGetNestedObject(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()
	_, err := e.Upsert(ctx, location(), locationPayload("A", t1), false)
	require.NoError(t, err)

	res, err := e.Get(ctx, connector("E1", "1"))
	require.NoError(t, err)
	assert.Equal(t, "IEC_62196_T2", res.Object["standard"])
	assert.Equal(t, t1, res.LastUpdated.Format(time.RFC3339))

	_, err = e.Get(ctx, connector("E1", "9"))
	assert.ErrorIs(t, err, ErrUnknownResource)
}

func TestCancelledContextLeavesStoreUnchanged(t *testing.T) {
	e, s := newEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Upsert(ctx, location(), locationPayload("A", t1), false)
	require.Error(t, err)
	_, err = s.Get(context.Background(), store.KindLocation, location().Key())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestEvseUids(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	_, found, err := e.EvseUids(ctx, "NL", "CPO", "LOC1")
	require.NoError(t, err)
	assert.False(t, found)

	payload := locationPayload("A", t1)
	payload["evses"] = append(payload["evses"].([]any), map[string]any{"uid": "E2"})
	_, err = e.Upsert(ctx, location(), payload, false)
	require.NoError(t, err)

	uids, found, err := e.EvseUids(ctx, "NL", "CPO", "LOC1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []string{"E1", "E2"}, uids)
}
