package mergepatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func document() map[string]any {
	return map[string]any{
		"name":  "Station",
		"city":  "Utrecht",
		"hours": map[string]any{"twentyfourseven": true, "regular": []any{"mon"}},
		"evses": []any{map[string]any{"uid": "E1"}, map[string]any{"uid": "E2"}},
	}
}

func TestAbsentMembersUntouched(t *testing.T) {
	p, err := Parse([]byte(`{"name":"Depot"}`))
	require.NoError(t, err)
	out := p.Apply(document())
	assert.Equal(t, "Depot", out["name"])
	assert.Equal(t, "Utrecht", out["city"])
	assert.Equal(t, document()["evses"], out["evses"])
}

func TestNullRemovesMember(t *testing.T) {
	p, err := Parse([]byte(`{"city":null}`))
	require.NoError(t, err)
	out := p.Apply(document())
	_, ok := out["city"]
	assert.False(t, ok)
	assert.Equal(t, "Station", out["name"])
}

func TestObjectsMergeRecursively(t *testing.T) {
	p, err := Parse([]byte(`{"hours":{"twentyfourseven":false,"regular":null,"exceptional":[]}}`))
	require.NoError(t, err)
	out := p.Apply(document())
	assert.Equal(t, map[string]any{"twentyfourseven": false, "exceptional": []any{}}, out["hours"])
}

func TestArraysReplacedWholesale(t *testing.T) {
	p, err := Parse([]byte(`{"evses":[{"uid":"E3"}]}`))
	require.NoError(t, err)
	out := p.Apply(document())
	assert.Equal(t, []any{map[string]any{"uid": "E3"}}, out["evses"])
}

func TestObjectOverScalarStartsEmpty(t *testing.T) {
	p, err := Parse([]byte(`{"city":{"name":"Utrecht","zip":null}}`))
	require.NoError(t, err)
	out := p.Apply(document())
	assert.Equal(t, map[string]any{"name": "Utrecht"}, out["city"])
}

func TestApplyDoesNotModifyTarget(t *testing.T) {
	target := document()
	p, err := Parse([]byte(`{"hours":{"twentyfourseven":false},"name":null}`))
	require.NoError(t, err)
	_ = p.Apply(target)
	assert.Equal(t, document(), target)
}

func TestApplyIsIdempotent(t *testing.T) {
	p, err := Parse([]byte(`{"name":"Depot","city":null,"hours":{"regular":["tue"]}}`))
	require.NoError(t, err)
	once := p.Apply(document())
	twice := p.Apply(once)
	assert.Equal(t, once, twice)
}

func TestParseRejectsNonObject(t *testing.T) {
	for _, body := range []string{`[]`, `"x"`, `null`, `12`} {
		_, err := Parse([]byte(body))
		assert.ErrorIs(t, err, ErrNotObject, body)
	}
	_, err := Parse([]byte(`{"name":`))
	assert.Error(t, err)
}

func TestBuilderAndValue(t *testing.T) {
	p := Patch{}.Set("name", "Depot").Delete("city").Set("hours", map[string]any{"regular": nil})

	v, ok := p.Value("name")
	assert.True(t, ok)
	assert.Equal(t, "Depot", v)

	v, ok = p.Value("city")
	assert.True(t, ok)
	assert.Nil(t, v)

	_, ok = p.Value("evses")
	assert.False(t, ok)

	assert.Equal(t, []string{"city", "hours", "name"}, p.Names())
	assert.Equal(t, map[string]any{
		"name":  "Depot",
		"city":  nil,
		"hours": map[string]any{"regular": nil},
	}, p.Document())
}
