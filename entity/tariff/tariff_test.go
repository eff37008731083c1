package tariff

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func tariffDoc() map[string]any {
	return map[string]any{
		"id":       "T1",
		"currency": "EUR",
		"elements": []any{
			map[string]any{
				"price_components": []any{
					map[string]any{"type": "ENERGY", "price": 0.25, "step_size": 1},
				},
				"restrictions": map[string]any{"start_time": "08:00", "day_of_week": []any{"MONDAY"}},
			},
		},
	}
}

func TestCheck(t *testing.T) {
	assert.NoError(t, Check(tariffDoc()))

	doc := tariffDoc()
	delete(doc, "elements")
	assert.Error(t, Check(doc))

	doc = tariffDoc()
	doc["currency"] = "EURO"
	assert.Error(t, Check(doc))

	doc = tariffDoc()
	doc["elements"].([]any)[0].(map[string]any)["restrictions"] = map[string]any{"day_of_week": []any{"FUNDAY"}}
	assert.Error(t, Check(doc))

	doc = tariffDoc()
	doc["elements"] = "none"
	assert.Error(t, Check(doc))
}


func TestCheckEnergyMix(t *testing.T) {
	doc := tariffDoc()
	doc["energy_mix"] = map[string]any{
		"is_green_energy": true,
		"energy_sources":  []any{map[string]any{"source": "SOLAR", "percentage": 80}},
	}
	assert.NoError(t, Check(doc))

	doc["energy_mix"] = map[string]any{
		"is_green_energy": true,
		"energy_sources":  []any{map[string]any{"source": "SOLAR", "percentage": 180}},
	}
	assert.Error(t, Check(doc))
}
