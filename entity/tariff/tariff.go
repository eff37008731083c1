package tariff

import (
	"emsp/entity"
	"emsp/entity/common"
	"emsp/utility"
	"fmt"
)

type Tariff struct {
	Id          string                `json:"id" bson:"id" validate:"required,max=36"`
	Currency    string                `json:"currency" bson:"currency" validate:"required,len=3"`
	AltText     []*common.DisplayText `json:"tariff_alt_text,omitempty" bson:"tariff_alt_text,omitempty" validate:"omitempty,dive"`
	AltUrl      string                `json:"tariff_alt_url,omitempty" bson:"tariff_alt_url,omitempty" validate:"omitempty,url"`
	Elements    []*Element            `json:"elements" bson:"elements" validate:"required,min=1,dive"`
	EnergyMix   *common.EnergyMix     `json:"energy_mix,omitempty" bson:"energy_mix,omitempty" validate:"omitempty"`
	LastUpdated string                `json:"last_updated,omitempty" bson:"last_updated,omitempty"`
}

type Element struct {
	PriceComponents []*PriceComponent `json:"price_components" bson:"price_components" validate:"required,min=1,dive"`
	Restrictions    *Restrictions     `json:"restrictions,omitempty" bson:"restrictions,omitempty" validate:"omitempty"`
}

// Check decodes a pushed tariff document and validates it against the tariff model.
func Check(doc map[string]any) error {
	b, err := utility.Json.Marshal(doc)
	if err != nil {
		return err
	}
	t := &Tariff{}
	if err = utility.Json.Unmarshal(b, t); err != nil {
		return fmt.Errorf("tariff: %v", err)
	}
	return entity.Validate(t)
}

