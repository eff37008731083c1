package common

// EnergyMix describes the energy mix and environmental impact of the energy supplied at a location or in a tariff.
type EnergyMix struct {
	IsGreenEnergy       bool                   `json:"is_green_energy" bson:"is_green_energy"`
	EnergySources       []*EnergySource        `json:"energy_sources,omitempty" bson:"energy_sources,omitempty" validate:"omitempty,dive"`
	EnvironmentalImpact []*EnvironmentalImpact `json:"environ_impact,omitempty" bson:"environ_impact,omitempty" validate:"omitempty,dive"`
	SupplierName        string                 `json:"supplier_name,omitempty" bson:"supplier_name,omitempty" validate:"omitempty,max=64"`
	EnergyProductName   string                 `json:"energy_product_name,omitempty" bson:"energy_product_name,omitempty" validate:"omitempty,max=64"`
}

// EnergySource percentages should add up to 100 per category.
type EnergySource struct {
	Source     EnergySourceCategory `json:"source" bson:"source" validate:"required,oneof=NUCLEAR GENERAL_FOSSIL COAL GAS GENERAL_GREEN SOLAR WIND WATER"`
	Percentage float64              `json:"percentage" bson:"percentage" validate:"min=0,max=100"`
}

type EnergySourceCategory string

const (
	SourceNuclear       EnergySourceCategory = "NUCLEAR"
	SourceGeneralFossil EnergySourceCategory = "GENERAL_FOSSIL"
	SourceCoal          EnergySourceCategory = "COAL"
	SourceGas           EnergySourceCategory = "GAS"
	SourceGeneralGreen  EnergySourceCategory = "GENERAL_GREEN"
	SourceSolar         EnergySourceCategory = "SOLAR"
	SourceWind          EnergySourceCategory = "WIND"
	SourceWater         EnergySourceCategory = "WATER"
)

// EnvironmentalImpact amount is in g/kWh.
type EnvironmentalImpact struct {
	Category EnvironmentalImpactCategory `json:"source" bson:"source" validate:"required,oneof=NUCLEAR_WASTE CARBON_DIOXIDE"`
	Amount   float64                     `json:"amount" bson:"amount" validate:"min=0"`
}

type EnvironmentalImpactCategory string

const (
	ImpactNuclearWaste  EnvironmentalImpactCategory = "NUCLEAR_WASTE"
	ImpactCarbonDioxide EnvironmentalImpactCategory = "CARBON_DIOXIDE"
)
