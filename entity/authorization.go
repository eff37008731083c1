package entity

import (
	"emsp/entity/common"
	"time"
)

type AllowedType string

const (
	Allowed    AllowedType = "ALLOWED"
	Blocked    AllowedType = "BLOCKED"
	Expired    AllowedType = "EXPIRED"
	NoCredit   AllowedType = "NO_CREDIT"
	NotAllowed AllowedType = "NOT_ALLOWED"
)

// LocationReference narrows an authorization to a location and, optionally, some of its EVSEs.
type LocationReference struct {
	LocationId string   `json:"location_id" bson:"location_id" validate:"required,max=39"`
	EvseUids   []string `json:"evse_uids,omitempty" bson:"evse_uids,omitempty" validate:"omitempty,dive,max=39"`
}

func (l *LocationReference) Clone() *LocationReference {
	if l == nil {
		return nil
	}
	c := &LocationReference{LocationId: l.LocationId}
	if l.EvseUids != nil {
		c.EvseUids = append([]string{}, l.EvseUids...)
	}
	return c
}

type AuthorizationInfo struct {
	Allowed  AllowedType         `json:"allowed" bson:"allowed"`
	Location *LocationReference  `json:"location,omitempty" bson:"location,omitempty"`
	Info     *common.DisplayText `json:"info,omitempty" bson:"info,omitempty"`
	Runtime  time.Duration       `json:"-" bson:"-"`
}
