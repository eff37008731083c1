package internal

import "time"

// EventHandler receives notable protocol events, e.g. to notify operators.
type EventHandler interface {
	OnAuthorize(event *EventMessage)
	OnCommandResult(event *EventMessage)
}

type EventMessage struct {
	Type        string      `json:"type" bson:"type"`
	CountryCode string      `json:"country_code" bson:"country_code"`
	PartyId     string      `json:"party_id" bson:"party_id"`
	Time        time.Time   `json:"time" bson:"time"`
	TokenUid    string      `json:"token_uid,omitempty" bson:"token_uid,omitempty"`
	LocationId  string      `json:"location_id,omitempty" bson:"location_id,omitempty"`
	CommandId   string      `json:"command_id,omitempty" bson:"command_id,omitempty"`
	Status      string      `json:"status" bson:"status"`
	Info        string      `json:"info" bson:"info"`
	Payload     interface{} `json:"payload,omitempty" bson:"payload,omitempty"`
}
