package entity

import (
	"emsp/entity/common"
	"fmt"
	"strings"
)

type CommandType string

const (
	ReserveNow        CommandType = "RESERVE_NOW"
	CancelReservation CommandType = "CANCEL_RESERVATION"
	StartSession      CommandType = "START_SESSION"
	StopSession       CommandType = "STOP_SESSION"
	UnlockConnector   CommandType = "UNLOCK_CONNECTOR"
)

func ParseCommandType(value string) (CommandType, error) {
	t := CommandType(strings.ToUpper(value))
	switch t {
	case ReserveNow, CancelReservation, StartSession, StopSession, UnlockConnector:
		return t, nil
	}
	return "", fmt.Errorf("unknown command type: %s", value)
}

type CommandResponseType string

const (
	CommandAccepted       CommandResponseType = "ACCEPTED"
	CommandRejected       CommandResponseType = "REJECTED"
	CommandUnknownSession CommandResponseType = "UNKNOWN_SESSION"
	CommandNotSupported   CommandResponseType = "NOT_SUPPORTED"
	CommandTimeout        CommandResponseType = "TIMEOUT"
)

// CommandResponse is both the CPO's synchronous answer and the result it posts back later.
type CommandResponse struct {
	Result  CommandResponseType   `json:"result" bson:"result" validate:"required,oneof=ACCEPTED REJECTED UNKNOWN_SESSION NOT_SUPPORTED TIMEOUT"`
	Message []*common.DisplayText `json:"message,omitempty" bson:"message,omitempty" validate:"omitempty,dive"`
}

type CommandRequest interface {
	SetResponseUrl(url string)
}

type CommandBase struct {
	ResponseUrl string `json:"response_url" bson:"response_url" validate:"required,url"`
}

func (c *CommandBase) SetResponseUrl(url string) {
	c.ResponseUrl = url
}

type ReserveNowRequest struct {
	CommandBase
	Token         Token  `json:"token" bson:"token" validate:"required"`
	ExpiryDate    string `json:"expiry_date" bson:"expiry_date" validate:"required"`
	ReservationId int    `json:"reservation_id" bson:"reservation_id" validate:"required"`
	LocationId    string `json:"location_id" bson:"location_id" validate:"required,max=39"`
	EvseUid       string `json:"evse_uid,omitempty" bson:"evse_uid,omitempty" validate:"omitempty,max=39"`
}

type CancelReservationRequest struct {
	CommandBase
	ReservationId int `json:"reservation_id" bson:"reservation_id" validate:"required"`
}

type StartSessionRequest struct {
	CommandBase
	Token      Token  `json:"token" bson:"token" validate:"required"`
	LocationId string `json:"location_id" bson:"location_id" validate:"required,max=39"`
	EvseUid    string `json:"evse_uid,omitempty" bson:"evse_uid,omitempty" validate:"omitempty,max=39"`
}

type StopSessionRequest struct {
	CommandBase
	SessionId string `json:"session_id" bson:"session_id" validate:"required,max=36"`
}

type UnlockConnectorRequest struct {
	CommandBase
	LocationId  string `json:"location_id" bson:"location_id" validate:"required,max=39"`
	EvseUid     string `json:"evse_uid" bson:"evse_uid" validate:"required,max=39"`
	ConnectorId string `json:"connector_id" bson:"connector_id" validate:"required,max=36"`
}

// NewCommandRequest returns an empty request body of the given command type.
func NewCommandRequest(t CommandType) (CommandRequest, error) {
	switch t {
	case ReserveNow:
		return &ReserveNowRequest{}, nil
	case CancelReservation:
		return &CancelReservationRequest{}, nil
	case StartSession:
		return &StartSessionRequest{}, nil
	case StopSession:
		return &StopSessionRequest{}, nil
	case UnlockConnector:
		return &UnlockConnectorRequest{}, nil
	}
	return nil, fmt.Errorf("unknown command type: %s", t)
}
