package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommandType(t *testing.T) {
	ct, err := ParseCommandType("start_session")
	require.NoError(t, err)
	assert.Equal(t, StartSession, ct)

	_, err = ParseCommandType("REBOOT")
	assert.Error(t, err)
}

func TestParseTokenType(t *testing.T) {
	tt, ok := ParseTokenType("")
	assert.True(t, ok)
	assert.Equal(t, TokenRFID, tt)

	tt, ok = ParseTokenType("OTHER")
	assert.True(t, ok)
	assert.Equal(t, TokenOther, tt)

	_, ok = ParseTokenType("APP_USER")
	assert.False(t, ok)
}

func TestNewCommandRequestSetsResponseUrl(t *testing.T) {
	req, err := NewCommandRequest(StopSession)
	require.NoError(t, err)
	req.SetResponseUrl("https://emsp.example.com/ocpi/emsp/2.1.1/commands/STOP_SESSION/1")
	stop := req.(*StopSessionRequest)
	stop.SessionId = "S1"
	assert.NoError(t, Validate(stop))

	stop.SessionId = ""
	assert.Error(t, Validate(stop))
}

func TestValidateTokenStatus(t *testing.T) {
	status := &TokenStatus{
		Token: Token{
			Uid:       "012345678",
			Type:      TokenRFID,
			AuthId:    "NL-EMS-000001",
			Issuer:    "EMS",
			Valid:     true,
			Whitelist: WhitelistAllowed,
		},
		Status:   Allowed,
		Location: &LocationReference{LocationId: "LOC1", EvseUids: []string{"E1"}},
	}
	assert.NoError(t, Validate(status))

	status.Status = "MAYBE"
	assert.Error(t, Validate(status))

	status.Status = Blocked
	status.Token.Type = "APP_USER"
	assert.Error(t, Validate(status))
}

func TestLocationReferenceClone(t *testing.T) {
	ref := &LocationReference{LocationId: "LOC1", EvseUids: []string{"E1"}}
	c := ref.Clone()
	c.EvseUids[0] = "E2"
	assert.Equal(t, "E1", ref.EvseUids[0])

	var empty *LocationReference
	assert.Nil(t, empty.Clone())
}
