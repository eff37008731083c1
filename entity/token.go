package entity

type TokenType string

const (
	TokenRFID  TokenType = "RFID"
	TokenOther TokenType = "OTHER"
)

type WhitelistType string

const (
	WhitelistAlways         WhitelistType = "ALWAYS"
	WhitelistAllowed        WhitelistType = "ALLOWED"
	WhitelistAllowedOffline WhitelistType = "ALLOWED_OFFLINE"
	WhitelistNever          WhitelistType = "NEVER"
)

// ParseTokenType reads the type query parameter of the authorize call, RFID when empty.
func ParseTokenType(value string) (TokenType, bool) {
	switch TokenType(value) {
	case "":
		return TokenRFID, true
	case TokenRFID, TokenOther:
		return TokenType(value), true
	}
	return "", false
}

type Token struct {
	Uid          string        `json:"uid" bson:"uid" validate:"required,max=36"`
	Type         TokenType     `json:"type" bson:"type" validate:"required,oneof=RFID OTHER"`
	AuthId       string        `json:"auth_id" bson:"auth_id" validate:"required,max=36"`
	VisualNumber string        `json:"visual_number,omitempty" bson:"visual_number,omitempty" validate:"omitempty,max=64"`
	Issuer       string        `json:"issuer" bson:"issuer" validate:"required,max=64"`
	Valid        bool          `json:"valid" bson:"valid"`
	Whitelist    WhitelistType `json:"whitelist" bson:"whitelist" validate:"required,oneof=ALWAYS ALLOWED ALLOWED_OFFLINE NEVER"`
	Language     string        `json:"language,omitempty" bson:"language,omitempty" validate:"omitempty,len=2"`
	LastUpdated  string        `json:"last_updated,omitempty" bson:"last_updated,omitempty"`
}

// TokenStatus is the EMSP's own view of a token: its baseline decision and
// the location it is bound to by default.
type TokenStatus struct {
	Token    Token              `json:"token" bson:"token" validate:"required"`
	Status   AllowedType        `json:"status" bson:"status" validate:"required,oneof=ALLOWED BLOCKED EXPIRED NO_CREDIT NOT_ALLOWED"`
	Location *LocationReference `json:"location,omitempty" bson:"location,omitempty" validate:"omitempty"`
}
