package authorize

import (
	"emsp/entity"
	"emsp/entity/common"
)

const language = "en"

const (
	textUnknownLocation = "The given location is unknown!"
	textUnknownEvse     = "The EVSE at the given location is unknown!"
	textUnknownEvses    = "The EVSEs at the given location are unknown!"
)

func infoText(allowed entity.AllowedType) string {
	switch allowed {
	case entity.Allowed:
		return "Charging allowed!"
	case entity.Blocked:
		return "Sorry, your token is blocked!"
	case entity.Expired:
		return "Sorry, your token has expired!"
	case entity.NoCredit:
		return "Sorry, you have not enough credits for charging!"
	case entity.NotAllowed:
		return "Sorry, charging is not allowed!"
	default:
		return "An error occurred!"
	}
}

func notAllowed(text string) *entity.AuthorizationInfo {
	return &entity.AuthorizationInfo{
		Allowed: entity.NotAllowed,
		Info:    common.NewDisplayText(language, text),
	}
}

// withText fills in the standard explanation when none is given.
func withText(info *entity.AuthorizationInfo) *entity.AuthorizationInfo {
	if info.Info == nil || info.Info.Text == "" {
		info.Info = common.NewDisplayText(language, infoText(info.Allowed))
	}
	return info
}
