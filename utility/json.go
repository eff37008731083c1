package utility

import (
	jsoniter "github.com/json-iterator/go"
)

// Json is the codec used for OCPI payloads; map keys are sorted on output.
var Json = jsoniter.ConfigCompatibleWithStandardLibrary
