package common

// DisplayText is shown to the driver as is. Language is ISO 639-1, no markup allowed in Text.
type DisplayText struct {
	Language string `json:"language" bson:"language" validate:"required,len=2"`
	Text     string `json:"text" bson:"text" validate:"required,min=1,max=512"`
}

func NewDisplayText(language, text string) *DisplayText {
	return &DisplayText{
		Language: language,
		Text:     text,
	}
}
