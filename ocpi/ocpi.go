// Package ocpi holds the OCPI 2.1.1 response envelope shared by every module.
package ocpi

import (
	"emsp/utility"
	"time"

	jsoniter "github.com/json-iterator/go"
)

type StatusCode int

const (
	StatusSuccess       StatusCode = 1000
	StatusClientError   StatusCode = 2000
	StatusInvalidParams StatusCode = 2001
	StatusUnknownToken  StatusCode = 2004
	StatusServerError   StatusCode = 3000
)

// TimeFormat is the OCPI DateTime layout, always UTC.
const TimeFormat = "2006-01-02T15:04:05Z"

type Response struct {
	Data          any        `json:"data,omitempty"`
	StatusCode    StatusCode `json:"status_code"`
	StatusMessage string     `json:"status_message,omitempty"`
	Timestamp     string     `json:"timestamp"`
}

func NewResponse(code StatusCode, message string, data any) *Response {
	return &Response{
		Data:          data,
		StatusCode:    code,
		StatusMessage: message,
		Timestamp:     FormatTime(time.Now()),
	}
}

func Success(data any) *Response {
	return NewResponse(StatusSuccess, "Success", data)
}

func ClientError(message string) *Response {
	return NewResponse(StatusClientError, message, nil)
}

func InvalidParams(message string) *Response {
	return NewResponse(StatusInvalidParams, message, nil)
}

func ServerError(message string) *Response {
	return NewResponse(StatusServerError, message, nil)
}

func (r *Response) WithData(data any) *Response {
	r.Data = data
	return r
}

func (r *Response) Marshal() ([]byte, error) {
	return utility.Json.Marshal(r)
}

// ParseResponse decodes an envelope, data is left raw for the caller.
func ParseResponse(body []byte) (*Response, []byte, error) {
	var envelope struct {
		Data          jsoniter.RawMessage `json:"data"`
		StatusCode    StatusCode          `json:"status_code"`
		StatusMessage string              `json:"status_message"`
		Timestamp     string              `json:"timestamp"`
	}
	if err := utility.Json.Unmarshal(body, &envelope); err != nil {
		return nil, nil, err
	}
	return &Response{
		StatusCode:    envelope.StatusCode,
		StatusMessage: envelope.StatusMessage,
		Timestamp:     envelope.Timestamp,
	}, envelope.Data, nil
}

func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}

// ParseTime accepts RFC 3339 with or without zone, a missing zone means UTC.
func ParseTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t, err = time.ParseInLocation("2006-01-02T15:04:05", value, time.UTC)
		if err != nil {
			return time.Time{}, err
		}
	}
	return t.UTC(), nil
}
