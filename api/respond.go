package api

import (
	"bufio"
	"emsp/ocpi"
	"emsp/ocpi/authorize"
	"emsp/ocpi/commands"
	"emsp/ocpi/resource"
	"emsp/ocpi/tokens"
	"emsp/utility"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

const maxBodySize = 1 << 20

// auditWriter remembers what was answered for the audit line.
type auditWriter struct {
	http.ResponseWriter
	status     int
	ocpiStatus ocpi.StatusCode
}

func (aw *auditWriter) WriteHeader(code int) {
	aw.status = code
	aw.ResponseWriter.WriteHeader(code)
}

func (aw *auditWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := aw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	aw.status = http.StatusSwitchingProtocols
	return hijacker.Hijack()
}

func writeResponse(w http.ResponseWriter, httpStatus int, res *ocpi.Response) {
	if aw, ok := w.(*auditWriter); ok {
		aw.ocpiStatus = res.StatusCode
	}
	body, err := res.Marshal()
	if err != nil {
		httpStatus = http.StatusInternalServerError
		body = []byte(`{"status_code":3000,"status_message":"encoding response failed"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	_, _ = w.Write(body)
}

func setVersionHeaders(w http.ResponseWriter, etag string, lastUpdated time.Time) {
	if etag != "" {
		w.Header().Set("ETag", strconv.Quote(etag))
	}
	if !lastUpdated.IsZero() {
		w.Header().Set("Last-Modified", lastUpdated.UTC().Format(http.TimeFormat))
	}
}

// writeError converts an error from the engines into the matching envelope.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var downgrade *resource.DowngradeError
	var invalid validator.ValidationErrors
	switch {
	case errors.As(err, &downgrade):
		setVersionHeaders(w, downgrade.ETag, downgrade.LastUpdated)
		writeResponse(w, http.StatusBadRequest, ocpi.ClientError(err.Error()).WithData(downgrade.Payload))
	case errors.Is(err, resource.ErrValidation), errors.Is(err, tokens.ErrInvalidToken), errors.As(err, &invalid):
		writeResponse(w, http.StatusBadRequest, ocpi.InvalidParams(err.Error()))
	case errors.Is(err, resource.ErrUnknownResource):
		writeResponse(w, http.StatusNotFound, ocpi.ClientError(err.Error()))
	case errors.Is(err, commands.ErrUnknownCommand):
		writeResponse(w, http.StatusNotFound, ocpi.ClientError(err.Error()))
	case errors.Is(err, commands.ErrCommandFailed):
		writeResponse(w, http.StatusBadGateway, ocpi.ServerError(err.Error()))
	case errors.Is(err, authorize.ErrUnknownToken):
		writeResponse(w, http.StatusNotFound, ocpi.NewResponse(ocpi.StatusUnknownToken, "Unknown token!", nil))
	default:
		h.logger.Error("request failed", err)
		writeResponse(w, http.StatusInternalServerError, ocpi.ServerError("Generic server error"))
	}
}

// readBody reads a size limited request body.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
}

func decodeInto(body []byte, v any) error {
	return utility.Json.Unmarshal(body, v)
}

// decodeBody reads the body into v; a failure is answered with 2001 and false returned.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	body, err := readBody(w, r)
	if err == nil {
		err = decodeInto(body, v)
	}
	if err != nil {
		writeResponse(w, http.StatusBadRequest, ocpi.InvalidParams(err.Error()))
		return false
	}
	return true
}
