package api

import (
	"context"
	"emsp/internal/config"
	"emsp/internal/store"
	"emsp/metrics/counters"
	"emsp/ocpi"
	"emsp/utility"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
)

const (
	roleCpo   = "CPO"
	roleAdmin = "ADMIN"

	kindLocation = store.KindLocation
	kindSession  = store.KindSession
	kindTariff   = store.KindTariff
	kindCdr      = store.KindCdr
)

type contextKey int

const credentialKey contextKey = iota

func credentialFrom(ctx context.Context) config.Credential {
	c, _ := ctx.Value(credentialKey).(config.Credential)
	return c
}

func party(c config.Credential) string {
	if c.CountryCode == "" && c.PartyId == "" {
		return c.Role
	}
	return c.CountryCode + "*" + c.PartyId
}

// lookupCredential resolves the "Authorization: Token ..." header.
func (h *Handler) lookupCredential(r *http.Request) (config.Credential, bool) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Token ")
	if !ok || token == "" {
		return config.Credential{}, false
	}
	c, ok := h.credentials[strings.TrimSpace(token)]
	return c, ok
}

func permitted(c config.Credential, role string, params httprouter.Params) bool {
	if c.Blocked {
		return false
	}
	if c.Role == roleAdmin {
		return true
	}
	if c.Role != role {
		return false
	}
	// a CPO bound to a party may only touch its own objects
	if cc := params.ByName("country_code"); cc != "" && c.CountryCode != "" && cc != c.CountryCode {
		return false
	}
	if pid := params.ByName("party_id"); pid != "" && c.PartyId != "" && pid != c.PartyId {
		return false
	}
	return true
}

func setCors(w http.ResponseWriter, methods string) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", methods)
	w.Header().Set("Access-Control-Allow-Headers", allowedHeaders)
}

// handleOptions answers preflight requests, httprouter has already set Allow.
func (h *Handler) handleOptions(w http.ResponseWriter, _ *http.Request) {
	allow := w.Header().Get("Allow")
	if !strings.Contains(allow, http.MethodOptions) {
		allow += ", " + http.MethodOptions
	}
	setCors(w, allow)
	w.WriteHeader(http.StatusOK)
}

// route wraps a handler with CORS headers, access control and the audit record.
func (h *Handler) route(endpoint, methods, role string, next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
		start := time.Now()
		aw := &auditWriter{ResponseWriter: w, status: http.StatusOK}
		setCors(aw, methods)
		requestId := r.Header.Get("X-Request-ID")
		if requestId == "" {
			requestId = utility.NewUUID()
		}
		aw.Header().Set("X-Request-ID", requestId)

		c, ok := h.lookupCredential(r)
		if !ok || !permitted(c, role, params) {
			writeResponse(aw, http.StatusForbidden, ocpi.ClientError("Access denied"))
		} else {
			next(aw, r.WithContext(context.WithValue(r.Context(), credentialKey, c)), params)
		}

		duration := time.Since(start)
		id := "-"
		if ok {
			id = party(c)
		}
		h.logger.FeatureEvent(endpoint, id, fmt.Sprintf("%s %s status=%d http=%d duration=%s request=%s",
			r.Method, r.URL.Path, aw.ocpiStatus, aw.status, duration, requestId))
		counters.ObserveRequest(endpoint, r.Method, int(aw.ocpiStatus), duration)
	}
}
