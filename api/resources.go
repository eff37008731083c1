package api

import (
	"emsp/internal/mergepatch"
	"emsp/internal/store"
	"emsp/metrics/counters"
	"emsp/ocpi"
	"emsp/ocpi/resource"
	"errors"
	"fmt"
	"net/http"

	"github.com/julienschmidt/httprouter"
)

func targetOf(kind store.Kind, params httprouter.Params) resource.Target {
	return resource.Target{
		Kind:        kind,
		CountryCode: params.ByName("country_code"),
		PartyId:     params.ByName("party_id"),
		Id:          params.ByName("id"),
		EvseUid:     params.ByName("evse_uid"),
		ConnectorId: params.ByName("connector_id"),
	}
}

func (h *Handler) allowDowngrade(r *http.Request) bool {
	return h.conf.Ocpi.AllowDowngrade || r.URL.Query().Get("forceDowngrade") == "true"
}

func (h *Handler) getResource(kind store.Kind) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
		result, err := h.resources.Get(r.Context(), targetOf(kind, params))
		if err != nil {
			h.writeError(w, err)
			return
		}
		setVersionHeaders(w, result.ETag, result.LastUpdated)
		writeResponse(w, http.StatusOK, ocpi.Success(result.Object))
	}
}

func (h *Handler) putResource(kind store.Kind) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
		var payload map[string]any
		if !decodeBody(w, r, &payload) {
			return
		}
		t := targetOf(kind, params)
		if check, ok := h.schemas[kind]; ok {
			if err := check(payload); err != nil {
				writeResponse(w, http.StatusBadRequest, ocpi.InvalidParams(err.Error()))
				return
			}
		}
		result, err := h.resources.Upsert(r.Context(), t, payload, h.allowDowngrade(r))
		if err != nil {
			if errors.Is(err, resource.ErrDowngrade) {
				h.logger.Warn(fmt.Sprintf("%s: %v", t, err))
			}
			h.writeError(w, err)
			return
		}
		counters.CountWrite(string(kind), result.Outcome.String())
		setVersionHeaders(w, result.ETag, result.LastUpdated)
		status := http.StatusOK
		if result.Outcome == resource.Created {
			status = http.StatusCreated
		}
		writeResponse(w, status, ocpi.Success(result.Object))
	}
}

func (h *Handler) patchResource(kind store.Kind) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
		body, err := readBody(w, r)
		if err != nil {
			writeResponse(w, http.StatusBadRequest, ocpi.InvalidParams(err.Error()))
			return
		}
		patch, err := mergepatch.Parse(body)
		if err != nil {
			writeResponse(w, http.StatusBadRequest, ocpi.InvalidParams(err.Error()))
			return
		}
		result, err := h.resources.Patch(r.Context(), targetOf(kind, params), patch)
		if err != nil {
			h.writeError(w, err)
			return
		}
		counters.CountWrite(string(kind), "patched")
		setVersionHeaders(w, result.ETag, result.LastUpdated)
		writeResponse(w, http.StatusOK, ocpi.Success(result.Object))
	}
}

func (h *Handler) deleteResource(kind store.Kind) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
		if err := h.resources.Remove(r.Context(), targetOf(kind, params)); err != nil {
			h.writeError(w, err)
			return
		}
		counters.CountWrite(string(kind), "removed")
		writeResponse(w, http.StatusOK, ocpi.Success(nil))
	}
}

// postCdr stores a CDR under the calling party; CDRs are final and never replaced
// by an older or equal version.
func (h *Handler) postCdr(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var payload map[string]any
	if !decodeBody(w, r, &payload) {
		return
	}
	c := credentialFrom(r.Context())
	id, _ := payload["id"].(string)
	t := resource.Target{
		Kind:        kindCdr,
		CountryCode: c.CountryCode,
		PartyId:     c.PartyId,
		Id:          id,
	}
	result, err := h.resources.Upsert(r.Context(), t, payload, false)
	if err != nil {
		h.writeError(w, err)
		return
	}
	counters.CountWrite(string(kindCdr), result.Outcome.String())
	setVersionHeaders(w, result.ETag, result.LastUpdated)
	status := http.StatusOK
	if result.Outcome == resource.Created {
		status = http.StatusCreated
		w.Header().Set("Location", fmt.Sprintf("%s%s/cdrs/%s/%s/%s",
			h.conf.Ocpi.PublicUrl, h.conf.Ocpi.Prefix, t.CountryCode, t.PartyId, t.Id))
	}
	writeResponse(w, status, ocpi.Success(result.Object))
}
