package api

import (
	"emsp/entity"
	"emsp/internal"
	"emsp/internal/store"
	"emsp/metrics/counters"
	"emsp/ocpi"
	"emsp/ocpi/authorize"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
)

const (
	defaultLimit = 50
	maxLimit     = 100
)

func listOptions(query url.Values) (store.ListOptions, error) {
	opts := store.ListOptions{Limit: defaultLimit}
	var err error
	if v := query.Get("offset"); v != "" {
		if opts.Offset, err = strconv.Atoi(v); err != nil || opts.Offset < 0 {
			return opts, fmt.Errorf("invalid offset: %s", v)
		}
	}
	if v := query.Get("limit"); v != "" {
		if opts.Limit, err = strconv.Atoi(v); err != nil || opts.Limit <= 0 {
			return opts, fmt.Errorf("invalid limit: %s", v)
		}
		opts.Limit = min(opts.Limit, maxLimit)
	}
	if v := query.Get("date_from"); v != "" {
		if opts.DateFrom, err = ocpi.ParseTime(v); err != nil {
			return opts, fmt.Errorf("invalid date_from: %s", v)
		}
	}
	if v := query.Get("date_to"); v != "" {
		if opts.DateTo, err = ocpi.ParseTime(v); err != nil {
			return opts, fmt.Errorf("invalid date_to: %s", v)
		}
	}
	return opts, nil
}

func (h *Handler) listTokens(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	opts, err := listOptions(r.URL.Query())
	if err != nil {
		writeResponse(w, http.StatusBadRequest, ocpi.InvalidParams(err.Error()))
		return
	}
	list, total, err := h.tokens.List(r.Context(), opts)
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	w.Header().Set("X-Limit", strconv.Itoa(opts.Limit))
	if next := opts.Offset + len(list); next < total {
		query := r.URL.Query()
		query.Set("offset", strconv.Itoa(next))
		query.Set("limit", strconv.Itoa(opts.Limit))
		w.Header().Set("Link", fmt.Sprintf("<%s%s?%s>; rel=\"next\"", h.conf.Ocpi.PublicUrl, r.URL.Path, query.Encode()))
	}
	writeResponse(w, http.StatusOK, ocpi.Success(list))
}

func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	tokenType, ok := entity.ParseTokenType(r.URL.Query().Get("type"))
	if !ok {
		writeResponse(w, http.StatusBadRequest, ocpi.InvalidParams("invalid token type"))
		return
	}
	body, err := readBody(w, r)
	if err != nil {
		writeResponse(w, http.StatusBadRequest, ocpi.InvalidParams(err.Error()))
		return
	}
	var location *entity.LocationReference
	if len(strings.TrimSpace(string(body))) > 0 {
		location = &entity.LocationReference{}
		if err = decodeInto(body, location); err == nil {
			err = entity.Validate(location)
		}
		if err != nil {
			writeResponse(w, http.StatusBadRequest, ocpi.InvalidParams(err.Error()))
			return
		}
	}

	c := credentialFrom(r.Context())
	req := &authorize.Request{
		CountryCode: c.CountryCode,
		PartyId:     c.PartyId,
		TokenUid:    params.ByName("token_id"),
		TokenType:   tokenType,
		Location:    location,
	}
	info, err := h.authorizer.Authorize(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	counters.CountAuthorization(party(c), string(info.Allowed), info.Runtime)

	event := &internal.EventMessage{
		Type:        "authorize",
		CountryCode: c.CountryCode,
		PartyId:     c.PartyId,
		Time:        time.Now(),
		TokenUid:    req.TokenUid,
		Status:      string(info.Allowed),
		Payload:     info,
	}
	if location != nil {
		event.LocationId = location.LocationId
	}
	if info.Info != nil {
		event.Info = info.Info.Text
	}
	h.notify(func(handler internal.EventHandler) {
		handler.OnAuthorize(event)
	})

	writeResponse(w, http.StatusOK, ocpi.Success(info))
}

// putToken registers the EMSP's own status of a token, the path names the uid.
func (h *Handler) putToken(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	status := &entity.TokenStatus{}
	if !decodeBody(w, r, status) {
		return
	}
	uid := params.ByName("token_id")
	if status.Token.Uid == "" {
		status.Token.Uid = uid
	}
	if status.Token.Uid != uid {
		writeResponse(w, http.StatusBadRequest, ocpi.InvalidParams(fmt.Sprintf("token uid %s does not match %s", status.Token.Uid, uid)))
		return
	}
	saved, err := h.tokens.Put(r.Context(), status)
	if err != nil {
		h.writeError(w, err)
		return
	}
	counters.CountWrite(string(store.KindToken), "updated")
	writeResponse(w, http.StatusOK, ocpi.Success(saved))
}
