package api

import (
	"emsp/entity"
	"emsp/internal"
	"emsp/metrics/counters"
	"emsp/ocpi"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

const writeWait = 10 * time.Second

// commandResult receives the asynchronous result of a command sent earlier.
func (h *Handler) commandResult(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	name := params.ByName("command_type")
	id := params.ByName("command_id")
	unknown := ocpi.ClientError(fmt.Sprintf("Unknown '%s' command identification!", name))

	t, err := entity.ParseCommandType(name)
	if err != nil {
		writeResponse(w, http.StatusOK, unknown)
		return
	}
	entry, err := h.commands.Lookup(id)
	if err != nil || entry.Type != t {
		writeResponse(w, http.StatusOK, unknown)
		return
	}

	result := &entity.CommandResponse{}
	if !decodeBody(w, r, result) {
		return
	}
	if err = entity.Validate(result); err != nil {
		writeResponse(w, http.StatusBadRequest, ocpi.InvalidParams(err.Error()))
		return
	}
	entry, err = h.commands.Deliver(id, result)
	if err != nil {
		// expired between lookup and delivery
		writeResponse(w, http.StatusOK, unknown)
		return
	}
	counters.CountCommand(string(t), string(result.Result))

	c := credentialFrom(r.Context())
	event := &internal.EventMessage{
		Type:        "command_result",
		CountryCode: c.CountryCode,
		PartyId:     c.PartyId,
		Time:        time.Now(),
		CommandId:   id,
		Status:      string(result.Result),
		Info:        entry.Requester,
		Payload:     entry,
	}
	h.notify(func(handler internal.EventHandler) {
		handler.OnCommandResult(event)
	})

	writeResponse(w, http.StatusAccepted, ocpi.Success(nil))
}

type dispatchResult struct {
	Id       string                  `json:"id"`
	Response *entity.CommandResponse `json:"response"`
}

func (h *Handler) dispatchCommand(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	t, err := entity.ParseCommandType(params.ByName("command_type"))
	if err != nil {
		writeResponse(w, http.StatusBadRequest, ocpi.InvalidParams(err.Error()))
		return
	}
	req, err := entity.NewCommandRequest(t)
	if err != nil {
		writeResponse(w, http.StatusBadRequest, ocpi.InvalidParams(err.Error()))
		return
	}
	if !decodeBody(w, r, req) {
		return
	}

	id, response, err := h.dispatcher.Dispatch(r.Context(), t, req, party(credentialFrom(r.Context())))
	if err != nil {
		h.logger.Warn(fmt.Sprintf("command %s %s: %v", t, id, err))
		h.writeError(w, err)
		return
	}
	counters.CountCommand(string(t), string(response.Result))
	writeResponse(w, http.StatusOK, ocpi.Success(&dispatchResult{Id: id, Response: response}))
}

func (h *Handler) lookupCommand(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	entry, err := h.commands.Lookup(params.ByName("command_id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeResponse(w, http.StatusOK, ocpi.Success(entry))
}

// commandFeed upgrades to a websocket, sends the entry as it is now and once more
// when the result arrives, then closes. An expired command ends the feed without a result.
func (h *Handler) commandFeed(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	id := params.ByName("command_id")
	results, cancel, err := h.commands.Subscribe(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	defer cancel()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	if !h.sendEntry(conn, id) {
		return
	}
	select {
	case _, ok := <-results:
		if ok {
			h.sendEntry(conn, id)
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	case <-closed:
	}
}

func (h *Handler) sendEntry(conn *websocket.Conn, id string) bool {
	entry, err := h.commands.Lookup(id)
	if err != nil {
		return false
	}
	body, err := ocpi.Success(entry).Marshal()
	if err != nil {
		h.logger.Error("encoding command entry", err)
		return false
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err = conn.WriteMessage(websocket.TextMessage, body); err != nil {
		h.logger.Debug(fmt.Sprintf("websocket write: %v", err))
		return false
	}
	return true
}
