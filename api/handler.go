package api

import (
	"context"
	"emsp/entity"
	"emsp/entity/tariff"
	"emsp/internal"
	"emsp/internal/config"
	"emsp/internal/store"
	"emsp/ocpi/authorize"
	"emsp/ocpi/commands"
	"emsp/ocpi/resource"
	"emsp/ocpi/tokens"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

const (
	methodsResource = "GET, PUT, PATCH, OPTIONS"
	methodsTariff   = "GET, PUT, PATCH, DELETE, OPTIONS"
	methodsCdrPost  = "POST, OPTIONS"
	methodsCdrGet   = "GET, OPTIONS"
	methodsTokens   = "GET, OPTIONS"
	methodsPost     = "POST, OPTIONS"
	methodsAdmin    = "GET, PUT, POST, OPTIONS"
	allowedHeaders  = "Authorization, Content-Type, X-Request-ID, X-Correlation-ID"
)

// Dispatcher sends a command to the CPO.
type Dispatcher interface {
	Dispatch(ctx context.Context, t entity.CommandType, req entity.CommandRequest, requester string) (string, *entity.CommandResponse, error)
}

type Handler struct {
	conf        *config.Config
	logger      internal.LogHandler
	resources   *resource.Engine
	authorizer  *authorize.Engine
	tokens      *tokens.Registry
	commands    *commands.Store
	dispatcher  Dispatcher
	events      []internal.EventHandler
	credentials map[string]config.Credential
	schemas     map[store.Kind]func(map[string]any) error
	upgrader    websocket.Upgrader
}

func NewApiHandler(conf *config.Config, logger internal.LogHandler, resources *resource.Engine, authorizer *authorize.Engine,
	tokens *tokens.Registry, commandStore *commands.Store, dispatcher Dispatcher) *Handler {
	h := &Handler{
		conf:        conf,
		logger:      logger,
		resources:   resources,
		authorizer:  authorizer,
		tokens:      tokens,
		commands:    commandStore,
		dispatcher:  dispatcher,
		credentials: make(map[string]config.Credential),
		schemas: map[store.Kind]func(map[string]any) error{
			store.KindTariff: tariff.Check,
		},
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	for _, c := range conf.Credentials {
		h.credentials[c.Token] = c
	}
	return h
}

func (h *Handler) AddEventHandler(handler internal.EventHandler) {
	h.events = append(h.events, handler)
}

// Router builds the complete OCPI and admin route table.
func (h *Handler) Router() *httprouter.Router {
	router := httprouter.New()
	router.GlobalOPTIONS = http.HandlerFunc(h.handleOptions)
	h.Register(router)
	return router
}

func (h *Handler) Register(router *httprouter.Router) {
	prefix := h.conf.Ocpi.Prefix

	for _, path := range []string{
		"/locations/:country_code/:party_id/:id",
		"/locations/:country_code/:party_id/:id/:evse_uid",
		"/locations/:country_code/:party_id/:id/:evse_uid/:connector_id",
	} {
		router.GET(prefix+path, h.route("locations", methodsResource, roleCpo, h.getResource(kindLocation)))
		router.PUT(prefix+path, h.route("locations", methodsResource, roleCpo, h.putResource(kindLocation)))
		router.PATCH(prefix+path, h.route("locations", methodsResource, roleCpo, h.patchResource(kindLocation)))
	}

	sessions := prefix + "/sessions/:country_code/:party_id/:id"
	router.GET(sessions, h.route("sessions", methodsResource, roleCpo, h.getResource(kindSession)))
	router.PUT(sessions, h.route("sessions", methodsResource, roleCpo, h.putResource(kindSession)))
	router.PATCH(sessions, h.route("sessions", methodsResource, roleCpo, h.patchResource(kindSession)))

	tariffs := prefix + "/tariffs/:country_code/:party_id/:id"
	router.GET(tariffs, h.route("tariffs", methodsTariff, roleCpo, h.getResource(kindTariff)))
	router.PUT(tariffs, h.route("tariffs", methodsTariff, roleCpo, h.putResource(kindTariff)))
	router.PATCH(tariffs, h.route("tariffs", methodsTariff, roleCpo, h.patchResource(kindTariff)))
	router.DELETE(tariffs, h.route("tariffs", methodsTariff, roleCpo, h.deleteResource(kindTariff)))

	router.POST(prefix+"/cdrs", h.route("cdrs", methodsCdrPost, roleCpo, h.postCdr))
	router.GET(prefix+"/cdrs/:country_code/:party_id/:id", h.route("cdrs", methodsCdrGet, roleCpo, h.getResource(kindCdr)))

	router.GET(prefix+"/tokens", h.route("tokens", methodsTokens, roleCpo, h.listTokens))
	router.POST(prefix+"/tokens/:token_id/authorize", h.route("authorize", methodsPost, roleCpo, h.authorize))

	router.POST(prefix+"/commands/:command_type/:command_id", h.route("commands", methodsPost, roleCpo, h.commandResult))

	router.PUT("/admin/tokens/:token_id", h.route("admin_tokens", methodsAdmin, roleAdmin, h.putToken))
	router.POST("/admin/commands/:command_type", h.route("admin_commands", methodsAdmin, roleAdmin, h.dispatchCommand))
	router.GET("/admin/commands/:command_id", h.route("admin_commands", methodsAdmin, roleAdmin, h.lookupCommand))
	router.GET("/admin/commands/:command_id/ws", h.route("admin_commands_ws", methodsAdmin, roleAdmin, h.commandFeed))
}

// notify hands an event to every listener without holding up the request.
func (h *Handler) notify(fn func(handler internal.EventHandler)) {
	for _, handler := range h.events {
		go fn(handler)
	}
}
