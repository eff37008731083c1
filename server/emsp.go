package server

import (
	"context"
	"emsp/api"
	"emsp/internal"
	"emsp/internal/config"
	"emsp/internal/store"
	"emsp/logger"
	"emsp/metrics"
	"emsp/metrics/counters"
	"emsp/ocpi/authorize"
	"emsp/ocpi/client"
	"emsp/ocpi/commands"
	"emsp/ocpi/resource"
	"emsp/ocpi/tokens"
	"emsp/pusher"
	"emsp/telegram"
	"fmt"
	"log"
	"os"
	"time"
)

const shutdownTimeout = 10 * time.Second

// Emsp holds the running service: storage, engines and the listeners around them.
type Emsp struct {
	conf     *config.Config
	logger   *logger.Logger
	store    store.Store
	commands *commands.Store
	server   *Server
}

type pendingCommands func() int

func (p pendingCommands) PendingCommands() int {
	return p()
}

func NewEmsp(ctx context.Context, conf *config.Config) (*Emsp, error) {
	e := &Emsp{conf: conf}

	logService := logger.NewLogger(os.Stdout, conf.Log.Format)
	logService.SetDebugMode(conf.IsDebug)
	e.logger = logService

	st, err := store.New(ctx, conf)
	if err != nil {
		return nil, fmt.Errorf("store setup failed: %s", err)
	}
	e.store = st
	log.Printf("using %s store", conf.Store.Type)

	// log records go to mongodb whenever it is configured, also when it is not the resource store
	if database, ok := st.(internal.Database); ok {
		logService.SetDatabase(database)
	} else if conf.Mongo.Enabled {
		database, err := store.NewMongoClient(ctx, conf)
		if err != nil {
			return nil, fmt.Errorf("mongodb setup failed: %s", err)
		}
		logService.SetDatabase(database)
		log.Println("mongodb log sink is configured and enabled")
	}

	var messagePusher *pusher.MessagePusher
	if conf.Pusher.Enabled {
		messagePusher, err = pusher.NewPusher(conf)
		if err != nil {
			return nil, fmt.Errorf("pusher setup failed: %s", err)
		}
		logService.SetMessageService(messagePusher)
		log.Println("pusher service is configured and enabled")
	} else {
		log.Println("message pushing service is disabled")
	}

	resources := resource.New(st)
	registry := tokens.New(st, conf.Ocpi.CountryCode, conf.Ocpi.PartyId)

	authorizer := authorize.New(registry, resources, logService)
	if conf.Authorize.RemoteUrl != "" {
		authorizer.SetHook(authorize.NewRemote(client.New(conf.Authorize.RemoteUrl, conf.Authorize.RemoteToken)), conf.Authorize.Timeout)
		log.Println("authorization is delegated to " + conf.Authorize.RemoteUrl)
	}

	e.commands = commands.NewStore(conf.Commands.Ttl)
	if conf.Ocpi.CpoUrl == "" {
		log.Println("cpo url is not configured, commands will fail")
	}
	dispatcher := commands.NewDispatcher(e.commands, client.New(conf.Ocpi.CpoUrl, conf.Ocpi.CpoToken), conf.Ocpi.PublicUrl+conf.Ocpi.Prefix)

	handler := api.NewApiHandler(conf, logService, resources, authorizer, registry, e.commands, dispatcher)
	if messagePusher != nil {
		handler.AddEventHandler(messagePusher)
	}
	if conf.Telegram.Enabled {
		telegramBot, err := telegram.NewBot(conf.Telegram.ApiKey)
		if err != nil {
			return nil, fmt.Errorf("telegram bot setup failed: %s", err)
		}
		telegramBot.SetStatusSource(pendingCommands(e.commands.Len))
		telegramBot.Start()
		handler.AddEventHandler(telegramBot)
		log.Println("telegram bot is configured and enabled")
	}

	e.server = NewServer(conf, handler.Router(), logService)
	return e, nil
}

// Start runs the command sweeper and the listeners, it blocks until ctx is done
// or the main listener fails.
func (e *Emsp) Start(ctx context.Context) error {
	go e.commands.Run(ctx, e.conf.Commands.SweepInterval, func(removed int) {
		if removed > 0 {
			e.logger.Debug(fmt.Sprintf("%d expired commands removed", removed))
		}
		counters.PendingCommands(e.commands.Len())
	})

	go func() {
		if err := metrics.Listen(e.conf); err != nil {
			e.logger.Error("metrics server", err)
		}
	}()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- e.server.Start()
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.server.Shutdown(shutdownCtx); err != nil {
		e.logger.Error("server shutdown", err)
	}
	return e.store.Close(shutdownCtx)
}
