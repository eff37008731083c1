package pusher

import (
	"emsp/internal"
	"emsp/internal/config"
	"emsp/utility"

	"github.com/pusher/pusher-http-go/v5"
)

type triggerer interface {
	Trigger(channel string, eventName string, data interface{}) error
}

// MessagePusher forwards log records and protocol events to Pusher channels.
type MessagePusher struct {
	client triggerer
}

func NewPusher(conf *config.Config) (*MessagePusher, error) {
	if !conf.Pusher.Enabled {
		return nil, nil
	}
	if conf.Pusher.AppID == "" {
		return nil, utility.Err("missed AppID parameter in Pusher configuration")
	}
	if conf.Pusher.Key == "" {
		return nil, utility.Err("missed Key parameter in Pusher configuration")
	}
	if conf.Pusher.Secret == "" {
		return nil, utility.Err("missed Secret parameter in Pusher configuration")
	}
	client := &pusher.Client{
		AppID:   conf.Pusher.AppID,
		Key:     conf.Pusher.Key,
		Secret:  conf.Pusher.Secret,
		Cluster: conf.Pusher.Cluster,
		Secure:  true,
	}
	return &MessagePusher{client: client}, nil
}

func (p *MessagePusher) Send(msg internal.Message) error {
	switch msg.MessageType() {
	case internal.FeatureLogMessageType:
		return p.client.Trigger(string(SystemLog), string(LogEvent), msg)
	}
	return nil
}

func (p *MessagePusher) OnAuthorize(event *internal.EventMessage) {
	_ = p.client.Trigger(string(Events), string(AuthorizeEvent), event)
}

func (p *MessagePusher) OnCommandResult(event *internal.EventMessage) {
	_ = p.client.Trigger(string(Events), string(CommandEvent), event)
}
