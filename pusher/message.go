package pusher

type Channel string
type Event string

const (
	SystemLog Channel = "sys_log"
	Events    Channel = "ocpi_events"

	LogEvent       Event = "log_event"
	AuthorizeEvent Event = "authorize"
	CommandEvent   Event = "command_result"
)
