package logger

import (
	"emsp/internal"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"
)

type Importance string

const (
	Info    Importance = "info"
	Warning Importance = "warning"
	Error   Importance = "error"
	Debug   Importance = "debug"
)

type Logger struct {
	out            *slog.Logger
	database       internal.Database
	messageService internal.MessageService
	location       *time.Location
	debugMode      bool
	writer         chan *LogEvent
}

type LogEvent struct {
	Importance Importance
	Message    *internal.FeatureLogMessage
}

// NewLogger starts the writer goroutine; format "json" selects the JSON handler.
func NewLogger(w io.Writer, format string) *Logger {
	if w == nil {
		w = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: slog.LevelDebug}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	l := &Logger{
		out:      slog.New(handler),
		location: time.UTC,
		writer:   make(chan *LogEvent, 100),
	}
	go l.startWriter()
	return l
}

func (l *Logger) startWriter() {
	for event := range l.writer {
		message := event.Message
		l.logLine(event.Importance, message)

		if l.database != nil {
			if err := l.database.WriteLogMessage(message); err != nil {
				l.out.Error("write log to database failed", "error", err)
			}
		}
		if l.messageService != nil && event.Importance != Debug {
			if err := l.messageService.Send(message); err != nil {
				l.out.Error("push log message failed", "error", err)
			}
		}
	}
}

func (l *Logger) SetDebugMode(debugMode bool) {
	l.debugMode = debugMode
}

func (l *Logger) SetLocation(location *time.Location) {
	if location != nil {
		l.location = location
	}
}

func (l *Logger) SetDatabase(database internal.Database) {
	l.database = database
}

func (l *Logger) SetMessageService(messageService internal.MessageService) {
	l.messageService = messageService
}

func logTime(t time.Time) string {
	return fmt.Sprintf("%d-%02d-%02d %02d:%02d:%02d", t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second())
}

func (l *Logger) FeatureEvent(feature, id, text string) {
	l.logEvent(Info, l.newFeatureLogMessage(feature, id, text))
}

func (l *Logger) Debug(text string) {
	if !l.debugMode {
		return
	}
	l.logEvent(Debug, l.newFeatureLogMessage("debug", "", text))
}

func (l *Logger) Warn(text string) {
	l.logEvent(Warning, l.newFeatureLogMessage("warning", "", text))
}

func (l *Logger) Error(text string, err error) {
	l.logEvent(Error, l.newFeatureLogMessage("error", "", fmt.Sprintf("%s: %s", text, err)))
}

func (l *Logger) logEvent(importance Importance, message *internal.FeatureLogMessage) {
	if message.Id == "" {
		message.Id = "*"
	}
	message.Importance = string(importance)
	l.writer <- &LogEvent{
		Importance: importance,
		Message:    message,
	}
}

func (l *Logger) logLine(importance Importance, message *internal.FeatureLogMessage) {
	attrs := []any{"feature", message.Feature, "id", message.Id}
	switch importance {
	case Error:
		l.out.Error(message.Text, attrs...)
	case Warning:
		l.out.Warn(message.Text, attrs...)
	case Debug:
		l.out.Debug(message.Text, attrs...)
	default:
		l.out.Info(message.Text, attrs...)
	}
}

func (l *Logger) newFeatureLogMessage(feature, id, text string) *internal.FeatureLogMessage {
	now := time.Now()
	return &internal.FeatureLogMessage{
		Time:      logTime(now.In(l.location)),
		TimeStamp: now.UTC(),
		Text:      text,
		Feature:   feature,
		Id:        id,
	}
}
