package telegram

import (
	"emsp/internal"
	"emsp/utility"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
)

// StatusSource reports figures for the /status command.
type StatusSource interface {
	PendingCommands() int
}

// TgBot implements EventHandler
type TgBot struct {
	api           *tgbotapi.BotAPI
	status        StatusSource
	mu            sync.RWMutex
	subscriptions map[int64]string
	started       time.Time
	event         chan MessageContent
	send          chan MessageContent
}

type MessageContent struct {
	ChatID int64
	Text   string
}

func NewBot(apiKey string) (*TgBot, error) {
	tgBot := &TgBot{
		subscriptions: make(map[int64]string),
		event:         make(chan MessageContent, 100),
		send:          make(chan MessageContent, 100),
	}
	api, err := tgbotapi.NewBotAPI(apiKey)
	if err != nil {
		return nil, err
	}
	tgBot.api = api
	return tgBot, nil
}

func (b *TgBot) SetStatusSource(status StatusSource) {
	b.status = status
}

func (b *TgBot) Start() {
	b.started = time.Now()
	go b.sendPump()
	go b.eventPump()
	go b.updatesPump()
}

// Start listening for updates
func (b *TgBot) updatesPump() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates, err := b.api.GetUpdatesChan(u)
	if err != nil {
		log.Printf("bot: error getting updates: %v", err)
		return
	}
	for update := range updates {
		if update.Message == nil || !update.Message.IsCommand() {
			continue
		}
		chatId := update.Message.Chat.ID
		switch update.Message.Command() {
		case "start":
			b.mu.Lock()
			b.subscriptions[chatId] = update.Message.From.UserName
			b.mu.Unlock()
			msg := fmt.Sprintf("Hello *%v*, you are now subscribed to updates", sanitize(update.Message.From.UserName))
			b.send <- MessageContent{ChatID: chatId, Text: msg}
		case "stop":
			b.mu.Lock()
			delete(b.subscriptions, chatId)
			b.mu.Unlock()
			b.send <- MessageContent{ChatID: chatId, Text: "Your subscription has been removed"}
		case "status":
			b.send <- MessageContent{ChatID: chatId, Text: b.composeStatusMessage()}
		}
	}
}

// eventPump sending events to all subscribers
func (b *TgBot) eventPump() {
	for event := range b.event {
		b.mu.RLock()
		chats := make([]int64, 0, len(b.subscriptions))
		for chatId := range b.subscriptions {
			chats = append(chats, chatId)
		}
		b.mu.RUnlock()
		for _, chatId := range chats {
			b.sendMessage(chatId, event.Text)
		}
	}
}

// sendPump sending messages to users
func (b *TgBot) sendPump() {
	for event := range b.send {
		b.sendMessage(event.ChatID, event.Text)
	}
}

// sendMessage common routine to send a message via bot API
func (b *TgBot) sendMessage(id int64, text string) {
	msg := tgbotapi.NewMessage(id, text)
	msg.ParseMode = "MarkdownV2"
	_, err := b.api.Send(msg)
	if err != nil {
		// most likely a markup problem, tell the user about it in plain text
		msg = tgbotapi.NewMessage(id, fmt.Sprintf("Error: %v", err))
		_, err = b.api.Send(msg)
		if err != nil {
			log.Printf("bot: error sending message: %v", err)
		}
	}
}

// OnAuthorize reports denied authorizations only.
func (b *TgBot) OnAuthorize(event *internal.EventMessage) {
	if event.Status == "ALLOWED" {
		return
	}
	b.event <- MessageContent{Text: formatAuthorize(event)}
}

func (b *TgBot) OnCommandResult(event *internal.EventMessage) {
	b.event <- MessageContent{Text: formatCommandResult(event)}
}

func formatAuthorize(event *internal.EventMessage) string {
	msg := fmt.Sprintf("*%v*: token `%v`\n", sanitize(event.CountryCode+"*"+event.PartyId), sanitize(event.TokenUid))
	if event.LocationId != "" {
		msg += fmt.Sprintf("Location: %v\n", sanitize(event.LocationId))
	}
	msg += fmt.Sprintf("Auth status: `%v`\n", sanitize(event.Status))
	if event.Info != "" {
		msg += fmt.Sprintf("%v\n", sanitize(event.Info))
	}
	return msg
}

func formatCommandResult(event *internal.EventMessage) string {
	msg := fmt.Sprintf("*%v*: command `%v`\n", sanitize(event.CountryCode+"*"+event.PartyId), sanitize(event.CommandId))
	msg += fmt.Sprintf("Type: %v\n", sanitize(event.Type))
	msg += fmt.Sprintf("Result: `%v`\n", sanitize(event.Status))
	if event.Info != "" {
		msg += fmt.Sprintf("Info: %v\n", sanitize(event.Info))
	}
	return msg
}

// compose status message
func (b *TgBot) composeStatusMessage() string {
	msg := "Status info:\n\n"
	msg += fmt.Sprintf("Started: %v\n", sanitize(utility.TimeAgo(b.started)))
	if b.status != nil {
		msg += fmt.Sprintf("Pending commands: %v\n", b.status.PendingCommands())
	}
	b.mu.RLock()
	msg += fmt.Sprintf("Active subscriptions: %v", len(b.subscriptions))
	b.mu.RUnlock()
	return msg
}

func sanitize(input string) string {
	reservedChars := "\\`*_{}[]()#+-.!|>=~"
	var sanitized strings.Builder
	for _, char := range input {
		if strings.ContainsRune(reservedChars, char) {
			sanitized.WriteRune('\\')
		}
		sanitized.WriteRune(char)
	}
	return sanitized.String()
}
