package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/vitos/signal_copier/internal/config"
	"github.com/vitos/signal_copier/internal/domain"
	"go.uber.org/zap"
)

// Engine runs requests on the signal worker.
type Engine interface {
	Enqueue(kind domain.RequestKind, msg domain.Message, reply func(*domain.Report)) error
}

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type chatMode int

const (
	modeFree chatMode = iota
	modeTrade
	modeCalculate
	modeDecision
)

type chatState struct {
	mode    chatMode
	pending *domain.Message
}

// Bot is the chat transport. Every inbound message becomes one engine request
// and every report is replied to the originating chat.
type Bot struct {
	api         *tgbotapi.BotAPI
	sender      sender
	engine      Engine
	cfg         config.TelegramConfig
	allowedUser string
	logger      *zap.Logger

	mu    sync.Mutex
	chats map[int64]*chatState
}

func NewBot(cfg config.TelegramConfig, engine Engine, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	api.Debug = cfg.Debug

	logger.Info("Telegram bot authorized", zap.String("username", api.Self.UserName))

	b := newBot(api, cfg, engine, logger)
	b.api = api
	return b, nil
}

func newBot(s sender, cfg config.TelegramConfig, engine Engine, logger *zap.Logger) *Bot {
	return &Bot{
		sender:      s,
		engine:      engine,
		cfg:         cfg,
		allowedUser: strings.ToLower(strings.TrimPrefix(cfg.AllowedUser, "@")),
		logger:      logger,
		chats:       make(map[int64]*chatState),
	}
}

// Start receives updates until ctx is done. With a webhook URL configured the
// webhook is registered and updates arrive through ServeHTTP instead.
func (b *Bot) Start(ctx context.Context) error {
	if b.cfg.WebhookURL != "" {
		wh, err := tgbotapi.NewWebhook(b.cfg.WebhookURL)
		if err != nil {
			return fmt.Errorf("webhook config: %w", err)
		}
		if _, err := b.api.Request(wh); err != nil {
			return fmt.Errorf("set webhook: %w", err)
		}
		b.logger.Info("Telegram webhook registered", zap.String("url", b.cfg.WebhookURL))
		<-ctx.Done()
		return nil
	}

	if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		b.logger.Warn("Failed to delete webhook", zap.Error(err))
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.cfg.PollTimeout
	updates := b.api.GetUpdatesChan(u)
	b.logger.Info("Telegram long polling started")

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.HandleUpdate(update)
		}
	}
}

// ServeHTTP accepts webhook deliveries.
func (b *Bot) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, "invalid update", http.StatusBadRequest)
		return
	}
	b.HandleUpdate(update)
	w.WriteHeader(http.StatusOK)
}

func (b *Bot) HandleUpdate(update tgbotapi.Update) {
	message := update.Message
	if message == nil {
		return
	}

	if !b.authorized(message) {
		b.logger.Warn("Unauthorized access attempt",
			zap.Int64("chat_id", message.Chat.ID),
			zap.String("username", message.Chat.UserName))
		b.send(message.Chat.ID, 0, msgNotAuthorized)
		return
	}

	if message.IsCommand() {
		b.handleCommand(message)
		return
	}
	b.handleText(message)
}

func (b *Bot) authorized(message *tgbotapi.Message) bool {
	if b.allowedUser == "" {
		return false
	}
	if message.Chat != nil && strings.ToLower(message.Chat.UserName) == b.allowedUser {
		return true
	}
	return message.From != nil && strings.ToLower(message.From.UserName) == b.allowedUser
}

func (b *Bot) handleCommand(message *tgbotapi.Message) {
	chatID := message.Chat.ID

	switch message.Command() {
	case "start":
		b.send(chatID, 0, msgWelcome)

	case "help":
		for _, text := range helpMessages {
			b.send(chatID, 0, text)
		}

	case "trade":
		b.setState(chatID, chatState{mode: modeTrade})
		b.send(chatID, 0, "Please enter the trade that you would like to place.")

	case "calculate":
		b.setState(chatID, chatState{mode: modeCalculate})
		b.send(chatID, 0, "Please enter the trade that you would like to calculate.")

	case "yes":
		state := b.takeState(chatID)
		if state.mode != modeDecision || state.pending == nil {
			b.send(chatID, 0, msgUnknownCommand)
			return
		}
		b.enqueue(domain.RequestInterpret, *state.pending, message.MessageID)

	case "no", "cancel":
		b.takeState(chatID)
		b.send(chatID, 0, "Command has been canceled.")

	case "ongoing_trades":
		b.enqueue(domain.RequestOpenTrades, toDomain(message), message.MessageID)

	case "messagetrade_ids":
		b.enqueue(domain.RequestCorrelations, toDomain(message), message.MessageID)

	default:
		b.send(chatID, 0, msgUnknownCommand)
	}
}

func (b *Bot) handleText(message *tgbotapi.Message) {
	msg := toDomain(message)
	if strings.TrimSpace(msg.Text) == "" {
		return
	}

	state := b.takeState(msg.ChatID)
	switch state.mode {
	case modeCalculate:
		b.enqueueWith(domain.RequestCalculate, msg, func(report *domain.Report) {
			b.send(msg.ChatID, int(msg.ID), report.Text())
			if report.Error != "" {
				return
			}
			b.setState(msg.ChatID, chatState{mode: modeDecision, pending: &msg})
			b.send(msg.ChatID, 0, msgDecision)
		})
	default:
		// trade mode and free text both go straight to the interpreter
		b.enqueue(domain.RequestInterpret, msg, int(msg.ID))
	}
}

func (b *Bot) enqueue(kind domain.RequestKind, msg domain.Message, replyTo int) {
	b.enqueueWith(kind, msg, func(report *domain.Report) {
		b.send(msg.ChatID, replyTo, report.Text())
	})
}

func (b *Bot) enqueueWith(kind domain.RequestKind, msg domain.Message, reply func(*domain.Report)) {
	if err := b.engine.Enqueue(kind, msg, reply); err != nil {
		b.logger.Error("Failed to enqueue request",
			zap.String("kind", string(kind)),
			zap.Int64("message_id", msg.ID),
			zap.Error(err))
		b.send(msg.ChatID, 0, "The bot is busy, please retry: "+err.Error())
	}
}

func (b *Bot) setState(chatID int64, s chatState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chats[chatID] = &s
}

// takeState returns and clears the chat's pending mode.
func (b *Bot) takeState(chatID int64) chatState {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.chats[chatID]
	if !ok {
		return chatState{}
	}
	delete(b.chats, chatID)
	return *s
}

// send splits long text and logs failures; replies are best effort.
func (b *Bot) send(chatID int64, replyTo int, text string) {
	if text == "" {
		return
	}
	for i, part := range splitMessage(text, maxMessageLength) {
		out := tgbotapi.NewMessage(chatID, part)
		if i == 0 && replyTo != 0 {
			out.ReplyToMessageID = replyTo
		}
		if _, err := b.sender.Send(out); err != nil {
			b.logger.Error("Failed to send telegram message", zap.Int64("chat_id", chatID), zap.Error(err))
		}
	}
}

func toDomain(message *tgbotapi.Message) domain.Message {
	text := message.Text
	if text == "" {
		text = message.Caption
	}
	msg := domain.Message{
		ID:   int64(message.MessageID),
		Text: text,
		Date: message.Time(),
	}
	if message.Chat != nil {
		msg.ChatID = message.Chat.ID
		msg.Username = message.Chat.UserName
	}
	if message.ReplyToMessage != nil {
		msg.ReplyToID = int64(message.ReplyToMessage.MessageID)
	}
	return msg
}
