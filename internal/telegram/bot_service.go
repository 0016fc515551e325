// Package telegram handles the integration with the Telegram Bot API.
// It is responsible for receiving updates from Telegram, processing them,
// and communicating with the central chat hub.
package telegram

import (
	"context"

	"driftchat/backend/internal/chathub"
	"driftchat/backend/internal/localization"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// BotService is responsible for receiving Telegram updates and routing them to the hub.
type BotService struct {
	BotAPI    *tgbotapi.BotAPI
	Hub       *chathub.ManagerService
	Localizer *localization.Localizer

	outbox  int
	clients map[int64]*Client
	log     *logrus.Entry
}

// NewBotService creates a new BotService instance.
func NewBotService(token string, hub *chathub.ManagerService, localizer *localization.Localizer, outbox int) (*BotService, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	bot.Debug = false

	s := &BotService{
		BotAPI:    bot,
		Hub:       hub,
		Localizer: localizer,
		outbox:    outbox,
		clients:   make(map[int64]*Client),
		log:       logrus.WithField("component", "telegram"),
	}
	s.log.WithField("account", bot.Self.UserName).Info("Authorized on Telegram")
	return s, nil
}

// Run is the main loop for receiving Telegram updates. It returns when ctx ends.
func (s *BotService) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := s.BotAPI.GetUpdatesChan(u)
	defer s.BotAPI.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			switch {
			case update.Message != nil:
				s.handleIncomingMessage(update.Message)
			case update.CallbackQuery != nil:
				s.handleCallbackQuery(update.CallbackQuery)
			}
		}
	}
}

// clientFor returns the live hub client for chatID, registering a new one when
// the hub has dropped the previous one.
func (s *BotService) clientFor(chatID int64, language string) *Client {
	if c, ok := s.clients[chatID]; ok && !c.Closed() {
		if language != "" {
			c.SetLanguage(language)
		}
		return c
	}

	c := NewClient(chatID, language, s.BotAPI, s.Localizer, s.outbox)
	s.clients[chatID] = c
	if s.Hub.Register(c) {
		c.Run()
	}
	return c
}

func (s *BotService) handleIncomingMessage(msg *tgbotapi.Message) {
	language := ""
	if msg.From != nil {
		language = normalizeLanguage(msg.From.LanguageCode)
	}
	c := s.clientFor(msg.Chat.ID, language)
	s.apply(c, Translate(c.GetUserID(), msg))
}

func (s *BotService) handleCallbackQuery(query *tgbotapi.CallbackQuery) {
	if _, err := s.BotAPI.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		s.log.WithError(err).Warn("Failed to answer callback query")
	}
	if query.Message == nil {
		return
	}
	c := s.clientFor(query.Message.Chat.ID, "")
	s.apply(c, TranslateCallback(c.GetUserID(), query.Data))
}

func (s *BotService) apply(c *Client, action Action) {
	if action.Forward {
		s.Hub.Submit(action.Hub)
	}
	if action.Reply == "" {
		return
	}

	reply := tgbotapi.NewMessage(c.ChatID, s.Localizer.GetString(c.Language(), action.Reply))
	if action.ReportPrompt {
		reply.ReplyMarkup = reportKeyboard(s.Localizer, c.Language())
	}
	if _, err := s.BotAPI.Send(reply); err != nil {
		s.log.WithError(err).WithField("chat_id", c.ChatID).Error("Failed to send reply")
	}
}

func reportKeyboard(l *localization.Localizer, lang string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(l.GetString(lang, "report_reason_critical"), reportCallbackPrefix+"critical"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(l.GetString(lang, "report_reason_medium"), reportCallbackPrefix+"medium"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(l.GetString(lang, "report_reason_low"), reportCallbackPrefix+"low"),
		),
	)
}
