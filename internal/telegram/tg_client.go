package telegram

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"driftchat/backend/internal/chathub"
	"driftchat/backend/internal/localization"
	"driftchat/backend/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// idPrefix відокремлює учасників з Telegram від WebSocket-учасників.
const idPrefix = "tg:"

// ParticipantID повертає ідентичність Telegram-чату в хабі.
func ParticipantID(chatID int64) models.ParticipantID {
	return models.ParticipantID(idPrefix + strconv.FormatInt(chatID, 10))
}

// ChatIDOf - обернена до ParticipantID.
func ChatIDOf(id models.ParticipantID) (int64, bool) {
	raw, ok := strings.CutPrefix(string(id), idPrefix)
	if !ok {
		return 0, false
	}
	chatID, err := strconv.ParseInt(raw, 10, 64)
	return chatID, err == nil
}

// Sender - частина tgbotapi.BotAPI, потрібна клієнту.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Client реалізує інтерфейс chathub.Client для одного Telegram-чату.
// 'Read pump' обробляється централізовано в BotService.
type Client struct {
	ChatID    int64
	Send      chan models.ChatMessage
	Sender    Sender
	Localizer *localization.Localizer

	// Мова змінюється горутиною бота, а читається у writePump
	language  atomic.Pointer[string]
	closeOnce sync.Once
	closed    atomic.Bool
	log       *logrus.Entry
}

var _ chathub.Client = (*Client)(nil)

func NewClient(chatID int64, language string, sender Sender, localizer *localization.Localizer, outbox int) *Client {
	c := &Client{
		ChatID:    chatID,
		Send:      make(chan models.ChatMessage, outbox),
		Sender:    sender,
		Localizer: localizer,
		log:       logrus.WithFields(logrus.Fields{"component": "tg_client", "chat_id": chatID}),
	}
	c.SetLanguage(language)
	return c
}

// Language повертає поточну мову чату.
func (c *Client) Language() string { return *c.language.Load() }

// SetLanguage змінює мову, якою рендеряться наступні повідомлення.
func (c *Client) SetLanguage(language string) { c.language.Store(&language) }

func (c *Client) GetUserID() models.ParticipantID          { return ParticipantID(c.ChatID) }
func (c *Client) GetSendChannel() chan<- models.ChatMessage { return c.Send }

// Run запускає 'write pump'.
func (c *Client) Run() {
	go c.writePump()
}

func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.Send)
	})
}

// Closed повідомляє, чи хаб уже відпустив цього клієнта.
func (c *Client) Closed() bool { return c.closed.Load() }

func (c *Client) writePump() {
	defer c.log.Debug("Write pump stopped")

	for message := range c.Send {
		text, ok := c.Render(message)
		if !ok {
			continue
		}
		if _, err := c.Sender.Send(tgbotapi.NewMessage(c.ChatID, text)); err != nil {
			c.log.WithError(err).WithField("type", message.Type).Error("Failed to send Telegram message")
		}
	}
}

// Render перетворює повідомлення хаба на текст чату. Для непотрібних у Telegram
// повідомлень (сигналінг, приватні кімнати) повертає false.
func (c *Client) Render(msg models.ChatMessage) (string, bool) {
	lang := c.Language()
	t := func(key string) string { return c.Localizer.GetString(lang, key) }

	switch msg.Type {
	case models.TypeTextMessage:
		text := messageText(msg)
		return text, text != ""

	case models.TypePartnerFound:
		return t("partner_found"), true

	case models.TypePartnerDisconnected:
		return t("partner_left"), true

	case models.TypeLookingForPartner:
		var p models.LookingForPartner
		_ = json.Unmarshal(msg.Payload, &p)
		return fmt.Sprintf(t("searching"), p.QueuePosition), true

	case models.TypeNoUsersAvailable:
		return t("no_users"), true

	case models.TypeNoUsersInQueue:
		var hint models.CrossQueueHint
		_ = json.Unmarshal(msg.Payload, &hint)
		return fmt.Sprintf(t("no_users_in_queue"), hint.AlternativeSize, hint.AlternativeType), true

	case models.TypeQueueTimeout:
		return t("queue_timeout"), true

	case models.TypeAnnouncement:
		return fmt.Sprintf(t("announcement"), msg.Content), true

	case models.TypeError:
		var e models.RoomError
		_ = json.Unmarshal(msg.Payload, &e)
		if e.Reason == models.ReasonNotInRoom {
			return t("not_in_chat"), true
		}
		return t("bad_request"), true
	}
	return "", false
}

// messageText дістає текст пересланого повідомлення: веб-клієнти кладуть його
// в payload, Telegram-клієнти в Content.
func messageText(msg models.ChatMessage) string {
	if msg.Content != "" {
		return msg.Content
	}
	var body struct {
		Text string `json:"text"`
	}
	if len(msg.Payload) > 0 && json.Unmarshal(msg.Payload, &body) == nil {
		return body.Text
	}
	return ""
}
