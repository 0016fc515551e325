package telegram

import (
	"encoding/json"
	"strings"

	"driftchat/backend/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Action is what an incoming Telegram message asks for.
type Action struct {
	// Hub is sent to the manager when Forward is set.
	Hub     models.ChatMessage
	Forward bool
	// Reply is a localisation key answered directly by the bot.
	Reply string
	// ReportPrompt asks the bot to offer the report severities as buttons.
	ReportPrompt bool
}

// Translate maps a Telegram message onto a hub message. It has no side effects.
func Translate(id models.ParticipantID, msg *tgbotapi.Message) Action {
	if msg == nil {
		return Action{}
	}

	if msg.IsCommand() {
		return translateCommand(id, msg)
	}
	if msg.Text == "" {
		return Action{Reply: "unsupported_message_type"}
	}

	payload, _ := json.Marshal(struct {
		Text      string `json:"text"`
		Timestamp int64  `json:"timestamp"`
	}{msg.Text, msg.Time().UnixMilli()})

	return Action{
		Forward: true,
		Hub: models.ChatMessage{
			Type:     models.TypeTextMessage,
			SenderID: id,
			Content:  msg.Text,
			Payload:  payload,
		},
	}
}

func translateCommand(id models.ParticipantID, msg *tgbotapi.Message) Action {
	hub := models.ChatMessage{SenderID: id}

	switch msg.Command() {
	case "start":
		return Action{Reply: "welcome"}

	case "text", "search":
		hub.Type = models.TypeJoinQueue
		hub.Payload, _ = json.Marshal(models.JoinQueueRequest{
			ChatType: models.ChatTypeText,
			Metadata: metadataFor(msg),
		})

	case "video":
		return Action{Reply: "video_unsupported"}

	case "next":
		hub.Type = models.TypeNextPartner

	case "stop":
		hub.Type = models.TypeStopChat
		return Action{Hub: hub, Forward: true, Reply: "chat_stopped"}

	case "leave":
		hub.Type = models.TypeLeaveQueue
		return Action{Hub: hub, Forward: true, Reply: "left_queue"}

	case "report":
		reason := strings.ToLower(strings.TrimSpace(msg.CommandArguments()))
		if reason == "" {
			return Action{Reply: "report_reason_prompt", ReportPrompt: true}
		}
		return reportAction(id, reason)

	default:
		return Action{Reply: "unknown_command"}
	}
	return Action{Hub: hub, Forward: true}
}

// reportCallbackPrefix marks inline keyboard data produced by the report prompt.
const reportCallbackPrefix = "report_"

// TranslateCallback maps a pressed report button onto a report message.
func TranslateCallback(id models.ParticipantID, data string) Action {
	reason, ok := strings.CutPrefix(data, reportCallbackPrefix)
	if !ok || reason == "" {
		return Action{}
	}
	return reportAction(id, reason)
}

func reportAction(id models.ParticipantID, reason string) Action {
	hub := models.ChatMessage{Type: models.TypeReport, SenderID: id}
	hub.Payload, _ = json.Marshal(models.ReportRequest{Reason: reason})
	return Action{Hub: hub, Forward: true}
}

func metadataFor(msg *tgbotapi.Message) models.Metadata {
	meta := models.Metadata{Region: "global", Language: "en"}
	if msg.From != nil && msg.From.LanguageCode != "" {
		meta.Language = normalizeLanguage(msg.From.LanguageCode)
	}
	return meta
}

func normalizeLanguage(code string) string {
	code = strings.ToLower(code)
	if i := strings.IndexAny(code, "-_"); i > 0 {
		code = code[:i]
	}
	return code
}
