package notify

import (
	"fmt"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Notifier pushes operational notifications to an admin chat. It only sends;
// incoming updates are never consumed.
type Notifier struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

func New(botToken string, chatID int64) (*Notifier, error) {
	api, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram bot: %w", err)
	}
	return &Notifier{api: api, chatID: chatID}, nil
}

// Send delivers a plain-text message to the admin chat. Delivery failures are
// logged, never propagated: notifications are best-effort.
func (n *Notifier) Send(text string) {
	if n == nil {
		return
	}
	msg := tgbotapi.NewMessage(n.chatID, text)
	if _, err := n.api.Send(msg); err != nil {
		log.Printf("failed to send notification: %v", err)
	}
}

// AlertDetractor is fired when a detractor-score conversation completes.
func (n *Notifier) AlertDetractor(score int, sentiment, transcription string) {
	if n == nil {
		return
	}
	if sentiment == "" {
		sentiment = "Unknown"
	}
	n.Send(fmt.Sprintf("🚨 Detractor conversation completed\nScore: %d/10\nSentiment: %s\nInitial feedback: %s",
		score, sentiment, transcription))
}
