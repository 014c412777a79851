// Package telegram adapts the bot platform: a thin gateway for outbound
// polls/messages and the handler set wiring chat updates into the quiz
// service.
package telegram

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
)

// Gateway implements app.Gateway on top of a telebot connection.
type Gateway struct {
	bot *tele.Bot
	log *zap.Logger
}

func NewGateway(bot *tele.Bot, log *zap.Logger) *Gateway {
	return &Gateway{bot: bot, log: log}
}

func (g *Gateway) SendPoll(_ context.Context, chatID int64, question string, options []string) (string, error) {
	poll := &tele.Poll{
		Type:      tele.PollRegular,
		Question:  question,
		Anonymous: false,
	}
	poll.AddOptions(options...)

	msg, err := g.bot.Send(tele.ChatID(chatID), poll)
	if err != nil {
		return "", fmt.Errorf("send poll: %w", err)
	}
	if msg.Poll == nil {
		return "", fmt.Errorf("poll message came back without a poll payload")
	}
	return msg.Poll.ID, nil
}

func (g *Gateway) SendMessage(_ context.Context, chatID int64, text string) error {
	if _, err := g.bot.Send(tele.ChatID(chatID), text); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func (g *Gateway) SendDirect(_ context.Context, userID int64, text string) error {
	if _, err := g.bot.Send(&tele.User{ID: userID}, text); err != nil {
		return fmt.Errorf("send direct: %w", err)
	}
	return nil
}

// ForwardDocument copies an uploaded document message to the backup channel.
func (g *Gateway) ForwardDocument(msg *tele.Message, channelID int64) error {
	if _, err := g.bot.Forward(tele.ChatID(channelID), msg); err != nil {
		return fmt.Errorf("forward document: %w", err)
	}
	return nil
}
