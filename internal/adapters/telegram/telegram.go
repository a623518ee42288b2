// Package telegram implements the outbound transport.Sender on top of
// the Telegram Bot API. Inbound updates (commands) are handled elsewhere
// and are not this adapter's concern.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"modwatch/internal/transport"
	"modwatch/pkg/logx"
)

type Config struct {
	Token string

	// HTTPTimeout bounds each Bot API call as a backstop under the
	// caller's context deadline.
	HTTPTimeout time.Duration
}

type Adapter struct {
	bot *tele.Bot
	log logx.Logger
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Client: &http.Client{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	return &Adapter{bot: b, log: log}, nil
}

// Send posts one mod-update message to a chat. The channel ref is the
// decimal chat ID as stored by the registry. telebot calls are blocking,
// so the send runs in a goroutine and the context deadline wins.
func (a *Adapter) Send(ctx context.Context, to transport.ChannelRef, msg transport.Message) error {
	id, err := strconv.ParseInt(to, 10, 64)
	if err != nil {
		return fmt.Errorf("bad channel ref %q: %w", to, err)
	}

	done := make(chan error, 1)
	go func() { done <- a.send(tele.ChatID(id), msg) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Adapter) send(to tele.ChatID, msg transport.Message) error {
	opts := &tele.SendOptions{
		ParseMode:             tele.ModeMarkdown,
		DisableWebPagePreview: true,
	}
	text := render(msg)
	if msg.Thumbnail != "" {
		photo := &tele.Photo{File: tele.FromURL(msg.Thumbnail), Caption: text}
		_, err := a.bot.Send(to, photo, opts)
		return err
	}
	_, err := a.bot.Send(to, text, opts)
	return err
}

func render(msg transport.Message) string {
	var b strings.Builder
	b.WriteString("*")
	b.WriteString(msg.KindLabel)
	b.WriteString(":*\n")
	b.WriteString(msg.Title)
	b.WriteString("\n\nAuthor: ")
	b.WriteString(msg.Author)
	b.WriteString("\nVersion: ")
	b.WriteString(msg.Version)
	b.WriteString("\n")
	b.WriteString(msg.Link)
	return b.String()
}
