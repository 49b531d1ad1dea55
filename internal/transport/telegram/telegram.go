// Package telegram adapts gopkg.in/telebot.v4 to the transport interface, so
// the bot can run against Telegram instead of a OneBot endpoint.
package telegram

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"time"

	"gopkg.in/telebot.v4"

	"mangabot/internal/config"
	"mangabot/internal/logger"
	"mangabot/internal/transport"
)

// Client is a Telegram transport backed by long polling
type Client struct {
	api     *telebot.Bot
	handler transport.Handler
	running atomic.Bool
}

// New creates a Telegram transport from configuration
func New(cfg config.TelegramConfig) (*Client, error) {
	pref := telebot.Settings{
		Token:  cfg.Token,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
	}

	api, err := telebot.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	return &Client{api: api}, nil
}

// OnEvent registers the inbound event handler
func (c *Client) OnEvent(h transport.Handler) {
	c.handler = h
}

// Start begins long polling. Telegram updates are mapped onto the same event
// shape the OneBot transport produces: the bot's username plays the self-id
// role, so group mentions arrive as the plain "@<id>" form.
func (c *Client) Start(ctx context.Context) error {
	c.api.Handle(telebot.OnText, func(tc telebot.Context) error {
		if c.handler == nil {
			return nil
		}

		msg := tc.Message()
		ev := transport.Event{
			PostType:   transport.PostMsg,
			SelfID:     c.api.Me.Username,
			UserID:     strconv.FormatInt(msg.Sender.ID, 10),
			RawMessage: msg.Text,
			Time:       msg.Unixtime,
		}

		if msg.Chat.Type == telebot.ChatPrivate {
			ev.MessageType = transport.MsgPrivate
		} else {
			ev.MessageType = transport.MsgGroup
			ev.GroupID = strconv.FormatInt(msg.Chat.ID, 10)
		}

		c.handler(ev)
		return nil
	})

	go c.api.Start()
	c.running.Store(true)

	go func() {
		<-ctx.Done()
		c.Stop()
	}()

	logger.Infof("Telegram transport started as @%s", c.api.Me.Username)
	return nil
}

// Stop halts long polling
func (c *Client) Stop() error {
	if c.running.CompareAndSwap(true, false) {
		c.api.Stop()
	}
	return nil
}

// IsConnected reports whether the poller is running
func (c *Client) IsConnected() bool {
	return c.running.Load()
}

// SendText delivers a text message
func (c *Client) SendText(userID, text, groupID string, private bool) error {
	recipient, err := chatFor(userID, groupID, private)
	if err != nil {
		return err
	}
	_, err = c.api.Send(recipient, text)
	return err
}

// SendFile delivers a local file as a document
func (c *Client) SendFile(userID, path, groupID string, private bool) error {
	recipient, err := chatFor(userID, groupID, private)
	if err != nil {
		return err
	}

	doc := &telebot.Document{
		File:     telebot.FromDisk(path),
		FileName: filepath.Base(path),
	}
	_, err = c.api.Send(recipient, doc)
	return err
}

func chatFor(userID, groupID string, private bool) (*telebot.Chat, error) {
	id := groupID
	if private {
		id = userID
	}
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat id %q: %w", id, err)
	}
	return &telebot.Chat{ID: n}, nil
}
