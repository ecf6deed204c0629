// Package discord binds the bot service to a Discord gateway session.
package discord

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/lumebot/lume/internal/bot"
	"github.com/lumebot/lume/internal/image"
	"github.com/lumebot/lume/internal/render"
)

type Adapter struct {
	logger  *slog.Logger
	session *discordgo.Session
	prefix  string
	service *bot.Service
	images  *image.Client
	remove  func()
}

// SetImageClient enables the optional image generation command.
func (a *Adapter) SetImageClient(c *image.Client) {
	a.images = c
}

func New(log *slog.Logger, token, prefix string) (*Adapter, error) {
	if log == nil {
		log = slog.Default()
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent

	if prefix == "" {
		prefix = "!"
	}
	return &Adapter{
		logger:  log.With(slog.String("adapter", "discord")),
		session: session,
		prefix:  prefix,
	}, nil
}

// SetService binds the orchestrator; the adapter is its outbound Sender, so
// the two are wired after both exist.
func (a *Adapter) SetService(service *bot.Service) {
	a.service = service
}

func (a *Adapter) Start(ctx context.Context) error {
	if a.service == nil {
		return fmt.Errorf("discord adapter has no bot service bound")
	}
	a.remove = a.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author == nil || m.Author.Bot {
			return
		}
		if ctx.Err() != nil {
			return
		}
		go a.handleMessage(ctx, s, m)
	})

	if err := a.session.Open(); err != nil {
		return fmt.Errorf("discord open connection: %w", err)
	}
	a.logger.Info("connected", slog.String("bot_user", a.session.State.User.Username))
	return nil
}

func (a *Adapter) Stop() error {
	if a.remove != nil {
		a.remove()
		a.remove = nil
	}
	return a.session.Close()
}

// Send delivers one message with optional file attachments.
func (a *Adapter) Send(ctx context.Context, channelID, text string, files []render.File) error {
	msg := &discordgo.MessageSend{Content: text}
	for _, f := range files {
		msg.Files = append(msg.Files, &discordgo.File{
			Name:   f.Name,
			Reader: bytes.NewReader(f.Content),
		})
	}
	_, err := a.session.ChannelMessageSendComplex(channelID, msg, discordgo.WithContext(ctx))
	return err
}

func (a *Adapter) handleMessage(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate) {
	content := strings.TrimSpace(m.Content)
	botID := s.State.User.ID

	if name, args, ok := parseCommand(content, a.prefix); ok {
		a.dispatch(ctx, m, name, args)
		return
	}

	if isBotMentioned(m.Message, botID) {
		prompt := stripMentions(content, botID)
		a.ask(ctx, m, prompt)
	}
}

func (a *Adapter) ask(ctx context.Context, m *discordgo.MessageCreate, prompt string) {
	// Typing indicator gives immediate feedback while the completion runs.
	if err := a.session.ChannelTyping(m.ChannelID); err != nil {
		a.logger.Debug("typing indicator failed", slog.Any("error", err))
	}

	err := a.service.Ask(ctx, bot.AskRequest{
		UserID:      m.Author.ID,
		DisplayName: m.Author.Username,
		ChannelID:   m.ChannelID,
		Mention:     m.Author.Mention(),
		Prompt:      prompt,
	})
	if err != nil {
		a.logger.Error("handle ask failed",
			slog.String("user_id", m.Author.ID),
			slog.Any("error", err),
		)
	}
}

func isBotMentioned(msg *discordgo.Message, botID string) bool {
	if msg == nil {
		return false
	}
	for _, mention := range msg.Mentions {
		if mention != nil && mention.ID == botID {
			return true
		}
	}
	return false
}

func stripMentions(content, botID string) string {
	content = strings.ReplaceAll(content, "<@"+botID+">", "")
	content = strings.ReplaceAll(content, "<@!"+botID+">", "")
	return strings.TrimSpace(content)
}
