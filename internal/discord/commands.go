package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/lumebot/lume/internal/bot"
	"github.com/lumebot/lume/internal/render"
)

const (
	cmdAsk        = "ia"
	cmdClear      = "limpar"
	cmdStatus     = "status"
	cmdEnable     = "ligar"
	cmdDisable    = "desligar"
	cmdLogs       = "logs"
	cmdResetQuota = "resetquota"
	cmdImage      = "imagem"

	logEntryCount = 10
)

// parseCommand splits "!ia qual é ..." into ("ia", "qual é ...").
func parseCommand(content, prefix string) (name, args string, ok bool) {
	if !strings.HasPrefix(content, prefix) {
		return "", "", false
	}
	rest := content[len(prefix):]
	if rest == "" || rest[0] == ' ' {
		return "", "", false
	}
	name, args, _ = strings.Cut(rest, " ")
	return strings.ToLower(name), strings.TrimSpace(args), true
}

func (a *Adapter) dispatch(ctx context.Context, m *discordgo.MessageCreate, name, args string) {
	switch name {
	case cmdAsk:
		a.ask(ctx, m, args)
	case cmdClear:
		a.clearHistory(ctx, m)
	case cmdStatus:
		a.status(ctx, m)
	case cmdEnable:
		a.setEnabled(ctx, m, true)
	case cmdDisable:
		a.setEnabled(ctx, m, false)
	case cmdLogs:
		a.showLogs(ctx, m)
	case cmdResetQuota:
		a.resetQuota(ctx, m)
	case cmdImage:
		a.generateImage(ctx, m, args)
	}
}

func (a *Adapter) generateImage(ctx context.Context, m *discordgo.MessageCreate, prompt string) {
	if a.images == nil || !a.images.Configured() {
		a.replyText(ctx, m, "Geração de imagens não está configurada.")
		return
	}
	if prompt == "" {
		a.replyText(ctx, m, "Descreva a imagem: !imagem um gato de óculos")
		return
	}
	if err := a.session.ChannelTyping(m.ChannelID); err != nil {
		a.logger.Debug("typing indicator failed", slog.Any("error", err))
	}
	data, err := a.images.Generate(ctx, prompt)
	if err != nil {
		a.logger.Error("image generation failed", slog.Any("error", err))
		a.replyText(ctx, m, fmt.Sprintf("Erro ao gerar imagem: %v", err))
		return
	}
	if err := a.Send(ctx, m.ChannelID, m.Author.Mention()+" 🎨", []render.File{{Name: "imagem.png", Content: data}}); err != nil {
		a.logger.Error("send image failed", slog.Any("error", err))
	}
}

func (a *Adapter) clearHistory(ctx context.Context, m *discordgo.MessageCreate) {
	target := firstMentionedUser(m, a.session.State.User.ID)
	removed, err := a.service.ClearHistory(m.Author.ID, target)
	switch {
	case errors.Is(err, bot.ErrUnauthorized):
		a.replyText(ctx, m, "Apenas o dono pode limpar a memória de outra pessoa.")
	case err != nil:
		a.logger.Error("clear history failed", slog.Any("error", err))
	case removed:
		a.replyText(ctx, m, "🧹 Memória limpa.")
	default:
		a.replyText(ctx, m, "Nada para limpar.")
	}
}

func (a *Adapter) status(ctx context.Context, m *discordgo.MessageCreate) {
	report := a.service.Status(m.Author.ID)
	state := "ativa"
	if !report.Enabled {
		state = "desativada"
	}
	reset := "janela livre"
	if report.ResetIn > 0 {
		reset = fmt.Sprintf("reinicia em %s", report.ResetIn.Round(time.Second))
	}
	a.replyText(ctx, m, fmt.Sprintf(
		"📊 Perguntas: %d/%d (%s) · memória: %d turnos · IA %s",
		report.Used, report.Quota, reset, report.HistoryLen, state,
	))
}

func (a *Adapter) setEnabled(ctx context.Context, m *discordgo.MessageCreate, enabled bool) {
	if err := a.service.SetEnabled(m.Author.ID, enabled); err != nil {
		a.replyText(ctx, m, "Apenas o dono pode usar esse comando.")
		return
	}
	if enabled {
		a.replyText(ctx, m, "✅ IA ligada.")
	} else {
		a.replyText(ctx, m, "❌ IA desligada.")
	}
}

func (a *Adapter) showLogs(ctx context.Context, m *discordgo.MessageCreate) {
	entries, err := a.service.RecentLogs(m.Author.ID, logEntryCount)
	if err != nil {
		a.replyText(ctx, m, "Apenas o dono pode ver os logs.")
		return
	}
	if len(entries) == 0 {
		a.replyText(ctx, m, "Nenhuma pergunta registrada ainda.")
		return
	}
	var b strings.Builder
	b.WriteString("📜 Últimas perguntas:\n")
	for _, entry := range entries {
		fmt.Fprintf(&b, "[%s] %s perguntou: %s\n", entry.At.Format("15:04:05"), entry.User, entry.Prompt)
	}
	a.replyText(ctx, m, strings.TrimRight(b.String(), "\n"))
}

func (a *Adapter) resetQuota(ctx context.Context, m *discordgo.MessageCreate) {
	target := firstMentionedUser(m, a.session.State.User.ID)
	if target == "" {
		a.replyText(ctx, m, "Marque o usuário: !resetquota @usuário")
		return
	}
	removed, err := a.service.ResetQuota(m.Author.ID, target)
	switch {
	case errors.Is(err, bot.ErrUnauthorized):
		a.replyText(ctx, m, "Apenas o dono pode usar esse comando.")
	case err != nil:
		a.logger.Error("reset quota failed", slog.Any("error", err))
	case removed:
		a.replyText(ctx, m, "🔄 Quota zerada.")
	default:
		a.replyText(ctx, m, "Esse usuário não tem perguntas na janela.")
	}
}

func (a *Adapter) replyText(ctx context.Context, m *discordgo.MessageCreate, text string) {
	if err := a.Send(ctx, m.ChannelID, text, nil); err != nil {
		a.logger.Error("send reply failed", slog.String("channel_id", m.ChannelID), slog.Any("error", err))
	}
}

// firstMentionedUser returns the first mentioned user that is not the bot.
func firstMentionedUser(m *discordgo.MessageCreate, botID string) string {
	for _, mention := range m.Mentions {
		if mention != nil && mention.ID != botID {
			return mention.ID
		}
	}
	return ""
}
