// Package bot orchestrates prompt handling: admission, history, completion
// and delivery.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/lumebot/lume/internal/audit"
	"github.com/lumebot/lume/internal/chat"
	"github.com/lumebot/lume/internal/governor"
	"github.com/lumebot/lume/internal/history"
	"github.com/lumebot/lume/internal/render"
)

// lowQuotaThreshold triggers a warning after delivery when few admissions
// remain in the window.
const lowQuotaThreshold = 3

// Completer is the remote completion capability, injected so tests can
// substitute a double.
type Completer interface {
	Chat(ctx context.Context, req chat.Request) (chat.Result, error)
}

// Sender delivers one message, optionally with file attachments, to a chat
// destination.
type Sender interface {
	Send(ctx context.Context, channelID, text string, files []render.File) error
}

// Service composes the governor, the history store, the completion client and
// the materializer. All stores are owned here and live for the process only.
type Service struct {
	logger       *slog.Logger
	governor     *governor.Governor
	store        *history.Store
	audit        *audit.Log
	completer    Completer
	sender       Sender
	systemPrompt string
	adminID      string

	enabled   atomic.Bool
	asked     atomic.Int64
	completed atomic.Int64
	rejected  atomic.Int64

	now func() time.Time
}

func NewService(log *slog.Logger, gov *governor.Governor, store *history.Store, auditLog *audit.Log, completer Completer, sender Sender, systemPrompt, adminID string) *Service {
	if log == nil {
		log = slog.Default()
	}
	s := &Service{
		logger:       log.With(slog.String("service", "bot")),
		governor:     gov,
		store:        store,
		audit:        auditLog,
		completer:    completer,
		sender:       sender,
		systemPrompt: systemPrompt,
		adminID:      adminID,
		now:          time.Now,
	}
	s.enabled.Store(true)
	return s
}

// AskRequest is one inbound prompt event.
type AskRequest struct {
	UserID      string
	DisplayName string
	ChannelID   string
	Mention     string // platform mention string for the author, may be empty
	Prompt      string
}

// Ask runs the full request pipeline. User-facing failures are delivered as
// messages; the returned error reports delivery problems only.
func (s *Service) Ask(ctx context.Context, req AskRequest) error {
	requestID := uuid.NewString()
	log := s.logger.With(slog.String("request_id", requestID), slog.String("user_id", req.UserID))

	// The kill switch short-circuits before any quota or history mutation.
	if !s.enabled.Load() {
		return s.reply(ctx, req, failureMessage(ErrDisabled, 0, 0))
	}

	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return s.reply(ctx, req, failureMessage(ErrEmptyPrompt, 0, 0))
	}

	s.asked.Add(1)
	decision := s.governor.Admit(req.UserID, s.now())
	if !decision.Allowed {
		s.rejected.Add(1)
		log.Info("rejected", slog.Duration("retry_after", decision.RetryAfter))
		return s.reply(ctx, req, failureMessage(ErrQuotaExceeded, s.governor.Quota(), decision.RetryAfter))
	}

	s.audit.Record(s.now(), req.DisplayName, prompt)
	s.store.Append(req.UserID, chat.Message{Role: chat.RoleUser, Content: prompt})

	// The assistant turn is committed only after a successful call, so a
	// failure leaves just the user's own prompt in history.
	messages := make([]chat.Message, 0, history.MaxTurns+1)
	messages = append(messages, chat.Message{Role: chat.RoleSystem, Content: s.systemPrompt})
	messages = append(messages, s.store.Snapshot(req.UserID)...)

	result, err := s.completer.Chat(ctx, chat.Request{Messages: messages})
	if err != nil {
		log.Error("completion failed", slog.Any("error", err))
		return s.reply(ctx, req, failureMessage(fmt.Errorf("%w: %v", ErrCompletion, err), 0, 0))
	}

	reply := result.Message.Content
	s.store.Append(req.UserID, chat.Message{Role: chat.RoleAssistant, Content: reply})
	s.completed.Add(1)
	log.Info("completed",
		slog.String("model", result.Model),
		slog.Int("total_tokens", result.Usage.TotalTokens),
	)

	if err := s.deliver(ctx, req, render.Render(reply)); err != nil {
		return err
	}

	if decision.Remaining <= lowQuotaThreshold {
		return s.send(ctx, req.ChannelID, fmt.Sprintf(msgLowQuota, decision.Remaining), nil)
	}
	return nil
}

// deliver sends the rendered output: every chunk in order, files attached to
// the final message only.
func (s *Service) deliver(ctx context.Context, req AskRequest, out render.Output) error {
	if len(out.Messages) == 0 && len(out.Files) == 0 {
		return s.reply(ctx, req, msgEmptyReply)
	}

	for i, msg := range out.Messages {
		if i == 0 && req.Mention != "" {
			msg = req.Mention + " " + msg
		}
		var files []render.File
		if i == len(out.Messages)-1 {
			files = out.Files
		}
		if err := s.send(ctx, req.ChannelID, msg, files); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) reply(ctx context.Context, req AskRequest, text string) error {
	if req.Mention != "" {
		text = req.Mention + " " + text
	}
	return s.send(ctx, req.ChannelID, text, nil)
}

func (s *Service) send(ctx context.Context, channelID, text string, files []render.File) error {
	if err := s.sender.Send(ctx, channelID, text, files); err != nil {
		s.logger.Error("send failed", slog.String("channel_id", channelID), slog.Any("error", err))
		return err
	}
	return nil
}

// --- administrative and status operations ---

func (s *Service) isAdmin(userID string) bool {
	return userID != "" && userID == s.adminID
}

// SetEnabled flips the kill switch; admin only.
func (s *Service) SetEnabled(requesterID string, enabled bool) error {
	if !s.isAdmin(requesterID) {
		return ErrUnauthorized
	}
	s.enabled.Store(enabled)
	s.logger.Info("kill switch changed", slog.Bool("enabled", enabled))
	return nil
}

func (s *Service) Enabled() bool {
	return s.enabled.Load()
}

// ClearHistory clears the target's history. Clearing oneself is always
// allowed; clearing another user requires the admin identity. Reports whether
// anything was removed.
func (s *Service) ClearHistory(requesterID, targetID string) (bool, error) {
	if targetID == "" {
		targetID = requesterID
	}
	if targetID != requesterID && !s.isAdmin(requesterID) {
		return false, ErrUnauthorized
	}
	return s.store.Clear(targetID), nil
}

// StatusReport summarizes one user's quota and history state.
type StatusReport struct {
	Used       int
	Quota      int
	ResetIn    time.Duration
	HistoryLen int
	Enabled    bool
}

func (s *Service) Status(userID string) StatusReport {
	used, resetIn := s.governor.Usage(userID, s.now())
	return StatusReport{
		Used:       used,
		Quota:      s.governor.Quota(),
		ResetIn:    resetIn,
		HistoryLen: s.store.Len(userID),
		Enabled:    s.enabled.Load(),
	}
}

// RecentLogs returns the most recent audit entries; admin only.
func (s *Service) RecentLogs(requesterID string, n int) ([]audit.Entry, error) {
	if !s.isAdmin(requesterID) {
		return nil, ErrUnauthorized
	}
	return s.audit.Recent(n), nil
}

// ResetQuota clears the target's usage list; admin only.
func (s *Service) ResetQuota(requesterID, targetID string) (bool, error) {
	if !s.isAdmin(requesterID) {
		return false, ErrUnauthorized
	}
	return s.governor.Reset(targetID), nil
}

// Counters reports process-lifetime request totals for the status endpoint.
func (s *Service) Counters() (asked, completed, rejected int64) {
	return s.asked.Load(), s.completed.Load(), s.rejected.Load()
}

func formatWait(d time.Duration) string {
	if d < time.Second {
		d = time.Second
	}
	return d.Round(time.Second).String()
}
