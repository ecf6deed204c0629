package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumebot/lume/internal/audit"
	"github.com/lumebot/lume/internal/chat"
	"github.com/lumebot/lume/internal/governor"
	"github.com/lumebot/lume/internal/history"
	"github.com/lumebot/lume/internal/render"
)

const adminID = "42"

type fakeCompleter struct {
	mu    sync.Mutex
	reply string
	err   error
	calls int
	last  chat.Request
}

func (f *fakeCompleter) Chat(ctx context.Context, req chat.Request) (chat.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = req
	if f.err != nil {
		return chat.Result{}, f.err
	}
	return chat.Result{Message: chat.Message{Role: chat.RoleAssistant, Content: f.reply}}, nil
}

type sentMessage struct {
	channelID string
	text      string
	files     []render.File
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (f *fakeSender) Send(ctx context.Context, channelID, text string, files []render.File) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{channelID: channelID, text: text, files: files})
	return nil
}

type fixture struct {
	svc       *Service
	completer *fakeCompleter
	sender    *fakeSender
	store     *history.Store
	gov       *governor.Governor
}

func newFixture(t *testing.T, quota int) *fixture {
	t.Helper()
	completer := &fakeCompleter{reply: "tudo certo"}
	sender := &fakeSender{}
	store := history.NewStore()
	gov := governor.New(quota, time.Hour)
	svc := NewService(nil, gov, store, audit.NewLog(10), completer, sender, "seja útil", adminID)
	return &fixture{svc: svc, completer: completer, sender: sender, store: store, gov: gov}
}

func ask(userID string) AskRequest {
	return AskRequest{
		UserID:      userID,
		DisplayName: "user-" + userID,
		ChannelID:   "ch1",
		Mention:     "<@" + userID + ">",
		Prompt:      "qual a capital do Brasil?",
	}
}

func TestAskHappyPath(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 10)
	require.NoError(t, f.svc.Ask(context.Background(), ask("u1")))

	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, "<@u1> tudo certo", f.sender.sent[0].text)

	turns := f.store.Snapshot("u1")
	require.Len(t, turns, 2)
	assert.Equal(t, chat.RoleUser, turns[0].Role)
	assert.Equal(t, chat.RoleAssistant, turns[1].Role)

	// System directive is prepended to the outgoing call, never stored.
	require.NotEmpty(t, f.completer.last.Messages)
	assert.Equal(t, chat.RoleSystem, f.completer.last.Messages[0].Role)
	assert.Equal(t, "seja útil", f.completer.last.Messages[0].Content)
}

func TestAskDisabledShortCircuits(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 10)
	require.NoError(t, f.svc.SetEnabled(adminID, false))
	require.NoError(t, f.svc.Ask(context.Background(), ask("u1")))

	require.Len(t, f.sender.sent, 1)
	assert.Contains(t, f.sender.sent[0].text, "desativada")
	assert.Zero(t, f.completer.calls)
	assert.Empty(t, f.store.Snapshot("u1"), "disabled requests must not touch history")

	used, _ := f.gov.Usage("u1", time.Now())
	assert.Zero(t, used, "disabled requests must not consume quota")
}

func TestAskEmptyPrompt(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 10)
	req := ask("u1")
	req.Prompt = "   "
	require.NoError(t, f.svc.Ask(context.Background(), req))

	require.Len(t, f.sender.sent, 1)
	assert.Contains(t, f.sender.sent[0].text, "Me diga")
	assert.Zero(t, f.completer.calls)
}

func TestAskQuotaExceeded(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 1)
	require.NoError(t, f.svc.Ask(context.Background(), ask("u1")))
	require.NoError(t, f.svc.Ask(context.Background(), ask("u1")))

	last := f.sender.sent[len(f.sender.sent)-1]
	assert.Contains(t, last.text, "Limite de 1 perguntas")
	assert.Equal(t, 1, f.completer.calls, "rejected request must not call the completion service")
}

func TestAskCompletionFailureLeavesOnlyUserTurn(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 10)
	f.completer.err = errors.New("upstream boom")
	require.NoError(t, f.svc.Ask(context.Background(), ask("u1")))

	turns := f.store.Snapshot("u1")
	require.Len(t, turns, 1)
	assert.Equal(t, chat.RoleUser, turns[0].Role)

	require.Len(t, f.sender.sent, 1)
	assert.Contains(t, f.sender.sent[0].text, "Erro:")
	assert.Equal(t, 1, f.completer.calls, "completion is never retried")
}

func TestAskLowQuotaWarning(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 4)
	require.NoError(t, f.svc.Ask(context.Background(), ask("u1")))

	require.Len(t, f.sender.sent, 2)
	assert.Contains(t, f.sender.sent[1].text, "Restam apenas 3")
}

func TestAskCodeReplyAttachesFilesToFinalChunk(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 10)
	explanation := strings.Repeat("explicação detalhada\n", 150)
	f.completer.reply = explanation + "```python\nprint(1)\n```"
	require.NoError(t, f.svc.Ask(context.Background(), ask("u1")))

	require.Greater(t, len(f.sender.sent), 1)
	for i, msg := range f.sender.sent[:len(f.sender.sent)-1] {
		assert.Empty(t, msg.files, "chunk %d must not carry files", i)
	}
	final := f.sender.sent[len(f.sender.sent)-1]
	require.Len(t, final.files, 1)
	assert.Equal(t, "codigo.py", final.files[0].Name)
	assert.True(t, strings.HasPrefix(f.sender.sent[0].text, "<@u1> "), "mention goes on the first chunk")
}

func TestAskHistoryFeedsFollowUp(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 10)
	require.NoError(t, f.svc.Ask(context.Background(), ask("u1")))
	require.NoError(t, f.svc.Ask(context.Background(), ask("u1")))

	// system + first user + first assistant + second user
	require.Len(t, f.completer.last.Messages, 4)
	assert.Equal(t, chat.RoleAssistant, f.completer.last.Messages[2].Role)
}

func TestSetEnabledRequiresAdmin(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 10)
	err := f.svc.SetEnabled("u1", false)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.True(t, f.svc.Enabled())
}

func TestClearHistoryAuthorization(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 10)
	f.store.Append("u1", chat.Message{Role: chat.RoleUser, Content: "oi"})
	f.store.Append("u2", chat.Message{Role: chat.RoleUser, Content: "oi"})

	removed, err := f.svc.ClearHistory("u1", "")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = f.svc.ClearHistory("u1", "")
	require.NoError(t, err)
	assert.False(t, removed, "second clear has nothing to remove")

	_, err = f.svc.ClearHistory("u1", "u2")
	assert.ErrorIs(t, err, ErrUnauthorized)

	removed, err = f.svc.ClearHistory(adminID, "u2")
	require.NoError(t, err)
	assert.True(t, removed)
}

func TestRecentLogsAdminOnly(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 10)
	require.NoError(t, f.svc.Ask(context.Background(), ask("u1")))

	_, err := f.svc.RecentLogs("u1", 10)
	assert.ErrorIs(t, err, ErrUnauthorized)

	entries, err := f.svc.RecentLogs(adminID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "user-u1", entries[0].User)
}

func TestResetQuotaAdminOnly(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 1)
	require.NoError(t, f.svc.Ask(context.Background(), ask("u1")))

	_, err := f.svc.ResetQuota("u1", "u1")
	assert.ErrorIs(t, err, ErrUnauthorized)

	removed, err := f.svc.ResetQuota(adminID, "u1")
	require.NoError(t, err)
	assert.True(t, removed)

	require.NoError(t, f.svc.Ask(context.Background(), ask("u1")))
	assert.Equal(t, 2, f.completer.calls)
}

func TestStatus(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 5)
	require.NoError(t, f.svc.Ask(context.Background(), ask("u1")))

	report := f.svc.Status("u1")
	assert.Equal(t, 1, report.Used)
	assert.Equal(t, 5, report.Quota)
	assert.Positive(t, report.ResetIn)
	assert.Equal(t, 2, report.HistoryLen)
	assert.True(t, report.Enabled)
}

func TestConcurrentAsksRespectQuota(t *testing.T) {
	t.Parallel()

	const quota = 3
	f := newFixture(t, quota)
	done := make(chan error, 10)
	for i := 0; i < 10; i++ {
		go func() { done <- f.svc.Ask(context.Background(), ask("u1")) }()
	}
	for i := 0; i < 10; i++ {
		require.NoError(t, <-done)
	}

	assert.Equal(t, quota, f.completer.calls)
}

func TestAskManyUsersIsolated(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 1)
	for i := 0; i < 5; i++ {
		require.NoError(t, f.svc.Ask(context.Background(), ask(fmt.Sprintf("u%d", i))))
	}
	assert.Equal(t, 5, f.completer.calls)
}
