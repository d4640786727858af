package telegram

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"notification_mailer/internal/app"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/telebot.v3"
)

const testAdminID = int64(1001)

// replyRecorder is a fake Bot API that keeps the text of every sendMessage call.
type replyRecorder struct {
	mu      sync.Mutex
	replies []string
}

func (r *replyRecorder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	raw, _ := io.ReadAll(req.Body)
	var body map[string]any
	_ = json.Unmarshal(raw, &body)
	if text, ok := body["text"].(string); ok {
		r.mu.Lock()
		r.replies = append(r.replies, text)
		r.mu.Unlock()
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":1,"type":"private"}}}`)
}

func (r *replyRecorder) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.replies) == 0 {
		return ""
	}
	return r.replies[len(r.replies)-1]
}

type stubTrigger struct {
	claimable bool
	ran       chan struct{}
}

func (s *stubTrigger) Claim() (func(), bool) {
	if !s.claimable {
		return nil, false
	}
	return func() { close(s.ran) }, true
}

func (s *stubTrigger) Busy() bool { return !s.claimable }

func newHandlerBot(t *testing.T, admin *app.AdminService) (*telebot.Bot, *replyRecorder) {
	t.Helper()
	rec := &replyRecorder{}
	srv := httptest.NewServer(rec)
	t.Cleanup(srv.Close)

	b, err := telebot.NewBot(telebot.Settings{URL: srv.URL, Token: "test-token", Offline: true, Synchronous: true})
	require.NoError(t, err)

	logger, _ := test.NewNullLogger()
	RegisterAdminHandlers(b, admin, testAdminID, logger)
	return b, rec
}

func command(senderID int64, text string) telebot.Update {
	return telebot.Update{Message: &telebot.Message{
		Text:   text,
		Sender: &telebot.User{ID: senderID},
		Chat:   &telebot.Chat{ID: senderID, Type: telebot.ChatPrivate},
	}}
}

func TestAdminHandlers_RejectOtherUsers(t *testing.T) {
	b, rec := newHandlerBot(t, app.NewAdminService(testAdminID))

	for _, cmd := range []string{"/start", "/help", "/status", "/run"} {
		b.ProcessUpdate(command(5, cmd))
		assert.Equal(t, "Error: you are not allowed to use this bot.", rec.last(), cmd)
	}
}

func TestAdminHandlers_Status(t *testing.T) {
	admin := app.NewAdminService(testAdminID)
	b, rec := newHandlerBot(t, admin)

	b.ProcessUpdate(command(testAdminID, "/status"))
	assert.Equal(t, "No dispatch run has finished yet.", rec.last())

	admin.Report(context.Background(), app.RunSummary{RunID: "run-3"})
	b.ProcessUpdate(command(testAdminID, "/status"))
	assert.Contains(t, rec.last(), "Last run run-3")
}

func TestAdminHandlers_Run(t *testing.T) {
	admin := app.NewAdminService(testAdminID)
	b, rec := newHandlerBot(t, admin)

	b.ProcessUpdate(command(testAdminID, "/run"))
	assert.Equal(t, "Manual runs are not available right now.", rec.last())

	trigger := &stubTrigger{claimable: true, ran: make(chan struct{})}
	admin.AttachTrigger(trigger)
	b.ProcessUpdate(command(testAdminID, "/run"))
	assert.Equal(t, "Dispatch run started. Use /status to see the result.", rec.last())
	<-trigger.ran

	admin.AttachTrigger(&stubTrigger{})
	b.ProcessUpdate(command(testAdminID, "/run"))
	assert.Contains(t, rec.last(), "already in progress")
}

func TestAdminHandlers_Help(t *testing.T) {
	b, rec := newHandlerBot(t, app.NewAdminService(testAdminID))

	b.ProcessUpdate(command(testAdminID, "/help"))
	assert.Contains(t, rec.last(), "/status")
	assert.Contains(t, rec.last(), "/run")
}
