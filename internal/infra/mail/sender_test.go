package mail

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"

	domainMail "notification_mailer/internal/domain/mail"
	"notification_mailer/internal/infra/config"
	"notification_mailer/internal/infra/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testSMTPServer is a minimal SMTP server that records envelopes.
// It only implements the commands the sender needs.
type testSMTPServer struct {
	ln   net.Listener
	wg   sync.WaitGroup
	mu   sync.Mutex
	rcpt []string
	data []string
}

func startTestSMTPServer(t *testing.T) *testSMTPServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &testSMTPServer{ln: ln}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			s.serve(conn)
		}
	}()
	t.Cleanup(func() {
		ln.Close()
		s.wg.Wait()
	})
	return s
}

func (s *testSMTPServer) serve(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	fmt.Fprintf(conn, "220 localhost Test SMTP Service Ready\r\n")
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "EHLO"), strings.HasPrefix(line, "HELO"):
			fmt.Fprintf(conn, "250-localhost Hello\r\n250 OK\r\n")
		case strings.HasPrefix(line, "RCPT TO:"):
			s.mu.Lock()
			s.rcpt = append(s.rcpt, strings.Trim(strings.TrimPrefix(line, "RCPT TO:"), "<>"))
			s.mu.Unlock()
			fmt.Fprintf(conn, "250 OK\r\n")
		case strings.HasPrefix(line, "DATA"):
			fmt.Fprintf(conn, "354 End data with <CR><LF>.<CR><LF>\r\n")
			var b strings.Builder
			for {
				dline, derr := r.ReadString('\n')
				if derr != nil || strings.TrimSpace(dline) == "." {
					break
				}
				b.WriteString(dline)
			}
			s.mu.Lock()
			s.data = append(s.data, b.String())
			s.mu.Unlock()
			fmt.Fprintf(conn, "250 OK: queued as 12345\r\n")
		case strings.HasPrefix(line, "QUIT"):
			fmt.Fprintf(conn, "221 Bye\r\n")
			return
		default:
			fmt.Fprintf(conn, "250 OK\r\n")
		}
	}
}

func (s *testSMTPServer) port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

func (s *testSMTPServer) snapshot() ([]string, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.rcpt...), append([]string(nil), s.data...)
}

func newTestSender(port int) *SMTPSender {
	logger, _ := test.NewNullLogger()
	return NewSMTPSender(
		config.SMTPConfig{Host: "127.0.0.1", Port: port},
		config.MailConfig{SenderAddress: "pem@example.com", SenderName: "Performance Eficiencia y Mejora"},
		logger,
	)
}

func TestSMTPSender_Send_HappyPath(t *testing.T) {
	srv := startTestSMTPServer(t)
	sender := newTestSender(srv.port())
	before := testutil.ToFloat64(metrics.MailSendSuccess.WithLabelValues("127.0.0.1"))

	err := sender.Send(context.Background(), domainMail.Message{
		To:       "user@example.com",
		Cc:       []string{"boss@example.com", "ops@example.com"},
		Subject:  "Novedad: Hola",
		HTMLBody: "<p>body</p>",
	})
	require.NoError(t, err)

	rcpt, data := srv.snapshot()
	assert.ElementsMatch(t, []string{"user@example.com", "boss@example.com", "ops@example.com"}, rcpt)
	require.Len(t, data, 1)
	assert.Contains(t, data[0], "Subject: Novedad: Hola")
	assert.Contains(t, data[0], "To: user@example.com")
	assert.Contains(t, data[0], "Cc: boss@example.com, ops@example.com")
	assert.Contains(t, data[0], "text/html")
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.MailSendSuccess.WithLabelValues("127.0.0.1")))
}

func TestSMTPSender_Send_UnreachableServerFails(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	sender := newTestSender(port)
	before := testutil.ToFloat64(metrics.MailSendFailure.WithLabelValues("127.0.0.1"))

	err = sender.Send(context.Background(), domainMail.Message{To: "user@example.com", Subject: "s", HTMLBody: "b"})
	assert.Error(t, err)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.MailSendFailure.WithLabelValues("127.0.0.1")))
}

func TestSMTPSender_Send_Guards(t *testing.T) {
	sender := newTestSender(1)

	err := sender.Send(context.Background(), domainMail.Message{Subject: "s"})
	assert.ErrorIs(t, err, domainMail.ErrNoRecipient)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = sender.Send(ctx, domainMail.Message{To: "user@example.com"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSMTPSender_Verify(t *testing.T) {
	srv := startTestSMTPServer(t)
	sender := newTestSender(srv.port())

	assert.NoError(t, sender.Verify(context.Background()))
	assert.Equal(t, "127.0.0.1", sender.Host())
}

func TestSMTPSender_ImplementsSender(t *testing.T) {
	logger := logrus.New()
	var s domainMail.Sender = NewSMTPSender(config.SMTPConfig{Host: "localhost", Port: 25}, config.MailConfig{SenderAddress: "a@b.c"}, logger)
	assert.NotNil(t, s)
}
