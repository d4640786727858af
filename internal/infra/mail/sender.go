package mail

import (
	"context"
	"crypto/tls"
	"fmt"

	domainMail "notification_mailer/internal/domain/mail"
	"notification_mailer/internal/infra/config"
	"notification_mailer/internal/infra/metrics"

	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

// SMTPSender implements domain mail.Sender over gopkg.in/gomail.v2.
// A new SMTP session is dialed for each message and closed right after it.
type SMTPSender struct {
	dialer        *gomail.Dialer
	senderAddress string
	senderName    string
	logger        logrus.FieldLogger
}

func NewSMTPSender(smtpCfg config.SMTPConfig, mailCfg config.MailConfig, logger logrus.FieldLogger) *SMTPSender {
	logger = logger.WithField("component", "mail")
	logger.Infof("Initializing mail sender for host: %s, port: %d, user: %s", smtpCfg.Host, smtpCfg.Port, smtpCfg.User)

	d := gomail.NewDialer(smtpCfg.Host, smtpCfg.Port, smtpCfg.User, smtpCfg.Password)
	d.SSL = smtpCfg.Secure
	if smtpCfg.InsecureSkipVerify {
		logger.Warn("InsecureSkipVerify is enabled for mail TLS connection")
		d.TLSConfig = &tls.Config{InsecureSkipVerify: true, ServerName: smtpCfg.Host}
	}

	return &SMTPSender{
		dialer:        d,
		senderAddress: mailCfg.SenderAddress,
		senderName:    mailCfg.SenderName,
		logger:        logger,
	}
}

// Send delivers msg in a single attempt. Any error from dial, auth, envelope or DATA is a failure.
func (s *SMTPSender) Send(ctx context.Context, msg domainMail.Message) error {
	if msg.To == "" {
		return domainMail.ErrNoRecipient
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mail to %s not sent: %w", msg.To, err)
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.senderAddress, s.senderName)
	m.SetHeader("To", msg.To)
	if len(msg.Cc) > 0 {
		m.SetHeader("Cc", msg.Cc...)
	}
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTMLBody)

	if err := s.dialer.DialAndSend(m); err != nil {
		metrics.MailSendFailure.WithLabelValues(s.dialer.Host).Inc()
		return fmt.Errorf("error sending mail to %s: %w", msg.To, err)
	}
	metrics.MailSendSuccess.WithLabelValues(s.dialer.Host).Inc()
	s.logger.WithFields(logrus.Fields{"to": msg.To, "cc": len(msg.Cc)}).Debug("Mail sent")
	return nil
}

// Verify opens and closes an authenticated SMTP session.
func (s *SMTPSender) Verify(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sc, err := s.dialer.Dial()
	if err != nil {
		return fmt.Errorf("error connecting to mail server %s:%d: %w", s.dialer.Host, s.dialer.Port, err)
	}
	if err := sc.Close(); err != nil {
		return fmt.Errorf("error closing mail session: %w", err)
	}
	return nil
}

func (s *SMTPSender) Host() string {
	return s.dialer.Host
}
