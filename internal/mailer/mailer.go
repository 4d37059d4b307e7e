// Package mailer sends the onboarding email to new users.
package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"billing/internal/logger"
)

// ErrSendFailed is returned when the relay rejects or drops a message.
var ErrSendFailed = errors.New("failed to send email")

// Welcome is the onboarding message for one user.
type Welcome struct {
	To   string
	Name string
}

// Mailer delivers onboarding emails.
type Mailer interface {
	SendWelcome(ctx context.Context, msg Welcome) error
}

// Config configures the SMTP relay.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	AppURL   string // link in the message body
}

// sendFunc matches smtp.SendMail.
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTP sends mail through an SMTP relay with PLAIN auth when credentials are set.
type SMTP struct {
	cfg  Config
	send sendFunc
	now  func() time.Time
	log  zerolog.Logger
}

// NewSMTP creates an SMTP mailer.
func NewSMTP(cfg Config) *SMTP {
	return &SMTP{
		cfg:  cfg,
		send: smtp.SendMail,
		now:  time.Now,
		log:  logger.WithComponent("mailer"),
	}
}

// SendWelcome implements Mailer.
func (m *SMTP) SendWelcome(ctx context.Context, msg Welcome) error {
	const op = "SendWelcome"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	body := m.compose(msg)
	if err := m.send(addr, auth, m.cfg.From, []string{msg.To}, body); err != nil {
		m.log.Error().Err(err).Str("to", msg.To).Str("relay", addr).Msg("Failed to send welcome email")
		return fmt.Errorf("%s: %w: %v", op, ErrSendFailed, err)
	}

	m.log.Info().Str("to", msg.To).Msg("Welcome email sent")
	return nil
}

func (m *SMTP) compose(msg Welcome) []byte {
	name := msg.Name
	if name == "" {
		name = msg.To
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", m.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", "Bem-vindo ao painel de faturamento"))
	fmt.Fprintf(&b, "Date: %s\r\n", m.now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n\r\n")

	lines := []string{
		fmt.Sprintf("Olá, %s!", name),
		"",
		"Sua conta no painel de faturamento foi criada.",
		fmt.Sprintf("Acesse %s e entre com o e-mail %s e a senha informada pelo administrador.", m.cfg.AppURL, msg.To),
		"",
		"Recomendamos trocar a senha no primeiro acesso.",
	}
	b.WriteString(strings.Join(lines, "\r\n"))
	b.WriteString("\r\n")
	return b.Bytes()
}

// Nop logs instead of sending. It is used when no relay is configured.
type Nop struct {
	log zerolog.Logger
}

// NewNop creates a mailer that only logs.
func NewNop() *Nop {
	return &Nop{log: logger.WithComponent("mailer")}
}

// SendWelcome implements Mailer.
func (n *Nop) SendWelcome(_ context.Context, msg Welcome) error {
	n.log.Warn().Str("to", msg.To).Msg("SMTP not configured, welcome email not sent")
	return nil
}
