package dispatcher

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"
	"gopkg.in/gomail.v2"
)

// Message is one rendered email ready for transport.
type Message struct {
	To         string
	Subject    string
	Body       string
	Attachment *Attachment
}

// Attachment is an optional file carried by a message.
type Attachment struct {
	Filename string
	Data     []byte
}

// Sender delivers rendered messages. The SMTP implementation is the
// default; tests substitute their own.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSender sends mail over SMTP with exponential-backoff retry.
type SMTPSender struct {
	host     string
	port     int
	username string
	password string
	from     string
	retries  int
}

func NewSMTPSender(host string, port int, username, password, from string, retries int) *SMTPSender {
	return &SMTPSender{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		retries:  retries,
	}
}

func (s *SMTPSender) send(msg Message) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)
	if msg.Attachment != nil {
		data := msg.Attachment.Data
		m.Attach(msg.Attachment.Filename, gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(data)
			return err
		}))
	}

	d := gomail.NewDialer(s.host, s.port, s.username, s.password)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send error: %w", err)
	}
	return nil
}

// Send retries transient SMTP failures with exponential backoff before
// giving up. The core does not retry beyond this; a failed job stays
// failed.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxElapsedTime = time.Duration(s.retries) * 5 * time.Second

	return backoff.Retry(func() error {
		return s.send(msg)
	}, backoff.WithContext(b, ctx))
}
