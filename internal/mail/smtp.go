package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"time"
)

// SMTPConfig describes the mail relay.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// SMTPSender delivers through an SMTP relay. Port 465 uses implicit TLS;
// other ports use STARTTLS when the server offers it.
type SMTPSender struct {
	cfg  SMTPConfig
	now  func() time.Time
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	s := &SMTPSender{cfg: cfg, now: time.Now}
	if cfg.Port == 465 {
		s.send = s.sendImplicitTLS
	} else {
		s.send = smtp.SendMail
	}
	return s
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := render(s.cfg.From, msg, s.now())
	if err != nil {
		return err
	}

	var auth smtp.Auth
	if s.cfg.User != "" {
		auth = smtp.PlainAuth("", s.cfg.User, s.cfg.Password, s.cfg.Host)
	}
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))

	if err := s.send(addr, auth, addressOnly(s.cfg.From), []string{msg.To}, raw); err != nil {
		return fmt.Errorf("mail: sending to %s: %w", msg.To, err)
	}
	return nil
}

// sendImplicitTLS mirrors smtp.SendMail over a TLS connection, which
// SendMail itself cannot open.
func (s *SMTPSender) sendImplicitTLS(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: s.cfg.Host, MinVersion: tls.VersionTLS12})
	if err != nil {
		return err
	}
	c, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		conn.Close()
		return err
	}
	defer c.Close()

	if a != nil {
		if err := c.Auth(a); err != nil {
			return err
		}
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}
