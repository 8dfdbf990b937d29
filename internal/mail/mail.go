// Package mail sends Soundscape's transactional email.
//
// Bodies are written in Markdown. Each message goes out as
// multipart/alternative: the Markdown source as the text part and its
// goldmark rendering as the HTML part.
package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/textproto"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// ErrNotConfigured is returned by the log-only sender.
var ErrNotConfigured = errors.New("mail: SMTP is not configured")

// Message is one outgoing email.
type Message struct {
	To       string
	Subject  string
	Markdown string
}

// Sender delivers a message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

var md = goldmark.New(
	goldmark.WithExtensions(
		extension.Linkify,
	),
)

// render returns the full RFC 5322 message, headers included.
func render(from string, msg Message, now time.Time) ([]byte, error) {
	var html bytes.Buffer
	if err := md.Convert([]byte(msg.Markdown), &html); err != nil {
		return nil, fmt.Errorf("mail: rendering markdown: %w", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	parts := []struct {
		contentType string
		content     []byte
	}{
		{"text/plain; charset=UTF-8", []byte(msg.Markdown)},
		{"text/html; charset=UTF-8", html.Bytes()},
	}
	for _, p := range parts {
		w, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {p.contentType},
			"Content-Transfer-Encoding": {"8bit"},
		})
		if err != nil {
			return nil, fmt.Errorf("mail: writing part: %w", err)
		}
		if _, err := w.Write(p.content); err != nil {
			return nil, fmt.Errorf("mail: writing part: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("mail: closing multipart: %w", err)
	}

	var out bytes.Buffer
	header := func(k, v string) { fmt.Fprintf(&out, "%s: %s\r\n", k, v) }
	header("From", from)
	header("To", msg.To)
	header("Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	header("Date", now.Format(time.RFC1123Z))
	header("Message-ID", fmt.Sprintf("<%s@soundscape>", xid.New().String()))
	header("MIME-Version", "1.0")
	header("Content-Type", `multipart/alternative; boundary="`+mw.Boundary()+`"`)
	out.WriteString("\r\n")
	out.Write(body.Bytes())
	return out.Bytes(), nil
}

// LogSender is used when no SMTP server is configured. It records that a
// message was dropped and returns ErrNotConfigured.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) Send(_ context.Context, msg Message) error {
	s.Logger.Warn("email not sent, SMTP is not configured",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
	)
	return ErrNotConfigured
}

// addressOnly strips a display name: "Soundscape <a@b>" → "a@b".
func addressOnly(from string) string {
	if i := strings.LastIndex(from, "<"); i >= 0 {
		if j := strings.LastIndex(from, ">"); j > i {
			return from[i+1 : j]
		}
	}
	return strings.TrimSpace(from)
}
