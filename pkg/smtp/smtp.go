package smtp

import (
	"ConveyorVision/internal/entity"
	"errors"
	"fmt"
	smtpPkg "net/smtp"
	"os"
	"strings"
	"time"
)

var ErrNotConfigured = errors.New("smtp: no sender or recipients configured")

type ItfSmtp interface {
	SendAlert(event entity.AlertEvent) error
}

type sendFunc func(addr string, a smtpPkg.Auth, from string, to []string, msg []byte) error

type smtp struct {
	auth smtpPkg.Auth
	addr string
	mail string
	to   []string
	send sendFunc
}

// New reads SMTP_MAIL, SMTP_PASSWORD, SMTP_HOST and SMTP_PORT, and sends to
// the comma separated ALERT_EMAIL_TO list.
func New() (ItfSmtp, error) {
	mail := os.Getenv("SMTP_MAIL")
	var to []string
	for _, r := range strings.Split(os.Getenv("ALERT_EMAIL_TO"), ",") {
		if r = strings.TrimSpace(r); r != "" {
			to = append(to, r)
		}
	}
	if mail == "" || len(to) == 0 {
		return nil, ErrNotConfigured
	}

	host := os.Getenv("SMTP_HOST")
	if host == "" {
		host = "smtp.gmail.com"
	}
	port := os.Getenv("SMTP_PORT")
	if port == "" {
		port = "587"
	}

	auth := smtpPkg.PlainAuth("", mail, os.Getenv("SMTP_PASSWORD"), host)

	return &smtp{
		auth: auth,
		addr: fmt.Sprintf("%s:%s", host, port),
		mail: mail,
		to:   to,
		send: smtpPkg.SendMail,
	}, nil
}

func (s *smtp) SendAlert(event entity.AlertEvent) error {
	return s.send(s.addr, s.auth, s.mail, s.to, s.message(event))
}

func (s *smtp) message(event entity.AlertEvent) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.mail)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(s.to, ", "))
	fmt.Fprintf(&b, "Subject: [%s] %s alert on camera %s\r\n",
		strings.ToUpper(string(event.Severity)), event.Kind, event.CameraID)
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "%s\r\n\r\n", event.Message)
	fmt.Fprintf(&b, "Camera: %s\r\n", event.CameraID)
	fmt.Fprintf(&b, "Time: %s\r\n", event.CreatedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Alert ID: %s\r\n", event.ID)
	if event.SnapshotURL != "" {
		fmt.Fprintf(&b, "Snapshot: %s\r\n", event.SnapshotURL)
	}
	return []byte(b.String())
}
