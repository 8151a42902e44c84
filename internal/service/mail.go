package service

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"
)

const anomalyMailSubject = "Security alert: your session was used unexpectedly"

const anomalyMailBody = `<p>Hello,</p>
<p>Someone presented your sign-in credentials for a blog admin session that does not belong to you.
We closed that session and you will have to sign in again.</p>
<p>If this was not you, change your password.</p>`

// MailNotifier sends the security alert over SMTP. Port 465 style implicit TLS when secure, STARTTLS otherwise.
type MailNotifier struct {
	smtpHost string
	smtpPort string
	username string
	password string
	fromName string
	secure   bool
}

func NewMailNotifier(host, port, user, pass, fromName string, secure bool) *MailNotifier {
	return &MailNotifier{
		smtpHost: host,
		smtpPort: port,
		username: user,
		password: pass,
		fromName: fromName,
		secure:   secure,
	}
}

func (m *MailNotifier) Notify(ctx context.Context, address string) error {
	if strings.TrimSpace(address) == "" {
		return fmt.Errorf("empty recipient address")
	}
	msg := m.buildMessage(address)
	serverAddr := net.JoinHostPort(m.smtpHost, m.smtpPort)
	tlsConfig := &tls.Config{ServerName: m.smtpHost, MinVersion: tls.VersionTLS12}

	conn, err := m.dial(ctx, serverAddr, tlsConfig)
	if err != nil {
		return err
	}
	defer conn.Close()
	// Every SMTP round trip is bounded by ctx, including a server that never answers.
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	client, err := smtp.NewClient(conn, m.smtpHost)
	if err != nil {
		return fmt.Errorf("smtp client failed: %w", err)
	}
	defer client.Quit()

	if !m.secure {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsConfig); err != nil {
				return fmt.Errorf("starttls failed: %w", err)
			}
		}
	}
	if ok, _ := client.Extension("AUTH"); ok && m.username != "" {
		if err := client.Auth(smtp.PlainAuth("", m.username, m.password, m.smtpHost)); err != nil {
			return fmt.Errorf("auth failed: %w", err)
		}
	}
	return m.sendMail(client, address, msg)
}

func (m *MailNotifier) dial(ctx context.Context, addr string, tlsConfig *tls.Config) (net.Conn, error) {
	if m.secure {
		dialer := &tls.Dialer{Config: tlsConfig}
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("tls dial failed: %w", err)
		}
		return conn, nil
	}
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial failed: %w", err)
	}
	return conn, nil
}

func (m *MailNotifier) sendMail(client *smtp.Client, to string, msg []byte) error {
	if err := client.Mail(m.username); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("RCPT TO failed: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA failed: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close failed: %w", err)
	}
	return nil
}

func (m *MailNotifier) buildMessage(to string) []byte {
	from := fmt.Sprintf("%s <%s>", m.fromName, m.username)
	return []byte(
		fmt.Sprintf("From: %s\r\n", from) +
			fmt.Sprintf("To: %s\r\n", to) +
			fmt.Sprintf("Subject: %s\r\n", anomalyMailSubject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=\"utf-8\"\r\n" +
			"\r\n" +
			anomalyMailBody,
	)
}
