// Package email delivers verification codes and reset tokens over SMTP.
package email

import (
	"crypto/tls"
	"fmt"
	"math/rand"
	"mime"
	"net"
	"net/smtp"
	"time"

	"github.com/authkit-dev/authkit/internal/config"
	"github.com/authkit-dev/authkit/internal/logger"
)

type Email struct {
	server     string
	port       int
	senderName string
	username   string
	auth       smtp.Auth
	timeout    time.Duration
}

func New(cfg *config.Smtp, username, password string) *Email {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Email{
		server:     cfg.Server,
		port:       cfg.Port,
		senderName: cfg.SenderName,
		username:   username,
		auth:       smtp.PlainAuth("", username, password, cfg.Server),
		timeout:    timeout,
	}
}

// Send delivers a plain-text message. Port 465 means implicit TLS,
// anything else goes through STARTTLS.
func (e *Email) Send(recipientEmail, subject, body string) error {
	msg := e.buildMessage(recipientEmail, subject, body)
	address := fmt.Sprintf("%s:%d", e.server, e.port)

	conn, err := e.dial(address)
	if err != nil {
		logger.Log.Error("failed to connect to SMTP server", "address", address, "error", err)
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, e.server)
	if err != nil {
		logger.Log.Error("failed to create SMTP client", "error", err)
		return err
	}
	defer client.Close()

	if e.port != 465 {
		if err = client.StartTLS(&tls.Config{ServerName: e.server}); err != nil {
			logger.Log.Error("failed to start TLS", "error", err)
			return err
		}
	}

	return e.sendViaClient(client, recipientEmail, msg)
}

func (e *Email) dial(address string) (net.Conn, error) {
	if e.port == 465 {
		return tls.DialWithDialer(&net.Dialer{Timeout: e.timeout}, "tcp", address,
			&tls.Config{ServerName: e.server})
	}
	return net.DialTimeout("tcp", address, e.timeout)
}

func (e *Email) sendViaClient(client *smtp.Client, recipientEmail string, msg []byte) error {
	if err := client.Auth(e.auth); err != nil {
		logger.Log.Error("SMTP authentication failed", "error", err)
		return err
	}
	if err := client.Mail(e.username); err != nil {
		return err
	}
	if err := client.Rcpt(recipientEmail); err != nil {
		return err
	}

	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err = w.Write(msg); err != nil {
		return err
	}
	if err = w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

func (e *Email) buildMessage(recipient, subject, body string) []byte {
	encodedSubject := mime.QEncoding.Encode("utf-8", subject)
	encodedSenderName := mime.QEncoding.Encode("utf-8", e.senderName)

	msgID := fmt.Sprintf("<%d.%d@%s>", time.Now().UnixNano(), rand.Int63(), e.server)
	date := time.Now().Format(time.RFC1123Z)

	return fmt.Appendf(nil,
		"Message-ID: %s\r\n"+
			"Date: %s\r\n"+
			"To: %s\r\n"+
			"From: %s <%s>\r\n"+
			"Subject: %s\r\n"+
			"MIME-Version: 1.0\r\n"+
			"Content-Type: text/plain; charset=\"utf-8\"\r\n"+
			"\r\n"+
			"%s",
		msgID, date, recipient, encodedSenderName, e.username, encodedSubject, body,
	)
}
