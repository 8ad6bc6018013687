// Package mail provides a fluent SMTP mailer.
//
// Usage:
//
//	t := mail.NewSMTPTransport(mail.ConfigFromEnv())
//	err := t.Send(mail.Compose().
//	    To("customer@example.com").
//	    Subject("Your Driftmarket order").
//	    Body("<h1>Thanks!</h1>"))
//
// Transport is an interface so services can take a fake in tests.
package mail

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"

	"github.com/driftmarket/driftmarket/config"
)

// ------------------- Config -------------------

// SMTP holds connection credentials.
type SMTP struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

// ConfigFromEnv builds SMTP settings from the application config.
func ConfigFromEnv() SMTP {
	return SMTP{
		Host:     config.MailHost(),
		Port:     config.MailPort(),
		Username: config.MailUsername(),
		Password: config.MailPassword(),
		From:     config.MailFrom(),
		FromName: config.MailFromName(),
	}
}

// ------------------- Message -------------------

// Message is a fluent builder for an email.
type Message struct {
	to      []string
	cc      []string
	bcc     []string
	subject string
	body    string
	isHTML  bool
}

// Compose starts a new empty message (HTML body by default).
func Compose() *Message {
	return &Message{isHTML: true}
}

// To sets the primary recipients.
func (m *Message) To(addresses ...string) *Message {
	m.to = append(m.to, addresses...)
	return m
}

// CC adds CC recipients.
func (m *Message) CC(addresses ...string) *Message {
	m.cc = append(m.cc, addresses...)
	return m
}

// BCC adds BCC recipients.
func (m *Message) BCC(addresses ...string) *Message {
	m.bcc = append(m.bcc, addresses...)
	return m
}

// Subject sets the email subject.
func (m *Message) Subject(s string) *Message {
	m.subject = s
	return m
}

// GetSubject returns the subject (used by tests and log lines).
func (m *Message) GetSubject() string { return m.subject }

// Recipients returns all recipient addresses (to + cc + bcc).
func (m *Message) Recipients() []string {
	all := make([]string, 0, len(m.to)+len(m.cc)+len(m.bcc))
	all = append(all, m.to...)
	all = append(all, m.cc...)
	all = append(all, m.bcc...)
	return all
}

// Body sets the email body (HTML by default).
func (m *Message) Body(html string) *Message {
	m.body = html
	m.isHTML = true
	return m
}

// Text sets a plain-text body.
func (m *Message) Text(text string) *Message {
	m.body = text
	m.isHTML = false
	return m
}

// Template renders an html/template with data and sets it as the body.
func (m *Message) Template(tmpl *template.Template, data interface{}) *Message {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		m.body = fmt.Sprintf("<!-- render error: %v -->", err)
		return m
	}
	m.body = buf.String()
	m.isHTML = true
	return m
}

func (m *Message) buildRaw(from string) []byte {
	contentType := "text/plain"
	if m.isHTML {
		contentType = "text/html"
	}

	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + strings.Join(m.to, ", ") + "\r\n")
	if len(m.cc) > 0 {
		b.WriteString("Cc: " + strings.Join(m.cc, ", ") + "\r\n")
	}
	b.WriteString("Subject: " + m.subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString(fmt.Sprintf("Content-Type: %s; charset=\"UTF-8\"\r\n", contentType))
	b.WriteString("\r\n")
	b.WriteString(m.body)
	return []byte(b.String())
}

// ------------------- Transport -------------------

// Transport delivers a composed message. Implemented by SMTPTransport in
// production and by fakes in tests.
type Transport interface {
	Send(m *Message) error
}

// SMTPTransport delivers mail over SMTP.
type SMTPTransport struct {
	cfg SMTP
}

// NewSMTPTransport builds a transport for the given SMTP settings.
func NewSMTPTransport(cfg SMTP) *SMTPTransport {
	return &SMTPTransport{cfg: cfg}
}

// Send delivers the email via SMTP.
// Port 465 uses implicit TLS; 587/25 use STARTTLS via smtp.SendMail.
func (t *SMTPTransport) Send(m *Message) error {
	cfg := t.cfg
	if cfg.Username == "" {
		return fmt.Errorf("mail: MAIL_USERNAME not configured")
	}
	if len(m.to) == 0 {
		return fmt.Errorf("mail: no recipients")
	}

	from := fmt.Sprintf("%s <%s>", cfg.FromName, cfg.From)
	raw := m.buildRaw(from)

	addr := cfg.Host + ":" + cfg.Port
	auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)

	if cfg.Port == "465" {
		return t.sendTLS(addr, auth, cfg.From, m.Recipients(), raw, cfg.Host)
	}
	return smtp.SendMail(addr, auth, cfg.From, m.Recipients(), raw)
}

func (t *SMTPTransport) sendTLS(addr string, auth smtp.Auth, from string, to []string, raw []byte, host string) error {
	tlsCfg := &tls.Config{ServerName: host}
	conn, err := tls.Dial("tcp", addr, tlsCfg)
	if err != nil {
		return fmt.Errorf("mail: TLS dial: %w", err)
	}
	client, err := smtp.NewClient(conn, host)
	if err != nil {
		return err
	}
	defer client.Quit()

	if err := client.Auth(auth); err != nil {
		return err
	}
	if err := client.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	defer w.Close()
	_, err = w.Write(raw)
	return err
}
