package notify

import (
	"crypto/tls"
	"fmt"
	"log"
	"net/smtp"
)

// MailerConfig holds SMTP settings. An empty Host disables real delivery.
type MailerConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// Mailer sends plain-text notification emails over SMTP with TLS. Recipient
// entity ids are resolved to addresses by the Resolver; address data lives
// in the external hub, so an unresolved recipient is logged, not failed.
type Mailer struct {
	cfg MailerConfig

	// Resolver maps an entity id to an email address. Nil means no
	// directory is available and delivery is simulated.
	Resolver func(entityID string) (string, bool)
}

func NewMailer(cfg MailerConfig) *Mailer {
	return &Mailer{cfg: cfg}
}

// Send delivers a message to the entity's address. Unconfigured SMTP or an
// unresolvable recipient downgrades to a logged simulation.
func (m *Mailer) Send(entityID, subject, body string) error {
	to := ""
	if m.Resolver != nil {
		if addr, ok := m.Resolver(entityID); ok {
			to = addr
		}
	}
	if m.cfg.Host == "" || to == "" {
		log.Printf("[notify] email simulated -> recipient=%s subject=%q", entityID, subject)
		return nil
	}

	addr := m.cfg.Host + ":" + m.cfg.Port
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=\"utf-8\"\r\n\r\n%s\r\n",
		m.cfg.From, to, subject, body)

	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: m.cfg.Host})
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	defer conn.Close()

	c, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	defer c.Close()

	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	if err := c.Auth(auth); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}
	if err := c.Mail(m.cfg.From); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := c.Rcpt(to); err != nil {
		return fmt.Errorf("smtp rcpt to: %w", err)
	}
	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := wc.Write([]byte(msg)); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("smtp close: %w", err)
	}
	return c.Quit()
}
