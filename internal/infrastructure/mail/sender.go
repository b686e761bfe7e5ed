// Package mail implementa el transporte de correo saliente sobre SMTP
// usando gomail. La fábrica falla rápido si falta configuración, pero el
// worker que la invoca registra el error y sigue: las filas quedan pending.
package mail

import (
	"fmt"

	"github.com/jhoicas/kiosco-api/internal/domain"
	"github.com/jhoicas/kiosco-api/pkg/config"
	gomail "gopkg.in/gomail.v2"
)

// SMTPSender envía correos vía SMTP con gomail.
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPSender construye el sender. Devuelve ErrMailTransport si la
// configuración SMTP está incompleta.
func NewSMTPSender(cfg config.SMTPConfig) (*SMTPSender, error) {
	if cfg.Host == "" || cfg.From == "" {
		return nil, fmt.Errorf("%w: falta SMTP_HOST o SMTP_FROM", domain.ErrMailTransport)
	}
	port := cfg.Port
	if port == 0 {
		port = 587
	}
	return &SMTPSender{
		dialer: gomail.NewDialer(cfg.Host, port, cfg.User, cfg.Password),
		from:   cfg.From,
	}, nil
}

// Send envía un correo de texto plano al destinatario.
func (s *SMTPSender) Send(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)
	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
