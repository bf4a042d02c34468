package services

import (
	"github.com/rs/zerolog/log"
	"gopkg.in/gomail.v2"
)

type EmailService interface {
	SendEmail(to, subject, msg string) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

type emailService struct {
	from   string
	dialer *gomail.Dialer
}

func NewEmailService(cfg SMTPConfig) EmailService {
	return &emailService{
		from:   cfg.Username,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

func (e *emailService) SendEmail(to, subject, msg string) error {
	m := gomail.NewMessage()

	m.SetHeader("From", e.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", msg)

	if err := e.dialer.DialAndSend(m); err != nil {
		log.Error().Err(err).Str("to", to).Msg("Failed to send email")
		return err
	}
	log.Debug().Str("to", to).Str("subject", subject).Msg("Email sent")
	return nil
}
