package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tvloc02/EventVer1-sub000/internal/config"
	"github.com/tvloc02/EventVer1-sub000/internal/email"
)

func TestMailer(t *testing.T) {
	assert.IsType(t, &email.ConsoleMailer{}, mailer(config.Config{MailDriver: "console"}))
	assert.IsType(t, &email.SMTPMailer{}, mailer(config.Config{MailDriver: "smtp", SmtpHost: "smtp.example.com", SmtpPort: 587}))
	assert.IsType(t, &email.SendgridMailer{}, mailer(config.Config{MailDriver: "sendgrid", SendgridAPIKey: "key"}))
}

func TestStores_Memory(t *testing.T) {
	deps, err := stores(config.Config{DbDriver: "memory"})
	assert.NoError(t, err)
	assert.NotNil(t, deps.Registrations)
	assert.NotNil(t, deps.Events)
	assert.NotNil(t, deps.Audit)
}
