package utils

import (
	"fmt"

	"gopkg.in/gomail.v2"
)

// EmailSender sends transactional mail over SMTP. A zero Host disables
// sending, which keeps local development quiet.
type EmailSender struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// NewEmailSender builds a sender from SMTP settings.
func NewEmailSender(host string, port int, username, password, from string) *EmailSender {
	return &EmailSender{
		Host:     host,
		Port:     port,
		Username: username,
		Password: password,
		From:     from,
	}
}

// SendPaymentReceipt mails a payment confirmation to the user.
func (s *EmailSender) SendPaymentReceipt(email, username string, amount int64, orderID string) error {
	if s.Host == "" {
		LogDebug("SMTP not configured, skipping receipt for order %s", orderID)
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.From)
	m.SetHeader("To", email)
	m.SetHeader("Subject", "Ganesh AI - Payment Received")

	body := fmt.Sprintf(`
		<h2>Payment received</h2>
		<p>Hi %s,</p>
		<p>We received your payment of <b>%s</b>.</p>
		<p>Order reference: <code>%s</code></p>
		<p>The amount has been credited to your wallet.</p>
	`, username, FormatRupees(amount), orderID)
	m.SetBody("text/html", body)

	d := gomail.NewDialer(s.Host, s.Port, s.Username, s.Password)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send receipt email: %v", err)
	}
	return nil
}
