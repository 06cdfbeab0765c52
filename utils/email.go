package utils

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/gomail.v2"
)

// SendEmail sends an HTML email using the configured SMTP relay
func SendEmail(to, subject, body string) error {
	host := os.Getenv("SMTP_HOST")
	port, err := strconv.Atoi(os.Getenv("SMTP_PORT"))
	if err != nil {
		port = 587
	}
	username := os.Getenv("SMTP_USERNAME")
	password := os.Getenv("SMTP_PASSWORD")
	from := os.Getenv("SMTP_FROM")
	if from == "" {
		from = username
	}

	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	d := gomail.NewDialer(host, port, username, password)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %v", err)
	}
	return nil
}

// SendDonationReceipt emails a thank-you receipt to the donor. Callers
// treat failures as non-fatal: the donation is already durable.
func SendDonationReceipt(to, donorName, orgName, amountDisplay string) error {
	subject := fmt.Sprintf("Thank you for supporting %s", orgName)
	body := fmt.Sprintf(`
		<h2>Thank you, %s!</h2>
		<p>Your donation of <strong>%s</strong> to %s has been received.</p>
		<p>This email is your receipt. No further action is needed.</p>
	`, donorName, amountDisplay, orgName)
	return SendEmail(to, subject, body)
}
