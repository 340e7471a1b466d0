package utils

import (
	"errors"
	"fmt"
	"html"
	"net/smtp"
	"os"
	"strings"

	"gasly-backend/logger"

	"go.uber.org/zap"
)

// ErrSMTPNotConfigured is returned by SendEmail when SMTP_HOST, SMTP_PORT or
// SMTP_FROM is unset. Notifications are skipped quietly in that case.
var ErrSMTPNotConfigured = errors.New("SMTP not configured")

type EmailConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

func GetEmailConfig() *EmailConfig {
	return &EmailConfig{
		Host:     os.Getenv("SMTP_HOST"),
		Port:     os.Getenv("SMTP_PORT"),
		Username: os.Getenv("SMTP_USERNAME"),
		Password: os.Getenv("SMTP_PASSWORD"),
		From:     os.Getenv("SMTP_FROM"),
	}
}

func SendEmail(to, subject, htmlBody string) error {
	config := GetEmailConfig()
	if config.Host == "" || config.Port == "" || config.From == "" {
		return ErrSMTPNotConfigured
	}

	headers := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n",
		config.From, to, subject)
	msg := []byte(headers + htmlBody)

	var auth smtp.Auth
	if config.Username != "" && config.Password != "" {
		auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}

	addr := config.Host + ":" + config.Port
	return smtp.SendMail(addr, auth, config.From, []string{to}, msg)
}

func sendAsync(kind, to, subject, body string) {
	go func() {
		err := SendEmail(to, subject, body)
		switch {
		case err == nil:
		case errors.Is(err, ErrSMTPNotConfigured):
			logger.L.Debug("email skipped", zap.String("kind", kind), zap.String("to", to))
		default:
			logger.L.Warn("email send failed", zap.String("kind", kind), zap.String("to", to), zap.Error(err))
		}
	}()
}

func firstName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return "there"
	}
	return html.EscapeString(fields[0])
}

func WelcomeEmail(name string) (subject, body string) {
	subject = "Welcome to Gasly!"
	body = fmt.Sprintf(`<h2>Welcome to Gasly, %s!</h2>
<p>Your account is ready. You can now:</p>
<ul>
<li>Order LPG cylinders delivered to your door</li>
<li>Earn rewards points on every delivered cylinder</li>
<li>Redeem points for discounts on your next refill</li>
</ul>
<p>The Gasly Team</p>`, firstName(name))
	return subject, body
}

func OrderConfirmationEmail(name, orderNumber, total string) (subject, body string) {
	subject = fmt.Sprintf("Order Confirmed - %s", orderNumber)
	body = fmt.Sprintf(`<h2>Order Confirmed!</h2>
<p>Hi %s,</p>
<p>Your order <strong>%s</strong> has been placed.</p>
<p>Order total: <strong>&#8369;%s</strong></p>
<p>We'll let you know when it is on the way.</p>
<p>The Gasly Team</p>`, firstName(name), html.EscapeString(orderNumber), html.EscapeString(total))
	return subject, body
}

func OrderStatusEmail(name, orderNumber, status string, pointsEarned int64) (subject, body string) {
	subject = fmt.Sprintf("Order %s - Status Update", orderNumber)
	var points string
	if pointsEarned > 0 {
		points = fmt.Sprintf("\n<p>You earned <strong>%d rewards points</strong> on this order.</p>", pointsEarned)
	}
	body = fmt.Sprintf(`<h2>Order Status Update</h2>
<p>Hi %s,</p>
<p>Your order <strong>%s</strong> is now: <strong>%s</strong></p>%s
<p>The Gasly Team</p>`, firstName(name), html.EscapeString(orderNumber),
		html.EscapeString(strings.ReplaceAll(status, "_", " ")), points)
	return subject, body
}

func SendWelcomeEmail(email, name string) {
	subject, body := WelcomeEmail(name)
	sendAsync("welcome", email, subject, body)
}

func SendOrderConfirmation(email, name, orderNumber, total string) {
	subject, body := OrderConfirmationEmail(name, orderNumber, total)
	sendAsync("order_confirmation", email, subject, body)
}

func SendOrderStatusUpdate(email, name, orderNumber, status string, pointsEarned int64) {
	subject, body := OrderStatusEmail(name, orderNumber, status, pointsEarned)
	sendAsync("order_status", email, subject, body)
}
