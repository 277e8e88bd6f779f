// Package mail sends the transactional emails of the gym app: verification
// codes, password reset links and payment receipts.
package mail

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	"net/mail"
	texttemplate "text/template"
	"time"
)

// Message is a rendered email ready for a Sender.
type Message struct {
	To       mail.Address
	Subject  string
	Text     string
	HTML     string
	Template string // template name, for metrics and logs
}

// Sender delivers messages. Implementations must be safe for concurrent use.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

const (
	TemplateOTP     = "otp"
	TemplateReset   = "password_reset"
	TemplateReceipt = "payment_receipt"
)

var (
	otpText = texttemplate.Must(texttemplate.New(TemplateOTP).Parse(
		`Hi {{.Name}},

Your verification code is {{.Code}}. It expires in {{.TTL}}.

If you did not sign up, you can ignore this email.
`))
	otpHTML = htmltemplate.Must(htmltemplate.New(TemplateOTP).Parse(
		`<p>Hi {{.Name}},</p>
<p>Your verification code is <strong>{{.Code}}</strong>. It expires in {{.TTL}}.</p>
<p>If you did not sign up, you can ignore this email.</p>`))

	resetText = texttemplate.Must(texttemplate.New(TemplateReset).Parse(
		`Hi {{.Name}},

Someone asked to reset the password of your account. Open the link below to choose a new one:

{{.Link}}

The link works until {{.Until}}. If it was not you, ignore this email.
`))
	resetHTML = htmltemplate.Must(htmltemplate.New(TemplateReset).Parse(
		`<p>Hi {{.Name}},</p>
<p>Someone asked to reset the password of your account. <a href="{{.Link}}">Choose a new password</a>.</p>
<p>The link works until {{.Until}}. If it was not you, ignore this email.</p>`))

	receiptText = texttemplate.Must(texttemplate.New(TemplateReceipt).Parse(
		`Hi {{.Name}},

We received your payment of {{.Amount}} for {{.Plan}}. Your membership is valid until {{.Until}}.
`))
	receiptHTML = htmltemplate.Must(htmltemplate.New(TemplateReceipt).Parse(
		`<p>Hi {{.Name}},</p>
<p>We received your payment of <strong>{{.Amount}}</strong> for {{.Plan}}. Your membership is valid until {{.Until}}.</p>`))
)

func render(msg *Message, text *texttemplate.Template, html *htmltemplate.Template, data any) error {
	var tb, hb bytes.Buffer
	if err := text.Execute(&tb, data); err != nil {
		return fmt.Errorf("rendering %s text: %w", msg.Template, err)
	}
	if err := html.Execute(&hb, data); err != nil {
		return fmt.Errorf("rendering %s html: %w", msg.Template, err)
	}
	msg.Text = tb.String()
	msg.HTML = hb.String()
	return nil
}

// OTPMessage builds the verification code email.
func OTPMessage(to mail.Address, code string, ttl time.Duration) (Message, error) {
	msg := Message{To: to, Subject: "Your verification code", Template: TemplateOTP}
	err := render(&msg, otpText, otpHTML, map[string]any{
		"Name": displayName(to),
		"Code": code,
		"TTL":  ttl.String(),
	})
	return msg, err
}

// ResetMessage builds the password reset email.
func ResetMessage(to mail.Address, link string, until time.Time) (Message, error) {
	msg := Message{To: to, Subject: "Reset your password", Template: TemplateReset}
	err := render(&msg, resetText, resetHTML, map[string]any{
		"Name":  displayName(to),
		"Link":  link,
		"Until": until.UTC().Format(time.RFC1123),
	})
	return msg, err
}

// ReceiptMessage builds the payment confirmation email. amount is in minor units.
func ReceiptMessage(to mail.Address, plan string, amount int64, currency string, until time.Time) (Message, error) {
	msg := Message{To: to, Subject: "Payment received", Template: TemplateReceipt}
	err := render(&msg, receiptText, receiptHTML, map[string]any{
		"Name":   displayName(to),
		"Plan":   plan,
		"Amount": FormatAmount(amount, currency),
		"Until":  until.UTC().Format("2 Jan 2006"),
	})
	return msg, err
}

// FormatAmount renders minor units as "12.50 USD".
func FormatAmount(amount int64, currency string) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, amount/100, amount%100, upper(currency))
}

func displayName(a mail.Address) string {
	if a.Name != "" {
		return a.Name
	}
	return "there"
}

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'a' <= c && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}
