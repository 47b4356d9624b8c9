package mailer

import (
	"bytes"
	"text/template"
)

const verificationSubject = "Verify Your Email Address - NutriPlan"

const verificationHTML = `<html>
	<body>
		<h2>Welcome to NutriPlan!</h2>
		<p>Your verification code is:</p>
		<div style="font-size: 24px; font-weight: bold; letter-spacing: 4px; margin: 20px 0;">{{.Code}}</div>
		<p>Please enter this code in the app to verify your email address.</p>
		<p>This code will expire in 24 hours.</p>
		<p>If you didn't create an account, please ignore this email.</p>
	</body>
</html>`

const verificationText = `Welcome to NutriPlan!

Your verification code is: {{.Code}}

Please enter this code in the app to verify your email address.

This code will expire in 24 hours.

If you didn't create an account, please ignore this email.`

const resetSubject = "Password Reset Request - NutriPlan"

const resetHTML = `<html>
	<body>
		<h2>Password Reset Request</h2>
		<p>You requested a password reset for your NutriPlan account.</p>
		<p>Your reset code is:</p>
		<div style="font-size: 24px; font-weight: bold; letter-spacing: 4px; margin: 20px 0;">{{.Code}}</div>
		<p>Please enter this code in the app to reset your password.</p>
		<p>This code will expire in 24 hours.</p>
		<p>If you didn't request a password reset, please ignore this email.</p>
	</body>
</html>`

const resetText = `Password Reset Request

You requested a password reset for your NutriPlan account.

Your reset code is: {{.Code}}

Please enter this code in the app to reset your password.

This code will expire in 24 hours.

If you didn't request a password reset, please ignore this email.`

var (
	verificationHTMLTmpl = template.Must(template.New("verification_html").Parse(verificationHTML))
	verificationTextTmpl = template.Must(template.New("verification_text").Parse(verificationText))
	resetHTMLTmpl        = template.Must(template.New("reset_html").Parse(resetHTML))
	resetTextTmpl        = template.Must(template.New("reset_text").Parse(resetText))
)

type codePayload struct {
	Code string
}

// VerificationMessage composes the email-verification message for a code.
func VerificationMessage(to, code string) Message {
	return Message{
		To:       to,
		Subject:  verificationSubject,
		HTMLBody: render(verificationHTMLTmpl, codePayload{Code: code}),
		TextBody: render(verificationTextTmpl, codePayload{Code: code}),
	}
}

// ResetMessage composes the password-reset message for a code.
func ResetMessage(to, code string) Message {
	return Message{
		To:       to,
		Subject:  resetSubject,
		HTMLBody: render(resetHTMLTmpl, codePayload{Code: code}),
		TextBody: render(resetTextTmpl, codePayload{Code: code}),
	}
}

func render(tmpl *template.Template, data any) string {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return ""
	}
	return buf.String()
}
