package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

// Purpose selects the email template for a one-time code.
type Purpose string

const (
	PurposeEmailVerification Purpose = "email_verification"
	PurposePasswordReset     Purpose = "password_reset"
)

var codeTemplate = template.Must(template.New("code").Parse(`<html>
  <body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
      <h2 style="color: {{.Accent}}; text-align: center;">{{.Heading}}</h2>
      <p>Hello,</p>
      <p>{{.Intro}}</p>
      <div style="background-color: #f8f9fa; padding: 20px; border-radius: 5px; text-align: center; margin: 20px 0;">
        <h1 style="color: {{.Accent}}; margin: 0; font-size: 36px; letter-spacing: 5px;">{{.Code}}</h1>
      </div>
      <p>This code will expire in {{.Validity}}.</p>
      <p>{{.Disclaimer}}</p>
      <hr style="border: none; border-top: 1px solid #eee; margin: 30px 0;">
      <p style="color: #666; font-size: 12px; text-align: center;">This is an automated message from {{.Product}}. Please do not reply.</p>
    </div>
  </body>
</html>`))

type codeView struct {
	Heading    string
	Intro      string
	Disclaimer string
	Accent     string
	Code       string
	Validity   string
	Product    string
}

// RenderCode returns the subject and HTML body carrying code for purpose.
func RenderCode(purpose Purpose, product, code string, validity time.Duration) (string, string, error) {
	view := codeView{Code: code, Validity: humanize(validity), Product: product}
	var subject string
	switch purpose {
	case PurposeEmailVerification:
		subject = fmt.Sprintf("Verify Your Email - %s", product)
		view.Heading = "Email Verification"
		view.Intro = fmt.Sprintf("Thank you for registering with %s. Please use the following code to verify your email address:", product)
		view.Disclaimer = "If you didn't request this verification, please ignore this email."
		view.Accent = "#007bff"
	case PurposePasswordReset:
		subject = fmt.Sprintf("Password Reset - %s", product)
		view.Heading = "Password Reset"
		view.Intro = fmt.Sprintf("You requested a password reset for your %s account. Please use the following code to reset your password:", product)
		view.Disclaimer = "If you didn't request this password reset, please ignore this email and ensure your account is secure."
		view.Accent = "#dc3545"
	default:
		return "", "", fmt.Errorf("unknown email purpose %q", purpose)
	}

	var buf bytes.Buffer
	if err := codeTemplate.Execute(&buf, view); err != nil {
		return "", "", fmt.Errorf("render %s email: %w", purpose, err)
	}
	return subject, buf.String(), nil
}

func humanize(d time.Duration) string {
	minutes := int(d.Round(time.Minute) / time.Minute)
	if minutes == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", minutes)
}
