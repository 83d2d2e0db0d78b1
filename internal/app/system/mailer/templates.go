// internal/app/system/mailer/templates.go
package mailer

import (
	"bytes"
	"fmt"
	"html/template"
)

// LinkEmailData fills the single-action templates (verify, reset).
type LinkEmailData struct {
	SiteName  string
	Link      string
	ExpiresIn string // e.g. "1 hour"
}

// BuildVerificationEmail asks the recipient to confirm their address.
func BuildVerificationEmail(data LinkEmailData) Email {
	return Email{
		Subject:  fmt.Sprintf("Confirm your %s email address", data.SiteName),
		TextBody: linkText(data, "Confirm your email address by opening this link:", "If you did not create an account, you can ignore this email."),
		HTMLBody: linkHTML(data, "Confirm your email address", "Confirm email", "If you did not create an account, you can ignore this email."),
	}
}

// BuildPasswordResetEmail sends a one-time reset link.
func BuildPasswordResetEmail(data LinkEmailData) Email {
	return Email{
		Subject:  fmt.Sprintf("Reset your %s password", data.SiteName),
		TextBody: linkText(data, "Reset your password by opening this link:", "If you did not ask for a reset, your password is unchanged."),
		HTMLBody: linkHTML(data, "Reset your password", "Choose a new password", "If you did not ask for a reset, your password is unchanged."),
	}
}

func linkText(data LinkEmailData, lead, footer string) string {
	var buf bytes.Buffer
	buf.WriteString(lead + "\n\n")
	buf.WriteString(data.Link + "\n\n")
	if data.ExpiresIn != "" {
		buf.WriteString(fmt.Sprintf("This link expires in %s.\n\n", data.ExpiresIn))
	}
	buf.WriteString(footer + "\n")
	return buf.String()
}

var linkTmpl = template.Must(template.New("link").Parse(linkHTMLTemplate))

func linkHTML(data LinkEmailData, heading, button, footer string) string {
	var buf bytes.Buffer
	_ = linkTmpl.Execute(&buf, struct {
		LinkEmailData
		Heading string
		Button  string
		Footer  string
	}{data, heading, button, footer})
	return buf.String()
}

const linkHTMLTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>{{.Heading}}</title>
</head>
<body style="margin: 0; padding: 0; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Arial, sans-serif; background-color: #f3f4f6;">
  <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="background-color: #f3f4f6;">
    <tr>
      <td align="center" style="padding: 40px 20px;">
        <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="max-width: 480px; background-color: #ffffff; border-radius: 8px;">
          <tr>
            <td style="padding: 32px 32px 24px; text-align: center; border-bottom: 1px solid #e5e7eb;">
              <h1 style="margin: 0; font-size: 22px; font-weight: 600; color: #1d4ed8;">{{.SiteName}}</h1>
            </td>
          </tr>
          <tr>
            <td style="padding: 32px; text-align: center;">
              <p style="margin: 0 0 24px; font-size: 16px; color: #374151;">{{.Heading}}</p>
              <a href="{{.Link}}" style="display: inline-block; padding: 12px 24px; background-color: #1d4ed8; color: #ffffff; text-decoration: none; border-radius: 6px; font-weight: 600;">{{.Button}}</a>
              {{if .ExpiresIn}}<p style="margin: 24px 0 0; font-size: 13px; color: #6b7280;">This link expires in {{.ExpiresIn}}.</p>{{end}}
            </td>
          </tr>
          <tr>
            <td style="padding: 16px 32px 32px; font-size: 12px; color: #9ca3af; text-align: center;">{{.Footer}}</td>
          </tr>
        </table>
      </td>
    </tr>
  </table>
</body>
</html>`
