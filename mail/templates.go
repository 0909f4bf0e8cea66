package mail

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
	"time"
)

type templateData struct {
	Name    string
	Link    string
	Expires string
}

var (
	verificationText = texttemplate.Must(texttemplate.New("verification.txt").Parse(
		`Hi {{.Name}},

Please confirm your email address by opening the link below:

{{.Link}}

The link expires in {{.Expires}}. If you did not create an account, ignore this email.
`))

	verificationHTML = htmltemplate.Must(htmltemplate.New("verification.html").Parse(
		`<p>Hi {{.Name}},</p>
<p>Please confirm your email address by clicking the link below:</p>
<p><a href="{{.Link}}">Verify email</a></p>
<p>The link expires in {{.Expires}}. If you did not create an account, ignore this email.</p>
`))

	resetText = texttemplate.Must(texttemplate.New("reset.txt").Parse(
		`Hi {{.Name}},

We received a request to reset your password. Open the link below to choose a new one:

{{.Link}}

The link expires in {{.Expires}}. If you did not ask for this, you can ignore this email.
`))

	resetHTML = htmltemplate.Must(htmltemplate.New("reset.html").Parse(
		`<p>Hi {{.Name}},</p>
<p>We received a request to reset your password. Click the link below to choose a new one:</p>
<p><a href="{{.Link}}">Reset password</a></p>
<p>The link expires in {{.Expires}}. If you did not ask for this, you can ignore this email.</p>
`))
)

// VerificationMessage renders the email-verification mail.
func VerificationMessage(to, name, link string, ttl time.Duration, locale string) (Message, error) {
	return render(to, "Verify your email address", name, link, ttl, locale, verificationText, verificationHTML)
}

// PasswordResetMessage renders the password-reset mail.
func PasswordResetMessage(to, name, link string, ttl time.Duration, locale string) (Message, error) {
	return render(to, "Reset your password", name, link, ttl, locale, resetText, resetHTML)
}

func render(
	to, subject, name, link string,
	ttl time.Duration,
	locale string,
	text *texttemplate.Template,
	html *htmltemplate.Template,
) (Message, error) {
	data := templateData{Name: name, Link: link, Expires: humanDuration(ttl)}

	var tb, hb bytes.Buffer
	if err := text.Execute(&tb, data); err != nil {
		return Message{}, fmt.Errorf("failed to execute template %s: %w", text.Name(), err)
	}
	if err := html.Execute(&hb, data); err != nil {
		return Message{}, fmt.Errorf("failed to execute template %s: %w", html.Name(), err)
	}

	return Message{
		To:      to,
		Subject: subject,
		Text:    tb.String(),
		HTML:    hb.String(),
		Locale:  locale,
	}, nil
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		h := int(d / time.Hour)
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	case d >= time.Minute && d%time.Minute == 0:
		m := int(d / time.Minute)
		if m == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", m)
	default:
		return d.String()
	}
}
