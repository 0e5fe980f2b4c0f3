package delivery

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
)

// EmailContent is the resolved text of a notification as it goes into an email
type EmailContent struct {
	Title      string
	Message    string
	ActionText string
	ActionURL  string
}

var notificationEmail = template.Must(template.New("notification").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; color: #222;">
  <h2>{{.Title}}</h2>
  <p>{{.Message}}</p>
  {{- if .ActionURL}}
  <p><a href="{{.ActionURL}}" style="display:inline-block;padding:8px 16px;background:#4f46e5;color:#fff;text-decoration:none;border-radius:4px;">{{if .ActionText}}{{.ActionText}}{{else}}Open{{end}}</a></p>
  {{- end}}
</body>
</html>`))

// RenderEmail builds the subject, html and text bodies for a notification email
func RenderEmail(to, tag string, c EmailContent) (EmailMessage, error) {
	var html bytes.Buffer
	if err := notificationEmail.Execute(&html, c); err != nil {
		return EmailMessage{}, fmt.Errorf("render email: %w", err)
	}

	var text strings.Builder
	text.WriteString(c.Message)
	if c.ActionURL != "" {
		text.WriteString("\n\n")
		if c.ActionText != "" {
			text.WriteString(c.ActionText + ": ")
		}
		text.WriteString(c.ActionURL)
	}

	return EmailMessage{
		To:      to,
		Subject: c.Title,
		HTML:    html.String(),
		Text:    text.String(),
		Tag:     tag,
	}, nil
}
