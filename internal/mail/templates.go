package mail

import (
	"bytes"
	"fmt"
	"html/template"
)

var templates = template.Must(template.New("mail").Parse(`
{{define "otp"}}<p>Your verification code is <strong>{{.Code}}</strong>.</p><p>It expires in {{.Minutes}} minutes. If you did not request it, ignore this email.</p>{{end}}
{{define "confirm"}}<p>Please confirm your newsletter subscription:</p><p><a href="{{.URL}}">Confirm subscription</a></p>{{end}}
{{define "contact"}}<p>New contact form message from <strong>{{.Name}}</strong> &lt;{{.Email}}&gt;</p><p><em>{{.Subject}}</em></p><p>{{.Message}}</p>{{end}}
{{define "campaign"}}{{.Body}}<hr><p style="font-size:12px"><a href="{{.UnsubscribeURL}}">Unsubscribe</a></p>{{end}}
{{define "digest"}}<h2>Weekly summary</h2><ul><li>Page views: {{.Views}}</li><li>Unique visitors: {{.Visitors}}</li><li>New comments: {{.Comments}}</li><li>New subscribers: {{.Subscribers}}</li><li>Contact messages: {{.Contacts}}</li></ul>{{end}}
`))

// Render executes a named email template
func Render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

// RenderTrusted executes a template where Body is already trusted HTML
func RenderTrusted(name, body string, data map[string]any) (string, error) {
	if data == nil {
		data = map[string]any{}
	}
	data["Body"] = template.HTML(body)
	return Render(name, data)
}
