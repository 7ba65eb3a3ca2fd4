package notify

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// Legacy Markdown has no escape for a backslash, so it passes through as is.
var markdownEscaper = strings.NewReplacer(
	"_", `\_`,
	"*", `\*`,
	"`", "\\`",
	"[", `\[`,
)

// EscapeMarkdown escapes user-supplied text for Telegram's legacy Markdown.
func EscapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

// FormatAmount renders minor units as "400.00 AED".
func FormatAmount(minor int64, currency string) string {
	return fmt.Sprintf("%d.%02d %s", minor/100, abs(minor%100), strings.ToUpper(currency))
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}

var templateFuncs = template.FuncMap{
	"md":    EscapeMarkdown,
	"money": FormatAmount,
}

// Renderer renders small text templates for outbound notifications.
type Renderer struct{}

// Render compiles the provided template text with strict missing-key semantics.
func (Renderer) Render(name, tmpl string, data any) (string, error) {
	if tmpl == "" {
		return "", fmt.Errorf("notify: template text required")
	}
	t, err := template.New(name).Funcs(templateFuncs).Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("notify: parse template %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("notify: execute template %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

const bookingCreatedTemplate = `*New booking*{{if .Paid}} (paid){{end}}
*Client:* {{md .Client.Name}}
*Phone:* {{md .Client.Phone}}
{{- if .Client.Email}}
*Email:* {{md .Client.Email}}
{{- end}}
*When:* {{md .Datetime}}
*Service:* {{.ServiceID}}{{if .Duration}} ({{.Duration}} min){{end}}
*Record:* {{.RecordID}}
{{- if .Comment}}
*Comment:* {{md .Comment}}
{{- end}}`

const paymentSucceededTemplate = `*Payment received*
*Amount:* {{money .AmountTotal .Currency}}
*Client:* {{md .Client.Name}}
*Phone:* {{md .Client.Phone}}
{{- if .Datetime}}
*When:* {{md .Datetime}}
{{- end}}
{{- if .RecordID}}
*Record:* {{.RecordID}}
{{- end}}
*Session:* {{md .SessionID}}`

const paymentFailedTemplate = `*Payment not completed*
*Reason:* {{md .Reason}}
*Client:* {{md .Client.Name}}
*Phone:* {{md .Client.Phone}}
{{- if .Datetime}}
*When:* {{md .Datetime}}
{{- end}}
*Session:* {{md .SessionID}}`

const bookingFailedTemplate = `*Paid booking could not be scheduled*
*Client:* {{md .Client.Name}}
*Phone:* {{md .Client.Phone}}
{{- if .Datetime}}
*When:* {{md .Datetime}}
{{- end}}
*Session:* {{md .SessionID}}
*Error:* {{md .Error}}`

const confirmationEmailTemplate = `Hi {{.Client.Name}},

Thank you for your payment of {{money .AmountTotal .Currency}}.
{{- if .Datetime}}
Your session is booked for {{.Datetime}}.
{{- end}}
{{- if .RecordID}}
Booking reference: {{.RecordID}}
{{- end}}

See you soon.`
