package notification

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/k3a/html2text"
	"github.com/loghealer/healthmon/internal/datastore/entities"
)

// Subject builds the notice subject, e.g. "[ALERT] DOWNTIME - orders-api".
func Subject(kind Kind, alertType entities.AlertRuleType, service string) string {
	prefix := "[ALERT]"
	if kind == KindResolution {
		prefix = "[RESOLVED]"
	}
	return fmt.Sprintf("%s %s - %s", prefix, alertType, service)
}

const timeLayout = "2006-01-02 15:04:05 MST"

var bodyTemplates = template.Must(template.New("notification").Funcs(template.FuncMap{
	"when": func(t time.Time) string { return t.UTC().Format(timeLayout) },
}).Parse(`
{{define "alert"}}<html><body>
<h2 style="color:#c0392b">Alert: {{.AlertType}}</h2>
<p><strong>Service:</strong> {{.ServiceName}}</p>
{{if .ServiceURL}}<p><strong>Health endpoint:</strong> {{.ServiceURL}}</p>{{end}}
<p><strong>Triggered at:</strong> {{when .TriggeredAt}}</p>
<p>{{.Message}}</p>
</body></html>{{end}}
{{define "resolution"}}<html><body>
<h2 style="color:#27ae60">Resolved: {{.AlertType}}</h2>
<p><strong>Service:</strong> {{.ServiceName}}</p>
{{if .ServiceURL}}<p><strong>Health endpoint:</strong> {{.ServiceURL}}</p>{{end}}
<p><strong>Triggered at:</strong> {{when .TriggeredAt}}</p>
{{with .ResolvedAt}}<p><strong>Resolved at:</strong> {{when .}}</p>{{end}}
<p>The service has recovered. Original alert:</p>
<p>{{.Message}}</p>
</body></html>{{end}}
`))

// renderBody returns the HTML body and its plaintext rendition.
func renderBody(n *Notification) (htmlBody, textBody string, err error) {
	var buf bytes.Buffer
	if err := bodyTemplates.ExecuteTemplate(&buf, string(n.Kind), n); err != nil {
		return "", "", fmt.Errorf("failed to render %s template: %w", n.Kind, err)
	}
	htmlBody = strings.TrimSpace(buf.String())
	textBody = strings.TrimSpace(html2text.HTML2Text(htmlBody))
	return htmlBody, textBody, nil
}
