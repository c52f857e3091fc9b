package notifications

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/bissquit/healthboard/internal/domain"
	"github.com/bissquit/healthboard/internal/health"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

const statusChangeTemplate = "mattermost_status_change.tmpl"

// Renderer renders notifications from embedded templates.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	funcMap := template.FuncMap{
		"statusEmoji":    statusEmoji,
		"serviceMessage": health.ServiceMessage,
		"formatTime":     formatTime,
	}

	tmpl, err := template.New("notifications").Funcs(funcMap).ParseFS(templatesFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// RenderStatusChange renders the subject and body for a status change.
func (r *Renderer) RenderStatusChange(p StatusChangePayload) (subject, body string, err error) {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, statusChangeTemplate, p); err != nil {
		return "", "", fmt.Errorf("execute template %s: %w", statusChangeTemplate, err)
	}
	return renderSubject(p), strings.TrimSpace(buf.String()), nil
}

func renderSubject(p StatusChangePayload) string {
	prefix := "Degraded"
	switch {
	case p.Recovered():
		prefix = "Recovered"
	case !p.Escalated():
		prefix = "Improving"
	}
	return fmt.Sprintf("[%s] %s", prefix, p.ServiceName)
}

func formatTime(t time.Time) string {
	return t.UTC().Format("Jan 2, 2006 15:04 UTC")
}

func statusEmoji(level domain.StatusLevel) string {
	switch level {
	case domain.StatusGreen:
		return "🟢"
	case domain.StatusYellow:
		return "🟡"
	case domain.StatusOrange:
		return "🟠"
	case domain.StatusRed:
		return "🔴"
	default:
		return "⚪"
	}
}
