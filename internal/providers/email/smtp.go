package email

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/smtp"
	"os"
	"path/filepath"
	"strings"
)

//go:embed templates/*.html
var embeddedTemplates embed.FS

type Config struct {
	Host        string
	Port        int
	Username    string
	Password    string
	From        string
	TemplateDir string
}

type SMTPProvider struct {
	cfg Config
}

func NewSMTP(cfg Config) *SMTPProvider {
	return &SMTPProvider{cfg: cfg}
}

func (p *SMTPProvider) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	if len(to) == 0 {
		return errors.New("no recipients")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if p.cfg.Username != "" {
		auth = smtp.PlainAuth("", p.cfg.Username, p.cfg.Password, p.cfg.Host)
	}
	addr := fmt.Sprintf("%s:%d", p.cfg.Host, p.cfg.Port)

	mime := "MIME-version: 1.0;\r\nContent-Type: text/html; charset=\"UTF-8\";\r\n"
	msg := []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n%s\r\n%s",
		p.cfg.From, strings.Join(to, ", "), subject, mime, htmlBody))

	return smtp.SendMail(addr, auth, p.cfg.From, to, msg)
}

func (p *SMTPProvider) SendTemplate(ctx context.Context, to []string, templateName string, data map[string]any) error {
	body, err := Render(p.cfg.TemplateDir, templateName, data)
	if err != nil {
		return err
	}
	return p.Send(ctx, to, Subject(templateName, data), body)
}

// Render executes a template from dir when it exists there, otherwise from
// the templates compiled into the binary.
func Render(dir, templateName string, data map[string]any) (string, error) {
	var (
		t   *template.Template
		err error
	)
	file := templateName + ".html"
	if dir != "" {
		if _, statErr := os.Stat(filepath.Join(dir, file)); statErr == nil {
			t, err = template.ParseFiles(filepath.Join(dir, file))
		}
	}
	if t == nil && err == nil {
		t, err = template.ParseFS(embeddedTemplates, "templates/"+file)
	}
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var body bytes.Buffer
	if err := t.Execute(&body, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return body.String(), nil
}

// Subject picks the subject line: data["subject"] wins, then a per-template default.
func Subject(templateName string, data map[string]any) string {
	if subj, ok := data["subject"].(string); ok && subj != "" {
		return subj
	}
	switch templateName {
	case TemplateInviteMember:
		if name, ok := data["scope_name"].(string); ok && name != "" {
			return fmt.Sprintf("You're invited to join %s", name)
		}
		return "You're invited to join a team"
	default:
		return "Notification from Ascend"
	}
}
