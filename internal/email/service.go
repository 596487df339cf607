// Package email sends board notifications over SMTP.
package email

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
)

type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
	// BaseURL prefixes board links, e.g. "https://boards.example.com".
	BaseURL string
}

// SendFunc matches smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type Service struct {
	config Config
	server string
	auth   smtp.Auth
	send   SendFunc
}

func NewService(config Config) *Service {
	var auth smtp.Auth
	if config.Username != "" {
		auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}
	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   auth,
		send:   smtp.SendMail,
	}
}

// WithSender swaps the transport, mostly for tests.
func (s *Service) WithSender(send SendFunc) *Service {
	s.send = send
	return s
}

func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

type Invite struct {
	To          string
	MemberName  string
	InviterName string
	BoardID     string
	BoardTitle  string
}

type inviteData struct {
	MemberName  string
	InviterName string
	BoardTitle  string
	BoardURL    string
}

// SendBoardInvite tells a user they were added to a board.
func (s *Service) SendBoardInvite(invite Invite) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email not configured")
	}
	if strings.TrimSpace(invite.To) == "" {
		return fmt.Errorf("email: missing recipient")
	}
	html, err := renderTemplate(inviteTemplate, inviteData{
		MemberName:  invite.MemberName,
		InviterName: invite.InviterName,
		BoardTitle:  invite.BoardTitle,
		BoardURL:    s.boardURL(invite.BoardID),
	})
	if err != nil {
		return fmt.Errorf("render invite template: %w", err)
	}
	subject := fmt.Sprintf("%s added you to %q", invite.InviterName, invite.BoardTitle)
	return s.send(s.server, s.auth, s.config.From, []string{invite.To}, s.message(invite.To, subject, html))
}

func (s *Service) boardURL(boardID string) string {
	base := strings.TrimRight(s.config.BaseURL, "/")
	return base + "/boards/" + boardID
}

func (s *Service) message(to, subject, htmlBody string) []byte {
	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}
	boundary := "taskboard-boundary"

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n\r\n", boundary)

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	fmt.Fprintf(&msg, "%s\r\n\r\n", subject)

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n\r\n")
	fmt.Fprintf(&msg, "%s\r\n\r\n", htmlBody)
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)
	return msg.Bytes()
}

func renderTemplate(tmpl string, data any) (string, error) {
	t, err := template.New("email").Parse(tmpl)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const inviteTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.BoardTitle}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .button { display: inline-block; padding: 12px 24px; background: #0066cc; color: white; text-decoration: none; border-radius: 4px; margin: 20px 0; }
        .link { word-break: break-all; color: #0066cc; }
    </style>
</head>
<body>
    <p>Hi {{.MemberName}},</p>
    <p>{{.InviterName}} added you to the board <strong>{{.BoardTitle}}</strong>.</p>
    <p><a href="{{.BoardURL}}" class="button">Open board</a></p>
    <p class="link">{{.BoardURL}}</p>
</body>
</html>`
