package email

import (
	"net/smtp"
	"strings"
	"testing"
)

func TestServiceIsConfigured(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		expected bool
	}{
		{name: "empty config", config: Config{}, expected: false},
		{name: "missing host", config: Config{Port: "587", From: "boards@example.com"}, expected: false},
		{name: "missing port", config: Config{Host: "smtp.example.com", From: "boards@example.com"}, expected: false},
		{name: "missing from", config: Config{Host: "smtp.example.com", Port: "587"}, expected: false},
		{name: "fully configured", config: Config{Host: "smtp.example.com", Port: "587", From: "boards@example.com"}, expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewService(tt.config).IsConfigured(); got != tt.expected {
				t.Errorf("IsConfigured() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestSendBoardInvite(t *testing.T) {
	var (
		gotAddr string
		gotTo   []string
		gotMsg  string
	)
	svc := NewService(Config{
		Host:     "smtp.example.com",
		Port:     "587",
		From:     "boards@example.com",
		FromName: "Taskboard",
		BaseURL:  "https://boards.example.com/",
	}).WithSender(func(addr string, _ smtp.Auth, _ string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		return nil
	})

	err := svc.SendBoardInvite(Invite{
		To:          "blake@example.com",
		MemberName:  "Blake",
		InviterName: "Avery",
		BoardID:     "brd_1",
		BoardTitle:  "Launch <plan>",
	})
	if err != nil {
		t.Fatalf("SendBoardInvite: %v", err)
	}
	if gotAddr != "smtp.example.com:587" {
		t.Errorf("addr = %q", gotAddr)
	}
	if len(gotTo) != 1 || gotTo[0] != "blake@example.com" {
		t.Errorf("to = %v", gotTo)
	}
	for _, want := range []string{
		"From: Taskboard <boards@example.com>",
		"https://boards.example.com/boards/brd_1",
		"Launch &lt;plan&gt;",
		"Hi Blake,",
	} {
		if !strings.Contains(gotMsg, want) {
			t.Errorf("message missing %q", want)
		}
	}
}

func TestSendBoardInviteRequiresConfig(t *testing.T) {
	called := false
	svc := NewService(Config{}).WithSender(func(string, smtp.Auth, string, []string, []byte) error {
		called = true
		return nil
	})
	if err := svc.SendBoardInvite(Invite{To: "blake@example.com"}); err == nil {
		t.Fatal("expected an error when SMTP is not configured")
	}
	if called {
		t.Fatal("sender must not be called")
	}
}
