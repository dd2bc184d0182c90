package email

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"
)

func TestBuildMessage(t *testing.T) {
	msg := buildMessage("noreply@aid.rw", "Community Aid", "user@example.com", "Subject", "body")
	if !strings.Contains(msg, "From: Community Aid <noreply@aid.rw>\r\n") {
		t.Fatalf("unexpected from header: %q", msg)
	}
	if !strings.HasSuffix(msg, "\r\n\r\nbody") {
		t.Fatalf("expected body after blank line: %q", msg)
	}

	plain := buildMessage("noreply@aid.rw", "", "user@example.com", "Subject", "body")
	if !strings.Contains(plain, "From: noreply@aid.rw\r\n") {
		t.Fatalf("unexpected plain from header: %q", plain)
	}
}

func TestBuildMessage_EachNotification(t *testing.T) {
	exp := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	cases := []struct {
		name string
		msg  message
		want string
	}{
		{"verification", verificationMessage("https://aid.example/verify?token=abc"), "https://aid.example/verify?token=abc"},
		{"password reset", passwordResetMessage("https://aid.example/reset?token=def", exp), "It expires at 2026-01-02T03:04:05Z UTC."},
		{"login otp", loginOTPMessage("482913", exp), "Your login code is 482913."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw := buildMessage("noreply@aid.rw", "Community Aid", "user@example.com", tc.msg.Subject, tc.msg.Text)
			headers, body, ok := strings.Cut(raw, "\r\n\r\n")
			if !ok {
				t.Fatalf("missing header/body separator: %q", raw)
			}
			for _, h := range []string{
				"From: Community Aid <noreply@aid.rw>",
				"To: user@example.com",
				"Subject: " + tc.msg.Subject,
				"MIME-Version: 1.0",
				`Content-Type: text/plain; charset="UTF-8"`,
			} {
				if !strings.Contains(headers, h) {
					t.Fatalf("missing header %q in %q", h, headers)
				}
			}
			if strings.Contains(headers, "\n\n") || strings.Contains(body, "<p>") {
				t.Fatalf("expected plain text body after headers: %q", raw)
			}
			if body != tc.msg.Text || !strings.Contains(body, tc.want) {
				t.Fatalf("unexpected body %q", body)
			}
		})
	}
}

// smtpCapture atiende una sola sesion SMTP sin TLS ni auth y guarda lo recibido.
type smtpCapture struct {
	ln   net.Listener
	done chan struct{}
	from string
	rcpt string
	data string
}

func startSMTPCapture(t *testing.T) *smtpCapture {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	c := &smtpCapture{ln: ln, done: make(chan struct{})}
	t.Cleanup(func() { _ = ln.Close() })
	go c.serve()
	return c
}

func (c *smtpCapture) port() int {
	return c.ln.Addr().(*net.TCPAddr).Port
}

func (c *smtpCapture) serve() {
	defer close(c.done)
	conn, err := c.ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	r := bufio.NewReader(conn)
	reply := func(line string) { fmt.Fprintf(conn, "%s\r\n", line) }
	reply("220 localhost ESMTP")
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		cmd := strings.TrimRight(line, "\r\n")
		upper := strings.ToUpper(cmd)
		switch {
		case strings.HasPrefix(upper, "EHLO"), strings.HasPrefix(upper, "HELO"):
			reply("250 localhost")
		case strings.HasPrefix(upper, "MAIL FROM:"):
			c.from = cmd[len("MAIL FROM:"):]
			reply("250 OK")
		case strings.HasPrefix(upper, "RCPT TO:"):
			c.rcpt = cmd[len("RCPT TO:"):]
			reply("250 OK")
		case upper == "DATA":
			reply("354 end with <CRLF>.<CRLF>")
			var b strings.Builder
			for {
				l, err := r.ReadString('\n')
				if err != nil {
					return
				}
				if l == ".\r\n" {
					break
				}
				b.WriteString(l)
			}
			c.data = b.String()
			reply("250 OK")
		case upper == "QUIT":
			reply("221 bye")
			return
		default:
			reply("250 OK")
		}
	}
}

func TestSMTPSender_DeliversLoginOTP(t *testing.T) {
	srv := startSMTPCapture(t)
	sender, err := NewSMTPSender("127.0.0.1", srv.port(), "", "", "noreply@aid.rw", "Community Aid", false)
	if err != nil {
		t.Fatalf("new sender: %v", err)
	}

	exp := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	if err := sender.SendLoginOTP(context.Background(), "user@example.com", "482913", exp); err != nil {
		t.Fatalf("send: %v", err)
	}
	select {
	case <-srv.done:
	case <-time.After(5 * time.Second):
		t.Fatalf("smtp session did not finish")
	}

	if srv.from != "<noreply@aid.rw>" || srv.rcpt != "<user@example.com>" {
		t.Fatalf("unexpected envelope: from=%q rcpt=%q", srv.from, srv.rcpt)
	}
	if !strings.Contains(srv.data, "Subject: Your login code\r\n") {
		t.Fatalf("missing subject in %q", srv.data)
	}
	if !strings.Contains(srv.data, "Your login code is 482913.\r\n") {
		t.Fatalf("missing code in %q", srv.data)
	}
}

func TestNewSMTPSender_Validation(t *testing.T) {
	if _, err := NewSMTPSender("", 25, "", "", "noreply@aid.rw", "", false); err == nil {
		t.Fatalf("expected error without host")
	}
	if _, err := NewSMTPSender("smtp.aid.rw", 25, "", "", "", "", false); err == nil {
		t.Fatalf("expected error without from")
	}
	sender, err := NewSMTPSender("smtp.aid.rw", 0, "", "", "noreply@aid.rw", "", false)
	if err != nil {
		t.Fatalf("new sender: %v", err)
	}
	if sender.port != 587 {
		t.Fatalf("expected default port 587, got %d", sender.port)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sender.SendVerificationEmail(ctx, "user@example.com", "https://x"); err == nil {
		t.Fatalf("expected canceled context to stop the send")
	}
}
