package email

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

// redirectTransport manda las requests del cliente de MailerSend al servidor de test.
type redirectTransport struct {
	target *url.URL
}

func (rt redirectTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.URL.Scheme = rt.target.Scheme
	req.URL.Host = rt.target.Host
	return http.DefaultTransport.RoundTrip(req)
}

type mailersendRequest struct {
	Path   string
	Auth   string
	Method string
	Body   struct {
		From struct {
			Email string `json:"email"`
			Name  string `json:"name"`
		} `json:"from"`
		To []struct {
			Email string `json:"email"`
		} `json:"to"`
		Subject string `json:"subject"`
		Text    string `json:"text"`
		HTML    string `json:"html"`
	}
}

func newMailerSendTestSender(t *testing.T, status int) (*MailerSendSender, *mailersendRequest) {
	t.Helper()
	got := &mailersendRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.Path = r.URL.Path
		got.Auth = r.Header.Get("Authorization")
		got.Method = r.Method
		if err := json.NewDecoder(r.Body).Decode(&got.Body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status >= 300 {
			_, _ = w.Write([]byte(`{"message":"The from.email domain must be verified."}`))
		}
	}))
	t.Cleanup(srv.Close)

	target, _ := url.Parse(srv.URL)
	sender, err := NewMailerSendSender("ms-key", "noreply@aid.rw", "Community Aid")
	if err != nil {
		t.Fatalf("new sender: %v", err)
	}
	sender.client.SetClient(&http.Client{Transport: redirectTransport{target: target}, Timeout: 5 * time.Second})
	return sender, got
}

func TestMailerSendSender_BuildsEmailRequest(t *testing.T) {
	exp := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	cases := []struct {
		name    string
		send    func(*MailerSendSender) error
		subject string
		text    string
	}{
		{
			name: "verification",
			send: func(s *MailerSendSender) error {
				return s.SendVerificationEmail(context.Background(), "user@example.com", "https://aid.example/verify?token=abc")
			},
			subject: "Verify your Community Aid account",
			text:    "https://aid.example/verify?token=abc",
		},
		{
			name: "password reset",
			send: func(s *MailerSendSender) error {
				return s.SendPasswordResetEmail(context.Background(), "user@example.com", "https://aid.example/reset?token=def", exp)
			},
			subject: "Reset your Community Aid password",
			text:    "2026-01-02T03:04:05Z",
		},
		{
			name: "login otp",
			send: func(s *MailerSendSender) error {
				return s.SendLoginOTP(context.Background(), "user@example.com", "482913", exp)
			},
			subject: "Your login code",
			text:    "482913",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sender, got := newMailerSendTestSender(t, http.StatusAccepted)
			if err := tc.send(sender); err != nil {
				t.Fatalf("send: %v", err)
			}
			if got.Method != http.MethodPost || got.Path != "/v1/email" {
				t.Fatalf("unexpected endpoint %s %s", got.Method, got.Path)
			}
			if got.Auth != "Bearer ms-key" {
				t.Fatalf("unexpected auth header %q", got.Auth)
			}
			if got.Body.From.Email != "noreply@aid.rw" || got.Body.From.Name != "Community Aid" {
				t.Fatalf("unexpected from: %+v", got.Body.From)
			}
			if len(got.Body.To) != 1 || got.Body.To[0].Email != "user@example.com" {
				t.Fatalf("unexpected recipients: %+v", got.Body.To)
			}
			if got.Body.Subject != tc.subject {
				t.Fatalf("expected subject %q, got %q", tc.subject, got.Body.Subject)
			}
			if !strings.Contains(got.Body.Text, tc.text) || !strings.Contains(got.Body.HTML, tc.text) {
				t.Fatalf("expected %q in text and html, got %q / %q", tc.text, got.Body.Text, got.Body.HTML)
			}
		})
	}
}

func TestMailerSendSender_APIErrorIsReturned(t *testing.T) {
	sender, _ := newMailerSendTestSender(t, http.StatusUnprocessableEntity)
	if err := sender.SendLoginOTP(context.Background(), "user@example.com", "482913", time.Now()); err == nil {
		t.Fatalf("expected error on 422")
	}
}

func TestNewMailerSendSender_Validation(t *testing.T) {
	if _, err := NewMailerSendSender("", "noreply@aid.rw", ""); err == nil {
		t.Fatalf("expected error without api key")
	}
	if _, err := NewMailerSendSender("key", " ", ""); err == nil {
		t.Fatalf("expected error without from address")
	}
	sender, _ := NewMailerSendSender("key", "noreply@aid.rw", "")
	if err := sender.SendLoginOTP(context.Background(), "", "1", time.Now()); err == nil {
		t.Fatalf("expected error without recipient")
	}
}
