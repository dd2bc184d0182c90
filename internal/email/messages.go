package email

import (
	"fmt"
	"time"
)

type message struct {
	Subject string
	Text    string
	HTML    string
}

func verificationMessage(verifyURL string) message {
	return message{
		Subject: "Verify your Community Aid account",
		Text:    fmt.Sprintf("Please verify your email by opening this link:\n%s\n", verifyURL),
		HTML: fmt.Sprintf(`<h2>Welcome to Community Aid</h2>
<p>Please verify your email address by clicking the link below:</p>
<p><a href="%s">Verify email</a></p>
<p>If you did not create an account, ignore this email.</p>`, verifyURL),
	}
}

func passwordResetMessage(resetURL string, expiresAt time.Time) message {
	expires := expiresAt.UTC().Format(time.RFC3339)
	return message{
		Subject: "Reset your Community Aid password",
		Text:    fmt.Sprintf("Use this link to choose a new password:\n%s\nIt expires at %s UTC.\n", resetURL, expires),
		HTML: fmt.Sprintf(`<p>Use the link below to choose a new password:</p>
<p><a href="%s">Reset password</a></p>
<p>It expires at %s UTC. If you did not ask for a reset, ignore this email.</p>`, resetURL, expires),
	}
}

func loginOTPMessage(code string, expiresAt time.Time) message {
	expires := expiresAt.UTC().Format(time.RFC3339)
	return message{
		Subject: "Your login code",
		Text:    fmt.Sprintf("Your login code is %s.\nIt expires at %s UTC.\n", code, expires),
		HTML: fmt.Sprintf(`<p>Your login code is <strong style="font-size: 24px;">%s</strong></p>
<p>It expires at %s UTC.</p>`, code, expires),
	}
}
