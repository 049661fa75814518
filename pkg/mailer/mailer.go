package mailer

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/rs/zerolog"
)

// Mailer is the outbound email collaborator. Delivery mechanics live behind
// this interface; the server only decides when a message should go out.
type Mailer interface {
	SendVerification(ctx context.Context, to, name, verifyURL string) error
	SendContactNotification(ctx context.Context, from, name, phone, packInterest, message string) error
}

// GenerateVerificationToken returns a random hex token for email verification links.
func GenerateVerificationToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// VerificationURL builds the link embedded in the verification email.
func VerificationURL(baseURL, token string) string {
	return fmt.Sprintf("%s/verify-email?token=%s", baseURL, token)
}

// LogMailer writes messages to the log instead of delivering them.
// Used in development and tests.
type LogMailer struct {
	Log zerolog.Logger
}

func NewLogMailer(log zerolog.Logger) *LogMailer {
	return &LogMailer{Log: log}
}

func (m *LogMailer) SendVerification(ctx context.Context, to, name, verifyURL string) error {
	m.Log.Info().
		Str("to", to).
		Str("name", name).
		Str("url", verifyURL).
		Msg("verification email")
	return nil
}

func (m *LogMailer) SendContactNotification(ctx context.Context, from, name, phone, packInterest, message string) error {
	m.Log.Info().
		Str("from", from).
		Str("name", name).
		Str("phone", phone).
		Str("pack", packInterest).
		Str("message", message).
		Msg("contact form submission")
	return nil
}
