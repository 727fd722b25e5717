package secrets

import (
	"context"
	"errors"
	"log"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	// “Service” groups the app's secrets in the OS keychain.
	KeyringService = "internship-digest"
)

// Webhook resolves the webhook URL on every call: the keychain entry first,
// then the environment variable. Nothing is cached between calls.
type Webhook struct {
	KeyringAccount string
	EnvVar         string

	// Getenv defaults to os.Getenv.
	Getenv func(string) string
}

// WebhookURL returns "" with a nil error when no source has a value.
func (w Webhook) WebhookURL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if acct := strings.TrimSpace(w.KeyringAccount); acct != "" {
		v, err := keyring.Get(KeyringService, acct)
		switch {
		case err == nil && strings.TrimSpace(v) != "":
			return strings.TrimSpace(v), nil
		case err != nil && !errors.Is(err, keyring.ErrNotFound):
			// headless hosts often have no secret service; the env var still works
			log.Printf("[secrets] keyring unavailable account=%s err=%v", acct, err)
		}
	}
	if name := strings.TrimSpace(w.EnvVar); name != "" {
		getenv := w.Getenv
		if getenv == nil {
			getenv = os.Getenv
		}
		return strings.TrimSpace(getenv(name)), nil
	}
	return "", nil
}

func SetWebhookURL(keyringAccount string, webhookURL string) error {
	if strings.TrimSpace(keyringAccount) == "" {
		return errors.New("keyring account name is empty")
	}
	if strings.TrimSpace(webhookURL) == "" {
		return errors.New("webhook url is empty")
	}
	return keyring.Set(KeyringService, keyringAccount, strings.TrimSpace(webhookURL))
}

func DeleteWebhookURL(keyringAccount string) error {
	if strings.TrimSpace(keyringAccount) == "" {
		return errors.New("keyring account name is empty")
	}
	return keyring.Delete(KeyringService, keyringAccount)
}
