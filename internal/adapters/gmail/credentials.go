package gmail

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"

	"github.com/mailsift/sender-patterns/internal/core"
)

// OAuthCredentials implements core.CredentialProvider by exchanging an
// account's stored refresh token for a fresh access token.
type OAuthCredentials struct {
	conf   *oauth2.Config
	logger *zap.Logger
}

// NewOAuthCredentials creates a credential provider from the OAuth
// application's client id and secret.
func NewOAuthCredentials(clientID, clientSecret string, logger *zap.Logger) *OAuthCredentials {
	return &OAuthCredentials{
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Scopes:       []string{gmail.GmailReadonlyScope},
			Endpoint:     google.Endpoint,
		},
		logger: logger,
	}
}

// AccessToken returns a valid access token for the account. Missing and
// revoked refresh tokens both map to core.ErrNoCredentials so the caller
// aborts without closing the sender out.
func (p *OAuthCredentials) AccessToken(ctx context.Context, account *core.Account) (string, error) {
	if account.RefreshToken == "" {
		return "", core.ErrNoCredentials
	}

	source := p.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: account.RefreshToken})
	token, err := source.Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			// The provider rejected the refresh token, typically after the
			// user revoked access.
			p.logger.Info("Refresh token rejected by provider",
				zap.String("account_id", account.ID),
				zap.Error(err))
			return "", core.ErrNoCredentials
		}
		return "", fmt.Errorf("failed to refresh access token: %w", err)
	}
	return token.AccessToken, nil
}
