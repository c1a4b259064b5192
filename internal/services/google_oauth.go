package services

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	googleoauth "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"doulitsa/internal/models"
)

// GoogleOAuth implements GoogleProvider with the authorization code flow and
// the userinfo endpoint.
type GoogleOAuth struct {
	config *oauth2.Config
}

func NewGoogleOAuth(clientID, clientSecret, redirectURL string) *GoogleOAuth {
	return &GoogleOAuth{config: &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes: []string{
			googleoauth.OpenIDScope,
			googleoauth.UserinfoEmailScope,
			googleoauth.UserinfoProfileScope,
		},
		Endpoint: google.Endpoint,
	}}
}

func (g *GoogleOAuth) AuthCodeURL(state string) string {
	return g.config.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account"))
}

func (g *GoogleOAuth) Exchange(ctx context.Context, code string) (models.GoogleUser, error) {
	token, err := g.config.Exchange(ctx, code)
	if err != nil {
		return models.GoogleUser{}, fmt.Errorf("google code exchange: %w", err)
	}

	svc, err := googleoauth.NewService(ctx, option.WithTokenSource(g.config.TokenSource(ctx, token)))
	if err != nil {
		return models.GoogleUser{}, err
	}
	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return models.GoogleUser{}, fmt.Errorf("google userinfo: %w", err)
	}

	return models.GoogleUser{
		Sub:           info.Id,
		Email:         info.Email,
		EmailVerified: info.VerifiedEmail != nil && *info.VerifiedEmail,
		Name:          info.Name,
		Picture:       info.Picture,
	}, nil
}
