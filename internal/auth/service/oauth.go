package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/moviestream/auth/internal/auth/domain"
	"github.com/moviestream/auth/internal/auth/store"
	"github.com/moviestream/auth/pkg/cryptox"
	"github.com/moviestream/auth/pkg/idx"
	"github.com/moviestream/auth/pkg/slogx"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/yandex"
)

// Identity is what a provider tells us about the signed-in person.
type Identity struct {
	ID        string
	Email     string
	FirstName string
	LastName  string
}

// Provider describes one upstream identity provider: its OAuth2 endpoints
// plus how to fetch and decode the profile. Adding a provider means adding
// a row here, not a new code path.
type Provider struct {
	Name        string
	Config      *oauth2.Config
	UserInfoURL string
	Decode      func([]byte) (Identity, error)
}

// NewGoogleProvider builds the provider entry for Google sign-in.
func NewGoogleProvider(clientID, clientSecret, redirectURL string) *Provider {
	return &Provider{
		Name: "google",
		Config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		UserInfoURL: "https://openidconnect.googleapis.com/v1/userinfo",
		Decode: func(body []byte) (Identity, error) {
			var payload struct {
				Sub        string `json:"sub"`
				Email      string `json:"email"`
				GivenName  string `json:"given_name"`
				FamilyName string `json:"family_name"`
			}
			if err := json.Unmarshal(body, &payload); err != nil {
				return Identity{}, err
			}
			return Identity{
				ID:        payload.Sub,
				Email:     payload.Email,
				FirstName: payload.GivenName,
				LastName:  payload.FamilyName,
			}, nil
		},
	}
}

// NewYandexProvider builds the provider entry for Yandex sign-in.
func NewYandexProvider(clientID, clientSecret, redirectURL string) *Provider {
	return &Provider{
		Name: "yandex",
		Config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     yandex.Endpoint,
		},
		UserInfoURL: "https://login.yandex.ru/info?format=json",
		Decode: func(body []byte) (Identity, error) {
			var payload struct {
				ID           string `json:"id"`
				DefaultEmail string `json:"default_email"`
				FirstName    string `json:"first_name"`
				LastName     string `json:"last_name"`
			}
			if err := json.Unmarshal(body, &payload); err != nil {
				return Identity{}, err
			}
			return Identity{
				ID:        payload.ID,
				Email:     payload.DefaultEmail,
				FirstName: payload.FirstName,
				LastName:  payload.LastName,
			}, nil
		},
	}
}

// OAuthService signs users in through upstream identity providers. A
// federated identity seen before maps to its existing local user; a new
// identity whose email already has a local account attaches to that
// account instead of failing.
type OAuthService struct {
	Store     store.Store
	Tokens    *TokenService
	Providers map[string]*Provider

	// HTTPClient is used for the code exchange and the userinfo fetch.
	// Tests point it at a stub server.
	HTTPClient *http.Client
}

func (s *OAuthService) provider(name string) (*Provider, error) {
	p, ok := s.Providers[name]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

// AuthURL returns the provider's consent page URL for a redirect.
func (s *OAuthService) AuthURL(providerName, state string) (string, error) {
	p, err := s.provider(providerName)
	if err != nil {
		return "", err
	}
	return p.Config.AuthCodeURL(state, oauth2.AccessTypeOnline), nil
}

// SignIn exchanges the authorization code, resolves the federated identity
// to a local user (creating or attaching as needed) and issues a token
// pair.
func (s *OAuthService) SignIn(ctx context.Context, providerName, code, source string) (domain.TokenPair, error) {
	l := slogx.FromContext(ctx)

	p, err := s.provider(providerName)
	if err != nil {
		return domain.TokenPair{}, err
	}

	identity, err := s.fetchIdentity(ctx, p, code)
	if err != nil {
		l.Warn("identity provider exchange failed",
			slog.String("provider", providerName),
			slogx.Error(err),
		)
		return domain.TokenPair{}, ErrProviderUnavailable
	}

	userID, err := s.resolveUser(ctx, p.Name, identity)
	if err != nil {
		return domain.TokenPair{}, err
	}

	if err := s.Store.LoginHistory().Append(ctx, domain.LoginHistory{
		ID:        idx.New().String(),
		UserID:    userID,
		Source:    source,
		LoginTime: time.Now().UTC(),
	}); err != nil {
		return domain.TokenPair{}, err
	}

	return s.Tokens.IssueFor(ctx, userID)
}

func (s *OAuthService) fetchIdentity(ctx context.Context, p *Provider, code string) (Identity, error) {
	if s.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, s.HTTPClient)
	}

	token, err := p.Config.Exchange(ctx, code)
	if err != nil {
		return Identity{}, err
	}

	client := p.Config.Client(ctx, token)
	resp, err := client.Get(p.UserInfoURL)
	if err != nil {
		return Identity{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Identity{}, fmt.Errorf("userinfo returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Identity{}, err
	}

	identity, err := p.Decode(body)
	if err != nil {
		return Identity{}, err
	}
	if identity.ID == "" || identity.Email == "" {
		return Identity{}, errors.New("provider returned incomplete identity")
	}
	return identity, nil
}

// resolveUser maps a federated identity to a local user id. Known
// (provider, id) pairs short-circuit; otherwise the identity either
// attaches to the local account with the same email or becomes a new
// account with a generated password.
func (s *OAuthService) resolveUser(ctx context.Context, providerName string, identity Identity) (string, error) {
	l := slogx.FromContext(ctx)

	link, err := s.Store.SocialAccounts().GetByProvider(ctx, providerName, identity.ID)
	if err == nil {
		return link.UserID, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return "", err
	}

	var userID string
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		user, err := tx.Users().GetUserByEmail(ctx, identity.Email)
		switch {
		case err == nil:
			userID = user.ID
		case errors.Is(err, store.ErrNotFound):
			password, err := cryptox.GeneratePassword()
			if err != nil {
				return err
			}
			hash, err := cryptox.HashPassword(password)
			if err != nil {
				return err
			}
			userID = idx.New().String()
			if err := tx.Users().CreateUser(ctx, domain.User{
				ID:           userID,
				Email:        identity.Email,
				PasswordHash: hash,
				FirstName:    identity.FirstName,
				LastName:     identity.LastName,
			}); err != nil {
				return err
			}
			l.Info("federated user created",
				slog.String("provider", providerName),
				slog.String("user_id", userID),
			)
		default:
			return err
		}

		return tx.SocialAccounts().Create(ctx, domain.SocialAccount{
			ID:         idx.New().String(),
			UserID:     userID,
			SocialID:   identity.ID,
			SocialName: providerName,
		})
	})
	if err != nil {
		return "", err
	}
	return userID, nil
}
