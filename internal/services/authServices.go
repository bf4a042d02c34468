package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/sessions"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/markbates/goth/providers/facebook"
	"github.com/markbates/goth/providers/google"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"bkmrks/internal/models"
	"bkmrks/internal/repositories"
	"bkmrks/internal/utils"
)

const MaxAge = 86400 * 30

type OAuthConfig struct {
	GoogleClientID       string
	GoogleClientSecret   string
	FacebookClientID     string
	FacebookClientSecret string
	CallbackBase         string
	SessionKey           string
	SecureCookies        bool
}

type AuthService interface {
	HandleLogin(ctx context.Context, u goth.User) (string, error)
}

type authService struct {
	userRepo repositories.UserRepository
	token    TokenConfig
}

func NewAuthService(userRepo repositories.UserRepository, token TokenConfig) AuthService {
	return &authService{userRepo: userRepo, token: token}
}

// InitializeGoth registers the providers that have credentials configured and
// returns their names.
func InitializeGoth(cfg OAuthConfig) []string {
	store := sessions.NewCookieStore([]byte(cfg.SessionKey))
	store.MaxAge(MaxAge)

	store.Options.Path = "/"
	store.Options.HttpOnly = true
	store.Options.Secure = cfg.SecureCookies
	store.Options.SameSite = http.SameSiteLaxMode

	gothic.Store = store

	base := strings.TrimRight(cfg.CallbackBase, "/")
	var providers []goth.Provider
	if cfg.GoogleClientID != "" {
		providers = append(providers, google.New(cfg.GoogleClientID, cfg.GoogleClientSecret, base+"/api/v1/auth/google/callback/", "email", "profile"))
	}
	if cfg.FacebookClientID != "" {
		providers = append(providers, facebook.New(cfg.FacebookClientID, cfg.FacebookClientSecret, base+"/api/v1/auth/facebook/callback/", "email"))
	}
	goth.UseProviders(providers...)

	names := make([]string, 0, len(providers))
	for _, p := range providers {
		names = append(names, p.Name())
	}
	log.Info().Strs("providers", names).Msg("Goth providers initialized")
	return names
}

func (a *authService) HandleLogin(ctx context.Context, u goth.User) (string, error) {
	log.Info().Str("email", u.Email).Str("provider", u.Provider).Msg("Attempting to handle login for user")
	if u.Email == "" {
		log.Error().Msg("Missing email in Goth user data")
		return "", errors.New("missing email in provider profile")
	}

	user, err := a.userRepo.FindByEmail(ctx, u.Email)
	switch {
	case errors.Is(err, utils.ErrNotFound):
		log.Info().Str("email", u.Email).Msg("User not found, creating new user")
		if user, err = a.createFromProvider(ctx, u); err != nil {
			log.Error().Err(err).Str("email", u.Email).Msg("Error creating new user")
			return "", err
		}
		log.Info().Str("email", u.Email).Str("userID", user.ID.Hex()).Msg("New user created successfully")
	case err != nil:
		log.Error().Err(err).Str("email", u.Email).Msg("Error finding user by email")
		return "", err
	default:
		log.Info().Str("email", u.Email).Str("userID", user.ID.Hex()).Msg("User found in database")
	}

	token, err := utils.GenerateJWT(user.ID, a.token.Secret, a.token.TTL)
	if err != nil {
		log.Error().Err(err).Str("userID", user.ID.Hex()).Msg("Error generating JWT for user")
		return "", fmt.Errorf("error generating JWT: %w", err)
	}
	return token, nil
}

// createFromProvider stores a user for a first social login. The account gets
// an unusable random password and a username derived from the profile.
func (a *authService) createFromProvider(ctx context.Context, u goth.User) (*models.User, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(hex.EncodeToString(secret)), bcryptCost)
	if err != nil {
		return nil, err
	}

	base := u.NickName
	if base == "" {
		base = strings.SplitN(u.Email, "@", 2)[0]
	}
	for attempt := 0; attempt < 5; attempt++ {
		username := base
		if attempt > 0 {
			username = fmt.Sprintf("%s%d", base, attempt)
		}
		user, err := a.userRepo.Create(ctx, &models.User{
			Username:     username,
			Email:        u.Email,
			Password:     string(hashed),
			ProfileImage: u.AvatarURL,
		})
		if errors.Is(err, utils.ErrConflict) {
			continue
		}
		return user, err
	}
	return nil, fmt.Errorf("could not find a free username for %q: %w", base, utils.ErrConflict)
}
