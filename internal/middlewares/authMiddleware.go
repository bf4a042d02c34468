package middlewares

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"bkmrks/internal/utils"
)

// Authenticator checks the bearer token and stores the caller's id in the request context.
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret []byte) *Authenticator {
	return &Authenticator{secret: secret}
}

func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		if header == "" {
			utils.SendJSONError(w, "Authentication credentials were not provided.", http.StatusUnauthorized)
			return
		}
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			utils.SendJSONError(w, "Invalid token header.", http.StatusUnauthorized)
			return
		}

		claims, err := utils.ParseJWT(strings.TrimSpace(tokenString), a.secret)
		if err != nil {
			log.Debug().Err(err).Str("path", r.URL.Path).Msg("Rejected bearer token")
			utils.SendJSONError(w, "Invalid token.", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(utils.WithUserID(r.Context(), claims.ID)))
	})
}
