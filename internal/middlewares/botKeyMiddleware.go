package middlewares

import (
	"crypto/subtle"
	"net/http"

	"github.com/rs/zerolog/log"

	"bkmrks/internal/utils"
)

const BotKeyHeader = "X-Bot-Key"

// BotKey guards the bot-only endpoints with a shared key. An empty key disables the check.
func BotKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key != "" && subtle.ConstantTimeCompare([]byte(r.Header.Get(BotKeyHeader)), []byte(key)) != 1 {
				log.Warn().Str("remote", r.RemoteAddr).Msg("Request with invalid bot key")
				utils.SendJSONError(w, utils.ErrForbidden.Error(), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
