package middlewares

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"bkmrks/internal/utils"
)

// OwnerLookup returns the id of the user owning the record.
type OwnerLookup func(ctx context.Context, id primitive.ObjectID) (primitive.ObjectID, error)

// Ownership rejects requests on records the caller does not own. Lookups are
// registered per resource type.
type Ownership struct {
	lookups map[string]OwnerLookup
}

func NewOwnership() *Ownership {
	return &Ownership{lookups: map[string]OwnerLookup{}}
}

func (o *Ownership) Register(resource string, lookup OwnerLookup) {
	o.lookups[resource] = lookup
}

// OwnerOnly must run after Authenticate. The record id is read from the route variable param.
func (o *Ownership) OwnerOnly(resource, param string) func(http.Handler) http.Handler {
	lookup, ok := o.lookups[resource]
	if !ok {
		panic("ownership: no owner lookup registered for " + resource)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := utils.GetUserIDFromContext(w, r)
			if err != nil {
				return
			}
			id, err := utils.GetObjectIDFromVars(w, r, param)
			if err != nil {
				return
			}

			owner, err := lookup(r.Context(), id)
			switch {
			case errors.Is(err, utils.ErrNotFound):
				utils.SendJSONError(w, "Not found.", http.StatusNotFound)
				return
			case err != nil:
				log.Error().Err(err).Str("resource", resource).Str("id", id.Hex()).Msg("Owner lookup failed")
				utils.SendJSONError(w, "Internal server error", http.StatusInternalServerError)
				return
			case owner != userID:
				log.Warn().Str("resource", resource).Str("id", id.Hex()).Str("userID", userID.Hex()).Msg("Access to another user's record denied")
				utils.SendJSONError(w, utils.ErrForbidden.Error(), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
