package v1

import (
	"github.com/ugokukun/controller/interface/http/auth"
	"net/http"
)

type AuthenticationCheckPayload struct {
	Authenticated bool   `json:"authenticated"`
	Identity      string `json:"identity,omitempty"`
}

func authenticationCheck(w http.ResponseWriter, r *http.Request) {
	var identity string
	var ok bool

	identityRaw := r.Context().Value(auth.UserIdentityContextKey)
	if identityRaw != nil {
		identity, ok = identityRaw.(string)
		if !ok {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
	}

	writeJSON(w, AuthenticationCheckPayload{
		Authenticated: len(identity) > 0,
		Identity:      identity,
	})
}
