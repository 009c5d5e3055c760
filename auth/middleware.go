package auth

import (
	"errors"
	"net/http"
)

// Require authenticates every request with authn and demands role when it
// is non-empty. Failures are answered with 401 or 403; on success the
// identity is available through IdentityFromContext.
func Require(authn Authenticator, role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := authn.Authenticate(r.Context(), r.Header)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="offlinekit"`)
				http.Error(w, unauthorizedText(err), http.StatusUnauthorized)
				return
			}
			if role != "" && !id.HasRole(role) {
				http.Error(w, ErrForbidden.Error(), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func unauthorizedText(err error) string {
	for _, known := range []error{ErrMissingCredentials, ErrTokenExpired, ErrTokenMalformed} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return ErrInvalidCredentials.Error()
}
