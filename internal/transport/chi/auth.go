package chi

import (
	"net/http"
	"strings"
)

// openPaths never require a token so probes and scrapers keep working.
var openPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// BearerAuthMiddleware validates Bearer tokens against the configured set.
// An empty set disables authentication entirely.
func BearerAuthMiddleware(tokens []string) func(http.Handler) http.Handler {
	valid := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if t != "" {
			valid[t] = struct{}{}
		}
	}

	return func(next http.Handler) http.Handler {
		if len(valid) == 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := openPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			const bearerPrefix = "Bearer "
			auth := r.Header.Get("Authorization")
			switch {
			case auth == "":
				writeError(w, http.StatusUnauthorized, errorCodeBadRequest, "missing authorization header")
			case !strings.HasPrefix(auth, bearerPrefix):
				writeError(w, http.StatusUnauthorized,
					errorCodeBadRequest, "authorization header must use Bearer scheme")
			default:
				if _, ok := valid[auth[len(bearerPrefix):]]; !ok {
					writeError(w, http.StatusUnauthorized, errorCodeBadRequest, "invalid api token")
					return
				}
				next.ServeHTTP(w, r)
			}
		})
	}
}
