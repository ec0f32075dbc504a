package httpmiddleware

import (
	"net/http"
	"strings"
)

// CORSConfig configures cross-origin access for the renderer.
type CORSConfig struct {
	// AllowOrigins lists the origins the renderer may be served from.
	// Empty or a single "*" allows any origin.
	AllowOrigins []string
	// AllowCredentials exposes the response to credentialed requests.
	// Incompatible with the wildcard origin; the specific origin is
	// echoed instead.
	AllowCredentials bool
}

// CORS returns a middleware handling cross-origin requests from the
// rendering layer, including OPTIONS preflights.
func CORS(cfg CORSConfig) Middleware {
	allowAll := len(cfg.AllowOrigins) == 0
	allowed := make(map[string]struct{}, len(cfg.AllowOrigins))
	for _, o := range cfg.AllowOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[strings.ToLower(o)] = struct{}{}
	}
	if cfg.AllowCredentials {
		allowAll = false
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			allowOrigin := ""
			switch {
			case allowAll:
				allowOrigin = "*"
			default:
				if _, ok := allowed[strings.ToLower(origin)]; ok {
					allowOrigin = origin
				}
			}

			w.Header().Add("Vary", "Origin")
			if allowOrigin != "" {
				w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
				if cfg.AllowCredentials {
					w.Header().Set("Access-Control-Allow-Credentials", "true")
				}
			}

			if r.Method == http.MethodOptions {
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				if rh := r.Header.Get("Access-Control-Request-Headers"); rh != "" {
					w.Header().Set("Access-Control-Allow-Headers", rh)
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
