package middleware

import (
	"fmt"
	"net/http"
)

// CacheControl returns a middleware that marks GET and HEAD responses as
// cacheable for maxAge seconds. Catalog reads mount it; cart routes never do.
func CacheControl(maxAge int) func(http.Handler) http.Handler {
	value := fmt.Sprintf("public, max-age=%d", maxAge)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead {
				w.Header().Set("Cache-Control", value)
			}
			next.ServeHTTP(w, r)
		})
	}
}
