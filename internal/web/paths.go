package web

import (
	"net/http"
	"strings"
)

const vaultsIndexPath = "/vaults"

// NormalizePath strips trailing slashes; the root path stays "/".
func NormalizePath(p string) string {
	trimmed := strings.TrimRight(p, "/")
	if trimmed == "" {
		return "/"
	}
	return trimmed
}

// IsVaultsIndexPath reports whether p is the vault listing itself and not a vault detail page.
func IsVaultsIndexPath(p string) bool {
	return NormalizePath(p) == vaultsIndexPath
}

// normalizePaths collapses trailing slashes before routing.
func normalizePaths(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p := NormalizePath(r.URL.Path); p != r.URL.Path {
			r.URL.Path = p
			r.URL.RawPath = ""
		}
		next.ServeHTTP(w, r)
	})
}
