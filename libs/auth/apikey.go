package auth

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// AdminKey guards operational endpoints (data import, model training) with a
// single shared key. The key itself is never stored; services are configured
// with its bcrypt hash so a leaked environment dump does not leak the key.
type AdminKey struct {
	hash []byte
}

func NewAdminKey(bcryptHash string) *AdminKey {
	hash := strings.TrimSpace(bcryptHash)
	if hash == "" {
		return &AdminKey{}
	}
	return &AdminKey{hash: []byte(hash)}
}

// Configured reports whether a key hash was supplied.
func (a *AdminKey) Configured() bool {
	return len(a.hash) > 0
}

func (a *AdminKey) Verify(key string) bool {
	if !a.Configured() {
		return false
	}
	return bcrypt.CompareHashAndPassword(a.hash, []byte(key)) == nil
}

// HashKey produces a bcrypt hash suitable for ADMIN_API_KEY_HASH.
func HashKey(key string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// Middleware rejects requests that do not carry the admin key as a bearer
// token. When no hash is configured the endpoints are open, which is the
// local-development default.
func (a *AdminKey) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Configured() {
			next.ServeHTTP(w, r)
			return
		}
		token := bearerToken(r)
		if token == "" || !a.Verify(token) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
