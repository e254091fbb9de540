package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/Suyash-Gaurav/gaas-system/internal/domain/auth"
)

// UploadKeyAuth authorizes policy uploads against a stored Argon2id key hash.
type UploadKeyAuth struct {
	keyHash string
	logger  *slog.Logger
}

// NewUploadKeyAuth creates an UploadKeyAuth for the given hash.
// Returns nil when keyHash is empty, which disables upload authentication.
func NewUploadKeyAuth(keyHash string, logger *slog.Logger) *UploadKeyAuth {
	if keyHash == "" {
		return nil
	}
	return &UploadKeyAuth{keyHash: keyHash, logger: logger}
}

// Authorize checks the request's Bearer token against the stored hash.
func (a *UploadKeyAuth) Authorize(r *http.Request) bool {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return false
	}
	rawKey := strings.TrimPrefix(header, "Bearer ")

	match, err := auth.VerifyKey(rawKey, a.keyHash)
	if err != nil {
		a.logger.Warn("upload key verification failed", "error", err)
		return false
	}
	return match
}
