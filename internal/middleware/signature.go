package middleware

import (
	"bytes"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/warrantykeeper/warranty-server-go/internal/util"
)

// GatewaySignatureMiddleware authenticates webhook posts from the messaging
// gateway by an HMAC-SHA256 of the raw body.
type GatewaySignatureMiddleware struct {
	secret string
}

func NewGatewaySignatureMiddleware(secret string) *GatewaySignatureMiddleware {
	return &GatewaySignatureMiddleware{secret: secret}
}

func (m *GatewaySignatureMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.secret == "" {
			log.Warn().Msg("gateway signature verification bypassed: GATEWAY_SIGNATURE_SECRET is not configured")
			next.ServeHTTP(w, r)
			return
		}

		signature := r.Header.Get("X-Gateway-Signature")
		if signature == "" {
			log.Warn().Msg("gateway signature middleware: missing signature header")
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Missing signature",
			})
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			log.Error().Err(err).Msg("gateway signature middleware: failed to read body")
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "Failed to read request body",
			})
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		computed := util.HmacSHA256(m.secret, string(body))
		if !util.ConstantTimeEqual(computed, signature) {
			log.Warn().Msg("gateway signature middleware: invalid signature")
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Invalid signature",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}
