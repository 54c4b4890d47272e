package auth

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type contextKey string

const IdentityKey contextKey = "identity"

// TokenFromRequest reads the credential from the "token" query parameter,
// falling back to the standard "Authorization: Bearer <token>" header.
// Browsers cannot set headers on a websocket handshake, hence the query form.
func TokenFromRequest(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// Authenticate rejects the request with 401 before the handler runs when the
// credential cannot be verified. The resolved identity is stored in the gin context.
func Authenticate(verifier contract.IdentityVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := verifier.VerifyToken(TokenFromRequest(c.Request))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": errors.ToEventMessage(err),
				"kind":  errors.Kind(err),
			})
			return
		}
		c.Set(string(IdentityKey), identity)
		c.Next()
	}
}

// IdentityFrom returns the identity stored by Authenticate.
func IdentityFrom(c *gin.Context) (domain.Identity, bool) {
	v, ok := c.Get(string(IdentityKey))
	if !ok {
		return domain.Identity{}, false
	}
	identity, ok := v.(domain.Identity)
	return identity, ok
}
