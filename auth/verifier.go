package auth

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/repositories"
	"fmt"
	"log/slog"
	"strings"
)

// Verifier resolves a bearer credential to an identity once per connection.
type Verifier struct {
	tokens *JWTManager
	users  repositories.IUserRepository
	log    *slog.Logger
}

func NewVerifier(tokens *JWTManager, users repositories.IUserRepository, log *slog.Logger) *Verifier {
	return &Verifier{tokens: tokens, users: users, log: log}
}

// VerifyToken checks the signature and expiry, then resolves the subject against the account store.
// Every failure is an authentication error.
func (v *Verifier) VerifyToken(token string) (domain.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Identity{}, errors.ErrMissingToken
	}
	claims, err := v.tokens.ValidateToken(token)
	if err != nil {
		return domain.Identity{}, err
	}
	user, err := v.users.GetUser(domain.UserID(claims.UserID))
	if err != nil {
		if !errors.Is(err, errors.ErrNotFound) {
			v.log.Warn("Unable to resolve token subject", "user_id", claims.UserID, "error", err)
		}
		return domain.Identity{}, fmt.Errorf("%w: %v", errors.ErrUnknownIdentity, err)
	}
	return user.Identity(), nil
}
