package services

import (
	"chat-relay/auth"
	"chat-relay/errors"
	"chat-relay/repositories"
	"fmt"
	"strings"
)

// IAuthService issues the bearer credentials verified at connection time.
type IAuthService interface {
	Login(email, password string) (Token, error)
	Register(username, email, password string) (repositories.User, Token, error)
}

type AuthService struct {
	userRepository repositories.IUserRepository
	tokens         *auth.JWTManager
}

type Token string

func (t Token) String() string {
	return string(t)
}

func NewAuthService(repo repositories.IUserRepository, tokens *auth.JWTManager) IAuthService {
	return &AuthService{userRepository: repo, tokens: tokens}
}

func (s *AuthService) Register(username, email, password string) (repositories.User, Token, error) {
	valReq := auth.RegisterRequest{
		Username: strings.TrimSpace(username),
		Email:    strings.TrimSpace(email),
		Password: password,
	}

	// 1. Validate business rules (email format, password complexity)
	// We check this before any expensive cryptographic operation.
	if err := auth.ValidateRegister(valReq); err != nil {
		return repositories.User{}, "", err
	}

	// 2. Hash the password using Argon2id
	// Done in the service layer to keep the repository unaware of plain passwords.
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return repositories.User{}, "", fmt.Errorf("hashing failed: %w", err)
	}

	// 3. Persist the user with the generated hash
	user, err := s.userRepository.CreateUser(valReq.Username, valReq.Email, hashedPassword, "")
	if err != nil {
		return repositories.User{}, "", err // Will propagate ErrUserAlreadyExists if email is taken
	}

	// 4. Generate the initial session token
	token, err := s.tokens.GenerateToken(string(user.ID), user.Roles)
	if err != nil {
		return repositories.User{}, "", err
	}

	return user, Token(token), nil
}

func (s *AuthService) Login(email, password string) (Token, error) {
	// 1. Retrieve user by email from storage
	user, err := s.userRepository.GetUserByEmail(email)
	if err != nil {
		// Generic error to prevent user enumeration attacks
		return "", errors.ErrInvalidCredentials
	}

	// 2. Compare the provided password with the stored hash
	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		return "", errors.ErrInvalidCredentials
	}

	// 3. Issue the JWT token
	token, err := s.tokens.GenerateToken(string(user.ID), user.Roles)
	if err != nil {
		return "", err
	}

	return Token(token), nil
}
