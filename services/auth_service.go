//go:generate go run go.uber.org/mock/mockgen -source=auth_service.go -destination=../mocks/mock_auth_service.go -package=mocks
package services

import (
	"chat-relay/auth"
	"chat-relay/domain"
	apperrors "chat-relay/errors"
	"chat-relay/repositories"
)

type IAuthService interface {
	Register(req auth.RegisterRequest) (domain.User, error)
	Login(req auth.LoginRequest) (string, domain.User, error)
}

type AuthService struct {
	users  repositories.IUserRepository
	tokens *auth.TokenManager
}

func NewAuthService(users repositories.IUserRepository, tokens *auth.TokenManager) *AuthService {
	return &AuthService{users: users, tokens: tokens}
}

// Register validates the request, hashes the password and creates the
// account.
func (s *AuthService) Register(req auth.RegisterRequest) (domain.User, error) {
	if err := auth.ValidateRegister(req); err != nil {
		return domain.User{}, err
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return domain.User{}, err
	}
	return s.users.CreateUser(req.Email, req.Name, hash)
}

// Login checks the credentials and issues a signed token. A missing account
// and a wrong password are indistinguishable to the caller.
func (s *AuthService) Login(req auth.LoginRequest) (string, domain.User, error) {
	if err := auth.ValidateLogin(req); err != nil {
		return "", domain.User{}, err
	}

	user, hash, err := s.users.GetUserByEmail(req.Email)
	if err != nil {
		return "", domain.User{}, apperrors.ErrInvalidCredentials
	}

	ok, err := auth.ComparePassword(req.Password, hash)
	if err != nil || !ok {
		return "", domain.User{}, apperrors.ErrInvalidCredentials
	}

	token, err := s.tokens.GenerateToken(user.ID, []string{"user"})
	if err != nil {
		return "", domain.User{}, err
	}
	return token, user, nil
}
