//go:generate go run go.uber.org/mock/mockgen -source=user_service.go -destination=../mocks/mock_user_service.go -package=mocks
package services

import (
	"chat-relay/auth"
	"chat-relay/domain"
	"chat-relay/repositories"
)

type IUserService interface {
	CreateUser(req auth.RegisterRequest) (domain.User, error)
	GetUser(id string) (domain.User, error)
	ListUsers() ([]domain.User, error)
	UpdateUser(user domain.User) error
	DeleteUser(id string) error
}

// UserService is pure passthrough; account rules live in the repository and
// the auth service.
type UserService struct {
	users repositories.IUserRepository
}

func NewUserService(users repositories.IUserRepository) *UserService {
	return &UserService{users: users}
}

// CreateUser provisions an account directly through the user API. The
// request passes the same validation and hashing as self-registration, so
// the created account can log in.
func (s *UserService) CreateUser(req auth.RegisterRequest) (domain.User, error) {
	if err := auth.ValidateRegister(req); err != nil {
		return domain.User{}, err
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return domain.User{}, err
	}
	return s.users.CreateUser(req.Email, req.Name, hash)
}

func (s *UserService) GetUser(id string) (domain.User, error) {
	return s.users.GetUser(id)
}

func (s *UserService) ListUsers() ([]domain.User, error) {
	return s.users.ListUsers()
}

func (s *UserService) UpdateUser(user domain.User) error {
	return s.users.UpdateUser(user)
}

func (s *UserService) DeleteUser(id string) error {
	return s.users.DeleteUser(id)
}
