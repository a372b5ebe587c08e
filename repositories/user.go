//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"chat-relay/domain"
	apperrors "chat-relay/errors"
)

type IUserRepository interface {
	CreateUser(email, name, hashedPassword string) (domain.User, error)
	GetUser(id string) (domain.User, error)
	GetUserByEmail(email string) (domain.User, string, error)
	ListUsers() ([]domain.User, error)
	UpdateUser(user domain.User) error
	DeleteUser(id string) error
}

type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) UserRepository {
	return UserRepository{db: db}
}

// diskUser is the stored account record. The password hash lives next to the
// profile; the realtime core never reads this type.
type diskUser struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Name         string `json:"name,omitempty"`
	Picture      string `json:"picture,omitempty"`
	PasswordHash string `json:"password_hash"`
	Active       bool   `json:"active"`
	CreatedAt    int64  `json:"created_at"`
	LastSeenAt   int64  `json:"last_seen_at,omitempty"`
}

func userKey(id string) []byte { return []byte("user:" + id) }

// emailKey indexes users by email for login and uniqueness.
func emailKey(email string) []byte { return []byte("useremail:" + email) }

// CreateUser persists a new account. The email index entry and the record
// are written in the same transaction, so uniqueness is atomic.
func (u UserRepository) CreateUser(email, name, hashedPassword string) (domain.User, error) {
	du := diskUser{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		PasswordHash: hashedPassword,
		Active:       true,
		CreatedAt:    time.Now().UTC().UnixNano(),
	}
	bytes, err := json.Marshal(du)
	if err != nil {
		return domain.User{}, err
	}

	err = u.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(emailKey(email)); err == nil {
			return apperrors.ErrUserAlreadyExists
		}
		if err := txn.Set(emailKey(email), []byte(du.ID)); err != nil {
			return err
		}
		return txn.Set(userKey(du.ID), bytes)
	})
	if err != nil {
		return domain.User{}, err
	}
	return fromDiskUser(du), nil
}

func (u UserRepository) GetUser(id string) (domain.User, error) {
	du, err := u.readUser(id)
	if err != nil {
		return domain.User{}, err
	}
	return fromDiskUser(du), nil
}

// GetUserByEmail resolves the email index then the record. It also returns
// the stored password hash for credential checks.
func (u UserRepository) GetUserByEmail(email string) (domain.User, string, error) {
	var du diskUser
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(emailKey(email))
		if err != nil {
			return err
		}
		var id string
		if err := item.Value(func(val []byte) error {
			id = string(val)
			return nil
		}); err != nil {
			return err
		}
		record, err := txn.Get(userKey(id))
		if err != nil {
			return err
		}
		return record.Value(func(val []byte) error {
			return json.Unmarshal(val, &du)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.User{}, "", apperrors.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, "", err
	}
	return fromDiskUser(du), du.PasswordHash, nil
}

func (u UserRepository) ListUsers() ([]domain.User, error) {
	var users []domain.User
	err := u.db.View(func(txn *badger.Txn) error {
		prefix := []byte("user:")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var du diskUser
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &du)
			})
			if err != nil {
				return err
			}
			users = append(users, fromDiskUser(du))
		}
		return nil
	})
	return users, err
}

// UpdateUser rewrites the profile attributes of an existing account.
// Email and password hash are preserved from the stored record.
func (u UserRepository) UpdateUser(user domain.User) error {
	return u.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(user.ID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return apperrors.ErrUserNotFound
		}
		if err != nil {
			return err
		}
		var du diskUser
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &du)
		}); err != nil {
			return err
		}

		du.Name = user.Name
		du.Picture = user.Picture
		du.Active = user.Active
		if !user.LastSeenAt.IsZero() {
			du.LastSeenAt = user.LastSeenAt.UnixNano()
		}

		bytes, err := json.Marshal(du)
		if err != nil {
			return err
		}
		return txn.Set(userKey(du.ID), bytes)
	})
}

// DeleteUser removes the record and its email index entry.
func (u UserRepository) DeleteUser(id string) error {
	du, err := u.readUser(id)
	if err != nil {
		return err
	}
	return u.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(emailKey(du.Email)); err != nil {
			return err
		}
		return txn.Delete(userKey(id))
	})
}

func (u UserRepository) readUser(id string) (diskUser, error) {
	var du diskUser
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &du)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return diskUser{}, apperrors.ErrUserNotFound
	}
	return du, err
}

func fromDiskUser(du diskUser) domain.User {
	user := domain.User{
		ID:        du.ID,
		Email:     du.Email,
		Name:      du.Name,
		Picture:   du.Picture,
		Active:    du.Active,
		CreatedAt: time.Unix(0, du.CreatedAt).UTC(),
	}
	if du.LastSeenAt != 0 {
		user.LastSeenAt = time.Unix(0, du.LastSeenAt).UTC()
	}
	return user
}
