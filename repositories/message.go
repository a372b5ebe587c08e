//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"chat-relay/domain"
	apperrors "chat-relay/errors"
)

type IMessageRepository interface {
	StoreMessage(message domain.Message) error
	GetMessages(room domain.RoomID, cursor *string) ([]domain.Message, *string, error)
}

type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) MessageRepository {
	return MessageRepository{db: db, log: log, limitMessages: limitMessages}
}

// diskMessage is the stored representation of a message.
type diskMessage struct {
	ID      string `json:"id"`
	Room    string `json:"room"`
	Author  string `json:"author"`
	Content string `json:"content"`
	Lang    string `json:"lang,omitempty"`
	At      int64  `json:"at"` // unix nanoseconds UTC
}

func messageKey(room domain.RoomID, at time.Time, id uuid.UUID) []byte {
	// "msg:{room}:{timestamp_padded}:{uuid}":
	//  1. 19-digit zero padding keeps chronological order lexicographic.
	//  2. The UUID disambiguates two messages landing on the same nanosecond.
	return []byte(fmt.Sprintf("msg:%s:%019d:%s", room, at.UnixNano(), id))
}

func messagePrefix(room domain.RoomID) []byte {
	return []byte(fmt.Sprintf("msg:%s:", room))
}

// StoreMessage durably appends a message. The write is a single atomic
// badger transaction.
func (m MessageRepository) StoreMessage(message domain.Message) error {
	bytes, err := json.Marshal(toDiskMessage(message))
	if err != nil {
		return err
	}
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(message.Room, message.CreatedAt, message.ID), bytes)
	})
}

// GetMessages reads a room's history oldest to newest using a prefix scan.
// The padded timestamp in the key makes the iteration naturally ordered.
// The returned cursor resumes the scan after the last message of the page;
// it is nil when the page is empty.
func (m MessageRepository) GetMessages(room domain.RoomID, cursor *string) ([]domain.Message, *string, error) {
	var raw [][]byte
	var lastKey string

	err := m.db.View(func(txn *badger.Txn) error {
		prefix := messagePrefix(room)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		seekKey := prefix
		if cursor != nil {
			seekKey = append(append([]byte{}, prefix...), []byte(*cursor)...)
		}
		it.Seek(seekKey)

		// The cursor points at the last message already returned; skip it.
		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages != nil && len(raw) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d messages reached", *m.limitMessages))
				break
			}
			item := it.Item()
			lastKey = string(item.Key()[len(prefix):])
			err := item.Value(func(value []byte) error {
				raw = append(raw, append([]byte{}, value...))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	var messages []domain.Message
	for _, b := range raw {
		var dm diskMessage
		if err = json.Unmarshal(b, &dm); err != nil {
			return nil, nil, err
		}
		message, err := fromDiskMessage(dm)
		if err != nil {
			return nil, nil, err
		}
		messages = append(messages, message)
	}
	if len(messages) == 0 {
		return nil, nil, nil
	}
	return messages, lo.ToPtr(lastKey), nil
}

func toDiskMessage(message domain.Message) diskMessage {
	return diskMessage{
		ID:      message.ID.String(),
		Room:    string(message.Room),
		Author:  message.SenderID,
		Content: message.Content,
		Lang:    message.Lang,
		At:      message.CreatedAt.UnixNano(),
	}
}

func fromDiskMessage(dm diskMessage) (domain.Message, error) {
	parsedID, err := uuid.Parse(dm.ID)
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: corrupt message id %q", apperrors.ErrPersistence, dm.ID)
	}
	return domain.Message{
		ID:        parsedID,
		Room:      domain.RoomID(dm.Room),
		SenderID:  dm.Author,
		Content:   dm.Content,
		Lang:      dm.Lang,
		CreatedAt: time.Unix(0, dm.At).UTC(),
	}, nil
}
