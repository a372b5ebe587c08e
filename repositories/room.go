//go:generate go run go.uber.org/mock/mockgen -source=room.go -destination=../mocks/mock_room_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"

	"chat-relay/domain"
	apperrors "chat-relay/errors"
)

type IRoomRepository interface {
	CreateRoom(room domain.Room) error
	GetRoom(id domain.RoomID) (domain.Room, error)
	ListRooms() ([]domain.Room, error)
	Exists(id domain.RoomID) (bool, error)
}

type RoomRepository struct {
	db *badger.DB
}

func NewRoomRepository(db *badger.DB) RoomRepository {
	return RoomRepository{db: db}
}

type diskRoom struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt int64  `json:"created_at"` // unix nanoseconds UTC
}

func roomKey(id domain.RoomID) []byte {
	return []byte("room:" + id)
}

func (r RoomRepository) CreateRoom(room domain.Room) error {
	bytes, err := json.Marshal(diskRoom{
		ID:        string(room.ID),
		Name:      room.Name,
		CreatedAt: room.CreatedAt.UnixNano(),
	})
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(roomKey(room.ID), bytes)
	})
}

func (r RoomRepository) GetRoom(id domain.RoomID) (domain.Room, error) {
	var dr diskRoom
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(roomKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &dr)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Room{}, apperrors.ErrRoomNotFound
	}
	if err != nil {
		return domain.Room{}, err
	}
	return fromDiskRoom(dr), nil
}

// ListRooms scans the room prefix. Rooms are returned newest first, matching
// the listing order of the account surface.
func (r RoomRepository) ListRooms() ([]domain.Room, error) {
	var rooms []domain.Room
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte("room:")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var dr diskRoom
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &dr)
			})
			if err != nil {
				return err
			}
			rooms = append(rooms, fromDiskRoom(dr))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].CreatedAt.After(rooms[j].CreatedAt)
	})
	return rooms, nil
}

func (r RoomRepository) Exists(id domain.RoomID) (bool, error) {
	err := r.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(roomKey(id))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func fromDiskRoom(dr diskRoom) domain.Room {
	return domain.Room{
		ID:        domain.RoomID(dr.ID),
		Name:      dr.Name,
		CreatedAt: time.Unix(0, dr.CreatedAt).UTC(),
	}
}
