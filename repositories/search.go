//go:generate go run go.uber.org/mock/mockgen -source=search.go -destination=../mocks/mock_search_repository.go -package=mocks
package repositories

import (
	"context"

	"github.com/blugelabs/bluge"

	"chat-relay/domain"
)

type ISearchRepository interface {
	Index(message domain.Message) error
	Search(ctx context.Context, room domain.RoomID, terms string, limit int) ([]SearchHit, error)
	Close() error
}

// SearchHit is a lightweight projection of an indexed message.
type SearchHit struct {
	ID      string
	Author  string
	Content string
}

// SearchRepository maintains a bluge full-text index over message content.
// Indexing happens asynchronously after persistence; a lost index entry is
// an acceptable degradation, the badger store stays the source of truth.
type SearchRepository struct {
	writer *bluge.Writer
}

func NewSearchRepository(path string) (*SearchRepository, error) {
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(path))
	if err != nil {
		return nil, err
	}
	return &SearchRepository{writer: writer}, nil
}

func (s *SearchRepository) Index(message domain.Message) error {
	doc := bluge.NewDocument(message.ID.String()).
		AddField(bluge.NewKeywordField("room", string(message.Room))).
		AddField(bluge.NewKeywordField("author", message.SenderID).StoreValue()).
		AddField(bluge.NewTextField("content", message.Content).StoreValue())
	return s.writer.Update(doc.ID(), doc)
}

// Search runs a match query over message content, scoped to one room.
func (s *SearchRepository) Search(ctx context.Context, room domain.RoomID, terms string, limit int) ([]SearchHit, error) {
	reader, err := s.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	query := bluge.NewBooleanQuery().
		AddMust(bluge.NewTermQuery(string(room)).SetField("room")).
		AddMust(bluge.NewMatchQuery(terms).SetField("content"))

	iterator, err := reader.Search(ctx, bluge.NewTopNSearch(limit, query))
	if err != nil {
		return nil, err
	}

	var hits []SearchHit
	for {
		match, err := iterator.Next()
		if err != nil {
			return nil, err
		}
		if match == nil {
			break
		}
		var hit SearchHit
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				hit.ID = string(value)
			case "author":
				hit.Author = string(value)
			case "content":
				hit.Content = string(value)
			}
			return true
		})
		if err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

func (s *SearchRepository) Close() error {
	return s.writer.Close()
}
