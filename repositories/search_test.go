package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"chat-relay/domain"
)

func openTestSearch(t *testing.T) *SearchRepository {
	t.Helper()
	search, err := NewSearchRepository(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = search.Close() })
	return search
}

func indexedMessage(room domain.RoomID, author, content string) domain.Message {
	return domain.Message{
		ID:        uuid.New(),
		Room:      room,
		SenderID:  author,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

func Test_Search_Finds_Indexed_Message(t *testing.T) {
	req := require.New(t)
	search := openTestSearch(t)
	message := indexedMessage("general", "alice", "deployment finished without errors")
	req.NoError(search.Index(message))

	// When searching a word of the content
	hits, err := search.Search(context.Background(), "general", "deployment", 10)

	// Then the message is found with its stored fields
	req.NoError(err)
	req.Len(hits, 1)
	req.Equal(message.ID.String(), hits[0].ID)
	req.Equal("alice", hits[0].Author)
	req.Equal("deployment finished without errors", hits[0].Content)
}

func Test_Search_Is_Scoped_To_The_Room(t *testing.T) {
	req := require.New(t)
	search := openTestSearch(t)
	req.NoError(search.Index(indexedMessage("general", "alice", "deployment finished")))
	req.NoError(search.Index(indexedMessage("random", "bob", "deployment started")))

	// When searching inside one room
	hits, err := search.Search(context.Background(), "general", "deployment", 10)

	// Then only that room's messages match
	req.NoError(err)
	req.Len(hits, 1)
	req.Equal("alice", hits[0].Author)
}

func Test_Search_No_Match(t *testing.T) {
	req := require.New(t)
	search := openTestSearch(t)
	req.NoError(search.Index(indexedMessage("general", "alice", "deployment finished")))

	hits, err := search.Search(context.Background(), "general", "weather", 10)

	req.NoError(err)
	req.Empty(hits)
}

func Test_Search_Respects_Limit(t *testing.T) {
	req := require.New(t)
	search := openTestSearch(t)
	for i := 0; i < 5; i++ {
		req.NoError(search.Index(indexedMessage("general", "alice", "deployment again")))
	}

	hits, err := search.Search(context.Background(), "general", "deployment", 2)

	req.NoError(err)
	req.Len(hits, 2)
}

func Test_Index_Same_Message_Twice_Is_An_Update(t *testing.T) {
	req := require.New(t)
	search := openTestSearch(t)
	message := indexedMessage("general", "alice", "deployment finished")
	req.NoError(search.Index(message))
	req.NoError(search.Index(message))

	hits, err := search.Search(context.Background(), "general", "deployment", 10)

	req.NoError(err)
	req.Len(hits, 1)
}
