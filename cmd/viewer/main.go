// The viewer opens the store read-only next to a running server and prints
// its content as tables: rooms first, then the tail of one room's history
// when VIEWER_ROOM is set. With VIEWER_DEBUG_PORT it also serves the
// inspect page.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/kelseyhightower/envconfig"
	"github.com/olekukonko/tablewriter"

	"chat-relay/internal"
)

type Config struct {
	BadgerFilepath string `envconfig:"BADGER_FILEPATH" required:"true"`
	Room           string `envconfig:"VIEWER_ROOM"`
	Limit          int    `envconfig:"VIEWER_LIMIT" default:"50"`
	DebugPort      int    `envconfig:"VIEWER_DEBUG_PORT" default:"0"`
}

type storedRoom struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt int64  `json:"created_at"`
}

type storedMessage struct {
	ID      string `json:"id"`
	Room    string `json:"room"`
	Author  string `json:"author"`
	Content string `json:"content"`
	Lang    string `json:"lang,omitempty"`
	At      int64  `json:"at"`
}

func main() {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		log.Fatalf("Config error: %v", err)
	}

	// BypassLockGuard allows opening while the server holds the lock.
	opts := badger.DefaultOptions(config.BadgerFilepath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := printRooms(db); err != nil {
		log.Fatalf("Listing rooms: %v", err)
	}

	if config.Room != "" {
		if err := printMessages(db, config.Room, config.Limit); err != nil {
			log.Fatalf("Listing messages: %v", err)
		}
	}

	if config.DebugPort > 0 {
		stats := func() map[string]any {
			return map[string]any{
				"Status": "Viewer Mode (Read-Only)",
				"Time":   time.Now().Format(time.RFC822),
			}
		}
		internal.StartDebugServer(db, config.DebugPort, nil, stats)
		fmt.Printf("Viewer started at http://localhost:%d/inspect\n", config.DebugPort)
		select {}
	}
}

func printRooms(db *badger.DB) error {
	table := newTable([]string{"Room ID", "Name", "Created"})

	err := scanPrefix(db, "room:", func(_ string, val []byte) error {
		var r storedRoom
		if err := json.Unmarshal(val, &r); err != nil {
			return nil
		}
		table.Append([]string{
			r.ID,
			r.Name,
			time.Unix(0, r.CreatedAt).Format(time.RFC822),
		})
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Println("Rooms:")
	table.Render()
	return nil
}

func printMessages(db *badger.DB, room string, limit int) error {
	table := newTable([]string{"Time", "Author", "Lang", "Content"})

	var rows [][]string
	err := scanPrefix(db, "msg:"+room+":", func(_ string, val []byte) error {
		var m storedMessage
		if err := json.Unmarshal(val, &m); err != nil {
			return nil
		}
		rows = append(rows, []string{
			time.Unix(0, m.At).Format("15:04:05"),
			m.Author,
			m.Lang,
			m.Content,
		})
		return nil
	})
	if err != nil {
		return err
	}

	// Keys sort oldest first; keep only the tail.
	if limit > 0 && len(rows) > limit {
		rows = rows[len(rows)-limit:]
	}
	for _, row := range rows {
		table.Append(row)
	}

	fmt.Printf("\nMessages in %s:\n", room)
	table.Render()
	return nil
}

func scanPrefix(db *badger.DB, prefix string, fn func(key string, val []byte) error) error {
	return db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			item := it.Item()
			key := string(item.Key())
			if err := item.Value(func(val []byte) error {
				return fn(key, val)
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

func newTable(headers []string) *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(headers)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}
