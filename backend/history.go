package backend

import (
	"database/sql"
	"encoding/json"
	"io/ioutil"
	"os"
	"time"

	"github.com/brutella/hc/log"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/johnpoole/glencoe-curling-camera-capture/pipeline"
)

// DefaultMaxEntries is how many publications the history keeps.
const DefaultMaxEntries = 100

// Entry is one recorded publication.
type Entry struct {
	ID       int64   `json:"id"`
	UUID     string  `json:"uuid"`
	Datetime string  `json:"datetime"`
	Reason   string  `json:"reason"`
	Score    float64 `json:"score"`
	Size     int64   `json:"size"`
}

// History stores published frames in a sqlite database. It implements
// pipeline.Observer.
type History struct {
	dbFile     string
	maxEntries int
	dbHandle   *sql.DB
}

// OpenHistory opens the database at dbFile, creating it and its schema if
// needed.
func OpenHistory(dbFile string, maxEntries int) (*History, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	h := &History{dbFile: dbFile, maxEntries: maxEntries}
	if err := h.openDB(); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *History) createSchema() error {
	createPublicationTableSQL := `
CREATE TABLE IF NOT EXISTS publication (
"id" integer NOT NULL PRIMARY KEY AUTOINCREMENT,
"uuid" TEXT NOT NULL,
"datetime" DATE DEFAULT (datetime('now')),
"reason" TEXT NOT NULL,
"score" REAL NOT NULL,
"size" INTEGER NOT NULL,
"photo" BLOB NOT NULL
);`

	log.Debug.Println("Creating publication table")
	_, err := h.dbHandle.Exec(createPublicationTableSQL)
	return err
}

func (h *History) openDB() error {
	if _, err := os.Stat(h.dbFile); os.IsNotExist(err) {
		log.Info.Println("Creating history database", h.dbFile)
	}

	var err error
	h.dbHandle, err = sql.Open("sqlite3", h.dbFile)
	if err != nil {
		return err
	}
	// one writer, the capture loop; readers are the http handlers
	h.dbHandle.SetMaxOpenConns(1)

	if err := h.createSchema(); err != nil {
		h.dbHandle.Close()
		return err
	}
	return nil
}

// Close closes the database.
func (h *History) Close() error {
	return h.dbHandle.Close()
}

// Published records the frame in the canonical slot. Failures are logged and
// never reach the capture loop.
func (h *History) Published(p pipeline.Publication) {
	photo, err := ioutil.ReadFile(p.Frame)
	if err != nil {
		log.Info.Println("history:", err)
		return
	}
	if err := h.insert(p, photo); err != nil {
		log.Info.Println("history:", err)
	}
}

func (h *History) insert(p pipeline.Publication, photo []byte) error {
	// we permit at most maxEntries publications, the new one included
	q := `
DELETE FROM publication WHERE id IN
(SELECT id FROM publication ORDER BY id DESC LIMIT -1 OFFSET ?)
`
	if _, err := h.dbHandle.Exec(q, h.maxEntries-1); err != nil {
		return err
	}

	q = `INSERT INTO publication(uuid, datetime, reason, score, size, photo) VALUES (?, ?, ?, ?, ?, ?)`
	_, err := h.dbHandle.Exec(q,
		uuid.New().String(),
		p.Time.UTC().Format("2006-01-02 15:04:05"),
		string(p.Reason),
		p.Score,
		len(photo),
		photo)
	return err
}

// Recent returns up to n entries, newest first.
func (h *History) Recent(n int) ([]Entry, error) {
	rows, err := h.dbHandle.Query(
		"SELECT id, uuid, datetime, reason, score, size FROM publication ORDER BY id DESC LIMIT ?", n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var e Entry
		var datetime time.Time
		if err := rows.Scan(&e.ID, &e.UUID, &datetime, &e.Reason, &e.Score, &e.Size); err != nil {
			return nil, err
		}
		e.Datetime = datetime.UTC().Format(time.RFC3339)
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// Photo returns the frame stored for id, or sql.ErrNoRows.
func (h *History) Photo(id int64) ([]byte, error) {
	var photo []byte
	err := h.dbHandle.QueryRow("SELECT photo FROM publication WHERE id = ?", id).Scan(&photo)
	return photo, err
}

// getJSON returns the most recent entries as a JSON array.
func (h *History) getJSON(n int) ([]byte, error) {
	entries, err := h.Recent(n)
	if err != nil {
		return nil, err
	}
	return json.Marshal(entries)
}
