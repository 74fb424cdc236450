package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/draftpilot/backend/internal/storage/models"
	"github.com/draftpilot/backend/pkg/logger"
)

// ErrAlreadyEnriched guards the enrich-exactly-once invariant: a
// source's content, quality score and fetch status can be written by
// the pipeline only once after insertion.
var ErrAlreadyEnriched = errors.New("source enrichment fields already written")

var ErrNotFound = errors.New("source not found")

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sources (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		locator TEXT NOT NULL,
		title TEXT NOT NULL,
		content TEXT,
		word_count INTEGER NOT NULL DEFAULT 0,
		content_length INTEGER NOT NULL DEFAULT 0,
		quality_score REAL NOT NULL DEFAULT 0,
		fetch_status TEXT NOT NULL,
		fetch_error TEXT,
		starred INTEGER NOT NULL DEFAULT 0,
		selected INTEGER NOT NULL DEFAULT 0,
		verified INTEGER NOT NULL DEFAULT 0,
		enriched_at INTEGER,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sources_kind ON sources(kind);
	CREATE INDEX IF NOT EXISTS idx_sources_status ON sources(fetch_status);
	CREATE INDEX IF NOT EXISTS idx_sources_updated ON sources(updated_at);

	CREATE TABLE IF NOT EXISTS source_chunks (
		id TEXT PRIMARY KEY,
		source_id TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		content TEXT NOT NULL,
		word_count INTEGER NOT NULL,
		start_word INTEGER NOT NULL,
		end_word INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (source_id) REFERENCES sources(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_source ON source_chunks(source_id);
	`

	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// InsertSource persists a source and assigns its id. Documents arrive
// already enriched, so their enrichment fields are sealed on insert.
func (c *Client) InsertSource(src *models.Source) error {
	if src.ID == "" {
		src.ID = uuid.NewString()
	}
	now := time.Now()
	src.CreatedAt = now
	src.UpdatedAt = now

	var enrichedAt *int64
	if src.FetchStatus == models.StatusUserProvided {
		ts := now.Unix()
		enrichedAt = &ts
	}

	_, err := c.db.Exec(`
		INSERT INTO sources (id, kind, locator, title, content, word_count, content_length,
			quality_score, fetch_status, fetch_error, starred, selected, verified,
			enriched_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		src.ID, src.Kind, src.Locator, src.Title, src.Content, src.WordCount,
		src.ContentLength, src.QualityScore, src.FetchStatus, src.FetchError,
		boolToInt(src.Starred), boolToInt(src.Selected), boolToInt(src.Verified),
		enrichedAt, now.Unix(), now.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert source: %w", err)
	}
	return nil
}

// ApplyEnrichment writes the fetcher's outcome for a source. The
// update succeeds at most once per source.
func (c *Client) ApplyEnrichment(id string, src models.Source) error {
	now := time.Now().Unix()
	res, err := c.db.Exec(`
		UPDATE sources
		SET content = ?, word_count = ?, content_length = ?, quality_score = ?,
			fetch_status = ?, fetch_error = ?, enriched_at = ?, updated_at = ?
		WHERE id = ? AND enriched_at IS NULL`,
		src.Content, src.WordCount, src.ContentLength, src.QualityScore,
		src.FetchStatus, src.FetchError, now, now, id,
	)
	if err != nil {
		return fmt.Errorf("failed to apply enrichment: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check enrichment result: %w", err)
	}
	if affected == 0 {
		return ErrAlreadyEnriched
	}
	return nil
}

func (c *Client) InsertChunks(sourceID string, chunks []models.Chunk) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO source_chunks (id, source_id, chunk_index, content, word_count,
			start_word, end_word, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, chunk := range chunks {
		id := chunk.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, err := stmt.Exec(id, sourceID, chunk.Index, chunk.Content,
			chunk.WordCount, chunk.StartWord, chunk.EndWord, now); err != nil {
			return fmt.Errorf("failed to insert chunk %d: %w", chunk.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chunks: %w", err)
	}
	return nil
}

func (c *Client) GetSource(id string) (*models.Source, error) {
	row := c.db.QueryRow(`
		SELECT id, kind, locator, title, content, word_count, content_length,
			quality_score, fetch_status, fetch_error, starred, selected, verified,
			created_at, updated_at
		FROM sources WHERE id = ?`, id)

	src, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source: %w", err)
	}
	return src, nil
}

func (c *Client) ListSources() ([]models.Source, error) {
	rows, err := c.db.Query(`
		SELECT id, kind, locator, title, content, word_count, content_length,
			quality_score, fetch_status, fetch_error, starred, selected, verified,
			created_at, updated_at
		FROM sources ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer rows.Close()

	var sources []models.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		sources = append(sources, *src)
	}
	return sources, rows.Err()
}

func (c *Client) ListChunks(sourceID string) ([]models.Chunk, error) {
	rows, err := c.db.Query(`
		SELECT id, source_id, chunk_index, content, word_count, start_word, end_word, created_at
		FROM source_chunks WHERE source_id = ? ORDER BY chunk_index`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	defer rows.Close()

	var chunks []models.Chunk
	for rows.Next() {
		var chunk models.Chunk
		var createdAt int64
		if err := rows.Scan(&chunk.ID, &chunk.SourceID, &chunk.Index, &chunk.Content,
			&chunk.WordCount, &chunk.StartWord, &chunk.EndWord, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		chunk.CreatedAt = time.Unix(createdAt, 0)
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(row rowScanner) (*models.Source, error) {
	var src models.Source
	var fetchError sql.NullString
	var starred, selected, verified int
	var createdAt, updatedAt int64

	err := row.Scan(&src.ID, &src.Kind, &src.Locator, &src.Title, &src.Content,
		&src.WordCount, &src.ContentLength, &src.QualityScore, &src.FetchStatus,
		&fetchError, &starred, &selected, &verified, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	src.FetchError = fetchError.String
	src.Starred = starred != 0
	src.Selected = selected != 0
	src.Verified = verified != 0
	src.CreatedAt = time.Unix(createdAt, 0)
	src.UpdatedAt = time.Unix(updatedAt, 0)
	return &src, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
