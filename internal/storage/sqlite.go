package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/dokoapp/doko/internal/models"
)

// maxContainerDepth bounds parent-chain walks. Any chain longer than this is
// treated as a corrupt graph rather than walked forever.
const maxContainerDepth = 64

// SQLiteStore implements Store using SQLite. Item and vector rows commit in
// the same transaction, so the 1:1 item/vector invariant survives crashes
// and restarts.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes
// the schema. Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS containers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		location TEXT NOT NULL DEFAULT '',
		parent_id TEXT REFERENCES containers(id),
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_containers_parent_id ON containers(parent_id);

	CREATE TABLE IF NOT EXISTS items (
		id TEXT PRIMARY KEY,
		container_id TEXT NOT NULL REFERENCES containers(id),
		name TEXT NOT NULL,
		description TEXT NOT NULL,
		image_ref TEXT NOT NULL DEFAULT '',
		embedding_id TEXT NOT NULL UNIQUE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_items_container_id ON items(container_id);
	CREATE INDEX IF NOT EXISTS idx_items_embedding_id ON items(embedding_id);

	CREATE TABLE IF NOT EXISTS vectors (
		id TEXT PRIMARY KEY,
		item_id TEXT NOT NULL UNIQUE REFERENCES items(id),
		dims INTEGER NOT NULL,
		embedding BLOB NOT NULL
	);

	CREATE TABLE IF NOT EXISTS import_log (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		status TEXT NOT NULL,
		detail TEXT NOT NULL DEFAULT '',
		container_id TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := db.Exec(schema)
	return err
}

// CreateContainer inserts a container. The parent, when set, must exist and
// its chain to the root must be walkable.
func (s *SQLiteStore) CreateContainer(ctx context.Context, input *models.ContainerInput) (*models.Container, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, fmt.Errorf("%w: container name cannot be empty", ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if input.ParentID != "" {
		// A freshly generated id cannot be its own ancestor, but the parent
		// chain is still validated so corruption never spreads.
		if _, err := walkParentChain(ctx, tx, input.ParentID); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	c := &models.Container{
		ID:        uuid.New().String(),
		Name:      input.Name,
		Location:  input.Location,
		ParentID:  input.ParentID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO containers (id, name, location, parent_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Location, nullable(c.ParentID), c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return c, nil
}

// GetContainer returns a container by ID.
func (s *SQLiteStore) GetContainer(ctx context.Context, id string) (*models.Container, error) {
	return getContainer(ctx, s.db, id)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func getContainer(ctx context.Context, q querier, id string) (*models.Container, error) {
	var c models.Container
	var parent sql.NullString
	err := q.QueryRowContext(ctx,
		`SELECT id, name, location, parent_id, created_at, updated_at
		 FROM containers WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.Location, &parent, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: container %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	c.ParentID = parent.String
	return &c, nil
}

// UpdateContainer renames and/or reparents a container. Reparenting onto
// itself or any of its descendants fails with ErrCycleDetected; nothing is
// mutated on rejection.
func (s *SQLiteStore) UpdateContainer(ctx context.Context, id, name, location, parentID string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: container name cannot be empty", ErrInvalidInput)
	}
	if parentID == id {
		return fmt.Errorf("%w: container %s cannot be its own parent", ErrCycleDetected, id)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := getContainer(ctx, tx, id); err != nil {
		return err
	}
	if parentID != "" {
		chain, err := walkParentChain(ctx, tx, parentID)
		if err != nil {
			return err
		}
		for _, ancestor := range chain {
			if ancestor == id {
				return fmt.Errorf("%w: %s is a descendant of %s", ErrCycleDetected, parentID, id)
			}
		}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE containers SET name = ?, location = ?, parent_id = ?, updated_at = ? WHERE id = ?`,
		name, location, nullable(parentID), time.Now(), id,
	)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteContainer removes a container. Fails with ErrNotEmpty when the
// container still holds items or child containers.
func (s *SQLiteStore) DeleteContainer(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := getContainer(ctx, tx, id); err != nil {
		return err
	}

	var itemCount, childCount int64
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM items WHERE container_id = ?`, id).Scan(&itemCount); err != nil {
		return err
	}
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM containers WHERE parent_id = ?`, id).Scan(&childCount); err != nil {
		return err
	}
	if itemCount > 0 || childCount > 0 {
		return fmt.Errorf("%w: container %s has %d item(s) and %d child container(s)",
			ErrNotEmpty, id, itemCount, childCount)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM containers WHERE id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

// ListContainers returns all containers ordered by name.
func (s *SQLiteStore) ListContainers(ctx context.Context) ([]*models.Container, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, location, parent_id, created_at, updated_at
		 FROM containers ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Container
	for rows.Next() {
		var c models.Container
		var parent sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &c.Location, &parent, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		c.ParentID = parent.String
		out = append(out, &c)
	}
	return out, rows.Err()
}

// ContainerPath returns display labels from the root container down to id.
// A revisited container means the stored graph is corrupt; the walk fails
// with ErrCorruptContainerGraph instead of looping.
func (s *SQLiteStore) ContainerPath(ctx context.Context, id string) ([]string, error) {
	var labels []string
	seen := make(map[string]bool)
	current := id
	for current != "" {
		if seen[current] || len(labels) >= maxContainerDepth {
			return nil, fmt.Errorf("%w: cycle at container %s", ErrCorruptContainerGraph, current)
		}
		seen[current] = true
		c, err := getContainer(ctx, s.db, current)
		if err != nil {
			return nil, err
		}
		labels = append(labels, c.PathLabel())
		current = c.ParentID
	}
	// Walked leaf to root; reverse for root-to-leaf order.
	for i, j := 0, len(labels)-1; i < j; i, j = i+1, j-1 {
		labels[i], labels[j] = labels[j], labels[i]
	}
	return labels, nil
}

// walkParentChain returns the ids from start up to the root, failing on an
// unknown container or a chain that revisits a node.
func walkParentChain(ctx context.Context, q querier, start string) ([]string, error) {
	var chain []string
	seen := make(map[string]bool)
	current := start
	for current != "" {
		if seen[current] || len(chain) >= maxContainerDepth {
			return nil, fmt.Errorf("%w: cycle at container %s", ErrCorruptContainerGraph, current)
		}
		seen[current] = true
		chain = append(chain, current)
		c, err := getContainer(ctx, q, current)
		if err != nil {
			return nil, err
		}
		current = c.ParentID
	}
	return chain, nil
}

// CreateItem inserts the item row and its vector entry in one transaction.
// Either both persist or neither does.
func (s *SQLiteStore) CreateItem(ctx context.Context, item *models.Item, vec []float32) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := getContainer(ctx, tx, item.ContainerID); err != nil {
		return err
	}

	now := time.Now()
	item.CreatedAt = now
	item.UpdatedAt = now
	_, err = tx.ExecContext(ctx,
		`INSERT INTO items (id, container_id, name, description, image_ref, embedding_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.ContainerID, item.Name, item.Description, item.ImageRef, item.EmbeddingID,
		item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO vectors (id, item_id, dims, embedding) VALUES (?, ?, ?, ?)`,
		item.EmbeddingID, item.ID, len(vec), float32SliceToBytes(vec),
	)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// GetItem returns an item by ID.
func (s *SQLiteStore) GetItem(ctx context.Context, id string) (*models.Item, error) {
	return scanItem(s.db.QueryRowContext(ctx,
		`SELECT id, container_id, name, description, image_ref, embedding_id, created_at, updated_at
		 FROM items WHERE id = ?`, id), id)
}

func scanItem(row *sql.Row, id string) (*models.Item, error) {
	var it models.Item
	err := row.Scan(&it.ID, &it.ContainerID, &it.Name, &it.Description, &it.ImageRef,
		&it.EmbeddingID, &it.CreatedAt, &it.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: item %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// ListItemsByContainer returns the items directly inside a container.
func (s *SQLiteStore) ListItemsByContainer(ctx context.Context, containerID string) ([]*models.Item, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, container_id, name, description, image_ref, embedding_id, created_at, updated_at
		 FROM items WHERE container_id = ? ORDER BY name, id`, containerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Item
	for rows.Next() {
		var it models.Item
		if err := rows.Scan(&it.ID, &it.ContainerID, &it.Name, &it.Description, &it.ImageRef,
			&it.EmbeddingID, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &it)
	}
	return out, rows.Err()
}

// MoveItem reassigns an item to another container. Pure metadata update; the
// vector entry is untouched.
func (s *SQLiteStore) MoveItem(ctx context.Context, itemID, containerID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := getContainer(ctx, tx, containerID); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE items SET container_id = ?, updated_at = ? WHERE id = ?`,
		containerID, time.Now(), itemID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: item %s", ErrNotFound, itemID)
	}
	return tx.Commit()
}

// UpdateItemText updates an item's name and description together with the
// replacement vector, in one transaction.
func (s *SQLiteStore) UpdateItemText(ctx context.Context, itemID, name, description string, vec []float32) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: item name cannot be empty", ErrInvalidInput)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var embeddingID string
	err = tx.QueryRowContext(ctx, `SELECT embedding_id FROM items WHERE id = ?`, itemID).Scan(&embeddingID)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: item %s", ErrNotFound, itemID)
	}
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE items SET name = ?, description = ?, updated_at = ? WHERE id = ?`,
		name, description, time.Now(), itemID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE vectors SET dims = ?, embedding = ? WHERE id = ?`,
		len(vec), float32SliceToBytes(vec), embeddingID); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteItem removes the item row and its vector entry atomically, returning
// the deleted item so callers can clean up dependent state (index entry,
// image asset, browse index).
func (s *SQLiteStore) DeleteItem(ctx context.Context, itemID string) (*models.Item, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	it, err := scanItem(tx.QueryRowContext(ctx,
		`SELECT id, container_id, name, description, image_ref, embedding_id, created_at, updated_at
		 FROM items WHERE id = ?`, itemID), itemID)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM vectors WHERE item_id = ?`, itemID); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, itemID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return it, nil
}

// HydrateByEmbeddingIDs looks up items by vector-entry id, preserving input
// order. Unknown ids are skipped: a result may legitimately shrink when an
// item was deleted between search and hydration.
func (s *SQLiteStore) HydrateByEmbeddingIDs(ctx context.Context, embeddingIDs []string) ([]*models.Item, error) {
	out := make([]*models.Item, 0, len(embeddingIDs))
	for _, eid := range embeddingIDs {
		it, err := scanItem(s.db.QueryRowContext(ctx,
			`SELECT id, container_id, name, description, image_ref, embedding_id, created_at, updated_at
			 FROM items WHERE embedding_id = ?`, eid), eid)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, it)
	}
	return out, nil
}

// AllVectors returns every stored vector entry, for index rebuild at startup.
func (s *SQLiteStore) AllVectors(ctx context.Context) ([]*models.VectorEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, item_id, dims, embedding FROM vectors`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.VectorEntry
	for rows.Next() {
		var e models.VectorEntry
		var blob []byte
		if err := rows.Scan(&e.ID, &e.ItemID, &e.Dims, &blob); err != nil {
			return nil, err
		}
		e.Vector = bytesToFloat32Slice(blob)
		out = append(out, &e)
	}
	return out, rows.Err()
}

// CreateImport inserts a queued import-log row.
func (s *SQLiteStore) CreateImport(ctx context.Context, source, containerID string) (*models.ImportRecord, error) {
	now := time.Now()
	rec := &models.ImportRecord{
		ID:          uuid.New().String(),
		Source:      source,
		Status:      models.ImportStatusQueued,
		ContainerID: containerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO import_log (id, source, status, detail, container_id, created_at, updated_at)
		 VALUES (?, ?, ?, '', ?, ?, ?)`,
		rec.ID, rec.Source, rec.Status, rec.ContainerID, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// UpdateImport advances an import-log row to status with optional detail.
func (s *SQLiteStore) UpdateImport(ctx context.Context, id, status, detail string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE import_log SET status = ?, detail = ?, updated_at = ? WHERE id = ?`,
		status, detail, time.Now(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: import %s", ErrNotFound, id)
	}
	return nil
}

// ListImports returns the most recent import-log rows.
func (s *SQLiteStore) ListImports(ctx context.Context, limit int) ([]*models.ImportRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, status, detail, container_id, created_at, updated_at
		 FROM import_log ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.ImportRecord
	for rows.Next() {
		var r models.ImportRecord
		if err := rows.Scan(&r.ID, &r.Source, &r.Status, &r.Detail, &r.ContainerID, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// CountContainers returns the total number of containers.
func (s *SQLiteStore) CountContainers(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM containers`).Scan(&n)
	return n, err
}

// CountItems returns the total number of items.
func (s *SQLiteStore) CountItems(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items`).Scan(&n)
	return n, err
}

// CountVectors returns the total number of vector entries. Always equal to
// CountItems when the pairing invariant holds.
func (s *SQLiteStore) CountVectors(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vectors`).Scan(&n)
	return n, err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// Vector blobs are little-endian float32, 4 bytes per component.

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
