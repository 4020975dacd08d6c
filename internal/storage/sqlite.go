package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// timeLayout is fixed-width so stored timestamps sort lexicographically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store wraps a SQLite database holding the review dataset and HITL feedback.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending migrations.
// Pass ":memory:" as dataDir for an in-memory database (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "reviewlens.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Dataset ---

// ReplaceDataset swaps the whole review dataset for the given products and
// reviews in a single transaction. Reviews whose product is not present are
// rejected by the foreign key and abort the replacement.
func (s *Store) ReplaceDataset(ctx context.Context, products []Product, reviews []Review) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning dataset transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM reviews"); err != nil {
		return fmt.Errorf("clearing reviews: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM products"); err != nil {
		return fmt.Errorf("clearing products: %w", err)
	}

	productStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO products (parent_asin, title, image_url, average_rating, rating_number, main_category, store)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing product insert: %w", err)
	}
	defer productStmt.Close()

	for _, p := range products {
		var image sql.NullString
		if p.ImageURL != "" {
			image = sql.NullString{String: p.ImageURL, Valid: true}
		}
		if _, err := productStmt.ExecContext(ctx,
			p.ParentASIN, p.Title, image, p.AverageRating, p.RatingNumber, p.MainCategory, p.StoreName,
		); err != nil {
			return fmt.Errorf("inserting product %s: %w", p.ParentASIN, err)
		}
	}

	reviewStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO reviews (parent_asin, asin, rating, title, text, timestamp, helpful_vote)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing review insert: %w", err)
	}
	defer reviewStmt.Close()

	for _, r := range reviews {
		if _, err := reviewStmt.ExecContext(ctx,
			r.ParentASIN, r.ASIN, r.Rating, r.Title, r.Text, r.Timestamp, r.HelpfulVote,
		); err != nil {
			return fmt.Errorf("inserting review for %s: %w", r.ParentASIN, err)
		}
	}

	return tx.Commit()
}

// LoadReviewRows reads every review joined with its product metadata, in
// insertion order.
func (s *Store) LoadReviewRows(ctx context.Context) ([]ReviewRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.parent_asin, r.text, r.rating, r.helpful_vote, r.timestamp,
		       p.title, p.image_url, p.average_rating, p.rating_number
		FROM reviews r
		JOIN products p ON p.parent_asin = r.parent_asin
		ORDER BY r.id ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying reviews: %w", err)
	}
	defer rows.Close()

	var result []ReviewRow
	for rows.Next() {
		var r ReviewRow
		var image sql.NullString
		if err := rows.Scan(&r.ParentASIN, &r.Text, &r.Rating, &r.HelpfulVote, &r.Timestamp,
			&r.ProductTitle, &image, &r.AverageRating, &r.RatingNumber); err != nil {
			return nil, fmt.Errorf("scanning review row: %w", err)
		}
		r.ImageURL = image.String
		result = append(result, r)
	}
	return result, rows.Err()
}

// DatasetCounts returns the number of stored products and reviews.
func (s *Store) DatasetCounts(ctx context.Context) (products int, reviews int, err error) {
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM products").Scan(&products); err != nil {
		return 0, 0, fmt.Errorf("counting products: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM reviews").Scan(&reviews); err != nil {
		return 0, 0, fmt.Errorf("counting reviews: %w", err)
	}
	return products, reviews, nil
}

// --- Feedback ---

func (s *Store) SaveFeedback(ctx context.Context, f Feedback) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO feedback (id, parent_asin, feedback, created_at) VALUES (?, ?, ?, ?)`,
		f.ID, f.ParentASIN, f.Feedback, f.CreatedAt.UTC().Format(timeLayout),
	)
	return err
}

// ListFeedback returns the most recent feedback entries, newest first.
func (s *Store) ListFeedback(ctx context.Context, limit int) ([]Feedback, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, parent_asin, feedback, created_at
		FROM feedback ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Feedback
	for rows.Next() {
		var f Feedback
		var createdAt string
		if err := rows.Scan(&f.ID, &f.ParentASIN, &f.Feedback, &createdAt); err != nil {
			return nil, err
		}
		t, err := time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		f.CreatedAt = t
		results = append(results, f)
	}
	return results, rows.Err()
}
