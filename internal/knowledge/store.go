// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package knowledge persists regulatory text passages with embeddings and
// retrieves them as generation context.
package knowledge

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/permit-engine/pkg/types"
)

const (
	indexDir = "index"
	dbFile   = "permits.db"

	// Chunking parameters for ingested source documents.
	chunkSize    = 1000
	chunkOverlap = 100
)

// Passage is one stored regulatory text chunk with provenance.
type Passage struct {
	// ID is a stable identifier derived from document, section, and content.
	ID string

	// Document names the source document.
	Document string

	// Section is the fine-grained section label (e.g. "150.8.60.1").
	Section string

	// ParentSection is the coarser-grained prefix of Section.
	ParentSection string

	// Position is the passage's ordinal within its document.
	Position int

	// Content is the passage text.
	Content string

	// Embedding is the passage's vector representation.
	Embedding []float32
}

// Store manages the passage SQLite database.
type Store struct {
	db           *sql.DB
	knowledgeDir string
}

// NewStore opens or creates the passage database at
// knowledgeDir/index/permits.db, creating the schema if needed.
func NewStore(cfg types.KnowledgeConfig) (*Store, error) {
	dbDir := filepath.Join(cfg.KnowledgeDir, indexDir)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	dbPath := filepath.Join(dbDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, knowledgeDir: cfg.KnowledgeDir}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			name TEXT PRIMARY KEY,
			passages INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS passages (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			document TEXT NOT NULL REFERENCES documents(name),
			section TEXT,
			parent_section TEXT,
			position INTEGER,
			content TEXT NOT NULL,
			embedding BLOB
		)`,
		`CREATE INDEX IF NOT EXISTS idx_passages_document ON passages(document)`,
		`CREATE INDEX IF NOT EXISTS idx_passages_parent ON passages(parent_section)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// IngestSummary holds counts from an ingestion run.
type IngestSummary struct {
	Ingested int
	Skipped  int
	Failed   int
}

// Total returns the number of documents processed.
func (s IngestSummary) Total() int {
	return s.Ingested + s.Skipped + s.Failed
}

// Ingest reads .md and .txt files from dataDir, chunks them, embeds each
// chunk, and stores the passages. Already-ingested documents are skipped.
func (s *Store) Ingest(ctx context.Context, embedder Embedder, dataDir string, w io.Writer) (IngestSummary, error) {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return IngestSummary{}, fmt.Errorf("reading data directory %s: %w", dataDir, err)
	}

	var summary IngestSummary

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || (!strings.HasSuffix(name, ".md") && !strings.HasSuffix(name, ".txt")) {
			continue
		}

		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		var exists int
		if err := s.db.QueryRowContext(ctx,
			`SELECT count(*) FROM documents WHERE name = ?`, name,
		).Scan(&exists); err != nil {
			return summary, fmt.Errorf("checking document %s: %w", name, err)
		}
		if exists > 0 {
			fmt.Fprintf(w, "skipped %s\n", name)
			summary.Skipped++
			continue
		}

		content, err := os.ReadFile(filepath.Join(dataDir, name))
		if err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", name, err)
			summary.Failed++
			continue
		}
		if strings.TrimSpace(string(content)) == "" {
			fmt.Fprintf(w, "skipped %s (empty)\n", name)
			summary.Skipped++
			continue
		}

		passages := ChunkDocument(name, string(content))

		for i := range passages {
			vec, err := embedder.Embed(ctx, passages[i].Content)
			if err != nil {
				fmt.Fprintf(w, "failed  %s: embedding passage %d: %v\n", name, i, err)
				summary.Failed++
				passages = nil
				break
			}
			passages[i].Embedding = vec
		}
		if passages == nil {
			continue
		}

		if err := s.insertDocument(ctx, name, passages); err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", name, err)
			summary.Failed++
			continue
		}

		fmt.Fprintf(w, "ingested %s (%d passages)\n", name, len(passages))
		summary.Ingested++
	}

	fmt.Fprintf(w, "\ningested: %d, skipped: %d, failed: %d\n",
		summary.Ingested, summary.Skipped, summary.Failed)

	return summary, nil
}

func (s *Store) insertDocument(ctx context.Context, name string, passages []Passage) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO documents (name, passages) VALUES (?, ?)`, name, len(passages),
	); err != nil {
		return fmt.Errorf("inserting document: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO passages (id, document, section, parent_section, position, content, embedding)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range passages {
		if _, err := stmt.ExecContext(ctx,
			p.ID, p.Document, p.Section, p.ParentSection, p.Position,
			p.Content, encodeVector(p.Embedding),
		); err != nil {
			return fmt.Errorf("inserting passage %s: %w", p.ID, err)
		}
	}

	return tx.Commit()
}

// AllPassages loads every stored passage with its embedding.
func (s *Store) AllPassages(ctx context.Context) ([]Passage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document, section, parent_section, position, content, embedding
		 FROM passages ORDER BY document, position`)
	if err != nil {
		return nil, fmt.Errorf("querying passages: %w", err)
	}
	defer rows.Close()

	var passages []Passage
	for rows.Next() {
		var p Passage
		var blob []byte
		if err := rows.Scan(&p.ID, &p.Document, &p.Section, &p.ParentSection,
			&p.Position, &p.Content, &blob); err != nil {
			return nil, fmt.Errorf("scanning passage: %w", err)
		}
		p.Embedding = decodeVector(blob)
		passages = append(passages, p)
	}
	return passages, rows.Err()
}

// Count returns the number of stored passages.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM passages`).Scan(&n)
	return n, err
}

// ChunkDocument splits a source document into passages. Markdown heading
// boundaries (## or ###) start new sections; long sections are further split
// into fixed-size chunks with overlap so each passage stays embeddable.
func ChunkDocument(document, content string) []Passage {
	lines := strings.Split(content, "\n")

	type section struct {
		label string
		body  string
	}
	var sections []section
	currentLabel := ""
	var bodyLines []string

	flush := func() {
		body := strings.TrimSpace(strings.Join(bodyLines, "\n"))
		if body != "" {
			sections = append(sections, section{label: currentLabel, body: body})
		}
		bodyLines = nil
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "## ") || strings.HasPrefix(trimmed, "### ") {
			flush()
			currentLabel = SectionLabel(strings.TrimSpace(strings.TrimLeft(trimmed, "#")))
			continue
		}
		bodyLines = append(bodyLines, line)
	}
	flush()

	var passages []Passage
	position := 0
	for _, sec := range sections {
		for _, chunk := range chunkText(sec.body, chunkSize, chunkOverlap) {
			passages = append(passages, Passage{
				ID:            stableID(document, sec.label, chunk),
				Document:      document,
				Section:       sec.label,
				ParentSection: ParentSection(sec.label),
				Position:      position,
				Content:       chunk,
			})
			position++
		}
	}
	return passages
}

// chunkText splits text into fixed-size chunks with a fixed overlap.
func chunkText(text string, size, overlap int) []string {
	if len(text) <= size {
		return []string{text}
	}
	var chunks []string
	start := 0
	for start < len(text) {
		end := start + size
		if end >= len(text) {
			chunks = append(chunks, text[start:])
			break
		}
		chunks = append(chunks, text[start:end])
		start = end - overlap
	}
	return chunks
}

// SectionLabel extracts the section identifier from a heading. Headings that
// open with a dotted clause number ("150.8.60.1 Angular Planes") yield the
// number; other headings are used verbatim.
func SectionLabel(heading string) string {
	fields := strings.Fields(heading)
	if len(fields) == 0 {
		return ""
	}
	first := strings.TrimSuffix(fields[0], ".")
	if isClauseNumber(first) {
		return first
	}
	return heading
}

// ParentSection returns the coarser-grained prefix of a section label: the
// label with its last dotted component removed. Labels without a dot are
// their own parent.
func ParentSection(section string) string {
	idx := strings.LastIndex(section, ".")
	if idx < 0 {
		return section
	}
	return section[:idx]
}

// isClauseNumber reports whether s looks like a dotted clause number
// (digits separated by dots, e.g. "150.8.60.1").
func isClauseNumber(s string) bool {
	if s == "" || !strings.Contains(s, ".") {
		return false
	}
	for _, r := range s {
		if r != '.' && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// stableID derives a deterministic passage ID from document, section, and
// content. The ID is the first 12 hex characters of the SHA-256 digest.
func stableID(document, section, content string) string {
	h := sha256.New()
	h.Write([]byte(document))
	h.Write([]byte(section))
	h.Write([]byte(content))
	return fmt.Sprintf("%x", h.Sum(nil))[:12]
}

// encodeVector packs a float32 vector into a little-endian blob.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeVector unpacks a little-endian blob into a float32 vector.
func decodeVector(buf []byte) []float32 {
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}
