package store

import (
	"context"

	"github.com/hrygo/studynotes/internal/profile"
)

// NoteChunk is one embedded piece of a study note.
type NoteChunk struct {
	ID        string
	Notebook  string
	Path      string
	FileType  string
	Content   string
	Model     string
	Embedding []float32
	CreatedTs int64
	UpdatedTs int64
}

// SearchNoteChunks is the nearest-neighbour query over indexed chunks.
type SearchNoteChunks struct {
	Vector    []float32
	Notebook  string
	FileTypes []string
	Limit     int
	MinScore  float64
}

// NoteChunkResult is a scored search hit.
type NoteChunkResult struct {
	Chunk *NoteChunk
	Score float64 // cosine similarity
}

// Driver is the persistence backend of the note index.
type Driver interface {
	Migrate(ctx context.Context) error
	UpsertNoteChunk(ctx context.Context, chunk *NoteChunk) (*NoteChunk, error)
	SearchNoteChunks(ctx context.Context, search *SearchNoteChunks) ([]*NoteChunkResult, error)
	CountNoteChunks(ctx context.Context) (int, error)
	Close() error
}

// DefaultSearchLimit applies when SearchNoteChunks.Limit is unset.
const DefaultSearchLimit = 5

// Store provides access to the note index.
type Store struct {
	profile *profile.Profile
	driver  Driver
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:  driver,
		profile: profile,
	}
}

func (s *Store) Close() error {
	return s.driver.Close()
}

func (s *Store) Migrate(ctx context.Context) error {
	return s.driver.Migrate(ctx)
}

func (s *Store) UpsertNoteChunk(ctx context.Context, chunk *NoteChunk) (*NoteChunk, error) {
	return s.driver.UpsertNoteChunk(ctx, chunk)
}

func (s *Store) SearchNoteChunks(ctx context.Context, search *SearchNoteChunks) ([]*NoteChunkResult, error) {
	if search.Limit <= 0 {
		search.Limit = DefaultSearchLimit
	}
	return s.driver.SearchNoteChunks(ctx, search)
}

func (s *Store) CountNoteChunks(ctx context.Context) (int, error) {
	return s.driver.CountNoteChunks(ctx)
}
