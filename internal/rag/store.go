package rag

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DocumentInfo is one registry entry, appended per ingestion. Uploading the
// same filename twice yields two entries; the registry keeps upload order.
type DocumentInfo struct {
	Filename    string `json:"filename"`
	UploadDate  string `json:"upload_date"`
	ChunksCount int    `json:"chunks_count"`
	TextLength  int    `json:"text_length"`
}

// UserData is the complete persisted state for one user: the chunk list,
// the document registry, and the vector index aligned position-for-position
// with Chunks.
type UserData struct {
	Chunks    []Chunk
	Documents []DocumentInfo
	Index     VectorIndex
}

// UserStore persists UserData under root/<userID>/ as three artifacts:
// chunks.json, documents.json, and the index serialization for the
// configured backend.
type UserStore struct {
	root    string
	backend string
	dim     int
}

func NewUserStore(root, backend string, dim int) *UserStore {
	return &UserStore{root: root, backend: backend, dim: dim}
}

const (
	chunksFile    = "chunks.json"
	documentsFile = "documents.json"
)

var errBadUserID = errors.New("invalid user id")

func (s *UserStore) userDir(userID string) (string, error) {
	if userID == "" || strings.ContainsAny(userID, `/\`) || strings.Contains(userID, "..") {
		return "", fmt.Errorf("%w: %q", errBadUserID, userID)
	}
	return filepath.Join(s.root, userID), nil
}

// Load reads the user's persisted state. A user with no saved state gets
// empty data and a fresh index, not an error.
func (s *UserStore) Load(userID string) (*UserData, error) {
	dir, err := s.userDir(userID)
	if err != nil {
		return nil, err
	}

	data := &UserData{}

	if err := readJSON(filepath.Join(dir, chunksFile), &data.Chunks); err != nil {
		return nil, fmt.Errorf("loading chunks for %s: %w", userID, err)
	}
	if err := readJSON(filepath.Join(dir, documentsFile), &data.Documents); err != nil {
		return nil, fmt.Errorf("loading documents for %s: %w", userID, err)
	}

	f, err := os.Open(filepath.Join(dir, IndexArtifact(s.backend)))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		data.Index, err = NewIndex(s.backend, s.dim)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("loading index for %s: %w", userID, err)
	default:
		defer f.Close()
		data.Index, err = LoadIndex(s.backend, s.dim, f)
		if err != nil {
			return nil, fmt.Errorf("loading index for %s: %w", userID, err)
		}
	}

	if data.Index.Len() != len(data.Chunks) {
		return nil, fmt.Errorf("user %s: index has %d vectors, chunks %d", userID, data.Index.Len(), len(data.Chunks))
	}
	return data, nil
}

// Save writes all three artifacts atomically (write to temp file, rename).
func (s *UserStore) Save(userID string, data *UserData) error {
	dir, err := s.userDir(userID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating user dir: %w", err)
	}

	if err := writeJSON(filepath.Join(dir, chunksFile), data.Chunks); err != nil {
		return fmt.Errorf("saving chunks for %s: %w", userID, err)
	}
	if err := writeJSON(filepath.Join(dir, documentsFile), data.Documents); err != nil {
		return fmt.Errorf("saving documents for %s: %w", userID, err)
	}
	if err := writeArtifact(filepath.Join(dir, IndexArtifact(s.backend)), data.Index.Save); err != nil {
		return fmt.Errorf("saving index for %s: %w", userID, err)
	}
	return nil
}

// Clear removes all persisted state for the user. Clearing a user that was
// never saved is a no-op.
func (s *UserStore) Clear(userID string) error {
	dir, err := s.userDir(userID)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("clearing data for %s: %w", userID, err)
	}
	return nil
}

// Empty returns fresh in-memory state for a new user.
func (s *UserStore) Empty() (*UserData, error) {
	ix, err := NewIndex(s.backend, s.dim)
	if err != nil {
		return nil, err
	}
	return &UserData{Index: ix}, nil
}

func readJSON(path string, v any) error {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

func writeJSON(path string, v any) error {
	return writeArtifact(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	})
}

// writeArtifact writes via a temp file in the same directory and renames it
// into place so readers never observe a partial file.
func writeArtifact(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
