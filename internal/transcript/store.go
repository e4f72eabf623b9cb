// Package transcript records the frames of each run on disk, keyed by run
// id, together with an index of recorded runs.
package transcript

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

const (
	dirName        = "transcripts"
	fileExt        = ".jsonl"
	shardPrefixLen = 2
)

var errInvalidID = errors.New("invalid run id")

// Store keeps one JSON lines file per run under <base>/transcripts, sharded
// by the first characters of the run id.
type Store struct {
	dir   string
	index *Index
}

// Open creates the transcript directory under baseDir if needed and loads
// its index.
func Open(baseDir string) (*Store, error) {
	dir := filepath.Join(baseDir, dirName)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create transcript directory: %w", err)
	}
	index, err := openIndex(dir)
	if err != nil {
		return nil, err
	}
	return &Store{dir: dir, index: index}, nil
}

// Index returns the index of recorded runs.
func (s *Store) Index() *Index { return s.index }

func (s *Store) filePath(id string) string {
	return filepath.Join(s.dir, id[:shardPrefixLen], id+fileExt)
}

func validID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w %q", errInvalidID, id)
	}
	return nil
}

// Save writes the encoded frames of a run atomically and records the run in
// the index.
func (s *Store) Save(rec Record, frames [][]byte) error {
	if err := validID(rec.RunID); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	rec.Frames = len(frames)
	err := s.write(rec.RunID, func(w io.Writer) error {
		bw := bufio.NewWriter(w)
		for _, f := range frames {
			if _, err := bw.Write(f); err != nil {
				return err
			}
			if err := bw.WriteByte('\n'); err != nil {
				return err
			}
		}
		return bw.Flush()
	})
	if err != nil {
		return fmt.Errorf("save: %w", err)
	}
	return s.index.Save(rec)
}

func (s *Store) write(id string, writeFn func(io.Writer) error) error {
	path := s.filePath(id)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if err := writeFn(tmp); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	_ = syncDir(dir)
	return nil
}

// Read opens the transcript of run id and passes it to readFn.
func (s *Store) Read(id string, readFn func(io.Reader) error) error {
	if err := validID(id); err != nil {
		return fmt.Errorf("read: %w", err)
	}
	file, err := os.Open(s.filePath(id))
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	defer file.Close() //nolint:errcheck

	if err := readFn(file); err != nil {
		return fmt.Errorf("read: %w", err)
	}
	return nil
}

// Delete removes the transcript of run id and its index record.
func (s *Store) Delete(id string) error {
	if err := validID(id); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	if err := os.Remove(s.filePath(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete: %w", err)
	}
	return s.index.Delete(id)
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close() //nolint:errcheck
	return d.Sync()
}
