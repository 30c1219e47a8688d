package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/boshu2/changeops/internal/review"
)

// ReviewsDir holds per-artifact review histories inside a change directory.
const ReviewsDir = "reviews"

// FileStore implements Store on the local filesystem, rooted at one
// change's directory.
type FileStore struct {
	// Dir is the change directory, e.g. <root>/changes/<id>.
	Dir string
}

// NewFileStore returns a store rooted at the given change directory.
func NewFileStore(changeDir string) *FileStore {
	return &FileStore{Dir: changeDir}
}

// Exists reports whether the artifact file is present on disk.
func (s *FileStore) Exists(name string) bool {
	path, err := s.artifactPath(name)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Read returns the artifact content.
func (s *FileStore) Read(name string) (string, error) {
	path, err := s.artifactPath(name)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrArtifactNotFound, name)
		}
		return "", fmt.Errorf("read artifact %s: %w", name, err)
	}
	return string(data), nil
}

// Write persists the artifact atomically: temp file, fsync, rename.
func (s *FileStore) Write(name, content string) error {
	path, err := s.artifactPath(name)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}

	tempFile, err := os.CreateTemp(dir, ".tmp-artifact-*")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	tempPath := tempFile.Name()
	cleanup := true
	defer func() {
		_ = tempFile.Close()
		if cleanup {
			_ = os.Remove(tempPath)
		}
	}()

	if _, err := tempFile.WriteString(content); err != nil {
		return fmt.Errorf("write temp artifact: %w", err)
	}
	if err := tempFile.Chmod(0644); err != nil {
		return fmt.Errorf("chmod temp artifact: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		return fmt.Errorf("fsync temp artifact: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp artifact: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("rename artifact: %w", err)
	}
	cleanup = false
	return nil
}

// AppendReview appends one review line to the artifact's history file so
// verdict provenance is never lost.
func (s *FileStore) AppendReview(name string, r review.Review) error {
	path, err := s.reviewPath(name)
	if err != nil {
		return err
	}
	if r.RecordedAt.IsZero() {
		r.RecordedAt = time.Now().UTC()
	}

	line, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal review: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create reviews dir: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open review history: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append review: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("fsync review history: %w", err)
	}
	return nil
}

// Reviews returns the artifact's review history in append order.
func (s *FileStore) Reviews(name string) ([]review.Review, error) {
	path, err := s.reviewPath(name)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open review history: %w", err)
	}
	defer file.Close()

	var reviews []review.Review
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var r review.Review
		if err := json.Unmarshal([]byte(line), &r); err != nil {
			return nil, fmt.Errorf("decode review line %d: %w", lineNum, err)
		}
		reviews = append(reviews, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan review history: %w", err)
	}
	return reviews, nil
}

// artifactPath validates the name and maps it into the change directory.
func (s *FileStore) artifactPath(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", ErrNameRequired
	}
	path := filepath.Join(s.Dir, filepath.FromSlash(name))
	rel, err := filepath.Rel(s.Dir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrNameOutsideRoot, name)
	}
	return path, nil
}

// reviewPath maps an artifact name onto its history file. The history
// tree mirrors the artifact tree under reviews/ so distinct artifact
// names can never collide on one history file.
func (s *FileStore) reviewPath(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", ErrNameRequired
	}
	base := filepath.Join(s.Dir, ReviewsDir)
	path := filepath.Join(base, filepath.FromSlash(name)+".jsonl")
	rel, err := filepath.Rel(base, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrNameOutsideRoot, name)
	}
	return path, nil
}
