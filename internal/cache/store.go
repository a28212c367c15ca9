// Package cache implements the content-addressed, file-per-entry page cache.
package cache

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/JakeFAU/research-fetcher/internal/research"
)

const entryExt = ".json"

// record is the on-disk layout of a cache entry.
type record struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Content     string `json:"content"`
	FetchMethod string `json:"fetch_method"`
	FetchedAt   string `json:"fetched_at"`
}

// Listed pairs a readable entry with its key.
type Listed struct {
	Key   string
	Entry research.CacheEntry
}

// Store reads and writes cache entries below a single directory.
// It performs no locking; one run per directory is assumed.
type Store struct {
	fs     afero.Fs
	dir    string
	hasher research.Hasher
	logger *zap.Logger
}

// New builds a Store rooted at dir. The directory is created lazily on the
// first Save, so constructing a Store never touches the filesystem.
func New(fs afero.Fs, dir string, hasher research.Hasher, logger *zap.Logger) (*Store, error) {
	if fs == nil {
		return nil, errors.New("cache filesystem is required")
	}
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("cache directory is required")
	}
	if hasher == nil {
		return nil, errors.New("cache hasher is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{fs: fs, dir: filepath.Clean(dir), hasher: hasher, logger: logger}, nil
}

// Dir reports the cache root.
func (s *Store) Dir() string {
	return s.dir
}

// Key derives the cache key of a URL from its raw string.
func (s *Store) Key(rawURL string) (string, error) {
	key, err := s.hasher.Hash([]byte(rawURL))
	if err != nil {
		return "", fmt.Errorf("hash url: %w", err)
	}
	return key, nil
}

// Load returns the entry stored under key. Missing, unreadable and malformed
// files all report ok=false; corruption is a cache miss, never an error.
func (s *Store) Load(key string) (research.CacheEntry, bool) {
	path, err := s.entryPath(key)
	if err != nil {
		s.logger.Debug("cache key rejected", zap.String("key", key), zap.Error(err))
		return research.CacheEntry{}, false
	}
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Debug("cache read failed", zap.String("path", path), zap.Error(err))
		}
		return research.CacheEntry{}, false
	}
	entry, err := decodeEntry(data)
	if err != nil {
		s.logger.Debug("cache entry corrupt", zap.String("path", path), zap.Error(err))
		return research.CacheEntry{}, false
	}
	return entry, true
}

// Save writes entry under key, replacing any previous entry. The payload is
// written to a temporary file in the cache directory and renamed into place
// so readers never observe a partial entry.
func (s *Store) Save(key string, entry research.CacheEntry) error {
	path, err := s.entryPath(key)
	if err != nil {
		return err
	}
	payload, err := encodeEntry(entry)
	if err != nil {
		return err
	}
	if err := s.fs.MkdirAll(s.dir, 0o750); err != nil {
		return fmt.Errorf("create cache dir %s: %w", s.dir, err)
	}
	tmp, err := afero.TempFile(s.fs, s.dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp entry in %s: %w", s.dir, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		s.removeQuietly(tmpName)
		return fmt.Errorf("write cache entry %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		s.removeQuietly(tmpName)
		return fmt.Errorf("close cache entry %s: %w", tmpName, err)
	}
	if err := s.fs.Rename(tmpName, path); err != nil {
		s.removeQuietly(tmpName)
		return fmt.Errorf("rename cache entry into %s: %w", path, err)
	}
	return nil
}

// List returns every readable entry sorted by key, plus the number of
// entry files that could not be decoded. A missing directory is empty.
func (s *Store) List() ([]Listed, int, error) {
	infos, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("read cache dir %s: %w", s.dir, err)
	}
	var (
		out     []Listed
		skipped int
	)
	for _, info := range infos {
		name := info.Name()
		if info.IsDir() || filepath.Ext(name) != entryExt {
			continue
		}
		key := strings.TrimSuffix(name, entryExt)
		entry, ok := s.Load(key)
		if !ok {
			skipped++
			continue
		}
		out = append(out, Listed{Key: key, Entry: entry})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, skipped, nil
}

// IsExpired reports whether entry is strictly older than ttl at now.
func IsExpired(entry research.CacheEntry, ttl time.Duration, now time.Time) bool {
	return now.Sub(entry.FetchedAt) > ttl
}

// TTLFromDays converts a day count into a duration.
func TTLFromDays(days int) time.Duration {
	return time.Duration(days) * 24 * time.Hour
}

func (s *Store) entryPath(key string) (string, error) {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) {
		return "", fmt.Errorf("invalid cache key %q", key)
	}
	return filepath.Join(s.dir, key+entryExt), nil
}

func (s *Store) removeQuietly(name string) {
	if err := s.fs.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Debug("remove temp cache entry failed", zap.String("path", name), zap.Error(err))
	}
}

func encodeEntry(entry research.CacheEntry) ([]byte, error) {
	rec := record{
		URL:         entry.URL,
		Title:       entry.Title,
		Content:     entry.Content,
		FetchMethod: entry.FetchMethod,
		FetchedAt:   FormatTimestamp(entry.FetchedAt),
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		return nil, fmt.Errorf("marshal cache entry: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeEntry(data []byte) (research.CacheEntry, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return research.CacheEntry{}, fmt.Errorf("unmarshal cache entry: %w", err)
	}
	fetchedAt, err := ParseTimestamp(rec.FetchedAt)
	if err != nil {
		return research.CacheEntry{}, err
	}
	return research.CacheEntry{
		URL:         rec.URL,
		Title:       rec.Title,
		Content:     rec.Content,
		FetchMethod: rec.FetchMethod,
		FetchedAt:   fetchedAt,
	}, nil
}
