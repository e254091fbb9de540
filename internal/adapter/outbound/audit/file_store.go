// Package audit provides file-based persistence for enforcement decision
// records in JSON Lines format, with daily rotation, size caps, and
// retention cleanup.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/Suyash-Gaurav/gaas-system/internal/domain/audit"
)

// decisionFilePattern matches decision log filenames:
// decisions-YYYY-MM-DD.log or decisions-YYYY-MM-DD-N.log
var decisionFilePattern = regexp.MustCompile(`^decisions-(\d{4}-\d{2}-\d{2})(?:-(\d+))?\.log$`)

// FileStoreConfig holds configuration for the decision file store.
type FileStoreConfig struct {
	// Dir is the directory where decision log files are stored.
	Dir string
	// RetentionDays is the number of days to keep files (default 30).
	RetentionDays int
	// MaxFileSizeMB is the maximum file size before rotation (default 100).
	MaxFileSizeMB int
}

// FileStore implements audit.Store on append-only JSONL files. One file per
// day, with a numeric suffix when a day's file exceeds the size cap.
type FileStore struct {
	dir           string
	maxFileSize   int64
	retentionDays int

	mu            sync.Mutex
	currentFile   *os.File
	currentDate   string
	currentSize   int64
	currentSuffix int
	closed        bool

	logger *slog.Logger
	cancel context.CancelFunc
}

// NewFileStore creates the directory if needed, opens today's file, runs
// retention cleanup, and starts the hourly cleanup goroutine.
func NewFileStore(cfg FileStoreConfig, logger *slog.Logger) (*FileStore, error) {
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 30
	}
	if cfg.MaxFileSizeMB <= 0 {
		cfg.MaxFileSizeMB = 100
	}

	if err := os.MkdirAll(cfg.Dir, 0700); err != nil {
		return nil, fmt.Errorf("create audit directory: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &FileStore{
		dir:           cfg.Dir,
		maxFileSize:   int64(cfg.MaxFileSizeMB) * 1024 * 1024,
		retentionDays: cfg.RetentionDays,
		logger:        logger,
		cancel:        cancel,
	}

	today := time.Now().UTC().Format("2006-01-02")
	if err := s.openFor(today); err != nil {
		cancel()
		return nil, fmt.Errorf("open decision log: %w", err)
	}

	s.runCleanup()
	go s.cleanupLoop(ctx)

	return s, nil
}

// Append writes records as JSON lines, rotating by date or size as needed.
func (s *FileStore) Append(_ context.Context, records ...audit.DecisionRecord) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("decision store is closed")
	}

	for _, rec := range records {
		dateStr := rec.Timestamp.UTC().Format("2006-01-02")
		if dateStr != s.currentDate {
			if err := s.rotateLocked(dateStr, 0); err != nil {
				return fmt.Errorf("date rotation: %w", err)
			}
		}
		if s.currentSize >= s.maxFileSize {
			if err := s.rotateLocked(s.currentDate, s.currentSuffix+1); err != nil {
				return fmt.Errorf("size rotation: %w", err)
			}
		}

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal decision record: %w", err)
		}
		n, err := s.currentFile.Write(append(data, '\n'))
		if err != nil {
			return fmt.Errorf("write decision record: %w", err)
		}
		s.currentSize += int64(n)
	}

	return nil
}

// Flush syncs the current file to disk.
func (s *FileStore) Flush(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currentFile != nil {
		return s.currentFile.Sync()
	}
	return nil
}

// Close stops the cleanup goroutine and closes the current file.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.cancel()

	if s.currentFile != nil {
		_ = s.currentFile.Sync()
		err := s.currentFile.Close()
		s.currentFile = nil
		return err
	}
	return nil
}

// openFor opens the file for dateStr, resuming the highest existing suffix
// so a restart appends to the last file instead of overwriting.
func (s *FileStore) openFor(dateStr string) error {
	return s.rotateLocked(dateStr, s.highestSuffix(dateStr))
}

// rotateLocked closes the current file and opens the one for the given date
// and suffix. Must be called with s.mu held (or before the store is shared).
func (s *FileStore) rotateLocked(dateStr string, suffix int) error {
	if s.currentFile != nil {
		_ = s.currentFile.Sync()
		_ = s.currentFile.Close()
		s.currentFile = nil
	}

	path := filepath.Join(s.dir, buildFilename(dateStr, suffix))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("stat %s: %w", path, err)
	}

	s.currentFile = f
	s.currentDate = dateStr
	s.currentSize = info.Size()
	s.currentSuffix = suffix
	return nil
}

// highestSuffix returns the highest existing suffix for a date, or 0.
func (s *FileStore) highestSuffix(dateStr string) int {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0
	}

	highest := 0
	for _, e := range entries {
		date, suffix, ok := parseFilename(e.Name())
		if ok && date == dateStr && suffix > highest {
			highest = suffix
		}
	}
	return highest
}

// runCleanup deletes decision log files older than the retention period.
func (s *FileStore) runCleanup() {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.Error("decision log cleanup: failed to read directory",
			"dir", s.dir, "error", err)
		return
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -s.retentionDays)
	deleted := 0

	for _, e := range entries {
		date, _, ok := parseFilename(e.Name())
		if !ok {
			continue
		}
		fileDate, err := time.Parse("2006-01-02", date)
		if err != nil {
			continue
		}
		if fileDate.Before(cutoff) {
			if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil {
				s.logger.Error("decision log cleanup: failed to delete file",
					"file", e.Name(), "error", err)
			} else {
				deleted++
			}
		}
	}

	if deleted > 0 {
		s.logger.Info("decision log cleanup completed", "deleted", deleted)
	}
}

func (s *FileStore) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runCleanup()
		}
	}
}

func buildFilename(dateStr string, suffix int) string {
	if suffix == 0 {
		return fmt.Sprintf("decisions-%s.log", dateStr)
	}
	return fmt.Sprintf("decisions-%s-%d.log", dateStr, suffix)
}

// parseFilename extracts the date and suffix from a decision log filename.
func parseFilename(name string) (date string, suffix int, ok bool) {
	matches := decisionFilePattern.FindStringSubmatch(name)
	if matches == nil {
		return "", 0, false
	}
	if matches[2] != "" {
		n, err := strconv.Atoi(matches[2])
		if err != nil {
			return "", 0, false
		}
		suffix = n
	}
	return matches[1], suffix, true
}

// Compile-time interface verification.
var _ audit.Store = (*FileStore)(nil)
