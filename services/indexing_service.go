package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github/itish2003/admissions/logger"
	"github/itish2003/admissions/rag"
)

// FileIndexingService keeps the knowledge base in sync with a directory of
// documents. The source id of a file is its path relative to the directory;
// files from anywhere else are keyed by their absolute path and are never
// touched by a directory scan.
type FileIndexingService struct {
	kb        KnowledgeBase
	extractor *TextExtractor
	dir       string
}

// ScanReport counts what one directory scan did.
type ScanReport struct {
	Indexed   int `json:"indexed"`
	Unchanged int `json:"unchanged"`
	Removed   int `json:"removed"`
	Failed    int `json:"failed"`
}

func NewFileIndexingService(kb KnowledgeBase, extractor *TextExtractor, dir string) *FileIndexingService {
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	return &FileIndexingService{kb: kb, extractor: extractor, dir: dir}
}

// IngestFile extracts and ingests one file, replacing any earlier version.
func (s *FileIndexingService) IngestFile(ctx context.Context, path string) (*rag.IngestResult, error) {
	hash, err := calculateFileHash(path)
	if err != nil {
		return nil, fmt.Errorf("hashing %s: %w", path, err)
	}
	return s.ingest(ctx, path, hash)
}

func (s *FileIndexingService) ingest(ctx context.Context, path, hash string) (*rag.IngestResult, error) {
	sourceID := s.sourceID(path)
	text, err := s.extractor.ExtractTextFromFile(ctx, path)
	if err != nil {
		return nil, &rag.IngestionFailedError{
			SourceID: sourceID,
			Stage:    rag.StateReceived,
			Cause:    fmt.Errorf("%w: extracting %s: %w", rag.ErrInvalidInput, filepath.Base(path), err),
		}
	}
	return s.kb.Ingest(ctx, rag.Document{
		SourceID:    sourceID,
		Origin:      rag.OriginUpload,
		Text:        text,
		ContentHash: hash,
	})
}

// syncFile ingests path unless the catalog already holds the same content.
func (s *FileIndexingService) syncFile(ctx context.Context, path string) (bool, error) {
	hash, err := calculateFileHash(path)
	if err != nil {
		return false, fmt.Errorf("hashing %s: %w", path, err)
	}
	rec, err := s.kb.Source(ctx, s.sourceID(path))
	switch {
	case err == nil && rec.ContentHash == hash:
		return false, nil
	case err != nil && !errors.Is(err, rag.ErrSourceNotFound):
		return false, err
	}
	if _, err := s.ingest(ctx, path, hash); err != nil {
		return false, err
	}
	return true, nil
}

// ScanAndIndexDirectory indexes new and changed files and removes uploaded
// sources whose file is gone.
func (s *FileIndexingService) ScanAndIndexDirectory(ctx context.Context) (ScanReport, error) {
	var report ScanReport
	logger.Info("Starting directory scan", "dir", s.dir)

	localFiles := make(map[string]bool)
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isSupportedFile(path) {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		localFiles[s.sourceID(path)] = true

		indexed, err := s.syncFile(ctx, path)
		switch {
		case err != nil:
			report.Failed++
			logger.Error("Failed to index file", "file", path, "error", err)
		case indexed:
			report.Indexed++
		default:
			report.Unchanged++
		}
		return nil
	})
	if err != nil {
		return report, fmt.Errorf("walking %s: %w", s.dir, err)
	}

	records, err := s.kb.Sources(ctx)
	if err != nil {
		return report, fmt.Errorf("listing sources: %w", err)
	}
	for _, rec := range records {
		if !s.ownsSource(rec) || localFiles[rec.SourceID] {
			continue
		}
		logger.Info("File deleted, removing from index", "source_id", rec.SourceID)
		if err := s.kb.DeleteSource(ctx, rec.SourceID); err != nil {
			report.Failed++
			logger.Error("Failed to delete source", "source_id", rec.SourceID, "error", err)
			continue
		}
		report.Removed++
	}

	logger.Info("Directory scan finished",
		"indexed", report.Indexed, "unchanged", report.Unchanged,
		"removed", report.Removed, "failed", report.Failed)
	return report, nil
}

// WatchDirectory re-indexes files as they change until ctx is cancelled.
func (s *FileIndexingService) WatchDirectory(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(s.dir); err != nil {
		return fmt.Errorf("watching %s: %w", s.dir, err)
	}
	logger.Info("Watching directory", "dir", s.dir)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			s.handleEvent(ctx, event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("Watcher error", "error", err)
		case <-ctx.Done():
			logger.Info("Context cancelled, shutting down watcher")
			return nil
		}
	}
}

func (s *FileIndexingService) handleEvent(ctx context.Context, event fsnotify.Event) {
	if !isSupportedFile(event.Name) {
		return
	}
	logger.Debug("Watcher event", "event", event.String())

	switch {
	case event.Has(fsnotify.Write) || event.Has(fsnotify.Create):
		if _, err := s.syncFile(ctx, event.Name); err != nil {
			logger.Error("Failed to index file", "file", event.Name, "error", err)
		}
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		id := s.sourceID(event.Name)
		logger.Info("File removed, removing from index", "source_id", id)
		if err := s.kb.DeleteSource(ctx, id); err != nil {
			logger.Error("Failed to delete source", "source_id", id, "error", err)
		}
	}
}

func (s *FileIndexingService) sourceID(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	rel, err := filepath.Rel(s.dir, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(abs)
	}
	return filepath.ToSlash(rel)
}

// ownsSource reports whether rec was produced from a file in the directory,
// as opposed to text posted directly, a crawled page or a file ingested from
// elsewhere.
func (s *FileIndexingService) ownsSource(rec rag.SourceRecord) bool {
	return rec.Origin == rag.OriginUpload &&
		isSupportedFile(rec.SourceID) &&
		!strings.HasPrefix(rec.SourceID, "/") &&
		!filepath.IsAbs(filepath.FromSlash(rec.SourceID))
}

func isSupportedFile(path string) bool {
	return SupportedExtension(path) && !strings.HasPrefix(filepath.Base(path), ".")
}

func calculateFileHash(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()
	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
