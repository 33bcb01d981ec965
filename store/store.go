// Package store owns the on-disk pipeline state: uploaded files, scraped
// text assets, the relational tables, and the vector index artifacts. All
// mutation paths serialize on a single lock so a reindex can never overlap
// a delete or scrape.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"visamonk/gateway/models"
	"visamonk/gateway/worker"
)

// Vector index artifacts produced by the indexing worker.
const (
	indexFile  = "index.faiss"
	chunksFile = "chunks.pkl"
)

// Store composes the asset directories, the relational store, and the
// indexing worker behind one API.
type Store struct {
	db     *gorm.DB
	pool   worker.Pool
	logger *slog.Logger

	dataDir    string
	scrapedDir string
	vectorDir  string

	// mu serializes every pipeline-mutating operation. Reads and the chat
	// path never take it.
	mu sync.Mutex
}

// New builds a Store over the given directories.
func New(db *gorm.DB, pool worker.Pool, dataDir, scrapedDir, vectorDir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		db:         db,
		pool:       pool,
		logger:     logger,
		dataDir:    dataDir,
		scrapedDir: scrapedDir,
		vectorDir:  vectorDir,
	}
}

// ListAssets enumerates both locations, creating the scraped directory on
// first use instead of failing. The relational store file living inside the
// uploaded location is not an asset and is skipped.
func (s *Store) ListAssets() ([]models.DataAsset, error) {
	var assets []models.DataAsset

	uploaded, err := listDir(s.dataDir, models.LocationUploaded)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("list uploaded assets: %w", err)
	}
	assets = append(assets, uploaded...)

	scraped, err := listDir(s.scrapedDir, models.LocationScraped)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("list scraped assets: %w", err)
		}
		if err := os.MkdirAll(s.scrapedDir, 0o755); err != nil {
			return nil, fmt.Errorf("create scraped directory: %w", err)
		}
		s.logger.Warn("created missing scraped directory", "dir", s.scrapedDir)
	}
	assets = append(assets, scraped...)

	sort.Slice(assets, func(i, j int) bool {
		if assets[i].Location != assets[j].Location {
			return assets[i].Location < assets[j].Location
		}
		return assets[i].Name < assets[j].Name
	})
	return assets, nil
}

func listDir(dir, location string) ([]models.DataAsset, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	assets := make([]models.DataAsset, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := strings.TrimPrefix(filepath.Ext(name), ".")
		if isStoreFile(ext) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		assets = append(assets, models.DataAsset{
			Name:       name,
			Size:       info.Size(),
			Type:       strings.ToUpper(ext),
			UploadDate: info.ModTime().Format("2006-01-02"),
			Location:   location,
		})
	}
	return assets, nil
}

func isStoreFile(ext string) bool {
	switch strings.ToLower(ext) {
	case "db", "db-wal", "db-shm":
		return true
	}
	return false
}

// SaveUpload writes the file into the uploaded location, last write wins.
// It does not touch the index; assets reach the index only via Reindex.
func (s *Store) SaveUpload(name string, r io.Reader) (models.DataAsset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveUploadLocked(name, r)
}

func (s *Store) saveUploadLocked(name string, r io.Reader) (models.DataAsset, error) {
	base := filepath.Base(name)
	if base == "." || base == string(os.PathSeparator) || base == ".." {
		return models.DataAsset{}, fmt.Errorf("invalid file name %q", name)
	}
	if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
		return models.DataAsset{}, fmt.Errorf("create data directory: %w", err)
	}

	path := filepath.Join(s.dataDir, base)
	f, err := os.Create(path)
	if err != nil {
		return models.DataAsset{}, fmt.Errorf("create %s: %w", path, err)
	}
	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return models.DataAsset{}, fmt.Errorf("write %s: %w", path, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return models.DataAsset{}, err
	}
	return models.DataAsset{
		Name:       base,
		Size:       size,
		Type:       strings.ToUpper(strings.TrimPrefix(filepath.Ext(base), ".")),
		UploadDate: info.ModTime().Format("2006-01-02"),
		Location:   models.LocationUploaded,
	}, nil
}

// Upload saves the file and hands it to the file-processing worker. A
// worker that ran but could not process the file degrades the result, it
// does not undo the upload.
func (s *Store) Upload(ctx context.Context, name string, r io.Reader) (models.DataAsset, models.ProcessResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	asset, err := s.saveUploadLocked(name, r)
	if err != nil {
		return models.DataAsset{}, models.ProcessResult{}, err
	}

	payload := map[string]string{
		"filePath": filepath.Join(s.dataDir, asset.Name),
		"fileName": asset.Name,
	}
	outcome, err := s.pool.Invoke(ctx, worker.OpProcessFile, payload, worker.Options{})
	if err != nil {
		return asset, models.ProcessResult{Processed: false, Error: err.Error()}, nil
	}

	switch outcome.Status {
	case worker.StatusOK:
		var result models.ProcessResult
		if err := json.Unmarshal(outcome.Payload, &result); err != nil {
			return asset, models.ProcessResult{Processed: false, Error: "unparseable worker output"}, nil
		}
		return asset, result, nil
	case worker.StatusDegraded:
		return asset, models.ProcessResult{Processed: false, Error: "unparseable worker output"}, nil
	default:
		return asset, models.ProcessResult{Processed: false, Error: outcome.Stderr}, nil
	}
}

// Scrape drives the scraping worker, which writes text assets into the
// scraped location itself, then records the new asset census.
func (s *Store) Scrape(ctx context.Context, url string, keepOldData bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload := map[string]any{"url": url, "keepOldData": keepOldData}
	outcome, err := s.pool.Invoke(ctx, worker.OpScrape, payload, worker.Options{})
	if err != nil {
		return 0, err
	}
	switch outcome.Status {
	case worker.StatusOK:
		var result struct {
			Pages int `json:"pages"`
		}
		if err := json.Unmarshal(outcome.Payload, &result); err != nil {
			s.recordScrape(0)
			return 0, nil
		}
		s.recordScrape(result.Pages)
		return result.Pages, nil
	case worker.StatusDegraded:
		// The worker ran and may have written assets; report zero pages
		// rather than failing.
		s.recordScrape(0)
		return 0, nil
	default:
		return 0, fmt.Errorf("web scraping failed: %s", strings.TrimSpace(outcome.Stderr))
	}
}

// recordScrape re-stats the scraped location after a scrape run.
func (s *Store) recordScrape(pages int) {
	assets, err := listDir(s.scrapedDir, models.LocationScraped)
	if err != nil {
		s.logger.Warn("scraped directory census failed", "error", err)
		return
	}
	s.logger.Info("scrape recorded", "pages", pages, "scraped_assets", len(assets))
}

// DeleteAssets removes each named asset, trying the uploaded location
// first, then the scraped one. A missing name is a per-item error, never an
// abort: every requested name ends up in exactly one of deleted or errors.
func (s *Store) DeleteAssets(names []string) (int, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	var errs []string
	for _, name := range names {
		base := filepath.Base(name)
		if err := os.Remove(filepath.Join(s.dataDir, base)); err == nil {
			deleted++
			continue
		}
		if err := os.Remove(filepath.Join(s.scrapedDir, base)); err == nil {
			deleted++
			continue
		}
		errs = append(errs, fmt.Sprintf("File not found: %s", name))
	}
	return deleted, errs
}

// Reindex asks the indexing worker to rebuild the vector index from the
// current asset set. A degraded run reports zero counters instead of
// leaving callers with stale numbers.
func (s *Store) Reindex(ctx context.Context) (models.IndexState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	outcome, err := s.pool.Invoke(ctx, worker.OpReindex, nil, worker.Options{})
	if err != nil {
		return models.IndexState{}, err
	}
	switch outcome.Status {
	case worker.StatusOK:
		var state models.IndexState
		if err := json.Unmarshal(outcome.Payload, &state); err != nil {
			return models.IndexState{}, nil
		}
		return state, nil
	case worker.StatusDegraded:
		return models.IndexState{}, nil
	default:
		return models.IndexState{}, fmt.Errorf("data reindexing failed: %s", strings.TrimSpace(outcome.Stderr))
	}
}

// ClearAll wipes the relational content tables, the scraped text assets,
// and the vector index artifacts. The three steps are independent; a
// failure in one is returned as a warning and never stops the others.
func (s *Store) ClearAll() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var warnings []string

	if err := s.db.Exec("DELETE FROM universities").Error; err != nil {
		warnings = append(warnings, fmt.Sprintf("clear universities: %v", err))
	}
	if err := s.db.Exec("DELETE FROM conversation_history").Error; err != nil {
		warnings = append(warnings, fmt.Sprintf("clear conversation history: %v", err))
	}

	entries, err := os.ReadDir(s.scrapedDir)
	if err != nil {
		if !os.IsNotExist(err) {
			warnings = append(warnings, fmt.Sprintf("read scraped directory: %v", err))
		}
	} else {
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
				continue
			}
			if err := os.Remove(filepath.Join(s.scrapedDir, entry.Name())); err != nil {
				warnings = append(warnings, fmt.Sprintf("remove %s: %v", entry.Name(), err))
			}
		}
	}

	for _, artifact := range []string{indexFile, chunksFile} {
		path := filepath.Join(s.vectorDir, artifact)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			warnings = append(warnings, fmt.Sprintf("remove %s: %v", artifact, err))
		}
	}

	for _, w := range warnings {
		s.logger.Warn("clear step failed", "warning", w)
	}
	return warnings
}

// RecordContactMessage appends a contact form submission. Append-only; the
// chat path never reads this table.
func (s *Store) RecordContactMessage(name, email, message string) error {
	msg := models.ContactMessage{Name: name, Email: email, Message: message}
	if err := s.db.Create(&msg).Error; err != nil {
		return fmt.Errorf("record contact message: %w", err)
	}
	return nil
}

// SaveConversation writes one answered turn for analytics, best effort.
func (s *Store) SaveConversation(query, response string, followUps []string) error {
	record := models.ConversationRecord{Query: query, Response: response}
	if len(followUps) > 0 {
		if data, err := json.Marshal(followUps); err == nil {
			record.FollowUps = datatypes.JSON(data)
		}
	}
	if err := s.db.Create(&record).Error; err != nil {
		return fmt.Errorf("save conversation: %w", err)
	}
	return nil
}

// TopQueries reports the most frequent user queries.
func (s *Store) TopQueries(limit int) ([]models.QueryCount, error) {
	if limit <= 0 {
		limit = 10
	}
	var rows []models.QueryCount
	err := s.db.Model(&models.ConversationRecord{}).
		Select("query, COUNT(*) as count").
		Group("query").
		Order("count DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query analytics: %w", err)
	}
	return rows, nil
}
