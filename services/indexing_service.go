package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileIndexingService keeps a session's index in sync with a directory of
// study materials. Any change rebuilds the whole index from the directory.
type FileIndexingService struct {
	ragService RAGService
	loader     *Loader
	session    *Session
	debounce   time.Duration

	mu    sync.Mutex
	state map[string]string // path -> content hash of the last successful build
}

// NewFileIndexingService creates a new indexing service.
func NewFileIndexingService(ragService RAGService, loader *Loader, session *Session) *FileIndexingService {
	return &FileIndexingService{
		ragService: ragService,
		loader:     loader,
		session:    session,
		debounce:   500 * time.Millisecond,
		state:      map[string]string{},
	}
}

// WatchDirectory starts a long-running process to watch for file changes in real-time.
func (s *FileIndexingService) WatchDirectory(ctx context.Context, dirPath string) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("WATCHER ERROR: Failed to create file watcher: %v", err)
		return
	}
	defer watcher.Close()

	log.Printf("WATCHER: Watching directory: %s", dirPath)
	if err := watcher.Add(dirPath); err != nil {
		log.Printf("WATCHER ERROR: Failed to add path to watcher: %v", err)
		return
	}

	// Editors often write via temp file + rename, which fires several
	// events; coalesce them into one rescan.
	var pending <-chan time.Time
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !isSupportedFile(event.Name) {
				continue
			}
			log.Printf("WATCHER EVENT: %s", event)
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
				event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				pending = time.After(s.debounce)
			}
		case <-pending:
			pending = nil
			s.ScanAndIndexDirectory(ctx, dirPath)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("WATCHER ERROR: %v", err)
		case <-ctx.Done():
			log.Println("WATCHER: Context cancelled, shutting down watcher.")
			return
		}
	}
}

// ScanAndIndexDirectory rebuilds the session index from every supported file
// under dirPath, unless nothing changed since the last successful build.
// It reports whether a rebuild happened.
func (s *FileIndexingService) ScanAndIndexDirectory(ctx context.Context, dirPath string) bool {
	log.Printf("INDEXER: Starting directory scan for: %s", dirPath)

	localFiles := make(map[string]string)
	err := filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !isSupportedFile(path) {
			return nil
		}
		hash, err := calculateFileHash(path)
		if err != nil {
			log.Printf("INDEXER WARN: Could not hash file %s: %v", path, err)
			return nil
		}
		localFiles[path] = hash
		return nil
	})
	if err != nil {
		log.Printf("INDEXER ERROR: Error walking the path %s: %v", dirPath, err)
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sameState(s.state, localFiles) {
		log.Println("INDEXER: No changes since last build.")
		return false
	}

	paths := make([]string, 0, len(localFiles))
	for p := range localFiles {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var docs []Document
	for _, p := range paths {
		fileDocs, err := s.loader.LoadFile(ctx, p)
		if err != nil {
			log.Printf("INDEXER ERROR: Failed to load file %s: %v", p, err)
			continue
		}
		docs = append(docs, fileDocs...)
	}

	chunks, err := s.ragService.ProcessDocuments(ctx, s.session, docs)
	if err != nil {
		log.Printf("INDEXER ERROR: Rebuild from %s failed, keeping previous index: %v", dirPath, err)
		return false
	}
	s.state = localFiles
	log.Printf("INDEXER: Directory scan finished. %d files, %d chunks indexed.", len(paths), chunks)
	return true
}

func sameState(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

func isSupportedFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".txt", ".md", ".pdf":
		return true
	default:
		return false
	}
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
