// Package docs renders the AsciiDoc reference pages shipped with the client
// into HTML fragments for the renderer.
package docs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bytesparadise/libasciidoc"
	"github.com/bytesparadise/libasciidoc/pkg/configuration"
)

// ErrNotFound is returned for names that are not a page in the docs directory.
var ErrNotFound = errors.New("doc not found")

type page struct {
	html    string
	modTime time.Time
}

// Service renders and caches pages from one directory.
type Service struct {
	docsDir string
	cache   map[string]page
	mu      sync.RWMutex
}

// NewService creates a Service for docsDir.
func NewService(docsDir string) *Service {
	return &Service{
		docsDir: docsDir,
		cache:   make(map[string]page),
	}
}

// GetDoc returns the rendered page. The cache is dropped when the file
// changes, so regenerating the reference needs no restart.
func (s *Service) GetDoc(ctx context.Context, name string) (string, error) {
	if name != filepath.Base(name) || !strings.HasSuffix(name, ".adoc") {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	path := filepath.Join(s.docsDir, name)
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	s.mu.RLock()
	cached, ok := s.cache[name]
	s.mu.RUnlock()
	if ok && cached.modTime.Equal(info.ModTime()) {
		return cached.html, nil
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read doc: %w", err)
	}

	output := bytes.NewBuffer(nil)
	config := configuration.NewConfiguration(
		configuration.WithHeaderFooter(false), // renderer embeds the fragment
		configuration.WithAttribute("toc", "left"),
	)
	if _, err := libasciidoc.Convert(bytes.NewReader(data), output, config); err != nil {
		return "", fmt.Errorf("convert asciidoc: %w", err)
	}

	html := output.String()

	s.mu.Lock()
	s.cache[name] = page{html: html, modTime: info.ModTime()}
	s.mu.Unlock()

	return html, nil
}

// ListDocs returns the page names in the docs directory.
func (s *Service) ListDocs() ([]string, error) {
	entries, err := os.ReadDir(s.docsDir)
	if err != nil {
		return nil, err
	}

	docs := []string{}
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".adoc") {
			docs = append(docs, entry.Name())
		}
	}
	return docs, nil
}
