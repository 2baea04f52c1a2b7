package server

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// MotdText holds the message of the day sent after login. When backed by a
// file it can be reloaded while the server runs.
type MotdText struct {
	mu       sync.RWMutex
	text     string
	fallback string
	path     string
}

// NewMotd returns a MotdText with fixed text.
func NewMotd(text string) *MotdText {
	return &MotdText{text: text, fallback: text}
}

// LoadMotd returns a MotdText read from path. fallback is used while the
// file is missing or empty.
func LoadMotd(path, fallback string) *MotdText {
	m := &MotdText{fallback: fallback, path: path}
	m.Reload()
	return m
}

// Get returns the current text.
func (m *MotdText) Get() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.text
}

// Set replaces the current text.
func (m *MotdText) Set(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.text = text
}

// Reload rereads the backing file, if any, and reports whether the file
// supplied the text.
func (m *MotdText) Reload() bool {
	if m.path == "" {
		return false
	}
	text := loadFile(m.path)
	fromFile := text != ""
	if !fromFile {
		text = m.fallback
	}
	m.Set(text)
	return fromFile
}

// loadFile reads a single text file, returning empty string on any error.
// Surrounding whitespace is trimmed.
func loadFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// Watch reloads the text whenever the backing file is written or replaced.
// It returns once the watcher is running; the watcher stops when ctx is done.
func (m *MotdText) Watch(ctx context.Context) error {
	if m.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("motd watcher: %w", err)
	}

	// Editors often replace the file, so watch the directory.
	dir := filepath.Dir(m.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	name := filepath.Base(m.path)

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
					continue
				}
				if filepath.Base(event.Name) != name {
					continue
				}
				if m.Reload() {
					log.Printf("Message of the day reloaded from %s", m.path)
				} else {
					log.Printf("Message of the day file %s is empty or missing, using default", m.path)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("Motd watcher error: %v", err)
			}
		}
	}()

	log.Printf("Watching %s for changes", m.path)
	return nil
}
