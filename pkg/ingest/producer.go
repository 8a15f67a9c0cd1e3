// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/fsnotify/fsnotify"

	"github.com/kadirpekel/portfolio/pkg/logger"
)

// Discover expands glob patterns into file items, deduplicated and
// sorted by path. Directories matched by a pattern are skipped.
func Discover(patterns []string) ([]FileItem, error) {
	seen := make(map[string]bool)
	var items []FileItem

	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid glob %q: %w", pattern, err)
		}
		for _, match := range matches {
			if seen[match] {
				continue
			}
			info, err := os.Stat(match)
			if err != nil || info.IsDir() {
				continue
			}
			seen[match] = true
			items = append(items, FileItem{Path: match, Type: DetectType(match)})
		}
	}

	sort.Slice(items, func(i, j int) bool { return items[i].Path < items[j].Path })
	return items, nil
}

// Watcher emits file items for files created or modified under a
// directory tree.
type Watcher struct {
	watcher *fsnotify.Watcher
	out     chan FileItem
}

// NewWatcher starts watching root recursively. Events stream on Items
// until the context is cancelled.
func NewWatcher(ctx context.Context, root string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	w := &Watcher{watcher: fsw, out: make(chan FileItem, 100)}

	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return fsw.Add(path)
		}
		return nil
	})
	if err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", root, err)
	}

	go w.run(ctx)
	return w, nil
}

// Items is the stream of created or modified files. Closed when the
// watcher stops.
func (w *Watcher) Items() <-chan FileItem {
	return w.out
}

func (w *Watcher) run(ctx context.Context) {
	log := logger.GetLogger()
	defer close(w.out)
	defer w.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			info, err := os.Stat(event.Name)
			if err != nil {
				continue
			}
			if info.IsDir() {
				// New directories join the watch set.
				if err := w.watcher.Add(event.Name); err != nil {
					log.Warn("failed to watch new directory",
						"path", event.Name, "error", err)
				}
				continue
			}
			item := FileItem{Path: event.Name, Type: DetectType(event.Name)}
			select {
			case w.out <- item:
			case <-ctx.Done():
				return
			default:
				log.Warn("watch queue full, dropping update", "path", event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn("file watcher error", "error", err)
		}
	}
}
