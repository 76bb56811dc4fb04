// Package watcher reports corpus changes using fsnotify. Bursts of events
// (editors write several times per save) collapse into one callback after a
// quiet period.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	pmfs "phrasematch/internal/adapter/fs"
)

// DefaultQuiet is how long the corpus must stay unchanged before a callback.
const DefaultQuiet = 500 * time.Millisecond

// Watcher watches a corpus root recursively. Only paths the walker would pick
// up trigger callbacks.
type Watcher struct {
	root   string
	walker *pmfs.Walker
	quiet  time.Duration
	log    *logrus.Entry
}

func New(root string, walker *pmfs.Walker, quiet time.Duration, log *logrus.Entry) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if quiet <= 0 {
		quiet = DefaultQuiet
	}
	return &Watcher{
		root:   abs,
		walker: walker,
		quiet:  quiet,
		log:    log.WithField("component", "watcher"),
	}, nil
}

// Run blocks until ctx is done, calling onChange with the changed corpus
// paths after each quiet period that followed at least one relevant event.
func (w *Watcher) Run(ctx context.Context, onChange func(paths []string)) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := w.addTree(fw, w.root); err != nil {
		return err
	}
	w.log.WithField("root", w.root).Info("watching corpus")

	timer := time.NewTimer(w.quiet)
	if !timer.Stop() {
		<-timer.C
	}
	pending := make(map[string]struct{})

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(fw, event.Name); err != nil {
						w.log.WithError(err).Warn("failed to watch new directory")
					}
					continue
				}
			}
			if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
				continue
			}
			if !w.relevant(event.Name) {
				continue
			}
			pending[event.Name] = struct{}{}
			timer.Reset(w.quiet)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.WithError(err).Warn("watch error")

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			pending = make(map[string]struct{})
			onChange(paths)
		}
	}
}

func (w *Watcher) relevant(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return false
	}
	return w.walker.Matches(filepath.ToSlash(rel))
}

// addTree watches dir and every subdirectory the walker does not exclude.
func (w *Watcher) addTree(fw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root {
			rel, _ := filepath.Rel(w.root, path)
			if w.walker.ExcludesDir(filepath.ToSlash(rel)) {
				return filepath.SkipDir
			}
		}
		return fw.Add(path)
	})
}
