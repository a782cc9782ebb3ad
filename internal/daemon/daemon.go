package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/farmergreg/rfsnotify"
	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"
	"gopkg.in/fsnotify.v1"
)

// Handler is called for every created file, one call at a time.
type Handler func(ctx context.Context, path string)

// ErrNothingToWatch is returned when none of the folders could be watched.
var ErrNothingToWatch = errors.New("nothing to watch")

// Options configures the watchers.
type Options struct {
	Recursive bool
}

type folderWatcher struct {
	folder string
	events <-chan fsnotify.Event
	errs   <-chan error
	closer io.Closer
}

// Watcher owns one filesystem watcher per folder.
type Watcher struct {
	watchers []folderWatcher
}

// New starts watching folders. Folders that cannot be watched are logged and
// skipped; ErrNothingToWatch is returned if none remain.
func New(folders []string, opts Options) (*Watcher, error) {
	w := &Watcher{}
	for _, folder := range folders {
		fw, err := rfsnotify.NewWatcher()
		if err != nil {
			w.Close()
			return nil, fmt.Errorf("creating watcher: %w", err)
		}

		if opts.Recursive {
			err = fw.AddRecursive(folder)
		} else {
			err = fw.Add(folder)
		}
		if err != nil {
			log.Errorf("Cannot watch %s: %v", folder, err)
			fw.Close()
			continue
		}

		log.Infof("Watching %s", folder)
		w.watchers = append(w.watchers, folderWatcher{
			folder: folder,
			events: fw.Events,
			errs:   fw.Errors,
			closer: fw,
		})
	}

	if len(w.watchers) == 0 {
		return nil, ErrNothingToWatch
	}
	return w, nil
}

// Len returns the number of watched folders.
func (w *Watcher) Len() int {
	return len(w.watchers)
}

// Close stops every watcher.
func (w *Watcher) Close() error {
	var err error
	for _, fw := range w.watchers {
		if closeErr := fw.closer.Close(); closeErr != nil {
			err = multierr.Append(err, fmt.Errorf("closing watcher for %s: %w", fw.folder, closeErr))
		}
	}
	return err
}

// Run forwards Create events from every watcher to handle on a single
// goroutine. It blocks until ctx is done, then closes the watchers and waits
// for all goroutines to finish.
func (w *Watcher) Run(ctx context.Context, handle Handler) error {
	created := make(chan string)
	var wg sync.WaitGroup

	for _, fw := range w.watchers {
		wg.Add(1)
		go func(fw folderWatcher) {
			defer wg.Done()
			forward(ctx, fw, created)
		}(fw)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case path := <-created:
				handle(ctx, path)
			case <-ctx.Done():
				return
			}
		}
	}()

	<-ctx.Done()
	log.Info("Daemon stopping")
	err := w.Close()
	wg.Wait()
	return err
}

// forward drains the watcher until its channels are closed.
func forward(ctx context.Context, fw folderWatcher, out chan<- string) {
	events, errs := fw.events, fw.errs
	for events != nil || errs != nil {
		select {
		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if event.Op&fsnotify.Create != fsnotify.Create {
				continue
			}
			select {
			case out <- event.Name:
			case <-ctx.Done():
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			log.Errorf("Watcher error on %s: %v", fw.folder, err)
		}
	}
}

// RunDaemon watches folders until SIGINT, SIGTERM or ctx cancellation.
func RunDaemon(ctx context.Context, folders []string, opts Options, handle Handler) error {
	w, err := New(folders, opts)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Signal handling for graceful shutdown
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	go func() {
		select {
		case sig := <-signals:
			log.Infof("Received signal: %s, shutting down...", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := w.Run(ctx, handle); err != nil {
		return err
	}
	log.Info("Cleanup complete.")
	return nil
}

// Scan calls fn for every regular file under folder. Subfolders are only
// entered when recursive is set. Unreadable entries are logged and skipped.
func Scan(ctx context.Context, folder string, recursive bool, fn Handler) error {
	return filepath.WalkDir(folder, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == folder {
				return err
			}
			log.Warnf("Skipping %s: %v", path, err)
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if d.IsDir() {
			if path != folder && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		fn(ctx, path)
		return nil
	})
}
