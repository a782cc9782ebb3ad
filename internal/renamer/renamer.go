// Package renamer applies resolved file names to PDFs, both for watcher
// events and for one-shot scans.
package renamer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ohamelijnck/watchpdf/internal/excluder"
	"github.com/ohamelijnck/watchpdf/internal/journal"
	"github.com/ohamelijnck/watchpdf/internal/pending"
	"github.com/ohamelijnck/watchpdf/internal/resolve"
	"github.com/ohamelijnck/watchpdf/internal/utils"
)

const notificationTitle = "watchpdf"

// maxCollisions bounds the " (n)" suffix search.
const maxCollisions = 1000

// ErrUnresolved is returned when no provider produced a name.
var ErrUnresolved = errors.New("no provider produced a file name")

// Resolver proposes a new stem for a PDF. *resolve.Resolver implements it.
type Resolver interface {
	Resolve(ctx context.Context, path string) (resolve.Candidate, bool)
}

// Recorder stores applied renames. *journal.Journal implements it.
type Recorder interface {
	Record(e *journal.Entry) error
}

// Options configures a Service.
type Options struct {
	DryRun        bool
	Notifications bool
	Delay         time.Duration      // wait before processing a created file
	Excluder      *excluder.Excluder // nil excludes nothing
	Journal       Recorder           // nil disables the journal
}

// Result describes what Process did with a file.
type Result struct {
	OldPath string
	NewPath string
	Source  resolve.Source
	Renamed bool
}

// Service renames PDFs using a Resolver. Calls are serialized so two events
// never race for the same target name.
type Service struct {
	resolver Resolver
	pending  *pending.Set
	opts     Options
	mu       sync.Mutex
}

// New returns a Service. A nil pending set gets a fresh one with the default TTL.
func New(r Resolver, p *pending.Set, opts Options) *Service {
	if p == nil {
		p = pending.New(0)
	}
	return &Service{resolver: r, pending: p, opts: opts}
}

// Accepts reports whether path is a PDF that is not excluded.
func (s *Service) Accepts(path string) bool {
	if !utils.IsPDF(path) {
		return false
	}
	if s.opts.Excluder.IsExcluded(path) {
		log.Debugf("Excluded: %s", path)
		return false
	}
	return true
}

// HandleCreate processes a Create event for path. Events for files we just
// renamed ourselves are swallowed.
func (s *Service) HandleCreate(ctx context.Context, path string) {
	if !s.Accepts(path) {
		return
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	if s.pending.Consume(path) {
		log.Debugf("Ignoring own rename: %s", path)
		return
	}

	// Delay addresses browsers and file managers still writing the file
	if s.opts.Delay > 0 {
		select {
		case <-time.After(s.opts.Delay):
		case <-ctx.Done():
			return
		}
	}

	if info, err := os.Stat(path); err != nil || !info.Mode().IsRegular() {
		log.Debugf("Skipping %s: not a regular file", path)
		return
	}

	if _, err := s.Process(ctx, path); err != nil {
		if errors.Is(err, ErrUnresolved) {
			log.Infof("Could not find a name for %s", path)
			return
		}
		log.Errorf("Error renaming %s: %v", path, err)
	}
}

// Process resolves a name for path and renames it in place.
func (s *Service) Process(ctx context.Context, path string) (Result, error) {
	res := Result{OldPath: path, NewPath: path}

	candidate, ok := s.resolver.Resolve(ctx, path)
	if !ok {
		return res, ErrUnresolved
	}
	res.Source = candidate.Source

	if candidate.Stem == utils.Stem(path) {
		log.Debugf("Already named: %s", path)
		return res, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(path)
	target, err := freeTarget(path, filepath.Join(dir, candidate.Stem+filepath.Ext(path)))
	if err != nil {
		return res, err
	}
	res.NewPath = target
	if target == path {
		log.Debugf("Already named with a collision suffix: %s", path)
		return res, nil
	}

	oldName, newName := filepath.Base(path), filepath.Base(target)
	if s.opts.DryRun {
		out := fmt.Sprintf("[dry run] Would rename %s -> %s", oldName, newName)
		log.Info(out)
		utils.SendNotification(s.opts.Notifications, notificationTitle, out)
		return res, nil
	}

	// Events are handled on one goroutine, so the Create event for target is
	// only looked at after Process returns.
	if err := os.Rename(path, target); err != nil {
		out := fmt.Sprintf("Error renaming %s: %v", oldName, err)
		utils.SendNotification(s.opts.Notifications, notificationTitle, out)
		return res, fmt.Errorf("rename %s: %w", oldName, err)
	}
	res.Renamed = true
	s.pending.Add(target)

	out := fmt.Sprintf("Renamed %s -> %s", oldName, newName)
	log.WithField("source", candidate.Source).Info(out)
	utils.SendNotification(s.opts.Notifications, notificationTitle, out)

	if s.opts.Journal != nil {
		err := s.opts.Journal.Record(&journal.Entry{
			Dir:     dir,
			OldName: oldName,
			NewName: newName,
			Source:  string(candidate.Source),
		})
		if err != nil {
			log.Warnf("Failed to journal rename of %s: %v", oldName, err)
		}
	}
	return res, nil
}

// freeTarget returns target, or target with a " (n)" suffix when another file
// already has that name. A target that is the source file itself, as on
// case-insensitive filesystems, is not a collision.
func freeTarget(source, target string) (string, error) {
	ext := filepath.Ext(target)
	base := target[:len(target)-len(ext)]

	srcInfo, err := os.Stat(source)
	if err != nil {
		return "", err
	}

	candidate := target
	for n := 2; n <= maxCollisions; n++ {
		info, err := os.Stat(candidate)
		if errors.Is(err, os.ErrNotExist) {
			return candidate, nil
		}
		if err != nil {
			return "", err
		}
		if os.SameFile(srcInfo, info) {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s (%d)%s", base, n, ext)
	}
	return "", fmt.Errorf("no free name for %s", filepath.Base(target))
}
