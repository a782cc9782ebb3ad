// Package app wires the configuration to the rename pipeline and holds the
// logic behind the CLI commands.
package app

import (
	"context"
	"errors"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/ohamelijnck/watchpdf/internal/bib"
	"github.com/ohamelijnck/watchpdf/internal/config"
	"github.com/ohamelijnck/watchpdf/internal/daemon"
	"github.com/ohamelijnck/watchpdf/internal/excluder"
	"github.com/ohamelijnck/watchpdf/internal/heuristic"
	"github.com/ohamelijnck/watchpdf/internal/journal"
	"github.com/ohamelijnck/watchpdf/internal/pdftext"
	"github.com/ohamelijnck/watchpdf/internal/pending"
	"github.com/ohamelijnck/watchpdf/internal/renamer"
	"github.com/ohamelijnck/watchpdf/internal/resolve"
)

// Overrides are command line settings that win over the config file.
type Overrides struct {
	DryRun        bool
	Notifications *bool
}

// Pipeline is everything needed to rename files for one configuration.
type Pipeline struct {
	Config   *config.Config
	Resolver *resolve.Resolver
	Service  *renamer.Service
	Journal  *journal.Journal // nil in dry-run mode or when the journal could not be opened
}

// JournalPath returns the journal location for a config file.
func JournalPath(configPath string) string {
	return filepath.Join(filepath.Dir(configPath), journal.DefaultFilename)
}

// Build assembles the providers, resolver and rename service for cfg.
func Build(cfg *config.Config, configPath string, o Overrides) (*Pipeline, error) {
	ex, err := excluder.New(cfg.Exclude)
	if err != nil {
		return nil, err
	}

	client := bib.NewClient(cfg.HTTPTimeout, cfg.Mailto)

	var searcher resolve.TitleSearcher
	if cfg.HeuristicSearch {
		searcher = heuristic.New(client)
	}

	resolver, err := resolve.New(cfg.Format, bib.NewLookup(client, 0), pdftext.TitleExtractor{}, searcher)
	if err != nil {
		return nil, err
	}

	opts := renamer.Options{
		DryRun:        o.DryRun,
		Notifications: cfg.Notifications,
		Delay:         cfg.Delay,
		Excluder:      ex,
	}
	if o.Notifications != nil {
		opts.Notifications = *o.Notifications
	}

	p := &Pipeline{Config: cfg, Resolver: resolver}
	if !o.DryRun {
		j, err := journal.Open(JournalPath(configPath))
		if err != nil {
			log.Warnf("Rename journal disabled: %v", err)
		} else {
			p.Journal = j
			opts.Journal = j
		}
	}

	p.Service = renamer.New(resolver, pending.New(0), opts)
	return p, nil
}

// Summary counts the outcomes of a scan.
type Summary struct {
	Renamed    int
	Unchanged  int
	Unresolved int
	Failed     int
}

// Total returns the number of PDFs looked at.
func (s Summary) Total() int {
	return s.Renamed + s.Unchanged + s.Unresolved + s.Failed
}

func (s *Summary) add(o Summary) {
	s.Renamed += o.Renamed
	s.Unchanged += o.Unchanged
	s.Unresolved += o.Unresolved
	s.Failed += o.Failed
}

// Scan runs svc over every accepted PDF under folder.
func Scan(ctx context.Context, svc *renamer.Service, folder string, recursive bool) (Summary, error) {
	var sum Summary
	err := daemon.Scan(ctx, folder, recursive, func(ctx context.Context, path string) {
		if !svc.Accepts(path) {
			return
		}

		res, err := svc.Process(ctx, path)
		switch {
		case errors.Is(err, renamer.ErrUnresolved):
			log.Infof("Could not find a name for %s", path)
			sum.Unresolved++
		case err != nil:
			log.Errorf("Error renaming %s: %v", path, err)
			sum.Failed++
		case res.NewPath != res.OldPath:
			sum.Renamed++
		default:
			sum.Unchanged++
		}
	})
	return sum, err
}

// ScanAll scans every folder, continuing past folders that fail.
func ScanAll(ctx context.Context, svc *renamer.Service, folders []string, recursive bool) (Summary, error) {
	var total Summary
	var errs error
	for _, folder := range folders {
		log.Infof("Scanning %s", folder)
		sum, err := Scan(ctx, svc, folder, recursive)
		total.add(sum)
		if err != nil {
			if ctx.Err() != nil {
				return total, ctx.Err()
			}
			log.Errorf("Scan of %s failed: %v", folder, err)
			errs = multierr.Append(errs, err)
		}
	}
	return total, errs
}
