// Package sync imports cards from registered deck sources into the card
// store. Sources are local directories or git repositories; both are walked
// for markdown and workbook decks.
package sync

import (
	"context"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/conorfennell/prepcards/internal/cardstore"
	"github.com/conorfennell/prepcards/internal/domain"
	"github.com/conorfennell/prepcards/internal/logger"
	"github.com/conorfennell/prepcards/internal/parser"
	"github.com/conorfennell/prepcards/internal/storage"
)

// GitSyncer fetches a repository into a local directory.
type GitSyncer interface {
	Sync(ctx context.Context, url, localPath string) error
}

// Report summarizes one source's reconciliation.
type Report struct {
	Source  storage.Source
	Files   int
	Parsed  int
	Added   int
	Skipped int
	Err     error // parse and fetch problems; the source may still be partly imported
}

type Syncer struct {
	db       *storage.DB
	store    *cardstore.Store
	git      GitSyncer
	reposDir string
	log      *logger.Logger
	now      func() time.Time
}

func New(db *storage.DB, store *cardstore.Store, git GitSyncer, reposDir string, log *logger.Logger) *Syncer {
	return &Syncer{
		db:       db,
		store:    store,
		git:      git,
		reposDir: reposDir,
		log:      log.With("component", "sync"),
		now:      time.Now,
	}
}

// SourceType classifies a path as a git URL or a local directory.
func SourceType(path string) string {
	if strings.HasSuffix(path, ".git") || strings.HasPrefix(path, "git@") || strings.HasPrefix(path, "https://") {
		return storage.SourceGit
	}
	return storage.SourceLocal
}

// AddSource registers a deck source. Local paths are stored absolute and must
// exist. Registering the same path twice is an error.
func (s *Syncer) AddSource(ctx context.Context, path string) (*storage.Source, error) {
	typ := SourceType(path)
	if typ == storage.SourceLocal {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
		}
		if _, err := os.Stat(abs); err != nil {
			return nil, fmt.Errorf("source %s: %w", abs, err)
		}
		path = abs
	}

	existing, err := s.db.FindSourceByPath(ctx, path)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("source %s already registered with id %d", path, existing.ID)
	}

	id, err := s.db.InsertSource(ctx, path, typ)
	if err != nil {
		return nil, err
	}
	s.log.Info("source added", "id", id, "type", typ, "path", path)
	return &storage.Source{ID: id, Path: path, Type: typ}, nil
}

// Sources lists the registered sources.
func (s *Syncer) Sources(ctx context.Context) ([]storage.Source, error) {
	return s.db.GetAllSources(ctx)
}

// RemoveSource unregisters a source. Cards already imported from it stay in
// the store.
func (s *Syncer) RemoveSource(ctx context.Context, id int64) error {
	if err := s.db.DeleteSource(ctx, id); err != nil {
		return err
	}
	s.log.Info("source removed", "id", id)
	return nil
}

// RunAll reconciles every registered source in id order.
func (s *Syncer) RunAll(ctx context.Context) ([]Report, error) {
	sources, err := s.db.GetAllSources(ctx)
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		s.log.Info("no sources configured")
		return nil, nil
	}

	reports := make([]Report, 0, len(sources))
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		rep, err := s.SyncSource(ctx, src)
		if err != nil {
			return reports, err
		}
		reports = append(reports, rep)
	}
	return reports, nil
}

// SyncSource fetches (for git) and imports one source. Only store failures
// are returned as errors; fetch and parse problems are reported in Report.Err.
func (s *Syncer) SyncSource(ctx context.Context, src storage.Source) (Report, error) {
	rep := Report{Source: src}
	s.log.Info("syncing source", "id", src.ID, "type", src.Type, "path", src.Path)

	dir := src.Path
	if src.Type == storage.SourceGit {
		local, err := gitURLToLocalPath(s.reposDir, src.Path)
		if err != nil {
			rep.Err = err
			return rep, nil
		}
		if err := s.git.Sync(ctx, src.Path, local); err != nil {
			s.log.Error("git sync failed", "url", src.Path, "error", err)
			rep.Err = err
			return rep, nil
		}
		dir = local
	}

	cards, files, parseErr := CollectCards(dir)
	rep.Files = files
	rep.Parsed = len(cards)
	rep.Err = parseErr

	res, err := s.store.Import(cards)
	if err != nil {
		return rep, fmt.Errorf("import from %s: %w", src.Path, err)
	}
	rep.Added, rep.Skipped = res.Added, res.Skipped

	if err := s.db.UpdateSourceLastScanned(ctx, src.ID, s.now()); err != nil {
		s.log.Warn("failed to update last scanned for source", "source_id", src.ID, "error", err)
	}

	s.log.Info("reconciliation complete",
		"path", dir,
		"files", rep.Files,
		"parsed_cards", rep.Parsed,
		"added", rep.Added,
		"skipped", rep.Skipped,
		"errors", len(multierr.Errors(rep.Err)),
	)
	return rep, nil
}

// CollectCards parses every deck file under root, which may also be a single
// file. Files that fail to parse are reported in the returned error and
// skipped. Hidden directories such as .git are not descended into.
func CollectCards(root string) ([]domain.Card, int, error) {
	var (
		cards []domain.Card
		files int
		errs  error
	)
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		var (
			fileCards []domain.Card
			parseErr  error
		)
		switch strings.ToLower(filepath.Ext(d.Name())) {
		case ".md":
			fileCards, parseErr = parser.ParseFile(path)
		case ".xlsx":
			fileCards, parseErr = parser.ParseWorkbook(path, parser.DefaultWorkbookConfig())
		default:
			return nil
		}
		files++
		if parseErr != nil {
			errs = multierr.Append(errs, fmt.Errorf("parsing %s: %w", path, parseErr))
			return nil
		}
		cards = append(cards, fileCards...)
		return nil
	})
	if walkErr != nil {
		return nil, files, fmt.Errorf("walking %s: %w", root, walkErr)
	}
	return cards, files, errs
}

func gitURLToLocalPath(baseDir, repoURL string) (string, error) {
	parsedURL, err := url.Parse(repoURL)
	if err != nil || (parsedURL.Scheme != "https" && parsedURL.Scheme != "http") {
		if strings.Contains(repoURL, "@") {
			parts := strings.Split(repoURL, ":")
			if len(parts) == 2 {
				hostAndUser := strings.Split(parts[0], "@")
				if len(hostAndUser) == 2 {
					host := hostAndUser[1]
					repoPath := strings.TrimSuffix(parts[1], ".git")
					return filepath.Join(baseDir, host, repoPath), nil
				}
			}
		}
		return "", fmt.Errorf("could not parse git URL: %s", repoURL)
	}

	sanitizedPath := strings.TrimSuffix(parsedURL.Path, ".git")
	return filepath.Join(baseDir, parsedURL.Host, sanitizedPath), nil
}
