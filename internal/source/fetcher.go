package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"

	"internship-digest/internal/domain"
)

// Cloner copies the default branch of a remote repository into dir.
// dir already exists and is empty.
type Cloner interface {
	Clone(ctx context.Context, url, dir string) error
}

type Config struct {
	RepoURL    string
	Document   string // relative to the repository root
	TempPrefix string
	TempRoot   string // "" means os.TempDir()
}

type Fetcher struct {
	cfg    Config
	cloner Cloner
}

func New(cfg Config, cloner Cloner) *Fetcher {
	if cfg.Document == "" {
		cfg.Document = "README.md"
	}
	if cfg.TempPrefix == "" {
		cfg.TempPrefix = "github_clone_"
	}
	return &Fetcher{cfg: cfg, cloner: cloner}
}

func (f *Fetcher) Name() string { return "source" }

// Snapshot is one run's private clone. Close removes it.
type Snapshot struct {
	Root         string
	DocumentPath string
	Exists       bool

	once sync.Once
	err  error
}

// Close deletes the clone. Safe to call more than once.
func (s *Snapshot) Close() error {
	if s == nil {
		return nil
	}
	s.once.Do(func() {
		s.err = os.RemoveAll(s.Root)
		if s.err == nil {
			log.Printf("[source] removed %s", s.Root)
		}
	})
	return s.err
}

// Fetch clones the repository into a fresh temporary directory and checks
// that the document is there. On error nothing is left on disk.
func (f *Fetcher) Fetch(ctx context.Context) (*Snapshot, error) {
	dir, err := os.MkdirTemp(f.cfg.TempRoot, f.cfg.TempPrefix)
	if err != nil {
		return nil, &domain.Error{Kind: domain.KindFetch, Op: "create temp dir", Path: f.cfg.TempRoot, Err: err}
	}
	snap := &Snapshot{Root: dir, DocumentPath: filepath.Join(dir, filepath.FromSlash(f.cfg.Document))}

	log.Printf("[source] cloning %s into %s", f.cfg.RepoURL, dir)
	if err := f.clone(ctx, dir); err != nil {
		_ = snap.Close()
		return nil, &domain.Error{Kind: domain.KindFetch, Op: "clone", URL: f.cfg.RepoURL, Err: err}
	}

	info, err := os.Stat(snap.DocumentPath)
	switch {
	case errors.Is(err, fs.ErrNotExist), err == nil && info.IsDir():
		_ = snap.Close()
		return nil, &domain.Error{Kind: domain.KindDocumentNotFound, Op: "locate document", Path: f.cfg.Document, URL: f.cfg.RepoURL}
	case err != nil:
		_ = snap.Close()
		return nil, &domain.Error{Kind: domain.KindRead, Op: "stat document", Path: f.cfg.Document, Err: err}
	}
	snap.Exists = true
	return snap, nil
}

func (f *Fetcher) clone(ctx context.Context, dir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.cloner == nil {
		return fmt.Errorf("no cloner configured")
	}
	return f.cloner.Clone(ctx, f.cfg.RepoURL, dir)
}
