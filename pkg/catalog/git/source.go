// Package git keeps the YAML catalog document in a Git repository. A Source
// clones the repository on first use, pulls on Sync, and serves the document
// through a file.Store.
package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"

	"recordkeeper-hq/keeper/pkg/catalog/file"
)

// Config describes the repository holding the catalog.
type Config struct {
	Repository string        // Clone URL
	Branch     string        // Branch to track (default "main")
	Path       string        // Document path inside the repository (default "catalog.yaml")
	LocalDir   string        // Working copy location
	Depth      int           // Shallow clone depth, 0 for full history
	Username   string        // HTTPS basic auth user (default "git" when a token is set)
	Token      string        // HTTPS token
	Timeout    time.Duration // Clone/pull timeout (default 60s)
}

// Source is a catalog document tracked in Git.
type Source struct {
	cfg    Config
	logger *slog.Logger

	mu    sync.Mutex
	repo  *gogit.Repository
	store *file.Store
	head  string
}

// NewSource validates cfg and fills defaults. No network access happens
// until Open.
func NewSource(cfg Config) (*Source, error) {
	if cfg.Repository == "" {
		return nil, fmt.Errorf("repository URL cannot be empty")
	}
	if cfg.Branch == "" {
		cfg.Branch = "main"
	}
	if cfg.Path == "" {
		cfg.Path = "catalog.yaml"
	}
	if cfg.LocalDir == "" {
		cfg.LocalDir = filepath.Join(os.TempDir(), "keeper-catalog")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Source{
		cfg:    cfg,
		logger: slog.Default().With("component", "catalog.git"),
	}, nil
}

func (s *Source) auth() transport.AuthMethod {
	if s.cfg.Token == "" {
		return nil
	}
	user := s.cfg.Username
	if user == "" {
		user = "git"
	}
	return &http.BasicAuth{Username: user, Password: s.cfg.Token}
}

// Open clones the repository (or opens an existing working copy) and loads
// the catalog document.
func (s *Source) Open(ctx context.Context) (*file.Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store != nil {
		return s.store, nil
	}

	repo, err := s.openOrClone(ctx)
	if err != nil {
		return nil, err
	}
	s.repo = repo

	ref, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to get HEAD: %w", err)
	}
	s.head = ref.Hash().String()

	store, err := file.Open(filepath.Join(s.cfg.LocalDir, s.cfg.Path))
	if err != nil {
		return nil, err
	}
	s.store = store

	s.logger.Info("Catalog repository ready",
		"repository", s.cfg.Repository,
		"branch", s.cfg.Branch,
		"commit", s.head,
	)
	return store, nil
}

func (s *Source) openOrClone(ctx context.Context) (*gogit.Repository, error) {
	if _, err := os.Stat(filepath.Join(s.cfg.LocalDir, ".git")); err == nil {
		repo, err := gogit.PlainOpen(s.cfg.LocalDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open existing repo: %w", err)
		}
		return repo, nil
	}

	if err := os.MkdirAll(s.cfg.LocalDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create repository directory: %w", err)
	}

	cloneCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	repo, err := gogit.PlainCloneContext(cloneCtx, s.cfg.LocalDir, false, &gogit.CloneOptions{
		URL:           s.cfg.Repository,
		ReferenceName: plumbing.NewBranchReferenceName(s.cfg.Branch),
		SingleBranch:  true,
		Depth:         s.cfg.Depth,
		Auth:          s.auth(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to clone repository: %w", err)
	}
	return repo, nil
}

// Sync pulls the tracked branch and reloads the document when HEAD moved.
// It reports whether the catalog changed.
func (s *Source) Sync(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.repo == nil {
		return false, fmt.Errorf("repository not initialized, call Open() first")
	}

	worktree, err := s.repo.Worktree()
	if err != nil {
		return false, fmt.Errorf("failed to get worktree: %w", err)
	}

	pullCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	err = worktree.PullContext(pullCtx, &gogit.PullOptions{
		RemoteName:    "origin",
		ReferenceName: plumbing.NewBranchReferenceName(s.cfg.Branch),
		SingleBranch:  true,
		Auth:          s.auth(),
	})
	if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return false, fmt.Errorf("failed to pull: %w", err)
	}

	ref, err := s.repo.Head()
	if err != nil {
		return false, fmt.Errorf("failed to get HEAD: %w", err)
	}
	head := ref.Hash().String()
	if head == s.head {
		return false, nil
	}

	if err := s.store.Reload(); err != nil {
		return false, err
	}
	s.logger.Info("Catalog updated from repository", "from", s.head, "to", head)
	s.head = head
	return true, nil
}

// Commit returns the commit the loaded catalog came from.
func (s *Source) Commit() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.head
}
