// Package gitsource keeps local copies of card sets published in git repositories.
package gitsource

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
)

// Syncer clones and pulls deck repositories.
type Syncer struct {
	logger   *slog.Logger
	progress io.Writer
}

// NewSyncer returns a syncer. Progress output of git goes to progress when it is not nil.
func NewSyncer(logger *slog.Logger, progress io.Writer) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{logger: logger, progress: progress}
}

// Sync clones a git repository if it doesn't exist at the given path,
// or pulls the latest changes if it does.
func (s *Syncer) Sync(repoURL, localPath string) error {
	_, err := os.Stat(localPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		s.logger.Info("Cloning repository", "url", repoURL, "path", localPath)
		_, err := git.PlainClone(localPath, false, &git.CloneOptions{
			URL:      repoURL,
			Progress: s.progress,
		})
		if err != nil {
			return fmt.Errorf("failed to clone repo %s: %w", repoURL, err)
		}
		s.logger.Info("Clone successful", "path", localPath)
	case err == nil:
		s.logger.Info("Pulling latest changes", "path", localPath)
		repo, err := git.PlainOpen(localPath)
		if err != nil {
			return fmt.Errorf("failed to open existing repo at %s: %w", localPath, err)
		}

		worktree, err := repo.Worktree()
		if err != nil {
			return fmt.Errorf("failed to get worktree for repo at %s: %w", localPath, err)
		}

		err = worktree.Pull(&git.PullOptions{
			RemoteName: "origin",
			Progress:   s.progress,
		})
		if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
			return fmt.Errorf("failed to pull changes for repo at %s: %w", localPath, err)
		}
		s.logger.Info("Pull successful (or already up-to-date)", "path", localPath)
	default:
		return fmt.Errorf("error checking path %s: %w", localPath, err)
	}

	return nil
}

// LocalPath maps a repository URL to <baseDir>/<host>/<path>, so its sets get
// identities like "github.com/user/decks/HSK1/Set01". Both http(s) and scp-style
// "git@host:path" URLs are accepted.
func LocalPath(baseDir, repoURL string) (string, error) {
	parsed, err := url.Parse(repoURL)
	if err == nil && (parsed.Scheme == "https" || parsed.Scheme == "http") && parsed.Host != "" {
		return join(baseDir, parsed.Hostname(), parsed.Path)
	}

	if at := strings.Index(repoURL, "@"); at >= 0 {
		hostAndPath := repoURL[at+1:]
		if host, repoPath, ok := strings.Cut(hostAndPath, ":"); ok && host != "" {
			return join(baseDir, host, repoPath)
		}
	}
	return "", fmt.Errorf("could not parse git URL: %s", repoURL)
}

func join(baseDir, host, repoPath string) (string, error) {
	repoPath = strings.Trim(strings.TrimSuffix(repoPath, ".git"), "/")
	if repoPath == "" {
		return "", fmt.Errorf("git URL has no repository path: %s", host)
	}
	for _, part := range strings.Split(repoPath, "/") {
		if part == ".." {
			return "", fmt.Errorf("git URL path escapes the base directory: %s", repoPath)
		}
	}
	return filepath.Join(baseDir, host, filepath.FromSlash(repoPath)), nil
}
