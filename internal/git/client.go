// Package git materializes a remote repository as a local file tree. It
// attempts a direct clone first and falls back to downloading a source
// snapshot archive, trying each configured default branch name in order.
package git

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"

	gogit "github.com/go-git/go-git/v5"

	"git.home.luguber.info/inful/apkbuilder/internal/config"
	"git.home.luguber.info/inful/apkbuilder/internal/logfields"
	"git.home.luguber.info/inful/apkbuilder/internal/workspace"
)

// Strategy identifies which acquisition approach is in progress.
type Strategy string

const (
	StrategyClone    Strategy = "clone"
	StrategySnapshot Strategy = "snapshot"
)

// Client handles repository acquisition.
type Client struct {
	apiBase  string
	branches []string
	http     *http.Client
}

// NewClient creates a new acquisition client from the source configuration.
func NewClient(cfg config.SourceConfig) *Client {
	return &Client{
		apiBase:  strings.TrimRight(cfg.ArchiveAPIBase, "/"),
		branches: cfg.Branches,
		http:     &http.Client{Timeout: cfg.DownloadTimeout},
	}
}

// Acquire materializes the repository at repoURL into the build workspace and
// returns the effective source root. notify is invoked before each strategy
// attempt so the caller can surface progress; it may be nil.
func (c *Client) Acquire(ctx context.Context, repoURL string, ws *workspace.Workspace, notify func(Strategy)) (string, error) {
	if notify != nil {
		notify(StrategyClone)
	}
	cloneErr := c.clone(ctx, repoURL, ws.RepoDir())
	if cloneErr == nil {
		return ws.RepoDir(), nil
	}
	slog.Warn("Clone failed, falling back to snapshot download",
		logfields.BuildID(ws.BuildID()), logfields.URL(repoURL), logfields.Error(cloneErr))

	if notify != nil {
		notify(StrategySnapshot)
	}
	root, snapErr := c.snapshot(ctx, repoURL, ws)
	if snapErr != nil {
		return "", &AcquisitionError{URL: repoURL, CloneErr: cloneErr, SnapshotErr: snapErr}
	}
	return root, nil
}

// clone performs a direct clone of the repository's default branch.
func (c *Client) clone(ctx context.Context, repoURL, dest string) error {
	slog.Debug("Cloning repository", logfields.URL(repoURL), logfields.Path(dest))
	if err := os.RemoveAll(dest); err != nil {
		return fmt.Errorf("failed to remove existing directory: %w", err)
	}
	_, err := gogit.PlainCloneContext(ctx, dest, false, &gogit.CloneOptions{URL: repoURL})
	if err != nil {
		return fmt.Errorf("failed to clone repository %s: %w", repoURL, err)
	}
	slog.Info("Repository cloned successfully", logfields.URL(repoURL), logfields.Path(dest))
	return nil
}

// snapshot downloads a zipball of the repository, trying each default branch
// name in order, and expands it into the workspace repo directory.
func (c *Client) snapshot(ctx context.Context, repoURL string, ws *workspace.Workspace) (string, error) {
	var lastErr error
	for _, branch := range c.branches {
		zipURL, err := c.zipballURL(repoURL, branch)
		if err != nil {
			return "", err
		}
		if err := c.download(ctx, zipURL, ws.ArchivePath()); err != nil {
			lastErr = err
			slog.Debug("Snapshot download attempt failed",
				logfields.URL(zipURL), slog.String("branch", branch), logfields.Error(err))
			continue
		}
		root, err := extractArchive(ws.ArchivePath(), ws.RepoDir())
		if err != nil {
			return "", err
		}
		slog.Info("Snapshot downloaded and expanded",
			logfields.URL(repoURL), slog.String("branch", branch), logfields.Path(root))
		return root, nil
	}
	return "", &SnapshotError{URL: repoURL, Branches: c.branches, Err: lastErr}
}

// zipballURL converts a repository URL into the API archive location for the
// given branch.
func (c *Client) zipballURL(repoURL, branch string) (string, error) {
	u, err := url.Parse(repoURL)
	if err != nil {
		return "", fmt.Errorf("invalid repository URL %s: %w", repoURL, err)
	}
	repoPath := strings.Trim(strings.TrimSuffix(u.Path, ".git"), "/")
	if repoPath == "" {
		return "", fmt.Errorf("repository URL %s has no owner/name path", repoURL)
	}
	return fmt.Sprintf("%s/repos/%s/zipball/%s", c.apiBase, repoPath, branch), nil
}

// download fetches url into dest.
func (c *Client) download(ctx context.Context, rawURL, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build snapshot request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("snapshot request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("snapshot request returned status %d", resp.StatusCode)
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("failed to write archive file: %w", err)
	}
	return nil
}
