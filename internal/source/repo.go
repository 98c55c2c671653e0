package source

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	git "github.com/go-git/go-git/v5"

	"github.com/ragsync/ragsync/internal/errors"
)

// IsGitURL reports whether the argument looks like a cloneable repository
// URL rather than a local path.
func IsGitURL(s string) bool {
	return strings.HasPrefix(s, "https://") ||
		strings.HasPrefix(s, "http://") ||
		strings.HasPrefix(s, "git@") ||
		strings.HasSuffix(s, ".git")
}

// RepoName derives the prefix for a cloned repository from its URL: the
// last path segment with any .git suffix removed.
func RepoName(url string) string {
	name := strings.TrimSuffix(url, "/")
	name = strings.TrimSuffix(name, ".git")
	if idx := strings.LastIndexAny(name, "/:"); idx >= 0 {
		name = name[idx+1:]
	}
	return name
}

// Clone shallow-clones a repository into a temp directory and returns it as
// a single repo-scoped tree named after the repository.
func Clone(ctx context.Context, url string) (*Acquisition, error) {
	name := RepoName(url)
	if name == "" {
		return nil, errors.New(errors.ErrCodeCloneFailed,
			fmt.Sprintf("cannot derive repository name from %q", url), nil)
	}

	tempDir, err := os.MkdirTemp("", "ragsync-clone-")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeCloneFailed, err)
	}

	slog.Info("cloning repository", slog.String("url", url), slog.String("name", name))
	_, err = git.PlainCloneContext(ctx, tempDir, false, &git.CloneOptions{
		URL:          url,
		Depth:        1,
		SingleBranch: true,
	})
	if err != nil {
		_ = os.RemoveAll(tempDir)
		if ctx.Err() != nil {
			return nil, errors.Cancelled(ctx.Err())
		}
		return nil, errors.Wrap(errors.ErrCodeCloneFailed, err).
			WithDetail("url", url)
	}

	return &Acquisition{
		Trees:   []Tree{{Root: tempDir, Prefix: name + "/"}},
		tempDir: tempDir,
	}, nil
}
