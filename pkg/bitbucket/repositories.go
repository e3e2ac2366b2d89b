package bitbucket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/forgeworks/bitbucket-cloud-client/pkg/pagination"
)

// ListRepositories lists the repositories in a workspace.
func (s *Service) ListRepositories(ctx context.Context, workspace string, opts ListOptions) (*pagination.Result, error) {
	if workspace == "" {
		return nil, fmt.Errorf("workspace is required")
	}

	path := fmt.Sprintf("/2.0/repositories/%s", url.PathEscape(workspace))
	return s.list(ctx, path, opts, fmt.Sprintf("repositories in %s", workspace))
}

// GetRepository fetches a single repository.
func (s *Service) GetRepository(ctx context.Context, workspace, repoSlug string) (json.RawMessage, error) {
	if err := requireRepo(workspace, repoSlug); err != nil {
		return nil, err
	}

	var repo json.RawMessage
	if err := s.api.GetJSON(ctx, repoPath(workspace, repoSlug), nil, &repo); err != nil {
		return nil, fmt.Errorf("get repository %s/%s: %w", workspace, repoSlug, err)
	}
	return repo, nil
}

// ListCommits lists the commits of a repository. Pass a branch name via
// opts.Params["include"] or use the default branch.
func (s *Service) ListCommits(ctx context.Context, workspace, repoSlug string, opts ListOptions) (*pagination.Result, error) {
	if err := requireRepo(workspace, repoSlug); err != nil {
		return nil, err
	}

	path := repoPath(workspace, repoSlug) + "/commits"
	return s.list(ctx, path, opts, fmt.Sprintf("commits of %s/%s", workspace, repoSlug))
}

// ListBranches lists the branches of a repository.
func (s *Service) ListBranches(ctx context.Context, workspace, repoSlug string, opts ListOptions) (*pagination.Result, error) {
	if err := requireRepo(workspace, repoSlug); err != nil {
		return nil, err
	}

	path := repoPath(workspace, repoSlug) + "/refs/branches"
	return s.list(ctx, path, opts, fmt.Sprintf("branches of %s/%s", workspace, repoSlug))
}
