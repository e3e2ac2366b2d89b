package bitbucket

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/forgeworks/bitbucket-cloud-client/pkg/pagination"
)

// CreatePullRequestInput describes a new pull request.
type CreatePullRequestInput struct {
	Title             string
	Description       string
	SourceBranch      string
	DestinationBranch string
	CloseSourceBranch bool
	Reviewers         []string // account UUIDs
}

// MergePullRequestInput controls how a pull request is merged.
type MergePullRequestInput struct {
	Message           string
	CloseSourceBranch bool
	MergeStrategy     string // merge_commit, squash, fast_forward
}

// prPath builds the API path for one pull request.
func prPath(workspace, repoSlug string, id int) string {
	return fmt.Sprintf("%s/pullrequests/%d", repoPath(workspace, repoSlug), id)
}

// requirePR validates the identifiers every pull-request-scoped operation
// needs.
func requirePR(workspace, repoSlug string, id int) error {
	if err := requireRepo(workspace, repoSlug); err != nil {
		return err
	}
	if id < 1 {
		return fmt.Errorf("pull request id must be positive (got %d)", id)
	}
	return nil
}

// ListPullRequests lists pull requests, optionally filtered by state
// (OPEN, MERGED, DECLINED, SUPERSEDED).
func (s *Service) ListPullRequests(ctx context.Context, workspace, repoSlug, state string, opts ListOptions) (*pagination.Result, error) {
	if err := requireRepo(workspace, repoSlug); err != nil {
		return nil, err
	}

	if state != "" {
		params := make(map[string]string, len(opts.Params)+1)
		for key, value := range opts.Params {
			params[key] = value
		}
		params["state"] = state
		opts.Params = params
	}

	path := repoPath(workspace, repoSlug) + "/pullrequests"
	return s.list(ctx, path, opts, fmt.Sprintf("pull requests of %s/%s", workspace, repoSlug))
}

// GetPullRequest fetches a single pull request.
func (s *Service) GetPullRequest(ctx context.Context, workspace, repoSlug string, id int) (json.RawMessage, error) {
	if err := requirePR(workspace, repoSlug, id); err != nil {
		return nil, err
	}

	var pr json.RawMessage
	if err := s.api.GetJSON(ctx, prPath(workspace, repoSlug, id), nil, &pr); err != nil {
		return nil, fmt.Errorf("get pull request %s/%s #%d: %w", workspace, repoSlug, id, err)
	}
	return pr, nil
}

// CreatePullRequest opens a new pull request.
func (s *Service) CreatePullRequest(ctx context.Context, workspace, repoSlug string, input CreatePullRequestInput) (json.RawMessage, error) {
	if err := requireRepo(workspace, repoSlug); err != nil {
		return nil, err
	}
	if input.Title == "" {
		return nil, fmt.Errorf("title is required")
	}
	if input.SourceBranch == "" {
		return nil, fmt.Errorf("source branch is required")
	}

	body := map[string]any{
		"title": input.Title,
		"source": map[string]any{
			"branch": map[string]any{"name": input.SourceBranch},
		},
		"close_source_branch": input.CloseSourceBranch,
	}
	if input.Description != "" {
		body["description"] = input.Description
	}
	if input.DestinationBranch != "" {
		body["destination"] = map[string]any{
			"branch": map[string]any{"name": input.DestinationBranch},
		}
	}
	if len(input.Reviewers) > 0 {
		reviewers := make([]map[string]any, len(input.Reviewers))
		for i, uuid := range input.Reviewers {
			reviewers[i] = map[string]any{"uuid": uuid}
		}
		body["reviewers"] = reviewers
	}

	var pr json.RawMessage
	path := repoPath(workspace, repoSlug) + "/pullrequests"
	if err := s.api.PostJSON(ctx, path, body, &pr); err != nil {
		return nil, fmt.Errorf("create pull request in %s/%s: %w", workspace, repoSlug, err)
	}

	s.logger.Info().
		Str("workspace", workspace).
		Str("repo", repoSlug).
		Str("source", input.SourceBranch).
		Msg("Created pull request")

	return pr, nil
}

// ApprovePullRequest records the authenticated user's approval.
func (s *Service) ApprovePullRequest(ctx context.Context, workspace, repoSlug string, id int) (json.RawMessage, error) {
	if err := requirePR(workspace, repoSlug, id); err != nil {
		return nil, err
	}

	var approval json.RawMessage
	if err := s.api.PostJSON(ctx, prPath(workspace, repoSlug, id)+"/approve", nil, &approval); err != nil {
		return nil, fmt.Errorf("approve pull request %s/%s #%d: %w", workspace, repoSlug, id, err)
	}
	return approval, nil
}

// UnapprovePullRequest withdraws the authenticated user's approval.
func (s *Service) UnapprovePullRequest(ctx context.Context, workspace, repoSlug string, id int) error {
	if err := requirePR(workspace, repoSlug, id); err != nil {
		return err
	}

	if err := s.api.DeleteJSON(ctx, prPath(workspace, repoSlug, id)+"/approve"); err != nil {
		return fmt.Errorf("unapprove pull request %s/%s #%d: %w", workspace, repoSlug, id, err)
	}
	return nil
}

// DeclinePullRequest declines an open pull request.
func (s *Service) DeclinePullRequest(ctx context.Context, workspace, repoSlug string, id int) (json.RawMessage, error) {
	if err := requirePR(workspace, repoSlug, id); err != nil {
		return nil, err
	}

	var pr json.RawMessage
	if err := s.api.PostJSON(ctx, prPath(workspace, repoSlug, id)+"/decline", nil, &pr); err != nil {
		return nil, fmt.Errorf("decline pull request %s/%s #%d: %w", workspace, repoSlug, id, err)
	}
	return pr, nil
}

// MergePullRequest merges an open pull request.
func (s *Service) MergePullRequest(ctx context.Context, workspace, repoSlug string, id int, input MergePullRequestInput) (json.RawMessage, error) {
	if err := requirePR(workspace, repoSlug, id); err != nil {
		return nil, err
	}

	body := map[string]any{
		"close_source_branch": input.CloseSourceBranch,
	}
	if input.Message != "" {
		body["message"] = input.Message
	}
	if input.MergeStrategy != "" {
		body["merge_strategy"] = input.MergeStrategy
	}

	var pr json.RawMessage
	if err := s.api.PostJSON(ctx, prPath(workspace, repoSlug, id)+"/merge", body, &pr); err != nil {
		return nil, fmt.Errorf("merge pull request %s/%s #%d: %w", workspace, repoSlug, id, err)
	}

	s.logger.Info().
		Str("workspace", workspace).
		Str("repo", repoSlug).
		Int("pull_request", id).
		Msg("Merged pull request")

	return pr, nil
}

// ListPullRequestCommits lists the commits on a pull request.
func (s *Service) ListPullRequestCommits(ctx context.Context, workspace, repoSlug string, id int, opts ListOptions) (*pagination.Result, error) {
	if err := requirePR(workspace, repoSlug, id); err != nil {
		return nil, err
	}
	return s.list(ctx, prPath(workspace, repoSlug, id)+"/commits", opts,
		fmt.Sprintf("commits of %s/%s #%d", workspace, repoSlug, id))
}

// ListPullRequestComments lists the comments on a pull request.
func (s *Service) ListPullRequestComments(ctx context.Context, workspace, repoSlug string, id int, opts ListOptions) (*pagination.Result, error) {
	if err := requirePR(workspace, repoSlug, id); err != nil {
		return nil, err
	}
	return s.list(ctx, prPath(workspace, repoSlug, id)+"/comments", opts,
		fmt.Sprintf("comments of %s/%s #%d", workspace, repoSlug, id))
}

// AddPullRequestComment posts a comment on a pull request.
func (s *Service) AddPullRequestComment(ctx context.Context, workspace, repoSlug string, id int, content string) (json.RawMessage, error) {
	if err := requirePR(workspace, repoSlug, id); err != nil {
		return nil, err
	}
	if content == "" {
		return nil, fmt.Errorf("comment content is required")
	}

	body := map[string]any{
		"content": map[string]any{"raw": content},
	}

	var comment json.RawMessage
	if err := s.api.PostJSON(ctx, prPath(workspace, repoSlug, id)+"/comments", body, &comment); err != nil {
		return nil, fmt.Errorf("comment on pull request %s/%s #%d: %w", workspace, repoSlug, id, err)
	}
	return comment, nil
}

// ListPullRequestTasks lists the tasks on a pull request.
func (s *Service) ListPullRequestTasks(ctx context.Context, workspace, repoSlug string, id int, opts ListOptions) (*pagination.Result, error) {
	if err := requirePR(workspace, repoSlug, id); err != nil {
		return nil, err
	}
	return s.list(ctx, prPath(workspace, repoSlug, id)+"/tasks", opts,
		fmt.Sprintf("tasks of %s/%s #%d", workspace, repoSlug, id))
}

// ListPullRequestActivity lists the activity log of a pull request.
func (s *Service) ListPullRequestActivity(ctx context.Context, workspace, repoSlug string, id int, opts ListOptions) (*pagination.Result, error) {
	if err := requirePR(workspace, repoSlug, id); err != nil {
		return nil, err
	}
	return s.list(ctx, prPath(workspace, repoSlug, id)+"/activity", opts,
		fmt.Sprintf("activity of %s/%s #%d", workspace, repoSlug, id))
}

// ListPullRequestStatuses lists the commit statuses of a pull request.
func (s *Service) ListPullRequestStatuses(ctx context.Context, workspace, repoSlug string, id int, opts ListOptions) (*pagination.Result, error) {
	if err := requirePR(workspace, repoSlug, id); err != nil {
		return nil, err
	}
	return s.list(ctx, prPath(workspace, repoSlug, id)+"/statuses", opts,
		fmt.Sprintf("statuses of %s/%s #%d", workspace, repoSlug, id))
}

// ListPullRequestDiffstat lists the per-file diff summary of a pull request.
func (s *Service) ListPullRequestDiffstat(ctx context.Context, workspace, repoSlug string, id int, opts ListOptions) (*pagination.Result, error) {
	if err := requirePR(workspace, repoSlug, id); err != nil {
		return nil, err
	}
	return s.list(ctx, prPath(workspace, repoSlug, id)+"/diffstat", opts,
		fmt.Sprintf("diffstat of %s/%s #%d", workspace, repoSlug, id))
}
