package bitbucket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"

	"github.com/forgeworks/bitbucket-cloud-client/pkg/pagination"
)

// RunPipelineInput describes a pipeline trigger. Branch selects the ref to
// run against; Pattern optionally names a custom pipeline definition.
type RunPipelineInput struct {
	Branch  string
	Pattern string
}

// pipelinePath builds the API path for one pipeline run.
func pipelinePath(workspace, repoSlug, pipelineUUID string) string {
	return fmt.Sprintf("%s/pipelines/%s", repoPath(workspace, repoSlug), url.PathEscape(pipelineUUID))
}

// requirePipeline validates the identifiers every pipeline-scoped operation
// needs.
func requirePipeline(workspace, repoSlug, pipelineUUID string) error {
	if err := requireRepo(workspace, repoSlug); err != nil {
		return err
	}
	if pipelineUUID == "" {
		return fmt.Errorf("pipeline uuid is required")
	}
	return nil
}

// ListPipelines lists the pipeline runs of a repository.
func (s *Service) ListPipelines(ctx context.Context, workspace, repoSlug string, opts ListOptions) (*pagination.Result, error) {
	if err := requireRepo(workspace, repoSlug); err != nil {
		return nil, err
	}

	path := repoPath(workspace, repoSlug) + "/pipelines/"
	return s.list(ctx, path, opts, fmt.Sprintf("pipelines of %s/%s", workspace, repoSlug))
}

// GetPipeline fetches a single pipeline run.
func (s *Service) GetPipeline(ctx context.Context, workspace, repoSlug, pipelineUUID string) (json.RawMessage, error) {
	if err := requirePipeline(workspace, repoSlug, pipelineUUID); err != nil {
		return nil, err
	}

	var pipeline json.RawMessage
	if err := s.api.GetJSON(ctx, pipelinePath(workspace, repoSlug, pipelineUUID), nil, &pipeline); err != nil {
		return nil, fmt.Errorf("get pipeline %s in %s/%s: %w", pipelineUUID, workspace, repoSlug, err)
	}
	return pipeline, nil
}

// RunPipeline triggers a pipeline on a branch.
func (s *Service) RunPipeline(ctx context.Context, workspace, repoSlug string, input RunPipelineInput) (json.RawMessage, error) {
	if err := requireRepo(workspace, repoSlug); err != nil {
		return nil, err
	}
	if input.Branch == "" {
		return nil, fmt.Errorf("branch is required")
	}

	target := map[string]any{
		"ref_type": "branch",
		"type":     "pipeline_ref_target",
		"ref_name": input.Branch,
	}
	if input.Pattern != "" {
		target["selector"] = map[string]any{
			"type":    "custom",
			"pattern": input.Pattern,
		}
	}

	var pipeline json.RawMessage
	path := repoPath(workspace, repoSlug) + "/pipelines/"
	if err := s.api.PostJSON(ctx, path, map[string]any{"target": target}, &pipeline); err != nil {
		return nil, fmt.Errorf("run pipeline on %s/%s@%s: %w", workspace, repoSlug, input.Branch, err)
	}

	s.logger.Info().
		Str("workspace", workspace).
		Str("repo", repoSlug).
		Str("branch", input.Branch).
		Msg("Triggered pipeline")

	return pipeline, nil
}

// StopPipeline halts a running pipeline.
func (s *Service) StopPipeline(ctx context.Context, workspace, repoSlug, pipelineUUID string) error {
	if err := requirePipeline(workspace, repoSlug, pipelineUUID); err != nil {
		return err
	}

	path := pipelinePath(workspace, repoSlug, pipelineUUID) + "/stopPipeline"
	if err := s.api.PostJSON(ctx, path, nil, nil); err != nil {
		return fmt.Errorf("stop pipeline %s in %s/%s: %w", pipelineUUID, workspace, repoSlug, err)
	}
	return nil
}

// ListPipelineSteps lists the steps of a pipeline run.
func (s *Service) ListPipelineSteps(ctx context.Context, workspace, repoSlug, pipelineUUID string, opts ListOptions) (*pagination.Result, error) {
	if err := requirePipeline(workspace, repoSlug, pipelineUUID); err != nil {
		return nil, err
	}

	path := pipelinePath(workspace, repoSlug, pipelineUUID) + "/steps/"
	return s.list(ctx, path, opts, fmt.Sprintf("steps of pipeline %s in %s/%s", pipelineUUID, workspace, repoSlug))
}

// GetPipelineStep fetches a single pipeline step.
func (s *Service) GetPipelineStep(ctx context.Context, workspace, repoSlug, pipelineUUID, stepUUID string) (json.RawMessage, error) {
	if err := requirePipeline(workspace, repoSlug, pipelineUUID); err != nil {
		return nil, err
	}
	if stepUUID == "" {
		return nil, fmt.Errorf("step uuid is required")
	}

	var step json.RawMessage
	path := fmt.Sprintf("%s/steps/%s", pipelinePath(workspace, repoSlug, pipelineUUID), url.PathEscape(stepUUID))
	if err := s.api.GetJSON(ctx, path, nil, &step); err != nil {
		return nil, fmt.Errorf("get step %s of pipeline %s in %s/%s: %w", stepUUID, pipelineUUID, workspace, repoSlug, err)
	}
	return step, nil
}

// GetPipelineStepLog fetches the raw log of a pipeline step. The log is
// plain text, not JSON.
func (s *Service) GetPipelineStepLog(ctx context.Context, workspace, repoSlug, pipelineUUID, stepUUID string) ([]byte, error) {
	if err := requirePipeline(workspace, repoSlug, pipelineUUID); err != nil {
		return nil, err
	}
	if stepUUID == "" {
		return nil, fmt.Errorf("step uuid is required")
	}

	path := fmt.Sprintf("%s/steps/%s/log", pipelinePath(workspace, repoSlug, pipelineUUID), url.PathEscape(stepUUID))
	resp, err := s.api.Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("get log of step %s in %s/%s: %w", stepUUID, workspace, repoSlug, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("get log of step %s in %s/%s: unexpected status %d", stepUUID, workspace, repoSlug, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read step log: %w", err)
	}
	return data, nil
}
