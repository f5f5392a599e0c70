package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/naka-gawa/velocity-dashboard/internal/domain"
)

const (
	runPageSize    = 100
	testRunsFilter = `has(tags, "test")`
	// LangSmith serializes timestamps without a zone; they are UTC.
	langsmithTimeLayout = "2006-01-02T15:04:05.999999"
)

// LangSmithGateway is the RunFetcher backed by the LangSmith REST API.
type LangSmithGateway struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	logger     *slog.Logger
}

var _ RunFetcher = (*LangSmithGateway)(nil)

// NewLangSmithGateway creates a gateway for the API rooted at endpoint,
// e.g. https://api.smith.langchain.com/api/v1.
func NewLangSmithGateway(apiKey, endpoint string, httpClient *http.Client, logger *slog.Logger) (*LangSmithGateway, error) {
	if apiKey == "" {
		return nil, errors.New("langsmith API key is required")
	}
	if endpoint == "" {
		return nil, errors.New("langsmith endpoint is required")
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &LangSmithGateway{
		httpClient: httpClient,
		endpoint:   strings.TrimRight(endpoint, "/"),
		apiKey:     apiKey,
		logger:     logger,
	}, nil
}

type session struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type runQueryRequest struct {
	Session   []string `json:"session"`
	RunType   string   `json:"run_type,omitempty"`
	Filter    string   `json:"filter,omitempty"`
	StartTime string   `json:"start_time"`
	Limit     int      `json:"limit"`
	Cursor    string   `json:"cursor,omitempty"`
}

type runQueryResponse struct {
	Runs    []apiRun `json:"runs"`
	Cursors struct {
		Next *string `json:"next"`
	} `json:"cursors"`
}

type apiRun struct {
	ID        string                     `json:"id"`
	Name      string                     `json:"name"`
	RunType   string                     `json:"run_type"`
	Error     *string                    `json:"error"`
	Tags      []string                   `json:"tags"`
	StartTime apiTime                    `json:"start_time"`
	EndTime   apiTime                    `json:"end_time"`
	Inputs    map[string]json.RawMessage `json:"inputs"`
	Outputs   map[string]json.RawMessage `json:"outputs"`
}

// apiTime accepts RFC 3339 timestamps, zone-less LangSmith timestamps, and null.
type apiTime struct {
	time.Time
	Valid bool
}

func (t *apiTime) UnmarshalJSON(data []byte) error {
	var s *string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == nil || *s == "" {
		*t = apiTime{}
		return nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, *s)
	if err != nil {
		parsed, err = time.ParseInLocation(langsmithTimeLayout, *s, time.UTC)
		if err != nil {
			return fmt.Errorf("invalid timestamp %q: %w", *s, err)
		}
	}
	*t = apiTime{Time: parsed.UTC(), Valid: true}
	return nil
}

func (t apiTime) ptr() *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// ListPromptRuns returns the LLM runs of a project started since the given time.
func (g *LangSmithGateway) ListPromptRuns(ctx context.Context, project string, since time.Time) ([]domain.PromptRunRecord, error) {
	runs, err := g.queryRuns(ctx, project, runQueryRequest{RunType: "llm", StartTime: formatTime(since)})
	if err != nil {
		return nil, err
	}
	records := make([]domain.PromptRunRecord, 0, len(runs))
	for _, run := range runs {
		records = append(records, domain.PromptRunRecord{
			ID:       run.ID,
			Template: promptTemplate(run.Inputs),
			Error:    run.failed(),
			Tags:     run.Tags,
		})
	}
	return records, nil
}

// ListTestRuns returns the test-tagged runs of a project started since the given time.
func (g *LangSmithGateway) ListTestRuns(ctx context.Context, project string, since time.Time) ([]domain.TestRunRecord, error) {
	runs, err := g.queryRuns(ctx, project, runQueryRequest{Filter: testRunsFilter, StartTime: formatTime(since)})
	if err != nil {
		return nil, err
	}
	records := make([]domain.TestRunRecord, 0, len(runs))
	for _, run := range runs {
		records = append(records, domain.TestRunRecord{
			ID:        run.ID,
			Name:      run.Name,
			Error:     run.failed(),
			Score:     evaluationScore(run.Outputs),
			StartTime: run.StartTime.ptr(),
			EndTime:   run.EndTime.ptr(),
		})
	}
	return records, nil
}

func (r apiRun) failed() bool {
	return r.Error != nil && *r.Error != ""
}

func (g *LangSmithGateway) queryRuns(ctx context.Context, project string, req runQueryRequest) ([]apiRun, error) {
	sessionID, err := g.resolveProject(ctx, project)
	if err != nil {
		return nil, err
	}
	req.Session = []string{sessionID}
	req.Limit = runPageSize

	var runs []apiRun
	for {
		var resp runQueryResponse
		if err := g.do(ctx, http.MethodPost, "/runs/query", req, &resp); err != nil {
			return nil, fmt.Errorf("failed to query runs for project %s: %w", project, err)
		}
		runs = append(runs, resp.Runs...)
		if resp.Cursors.Next == nil || *resp.Cursors.Next == "" {
			break
		}
		req.Cursor = *resp.Cursors.Next
		g.logger.Debug("fetching next page of runs", "project", project, "fetched", len(runs))
	}
	g.logger.Debug("completed fetching runs", "project", project, "count", len(runs))
	return runs, nil
}

func (g *LangSmithGateway) resolveProject(ctx context.Context, project string) (string, error) {
	var sessions []session
	path := "/sessions?" + url.Values{"name": {project}, "limit": {"1"}}.Encode()
	if err := g.do(ctx, http.MethodGet, path, nil, &sessions); err != nil {
		return "", fmt.Errorf("failed to look up project %s: %w", project, err)
	}
	for _, s := range sessions {
		if s.Name == project {
			return s.ID, nil
		}
	}
	return "", fmt.Errorf("project %s not found", project)
}

func (g *LangSmithGateway) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.endpoint+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("x-api-key", g.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: unexpected status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// promptTemplate derives the prompt text of an LLM run from its inputs.
func promptTemplate(inputs map[string]json.RawMessage) string {
	if raw, ok := inputs["prompts"]; ok {
		var prompts []string
		if err := json.Unmarshal(raw, &prompts); err == nil && len(prompts) > 0 {
			return prompts[0]
		}
	}
	if raw, ok := inputs["messages"]; ok && string(raw) != "null" {
		var compact bytes.Buffer
		if err := json.Compact(&compact, raw); err == nil {
			return compact.String()
		}
	}
	if raw, ok := inputs["prompt"]; ok {
		var prompt string
		if err := json.Unmarshal(raw, &prompt); err == nil {
			return prompt
		}
	}
	return ""
}

// evaluationScore reads outputs.evaluation.score.
func evaluationScore(outputs map[string]json.RawMessage) *float64 {
	raw, ok := outputs["evaluation"]
	if !ok {
		return nil
	}
	var evaluation struct {
		Score *float64 `json:"score"`
	}
	if err := json.Unmarshal(raw, &evaluation); err != nil {
		return nil
	}
	return evaluation.Score
}

func formatTime(t time.Time) string {
	return t.UTC().Format(langsmithTimeLayout)
}
