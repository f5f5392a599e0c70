// Package gateway provides gateways to the GitHub and LangSmith APIs,
// abstracting away the underlying REST and GraphQL clients.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/gregjones/httpcache"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"

	"github.com/naka-gawa/velocity-dashboard/internal/domain"
)

// Fetcher defines the behavior of a gateway for fetching records from GitHub.
type Fetcher interface {
	ListRepositories(ctx context.Context, org string) ([]string, error)
	FetchPullRequests(ctx context.Context, org, repo string, since time.Time) ([]domain.PullRequestRecord, error)
	FetchCommits(ctx context.Context, org, repo string, since time.Time) ([]domain.CommitRecord, error)
}

// GitHubOptions points the gateway at a GitHub Enterprise installation.
// Zero values mean github.com.
type GitHubOptions struct {
	APIURL     string
	GraphQLURL string
}

// GitHubGateway is the concrete implementation of the Fetcher interface.
type GitHubGateway struct {
	restClient    *github.Client
	graphqlClient *githubv4.Client
	logger        *slog.Logger
}

var _ Fetcher = (*GitHubGateway)(nil)

// orgRepositoriesQuery lists the repository names of an organization.
type orgRepositoriesQuery struct {
	Organization struct {
		Repositories struct {
			PageInfo struct {
				HasNextPage bool
				EndCursor   githubv4.String
			}
			Nodes []struct {
				Name string
			}
		} `graphql:"repositories(first: 100, after: $cursor)"`
	} `graphql:"organization(login: $login)"`
}

// NewGitHubGateway is a constructor that creates a new instance of GitHubGateway.
// Requests pass through the OAuth2 token transport, the secondary rate limit
// waiter and an in-memory ETag cache, in that order.
func NewGitHubGateway(token string, opts GitHubOptions, logger *slog.Logger) (*GitHubGateway, error) {
	if token == "" {
		return nil, errors.New("github token is required")
	}
	rateLimitWaiter, err := github_ratelimit.NewRateLimitWaiter(
		httpcache.NewMemoryCacheTransport(),
		github_ratelimit.WithSingleSleepLimit(1*time.Hour, nil),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit waiter: %w", err)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := &http.Client{
		Transport: &oauth2.Transport{
			Base:   rateLimitWaiter,
			Source: ts,
		},
	}

	restClient := github.NewClient(httpClient)
	if opts.APIURL != "" {
		restClient, err = restClient.WithEnterpriseURLs(opts.APIURL, opts.APIURL)
		if err != nil {
			return nil, fmt.Errorf("failed to configure enterprise API URL: %w", err)
		}
	}
	graphqlClient := githubv4.NewClient(httpClient)
	if opts.GraphQLURL != "" {
		graphqlClient = githubv4.NewEnterpriseClient(opts.GraphQLURL, httpClient)
	}

	return &GitHubGateway{
		restClient:    restClient,
		graphqlClient: graphqlClient,
		logger:        logger,
	}, nil
}

// ListRepositories returns the names of all repositories in the organization.
func (g *GitHubGateway) ListRepositories(ctx context.Context, org string) ([]string, error) {
	g.logger.Debug("listing organization repositories", "org", org)
	variables := map[string]interface{}{
		"login":  githubv4.String(org),
		"cursor": (*githubv4.String)(nil),
	}
	var names []string
	for {
		var q orgRepositoriesQuery
		if err := g.graphqlClient.Query(ctx, &q, variables); err != nil {
			return nil, fmt.Errorf("failed to execute GraphQL query for repositories: %w", err)
		}
		for _, node := range q.Organization.Repositories.Nodes {
			if node.Name != "" {
				names = append(names, node.Name)
			}
		}
		if !q.Organization.Repositories.PageInfo.HasNextPage {
			break
		}
		variables["cursor"] = githubv4.NewString(q.Organization.Repositories.PageInfo.EndCursor)
		g.logger.Debug("fetching next page of repositories", "org", org)
	}
	g.logger.Debug("completed listing repositories", "org", org, "count", len(names))
	return names, nil
}

// FetchPullRequests returns pull requests of a repository, newest first.
// Paging stops once a page reaches pull requests created before since;
// callers still filter the window themselves.
func (g *GitHubGateway) FetchPullRequests(ctx context.Context, org, repo string, since time.Time) ([]domain.PullRequestRecord, error) {
	opts := &github.PullRequestListOptions{
		State:       "all",
		Sort:        "created",
		Direction:   "desc",
		ListOptions: github.ListOptions{PerPage: 100},
	}
	records := []domain.PullRequestRecord{}
	for {
		prs, resp, err := g.restClient.PullRequests.List(ctx, org, repo, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list pull requests for %s/%s: %w", org, repo, err)
		}
		reachedWindowStart := false
		for _, pr := range prs {
			record := mapPullRequest(pr, repo)
			if record.CreatedAt.Before(since) {
				reachedWindowStart = true
			}
			records = append(records, record)
		}
		if resp.NextPage == 0 || reachedWindowStart {
			break
		}
		opts.Page = resp.NextPage
		g.logger.Debug("fetching next page of pull requests", "repo", repo, "page", opts.Page)
	}
	g.logger.Debug("completed fetching pull requests", "repo", repo, "count", len(records))
	return records, nil
}

// FetchCommits returns commits of a repository authored since the given time.
func (g *GitHubGateway) FetchCommits(ctx context.Context, org, repo string, since time.Time) ([]domain.CommitRecord, error) {
	opts := &github.CommitsListOptions{
		Since:       since,
		ListOptions: github.ListOptions{PerPage: 100},
	}
	records := []domain.CommitRecord{}
	for {
		commits, resp, err := g.restClient.Repositories.ListCommits(ctx, org, repo, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list commits for %s/%s: %w", org, repo, err)
		}
		for _, c := range commits {
			records = append(records, mapCommit(c, repo))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
		g.logger.Debug("fetching next page of commits", "repo", repo, "page", opts.Page)
	}
	g.logger.Debug("completed fetching commits", "repo", repo, "count", len(records))
	return records, nil
}

// mapPullRequest converts a go-github PullRequest into a record.
// List responses do not carry the merged flag, so a merge timestamp decides it.
func mapPullRequest(pr *github.PullRequest, repo string) domain.PullRequestRecord {
	record := domain.PullRequestRecord{
		Repository: repo,
		Number:     pr.GetNumber(),
		Author:     pr.GetUser().GetLogin(),
		CreatedAt:  pr.GetCreatedAt().Time,
	}
	switch {
	case pr.GetState() == "open":
		record.State = domain.PRStateOpen
	case pr.MergedAt != nil:
		record.State = domain.PRStateMerged
	default:
		record.State = domain.PRStateUnmerged
	}
	if pr.MergedAt != nil {
		mergedAt := pr.GetMergedAt().Time
		record.MergedAt = &mergedAt
	}
	return record
}

func mapCommit(c *github.RepositoryCommit, repo string) domain.CommitRecord {
	record := domain.CommitRecord{
		Repository: repo,
		SHA:        c.GetSHA(),
		AuthoredAt: c.GetCommit().GetAuthor().GetDate().Time,
	}
	if c.Author != nil {
		record.Account = &domain.Account{Login: c.Author.GetLogin()}
	}
	return record
}
