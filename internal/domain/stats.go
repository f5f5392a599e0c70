// Package domain contains the core data structures and domain logic for the application.
package domain

import "time"

// PRState is the lifecycle state of a pull request.
type PRState string

const (
	PRStateOpen     PRState = "open"
	PRStateMerged   PRState = "closed-merged"
	PRStateUnmerged PRState = "closed-unmerged"
)

// PullRequestRecord is a single pull request as fetched from the source-control platform.
type PullRequestRecord struct {
	Repository string
	Number     int
	Author     string
	State      PRState
	CreatedAt  time.Time
	// MergedAt is set only for merged pull requests.
	MergedAt *time.Time
}

// Account is the platform account linked to a commit.
type Account struct {
	Login string
}

// CommitRecord is a single commit as fetched from the source-control platform.
type CommitRecord struct {
	Repository string
	SHA        string
	// Account is nil when the commit author is not linked to a platform account.
	Account    *Account
	AuthoredAt time.Time
}

// DailyCount is the number of commits authored on a single calendar day.
type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// DailyPRCount is the number of pull requests created and merged on a single calendar day.
type DailyPRCount struct {
	Date    string `json:"date"`
	Created int    `json:"created"`
	Merged  int    `json:"merged"`
}

// DateLayout is the layout of DailyCount.Date.
const DateLayout = "2006-01-02"

// PRMetrics holds pull request statistics for a look-back window.
type PRMetrics struct {
	TotalPRs            int            `json:"total_prs"`
	MergedPRs           int            `json:"merged_prs"`
	OpenPRs             int            `json:"open_prs"`
	AvgPRCycleTimeHours float64        `json:"avg_pr_cycle_time_hours"`
	PRCycleTimes        []float64      `json:"pr_cycle_times"`
	PRsByAuthor         map[string]int `json:"prs_by_author"`
	PRsByRepo           map[string]int `json:"prs_by_repo"`
	DailyPRs            []DailyPRCount `json:"daily_prs"`
}

// CommitMetrics holds commit statistics for a look-back window.
type CommitMetrics struct {
	TotalCommits    int            `json:"total_commits"`
	CommitsByAuthor map[string]int `json:"commits_by_author"`
	CommitsByRepo   map[string]int `json:"commits_by_repo"`
	DailyCommits    []DailyCount   `json:"daily_commits"`
}

// VelocityMetrics is the dashboard-facing summary of team velocity.
type VelocityMetrics struct {
	PRCycleTimeDays    float64        `json:"pr_cycle_time_days"`
	DailyCommits       float64        `json:"daily_commits"`
	ActiveContributors int            `json:"active_contributors"`
	PRsMerged          int            `json:"prs_merged"`
	PRsOpen            int            `json:"prs_open"`
	TotalCommits       int            `json:"total_commits"`
	PRsByAuthor        map[string]int `json:"prs_by_author"`
	CommitsByAuthor    map[string]int `json:"commits_by_author"`
	DailyCommitsData   []DailyCount   `json:"daily_commits_data"`
	DailyPRsData       []DailyPRCount `json:"daily_prs_data"`
}
