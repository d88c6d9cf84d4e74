// Package store implements the Session Store (C2): a crash-safe,
// file-per-session persistence layer for SessionRecords, status samples,
// and their archive, rooted at {repo_root}/.para/.
package store

import "time"

// Status is the lifecycle state of a SessionRecord.
type Status string

const (
	StatusActive    Status = "Active"
	StatusReview    Status = "Review"
	StatusFinished  Status = "Finished"
	StatusCancelled Status = "Cancelled"
)

// Kind distinguishes a plain worktree session from one launched inside an
// isolated container.
type Kind string

const (
	KindWorktree  Kind = "Worktree"
	KindContainer Kind = "Container"
)

// SchemaVersion is bumped whenever the on-disk SessionRecord shape
// changes incompatibly; Load rejects records from a newer schema than it
// understands.
const SchemaVersion = 1

// Record is the persistent representation of one session.
type Record struct {
	SchemaVersion int    `json:"schema_version"`
	Name          string `json:"name"`
	Branch        string `json:"branch"`
	WorktreePath  string `json:"worktree_path"`
	BaseBranch    string `json:"base_branch"`

	CreatedAt    time.Time `json:"created_at"`
	LastModified time.Time `json:"last_modified"`

	Status Status `json:"status"`
	Kind   Kind   `json:"kind"`

	ContainerID   string `json:"container_id,omitempty"`
	InitialPrompt string `json:"initial_prompt,omitempty"`

	// Orphaned is computed at list() time, never persisted: it flags a
	// record whose worktree or branch has gone missing out from under the
	// store.
	Orphaned bool `json:"-"`
}

// TestResult is the enum StatusSample.Tests draws from.
type TestResult string

const (
	TestsPassed  TestResult = "Passed"
	TestsFailed  TestResult = "Failed"
	TestsUnknown TestResult = "Unknown"
)

// Confidence is the enum StatusSample.Confidence draws from.
type Confidence string

const (
	ConfidenceLow    Confidence = "Low"
	ConfidenceMedium Confidence = "Medium"
	ConfidenceHigh   Confidence = "High"
)

// StatusSample is the ephemeral, agent-written progress report consumed
// by the Monitor Aggregator (C7).
type StatusSample struct {
	Task       string     `json:"task"`
	Tests      TestResult `json:"tests"`
	Confidence Confidence `json:"confidence"`
	TodosDone  int        `json:"todos_done"`
	TodosTotal int        `json:"todos_total"`
	Blocked    bool       `json:"blocked"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// IntegrationState persists a paused integrate/continue operation so it
// can be resumed across process invocations.
type IntegrationState struct {
	SchemaVersion   int       `json:"schema_version"`
	Session         string    `json:"session"`
	Strategy        string    `json:"strategy"`
	Phase           string    `json:"phase"`
	ConflictedFiles []string  `json:"conflicted_files,omitempty"`
	StartedAt       time.Time `json:"started_at"`
}
