package store

import (
	"context"
	"errors"
	"sort"
	"time"
)

// ErrNotFound is returned when a job or mutation spec does not exist.
var ErrNotFound = errors.New("not found")

// JobKind distinguishes the baseline run from mutant runs.
type JobKind string

const (
	JobKindBaseline JobKind = "baseline"
	JobKindMutant   JobKind = "mutant"
)

// JobID identifies one job within a campaign. The baseline job is always
// "baseline"; mutant jobs carry a uuid.
type JobID string

// BaselineJobID is the id of every campaign's baseline job.
const BaselineJobID JobID = "baseline"

// Mutation describes the defect injected by a mutant job.
type Mutation struct {
	Operator string `json:"operator"` // core/VariableReplacer, core/VariableInserter
	Cause    string `json:"cause"`
	Effect   string `json:"effect"`
}

// RelationResult is the per-relation entry of a result record.
type RelationResult struct {
	Relation string `json:"relation"`
	Kind     string `json:"kind"`
	Total    int    `json:"total"`
	Failures int    `json:"failures"`
	Failed   bool   `json:"failed"`
}

// FailureRecord keeps the full context of one failed test. Control and
// Treatment are nil when the corresponding run raised an evaluation error.
type FailureRecord struct {
	Relation      string         `json:"relation"`
	Cause         string         `json:"cause"`
	Output        string         `json:"output"`
	SourceValue   int            `json:"source_value"`
	FollowUpValue int            `json:"follow_up_value"`
	Others        map[string]int `json:"others"`
	Control       *float64       `json:"control,omitempty"`
	Treatment     *float64       `json:"treatment,omitempty"`
	Error         string         `json:"error,omitempty"`
}

// JobResult is the result record of one job: relation id -> outcome. It is
// the hand-off artifact between execution and scoring.
type JobResult struct {
	Campaign   string           `json:"campaign"`
	JobID      JobID            `json:"job_id"`
	Kind       JobKind          `json:"kind"`
	Mutation   *Mutation        `json:"mutation,omitempty"`
	Seed       int64            `json:"seed"`
	Relations  []RelationResult `json:"relations"`
	Failures   []FailureRecord  `json:"failures,omitempty"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
}

// Outcomes indexes the relation results by relation id.
func (j *JobResult) Outcomes() map[string]RelationResult {
	out := make(map[string]RelationResult, len(j.Relations))
	for _, r := range j.Relations {
		out[r.Relation] = r
	}
	return out
}

// FailedCount returns the number of failed relations.
func (j *JobResult) FailedCount() int {
	n := 0
	for _, r := range j.Relations {
		if r.Failed {
			n++
		}
	}
	return n
}

// SortRelations orders the relation results by id so records compare and
// digest deterministically.
func (j *JobResult) SortRelations() {
	sort.Slice(j.Relations, func(a, b int) bool {
		return j.Relations[a].Relation < j.Relations[b].Relation
	})
}

// MutationSpecRecord is an encoded mutation specification for a campaign.
type MutationSpecRecord struct {
	Campaign   string    `json:"campaign"`
	Format     string    `json:"format"`
	Document   []byte    `json:"document"`
	Deletions  int       `json:"deletions"`
	Insertions int       `json:"insertions"`
	CreatedAt  time.Time `json:"created_at"`
}

// JobFilter narrows ListJobs. Zero values match everything.
type JobFilter struct {
	Campaign string
	Kind     JobKind
	Limit    int
}

// ResultStore persists result records between job execution and scoring.
type ResultStore interface {
	SaveJob(ctx context.Context, job *JobResult) error
	GetJob(ctx context.Context, campaign string, id JobID) (*JobResult, error)
	// ListJobs returns matching jobs, baseline first, then by job id.
	ListJobs(ctx context.Context, filter JobFilter) ([]*JobResult, error)
	SaveMutationSpec(ctx context.Context, spec *MutationSpecRecord) error
	GetMutationSpec(ctx context.Context, campaign string) (*MutationSpecRecord, error)
	// DeleteCampaign removes every job and the mutation spec of campaign.
	// An unknown campaign is not an error.
	DeleteCampaign(ctx context.Context, campaign string) error
	Close() error
}

// SortJobs orders jobs baseline first, then by job id.
func SortJobs(jobs []*JobResult) {
	sort.SliceStable(jobs, func(a, b int) bool {
		ja, jb := jobs[a], jobs[b]
		if ja.Campaign != jb.Campaign {
			return ja.Campaign < jb.Campaign
		}
		if (ja.Kind == JobKindBaseline) != (jb.Kind == JobKindBaseline) {
			return ja.Kind == JobKindBaseline
		}
		return ja.JobID < jb.JobID
	})
}
