package models

import (
	"time"

	"github.com/uptrace/bun"
)

// RunStatus represents the state of a load run or one of its steps
type RunStatus int

const (
	RunStatusPending    RunStatus = 0
	RunStatusProcessing RunStatus = 1
	RunStatusCompleted  RunStatus = 2
	RunStatusFailed     RunStatus = 3
)

func (s RunStatus) String() string {
	switch s {
	case RunStatusProcessing:
		return "processing"
	case RunStatusCompleted:
		return "completed"
	case RunStatusFailed:
		return "failed"
	default:
		return "pending"
	}
}

// LoadStep represents the individual stages of a cube load
type LoadStep int

const (
	StepDiscover          LoadStep = 0
	StepFetch             LoadStep = 1
	StepReshape           LoadStep = 2
	StepLoadNodes         LoadStep = 3
	StepLoadRelationships LoadStep = 4
)

func (s LoadStep) String() string {
	switch s {
	case StepFetch:
		return "fetch"
	case StepReshape:
		return "reshape"
	case StepLoadNodes:
		return "load-nodes"
	case StepLoadRelationships:
		return "load-relationships"
	default:
		return "discover"
	}
}

// LoadRun records one pipeline invocation for a dataset
type LoadRun struct {
	bun.BaseModel `bun:"table:load_runs,alias:lr"`

	ID           int64     `bun:",pk,autoincrement"`
	RunID        string    `bun:",unique,notnull"`
	DatasetURI   string    `bun:",notnull"`
	DatasetName  string    `bun:",nullzero"`
	Status       RunStatus `bun:",notnull"`
	Version      int       `bun:",notnull,default:1"`
	CurrentStep  LoadStep  `bun:",nullzero"`
	Dimensions   int       `bun:"dimension_count,nullzero"`
	Rows         int       `bun:"row_count,nullzero"`
	ErrorMessage string    `bun:",nullzero"`
	CreatedAt    time.Time `bun:",nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time `bun:",nullzero,notnull,default:current_timestamp"`
}

// RunStep is a detailed log of a single stage of a run
type RunStep struct {
	bun.BaseModel `bun:"table:run_steps,alias:rs"`

	ID        int64     `bun:",pk,autoincrement"`
	LoadRunID int64     `bun:",notnull"`
	LoadRun   *LoadRun  `bun:"rel:belongs-to,join:load_run_id=id"`
	Name      LoadStep  `bun:",notnull"`
	Status    RunStatus `bun:",notnull"`
	Metadata  string    `bun:",nullzero"` // JSON blob
	ErrorLog  string    `bun:",nullzero"`
	CreatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp"`
}
