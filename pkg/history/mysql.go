package history

import (
	"context"

	"github.com/stumble/whittle/pkg/clients/mysql"
)

// Schema of the journal tables.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS whittle_runs (
		id varchar(36) NOT NULL,
		target varchar(1024) NOT NULL,
		plan varchar(255) NOT NULL,
		start_size bigint NOT NULL,
		end_size bigint NOT NULL DEFAULT 0,
		rounds int NOT NULL DEFAULT 0,
		started_at datetime(3) NOT NULL,
		ended_at datetime(3) NULL,
		err text NULL,
		PRIMARY KEY (id)
	) DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS whittle_passes (
		id bigint unsigned NOT NULL AUTO_INCREMENT,
		run_id varchar(36) NOT NULL,
		round int NOT NULL,
		pass varchar(64) NOT NULL,
		transforms int NOT NULL,
		successes int NOT NULL,
		size_before bigint NOT NULL,
		size_after bigint NOT NULL,
		elapsed_ms bigint NOT NULL,
		err text NULL,
		PRIMARY KEY (id),
		KEY run_id (run_id)
	) DEFAULT CHARSET=utf8mb4`,
}

const (
	insertRunStmt  = "INSERT INTO whittle_runs (id, target, plan, start_size, started_at) VALUES (?, ?, ?, ?, ?)"
	finishRunStmt  = "UPDATE whittle_runs SET end_size = ?, rounds = ?, ended_at = ?, err = ? WHERE id = ?"
	insertPassStmt = "INSERT INTO whittle_passes (run_id, round, pass, transforms, successes, size_before, size_after, elapsed_ms, err) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)"
)

// MySQLRecorder journals reductions to mysql.
type MySQLRecorder struct {
	manager mysql.Manager
}

// NewMySQLRecorder creates the journal tables if needed.
func NewMySQLRecorder(ctx context.Context, manager mysql.Manager) (*MySQLRecorder, error) {
	if err := manager.Migrate(ctx, Schema); err != nil {
		return nil, err
	}
	return &MySQLRecorder{manager: manager}, nil
}

func (r *MySQLRecorder) Begin(ctx context.Context, run Run) error {
	_, err := r.manager.GetDBExecuter().Exec(ctx, insertRunStmt,
		run.ID, run.Target, run.Plan, run.StartSize, run.StartedAt)
	return err
}

func (r *MySQLRecorder) RecordPass(ctx context.Context, rec PassRecord) error {
	_, err := r.manager.GetDBExecuter().Exec(ctx, insertPassStmt,
		rec.RunID, rec.Round, rec.Pass, rec.Transforms, rec.Successes,
		rec.SizeBefore, rec.SizeAfter, rec.Elapsed.Milliseconds(), mysql.NonEmptyOrNil(rec.Err))
	return err
}

func (r *MySQLRecorder) Finish(ctx context.Context, run Run) error {
	return r.manager.Transact(ctx, func(exec mysql.DBExecuter) error {
		_, err := exec.Exec(ctx, finishRunStmt,
			run.EndSize, run.Rounds, run.EndedAt, mysql.NonEmptyOrNil(run.Err), run.ID)
		return err
	})
}

// PassCount returns the number of pass records of a run.
func (r *MySQLRecorder) PassCount(ctx context.Context, runID string) (int, error) {
	rows, err := r.manager.GetDBExecuter().Query(ctx,
		"SELECT COUNT(*) FROM whittle_passes WHERE run_id = ?", runID)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	n := 0
	if rows.Next() {
		err = rows.Scan(&n)
	}
	if err == nil {
		err = rows.Err()
	}
	return n, err
}
