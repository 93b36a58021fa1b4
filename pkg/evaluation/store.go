package evaluation

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// RunSummary 历史记录中的一次评估
type RunSummary struct {
	RunID      string
	Agent      string
	Judge      string
	StartedAt  time.Time
	FinishedAt time.Time
	Cases      int
	Passed     int
}

// SQLiteStore 评估历史存储
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore 打开或创建数据库
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS eval_runs (
		run_id TEXT PRIMARY KEY,
		agent TEXT NOT NULL,
		judge TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL,
		cases INTEGER NOT NULL,
		passed INTEGER NOT NULL,
		report TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS eval_scores (
		run_id TEXT NOT NULL,
		case_index INTEGER NOT NULL,
		metric TEXT NOT NULL,
		score REAL NOT NULL,
		threshold REAL NOT NULL,
		success INTEGER NOT NULL,
		reason TEXT,
		error TEXT,
		PRIMARY KEY (run_id, case_index, metric)
	);
	CREATE INDEX IF NOT EXISTS idx_eval_runs_started_at ON eval_runs(started_at);
	`
	_, err := s.db.Exec(query)
	return err
}

// Save 保存报告，同一 RunID 重复保存时覆盖
func (s *SQLiteStore) Save(ctx context.Context, r *Report) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // 提交后回滚无效果

	_, err = tx.ExecContext(ctx, `
	INSERT INTO eval_runs (run_id, agent, judge, started_at, finished_at, cases, passed, report)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(run_id) DO UPDATE SET
		agent = excluded.agent,
		judge = excluded.judge,
		started_at = excluded.started_at,
		finished_at = excluded.finished_at,
		cases = excluded.cases,
		passed = excluded.passed,
		report = excluded.report
	`, r.RunID, r.Agent, r.Judge, r.StartedAt.UnixMilli(), r.FinishedAt.UnixMilli(), len(r.Cases), r.Passed(), string(data))
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM eval_scores WHERE run_id = ?`, r.RunID); err != nil {
		return fmt.Errorf("failed to clear scores: %w", err)
	}
	for _, c := range r.Cases {
		for _, m := range c.Metrics {
			_, err := tx.ExecContext(ctx, `
			INSERT INTO eval_scores (run_id, case_index, metric, score, threshold, success, reason, error)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`, r.RunID, c.Index, m.Name, m.Score, m.Threshold, m.Success, m.Reason, m.Error)
			if err != nil {
				return fmt.Errorf("failed to save score: %w", err)
			}
		}
	}
	return tx.Commit()
}

// Get 读取完整报告
func (s *SQLiteStore) Get(ctx context.Context, runID string) (*Report, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT report FROM eval_runs WHERE run_id = ?`, runID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("evaluation run not found: %s", runID)
	}
	if err != nil {
		return nil, err
	}
	var r Report
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	return &r, nil
}

// ListRuns 按开始时间倒序列出最近的评估，limit <= 0 返回全部
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	query := `SELECT run_id, agent, judge, started_at, finished_at, cases, passed FROM eval_runs ORDER BY started_at DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var (
			rs              RunSummary
			started, finish int64
		)
		if err := rows.Scan(&rs.RunID, &rs.Agent, &rs.Judge, &started, &finish, &rs.Cases, &rs.Passed); err != nil {
			return nil, err
		}
		rs.StartedAt = time.UnixMilli(started).UTC()
		rs.FinishedAt = time.UnixMilli(finish).UTC()
		runs = append(runs, rs)
	}
	return runs, rows.Err()
}

// AverageScores 某次评估各指标的平均分（不含打分失败的记录）
func (s *SQLiteStore) AverageScores(ctx context.Context, runID string) (map[string]float64, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT metric, AVG(score) FROM eval_scores
	WHERE run_id = ? AND (error IS NULL OR error = '')
	GROUP BY metric
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var (
			name string
			avg  float64
		)
		if err := rows.Scan(&name, &avg); err != nil {
			return nil, err
		}
		out[name] = avg
	}
	return out, rows.Err()
}

// Close 关闭数据库
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
