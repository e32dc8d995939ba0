package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"reelsmith/internal/config"
	"reelsmith/internal/production"
	"reelsmith/internal/sequencer"
)

// MemoryPath opens a journal that lives only as long as the process.
const MemoryPath = ":memory:"

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Journal records production runs backed by SQLite.
type Journal struct {
	db   *sql.DB
	path string
}

// RunRecord is the persisted summary of a run.
type RunRecord struct {
	ID              string
	Topic           string
	Title           string
	Status          production.Status
	Message         string
	OutputPath      string
	OutputBytes     int64
	DurationSeconds float64
	ProgressStage   string
	ProgressPercent float64
	ProgressMessage string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Transition is one recorded status change.
type Transition struct {
	ID         int64
	RunID      string
	From       production.Status
	To         production.Status
	Duration   time.Duration
	Detail     string
	RecordedAt time.Time
}

// SceneAsset is one row of a run's scene inventory.
type SceneAsset struct {
	Position  int
	Kind      sequencer.Kind
	Source    string
	TrimStart float64
	TrimEnd   float64
	HasAudio  bool
}

// PathFor returns the on-disk journal location for cfg.
func PathFor(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.LogDir, "journal.db")
}

// Open initializes or connects to the journal database at path.
func Open(path string) (*Journal, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("journal path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	if path == MemoryPath {
		// Every pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	} else {
		pragmas = append([]string{"PRAGMA journal_mode=WAL"}, pragmas...)
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	j := &Journal{db: db, path: path}
	if err := j.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

// Path returns the database location.
func (j *Journal) Path() string {
	if j == nil {
		return ""
	}
	return j.path
}

// Close closes the underlying database connection.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// CreateRun inserts run as a new row.
func (j *Journal) CreateRun(ctx context.Context, run *production.Run) error {
	if run == nil {
		return errors.New("run is nil")
	}
	if strings.TrimSpace(run.ID) == "" {
		return errors.New("run id is required")
	}
	err := j.exec(
		ctx,
		`INSERT INTO runs (
            id, topic, status, created_at, updated_at, progress_percent
        ) VALUES (?, ?, ?, ?, ?, 0)`,
		run.ID,
		nullableString(run.Inputs.Topic),
		run.Status,
		formatTime(run.CreatedAt),
		formatTime(run.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// UpdateRun persists the mutable fields of run.
func (j *Journal) UpdateRun(ctx context.Context, run *production.Run) error {
	if run == nil {
		return errors.New("run is nil")
	}
	run.UpdatedAt = time.Now().UTC()
	progress := run.Progress()
	err := j.exec(
		ctx,
		`UPDATE runs
         SET title = ?, status = ?, message = ?, output_path = ?, output_bytes = ?,
             duration_seconds = ?, progress_stage = ?, progress_percent = ?,
             progress_message = ?, updated_at = ?
         WHERE id = ?`,
		nullableString(run.Title()),
		run.Status,
		nullableString(run.Message),
		nullableString(run.OutputPath),
		run.Artifact.SizeBytes,
		run.Artifact.Duration().Seconds(),
		nullableString(progress.Stage),
		progress.Percent,
		nullableString(progress.Message),
		formatTime(run.UpdatedAt),
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return nil
}

// UpdateProgress persists only the progress columns of a run. It is the one
// write allowed while a stage is still mutating the run.
func (j *Journal) UpdateProgress(ctx context.Context, runID string, progress production.Progress) error {
	err := j.exec(
		ctx,
		`UPDATE runs SET progress_stage = ?, progress_percent = ?, progress_message = ?, updated_at = ? WHERE id = ?`,
		nullableString(progress.Stage),
		progress.Percent,
		nullableString(progress.Message),
		formatTime(time.Now()),
		runID,
	)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

// RecordTransition appends one status change for runID.
func (j *Journal) RecordTransition(ctx context.Context, runID string, from, to production.Status, elapsed time.Duration, detail string) error {
	err := j.exec(
		ctx,
		`INSERT INTO transitions (run_id, from_status, to_status, duration_ms, detail, recorded_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		runID,
		from,
		to,
		elapsed.Milliseconds(),
		nullableString(detail),
		formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("record transition: %w", err)
	}
	return nil
}

// RecordAssets replaces the scene inventory of runID.
func (j *Journal) RecordAssets(ctx context.Context, runID string, list []sequencer.MediaAsset) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		tx, err := j.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin assets tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, `DELETE FROM scene_assets WHERE run_id = ?`, runID); err != nil {
			return fmt.Errorf("clear assets: %w", err)
		}
		for i, asset := range list {
			if _, err := tx.ExecContext(
				ctx,
				`INSERT INTO scene_assets (run_id, position, kind, source, trim_start, trim_end, has_audio)
                 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				runID, i, asset.Kind, asset.Source, asset.TrimStart, asset.TrimEnd, boolToInt(asset.HasEmbeddedAudio),
			); err != nil {
				return fmt.Errorf("insert asset %d: %w", i, err)
			}
		}
		return tx.Commit()
	})
}

// GetRun fetches a run by id. It returns nil, nil when none exists.
func (j *Journal) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	row := j.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	record, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return record, nil
}

// FindRun resolves a full id or a unique id prefix.
func (j *Journal) FindRun(ctx context.Context, prefix string) (*RunRecord, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return nil, errors.New("run id is required")
	}
	rows, err := j.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id LIKE ? || '%' ORDER BY created_at LIMIT 2`, prefix)
	if err != nil {
		return nil, fmt.Errorf("find run: %w", err)
	}
	defer rows.Close()
	records, err := collectRuns(rows)
	if err != nil {
		return nil, err
	}
	switch len(records) {
	case 0:
		return nil, nil
	case 1:
		return &records[0], nil
	default:
		return nil, fmt.Errorf("run id %q is ambiguous", prefix)
	}
}

// ListRuns returns the most recent runs first, at most limit (all when limit <= 0).
func (j *Journal) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY created_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()
	return collectRuns(rows)
}

// Transitions returns the recorded status changes of runID in order.
func (j *Journal) Transitions(ctx context.Context, runID string) ([]Transition, error) {
	rows, err := j.db.QueryContext(
		ctx,
		`SELECT id, run_id, from_status, to_status, duration_ms, detail, recorded_at
         FROM transitions WHERE run_id = ? ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	var out []Transition
	for rows.Next() {
		var (
			tr         Transition
			from, to   string
			durationMS int64
			detail     sql.NullString
			recorded   string
		)
		if err := rows.Scan(&tr.ID, &tr.RunID, &from, &to, &durationMS, &detail, &recorded); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		tr.From = production.Status(from)
		tr.To = production.Status(to)
		tr.Duration = time.Duration(durationMS) * time.Millisecond
		tr.Detail = detail.String
		if at, err := parseTimeString(recorded); err == nil {
			tr.RecordedAt = at
		}
		out = append(out, tr)
	}
	return out, rows.Err()
}

// Assets returns the scene inventory of runID by position.
func (j *Journal) Assets(ctx context.Context, runID string) ([]SceneAsset, error) {
	rows, err := j.db.QueryContext(
		ctx,
		`SELECT position, kind, source, trim_start, trim_end, has_audio
         FROM scene_assets WHERE run_id = ? ORDER BY position`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query assets: %w", err)
	}
	defer rows.Close()

	var out []SceneAsset
	for rows.Next() {
		var (
			asset    SceneAsset
			kind     string
			hasAudio int
		)
		if err := rows.Scan(&asset.Position, &kind, &asset.Source, &asset.TrimStart, &asset.TrimEnd, &hasAudio); err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		asset.Kind = sequencer.Kind(kind)
		asset.HasAudio = hasAudio != 0
		out = append(out, asset)
	}
	return out, rows.Err()
}

// Stats returns a count of runs grouped by status.
func (j *Journal) Stats(ctx context.Context) (map[production.Status]int, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM runs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("journal stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[production.Status]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[production.Status(status)] = count
	}
	return stats, rows.Err()
}

// Prune deletes terminal runs last updated before cutoff.
func (j *Journal) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx = ensureContext(ctx)
	var affected int64
	err := retryOnBusy(ctx, func() error {
		res, err := j.db.ExecContext(
			ctx,
			`DELETE FROM runs WHERE status IN (?, ?) AND updated_at < ?`,
			production.StatusCompleted,
			production.StatusFailed,
			formatTime(cutoff),
		)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return affected, nil
}

func (j *Journal) exec(ctx context.Context, query string, args ...any) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		_, err := j.db.ExecContext(ctx, query, args...)
		return err
	})
}
