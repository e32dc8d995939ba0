package journal

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"reelsmith/internal/production"
)

const runColumns = "id, topic, title, status, message, output_path, output_bytes, duration_seconds, progress_stage, progress_percent, progress_message, created_at, updated_at"

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (*RunRecord, error) {
	var (
		record          RunRecord
		topic           sql.NullString
		title           sql.NullString
		status          string
		message         sql.NullString
		outputPath      sql.NullString
		progressStage   sql.NullString
		progressMessage sql.NullString
		createdRaw      string
		updatedRaw      string
	)
	if err := scanner.Scan(
		&record.ID,
		&topic,
		&title,
		&status,
		&message,
		&outputPath,
		&record.OutputBytes,
		&record.DurationSeconds,
		&progressStage,
		&record.ProgressPercent,
		&progressMessage,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	record.Topic = topic.String
	record.Title = title.String
	record.Status = production.Status(status)
	record.Message = message.String
	record.OutputPath = outputPath.String
	record.ProgressStage = progressStage.String
	record.ProgressMessage = progressMessage.String
	if created, err := parseTimeString(createdRaw); err == nil {
		record.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		record.UpdatedAt = updated
	}
	return &record, nil
}

func collectRuns(rows *sql.Rows) ([]RunRecord, error) {
	var out []RunRecord
	for rows.Next() {
		record, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *record)
	}
	return out, rows.Err()
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
