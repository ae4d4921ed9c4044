package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/Fusion831/Async-Task-Processor-API/internal/domain"
	"github.com/Fusion831/Async-Task-Processor-API/internal/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRow feeds canned column values through the rowScanner interface.
type fakeRow struct {
	values []any
	err    error
}

func (f *fakeRow) Scan(dest ...any) error {
	if f.err != nil {
		return f.err
	}
	if len(dest) != len(f.values) {
		return errors.New("column count mismatch")
	}
	for i, v := range f.values {
		switch d := dest[i].(type) {
		case *uuid.UUID:
			*d = v.(uuid.UUID)
		case *domain.TaskStatus:
			*d = v.(domain.TaskStatus)
		case *[]byte:
			if v == nil {
				*d = nil
			} else {
				*d = v.([]byte)
			}
		case *sql.NullInt64:
			*d = v.(sql.NullInt64)
		case *sql.NullString:
			*d = v.(sql.NullString)
		case *sql.NullTime:
			*d = v.(sql.NullTime)
		case *int:
			*d = v.(int)
		case *time.Time:
			*d = v.(time.Time)
		default:
			return errors.New("unexpected destination type")
		}
	}
	return nil
}

func TestScanTaskPendingRow(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	created := time.Now().UTC()

	row := &fakeRow{values: []any{
		id,
		domain.TaskStatusPending,
		[]byte(`{"x":1}`),
		sql.NullInt64{},
		sql.NullString{},
		0,
		created,
		sql.NullTime{},
	}}

	task, err := scanTask(row)
	require.NoError(t, err)
	assert.Equal(t, id, task.ID)
	assert.Equal(t, domain.TaskStatusPending, task.Status)
	assert.Equal(t, []byte(`{"x":1}`), task.Payload)
	assert.Nil(t, task.Result)
	assert.Nil(t, task.ErrorMessage)
	assert.Nil(t, task.CompletedAt)
	assert.Equal(t, created, task.CreatedAt)
}

func TestScanTaskCompletedRow(t *testing.T) {
	t.Parallel()

	completed := time.Now().UTC()

	row := &fakeRow{values: []any{
		uuid.New(),
		domain.TaskStatusCompleted,
		[]byte(nil),
		sql.NullInt64{Int64: 499999500000, Valid: true},
		sql.NullString{},
		1,
		completed.Add(-5 * time.Second),
		sql.NullTime{Time: completed, Valid: true},
	}}

	task, err := scanTask(row)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, task.Status)
	require.NotNil(t, task.Result)
	assert.Equal(t, int64(499999500000), *task.Result)
	assert.Nil(t, task.ErrorMessage)
	require.NotNil(t, task.CompletedAt)
	assert.True(t, task.CompletedAt.Equal(completed))
}

func TestScanTaskFailedRow(t *testing.T) {
	t.Parallel()

	failedAt := time.Now().UTC()

	row := &fakeRow{values: []any{
		uuid.New(),
		domain.TaskStatusFailed,
		[]byte(nil),
		sql.NullInt64{},
		sql.NullString{String: "workload panic: boom", Valid: true},
		3,
		failedAt.Add(-time.Minute),
		sql.NullTime{Time: failedAt, Valid: true},
	}}

	task, err := scanTask(row)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusFailed, task.Status)
	assert.Nil(t, task.Result)
	require.NotNil(t, task.ErrorMessage)
	assert.Equal(t, "workload panic: boom", *task.ErrorMessage)
	assert.Equal(t, 3, task.AttemptCount)
}

func TestScanTaskPropagatesScanError(t *testing.T) {
	t.Parallel()

	row := &fakeRow{err: sql.ErrNoRows}

	task, err := scanTask(row)
	assert.Nil(t, task)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

// execRecorder captures the arguments of ExecContext calls.
type execRecorder struct {
	query string
	args  []any
}

type fakeResult struct{ rows int64 }

func (r fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r fakeResult) RowsAffected() (int64, error) { return r.rows, nil }

func (e *execRecorder) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	e.query = query
	e.args = args
	return fakeResult{rows: 1}, nil
}

func (e *execRecorder) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return nil, errors.New("unexpected query")
}

func (e *execRecorder) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return nil
}

var _ store.DBTX = (*execRecorder)(nil)

func TestCreateTaskBindsDomainCreatedAt(t *testing.T) {
	t.Parallel()

	rec := &execRecorder{}
	taskStore := NewPostgresTaskStore(rec)

	task, err := domain.NewTask([]byte(`{"x":1}`))
	require.NoError(t, err)

	require.NoError(t, taskStore.CreateTask(context.Background(), task))
	require.Len(t, rec.args, 6)

	// The persisted created_at is the domain value, not a new timestamp.
	boundCreatedAt, ok := rec.args[4].(time.Time)
	require.True(t, ok)
	assert.True(t, boundCreatedAt.Equal(task.CreatedAt),
		"created_at bound to the insert must match the task handed back to the caller")

	assert.Equal(t, task.ID, rec.args[0])
	assert.Equal(t, task.Status, rec.args[1])
}
