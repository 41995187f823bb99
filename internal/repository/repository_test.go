package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Freeeeeet/onlycation/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubRow отдаёт заданную ошибку или пишет values в dest по порядку
type stubRow struct {
	values []any
	err    error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *int64:
			*p = r.values[i].(int64)
		case *time.Time:
			*p = r.values[i].(time.Time)
		}
	}
	return nil
}

type stubDB struct {
	row     stubRow
	queries []string
	args    [][]any
}

func (db *stubDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	db.queries, db.args = append(db.queries, sql), append(db.args, args)
	return pgconn.CommandTag{}, nil
}

func (db *stubDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	db.queries, db.args = append(db.queries, sql), append(db.args, args)
	return nil, errors.New("not supported")
}

func (db *stubDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	db.queries, db.args = append(db.queries, sql), append(db.args, args)
	return db.row
}

func TestPgStoreRepositories(t *testing.T) {
	var store Store = NewPgStore(nil)
	assert.IsType(t, &UserRepository{}, store.Users())
	assert.IsType(t, &EvidenceRepository{}, store.Evidence())
}

func TestUserLockForUpdate(t *testing.T) {
	ctx := context.Background()

	db := &stubDB{row: stubRow{values: []any{int64(7)}}}
	require.NoError(t, NewUserRepository(db).LockForUpdate(ctx, 7))
	require.Len(t, db.queries, 1)
	assert.Contains(t, db.queries[0], "FOR UPDATE")
	assert.Equal(t, []any{int64(7)}, db.args[0])

	// Несуществующий пользователь не ошибка
	db = &stubDB{row: stubRow{err: pgx.ErrNoRows}}
	assert.NoError(t, NewUserRepository(db).LockForUpdate(ctx, 8))

	db = &stubDB{row: stubRow{err: errors.New("lock timeout")}}
	err := NewUserRepository(db).LockForUpdate(ctx, 9)
	assert.ErrorContains(t, err, "lock user")
}

func TestEvidenceCreate(t *testing.T) {
	created := time.Date(2025, 3, 3, 15, 0, 0, 0, time.UTC)
	db := &stubDB{row: stubRow{values: []any{created}}}

	f := &model.EvidenceFile{ID: uuid.New(), BookingID: 3, UploaderID: 1, Party: model.PartyTeacher, ContentType: "image/png"}
	require.NoError(t, NewEvidenceRepository(db).Create(context.Background(), f))
	assert.Equal(t, created, f.CreatedAt)
	assert.Contains(t, db.queries[0], "INSERT INTO evidence_files")

	db = &stubDB{row: stubRow{err: &pgconn.PgError{Code: "23505"}}}
	err := NewEvidenceRepository(db).Create(context.Background(), f)
	assert.ErrorIs(t, err, ErrDuplicate)
}
