package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poolscan/poolscan/internal/model"
)

// TestProgressRepository_Get 测试读取进度流
func TestProgressRepository_Get(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()

	repo := NewProgressRepository(db)

	rows := sqlmock.NewRows([]string{"id", "chain_id", "indexer_type", "pool_address", "last_processed_block", "status"}).
		AddRow(1, 1, "uniswap_v3", "", 19000000, "running")
	mock.ExpectQuery(`SELECT \* FROM "indexer_progress"`).WillReturnRows(rows)

	progress, err := repo.Get(context.Background(), 1, "uniswap_v3", "")
	require.NoError(t, err)
	assert.Equal(t, int64(19000000), progress.LastProcessedBlock)
	assert.Equal(t, model.ProgressStatusRunning, progress.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestProgressRepository_GetNotFound 测试进度流缺失
func TestProgressRepository_GetNotFound(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()

	repo := NewProgressRepository(db)

	mock.ExpectQuery(`SELECT \* FROM "indexer_progress"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.Get(context.Background(), 1, "curve", "")
	assert.ErrorIs(t, err, ErrProgressNotFound)
}

// TestProgressRepository_AdvanceUsesGreatest 测试检查点只前进
func TestProgressRepository_AdvanceUsesGreatest(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()

	repo := NewProgressRepository(db)

	mock.ExpectBegin()
	// 冲突分支必须用 GREATEST，落后的写入者不能把检查点拉回去
	mock.ExpectQuery(`INSERT INTO "indexer_progress" .*ON CONFLICT .*GREATEST`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	err := repo.Advance(context.Background(), 1, "uniswap_v3", "", 19000100)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestProgressRepository_SetStatusNotFound 测试更新缺失进度流
func TestProgressRepository_SetStatusNotFound(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()

	repo := NewProgressRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "indexer_progress"`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.SetStatus(context.Background(), 99, "unknown", "", model.ProgressStatusError, "boom")
	assert.ErrorIs(t, err, ErrProgressNotFound)
}

// TestProgressStatus_Values 测试进度状态枚举值
func TestProgressStatus_Values(t *testing.T) {
	assert.Equal(t, model.ProgressStatus("running"), model.ProgressStatusRunning)
	assert.Equal(t, model.ProgressStatus("idle"), model.ProgressStatusIdle)
	assert.Equal(t, model.ProgressStatus("error"), model.ProgressStatusError)
}
