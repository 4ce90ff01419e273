package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poolscan/poolscan/internal/model"
)

func sampleSwaps() []*model.SwapEvent {
	return []*model.SwapEvent{
		{
			TxHash: "0xaaa", LogIndex: 1, ChainID: 1,
			PoolAddress: "0xpool", Protocol: "uniswap_v2",
			BlockNumber: 100, BlockTimestamp: 1700000000,
			Amount0: "1000", Amount1: "-500", AmountIn: "1000", AmountOut: "500",
		},
		{
			TxHash: "0xaaa", LogIndex: 2, ChainID: 1,
			PoolAddress: "0xpool", Protocol: "uniswap_v2",
			BlockNumber: 100, BlockTimestamp: 1700000000,
			Amount0: "-200", Amount1: "400", AmountIn: "400", AmountOut: "200",
		},
	}
}

// TestSwapRepository_BatchUpsertReplay 测试窗口重放时的幂等写入
func TestSwapRepository_BatchUpsertReplay(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()

	repo := NewSwapRepository(db)
	ctx := context.Background()

	// 首次写入: 两行都落库
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "swap_events" .*ON CONFLICT .*DO NOTHING`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2))
	mock.ExpectCommit()

	inserted, err := repo.BatchUpsert(ctx, sampleSwaps())
	require.NoError(t, err)
	assert.Equal(t, int64(2), inserted)

	// 检查点未推进时窗口重放: 唯一约束挡掉两行，不报错也不产生重复
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "swap_events" .*ON CONFLICT .*DO NOTHING`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectCommit()

	inserted, err = repo.BatchUpsert(ctx, sampleSwaps())
	require.NoError(t, err)
	assert.Zero(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestSwapAndPricePersistInOneTransaction 测试 swap 与衍生价格同事务落库
func TestSwapAndPricePersistInOneTransaction(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()

	base := NewRepository(db)
	swapRepo := NewSwapRepository(db)
	priceRepo := NewPriceRepository(db)
	ctx := context.Background()

	// 一个 Begin/Commit 包住两次批量写入
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "swap_events"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2))
	mock.ExpectQuery(`INSERT INTO "price_calculations"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	prices := []*model.PriceCalculation{{
		TxHash: "0xaaa", PoolAddress: "0xpool", BlockNumber: 100,
		ChainID: 1, Price: "0.0005", Method: model.CalculationMethodSwap,
	}}

	var inserted int64
	err := base.TransactionWithRetry(ctx, 3, func(txCtx context.Context) error {
		n, err := swapRepo.BatchUpsert(txCtx, sampleSwaps())
		if err != nil {
			return err
		}
		inserted = n
		_, err = priceRepo.BatchUpsert(txCtx, prices)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestSwapAndPricePersistRollsBackTogether 测试后半段失败时整体回滚
func TestSwapAndPricePersistRollsBackTogether(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()

	base := NewRepository(db)
	swapRepo := NewSwapRepository(db)
	priceRepo := NewPriceRepository(db)
	ctx := context.Background()

	// 价格写入失败必须把 swap 也回滚，不留没有价格的半截批次
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "swap_events"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2))
	mock.ExpectQuery(`INSERT INTO "price_calculations"`).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	prices := []*model.PriceCalculation{{
		TxHash: "0xaaa", PoolAddress: "0xpool", BlockNumber: 100,
		ChainID: 1, Price: "0.0005", Method: model.CalculationMethodSwap,
	}}

	err := base.TransactionWithRetry(ctx, 3, func(txCtx context.Context) error {
		if _, err := swapRepo.BatchUpsert(txCtx, sampleSwaps()); err != nil {
			return err
		}
		_, err := priceRepo.BatchUpsert(txCtx, prices)
		return err
	})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
