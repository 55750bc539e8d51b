package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vinow/internal/model"
	"vinow/pkg/apperr"
)

func TestProcessSettlement(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	today := time.Now()

	o1 := env.createOrder(t, 200000)
	_, err := env.verify.VerifyByCode(ctx, o1.VerificationCode, testOperator)
	require.NoError(t, err)

	_, err = env.finance.GenerateDailySummary(ctx, "m1", today)
	require.NoError(t, err)

	record, err := env.settlement.ProcessSettlement(ctx, "m1", today, today)
	require.NoError(t, err)
	require.NotNil(t, record)

	assert.Equal(t, int64(200000), record.GrossAmount)
	assert.Equal(t, int64(4000), record.PlatformFee) // 200000 * 0.02
	assert.Equal(t, int64(196000), record.NetAmount)
	assert.Equal(t, model.SettlementStatusCompleted, record.Status)
	assert.NotNil(t, record.SettledAt)
	assert.Equal(t, "0123456789", record.BankAccount)
	assert.Equal(t, "Vietcombank", record.BankName)
	assert.NotEmpty(t, record.SettlementNumber)
}

func TestProcessSettlementIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	today := time.Now()

	o1 := env.createOrder(t, 200000)
	_, err := env.verify.VerifyByCode(ctx, o1.VerificationCode, testOperator)
	require.NoError(t, err)
	_, err = env.finance.GenerateDailySummary(ctx, "m1", today)
	require.NoError(t, err)

	first, err := env.settlement.ProcessSettlement(ctx, "m1", today, today)
	require.NoError(t, err)
	require.NotNil(t, first)

	// 同一周期重跑返回旧记录，不会二次结算
	second, err := env.settlement.ProcessSettlement(ctx, "m1", today, today)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.SettlementNumber, second.SettlementNumber)
}

func TestProcessSettlementConcurrentPeriod(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	today := time.Now()

	o1 := env.createOrder(t, 200000)
	_, err := env.verify.VerifyByCode(ctx, o1.VerificationCode, testOperator)
	require.NoError(t, err)
	_, err = env.finance.GenerateDailySummary(ctx, "m1", today)
	require.NoError(t, err)

	// 手动触发和定时任务同时跑：两边都过了前置检查，
	// 唯一索引保证只落一条记录，输家复用赢家的结算单
	const attempts = 8
	var wg sync.WaitGroup
	records := make([]*model.SettlementRecord, attempts)
	errs := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			records[i], errs[i] = env.settlement.ProcessSettlement(ctx, "m1", today, today)
		}()
	}
	wg.Wait()

	for i := 0; i < attempts; i++ {
		require.NoError(t, errs[i])
		require.NotNil(t, records[i])
		assert.Equal(t, records[0].ID, records[i].ID, "所有调用必须返回同一条结算记录")
	}

	// 仓储里也只有这一条
	stored, err := env.store.Finance().GetSettlementByPeriod(ctx, "m1", records[0].StartDate, records[0].EndDate)
	require.NoError(t, err)
	assert.Equal(t, records[0].ID, stored.ID)
}

func TestProcessSettlementZeroGross(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	today := time.Now()

	// 全零汇总：没有可结算的钱，不生成结算单
	_, err := env.finance.GenerateDailySummary(ctx, "m1", today)
	require.NoError(t, err)

	record, err := env.settlement.ProcessSettlement(ctx, "m1", today, today)
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestProcessSettlementInvalidPeriod(t *testing.T) {
	env := newTestEnv(t)

	now := time.Now()
	_, err := env.settlement.ProcessSettlement(context.Background(), "m1", now, now.AddDate(0, 0, -3))
	assert.True(t, apperr.IsKind(err, apperr.Validation))
}
