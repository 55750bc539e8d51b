package job

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddDailyNextRun(t *testing.T) {
	s := NewScheduler(nil)
	s.AddDaily("daily_summary", 1, func(ctx context.Context) error { return nil })
	require.Len(t, s.entries, 1)
	nextRun := s.entries[0].nextRun

	// 触发时刻之前：当天触发
	at := time.Date(2026, 8, 25, 0, 30, 0, 0, time.Local)
	assert.Equal(t, time.Date(2026, 8, 25, 1, 0, 0, 0, time.Local), nextRun(at))

	// 触发时刻之后：第二天触发
	at = time.Date(2026, 8, 25, 1, 0, 0, 1, time.Local)
	assert.Equal(t, time.Date(2026, 8, 26, 1, 0, 0, 0, time.Local), nextRun(at))

	// 正好在触发时刻：下一天（不重复触发当轮）
	at = time.Date(2026, 8, 25, 1, 0, 0, 0, time.Local)
	assert.Equal(t, time.Date(2026, 8, 26, 1, 0, 0, 0, time.Local), nextRun(at))
}

func TestAddWeeklyNextRun(t *testing.T) {
	s := NewScheduler(nil)
	s.AddWeekly("weekly_settlement", time.Monday, 2, func(ctx context.Context) error { return nil })
	nextRun := s.entries[0].nextRun

	// 周二 -> 下周一
	tuesday := time.Date(2026, 8, 25, 10, 0, 0, 0, time.Local)
	assert.Equal(t, time.Date(2026, 8, 31, 2, 0, 0, 0, time.Local), nextRun(tuesday))

	// 周一凌晨 1 点 -> 当天 2 点
	monday := time.Date(2026, 8, 24, 1, 0, 0, 0, time.Local)
	assert.Equal(t, time.Date(2026, 8, 24, 2, 0, 0, 0, time.Local), nextRun(monday))

	// 周一 3 点（已过触发时刻）-> 下周一
	mondayLate := time.Date(2026, 8, 24, 3, 0, 0, 0, time.Local)
	assert.Equal(t, time.Date(2026, 8, 31, 2, 0, 0, 0, time.Local), nextRun(mondayLate))
}
