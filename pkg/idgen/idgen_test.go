package idgen

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextFormat(t *testing.T) {
	g := New()

	number := g.OrderNumber()
	assert.True(t, strings.HasPrefix(number, PrefixOrder))
	// 前缀3位 + 毫秒时间戳13位 + 序列6位
	assert.Len(t, number, 3+13+6)

	assert.True(t, strings.HasPrefix(g.PaymentNumber(), PrefixPayment))
	assert.True(t, strings.HasPrefix(g.RefundNumber(), PrefixRefund))
	assert.True(t, strings.HasPrefix(g.SettlementNumber(), PrefixSettlement))
}

func TestNextConcurrentUniqueness(t *testing.T) {
	g := New()

	const goroutines = 16
	const perGoroutine = 2000

	var mu sync.Mutex
	seen := make(map[string]bool, goroutines*perGoroutine)

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]string, 0, perGoroutine)
			for j := 0; j < perGoroutine; j++ {
				local = append(local, g.OrderNumber())
			}
			mu.Lock()
			defer mu.Unlock()
			for _, number := range local {
				seen[number] = true
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, goroutines*perGoroutine, "并发生成的单号必须全部唯一")
}

func TestNextSameMillisecondBurst(t *testing.T) {
	g := New()

	// 紧循环生成大量单号，迫使大批单号落在同一毫秒内，
	// 验证随机基值与递增序列不会撞出重复后缀
	const total = 200000
	seen := make(map[string]bool, total)
	for i := 0; i < total; i++ {
		number := g.OrderNumber()
		if seen[number] {
			t.Fatalf("第 %d 个单号重复: %s", i+1, number)
		}
		seen[number] = true
	}
}

func TestVerificationCode(t *testing.T) {
	g := New()

	code := g.VerificationCode()
	require.Len(t, code, codeLength)
	for _, ch := range code {
		assert.Contains(t, codeChars, string(ch))
	}

	// 抽样检查碰撞：1 万个码不应重复
	seen := make(map[string]bool)
	for i := 0; i < 10000; i++ {
		seen[g.VerificationCode()] = true
	}
	assert.Greater(t, len(seen), 9990)
}
