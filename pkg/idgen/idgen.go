package idgen

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// ============================================================================
// 业务单号生成器
// ============================================================================
//
// 【单号格式】
//
//   <前缀><毫秒时间戳><6位后缀>
//   |     |            |
//   |     |            +-- (毫秒内随机基值 + 递增序列号) mod 10^6
//   |     +-- 毫秒级 Unix 时间戳，保证趋势递增
//   +-- 业务前缀：ORD 订单 / PAY 支付 / REF 退款 / SET 结算
//
//   示例：ORD1701234567890042137
//
// 【并发保证】
//
// 互斥锁保护"上次时间戳 + 基值 + 序列号"。每个新毫秒抽一次随机基值，
// 毫秒内的后缀一律是基值加序列号再取模——随机与递增走同一个号段，
// 同一毫秒内不可能撞号；序列号用尽（单毫秒百万个）时自旋等待下一毫秒。
//
// 【已知限制】
//
// 跨进程唯一性只靠随机后缀的低碰撞概率，并无硬保证。多实例部署需要
// 按实例划分前缀或改用数据库序列，当前实现不提供。
//
// ============================================================================

const (
	PrefixOrder      = "ORD"
	PrefixPayment    = "PAY"
	PrefixRefund     = "REF"
	PrefixSettlement = "SET"

	suffixDigits = 6
	suffixMod    = 1000000 // 10^suffixDigits

	codeChars  = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789" // 核销码字符集，去掉易混淆的 0O1I
	codeLength = 8
)

// Generator 业务单号生成器，进程内并发安全
type Generator struct {
	mu        sync.Mutex
	timestamp int64
	seed      int64 // 当前毫秒的随机基值
	sequence  int64 // 当前毫秒内已发出的序列号
	rnd       *rand.Rand
}

func New() *Generator {
	return &Generator{
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next 生成下一个单号
func (g *Generator) Next(prefix string) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now().UnixMilli()

	if now == g.timestamp {
		g.sequence++
		if g.sequence == suffixMod {
			// 单毫秒号段用完，等待下一毫秒
			for now <= g.timestamp {
				now = time.Now().UnixMilli()
			}
		}
	}
	if now != g.timestamp {
		// 新毫秒：重抽基值，序列号归零
		g.timestamp = now
		g.seed = int64(g.rnd.Intn(suffixMod))
		g.sequence = 0
	}

	suffix := (g.seed + g.sequence) % suffixMod

	return fmt.Sprintf("%s%d%0*d", prefix, now, suffixDigits, suffix)
}

// OrderNumber 生成订单号
func (g *Generator) OrderNumber() string {
	return g.Next(PrefixOrder)
}

// PaymentNumber 生成支付流水号
func (g *Generator) PaymentNumber() string {
	return g.Next(PrefixPayment)
}

// RefundNumber 生成退款单号
func (g *Generator) RefundNumber() string {
	return g.Next(PrefixRefund)
}

// SettlementNumber 生成结算单号
func (g *Generator) SettlementNumber() string {
	return g.Next(PrefixSettlement)
}

// VerificationCode 生成核销码：8 位大写字母数字
func (g *Generator) VerificationCode() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	buf := make([]byte, codeLength)
	for i := range buf {
		buf[i] = codeChars[g.rnd.Intn(len(codeChars))]
	}
	return string(buf)
}
