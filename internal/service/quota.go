package service

import (
	"github.com/shopspring/decimal"

	"github.com/CyberArcenal/Kabisilya-Management-sub006/config"
)

// QuotaCalculator 工作量（luwang）分配计算，纯函数，不访问存储
type QuotaCalculator interface {
	// Distribute 每名工人的统一份额：
	// 显式总量 > 0 时按其平分，否则按地块总量平分，保留两位小数
	Distribute(explicitTotal *decimal.Decimal, parcelTotal decimal.Decimal, workerCount int) decimal.Decimal
	// Shares 按取整策略给出每名工人的份额（顺序与工人顺序一致）
	Shares(explicitTotal *decimal.Decimal, parcelTotal decimal.Decimal, workerCount int) []decimal.Decimal
}

type quotaCalculator struct {
	policy string
}

// NewQuotaCalculator 创建 QuotaCalculator；未知策略按 uniform 处理
func NewQuotaCalculator(policy string) QuotaCalculator {
	if policy != config.RoundingLastAbsorbs {
		policy = config.RoundingUniform
	}
	return &quotaCalculator{policy: policy}
}

// Round2 四舍五入到两位小数
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

func (q *quotaCalculator) total(explicitTotal *decimal.Decimal, parcelTotal decimal.Decimal) decimal.Decimal {
	if explicitTotal != nil && explicitTotal.IsPositive() {
		return *explicitTotal
	}
	return parcelTotal
}

func (q *quotaCalculator) Distribute(explicitTotal *decimal.Decimal, parcelTotal decimal.Decimal, workerCount int) decimal.Decimal {
	if workerCount <= 0 {
		return decimal.Zero
	}
	total := q.total(explicitTotal, parcelTotal)
	if !total.IsPositive() {
		return decimal.Zero
	}
	return Round2(total.Div(decimal.NewFromInt(int64(workerCount))))
}

func (q *quotaCalculator) Shares(explicitTotal *decimal.Decimal, parcelTotal decimal.Decimal, workerCount int) []decimal.Decimal {
	if workerCount <= 0 {
		return nil
	}
	share := q.Distribute(explicitTotal, parcelTotal, workerCount)
	shares := make([]decimal.Decimal, workerCount)
	for i := range shares {
		shares[i] = share
	}
	if q.policy != config.RoundingLastAbsorbs || workerCount == 1 {
		return shares
	}

	// 最后一人承担取整差额，使份额之和等于总量
	total := Round2(q.total(explicitTotal, parcelTotal))
	if !total.IsPositive() {
		return shares
	}
	last := total.Sub(share.Mul(decimal.NewFromInt(int64(workerCount - 1))))
	if last.IsNegative() {
		// 总量过小时前 n-1 份已超出总量，退回统一份额
		return shares
	}
	shares[workerCount-1] = last
	return shares
}
