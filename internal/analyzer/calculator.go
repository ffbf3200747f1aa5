// 财务比率计算
package analyzer

import (
	"fmt"

	"github.com/finvalue-ai/finvalue/internal/domain"
	ferrors "github.com/finvalue-ai/finvalue/pkg/errors"
	"github.com/shopspring/decimal"
)

// LeverageOptions 杠杆计算的经验常量
type LeverageOptions struct {
	// MaterialityFloor 营收变动率绝对值不超过该值时 DOL 记为 0
	MaterialityFloor    decimal.Decimal
	InterestExpenseKeys []string
}

// DefaultLeverageOptions 默认杠杆计算选项
func DefaultLeverageOptions() LeverageOptions {
	return LeverageOptions{
		MaterialityFloor:    decimal.NewFromFloat(0.0001),
		InterestExpenseKeys: []string{domain.AccountFinancialExpense, domain.AccountInterestExpense},
	}
}

// RatioCalculator 比率计算器，无状态
type RatioCalculator struct {
	opts LeverageOptions
}

// NewRatioCalculator 创建比率计算器
func NewRatioCalculator(opts LeverageOptions) *RatioCalculator {
	if len(opts.InterestExpenseKeys) == 0 {
		opts.InterestExpenseKeys = DefaultLeverageOptions().InterestExpenseKeys
	}
	return &RatioCalculator{opts: opts}
}

// CalculateAssetStructure 计算经营性/金融性资产占比
func (c *RatioCalculator) CalculateAssetStructure(sheets []domain.BalanceSheet) domain.AssetStructureAnalysis {
	out := domain.AssetStructureAnalysis{
		Years:               make([]int, 0, len(sheets)),
		OperatingAssetRatio: make([]decimal.Decimal, 0, len(sheets)),
		FinancialAssetRatio: make([]decimal.Decimal, 0, len(sheets)),
	}

	for _, bs := range sheets {
		operating := bs.OperatingAssets.Total
		financial := bs.FinancialAssets.Total
		total := operating.Add(financial)

		out.Years = append(out.Years, bs.Statement.Year())
		if total.IsZero() {
			out.OperatingAssetRatio = append(out.OperatingAssetRatio, decimal.Zero)
			out.FinancialAssetRatio = append(out.FinancialAssetRatio, decimal.Zero)
			continue
		}
		out.OperatingAssetRatio = append(out.OperatingAssetRatio, operating.Div(total))
		out.FinancialAssetRatio = append(out.FinancialAssetRatio, financial.Div(total))
	}
	return out
}

// CalculateProfitRatios 计算毛利率、核心利润率、净利率
func (c *RatioCalculator) CalculateProfitRatios(statements []domain.IncomeStatement) domain.ProfitAnalysis {
	out := domain.ProfitAnalysis{
		Years:            make([]int, 0, len(statements)),
		GrossMargin:      make([]decimal.Decimal, 0, len(statements)),
		CoreProfitMargin: make([]decimal.Decimal, 0, len(statements)),
		NetProfitMargin:  make([]decimal.Decimal, 0, len(statements)),
	}

	for _, is := range statements {
		out.Years = append(out.Years, is.Statement.Year())
		if is.Revenue.IsZero() {
			out.GrossMargin = append(out.GrossMargin, decimal.Zero)
			out.CoreProfitMargin = append(out.CoreProfitMargin, decimal.Zero)
			out.NetProfitMargin = append(out.NetProfitMargin, decimal.Zero)
			continue
		}
		out.GrossMargin = append(out.GrossMargin, is.GrossProfit.Div(is.Revenue))
		out.CoreProfitMargin = append(out.CoreProfitMargin, is.CoreProfit.Div(is.Revenue))
		out.NetProfitMargin = append(out.NetProfitMargin, is.NetProfit.Div(is.Revenue))
	}
	return out
}

// CalculateLeverage 计算经营杠杆、财务杠杆、总杠杆
// 输入须按报告期倒序，第 i 年与第 i+1 年比较；最早一年取 (0, 1, 0)
func (c *RatioCalculator) CalculateLeverage(statements []domain.IncomeStatement) (*domain.LeverageAnalysis, error) {
	for i := 0; i+1 < len(statements); i++ {
		cur, prev := statements[i].Statement.ReportDate, statements[i+1].Statement.ReportDate
		if !cur.After(prev) {
			return nil, fmt.Errorf("%w: %s precedes %s", ferrors.ErrUnorderedSeries,
				cur.Format("2006-01-02"), prev.Format("2006-01-02"))
		}
	}

	n := len(statements)
	out := &domain.LeverageAnalysis{
		Years:             make([]int, 0, n),
		OperatingLeverage: make([]decimal.Decimal, 0, n),
		FinancialLeverage: make([]decimal.Decimal, 0, n),
		TotalLeverage:     make([]decimal.Decimal, 0, n),
	}

	one := decimal.NewFromInt(1)
	for i, is := range statements {
		out.Years = append(out.Years, is.Statement.Year())

		if i == n-1 {
			out.OperatingLeverage = append(out.OperatingLeverage, decimal.Zero)
			out.FinancialLeverage = append(out.FinancialLeverage, one)
			out.TotalLeverage = append(out.TotalLeverage, decimal.Zero)
			continue
		}

		prev := statements[i+1]
		ebit := is.CoreProfit
		ebt := ebit.Sub(is.Statement.Items.Lookup(c.opts.InterestExpenseKeys...))

		revenueChange := relativeChange(is.Revenue, prev.Revenue)
		ebitChange := relativeChange(ebit, prev.CoreProfit)

		dol := decimal.Zero
		if revenueChange.Abs().GreaterThan(c.opts.MaterialityFloor) {
			dol = ebitChange.Div(revenueChange)
		}

		dfl := one
		if !ebit.IsZero() && !ebt.IsZero() {
			dfl = ebit.Div(ebt)
		}

		out.OperatingLeverage = append(out.OperatingLeverage, dol)
		out.FinancialLeverage = append(out.FinancialLeverage, dfl)
		out.TotalLeverage = append(out.TotalLeverage, dol.Mul(dfl))
	}
	return out, nil
}

// relativeChange (cur - prev) / prev，prev 为 0 时返回 0
func relativeChange(cur, prev decimal.Decimal) decimal.Decimal {
	if prev.IsZero() {
		return decimal.Zero
	}
	return cur.Sub(prev).Div(prev)
}
