package analyzer

import (
	"fmt"

	"github.com/finvalue-ai/finvalue/internal/domain"
	ferrors "github.com/finvalue-ai/finvalue/pkg/errors"
	"github.com/finvalue-ai/finvalue/pkg/metrics"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// 显式预测期年数
const forecastYears = 3

// 估值提示类别
const (
	AdvisoryNonPositiveFCF = "non_positive_fcf"
	AdvisoryDefaultShares  = "default_shares"
)

// Valuator 估值器，给定参数后无状态
type Valuator struct {
	params domain.ValuationParams
	logger *zap.Logger
}

// NewValuator 创建估值器，logger 为 nil 时不输出日志
func NewValuator(params domain.ValuationParams, logger *zap.Logger) *Valuator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Valuator{params: params, logger: logger}
}

// Params 当前估值参数
func (v *Valuator) Params() domain.ValuationParams {
	return v.params
}

// Calculate 分别执行 DCF 与倍数估值，两者互不依赖
func (v *Valuator) Calculate(income []domain.IncomeStatement, cashflow []domain.CashflowStatement) (*domain.ValuationResult, error) {
	dcf, advisories, err := v.dcf(cashflow)
	if err != nil {
		return nil, err
	}
	multiple, err := v.CalculateMultipleModel(income)
	if err != nil {
		return nil, err
	}
	return &domain.ValuationResult{
		DCF:           dcf,
		MultipleModel: multiple,
		Advisories:    advisories,
	}, nil
}

// CalculateDCF 三年显式预测 + 永续增长终值的现金流折现估值
func (v *Valuator) CalculateDCF(cashflow []domain.CashflowStatement) (domain.DCFValuation, error) {
	dcf, _, err := v.dcf(cashflow)
	return dcf, err
}

func (v *Valuator) dcf(cashflow []domain.CashflowStatement) (domain.DCFValuation, []string, error) {
	p := v.params.DCF
	if p.DiscountRate <= p.PerpetualGrowthRate {
		return domain.DCFValuation{}, nil, fmt.Errorf("%w: discount rate %.4f must exceed perpetual growth rate %.4f",
			ferrors.ErrInvalidParameter, p.DiscountRate, p.PerpetualGrowthRate)
	}
	if len(cashflow) == 0 {
		return zeroDCF(), nil, nil
	}
	if !v.params.TotalShares.IsPositive() {
		return domain.DCFValuation{}, nil, fmt.Errorf("%w: total shares must be positive, got %s",
			ferrors.ErrInvalidParameter, v.params.TotalShares)
	}

	var advisories []string
	baseFCF := cashflow[0].FreeCashflow
	if !baseFCF.IsPositive() {
		msg := fmt.Sprintf("base free cashflow %s for %d is not positive, DCF result is unreliable",
			baseFCF, cashflow[0].Statement.Year())
		v.logger.Warn("Non-positive base free cashflow",
			zap.String("stock_code", cashflow[0].Statement.StockCode),
			zap.Int("year", cashflow[0].Statement.Year()),
			zap.String("free_cashflow", baseFCF.String()),
		)
		metrics.ValuationAdvisories.WithLabelValues(AdvisoryNonPositiveFCF).Inc()
		advisories = append(advisories, msg)
	}

	one := decimal.NewFromInt(1)
	r := decimal.NewFromFloat(p.DiscountRate)
	g := decimal.NewFromFloat(p.PerpetualGrowthRate)
	growth := one.Add(decimal.NewFromFloat(p.FCFGrowthRate))
	discount := one.Add(r)

	pvSum := decimal.Zero
	for year := 1; year <= forecastYears; year++ {
		fcf := baseFCF.Mul(compound(growth, year))
		pvSum = pvSum.Add(fcf.Div(compound(discount, year)))
	}

	terminalFCF := baseFCF.Mul(compound(growth, forecastYears))
	terminalValue := terminalFCF.Mul(one.Add(g)).Div(r.Sub(g))
	pvTerminal := terminalValue.Div(compound(discount, forecastYears))

	ev := pvSum.Add(pvTerminal)
	return domain.DCFValuation{
		EnterpriseValue: ev,
		PricePerShare:   ev.Div(v.params.TotalShares),
	}, advisories, nil
}

// CalculateMultipleModel 利润增长倍数估值
// 收益率越高倍数越低，low 为保守情景
func (v *Valuator) CalculateMultipleModel(income []domain.IncomeStatement) (domain.MultipleModelValuation, error) {
	if len(income) == 0 {
		return zeroMultiple(), nil
	}

	p := v.params.MultipleModel
	if p.LowYield <= 0 || p.HighYield <= 0 {
		return domain.MultipleModelValuation{}, fmt.Errorf("%w: yields must be positive, got low=%.4f high=%.4f",
			ferrors.ErrInvalidParameter, p.LowYield, p.HighYield)
	}
	if !v.params.TotalShares.IsPositive() {
		return domain.MultipleModelValuation{}, fmt.Errorf("%w: total shares must be positive, got %s",
			ferrors.ErrInvalidParameter, v.params.TotalShares)
	}

	one := decimal.NewFromInt(1)
	lowMultiple := one.Div(decimal.NewFromFloat(p.LowYield))
	highMultiple := one.Div(decimal.NewFromFloat(p.HighYield))

	growth := one.Add(decimal.NewFromFloat(p.NetProfitGrowthRate))
	futureProfit := income[0].NetProfit.Mul(compound(growth, forecastYears))

	low := futureProfit.Mul(lowMultiple).Div(v.params.TotalShares)
	high := futureProfit.Mul(highMultiple).Div(v.params.TotalShares)

	return domain.MultipleModelValuation{
		LowEstimate:       low,
		HighEstimate:      high,
		SafetyMarginPrice: low.Mul(decimal.NewFromFloat(p.SafetyMargin)),
	}, nil
}

// compound base^n，逐次相乘
func compound(base decimal.Decimal, n int) decimal.Decimal {
	result := decimal.NewFromInt(1)
	for i := 0; i < n; i++ {
		result = result.Mul(base)
	}
	return result
}

func zeroDCF() domain.DCFValuation {
	return domain.DCFValuation{EnterpriseValue: decimal.Zero, PricePerShare: decimal.Zero}
}

func zeroMultiple() domain.MultipleModelValuation {
	return domain.MultipleModelValuation{
		LowEstimate:       decimal.Zero,
		HighEstimate:      decimal.Zero,
		SafetyMarginPrice: decimal.Zero,
	}
}
