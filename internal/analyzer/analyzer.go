package analyzer

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/finvalue-ai/finvalue/internal/domain"
	ferrors "github.com/finvalue-ai/finvalue/pkg/errors"
	"go.uber.org/zap"
)

// FinancialAnalyzer 串联比率计算与估值
type FinancialAnalyzer struct {
	calculator *RatioCalculator
	params     domain.ValuationParams
	logger     *zap.Logger
}

// NewFinancialAnalyzer 创建分析器
// params.TotalShares 作为无股本数据时的默认值
func NewFinancialAnalyzer(params domain.ValuationParams, leverage LeverageOptions, logger *zap.Logger) *FinancialAnalyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FinancialAnalyzer{
		calculator: NewRatioCalculator(leverage),
		params:     params,
		logger:     logger,
	}
}

// Analyze 对已获取的三张报表序列执行完整分析
// 参数错误终止分析；杠杆计算失败只跳过该项
func (a *FinancialAnalyzer) Analyze(
	stockCode string,
	years []int,
	balance []domain.BalanceSheet,
	income []domain.IncomeStatement,
	cashflow []domain.CashflowStatement,
) (*domain.AnalysisResult, error) {
	logger := a.logger.With(zap.String("stock_code", stockCode))

	statements := domain.Flatten(balance, income, cashflow)
	shares := ResolveTotalShares(statements, a.params.TotalShares, logger)
	params := a.params.WithTotalShares(shares)

	result := &domain.AnalysisResult{
		StockCode:      stockCode,
		Years:          years,
		AssetStructure: a.calculator.CalculateAssetStructure(balance),
		ProfitAnalysis: a.calculator.CalculateProfitRatios(income),
		Statements:     statements,
	}

	leverage, err := a.calculator.CalculateLeverage(income)
	if err != nil {
		logger.Warn("Leverage analysis skipped", zap.Error(err))
	} else {
		result.LeverageAnalysis = leverage
	}

	valuation, err := NewValuator(params, logger).Calculate(income, cashflow)
	if err != nil {
		if errors.Is(err, ferrors.ErrInvalidParameter) {
			logger.Error("Valuation aborted", zap.Error(err))
			return nil, err
		}
		return nil, fmt.Errorf("valuation failed: %w", err)
	}
	result.Valuation = valuation

	logger.Info("Analysis completed",
		zap.Int("balance_sheets", len(balance)),
		zap.Int("income_statements", len(income)),
		zap.Int("cashflow_statements", len(cashflow)),
		zap.String("total_shares", shares.String()),
		zap.Int("advisories", len(valuation.Advisories)),
	)
	return result, nil
}

// DateRange 年份列表对应的报告期区间 [最早年 12-31, 最近年 12-31]
func DateRange(years []int) (time.Time, time.Time, error) {
	if len(years) == 0 {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: no years requested", ferrors.ErrInvalidParameter)
	}
	sorted := append([]int(nil), years...)
	sort.Ints(sorted)
	start := time.Date(sorted[0], time.December, 31, 0, 0, 0, 0, time.UTC)
	end := time.Date(sorted[len(sorted)-1], time.December, 31, 0, 0, 0, 0, time.UTC)
	return start, end, nil
}
