package analyzer

import (
	"github.com/finvalue-ai/finvalue/internal/domain"
	"github.com/finvalue-ai/finvalue/pkg/metrics"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SensitivityEngine 在另一组假设下重跑估值，不修改原结果
type SensitivityEngine struct {
	logger *zap.Logger
}

// NewSensitivityEngine 创建敏感性分析引擎
func NewSensitivityEngine(logger *zap.Logger) *SensitivityEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SensitivityEngine{logger: logger}
}

// Run 从扁平报表列表重新派生利润表与现金流量表，按 params 重新估值
func (e *SensitivityEngine) Run(result *domain.AnalysisResult, params domain.SensitivityParams) (*domain.SensitivityResult, error) {
	var (
		income   []domain.IncomeStatement
		cashflow []domain.CashflowStatement
	)
	for _, stmt := range result.Statements {
		switch stmt.ReportType {
		case domain.IncomeStatementReport:
			income = append(income, domain.NewIncomeStatement(stmt))
		case domain.CashflowStatementReport:
			cashflow = append(cashflow, domain.NewCashflowStatement(stmt))
		}
	}

	shares := ResolveTotalShares(result.Statements, domain.DefaultTotalShares, e.logger)

	valuator := NewValuator(params.ToValuationParams(shares), e.logger)
	valuation, err := valuator.Calculate(income, cashflow)
	if err != nil {
		return nil, err
	}

	e.logger.Info("Sensitivity analysis completed",
		zap.String("stock_code", result.StockCode),
		zap.String("dcf_price", valuation.DCF.PricePerShare.StringFixed(4)),
		zap.String("safety_margin_price", valuation.MultipleModel.SafetyMarginPrice.StringFixed(4)),
	)

	return &domain.SensitivityResult{
		Params:                    params,
		TotalShares:               shares,
		DCFEnterpriseValue:        valuation.DCF.EnterpriseValue,
		DCFPricePerShare:          valuation.DCF.PricePerShare,
		MultipleLowEstimate:       valuation.MultipleModel.LowEstimate,
		MultipleHighEstimate:      valuation.MultipleModel.HighEstimate,
		MultipleSafetyMarginPrice: valuation.MultipleModel.SafetyMarginPrice,
	}, nil
}

// ResolveTotalShares 取第一张资产负债表的股本，缺失或非正时使用 fallback 并记录提示
func ResolveTotalShares(statements []domain.FinancialStatement, fallback decimal.Decimal, logger *zap.Logger) decimal.Decimal {
	for _, stmt := range statements {
		if stmt.ReportType != domain.BalanceSheetReport {
			continue
		}
		if shares, ok := stmt.Items.LookupOK(domain.ShareCapitalKeys...); ok && shares.IsPositive() {
			return shares
		}
		break
	}

	if logger != nil {
		logger.Warn("Share capital not found, using default total shares",
			zap.String("total_shares", fallback.String()),
		)
	}
	metrics.ValuationAdvisories.WithLabelValues(AdvisoryDefaultShares).Inc()
	return fallback
}
