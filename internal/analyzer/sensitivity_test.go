package analyzer

import (
	"testing"

	"github.com/finvalue-ai/finvalue/internal/domain"
	ferrors "github.com/finvalue-ai/finvalue/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func analysisFixture(shareCapital *float64) *domain.AnalysisResult {
	items := domain.LineItems{"货币资金": dec(1_000_000)}
	if shareCapital != nil {
		items[domain.AccountShareCapital] = dec(*shareCapital)
	}
	balance := []domain.BalanceSheet{
		domain.NewBalanceSheet(annual(domain.BalanceSheetReport, 2023, items), domain.DefaultClassificationPolicy()),
	}
	income := []domain.IncomeStatement{incomeStatement(2023, 5_000_000, 1_250_000, 1_000_000)}
	cashflow := []domain.CashflowStatement{cashflowStatement(2023, 900_000, 200_000)}

	return &domain.AnalysisResult{
		StockCode:  testStock,
		Years:      []int{2023},
		Statements: domain.Flatten(balance, income, cashflow),
	}
}

func TestSensitivityRun(t *testing.T) {
	t.Run("fallback shares with advisory", func(t *testing.T) {
		core, logs := observer.New(zapcore.WarnLevel)
		engine := NewSensitivityEngine(zap.New(core))

		res, err := engine.Run(analysisFixture(nil), domain.DefaultSensitivityParams())
		require.NoError(t, err)

		assert.True(t, domain.DefaultTotalShares.Equal(res.TotalShares))
		assert.Equal(t, 1, logs.FilterMessage("Share capital not found, using default total shares").Len())
	})

	t.Run("share capital from balance sheet", func(t *testing.T) {
		shares := 50_000_000.0
		res, err := NewSensitivityEngine(nil).Run(analysisFixture(&shares), domain.DefaultSensitivityParams())
		require.NoError(t, err)

		assertDecimal(t, shares, res.TotalShares)
		// 1,331,000 × 25 / 50,000,000
		assertDecimal(t, 0.6655, res.MultipleLowEstimate)
		assertDecimal(t, 0.46585, res.MultipleSafetyMarginPrice)
	})

	t.Run("matches a direct valuation under the same params", func(t *testing.T) {
		params := domain.DefaultSensitivityParams()
		res, err := NewSensitivityEngine(nil).Run(analysisFixture(nil), params)
		require.NoError(t, err)

		direct, err := NewValuator(params.ToValuationParams(domain.DefaultTotalShares), nil).Calculate(
			[]domain.IncomeStatement{incomeStatement(2023, 5_000_000, 1_250_000, 1_000_000)},
			[]domain.CashflowStatement{cashflowStatement(2023, 900_000, 200_000)},
		)
		require.NoError(t, err)

		assert.Equal(t, params, res.Params)
		assert.True(t, direct.DCF.EnterpriseValue.Equal(res.DCFEnterpriseValue))
		assert.True(t, direct.DCF.PricePerShare.Equal(res.DCFPricePerShare))
		assert.True(t, direct.MultipleModel.HighEstimate.Equal(res.MultipleHighEstimate))
	})

	t.Run("does not mutate the analysis", func(t *testing.T) {
		result := analysisFixture(nil)
		result.Valuation = &domain.ValuationResult{}
		before := *result
		statementsBefore := append([]domain.FinancialStatement(nil), result.Statements...)

		_, err := NewSensitivityEngine(nil).Run(result, domain.DefaultSensitivityParams())
		require.NoError(t, err)

		assert.Equal(t, before.Valuation, result.Valuation)
		assert.Nil(t, result.Sensitivity)
		assert.Equal(t, statementsBefore, result.Statements)
	})

	t.Run("invalid params", func(t *testing.T) {
		params := domain.DefaultSensitivityParams()
		params.PerpetualGrowthRate = params.DiscountRate

		_, err := NewSensitivityEngine(nil).Run(analysisFixture(nil), params)
		assert.ErrorIs(t, err, ferrors.ErrInvalidParameter)
	})
}
