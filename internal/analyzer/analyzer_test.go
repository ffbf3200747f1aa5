package analyzer

import (
	"testing"
	"time"

	"github.com/finvalue-ai/finvalue/internal/domain"
	ferrors "github.com/finvalue-ai/finvalue/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func fixtureSeries() ([]domain.BalanceSheet, []domain.IncomeStatement, []domain.CashflowStatement) {
	policy := domain.DefaultClassificationPolicy()
	latest := domain.LineItems{domain.AccountShareCapital: dec(10_000_000)}
	latest["货币资金"] = dec(2_000_000)
	balance := []domain.BalanceSheet{
		domain.NewBalanceSheet(annual(domain.BalanceSheetReport, 2023, latest), policy),
		domain.NewBalanceSheet(annual(domain.BalanceSheetReport, 2022, domain.LineItems{
			"货币资金": dec(1_800_000),
		}), policy),
	}
	income := []domain.IncomeStatement{
		incomeStatement(2023, 5_500_000, 1_250_000, 1_000_000),
		incomeStatement(2022, 5_000_000, 1_250_000, 900_000),
	}
	cashflow := []domain.CashflowStatement{
		cashflowStatement(2023, 900_000, 200_000),
		cashflowStatement(2022, 800_000, 150_000),
	}
	return balance, income, cashflow
}

func TestAnalyze(t *testing.T) {
	balance, income, cashflow := fixtureSeries()
	defaults := domain.DefaultValuationParams()
	a := NewFinancialAnalyzer(defaults, DefaultLeverageOptions(), nil)

	res, err := a.Analyze(testStock, []int{2023, 2022}, balance, income, cashflow)
	require.NoError(t, err)

	assert.Equal(t, testStock, res.StockCode)
	assert.Equal(t, []int{2023, 2022}, res.AssetStructure.Years)
	assert.Len(t, res.ProfitAnalysis.GrossMargin, 2)
	require.NotNil(t, res.LeverageAnalysis)
	assert.True(t, res.LeverageAnalysis.OperatingLeverage[0].IsZero())
	require.NotNil(t, res.Valuation)
	assert.Len(t, res.Statements, 6)
	assert.Nil(t, res.Sensitivity)

	// 股本 10,000,000：1,331,000 × 25 / 10,000,000
	assertDecimal(t, 3.3275, res.Valuation.MultipleModel.LowEstimate)
	assert.True(t, domain.DefaultTotalShares.Equal(defaults.TotalShares))
}

func TestAnalyzeDefaultSharesAdvisory(t *testing.T) {
	_, income, cashflow := fixtureSeries()
	core, logs := observer.New(zapcore.WarnLevel)
	a := NewFinancialAnalyzer(domain.DefaultValuationParams(), DefaultLeverageOptions(), zap.New(core))

	res, err := a.Analyze(testStock, []int{2023, 2022}, nil, income, cashflow)
	require.NoError(t, err)

	assertDecimal(t, 0.33275, res.Valuation.MultipleModel.LowEstimate)
	assert.Equal(t, 1, logs.FilterMessage("Share capital not found, using default total shares").Len())
}

func TestAnalyzeSkipsLeverageOnUnorderedSeries(t *testing.T) {
	balance, income, cashflow := fixtureSeries()
	income[0], income[1] = income[1], income[0]

	res, err := NewFinancialAnalyzer(domain.DefaultValuationParams(), DefaultLeverageOptions(), nil).
		Analyze(testStock, []int{2023, 2022}, balance, income, cashflow)
	require.NoError(t, err)

	assert.Nil(t, res.LeverageAnalysis)
	assert.NotNil(t, res.Valuation)
}

func TestAnalyzeAbortsOnParameterError(t *testing.T) {
	balance, income, cashflow := fixtureSeries()
	params := domain.DefaultValuationParams()
	params.DCF.DiscountRate = 0.02

	res, err := NewFinancialAnalyzer(params, DefaultLeverageOptions(), nil).
		Analyze(testStock, []int{2023, 2022}, balance, income, cashflow)

	assert.Nil(t, res)
	assert.ErrorIs(t, err, ferrors.ErrInvalidParameter)
	assert.True(t, ferrors.IsFatal(err))
}

func TestDateRange(t *testing.T) {
	start, end, err := DateRange([]int{2023, 2021, 2022})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2021, time.December, 31, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2023, time.December, 31, 0, 0, 0, 0, time.UTC), end)

	_, _, err = DateRange(nil)
	assert.ErrorIs(t, err, ferrors.ErrInvalidParameter)
}
