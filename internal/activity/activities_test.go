package activity

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/finvalue-ai/finvalue/internal/datasource"
	"github.com/finvalue-ai/finvalue/internal/domain"
	"github.com/finvalue-ai/finvalue/internal/validation"
	"github.com/finvalue-ai/finvalue/pkg/cache"
	"github.com/finvalue-ai/finvalue/pkg/config"
	ferrors "github.com/finvalue-ai/finvalue/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"
)

const testStock = "600519.SH"

// memCache 内存缓存
type memCache struct {
	mu      sync.Mutex
	entries map[string]string
	getErr  error
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]string)}
}

func (m *memCache) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", m.getErr
	}
	return m.entries[key], nil
}

func (m *memCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
	return nil
}

func (m *memCache) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.entries, k)
	}
	return nil
}

func (m *memCache) Close() error { return nil }

// countingSource 统计数据源调用次数
type countingSource struct {
	datasource.DataSource
	calls int
	err   error
}

func (c *countingSource) FetchIncomeStatements(ctx context.Context, code string, start, end time.Time) ([]domain.IncomeStatement, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.DataSource.FetchIncomeStatements(ctx, code, start, end)
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Storage.CacheTTL = time.Hour
	cfg.Analysis.Valuation = config.ValuationConfig{
		DiscountRate:        0.08,
		PerpetualGrowthRate: 0.03,
		FCFGrowthRate:       0.10,
		NetProfitGrowthRate: 0.10,
		LowYield:            0.04,
		HighYield:           0.02,
		SafetyMargin:        0.7,
		DefaultTotalShares:  100_000_000,
	}
	cfg.Validation = config.ValidationConfig{
		Enabled:            true,
		Tolerance:          1000,
		MaxReasonableValue: 1e12,
		GrossMargin:        config.RangeConfig{Min: -0.5, Max: 0.98},
	}
	cfg.Report.Formats = []string{"markdown"}
	return cfg
}

func fetchInput() FetchInput {
	return FetchInput{
		StockCode: testStock,
		Start:     time.Date(2021, time.December, 31, 0, 0, 0, 0, time.UTC),
		End:       time.Date(2023, time.December, 31, 0, 0, 0, 0, time.UTC),
	}
}

func mockSeries(t *testing.T) ([]domain.BalanceSheet, []domain.IncomeStatement, []domain.CashflowStatement) {
	t.Helper()
	ds := datasource.NewMockDataSource(domain.DefaultClassificationPolicy())
	in := fetchInput()
	ctx := context.Background()

	balance, err := ds.FetchBalanceSheets(ctx, in.StockCode, in.Start, in.End)
	require.NoError(t, err)
	income, err := ds.FetchIncomeStatements(ctx, in.StockCode, in.Start, in.End)
	require.NoError(t, err)
	cashflow, err := ds.FetchCashflowStatements(ctx, in.StockCode, in.Start, in.End)
	require.NoError(t, err)
	return balance, income, cashflow
}

func newEnv(s *testsuite.WorkflowTestSuite, a *Activities) *testsuite.TestActivityEnvironment {
	env := s.NewTestActivityEnvironment()
	env.RegisterActivity(a)
	return env
}

func TestFetchUsesCache(t *testing.T) {
	var s testsuite.WorkflowTestSuite
	source := &countingSource{DataSource: datasource.NewMockDataSource(domain.DefaultClassificationPolicy())}
	mem := newMemCache()
	env := newEnv(&s, NewActivities(testConfig(), source, mem, nil))

	val, err := env.ExecuteActivity("FetchIncomeStatements", fetchInput())
	require.NoError(t, err)
	var first []domain.IncomeStatement
	require.NoError(t, val.Get(&first))
	require.Len(t, first, 3)
	assert.Equal(t, 1, source.calls)

	key := cache.StatementKey(testStock, string(domain.IncomeStatementReport), fetchInput().Start, fetchInput().End)
	assert.Contains(t, mem.entries, key)

	val, err = env.ExecuteActivity("FetchIncomeStatements", fetchInput())
	require.NoError(t, err)
	var second []domain.IncomeStatement
	require.NoError(t, val.Get(&second))
	assert.Equal(t, 1, source.calls)
	require.Len(t, second, 3)
	assert.True(t, first[0].GrossProfit.Equal(second[0].GrossProfit))
	assert.Equal(t, 2023, second[0].Statement.Year())
}

func TestFetchFallsThroughOnCacheError(t *testing.T) {
	var s testsuite.WorkflowTestSuite
	source := &countingSource{DataSource: datasource.NewMockDataSource(domain.DefaultClassificationPolicy())}
	mem := newMemCache()
	mem.getErr = ferrors.ErrCacheUnavailable
	env := newEnv(&s, NewActivities(testConfig(), source, mem, nil))

	_, err := env.ExecuteActivity("FetchIncomeStatements", fetchInput())
	require.NoError(t, err)
	assert.Equal(t, 1, source.calls)
}

func TestFetchErrorClassification(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		wantType     string
		nonRetryable bool
	}{
		{"rate limited", ferrors.ErrRateLimited, "RATE_LIMITED", false},
		{"auth failed", ferrors.ErrAuthFailed, "FATAL_CONFIG", true},
		{"empty data", ferrors.ErrEmptyData, "EMPTY_DATA", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s testsuite.WorkflowTestSuite
			source := &countingSource{
				DataSource: datasource.NewMockDataSource(domain.DefaultClassificationPolicy()),
				err:        tt.err,
			}
			env := newEnv(&s, NewActivities(testConfig(), source, newMemCache(), nil))

			_, err := env.ExecuteActivity("FetchIncomeStatements", fetchInput())
			require.Error(t, err)

			var appErr *temporal.ApplicationError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, tt.wantType, appErr.Type())
			assert.Equal(t, tt.nonRetryable, appErr.NonRetryable())
		})
	}
}

func TestAnalyzeActivity(t *testing.T) {
	var s testsuite.WorkflowTestSuite
	env := newEnv(&s, NewActivities(testConfig(), datasource.NewMockDataSource(domain.DefaultClassificationPolicy()), nil, nil))
	balance, income, cashflow := mockSeries(t)

	val, err := env.ExecuteActivity("AnalyzeActivity", AnalyzeInput{
		StockCode: testStock,
		Years:     []int{2023, 2022, 2021},
		Balance:   balance,
		Income:    income,
		Cashflow:  cashflow,
	})
	require.NoError(t, err)

	var result domain.AnalysisResult
	require.NoError(t, val.Get(&result))
	assert.Equal(t, testStock, result.StockCode)
	assert.Len(t, result.Statements, 9)
	require.NotNil(t, result.Valuation)
	assert.Empty(t, result.Valuation.Advisories)
	assert.True(t, result.Valuation.DCF.PricePerShare.IsPositive())
	require.NotNil(t, result.LeverageAnalysis)
	assert.Equal(t, []int{2023, 2022, 2021}, result.LeverageAnalysis.Years)
}

func TestAnalyzeActivityParameterErrorIsNonRetryable(t *testing.T) {
	var s testsuite.WorkflowTestSuite
	cfg := testConfig()
	cfg.Analysis.Valuation.DiscountRate = 0.03
	env := newEnv(&s, NewActivities(cfg, datasource.NewMockDataSource(domain.DefaultClassificationPolicy()), nil, nil))
	balance, income, cashflow := mockSeries(t)

	_, err := env.ExecuteActivity("AnalyzeActivity", AnalyzeInput{
		StockCode: testStock,
		Years:     []int{2023, 2022, 2021},
		Balance:   balance,
		Income:    income,
		Cashflow:  cashflow,
	})
	require.Error(t, err)

	var appErr *temporal.ApplicationError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "PARAMETER_ERROR", appErr.Type())
	assert.True(t, appErr.NonRetryable())
}

func TestValidateActivity(t *testing.T) {
	var s testsuite.WorkflowTestSuite
	env := newEnv(&s, NewActivities(testConfig(), datasource.NewMockDataSource(domain.DefaultClassificationPolicy()), nil, nil))
	balance, income, cashflow := mockSeries(t)
	balance[0].Statement.Items[domain.AccountTotalAssets] = balance[0].Statement.Items[domain.AccountTotalAssets].Add(domain.DefaultTotalShares)

	val, err := env.ExecuteActivity("ValidateActivity", ValidateInput{
		StockCode: testStock,
		Balance:   balance,
		Income:    income,
		Cashflow:  cashflow,
	})
	require.NoError(t, err)

	var summary validation.Summary
	require.NoError(t, val.Get(&summary))
	assert.False(t, summary.Valid)
	assert.Len(t, summary.Results, 9)
}

func TestSensitivityAndReportActivities(t *testing.T) {
	var s testsuite.WorkflowTestSuite
	cfg := testConfig()
	cfg.Report.OutputDir = t.TempDir()
	acts := NewActivities(cfg, datasource.NewMockDataSource(domain.DefaultClassificationPolicy()), nil, nil)
	env := newEnv(&s, acts)
	balance, income, cashflow := mockSeries(t)

	result, err := acts.analyzer.Analyze(testStock, []int{2023, 2022, 2021}, balance, income, cashflow)
	require.NoError(t, err)

	val, err := env.ExecuteActivity("SensitivityActivity", SensitivityInput{
		Result: result,
		Params: domain.DefaultSensitivityParams(),
	})
	require.NoError(t, err)
	var sens domain.SensitivityResult
	require.NoError(t, val.Get(&sens))
	assert.True(t, domain.DefaultTotalShares.Equal(sens.TotalShares))
	result.Sensitivity = &sens

	val, err = env.ExecuteActivity("ReportActivity", ReportInput{Result: result, Formats: []string{"markdown", "csv"}})
	require.NoError(t, err)
	var out ReportOutput
	require.NoError(t, val.Get(&out))
	assert.Contains(t, out.Document.Markdown, "## 敏感性分析")
	assert.NotEmpty(t, out.Document.CSV)
	require.Len(t, out.Files, 2)

	_, err = os.Stat(filepath.Join(cfg.Report.OutputDir, testStock+".md"))
	assert.NoError(t, err)
}

func TestCleanupCacheActivity(t *testing.T) {
	var s testsuite.WorkflowTestSuite
	mem := newMemCache()
	env := newEnv(&s, NewActivities(testConfig(), datasource.NewMockDataSource(domain.DefaultClassificationPolicy()), mem, nil))

	in := fetchInput()
	incomeKey := cache.StatementKey(testStock, string(domain.IncomeStatementReport), in.Start, in.End)
	balanceKey := cache.StatementKey(testStock, string(domain.BalanceSheetReport), in.Start, in.End)
	mem.entries[incomeKey] = "[]"
	mem.entries[balanceKey] = "[]"

	_, err := env.ExecuteActivity("CleanupCacheActivity", CleanupInput{
		StockCode:  testStock,
		Start:      in.Start,
		End:        in.End,
		Statements: []domain.ReportType{domain.IncomeStatementReport},
	})
	require.NoError(t, err)
	assert.NotContains(t, mem.entries, incomeKey)
	assert.Contains(t, mem.entries, balanceKey)
}

func TestParamsFromConfig(t *testing.T) {
	cfg := testConfig()
	params := ValuationParams(cfg.Analysis.Valuation)
	defaults := domain.DefaultValuationParams()
	assert.Equal(t, defaults.DCF, params.DCF)
	assert.Equal(t, defaults.MultipleModel, params.MultipleModel)
	assert.True(t, defaults.TotalShares.Equal(params.TotalShares))

	cfg.Analysis.Valuation.DefaultTotalShares = 0
	assert.True(t, domain.DefaultTotalShares.Equal(ValuationParams(cfg.Analysis.Valuation).TotalShares))

	policy := ClassificationPolicy(config.ClassificationConfig{FinancialAssets: []string{"货币资金"}})
	assert.Equal(t, domain.Financial, policy.Assets["货币资金"])
	assert.Equal(t, domain.Financial, policy.Liabilities["短期借款"])
	_, ok := policy.Assets["交易性金融资产"]
	assert.False(t, ok)

	opts := LeverageOptions(config.LeverageConfig{})
	assert.NotEmpty(t, opts.InterestExpenseKeys)
}
