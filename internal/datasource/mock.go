package datasource

import (
	"context"
	"time"

	"github.com/finvalue-ai/finvalue/internal/domain"
	"github.com/shopspring/decimal"
)

// MockDataSource 固定数据的数据源，每个年度返回相同报表
type MockDataSource struct {
	policy domain.ClassificationPolicy
}

// NewMockDataSource 创建 Mock 数据源
func NewMockDataSource(policy domain.ClassificationPolicy) *MockDataSource {
	return &MockDataSource{policy: policy}
}

// Name 数据源名称
func (m *MockDataSource) Name() string {
	return "mock"
}

// 各报表固定科目
var (
	mockBalanceItems = []mockItem{
		{"货币资金", 1_000_000},
		{"应收账款", 500_000},
		{"存货", 300_000},
		{"固定资产", 2_000_000},
		{domain.AccountTotalAssets, 4_000_000},
		{"应付账款", 400_000},
		{"短期借款", 600_000},
		{domain.AccountTotalLiabilities, 1_500_000},
		{domain.AccountTotalEquity, 2_500_000},
	}
	mockIncomeItems = []mockItem{
		{domain.AccountRevenue, 5_000_000},
		{domain.AccountOperatingCost, 3_000_000},
		{"税金及附加", 50_000},
		{"销售费用", 300_000},
		{"管理费用", 200_000},
		{"研发费用", 150_000},
		{domain.AccountFinancialExpense, 50_000},
		{domain.AccountOperatingProfit, 1_250_000},
		{domain.AccountNetProfit, 1_000_000},
	}
	mockCashflowItems = []mockItem{
		{domain.AccountOperatingCashflow, 900_000},
		{domain.AccountInvestingCashflow, -200_000},
		{domain.AccountFinancingCashflow, -100_000},
		{domain.AccountCapitalExpenditure, 200_000},
	}
)

type mockItem struct {
	name   string
	amount int64
}

// FetchBalanceSheets 获取资产负债表
func (m *MockDataSource) FetchBalanceSheets(ctx context.Context, stockCode string, start, end time.Time) ([]domain.BalanceSheet, error) {
	stmts := m.generate(ctx, stockCode, start, end, domain.BalanceSheetReport, mockBalanceItems)
	return toBalanceSheets(stmts, m.policy), ctx.Err()
}

// FetchIncomeStatements 获取利润表
func (m *MockDataSource) FetchIncomeStatements(ctx context.Context, stockCode string, start, end time.Time) ([]domain.IncomeStatement, error) {
	stmts := m.generate(ctx, stockCode, start, end, domain.IncomeStatementReport, mockIncomeItems)
	return toIncomeStatements(stmts), ctx.Err()
}

// FetchCashflowStatements 获取现金流量表
func (m *MockDataSource) FetchCashflowStatements(ctx context.Context, stockCode string, start, end time.Time) ([]domain.CashflowStatement, error) {
	stmts := m.generate(ctx, stockCode, start, end, domain.CashflowStatementReport, mockCashflowItems)
	return toCashflowStatements(stmts), ctx.Err()
}

// generate 为区间内每个 12-31 生成一张报表
func (m *MockDataSource) generate(ctx context.Context, stockCode string, start, end time.Time, t domain.ReportType, fixed []mockItem) []domain.FinancialStatement {
	var out []domain.FinancialStatement
	for year := start.Year(); year <= end.Year(); year++ {
		if ctx.Err() != nil {
			return nil
		}
		items := make(domain.LineItems, len(fixed))
		for _, it := range fixed {
			items[it.name] = decimal.NewFromInt(it.amount)
		}
		out = append(out, domain.FinancialStatement{
			StockCode:  stockCode,
			ReportDate: time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC),
			ReportType: t,
			Items:      items,
		})
	}
	return normalize(out, start, end)
}
