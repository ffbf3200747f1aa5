// 财务数据源
package datasource

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/finvalue-ai/finvalue/internal/domain"
	"github.com/finvalue-ai/finvalue/pkg/config"
	ferrors "github.com/finvalue-ai/finvalue/pkg/errors"
	"go.uber.org/zap"
)

// DataSource 数据源统一接口
// 只返回 [start, end] 内的年报，按报告期倒序
type DataSource interface {
	FetchBalanceSheets(ctx context.Context, stockCode string, start, end time.Time) ([]domain.BalanceSheet, error)
	FetchIncomeStatements(ctx context.Context, stockCode string, start, end time.Time) ([]domain.IncomeStatement, error)
	FetchCashflowStatements(ctx context.Context, stockCode string, start, end time.Time) ([]domain.CashflowStatement, error)
	Name() string
}

// New 按配置创建数据源
func New(cfg config.DataSourceConfig, policy domain.ClassificationPolicy, logger *zap.Logger) (DataSource, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Provider {
	case "mock":
		return NewMockDataSource(policy), nil
	case "tushare":
		return NewTushareClient(cfg.Tushare, policy, logger)
	default:
		return nil, fmt.Errorf("%w: unknown data source provider %q", ferrors.ErrConfigInvalid, cfg.Provider)
	}
}

// normalize 过滤出区间内的年报，按报告期去重后倒序排列
func normalize(statements []domain.FinancialStatement, start, end time.Time) []domain.FinancialStatement {
	seen := make(map[time.Time]bool, len(statements))
	out := make([]domain.FinancialStatement, 0, len(statements))
	for _, s := range statements {
		if !s.IsAnnual() || s.ReportDate.Before(start) || s.ReportDate.After(end) {
			continue
		}
		if seen[s.ReportDate] {
			continue
		}
		seen[s.ReportDate] = true
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ReportDate.After(out[j].ReportDate)
	})
	return out
}

func toBalanceSheets(statements []domain.FinancialStatement, policy domain.ClassificationPolicy) []domain.BalanceSheet {
	out := make([]domain.BalanceSheet, 0, len(statements))
	for _, s := range statements {
		out = append(out, domain.NewBalanceSheet(s, policy))
	}
	return out
}

func toIncomeStatements(statements []domain.FinancialStatement) []domain.IncomeStatement {
	out := make([]domain.IncomeStatement, 0, len(statements))
	for _, s := range statements {
		out = append(out, domain.NewIncomeStatement(s))
	}
	return out
}

func toCashflowStatements(statements []domain.FinancialStatement) []domain.CashflowStatement {
	out := make([]domain.CashflowStatement, 0, len(statements))
	for _, s := range statements {
		out = append(out, domain.NewCashflowStatement(s))
	}
	return out
}
