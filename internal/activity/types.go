// Activity 输入输出类型
package activity

import (
	"time"

	"github.com/finvalue-ai/finvalue/internal/domain"
	"github.com/finvalue-ai/finvalue/internal/report"
	"github.com/finvalue-ai/finvalue/internal/validation"
)

// ============== Fetch ==============

// FetchInput 报表获取输入，区间为报告期 [Start, End]
type FetchInput struct {
	StockCode string    `json:"stock_code"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
}

// CleanupInput 缓存清理输入
type CleanupInput struct {
	StockCode  string              `json:"stock_code"`
	Start      time.Time           `json:"start"`
	End        time.Time           `json:"end"`
	Statements []domain.ReportType `json:"statements"`
}

// ============== Validate ==============

// ValidateInput 数据校验输入
type ValidateInput struct {
	StockCode string                     `json:"stock_code"`
	Balance   []domain.BalanceSheet      `json:"balance"`
	Income    []domain.IncomeStatement   `json:"income"`
	Cashflow  []domain.CashflowStatement `json:"cashflow"`
}

// ============== Analyze ==============

// AnalyzeInput 分析输入，各序列按报告期倒序
type AnalyzeInput struct {
	StockCode string                     `json:"stock_code"`
	Years     []int                      `json:"years"`
	Balance   []domain.BalanceSheet      `json:"balance"`
	Income    []domain.IncomeStatement   `json:"income"`
	Cashflow  []domain.CashflowStatement `json:"cashflow"`
}

// SensitivityInput 敏感性分析输入
type SensitivityInput struct {
	Result *domain.AnalysisResult   `json:"result"`
	Params domain.SensitivityParams `json:"params"`
}

// ============== Report ==============

// ReportInput 报告生成输入，Formats 为空时使用配置
type ReportInput struct {
	Result     *domain.AnalysisResult `json:"result"`
	Validation *validation.Summary    `json:"validation,omitempty"`
	Formats    []string               `json:"formats,omitempty"`
}

// ReportOutput 报告结果
type ReportOutput struct {
	Document    report.Document `json:"document"`
	Files       []string        `json:"files,omitempty"`
	GeneratedAt time.Time       `json:"generated_at"`
}
