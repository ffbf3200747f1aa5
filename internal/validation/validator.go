// 财务数据校验
package validation

import (
	"fmt"

	"github.com/finvalue-ai/finvalue/internal/domain"
	"github.com/finvalue-ai/finvalue/pkg/config"
	"github.com/finvalue-ai/finvalue/pkg/metrics"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Severity 严重程度
type Severity string

const (
	Critical Severity = "critical"
	High     Severity = "high"
	Medium   Severity = "medium"
	Low      Severity = "low"
)

// 每个错误按严重程度扣分，每个警告扣 2 分
var severityPenalty = map[Severity]float64{
	Critical: 50,
	High:     20,
	Medium:   10,
	Low:      5,
}

const warningPenalty = 2.0

// Issue 校验错误
type Issue struct {
	Field    string   `json:"field"`
	Rule     string   `json:"rule"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// Warning 校验警告
type Warning struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Result 单张报表的校验结果
type Result struct {
	StockCode        string            `json:"stock_code"`
	Year             int               `json:"year"`
	ReportType       domain.ReportType `json:"report_type"`
	Valid            bool              `json:"valid"`
	Errors           []Issue           `json:"errors,omitempty"`
	Warnings         []Warning         `json:"warnings,omitempty"`
	ReliabilityScore float64           `json:"reliability_score"`
}

// Summary 整组报表的校验汇总
type Summary struct {
	Valid            bool     `json:"valid"`
	ReliabilityScore float64  `json:"reliability_score"` // 各报表最低分
	Results          []Result `json:"results"`
}

// Rules 校验规则
type Rules struct {
	Tolerance          decimal.Decimal
	MaxReasonableValue decimal.Decimal
	AllowNegative      map[string]bool
	RequiredBalance    []string
	RequiredIncome     []string
	RequiredCashflow   []string
	GrossMarginMin     float64
	GrossMarginMax     float64
}

// RulesFromConfig 由配置构建校验规则
func RulesFromConfig(cfg config.ValidationConfig) Rules {
	allow := make(map[string]bool, len(cfg.AllowNegative))
	for _, name := range cfg.AllowNegative {
		allow[name] = true
	}
	return Rules{
		Tolerance:          decimal.NewFromFloat(cfg.Tolerance),
		MaxReasonableValue: decimal.NewFromFloat(cfg.MaxReasonableValue),
		AllowNegative:      allow,
		RequiredBalance:    cfg.RequiredAccounts.BalanceSheet,
		RequiredIncome:     cfg.RequiredAccounts.IncomeStatement,
		RequiredCashflow:   cfg.RequiredAccounts.CashflowStatement,
		GrossMarginMin:     cfg.GrossMargin.Min,
		GrossMarginMax:     cfg.GrossMargin.Max,
	}
}

// Validator 数据校验器
type Validator struct {
	rules  Rules
	logger *zap.Logger
}

// NewValidator 创建校验器
func NewValidator(rules Rules, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{rules: rules, logger: logger}
}

// ValidateBalanceSheet 校验资产负债表
func (v *Validator) ValidateBalanceSheet(bs domain.BalanceSheet) Result {
	var errs []Issue

	if issue, ok := v.checkAccountingEquation(bs.Statement); !ok {
		errs = append(errs, issue)
	}
	errs = append(errs, v.checkRequired(bs.Statement, v.rules.RequiredBalance)...)
	errs = append(errs, v.checkValueRanges(bs.Statement)...)

	return v.result(bs.Statement, errs, nil)
}

// ValidateIncomeStatement 校验利润表
func (v *Validator) ValidateIncomeStatement(is domain.IncomeStatement) Result {
	errs := v.checkRequired(is.Statement, v.rules.RequiredIncome)

	var warnings []Warning
	if !is.Revenue.IsZero() {
		margin := is.GrossProfit.Div(is.Revenue).InexactFloat64()
		if margin < v.rules.GrossMarginMin || margin > v.rules.GrossMarginMax {
			warnings = append(warnings, Warning{
				Field:   "毛利率",
				Message: fmt.Sprintf("毛利率 %.2f%% 超出合理范围", margin*100),
			})
		}
	}

	return v.result(is.Statement, errs, warnings)
}

// ValidateCashflowStatement 校验现金流量表
func (v *Validator) ValidateCashflowStatement(cf domain.CashflowStatement) Result {
	return v.result(cf.Statement, v.checkRequired(cf.Statement, v.rules.RequiredCashflow), nil)
}

// ValidateAll 校验三张报表序列
func (v *Validator) ValidateAll(balance []domain.BalanceSheet, income []domain.IncomeStatement, cashflow []domain.CashflowStatement) Summary {
	summary := Summary{Valid: true, ReliabilityScore: 100}

	add := func(r Result) {
		summary.Results = append(summary.Results, r)
		if !r.Valid {
			summary.Valid = false
		}
		if r.ReliabilityScore < summary.ReliabilityScore {
			summary.ReliabilityScore = r.ReliabilityScore
		}
	}
	for _, bs := range balance {
		add(v.ValidateBalanceSheet(bs))
	}
	for _, is := range income {
		add(v.ValidateIncomeStatement(is))
	}
	for _, cf := range cashflow {
		add(v.ValidateCashflowStatement(cf))
	}
	return summary
}

func (v *Validator) result(stmt domain.FinancialStatement, errs []Issue, warnings []Warning) Result {
	valid := true
	for _, e := range errs {
		metrics.ValidationIssues.WithLabelValues(string(e.Severity)).Inc()
		if e.Severity == Critical {
			valid = false
		}
	}
	if len(warnings) > 0 {
		metrics.ValidationIssues.WithLabelValues("warning").Add(float64(len(warnings)))
	}

	r := Result{
		StockCode:        stmt.StockCode,
		Year:             stmt.Year(),
		ReportType:       stmt.ReportType,
		Valid:            valid,
		Errors:           errs,
		Warnings:         warnings,
		ReliabilityScore: ReliabilityScore(errs, warnings),
	}
	if len(errs) > 0 || len(warnings) > 0 {
		v.logger.Warn("Statement validation issues",
			zap.String("stock_code", r.StockCode),
			zap.Int("year", r.Year),
			zap.String("report_type", string(r.ReportType)),
			zap.Int("errors", len(errs)),
			zap.Int("warnings", len(warnings)),
			zap.Float64("reliability_score", r.ReliabilityScore),
		)
	}
	return r
}

// checkAccountingEquation 资产 = 负债 + 所有者权益
func (v *Validator) checkAccountingEquation(stmt domain.FinancialStatement) (Issue, bool) {
	assets := stmt.Items.Lookup(domain.AccountTotalAssets)
	liabilities := stmt.Items.Lookup(domain.AccountTotalLiabilities)
	equity := stmt.Items.Lookup(domain.AccountTotalEquity)

	diff := assets.Sub(liabilities.Add(equity)).Abs()
	if diff.GreaterThan(v.rules.Tolerance) {
		return Issue{
			Field:    "会计恒等式",
			Rule:     "资产 = 负债 + 所有者权益",
			Message:  fmt.Sprintf("不平衡: 资产(%s) ≠ 负债(%s) + 权益(%s), 差异: %s", assets, liabilities, equity, diff),
			Severity: Critical,
		}, false
	}
	return Issue{}, true
}

func (v *Validator) checkRequired(stmt domain.FinancialStatement, required []string) []Issue {
	var errs []Issue
	for _, account := range required {
		if _, ok := stmt.Items[account]; !ok {
			errs = append(errs, Issue{
				Field:    account,
				Rule:     "必需科目",
				Message:  fmt.Sprintf("缺少必需科目: %s", account),
				Severity: High,
			})
		}
	}
	return errs
}

func (v *Validator) checkValueRanges(stmt domain.FinancialStatement) []Issue {
	var errs []Issue
	for account, value := range stmt.Items {
		if value.IsNegative() && !v.rules.AllowNegative[account] {
			errs = append(errs, Issue{
				Field:    account,
				Rule:     "非负约束",
				Message:  fmt.Sprintf("%s 不应为负值: %s", account, value),
				Severity: High,
			})
		}
		if v.rules.MaxReasonableValue.IsPositive() && value.Abs().GreaterThan(v.rules.MaxReasonableValue) {
			errs = append(errs, Issue{
				Field:    account,
				Rule:     "数值范围",
				Message:  fmt.Sprintf("%s 数值异常大: %s", account, value),
				Severity: Medium,
			})
		}
	}
	return errs
}

// ReliabilityScore 可靠性评分，最低为 0
func ReliabilityScore(errs []Issue, warnings []Warning) float64 {
	score := 100.0
	for _, e := range errs {
		score -= severityPenalty[e.Severity]
	}
	score -= float64(len(warnings)) * warningPenalty
	if score < 0 {
		return 0
	}
	return score
}
