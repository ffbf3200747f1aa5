// 财务报表数据模型
package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ReportType 报告类型
type ReportType string

const (
	BalanceSheetReport      ReportType = "balance_sheet"
	IncomeStatementReport   ReportType = "income_statement"
	CashflowStatementReport ReportType = "cashflow_statement"
)

// ParseReportType 解析报告类型
func ParseReportType(s string) (ReportType, error) {
	switch ReportType(s) {
	case BalanceSheetReport, IncomeStatementReport, CashflowStatementReport:
		return ReportType(s), nil
	default:
		return "", fmt.Errorf("unknown report type %q", s)
	}
}

// 规范科目名称
const (
	AccountTotalAssets      = "资产总计"
	AccountTotalLiabilities = "负债合计"
	AccountTotalEquity      = "所有者权益合计"
	AccountShareCapital     = "股本"
	AccountPaidInCapital    = "实收资本(或股本)"

	AccountTotalRevenue       = "营业总收入"
	AccountRevenue            = "营业收入"
	AccountOperatingCost      = "营业成本"
	AccountTotalOperatingCost = "营业总成本"
	AccountOperatingProfit    = "营业利润"
	AccountNetProfit          = "净利润"
	AccountParentNetProfit    = "归属于母公司所有者的净利润"
	AccountFinancialExpense   = "财务费用"
	AccountInterestExpense    = "利息费用"

	AccountOperatingCashflow  = "经营活动产生的现金流量净额"
	AccountInvestingCashflow  = "投资活动产生的现金流量净额"
	AccountFinancingCashflow  = "筹资活动产生的现金流量净额"
	AccountCapitalExpenditure = "购建固定资产、无形资产和其他长期资产支付的现金"
)

// LineItems 科目名称到金额的映射
type LineItems map[string]decimal.Decimal

// Lookup 按候选科目顺序取第一个存在的值，全部缺失时返回零
func (li LineItems) Lookup(keys ...string) decimal.Decimal {
	v, _ := li.LookupOK(keys...)
	return v
}

// LookupOK 同 Lookup，并报告是否命中任一候选科目
func (li LineItems) LookupOK(keys ...string) (decimal.Decimal, bool) {
	for _, k := range keys {
		if v, ok := li[k]; ok {
			return v, true
		}
	}
	return decimal.Zero, false
}

// FinancialStatement 财务报表基础结构，构造后只读
type FinancialStatement struct {
	StockCode  string     `json:"stock_code"`
	ReportDate time.Time  `json:"report_date"`
	ReportType ReportType `json:"report_type"`
	Items      LineItems  `json:"items"`
}

// Year 报告年度
func (s FinancialStatement) Year() int {
	return s.ReportDate.Year()
}

// IsAnnual 是否为年报（12月31日）
func (s FinancialStatement) IsAnnual() bool {
	return s.ReportDate.Month() == time.December && s.ReportDate.Day() == 31
}

// AccountGroup 资产或负债分组，带累计合计
type AccountGroup struct {
	Items map[string]decimal.Decimal `json:"items"`
	Total decimal.Decimal            `json:"total"`
}

// NewAccountGroup 创建空分组
func NewAccountGroup() AccountGroup {
	return AccountGroup{
		Items: make(map[string]decimal.Decimal),
		Total: decimal.Zero,
	}
}

// Add 加入科目并累加合计
func (g *AccountGroup) Add(name string, amount decimal.Decimal) {
	if g.Items == nil {
		g.Items = make(map[string]decimal.Decimal)
	}
	g.Total = g.Total.Add(amount)
	g.Items[name] = amount
}

// BalanceSheet 资产负债表
type BalanceSheet struct {
	Statement            FinancialStatement `json:"statement"`
	OperatingAssets      AccountGroup       `json:"operating_assets"`
	FinancialAssets      AccountGroup       `json:"financial_assets"`
	OperatingLiabilities AccountGroup       `json:"operating_liabilities"`
	FinancialLiabilities AccountGroup       `json:"financial_liabilities"`
}

// IncomeStatement 利润表
type IncomeStatement struct {
	Statement     FinancialStatement `json:"statement"`
	Revenue       decimal.Decimal    `json:"revenue"`
	OperatingCost decimal.Decimal    `json:"operating_cost"`
	GrossProfit   decimal.Decimal    `json:"gross_profit"`
	CoreProfit    decimal.Decimal    `json:"core_profit"`
	NetProfit     decimal.Decimal    `json:"net_profit"`
}

// CashflowStatement 现金流量表
type CashflowStatement struct {
	Statement          FinancialStatement `json:"statement"`
	OperatingCashflow  decimal.Decimal    `json:"operating_cashflow"`
	InvestingCashflow  decimal.Decimal    `json:"investing_cashflow"`
	FinancingCashflow  decimal.Decimal    `json:"financing_cashflow"`
	CapitalExpenditure decimal.Decimal    `json:"capital_expenditure"`
	FreeCashflow       decimal.Decimal    `json:"free_cashflow"`
}
