package domain

// 派生字段的规范取值顺序
var (
	RevenueKeys       = []string{AccountTotalRevenue, AccountRevenue}
	OperatingCostKeys = []string{AccountOperatingCost, AccountTotalOperatingCost}
	CoreProfitKeys    = []string{AccountOperatingProfit, AccountNetProfit}
	NetProfitKeys     = []string{AccountNetProfit, AccountParentNetProfit}
	ShareCapitalKeys  = []string{AccountShareCapital, AccountPaidInCapital}
)

// NewBalanceSheet 按分类策略构建资产负债表分组
func NewBalanceSheet(stmt FinancialStatement, policy ClassificationPolicy) BalanceSheet {
	bs := BalanceSheet{
		Statement:            stmt,
		OperatingAssets:      NewAccountGroup(),
		FinancialAssets:      NewAccountGroup(),
		OperatingLiabilities: NewAccountGroup(),
		FinancialLiabilities: NewAccountGroup(),
	}

	for name, amount := range stmt.Items {
		if c, ok := policy.Assets[name]; ok {
			switch c {
			case Operating:
				bs.OperatingAssets.Add(name, amount)
			case Financial:
				bs.FinancialAssets.Add(name, amount)
			}
			continue
		}
		if c, ok := policy.Liabilities[name]; ok {
			switch c {
			case Operating:
				bs.OperatingLiabilities.Add(name, amount)
			case Financial:
				bs.FinancialLiabilities.Add(name, amount)
			}
		}
	}
	return bs
}

// NewIncomeStatement 由原始科目派生利润表字段
func NewIncomeStatement(stmt FinancialStatement) IncomeStatement {
	revenue := stmt.Items.Lookup(RevenueKeys...)
	operatingCost := stmt.Items.Lookup(OperatingCostKeys...)
	return IncomeStatement{
		Statement:     stmt,
		Revenue:       revenue,
		OperatingCost: operatingCost,
		GrossProfit:   revenue.Sub(operatingCost),
		CoreProfit:    stmt.Items.Lookup(CoreProfitKeys...),
		NetProfit:     stmt.Items.Lookup(NetProfitKeys...),
	}
}

// NewCashflowStatement 由原始科目派生现金流量表字段
// 自由现金流 = 经营活动现金流净额 - |资本性支出|，资本性支出无论报送符号均视为流出
func NewCashflowStatement(stmt FinancialStatement) CashflowStatement {
	operating := stmt.Items.Lookup(AccountOperatingCashflow)
	capex := stmt.Items.Lookup(AccountCapitalExpenditure).Abs()
	return CashflowStatement{
		Statement:          stmt,
		OperatingCashflow:  operating,
		InvestingCashflow:  stmt.Items.Lookup(AccountInvestingCashflow),
		FinancingCashflow:  stmt.Items.Lookup(AccountFinancingCashflow),
		CapitalExpenditure: capex,
		FreeCashflow:       operating.Sub(capex),
	}
}

// Flatten 按资产负债表、利润表、现金流量表的顺序展开原始报表
func Flatten(balance []BalanceSheet, income []IncomeStatement, cashflow []CashflowStatement) []FinancialStatement {
	out := make([]FinancialStatement, 0, len(balance)+len(income)+len(cashflow))
	for _, bs := range balance {
		out = append(out, bs.Statement)
	}
	for _, is := range income {
		out = append(out, is.Statement)
	}
	for _, cf := range cashflow {
		out = append(out, cf.Statement)
	}
	return out
}

// FilterByType 保持原顺序筛选指定类型的报表
func FilterByType(statements []FinancialStatement, t ReportType) []FinancialStatement {
	var out []FinancialStatement
	for _, s := range statements {
		if s.ReportType == t {
			out = append(out, s)
		}
	}
	return out
}
