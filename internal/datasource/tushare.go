package datasource

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/finvalue-ai/finvalue/internal/domain"
	"github.com/finvalue-ai/finvalue/pkg/config"
	ferrors "github.com/finvalue-ai/finvalue/pkg/errors"
	"github.com/finvalue-ai/finvalue/pkg/metrics"
	"github.com/finvalue-ai/finvalue/pkg/tracing"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const tushareDateLayout = "20060102"

// Tushare 错误码
const (
	tushareCodeAuth      = 40101
	tushareCodeRateLimit = 40203
)

// Tushare 接口名
const (
	apiBalanceSheet = "balancesheet"
	apiIncome       = "income"
	apiCashflow     = "cashflow"
)

// Tushare 字段到规范科目名的映射，未列出的字段丢弃
var (
	balanceSheetFields = map[string]string{
		"total_assets":               domain.AccountTotalAssets,
		"total_liab":                 domain.AccountTotalLiabilities,
		"total_hldr_eqy_inc_min_int": domain.AccountTotalEquity,
		"total_share":                domain.AccountShareCapital,
		"money_cap":                  "货币资金",
		"notes_receiv":               "应收票据",
		"accounts_receiv":            "应收账款",
		"prepayment":                 "预付款项",
		"inventories":                "存货",
		"contract_assets":            "合同资产",
		"fix_assets":                 "固定资产",
		"cip":                        "在建工程",
		"intan_assets":               "无形资产",
		"defer_tax_assets":           "递延所得税资产",
		"trad_asset":                 "交易性金融资产",
		"lt_eqt_invest":              "长期股权投资",
		"invest_real_estate":         "投资性房地产",
		"int_receiv":                 "应收利息",
		"div_receiv":                 "应收股利",
		"notes_payable":              "应付票据",
		"acct_payable":               "应付账款",
		"adv_receipts":               "预收款项",
		"contract_liab":              "合同负债",
		"payroll_payable":            "应付职工薪酬",
		"taxes_payable":              "应交税费",
		"st_borr":                    "短期借款",
		"lt_borr":                    "长期借款",
		"bond_payable":               "应付债券",
		"int_payable":                "应付利息",
		"div_payable":                "应付股利",
		"non_cur_liab_due_1y":        "一年内到期的非流动负债",
		"undistr_porfit":             "未分配利润",
		"minority_int":               "少数股东权益",
	}
	incomeFields = map[string]string{
		"total_revenue":   domain.AccountTotalRevenue,
		"revenue":         domain.AccountRevenue,
		"oper_cost":       domain.AccountOperatingCost,
		"total_cogs":      domain.AccountTotalOperatingCost,
		"operate_profit":  domain.AccountOperatingProfit,
		"n_income":        domain.AccountNetProfit,
		"n_income_attr_p": domain.AccountParentNetProfit,
		"fin_exp":         domain.AccountFinancialExpense,
		"int_exp":         domain.AccountInterestExpense,
		"biz_tax_surchg":  "税金及附加",
		"sell_exp":        "销售费用",
		"admin_exp":       "管理费用",
		"rd_exp":          "研发费用",
	}
	cashflowFields = map[string]string{
		"n_cashflow_act":         domain.AccountOperatingCashflow,
		"n_cashflow_inv_act":     domain.AccountInvestingCashflow,
		"n_cash_flows_fnc_act":   domain.AccountFinancingCashflow,
		"c_pay_acq_const_fiolta": domain.AccountCapitalExpenditure,
	}
)

// TushareClient Tushare Pro HTTP 客户端
type TushareClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	policy     domain.ClassificationPolicy
	logger     *zap.Logger
}

type tushareRequest struct {
	APIName string            `json:"api_name"`
	Token   string            `json:"token"`
	Params  map[string]string `json:"params"`
	Fields  string            `json:"fields"`
}

type tushareResponse struct {
	Code int          `json:"code"`
	Msg  string       `json:"msg"`
	Data *tushareData `json:"data"`
}

type tushareData struct {
	Fields []string        `json:"fields"`
	Items  [][]interface{} `json:"items"`
}

// NewTushareClient 创建 Tushare 客户端
func NewTushareClient(cfg config.TushareConfig, policy domain.ClassificationPolicy, logger *zap.Logger) (*TushareClient, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("%w: tushare token is empty", ferrors.ErrConfigInvalid)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://api.tushare.pro"
	}
	return &TushareClient{
		baseURL:    baseURL,
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: timeout},
		policy:     policy,
		logger:     logger.With(zap.String("data_source", "tushare")),
	}, nil
}

// Name 数据源名称
func (c *TushareClient) Name() string {
	return "tushare"
}

// FetchBalanceSheets 获取资产负债表
func (c *TushareClient) FetchBalanceSheets(ctx context.Context, stockCode string, start, end time.Time) ([]domain.BalanceSheet, error) {
	stmts, err := c.fetch(ctx, apiBalanceSheet, balanceSheetFields, domain.BalanceSheetReport, stockCode, start, end)
	if err != nil {
		return nil, err
	}
	return toBalanceSheets(stmts, c.policy), nil
}

// FetchIncomeStatements 获取利润表
func (c *TushareClient) FetchIncomeStatements(ctx context.Context, stockCode string, start, end time.Time) ([]domain.IncomeStatement, error) {
	stmts, err := c.fetch(ctx, apiIncome, incomeFields, domain.IncomeStatementReport, stockCode, start, end)
	if err != nil {
		return nil, err
	}
	return toIncomeStatements(stmts), nil
}

// FetchCashflowStatements 获取现金流量表
func (c *TushareClient) FetchCashflowStatements(ctx context.Context, stockCode string, start, end time.Time) ([]domain.CashflowStatement, error) {
	stmts, err := c.fetch(ctx, apiCashflow, cashflowFields, domain.CashflowStatementReport, stockCode, start, end)
	if err != nil {
		return nil, err
	}
	return toCashflowStatements(stmts), nil
}

func (c *TushareClient) fetch(
	ctx context.Context,
	apiName string,
	fields map[string]string,
	reportType domain.ReportType,
	stockCode string,
	start, end time.Time,
) ([]domain.FinancialStatement, error) {
	params := map[string]string{
		"ts_code":    stockCode,
		"start_date": start.Format(tushareDateLayout),
		"end_date":   end.Format(tushareDateLayout),
	}
	data, err := c.callAPI(ctx, apiName, params, requestFields(fields))
	if err != nil {
		return nil, err
	}

	stmts, err := parseStatements(data, fields, reportType, stockCode)
	if err != nil {
		return nil, err
	}
	out := normalize(stmts, start, end)

	c.logger.Debug("Tushare statements fetched",
		zap.String("api", apiName),
		zap.String("stock_code", stockCode),
		zap.Int("rows", len(data.Items)),
		zap.Int("annual_reports", len(out)),
	)
	return out, nil
}

// callAPI 调用 Tushare 接口
func (c *TushareClient) callAPI(ctx context.Context, apiName string, params map[string]string, fields string) (*tushareData, error) {
	ctx, span := tracing.StartSpan(ctx, "tushare."+apiName)
	defer span.End()
	tracing.SetAttributes(ctx, attribute.String("tushare.ts_code", params["ts_code"]))

	startTime := time.Now()
	status := "success"
	defer func() {
		metrics.DataSourceRequests.WithLabelValues("tushare", apiName, status).Inc()
		metrics.DataSourceLatency.WithLabelValues("tushare", apiName).Observe(time.Since(startTime).Seconds())
	}()

	body, err := json.Marshal(tushareRequest{
		APIName: apiName,
		Token:   c.token,
		Params:  params,
		Fields:  fields,
	})
	if err != nil {
		status = "error"
		return nil, fmt.Errorf("failed to encode tushare request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		status = "error"
		return nil, fmt.Errorf("failed to build tushare request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		status = "error"
		tracing.RecordError(ctx, err)
		return nil, fmt.Errorf("%w: tushare %s: %v", ferrors.ErrDataSource, apiName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		status = fmt.Sprintf("http_%d", resp.StatusCode)
		err := fmt.Errorf("%w: tushare %s returned HTTP %d", ferrors.ErrDataSource, apiName, resp.StatusCode)
		tracing.RecordError(ctx, err)
		return nil, err
	}

	var result tushareResponse
	decoder := json.NewDecoder(resp.Body)
	decoder.UseNumber()
	if err := decoder.Decode(&result); err != nil {
		status = "error"
		return nil, fmt.Errorf("%w: failed to decode tushare %s response: %v", ferrors.ErrDataSource, apiName, err)
	}

	if result.Code != 0 {
		status = fmt.Sprintf("code_%d", result.Code)
		err := classifyTushareCode(result.Code, result.Msg)
		tracing.RecordError(ctx, err)
		c.logger.Warn("Tushare API error",
			zap.String("api", apiName),
			zap.Int("code", result.Code),
			zap.String("msg", result.Msg),
		)
		return nil, err
	}
	if result.Data == nil {
		status = "empty"
		return nil, fmt.Errorf("%w: tushare %s returned no data", ferrors.ErrEmptyData, apiName)
	}

	tracing.AddEvent(ctx, "tushare.response", attribute.Int("rows", len(result.Data.Items)))
	return result.Data, nil
}

func classifyTushareCode(code int, msg string) error {
	switch code {
	case tushareCodeRateLimit:
		return fmt.Errorf("%w: tushare code %d: %s", ferrors.ErrRateLimited, code, msg)
	case tushareCodeAuth:
		return fmt.Errorf("%w: tushare code %d: %s", ferrors.ErrAuthFailed, code, msg)
	default:
		return fmt.Errorf("%w: tushare code %d: %s", ferrors.ErrDataSource, code, msg)
	}
}

// requestFields 拼接请求字段列表
func requestFields(fields map[string]string) string {
	names := make([]string, 0, len(fields)+2)
	names = append(names, "ts_code", "end_date")
	for name := range fields {
		names = append(names, name)
	}
	return strings.Join(names, ",")
}

// parseStatements 将 Tushare 行数据转换为规范科目报表
func parseStatements(data *tushareData, fields map[string]string, reportType domain.ReportType, stockCode string) ([]domain.FinancialStatement, error) {
	dateIdx := -1
	for i, f := range data.Fields {
		if f == "end_date" {
			dateIdx = i
			break
		}
	}
	if dateIdx < 0 {
		return nil, fmt.Errorf("%w: tushare response has no end_date field", ferrors.ErrDataSource)
	}

	out := make([]domain.FinancialStatement, 0, len(data.Items))
	for _, row := range data.Items {
		if dateIdx >= len(row) {
			continue
		}
		rawDate, ok := row[dateIdx].(string)
		if !ok {
			return nil, fmt.Errorf("%w: tushare end_date is not a string: %v", ferrors.ErrDataSource, row[dateIdx])
		}
		reportDate, err := time.Parse(tushareDateLayout, rawDate)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid tushare end_date %q: %v", ferrors.ErrDataSource, rawDate, err)
		}

		items := make(domain.LineItems)
		for i, field := range data.Fields {
			name, mapped := fields[field]
			if !mapped || i >= len(row) {
				continue
			}
			value, ok := toDecimal(row[i])
			if !ok {
				continue
			}
			items[name] = value
		}

		out = append(out, domain.FinancialStatement{
			StockCode:  stockCode,
			ReportDate: reportDate,
			ReportType: reportType,
			Items:      items,
		})
	}
	return out, nil
}

func toDecimal(v interface{}) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(n), true
	default:
		return decimal.Zero, false
	}
}
