// 分析报告渲染
package report

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/finvalue-ai/finvalue/internal/domain"
	"github.com/finvalue-ai/finvalue/internal/validation"
	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// 支持的输出格式
const (
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
	FormatCSV      = "csv"
)

// Document 渲染后的报告，未请求的格式为空
type Document struct {
	StockCode string `json:"stock_code"`
	Markdown  string `json:"markdown,omitempty"`
	HTML      string `json:"html,omitempty"`
	CSV       string `json:"csv,omitempty"`
}

// Renderer 报告渲染器
type Renderer struct {
	md goldmark.Markdown
}

// NewRenderer 创建渲染器，启用 GFM 表格
func NewRenderer() *Renderer {
	return &Renderer{md: goldmark.New(goldmark.WithExtensions(extension.Table))}
}

// Render 按格式渲染报告
func (r *Renderer) Render(result *domain.AnalysisResult, summary *validation.Summary, formats []string) (*Document, error) {
	doc := &Document{StockCode: result.StockCode}
	markdown := Markdown(result, summary)

	for _, f := range formats {
		switch f {
		case FormatMarkdown:
			doc.Markdown = markdown
		case FormatHTML:
			html, err := r.HTML(markdown)
			if err != nil {
				return nil, err
			}
			doc.HTML = html
		case FormatCSV:
			csv, err := RatiosCSV(result)
			if err != nil {
				return nil, err
			}
			doc.CSV = csv
		default:
			return nil, fmt.Errorf("unknown report format %q", f)
		}
	}
	return doc, nil
}

// HTML 将 Markdown 转换为 HTML
func (r *Renderer) HTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("failed to render html: %w", err)
	}
	return buf.String(), nil
}

// Markdown 生成 Markdown 报告
func Markdown(result *domain.AnalysisResult, summary *validation.Summary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s 财务分析报告\n\n", result.StockCode)
	if len(result.Years) > 0 {
		fmt.Fprintf(&b, "分析年度: %s\n\n", joinYears(result.Years))
	}

	if summary != nil {
		b.WriteString("## 数据质量\n\n")
		fmt.Fprintf(&b, "- 校验结果: %s\n", passFail(summary.Valid))
		fmt.Fprintf(&b, "- 可靠性评分: %.0f\n", summary.ReliabilityScore)
		for _, r := range summary.Results {
			for _, e := range r.Errors {
				fmt.Fprintf(&b, "- [%s] %d %s: %s\n", e.Severity, r.Year, r.ReportType, e.Message)
			}
			for _, w := range r.Warnings {
				fmt.Fprintf(&b, "- [warning] %d %s: %s\n", r.Year, r.ReportType, w.Message)
			}
		}
		b.WriteString("\n")
	}

	b.WriteString("## 资产结构\n\n")
	b.WriteString("| 年度 | 经营性资产占比 | 金融性资产占比 |\n|---|---|---|\n")
	as := result.AssetStructure
	for i, year := range as.Years {
		fmt.Fprintf(&b, "| %d | %s | %s |\n", year, percent(as.OperatingAssetRatio[i]), percent(as.FinancialAssetRatio[i]))
	}

	b.WriteString("\n## 盈利能力\n\n")
	b.WriteString("| 年度 | 毛利率 | 核心利润率 | 净利率 |\n|---|---|---|---|\n")
	pa := result.ProfitAnalysis
	for i, year := range pa.Years {
		fmt.Fprintf(&b, "| %d | %s | %s | %s |\n", year,
			percent(pa.GrossMargin[i]), percent(pa.CoreProfitMargin[i]), percent(pa.NetProfitMargin[i]))
	}

	if la := result.LeverageAnalysis; la != nil {
		b.WriteString("\n## 杠杆分析\n\n")
		b.WriteString("| 年度 | 经营杠杆 | 财务杠杆 | 总杠杆 |\n|---|---|---|---|\n")
		for i, year := range la.Years {
			fmt.Fprintf(&b, "| %d | %s | %s | %s |\n", year,
				la.OperatingLeverage[i].StringFixed(2), la.FinancialLeverage[i].StringFixed(2), la.TotalLeverage[i].StringFixed(2))
		}
	}

	if v := result.Valuation; v != nil {
		b.WriteString("\n## 估值\n\n")
		b.WriteString("| 方法 | 结果 |\n|---|---|\n")
		fmt.Fprintf(&b, "| DCF 企业价值 | %s |\n", v.DCF.EnterpriseValue.StringFixed(2))
		fmt.Fprintf(&b, "| DCF 每股价值 | %s |\n", v.DCF.PricePerShare.StringFixed(4))
		fmt.Fprintf(&b, "| 倍数估值（保守） | %s |\n", v.MultipleModel.LowEstimate.StringFixed(4))
		fmt.Fprintf(&b, "| 倍数估值（乐观） | %s |\n", v.MultipleModel.HighEstimate.StringFixed(4))
		fmt.Fprintf(&b, "| 安全边际价格 | %s |\n", v.MultipleModel.SafetyMarginPrice.StringFixed(4))
		if len(v.Advisories) > 0 {
			b.WriteString("\n")
			for _, a := range v.Advisories {
				fmt.Fprintf(&b, "> 提示: %s\n", a)
			}
		}
	}

	if s := result.Sensitivity; s != nil {
		b.WriteString("\n## 敏感性分析\n\n")
		fmt.Fprintf(&b, "假设: 折现率 %.2f%%, 永续增长率 %.2f%%, FCF 增长率 %.2f%%, 净利润增长率 %.2f%%, 收益率 %.2f%% / %.2f%%\n\n",
			s.Params.DiscountRate*100, s.Params.PerpetualGrowthRate*100, s.Params.FCFGrowthRate*100,
			s.Params.NetProfitGrowthRate*100, s.Params.LowYield*100, s.Params.HighYield*100)
		b.WriteString("| 指标 | 结果 |\n|---|---|\n")
		fmt.Fprintf(&b, "| 总股本 | %s |\n", s.TotalShares.String())
		fmt.Fprintf(&b, "| DCF 企业价值 | %s |\n", s.DCFEnterpriseValue.StringFixed(2))
		fmt.Fprintf(&b, "| DCF 每股价值 | %s |\n", s.DCFPricePerShare.StringFixed(4))
		fmt.Fprintf(&b, "| 倍数估值（保守） | %s |\n", s.MultipleLowEstimate.StringFixed(4))
		fmt.Fprintf(&b, "| 倍数估值（乐观） | %s |\n", s.MultipleHighEstimate.StringFixed(4))
		fmt.Fprintf(&b, "| 安全边际价格 | %s |\n", s.MultipleSafetyMarginPrice.StringFixed(4))
	}

	return b.String()
}

// ratioRow CSV 导出行
type ratioRow struct {
	Year                string `csv:"year"`
	OperatingAssetRatio string `csv:"operating_asset_ratio"`
	FinancialAssetRatio string `csv:"financial_asset_ratio"`
	GrossMargin         string `csv:"gross_margin"`
	CoreProfitMargin    string `csv:"core_profit_margin"`
	NetProfitMargin     string `csv:"net_profit_margin"`
	OperatingLeverage   string `csv:"operating_leverage"`
	FinancialLeverage   string `csv:"financial_leverage"`
	TotalLeverage       string `csv:"total_leverage"`
}

// RatiosCSV 按年度导出比率表，缺失的指标留空
func RatiosCSV(result *domain.AnalysisResult) (string, error) {
	rows := make(map[int]*ratioRow)
	var order []int
	row := func(year int) *ratioRow {
		if r, ok := rows[year]; ok {
			return r
		}
		r := &ratioRow{Year: fmt.Sprint(year)}
		rows[year] = r
		order = append(order, year)
		return r
	}

	as := result.AssetStructure
	for i, year := range as.Years {
		r := row(year)
		r.OperatingAssetRatio = as.OperatingAssetRatio[i].StringFixed(4)
		r.FinancialAssetRatio = as.FinancialAssetRatio[i].StringFixed(4)
	}
	pa := result.ProfitAnalysis
	for i, year := range pa.Years {
		r := row(year)
		r.GrossMargin = pa.GrossMargin[i].StringFixed(4)
		r.CoreProfitMargin = pa.CoreProfitMargin[i].StringFixed(4)
		r.NetProfitMargin = pa.NetProfitMargin[i].StringFixed(4)
	}
	if la := result.LeverageAnalysis; la != nil {
		for i, year := range la.Years {
			r := row(year)
			r.OperatingLeverage = la.OperatingLeverage[i].StringFixed(4)
			r.FinancialLeverage = la.FinancialLeverage[i].StringFixed(4)
			r.TotalLeverage = la.TotalLeverage[i].StringFixed(4)
		}
	}

	out := make([]ratioRow, 0, len(order))
	for _, year := range order {
		out = append(out, *rows[year])
	}

	var buf bytes.Buffer
	if err := gocsv.Marshal(out, &buf); err != nil {
		return "", fmt.Errorf("failed to export ratios csv: %w", err)
	}
	return buf.String(), nil
}

// WriteFiles 将非空格式写入 dir，文件名以股票代码为前缀
func WriteFiles(dir string, doc *Document) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create report dir: %w", err)
	}

	var written []string
	for ext, content := range map[string]string{"md": doc.Markdown, "html": doc.HTML, "csv": doc.CSV} {
		if content == "" {
			continue
		}
		path := filepath.Join(dir, fmt.Sprintf("%s.%s", doc.StockCode, ext))
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}

func percent(d decimal.Decimal) string {
	return d.Mul(decimal.NewFromInt(100)).StringFixed(2) + "%"
}

func passFail(ok bool) string {
	if ok {
		return "通过"
	}
	return "未通过"
}

func joinYears(years []int) string {
	parts := make([]string, len(years))
	for i, y := range years {
		parts[i] = fmt.Sprint(y)
	}
	return strings.Join(parts, ", ")
}
