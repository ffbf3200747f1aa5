package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/finvalue-ai/finvalue/internal/domain"
	"github.com/finvalue-ai/finvalue/internal/validation"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

func sampleResult() *domain.AnalysisResult {
	return &domain.AnalysisResult{
		StockCode: "600519.SH",
		Years:     []int{2023, 2022},
		AssetStructure: domain.AssetStructureAnalysis{
			Years:               []int{2023, 2022},
			OperatingAssetRatio: []decimal.Decimal{d(1), d(0.75)},
			FinancialAssetRatio: []decimal.Decimal{d(0), d(0.25)},
		},
		ProfitAnalysis: domain.ProfitAnalysis{
			Years:            []int{2023, 2022},
			GrossMargin:      []decimal.Decimal{d(0.4), d(0.38)},
			CoreProfitMargin: []decimal.Decimal{d(0.25), d(0.2)},
			NetProfitMargin:  []decimal.Decimal{d(0.2), d(0.18)},
		},
		LeverageAnalysis: &domain.LeverageAnalysis{
			Years:             []int{2023, 2022},
			OperatingLeverage: []decimal.Decimal{d(2), d(0)},
			FinancialLeverage: []decimal.Decimal{d(1.25), d(1)},
			TotalLeverage:     []decimal.Decimal{d(2.5), d(0)},
		},
		Valuation: &domain.ValuationResult{
			DCF: domain.DCFValuation{EnterpriseValue: d(21408693.42), PricePerShare: d(0.2141)},
			MultipleModel: domain.MultipleModelValuation{
				LowEstimate:       d(0.33275),
				HighEstimate:      d(0.6655),
				SafetyMarginPrice: d(0.232925),
			},
			Advisories: []string{"base free cashflow is not positive"},
		},
		Sensitivity: &domain.SensitivityResult{
			Params:      domain.DefaultSensitivityParams(),
			TotalShares: d(100_000_000),
		},
	}
}

func TestMarkdown(t *testing.T) {
	summary := &validation.Summary{
		Valid:            false,
		ReliabilityScore: 50,
		Results: []validation.Result{{
			Year:       2023,
			ReportType: domain.BalanceSheetReport,
			Errors:     []validation.Issue{{Severity: validation.Critical, Message: "不平衡"}},
		}},
	}

	md := Markdown(sampleResult(), summary)

	assert.Contains(t, md, "# 600519.SH 财务分析报告")
	assert.Contains(t, md, "| 2023 | 100.00% | 0.00% |")
	assert.Contains(t, md, "| 2023 | 40.00% | 25.00% | 20.00% |")
	assert.Contains(t, md, "| 2023 | 2.00 | 1.25 | 2.50 |")
	assert.Contains(t, md, "| 安全边际价格 | 0.2329 |")
	assert.Contains(t, md, "> 提示: base free cashflow is not positive")
	assert.Contains(t, md, "## 敏感性分析")
	assert.Contains(t, md, "- [critical] 2023 balance_sheet: 不平衡")
	assert.Contains(t, md, "未通过")
}

func TestMarkdownOmitsAbsentSections(t *testing.T) {
	result := sampleResult()
	result.LeverageAnalysis = nil
	result.Sensitivity = nil

	md := Markdown(result, nil)

	assert.NotContains(t, md, "## 杠杆分析")
	assert.NotContains(t, md, "## 敏感性分析")
	assert.NotContains(t, md, "## 数据质量")
}

func TestRenderFormats(t *testing.T) {
	doc, err := NewRenderer().Render(sampleResult(), nil, []string{FormatMarkdown, FormatHTML, FormatCSV})
	require.NoError(t, err)

	assert.NotEmpty(t, doc.Markdown)
	assert.Contains(t, doc.HTML, "<table>")
	assert.Contains(t, doc.HTML, "<h1>600519.SH 财务分析报告</h1>")

	lines := strings.Split(strings.TrimSpace(doc.CSV), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "year,operating_asset_ratio,financial_asset_ratio,gross_margin,core_profit_margin,net_profit_margin,operating_leverage,financial_leverage,total_leverage", lines[0])
	assert.Equal(t, "2023,1.0000,0.0000,0.4000,0.2500,0.2000,2.0000,1.2500,2.5000", lines[1])

	_, err = NewRenderer().Render(sampleResult(), nil, []string{"pdf"})
	assert.Error(t, err)
}

func TestRenderOnlyRequestedFormats(t *testing.T) {
	doc, err := NewRenderer().Render(sampleResult(), nil, []string{FormatCSV})
	require.NoError(t, err)

	assert.Empty(t, doc.Markdown)
	assert.Empty(t, doc.HTML)
	assert.NotEmpty(t, doc.CSV)
}

func TestWriteFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	doc := &Document{StockCode: "600519.SH", Markdown: "# report", CSV: "year\n2023\n"}

	written, err := WriteFiles(dir, doc)
	require.NoError(t, err)
	assert.Len(t, written, 2)

	content, err := os.ReadFile(filepath.Join(dir, "600519.SH.md"))
	require.NoError(t, err)
	assert.Equal(t, "# report", string(content))
	assert.NoFileExists(t, filepath.Join(dir, "600519.SH.html"))
}
