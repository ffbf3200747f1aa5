package domain

import "github.com/shopspring/decimal"

// DefaultTotalShares 无股本数据时使用的默认总股本（1亿股）
var DefaultTotalShares = decimal.NewFromInt(100_000_000)

// DefaultSafetyMargin 默认安全边际系数
const DefaultSafetyMargin = 0.7

// DCFParams DCF 参数
type DCFParams struct {
	DiscountRate        float64 `json:"discount_rate"`
	PerpetualGrowthRate float64 `json:"perpetual_growth_rate"`
	FCFGrowthRate       float64 `json:"fcf_growth_rate"`
}

// MultipleModelParams 利润增长倍数估值参数
type MultipleModelParams struct {
	NetProfitGrowthRate float64 `json:"net_profit_growth_rate"`
	LowYield            float64 `json:"low_yield"`
	HighYield           float64 `json:"high_yield"`
	SafetyMargin        float64 `json:"safety_margin"`
}

// ValuationParams 估值参数
type ValuationParams struct {
	DCF           DCFParams           `json:"dcf"`
	MultipleModel MultipleModelParams `json:"multiple_model"`
	TotalShares   decimal.Decimal     `json:"total_shares"`
}

// DefaultValuationParams 默认估值参数
func DefaultValuationParams() ValuationParams {
	return ValuationParams{
		DCF: DCFParams{
			DiscountRate:        0.08,
			PerpetualGrowthRate: 0.03,
			FCFGrowthRate:       0.10,
		},
		MultipleModel: MultipleModelParams{
			NetProfitGrowthRate: 0.10,
			LowYield:            0.04,
			HighYield:           0.02,
			SafetyMargin:        DefaultSafetyMargin,
		},
		TotalShares: DefaultTotalShares,
	}
}

// WithTotalShares 返回替换总股本后的新参数，不修改接收者
func (p ValuationParams) WithTotalShares(shares decimal.Decimal) ValuationParams {
	p.TotalShares = shares
	return p
}

// DCFValuation DCF 估值结果
type DCFValuation struct {
	EnterpriseValue decimal.Decimal `json:"enterprise_value"`
	PricePerShare   decimal.Decimal `json:"price_per_share"`
}

// MultipleModelValuation 倍数估值结果
type MultipleModelValuation struct {
	LowEstimate       decimal.Decimal `json:"low_estimate"`
	HighEstimate      decimal.Decimal `json:"high_estimate"`
	SafetyMarginPrice decimal.Decimal `json:"safety_margin_price"`
}

// ValuationResult 估值结果
type ValuationResult struct {
	DCF           DCFValuation           `json:"dcf"`
	MultipleModel MultipleModelValuation `json:"multiple_model"`
	Advisories    []string               `json:"advisories,omitempty"`
}

// SensitivityParams 敏感性分析参数
type SensitivityParams struct {
	DiscountRate        float64 `json:"discount_rate"`
	PerpetualGrowthRate float64 `json:"perpetual_growth_rate"`
	FCFGrowthRate       float64 `json:"fcf_growth_rate"`
	NetProfitGrowthRate float64 `json:"net_profit_growth_rate"`
	LowYield            float64 `json:"low_yield"`
	HighYield           float64 `json:"high_yield"`
}

// DefaultSensitivityParams 默认敏感性参数
func DefaultSensitivityParams() SensitivityParams {
	return SensitivityParams{
		DiscountRate:        0.08,
		PerpetualGrowthRate: 0.04,
		FCFGrowthRate:       -0.10,
		NetProfitGrowthRate: 0.10,
		LowYield:            0.04,
		HighYield:           0.02,
	}
}

// ToValuationParams 转换为完整估值参数
func (p SensitivityParams) ToValuationParams(totalShares decimal.Decimal) ValuationParams {
	return ValuationParams{
		DCF: DCFParams{
			DiscountRate:        p.DiscountRate,
			PerpetualGrowthRate: p.PerpetualGrowthRate,
			FCFGrowthRate:       p.FCFGrowthRate,
		},
		MultipleModel: MultipleModelParams{
			NetProfitGrowthRate: p.NetProfitGrowthRate,
			LowYield:            p.LowYield,
			HighYield:           p.HighYield,
			SafetyMargin:        DefaultSafetyMargin,
		},
		TotalShares: totalShares,
	}
}

// SensitivityResult 敏感性分析结果
type SensitivityResult struct {
	Params                    SensitivityParams `json:"params"`
	TotalShares               decimal.Decimal   `json:"total_shares"`
	DCFEnterpriseValue        decimal.Decimal   `json:"dcf_enterprise_value"`
	DCFPricePerShare          decimal.Decimal   `json:"dcf_price_per_share"`
	MultipleLowEstimate       decimal.Decimal   `json:"multiple_low_estimate"`
	MultipleHighEstimate      decimal.Decimal   `json:"multiple_high_estimate"`
	MultipleSafetyMarginPrice decimal.Decimal   `json:"multiple_safety_margin_price"`
}

// AssetStructureAnalysis 资产结构分析
type AssetStructureAnalysis struct {
	Years               []int             `json:"years"`
	OperatingAssetRatio []decimal.Decimal `json:"operating_asset_ratio"`
	FinancialAssetRatio []decimal.Decimal `json:"financial_asset_ratio"`
}

// ProfitAnalysis 利润分析
type ProfitAnalysis struct {
	Years            []int             `json:"years"`
	GrossMargin      []decimal.Decimal `json:"gross_margin"`
	CoreProfitMargin []decimal.Decimal `json:"core_profit_margin"`
	NetProfitMargin  []decimal.Decimal `json:"net_profit_margin"`
}

// LeverageAnalysis 杠杆分析
type LeverageAnalysis struct {
	Years             []int             `json:"years"`
	OperatingLeverage []decimal.Decimal `json:"operating_leverage"` // DOL
	FinancialLeverage []decimal.Decimal `json:"financial_leverage"` // DFL
	TotalLeverage     []decimal.Decimal `json:"total_leverage"`     // DTL
}

// AnalysisResult 分析结果
type AnalysisResult struct {
	StockCode        string                 `json:"stock_code"`
	Years            []int                  `json:"years"`
	AssetStructure   AssetStructureAnalysis `json:"asset_structure"`
	ProfitAnalysis   ProfitAnalysis         `json:"profit_analysis"`
	LeverageAnalysis *LeverageAnalysis      `json:"leverage_analysis,omitempty"`
	Valuation        *ValuationResult       `json:"valuation,omitempty"`
	Sensitivity      *SensitivityResult     `json:"sensitivity,omitempty"`
	Statements       []FinancialStatement   `json:"statements"`
}
