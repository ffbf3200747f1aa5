package activity

import (
	"github.com/finvalue-ai/finvalue/internal/analyzer"
	"github.com/finvalue-ai/finvalue/internal/domain"
	"github.com/finvalue-ai/finvalue/pkg/config"
	"github.com/shopspring/decimal"
)

// ValuationParams 由配置构建主估值参数
func ValuationParams(cfg config.ValuationConfig) domain.ValuationParams {
	shares := domain.DefaultTotalShares
	if cfg.DefaultTotalShares > 0 {
		shares = decimal.NewFromInt(cfg.DefaultTotalShares)
	}
	return domain.ValuationParams{
		DCF: domain.DCFParams{
			DiscountRate:        cfg.DiscountRate,
			PerpetualGrowthRate: cfg.PerpetualGrowthRate,
			FCFGrowthRate:       cfg.FCFGrowthRate,
		},
		MultipleModel: domain.MultipleModelParams{
			NetProfitGrowthRate: cfg.NetProfitGrowthRate,
			LowYield:            cfg.LowYield,
			HighYield:           cfg.HighYield,
			SafetyMargin:        cfg.SafetyMargin,
		},
		TotalShares: shares,
	}
}

// SensitivityParams 由配置构建敏感性假设
func SensitivityParams(cfg config.SensitivityConfig) domain.SensitivityParams {
	return domain.SensitivityParams{
		DiscountRate:        cfg.DiscountRate,
		PerpetualGrowthRate: cfg.PerpetualGrowthRate,
		FCFGrowthRate:       cfg.FCFGrowthRate,
		NetProfitGrowthRate: cfg.NetProfitGrowthRate,
		LowYield:            cfg.LowYield,
		HighYield:           cfg.HighYield,
	}
}

// LeverageOptions 由配置构建杠杆计算选项
func LeverageOptions(cfg config.LeverageConfig) analyzer.LeverageOptions {
	opts := analyzer.DefaultLeverageOptions()
	if cfg.MaterialityFloor > 0 {
		opts.MaterialityFloor = decimal.NewFromFloat(cfg.MaterialityFloor)
	}
	if len(cfg.InterestExpenseKeys) > 0 {
		opts.InterestExpenseKeys = cfg.InterestExpenseKeys
	}
	return opts
}

// ClassificationPolicy 由配置构建科目分类，某组留空时使用内置列表
func ClassificationPolicy(cfg config.ClassificationConfig) domain.ClassificationPolicy {
	return domain.NewClassificationPolicy(
		orDefault(cfg.OperatingAssets, domain.DefaultOperatingAssets),
		orDefault(cfg.FinancialAssets, domain.DefaultFinancialAssets),
		orDefault(cfg.OperatingLiabilities, domain.DefaultOperatingLiabilities),
		orDefault(cfg.FinancialLiabilities, domain.DefaultFinancialLiabilities),
	)
}

func orDefault(names, fallback []string) []string {
	if len(names) == 0 {
		return fallback
	}
	return names
}
