package domain

// Category 科目分类标签
type Category string

const (
	Operating Category = "operating"
	Financial Category = "financial"
)

// ClassificationPolicy 经营性/金融性科目分类策略
// 资产与负债分别维护规范科目名到分类的映射，未列出的科目不参与分组
type ClassificationPolicy struct {
	Assets      map[string]Category `json:"assets" mapstructure:"assets"`
	Liabilities map[string]Category `json:"liabilities" mapstructure:"liabilities"`
}

// NewClassificationPolicy 由四组科目名称构建分类策略
func NewClassificationPolicy(operatingAssets, financialAssets, operatingLiabilities, financialLiabilities []string) ClassificationPolicy {
	p := ClassificationPolicy{
		Assets:      make(map[string]Category),
		Liabilities: make(map[string]Category),
	}
	for _, name := range operatingAssets {
		p.Assets[name] = Operating
	}
	for _, name := range financialAssets {
		p.Assets[name] = Financial
	}
	for _, name := range operatingLiabilities {
		p.Liabilities[name] = Operating
	}
	for _, name := range financialLiabilities {
		p.Liabilities[name] = Financial
	}
	return p
}

// 默认分类（A股报表科目）
var (
	DefaultOperatingAssets = []string{
		"货币资金", "应收票据", "应收账款", "预付款项", "存货", "合同资产",
		"固定资产", "在建工程", "无形资产", "长期应收款", "递延所得税资产",
		"一年内到期的非流动资产", "其他非流动资产",
	}
	DefaultFinancialAssets = []string{
		"交易性金融资产", "衍生金融资产", "可供出售金融资产", "持有至到期投资",
		"债权投资", "其他债权投资", "其他权益工具投资", "长期股权投资",
		"投资性房地产", "应收利息", "应收股利",
	}
	DefaultOperatingLiabilities = []string{
		"应付票据", "应付账款", "预收款项", "合同负债", "应付职工薪酬",
		"应交税费", "递延所得税负债", "递延收益", "长期应付款",
	}
	DefaultFinancialLiabilities = []string{
		"短期借款", "交易性金融负债", "衍生金融负债", "应付利息", "应付股利",
		"一年内到期的非流动负债", "长期借款", "应付债券",
	}
)

// DefaultClassificationPolicy 默认分类策略
func DefaultClassificationPolicy() ClassificationPolicy {
	return NewClassificationPolicy(
		DefaultOperatingAssets,
		DefaultFinancialAssets,
		DefaultOperatingLiabilities,
		DefaultFinancialLiabilities,
	)
}
