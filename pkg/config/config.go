// 配置管理
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	ferrors "github.com/finvalue-ai/finvalue/pkg/errors"
	"github.com/spf13/viper"
)

// Config 主配置结构
type Config struct {
	System        SystemConfig        `mapstructure:"system"`
	Temporal      TemporalConfig      `mapstructure:"temporal"`
	Storage       StorageConfig       `mapstructure:"storage"`
	DataSource    DataSourceConfig    `mapstructure:"data_source"`
	Analysis      AnalysisConfig      `mapstructure:"analysis"`
	Validation    ValidationConfig    `mapstructure:"validation"`
	Report        ReportConfig        `mapstructure:"report"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// SystemConfig 系统配置
type SystemConfig struct {
	Env             string        `mapstructure:"env"`
	ServiceName     string        `mapstructure:"service_name"`
	Version         string        `mapstructure:"version"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// TemporalConfig Temporal 配置
type TemporalConfig struct {
	Address   string       `mapstructure:"address"`
	Namespace string       `mapstructure:"namespace"`
	TaskQueue string       `mapstructure:"task_queue"`
	Worker    WorkerConfig `mapstructure:"worker"`
	Retry     RetryConfig  `mapstructure:"retry"`
}

// WorkerConfig Worker 配置
type WorkerConfig struct {
	MaxConcurrentActivities int `mapstructure:"max_concurrent_activities"`
	MaxConcurrentWorkflows  int `mapstructure:"max_concurrent_workflows"`
}

// RetryConfig 重试配置
type RetryConfig struct {
	InitialInterval    time.Duration `mapstructure:"initial_interval"`
	BackoffCoefficient float64       `mapstructure:"backoff_coefficient"`
	MaximumInterval    time.Duration `mapstructure:"maximum_interval"`
	MaximumAttempts    int           `mapstructure:"maximum_attempts"`
}

// StorageConfig 存储配置
type StorageConfig struct {
	Redis    RedisConfig   `mapstructure:"redis"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Address      string        `mapstructure:"address"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DataSourceConfig 数据源配置
type DataSourceConfig struct {
	Provider string        `mapstructure:"provider"` // mock/tushare
	Tushare  TushareConfig `mapstructure:"tushare"`
}

// TushareConfig Tushare Pro 配置
type TushareConfig struct {
	Token   string        `mapstructure:"token"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// AnalysisConfig 分析参数
type AnalysisConfig struct {
	Valuation      ValuationConfig      `mapstructure:"valuation"`
	Sensitivity    SensitivityConfig    `mapstructure:"sensitivity"`
	Leverage       LeverageConfig       `mapstructure:"leverage"`
	Classification ClassificationConfig `mapstructure:"classification"`
}

// ValuationConfig 主估值参数
type ValuationConfig struct {
	DiscountRate        float64 `mapstructure:"discount_rate"`
	PerpetualGrowthRate float64 `mapstructure:"perpetual_growth_rate"`
	FCFGrowthRate       float64 `mapstructure:"fcf_growth_rate"`
	NetProfitGrowthRate float64 `mapstructure:"net_profit_growth_rate"`
	LowYield            float64 `mapstructure:"low_yield"`
	HighYield           float64 `mapstructure:"high_yield"`
	SafetyMargin        float64 `mapstructure:"safety_margin"`
	// DefaultTotalShares 报表中无股本时使用
	DefaultTotalShares int64 `mapstructure:"default_total_shares"`
}

// SensitivityConfig 敏感性分析参数
type SensitivityConfig struct {
	Enabled             bool    `mapstructure:"enabled"`
	DiscountRate        float64 `mapstructure:"discount_rate"`
	PerpetualGrowthRate float64 `mapstructure:"perpetual_growth_rate"`
	FCFGrowthRate       float64 `mapstructure:"fcf_growth_rate"`
	NetProfitGrowthRate float64 `mapstructure:"net_profit_growth_rate"`
	LowYield            float64 `mapstructure:"low_yield"`
	HighYield           float64 `mapstructure:"high_yield"`
}

// LeverageConfig 杠杆计算常量
type LeverageConfig struct {
	MaterialityFloor    float64  `mapstructure:"materiality_floor"`
	InterestExpenseKeys []string `mapstructure:"interest_expense_keys"`
}

// ClassificationConfig 经营性/金融性科目分类，留空使用内置分类
type ClassificationConfig struct {
	OperatingAssets      []string `mapstructure:"operating_assets"`
	FinancialAssets      []string `mapstructure:"financial_assets"`
	OperatingLiabilities []string `mapstructure:"operating_liabilities"`
	FinancialLiabilities []string `mapstructure:"financial_liabilities"`
}

// ValidationConfig 数据校验规则
type ValidationConfig struct {
	Enabled            bool                   `mapstructure:"enabled"`
	Tolerance          float64                `mapstructure:"tolerance"`
	MaxReasonableValue float64                `mapstructure:"max_reasonable_value"`
	AllowNegative      []string               `mapstructure:"allow_negative"`
	RequiredAccounts   RequiredAccountsConfig `mapstructure:"required_accounts"`
	GrossMargin        RangeConfig            `mapstructure:"gross_margin"`
}

// RequiredAccountsConfig 各报表必需科目
type RequiredAccountsConfig struct {
	BalanceSheet      []string `mapstructure:"balance_sheet"`
	IncomeStatement   []string `mapstructure:"income_statement"`
	CashflowStatement []string `mapstructure:"cashflow_statement"`
}

// RangeConfig 取值区间
type RangeConfig struct {
	Min float64 `mapstructure:"min"`
	Max float64 `mapstructure:"max"`
}

// ReportConfig 报告输出配置
type ReportConfig struct {
	Formats   []string `mapstructure:"formats"` // markdown/html/csv
	OutputDir string   `mapstructure:"output_dir"`
}

// ObservabilityConfig 可观测性配置
type ObservabilityConfig struct {
	Tracing TracingConfig `mapstructure:"tracing"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// TracingConfig 追踪配置
type TracingConfig struct {
	Enabled    bool    `mapstructure:"enabled"`
	Endpoint   string  `mapstructure:"endpoint"`
	SampleRate float64 `mapstructure:"sample_rate"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// Load 加载配置
func Load() (*Config, error) {
	// 确定配置文件路径
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	return LoadFile(configPath)
}

// LoadFile 从指定路径加载配置
func LoadFile(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	// 环境变量替换
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 比率类参数允许显式为 0 或负数，不能依赖零值判断
	setRateDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 处理环境变量中的密钥
	config.DataSource.Tushare.Token = os.ExpandEnv(config.DataSource.Tushare.Token)
	config.Storage.Redis.Password = os.ExpandEnv(config.Storage.Redis.Password)

	// 设置默认值
	setDefaults(&config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func setRateDefaults(v *viper.Viper) {
	v.SetDefault("analysis.valuation.discount_rate", 0.08)
	v.SetDefault("analysis.valuation.perpetual_growth_rate", 0.03)
	v.SetDefault("analysis.valuation.fcf_growth_rate", 0.10)
	v.SetDefault("analysis.valuation.net_profit_growth_rate", 0.10)
	v.SetDefault("analysis.valuation.low_yield", 0.04)
	v.SetDefault("analysis.valuation.high_yield", 0.02)
	v.SetDefault("analysis.valuation.safety_margin", 0.7)

	v.SetDefault("analysis.sensitivity.enabled", true)
	v.SetDefault("analysis.sensitivity.discount_rate", 0.08)
	v.SetDefault("analysis.sensitivity.perpetual_growth_rate", 0.04)
	v.SetDefault("analysis.sensitivity.fcf_growth_rate", -0.10)
	v.SetDefault("analysis.sensitivity.net_profit_growth_rate", 0.10)
	v.SetDefault("analysis.sensitivity.low_yield", 0.04)
	v.SetDefault("analysis.sensitivity.high_yield", 0.02)

	v.SetDefault("analysis.leverage.materiality_floor", 0.0001)
	v.SetDefault("validation.enabled", true)
	v.SetDefault("validation.gross_margin.min", -0.5)
	v.SetDefault("validation.gross_margin.max", 0.98)
}

func setDefaults(cfg *Config) {
	if cfg.System.ServiceName == "" {
		cfg.System.ServiceName = "finvalue"
	}
	if cfg.System.ShutdownTimeout == 0 {
		cfg.System.ShutdownTimeout = 30 * time.Second
	}
	if cfg.Temporal.Address == "" {
		cfg.Temporal.Address = "localhost:7233"
	}
	if cfg.Temporal.Namespace == "" {
		cfg.Temporal.Namespace = "default"
	}
	if cfg.Temporal.TaskQueue == "" {
		cfg.Temporal.TaskQueue = "finvalue-analysis"
	}
	if cfg.Temporal.Worker.MaxConcurrentActivities == 0 {
		cfg.Temporal.Worker.MaxConcurrentActivities = 20
	}
	if cfg.Temporal.Worker.MaxConcurrentWorkflows == 0 {
		cfg.Temporal.Worker.MaxConcurrentWorkflows = 10
	}
	if cfg.Storage.Redis.PoolSize == 0 {
		cfg.Storage.Redis.PoolSize = 100
	}
	if cfg.Storage.CacheTTL == 0 {
		cfg.Storage.CacheTTL = 24 * time.Hour
	}
	if cfg.DataSource.Provider == "" {
		cfg.DataSource.Provider = "mock"
	}
	if cfg.DataSource.Tushare.BaseURL == "" {
		cfg.DataSource.Tushare.BaseURL = "http://api.tushare.pro"
	}
	if cfg.DataSource.Tushare.Timeout == 0 {
		cfg.DataSource.Tushare.Timeout = 30 * time.Second
	}
	if cfg.Analysis.Valuation.DefaultTotalShares == 0 {
		cfg.Analysis.Valuation.DefaultTotalShares = 100_000_000
	}
	if len(cfg.Analysis.Leverage.InterestExpenseKeys) == 0 {
		cfg.Analysis.Leverage.InterestExpenseKeys = []string{"财务费用", "利息费用"}
	}
	if cfg.Validation.Tolerance == 0 {
		cfg.Validation.Tolerance = 1000
	}
	if cfg.Validation.MaxReasonableValue == 0 {
		cfg.Validation.MaxReasonableValue = 1e12
	}
	if len(cfg.Validation.AllowNegative) == 0 {
		cfg.Validation.AllowNegative = []string{"未分配利润", "其他综合收益", "少数股东权益", "库存股"}
	}
	req := &cfg.Validation.RequiredAccounts
	if len(req.BalanceSheet) == 0 {
		req.BalanceSheet = []string{"资产总计", "负债合计", "所有者权益合计"}
	}
	if len(req.IncomeStatement) == 0 {
		req.IncomeStatement = []string{"营业收入", "净利润"}
	}
	if len(req.CashflowStatement) == 0 {
		req.CashflowStatement = []string{"经营活动产生的现金流量净额"}
	}
	if len(cfg.Report.Formats) == 0 {
		cfg.Report.Formats = []string{"markdown"}
	}
	if cfg.Observability.Tracing.SampleRate == 0 {
		cfg.Observability.Tracing.SampleRate = 0.1
	}
	if cfg.Observability.Metrics.Port == 0 {
		cfg.Observability.Metrics.Port = 9090
	}
	if cfg.Observability.Metrics.Path == "" {
		cfg.Observability.Metrics.Path = "/metrics"
	}
	if cfg.Observability.Logging.Level == "" {
		cfg.Observability.Logging.Level = "info"
	}
}

// Validate 校验配置一致性
func (c *Config) Validate() error {
	val := c.Analysis.Valuation
	if val.DiscountRate <= val.PerpetualGrowthRate {
		return fmt.Errorf("%w: analysis.valuation.discount_rate (%.4f) must exceed perpetual_growth_rate (%.4f)",
			ferrors.ErrConfigInvalid, val.DiscountRate, val.PerpetualGrowthRate)
	}
	sens := c.Analysis.Sensitivity
	if sens.Enabled && sens.DiscountRate <= sens.PerpetualGrowthRate {
		return fmt.Errorf("%w: analysis.sensitivity.discount_rate (%.4f) must exceed perpetual_growth_rate (%.4f)",
			ferrors.ErrConfigInvalid, sens.DiscountRate, sens.PerpetualGrowthRate)
	}
	if val.LowYield <= 0 || val.HighYield <= 0 {
		return fmt.Errorf("%w: analysis.valuation yields must be positive", ferrors.ErrConfigInvalid)
	}

	switch c.DataSource.Provider {
	case "mock":
	case "tushare":
		if c.DataSource.Tushare.Token == "" {
			return fmt.Errorf("%w: data_source.tushare.token is required", ferrors.ErrConfigInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown data_source.provider %q", ferrors.ErrConfigInvalid, c.DataSource.Provider)
	}

	for _, f := range c.Report.Formats {
		switch f {
		case "markdown", "html", "csv":
		default:
			return fmt.Errorf("%w: unknown report format %q", ferrors.ErrConfigInvalid, f)
		}
	}
	return nil
}
