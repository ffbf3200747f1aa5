// Activity 实现
// 封装报表获取、校验、分析与报告生成
package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/finvalue-ai/finvalue/internal/analyzer"
	"github.com/finvalue-ai/finvalue/internal/datasource"
	"github.com/finvalue-ai/finvalue/internal/domain"
	"github.com/finvalue-ai/finvalue/internal/report"
	"github.com/finvalue-ai/finvalue/internal/validation"
	"github.com/finvalue-ai/finvalue/pkg/cache"
	"github.com/finvalue-ai/finvalue/pkg/config"
	ferrors "github.com/finvalue-ai/finvalue/pkg/errors"
	"github.com/finvalue-ai/finvalue/pkg/metrics"
	"github.com/finvalue-ai/finvalue/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap"
)

// Activities 包含所有 Activity 的依赖
type Activities struct {
	config      *config.Config
	logger      *zap.Logger
	source      datasource.DataSource
	cache       cache.Cache
	analyzer    *analyzer.FinancialAnalyzer
	sensitivity *analyzer.SensitivityEngine
	validator   *validation.Validator
	renderer    *report.Renderer
}

// NewActivities 创建 Activities 实例
func NewActivities(cfg *config.Config, source datasource.DataSource, c cache.Cache, logger *zap.Logger) *Activities {
	if logger == nil {
		logger = zap.NewNop()
	}
	if c == nil {
		c = cache.NopCache{}
	}
	return &Activities{
		config: cfg,
		logger: logger,
		source: source,
		cache:  c,
		analyzer: analyzer.NewFinancialAnalyzer(
			ValuationParams(cfg.Analysis.Valuation),
			LeverageOptions(cfg.Analysis.Leverage),
			logger,
		),
		sensitivity: analyzer.NewSensitivityEngine(logger),
		validator:   validation.NewValidator(validation.RulesFromConfig(cfg.Validation), logger),
		renderer:    report.NewRenderer(),
	}
}

// Close 关闭资源
func (a *Activities) Close() error {
	return a.cache.Close()
}

// FetchBalanceSheets 获取资产负债表序列
func (a *Activities) FetchBalanceSheets(ctx context.Context, input FetchInput) ([]domain.BalanceSheet, error) {
	return fetchCached[domain.BalanceSheet](ctx, a, "FetchBalanceSheets", domain.BalanceSheetReport, input, a.source.FetchBalanceSheets)
}

// FetchIncomeStatements 获取利润表序列
func (a *Activities) FetchIncomeStatements(ctx context.Context, input FetchInput) ([]domain.IncomeStatement, error) {
	return fetchCached[domain.IncomeStatement](ctx, a, "FetchIncomeStatements", domain.IncomeStatementReport, input, a.source.FetchIncomeStatements)
}

// FetchCashflowStatements 获取现金流量表序列
func (a *Activities) FetchCashflowStatements(ctx context.Context, input FetchInput) ([]domain.CashflowStatement, error) {
	return fetchCached[domain.CashflowStatement](ctx, a, "FetchCashflowStatements", domain.CashflowStatementReport, input, a.source.FetchCashflowStatements)
}

type fetchFunc[T any] func(ctx context.Context, stockCode string, start, end time.Time) ([]T, error)

// fetchCached 先查缓存，未命中时调用数据源并回写
func fetchCached[T any](ctx context.Context, a *Activities, name string, statement domain.ReportType, input FetchInput, fetch fetchFunc[T]) ([]T, error) {
	logger := a.logger.With(
		zap.String("activity", name),
		zap.String("stock_code", input.StockCode),
		zap.String("source", a.source.Name()),
	)

	startTime := time.Now()
	status := "success"
	defer func() {
		metrics.ActivityDuration.WithLabelValues(name, status).Observe(time.Since(startTime).Seconds())
	}()

	// 1. 检查缓存
	cacheKey := cache.StatementKey(input.StockCode, string(statement), input.Start, input.End)
	cached, err := a.cache.Get(ctx, cacheKey)
	switch {
	case err != nil:
		logger.Warn("Cache get failed", zap.Error(err))
		metrics.CacheHitRate.WithLabelValues("get", "error").Inc()
	case cached != "":
		var result []T
		if err := json.Unmarshal([]byte(cached), &result); err == nil {
			logger.Info("Cache hit for statements", zap.String("statement", string(statement)))
			metrics.CacheHitRate.WithLabelValues("get", "hit").Inc()
			return result, nil
		}
		logger.Warn("Discarding undecodable cache entry", zap.String("key", cacheKey))
		metrics.CacheHitRate.WithLabelValues("get", "miss").Inc()
	default:
		metrics.CacheHitRate.WithLabelValues("get", "miss").Inc()
	}

	// 2. 心跳
	activity.RecordHeartbeat(ctx, fmt.Sprintf("Fetching %s from %s", statement, a.source.Name()))

	// 3. 调用数据源
	result, err := fetch(ctx, input.StockCode, input.Start, input.End)
	if err != nil {
		status = "failure"
		logger.Error("Fetch statements failed", zap.Error(err))
		return nil, toTemporalError(err)
	}

	// 4. 存入缓存
	if len(result) > 0 {
		if payload, err := json.Marshal(result); err == nil {
			if err := a.cache.Set(ctx, cacheKey, string(payload), a.config.Storage.CacheTTL); err != nil {
				logger.Warn("Failed to cache statements", zap.Error(err))
				metrics.CacheHitRate.WithLabelValues("set", "error").Inc()
			} else {
				metrics.CacheHitRate.WithLabelValues("set", "ok").Inc()
			}
		}
	}

	logger.Info("Statements fetched",
		zap.String("statement", string(statement)),
		zap.Int("count", len(result)),
	)
	return result, nil
}

// ValidateActivity 数据校验，问题只记录不失败
func (a *Activities) ValidateActivity(ctx context.Context, input ValidateInput) (*validation.Summary, error) {
	logger := a.logger.With(zap.String("activity", "Validate"), zap.String("stock_code", input.StockCode))

	startTime := time.Now()
	defer func() {
		metrics.ActivityDuration.WithLabelValues("Validate", "success").Observe(time.Since(startTime).Seconds())
	}()

	summary := a.validator.ValidateAll(input.Balance, input.Income, input.Cashflow)
	if !summary.Valid {
		logger.Warn("Statements failed validation",
			zap.Float64("reliability_score", summary.ReliabilityScore),
			zap.Error(ferrors.ErrValidationFailed),
		)
	} else {
		logger.Info("Statements validated", zap.Float64("reliability_score", summary.ReliabilityScore))
	}
	return &summary, nil
}

// AnalyzeActivity 比率分析与估值
func (a *Activities) AnalyzeActivity(ctx context.Context, input AnalyzeInput) (*domain.AnalysisResult, error) {
	ctx, span := tracing.StartSpan(ctx, "activity.Analyze")
	defer span.End()
	tracing.SetAttributes(ctx,
		attribute.String("stock_code", input.StockCode),
		attribute.Int("years", len(input.Years)),
	)

	startTime := time.Now()
	status := "success"
	defer func() {
		metrics.ActivityDuration.WithLabelValues("Analyze", status).Observe(time.Since(startTime).Seconds())
	}()

	activity.RecordHeartbeat(ctx, "Calculating ratios and valuation...")

	result, err := a.analyzer.Analyze(input.StockCode, input.Years, input.Balance, input.Income, input.Cashflow)
	if err != nil {
		status = "failure"
		tracing.RecordError(ctx, err)
		a.logger.Error("Analysis failed", zap.String("stock_code", input.StockCode), zap.Error(err))
		return nil, toTemporalError(err)
	}

	if result.Valuation != nil {
		tracing.AddEvent(ctx, "valuation.completed",
			attribute.String("dcf_price", result.Valuation.DCF.PricePerShare.StringFixed(4)),
			attribute.Int("advisories", len(result.Valuation.Advisories)),
		)
	}
	return result, nil
}

// SensitivityActivity 在备选假设下重新估值
func (a *Activities) SensitivityActivity(ctx context.Context, input SensitivityInput) (*domain.SensitivityResult, error) {
	startTime := time.Now()
	status := "success"
	defer func() {
		metrics.ActivityDuration.WithLabelValues("Sensitivity", status).Observe(time.Since(startTime).Seconds())
	}()

	if input.Result == nil {
		status = "failure"
		return nil, toTemporalError(fmt.Errorf("%w: sensitivity requires an analysis result", ferrors.ErrInvalidParameter))
	}

	result, err := a.sensitivity.Run(input.Result, input.Params)
	if err != nil {
		status = "failure"
		a.logger.Warn("Sensitivity analysis failed", zap.String("stock_code", input.Result.StockCode), zap.Error(err))
		return nil, toTemporalError(err)
	}
	return result, nil
}

// ReportActivity 渲染报告，配置了输出目录时写入文件
func (a *Activities) ReportActivity(ctx context.Context, input ReportInput) (*ReportOutput, error) {
	startTime := time.Now()
	status := "success"
	defer func() {
		metrics.ActivityDuration.WithLabelValues("Report", status).Observe(time.Since(startTime).Seconds())
	}()

	if input.Result == nil {
		status = "failure"
		return nil, temporal.NewNonRetryableApplicationError("report requires an analysis result", "PARAMETER_ERROR", nil)
	}
	logger := a.logger.With(zap.String("activity", "Report"), zap.String("stock_code", input.Result.StockCode))

	formats := input.Formats
	if len(formats) == 0 {
		formats = a.config.Report.Formats
	}

	activity.RecordHeartbeat(ctx, "Rendering report...")

	doc, err := a.renderer.Render(input.Result, input.Validation, formats)
	if err != nil {
		status = "failure"
		return nil, temporal.NewNonRetryableApplicationError(err.Error(), "REPORT_ERROR", err)
	}

	output := &ReportOutput{Document: *doc, GeneratedAt: time.Now()}
	if dir := a.config.Report.OutputDir; dir != "" {
		files, err := report.WriteFiles(dir, doc)
		if err != nil {
			status = "failure"
			logger.Error("Failed to write report files", zap.Error(err))
			return nil, err
		}
		output.Files = files
	}

	logger.Info("Report generated", zap.Strings("formats", formats), zap.Int("files", len(output.Files)))
	return output, nil
}

// CleanupCacheActivity 删除本次运行写入的报表缓存（Saga 补偿）
func (a *Activities) CleanupCacheActivity(ctx context.Context, input CleanupInput) error {
	keys := make([]string, 0, len(input.Statements))
	for _, statement := range input.Statements {
		keys = append(keys, cache.StatementKey(input.StockCode, string(statement), input.Start, input.End))
	}

	if err := a.cache.Delete(ctx, keys...); err != nil {
		metrics.CacheHitRate.WithLabelValues("delete", "error").Inc()
		return toTemporalError(err)
	}
	metrics.CacheHitRate.WithLabelValues("delete", "ok").Inc()

	a.logger.Info("Statement cache cleaned up",
		zap.String("stock_code", input.StockCode),
		zap.Strings("keys", keys),
	)
	return nil
}

// NotifyCompensationFailure 通知补偿失败
func (a *Activities) NotifyCompensationFailure(ctx context.Context, stepName string, errorMsg string) error {
	a.logger.Error("Compensation failed, manual intervention required",
		zap.String("step", stepName),
		zap.String("error", errorMsg),
	)
	metrics.ErrorsTotal.WithLabelValues(ferrors.L2Intervention.String(), "COMPENSATION_FAILED").Inc()
	return nil
}

// toTemporalError 按错误分类转换为 Temporal ApplicationError，类型为分类代码
func toTemporalError(err error) error {
	classified := ferrors.ClassifyError(err)
	metrics.ErrorsTotal.WithLabelValues(classified.Level.String(), classified.Code).Inc()

	if !classified.Retryable {
		return temporal.NewNonRetryableApplicationError(err.Error(), classified.Code, err)
	}
	return temporal.NewApplicationErrorWithCause(err.Error(), classified.Code, err)
}
