// 财务分析主工作流
// 并行获取三张报表，校验、分析、敏感性分析后生成报告
package workflow

import (
	"errors"
	"fmt"
	"time"

	"github.com/finvalue-ai/finvalue/internal/activity"
	"github.com/finvalue-ai/finvalue/internal/analyzer"
	"github.com/finvalue-ai/finvalue/internal/domain"
	"github.com/finvalue-ai/finvalue/internal/validation"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// ProgressQuery 进度查询名
const ProgressQuery = "progress"

// 工作流步骤
const (
	StepFetch       = "Fetch"
	StepValidate    = "Validate"
	StepAnalyze     = "Analyze"
	StepSensitivity = "Sensitivity"
	StepReport      = "Report"
)

// 不重试的错误类型（与 pkg/errors 分类代码一致）
var nonRetryableErrorTypes = []string{
	"PARAMETER_ERROR",
	"UNORDERED_SERIES",
	"EMPTY_DATA",
	"VALIDATION_FAILED",
	"FATAL_CONFIG",
}

// AnalysisInput 工作流输入
type AnalysisInput struct {
	StockCode string `json:"stock_code"` // 股票代码
	Years     []int  `json:"years"`      // 分析年度
	Validate  bool   `json:"validate"`   // 是否执行数据校验
	// Sensitivity 为 nil 时跳过敏感性分析
	Sensitivity   *domain.SensitivityParams `json:"sensitivity,omitempty"`
	ReportFormats []string                  `json:"report_formats,omitempty"`
	// Retry 为 nil 时使用默认重试策略
	Retry *RetryOptions `json:"retry,omitempty"`
}

// RetryOptions 活动重试参数
type RetryOptions struct {
	InitialInterval    time.Duration `json:"initial_interval"`
	BackoffCoefficient float64       `json:"backoff_coefficient"`
	MaximumInterval    time.Duration `json:"maximum_interval"`
	MaximumAttempts    int32         `json:"maximum_attempts"`
}

// retryPolicy 构造活动重试策略，零值字段取默认
func retryPolicy(opts *RetryOptions, maxInterval time.Duration, maxAttempts int32) *temporal.RetryPolicy {
	policy := &temporal.RetryPolicy{
		InitialInterval:        5 * time.Second,
		BackoffCoefficient:     2.0,
		MaximumInterval:        maxInterval,
		MaximumAttempts:        maxAttempts,
		NonRetryableErrorTypes: nonRetryableErrorTypes,
	}
	if opts == nil {
		return policy
	}
	if opts.InitialInterval > 0 {
		policy.InitialInterval = opts.InitialInterval
	}
	if opts.BackoffCoefficient >= 1 {
		policy.BackoffCoefficient = opts.BackoffCoefficient
	}
	if opts.MaximumInterval > 0 {
		policy.MaximumInterval = opts.MaximumInterval
	}
	if opts.MaximumAttempts > 0 {
		policy.MaximumAttempts = opts.MaximumAttempts
	}
	return policy
}

// AnalysisOutput 工作流输出
type AnalysisOutput struct {
	StockCode   string                 `json:"stock_code"`
	Result      *domain.AnalysisResult `json:"result"`
	Validation  *validation.Summary    `json:"validation,omitempty"`
	Report      *activity.ReportOutput `json:"report,omitempty"`
	TraceID     string                 `json:"trace_id"`
	CompletedAt time.Time              `json:"completed_at"`
}

// ProgressInfo 进度信息 (用于 Query)
type ProgressInfo struct {
	CurrentStep    string   `json:"current_step"`
	CompletedSteps []string `json:"completed_steps"`
	TotalSteps     int      `json:"total_steps"`
	Progress       float64  `json:"progress"`
}

// AnalysisWorkflow 单公司财务分析与估值工作流
func AnalysisWorkflow(ctx workflow.Context, input AnalysisInput) (*AnalysisOutput, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting Analysis Workflow", "stock_code", input.StockCode, "years", input.Years)

	start, end, err := analyzer.DateRange(input.Years)
	if err != nil {
		return nil, temporal.NewNonRetryableApplicationError(err.Error(), "PARAMETER_ERROR", err)
	}

	saga := NewSagaCompensation()

	// 进度跟踪
	currentStep := StepFetch
	completedSteps := make([]string, 0)
	totalSteps := 3
	if input.Validate {
		totalSteps++
	}
	if input.Sensitivity != nil {
		totalSteps++
	}

	err = workflow.SetQueryHandler(ctx, ProgressQuery, func() (ProgressInfo, error) {
		return ProgressInfo{
			CurrentStep:    currentStep,
			CompletedSteps: completedSteps,
			TotalSteps:     totalSteps,
			Progress:       float64(len(completedSteps)) / float64(totalSteps) * 100,
		}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set query handler: %w", err)
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		HeartbeatTimeout:    30 * time.Second,
		RetryPolicy:         retryPolicy(input.Retry, time.Minute, 5),
	})

	var a *activity.Activities
	output := &AnalysisOutput{
		StockCode: input.StockCode,
		TraceID:   workflow.GetInfo(ctx).WorkflowExecution.RunID,
	}

	// ============== Step 1: 并行获取三张报表 ==============
	fetchInput := activity.FetchInput{StockCode: input.StockCode, Start: start, End: end}

	var (
		balance  []domain.BalanceSheet
		income   []domain.IncomeStatement
		cashflow []domain.CashflowStatement
		fetchErr error
	)

	// 成功获取的报表登记缓存清理补偿
	onFetched := func(statement domain.ReportType) {
		saga.AddCompensation(string(statement), func(ctx workflow.Context) error {
			return workflow.ExecuteActivity(ctx, a.CleanupCacheActivity, activity.CleanupInput{
				StockCode:  input.StockCode,
				Start:      start,
				End:        end,
				Statements: []domain.ReportType{statement},
			}).Get(ctx, nil)
		})
	}
	onFailed := func(statement domain.ReportType, err error) {
		logger.Error("Fetch failed", "statement", statement, "error", err)
		if fetchErr == nil {
			fetchErr = fmt.Errorf("fetch %s failed: %w", statement, err)
		}
	}

	selector := workflow.NewSelector(ctx)
	selector.AddFuture(workflow.ExecuteActivity(ctx, a.FetchBalanceSheets, fetchInput), func(f workflow.Future) {
		if err := f.Get(ctx, &balance); err != nil {
			onFailed(domain.BalanceSheetReport, err)
			return
		}
		onFetched(domain.BalanceSheetReport)
	})
	selector.AddFuture(workflow.ExecuteActivity(ctx, a.FetchIncomeStatements, fetchInput), func(f workflow.Future) {
		if err := f.Get(ctx, &income); err != nil {
			onFailed(domain.IncomeStatementReport, err)
			return
		}
		onFetched(domain.IncomeStatementReport)
	})
	selector.AddFuture(workflow.ExecuteActivity(ctx, a.FetchCashflowStatements, fetchInput), func(f workflow.Future) {
		if err := f.Get(ctx, &cashflow); err != nil {
			onFailed(domain.CashflowStatementReport, err)
			return
		}
		onFetched(domain.CashflowStatementReport)
	})

	for i := 0; i < 3; i++ {
		selector.Select(ctx)
	}

	if fetchErr != nil {
		_ = saga.Execute(ctx)
		return nil, fetchErr
	}
	completedSteps = append(completedSteps, StepFetch)

	// ============== Step 2: 数据校验（不阻断） ==============
	if input.Validate {
		currentStep = StepValidate

		var summary validation.Summary
		if err := workflow.ExecuteActivity(ctx, a.ValidateActivity, activity.ValidateInput{
			StockCode: input.StockCode,
			Balance:   balance,
			Income:    income,
			Cashflow:  cashflow,
		}).Get(ctx, &summary); err != nil {
			logger.Warn("Validation failed to run", "error", err)
		} else {
			output.Validation = &summary
			if !summary.Valid {
				logger.Warn("Statements failed validation", "reliability_score", summary.ReliabilityScore)
			}
			completedSteps = append(completedSteps, StepValidate)
		}
	}

	// ============== Step 3: 比率分析与估值 ==============
	currentStep = StepAnalyze

	var result domain.AnalysisResult
	if err := workflow.ExecuteActivity(ctx, a.AnalyzeActivity, activity.AnalyzeInput{
		StockCode: input.StockCode,
		Years:     input.Years,
		Balance:   balance,
		Income:    income,
		Cashflow:  cashflow,
	}).Get(ctx, &result); err != nil {
		if IsParameterError(err) {
			logger.Error("Analysis aborted on invalid parameters", "error", err)
			return nil, temporal.NewNonRetryableApplicationError("analysis aborted on invalid parameters", "PARAMETER_ERROR", err)
		}
		return nil, fmt.Errorf("analysis failed: %w", err)
	}
	output.Result = &result
	completedSteps = append(completedSteps, StepAnalyze)

	// ============== Step 4: 敏感性分析 (Child Workflow，失败不阻断) ==============
	if input.Sensitivity != nil {
		currentStep = StepSensitivity

		childCtx := workflow.WithChildOptions(ctx, workflow.ChildWorkflowOptions{
			WorkflowID: fmt.Sprintf("sensitivity-%s-%s", input.StockCode, output.TraceID),
		})

		var sensitivity domain.SensitivityResult
		if err := workflow.ExecuteChildWorkflow(childCtx, SensitivityWorkflow, SensitivityInput{
			Result: &result,
			Params: *input.Sensitivity,
			Retry:  input.Retry,
		}).Get(ctx, &sensitivity); err != nil {
			logger.Warn("Sensitivity analysis failed", "error", err)
		} else {
			result.Sensitivity = &sensitivity
			completedSteps = append(completedSteps, StepSensitivity)
		}
	}

	// ============== Step 5: 报告生成（失败不阻断） ==============
	currentStep = StepReport

	var reportOutput activity.ReportOutput
	if err := workflow.ExecuteActivity(ctx, a.ReportActivity, activity.ReportInput{
		Result:     &result,
		Validation: output.Validation,
		Formats:    input.ReportFormats,
	}).Get(ctx, &reportOutput); err != nil {
		logger.Warn("Report generation failed", "error", err)
	} else {
		output.Report = &reportOutput
		completedSteps = append(completedSteps, StepReport)
	}

	currentStep = ""
	output.CompletedAt = workflow.Now(ctx)

	logger.Info("Analysis Workflow completed",
		"stock_code", input.StockCode,
		"completed_steps", completedSteps,
	)
	return output, nil
}

// IsParameterError 沿错误链查找估值参数错误
func IsParameterError(err error) bool {
	for err != nil {
		var appErr *temporal.ApplicationError
		if !errors.As(err, &appErr) {
			return false
		}
		if appErr.Type() == "PARAMETER_ERROR" {
			return true
		}
		err = appErr.Unwrap()
	}
	return false
}
