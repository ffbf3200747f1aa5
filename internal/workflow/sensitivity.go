// 敏感性分析子工作流
// 在备选假设下对已有分析结果重新估值
package workflow

import (
	"time"

	"github.com/finvalue-ai/finvalue/internal/activity"
	"github.com/finvalue-ai/finvalue/internal/domain"
	"go.temporal.io/sdk/workflow"
)

// SensitivityInput 敏感性分析工作流输入
type SensitivityInput struct {
	Result *domain.AnalysisResult   `json:"result"`
	Params domain.SensitivityParams `json:"params"`
	Retry  *RetryOptions            `json:"retry,omitempty"`
}

// SensitivityWorkflow 敏感性分析子工作流
func SensitivityWorkflow(ctx workflow.Context, input SensitivityInput) (*domain.SensitivityResult, error) {
	logger := workflow.GetLogger(ctx)
	stockCode := ""
	if input.Result != nil {
		stockCode = input.Result.StockCode
	}
	logger.Info("Starting Sensitivity Workflow", "stock_code", stockCode)

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy:         retryPolicy(input.Retry, 30*time.Second, 3),
	})

	var a *activity.Activities
	var result domain.SensitivityResult
	err := workflow.ExecuteActivity(ctx, a.SensitivityActivity, activity.SensitivityInput{
		Result: input.Result,
		Params: input.Params,
	}).Get(ctx, &result)
	if err != nil {
		logger.Error("SensitivityActivity failed", "error", err)
		return nil, err
	}

	logger.Info("Sensitivity Workflow completed",
		"stock_code", stockCode,
		"dcf_price", result.DCFPricePerShare.StringFixed(4),
		"safety_margin_price", result.MultipleSafetyMarginPrice.StringFixed(4),
	)
	return &result, nil
}
