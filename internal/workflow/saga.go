// Saga 补偿模式实现
// 报表获取失败时清理已写入的缓存
package workflow

import (
	"github.com/finvalue-ai/finvalue/internal/activity"
	"go.temporal.io/sdk/workflow"
)

// CompensationStep 补偿步骤
type CompensationStep struct {
	Name string
	Fn   func(ctx workflow.Context) error
}

// SagaCompensation Saga 补偿管理器
type SagaCompensation struct {
	steps []CompensationStep
}

// NewSagaCompensation 创建新的 Saga 补偿管理器
func NewSagaCompensation() *SagaCompensation {
	return &SagaCompensation{}
}

// AddCompensation 添加补偿步骤，执行顺序与添加顺序相反
func (s *SagaCompensation) AddCompensation(name string, fn func(ctx workflow.Context) error) {
	s.steps = append([]CompensationStep{{Name: name, Fn: fn}}, s.steps...)
}

// Execute 执行所有补偿，单步失败通知人工介入后继续
func (s *SagaCompensation) Execute(ctx workflow.Context) error {
	logger := workflow.GetLogger(ctx)
	var a *activity.Activities

	for _, step := range s.steps {
		logger.Info("Executing compensation", "step", step.Name)

		if err := step.Fn(ctx); err != nil {
			logger.Error("Compensation failed", "step", step.Name, "error", err)
			_ = workflow.ExecuteActivity(ctx, a.NotifyCompensationFailure, step.Name, err.Error()).Get(ctx, nil)
			continue
		}
		logger.Info("Compensation completed", "step", step.Name)
	}
	return nil
}

// Len 返回补偿步骤数量
func (s *SagaCompensation) Len() int {
	return len(s.steps)
}
