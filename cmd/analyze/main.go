// FinValue 分析命令
// 提交 AnalysisWorkflow 并输出 Markdown 报告
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/finvalue-ai/finvalue/internal/activity"
	"github.com/finvalue-ai/finvalue/internal/domain"
	"github.com/finvalue-ai/finvalue/internal/workflow"
	"github.com/finvalue-ai/finvalue/pkg/config"
	"github.com/finvalue-ai/finvalue/pkg/logging"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"
)

func main() {
	stockCode := flag.String("stock", "", "stock code, e.g. 600519.SH")
	yearsFlag := flag.String("years", "", "comma separated fiscal years, e.g. 2021,2022,2023")
	formats := flag.String("formats", "", "report formats (markdown,html,csv); defaults to config")
	flag.Parse()

	if *stockCode == "" || *yearsFlag == "" {
		flag.Usage()
		os.Exit(2)
	}

	years, err := parseYears(*yearsFlag)
	if err != nil {
		log.Fatalf("Invalid -years: %v", err)
	}

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Observability.Logging)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.Address,
		Namespace: cfg.Temporal.Namespace,
		Logger:    logging.NewTemporalLogger(logger),
	})
	if err != nil {
		logger.Fatal("Failed to create Temporal client", zap.Error(err))
	}
	defer c.Close()

	input := workflow.AnalysisInput{
		StockCode: *stockCode,
		Years:     years,
		Validate:  cfg.Validation.Enabled,
		Retry: &workflow.RetryOptions{
			InitialInterval:    cfg.Temporal.Retry.InitialInterval,
			BackoffCoefficient: cfg.Temporal.Retry.BackoffCoefficient,
			MaximumInterval:    cfg.Temporal.Retry.MaximumInterval,
			MaximumAttempts:    int32(cfg.Temporal.Retry.MaximumAttempts),
		},
	}
	if cfg.Analysis.Sensitivity.Enabled {
		params := activity.SensitivityParams(cfg.Analysis.Sensitivity)
		input.Sensitivity = &params
	}
	if *formats != "" {
		input.ReportFormats = strings.Split(*formats, ",")
	}

	workflowID := fmt.Sprintf("analysis-%s-%s", *stockCode, uuid.NewString())
	run, err := c.ExecuteWorkflow(context.Background(), client.StartWorkflowOptions{
		ID:        workflowID,
		TaskQueue: cfg.Temporal.TaskQueue,
	}, workflow.AnalysisWorkflow, input)
	if err != nil {
		logger.Fatal("Failed to start workflow", zap.Error(err))
	}
	logger.Info("Workflow started", zap.String("workflow_id", run.GetID()), zap.String("run_id", run.GetRunID()))

	var output workflow.AnalysisOutput
	if err := run.Get(context.Background(), &output); err != nil {
		logger.Fatal("Workflow failed", zap.Error(err))
	}

	printSummary(&output)
}

func parseYears(raw string) ([]int, error) {
	parts := strings.Split(raw, ",")
	years := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		y, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("%q is not a year", p)
		}
		years = append(years, y)
	}
	if len(years) == 0 {
		return nil, fmt.Errorf("no years given")
	}
	return years, nil
}

func printSummary(output *workflow.AnalysisOutput) {
	if output.Report != nil && output.Report.Document.Markdown != "" {
		fmt.Println(output.Report.Document.Markdown)
	} else if output.Result != nil && output.Result.Valuation != nil {
		printValuation(output.Result.Valuation)
	}

	if output.Report != nil {
		for _, f := range output.Report.Files {
			fmt.Fprintf(os.Stderr, "report written: %s\n", f)
		}
	}
}

func printValuation(v *domain.ValuationResult) {
	fmt.Printf("DCF price per share: %s\n", v.DCF.PricePerShare.StringFixed(2))
	fmt.Printf("Multiple valuation: %s - %s\n", v.MultipleModel.LowEstimate.StringFixed(2), v.MultipleModel.HighEstimate.StringFixed(2))
	fmt.Printf("Safety margin price: %s\n", v.MultipleModel.SafetyMarginPrice.StringFixed(2))
	for _, a := range v.Advisories {
		fmt.Printf("advisory: %s\n", a)
	}
}
