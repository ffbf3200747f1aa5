// Prometheus 指标定义
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActivityDuration 活动执行时长
	ActivityDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "finvalue_activity_duration_seconds",
			Help:    "Activity execution duration",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60},
		},
		[]string{"activity_name", "status"},
	)

	// CacheHitRate 缓存命中率
	CacheHitRate = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finvalue_cache_operations_total",
			Help: "Cache operations count",
		},
		[]string{"operation", "result"}, // result: hit/miss/error
	)

	// DataSourceRequests 数据源请求数
	DataSourceRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finvalue_datasource_requests_total",
			Help: "Data source requests by provider, api and status",
		},
		[]string{"provider", "api", "status"},
	)

	// DataSourceLatency 数据源延迟
	DataSourceLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "finvalue_datasource_latency_seconds",
			Help:    "Data source request latency",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"provider", "api"},
	)

	// ValuationAdvisories 估值提示（非致命）
	ValuationAdvisories = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finvalue_valuation_advisories_total",
			Help: "Non-fatal valuation advisories",
		},
		[]string{"kind"}, // kind: non_positive_fcf/default_shares
	)

	// ValidationIssues 数据校验问题
	ValidationIssues = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finvalue_validation_issues_total",
			Help: "Data validation issues by severity",
		},
		[]string{"severity"},
	)

	// ErrorsTotal 错误计数
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finvalue_errors_total",
			Help: "Total errors by level and code",
		},
		[]string{"level", "code"},
	)
)
