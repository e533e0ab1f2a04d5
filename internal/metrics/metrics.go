package metrics

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

var (
	// API 请求计数器
	apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	// API 请求响应时间
	apiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// 变更创建数
	changesCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "changes_created_total",
			Help: "Total number of change requests created",
		},
	)

	// 变更操作数
	changeOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "change_operations_total",
			Help: "Total number of change lifecycle operations",
		},
		[]string{"operation", "result"}, // result: success, error
	)

	// 审批决定数
	approvalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "change_approvals_total",
			Help: "Total number of approval decisions",
		},
		[]string{"action"}, // request, approve, reject
	)

	// 影响评估数
	impactAssessmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "change_impact_assessments_total",
			Help: "Total number of impact assessments by source",
		},
		[]string{"source"}, // ai, manual
	)

	// 测试结果数
	testResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "change_test_results_total",
			Help: "Total number of test results",
		},
		[]string{"suite", "result"},
	)

	// 部署结果数
	deploymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "change_deployments_total",
			Help: "Total number of deployment outcomes",
		},
		[]string{"result"}, // started, completed, failed, rolled_back
	)

	// 数据库连接数
	databaseConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_active",
			Help: "Number of active database connections",
		},
	)

	databaseConnectionsIdle = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_idle",
			Help: "Number of idle database connections",
		},
	)

	databaseConnectionsMax = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_max",
			Help: "Maximum number of database connections",
		},
	)

	// 变更状态分布
	changesByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "changes_by_status",
			Help: "Number of change requests by status",
		},
		[]string{"status"},
	)
)

var (
	once sync.Once
)

func init() {
	// 注册指标
	prometheus.MustRegister(apiRequestsTotal)
	prometheus.MustRegister(apiRequestDuration)
	prometheus.MustRegister(changesCreatedTotal)
	prometheus.MustRegister(changeOperationsTotal)
	prometheus.MustRegister(approvalsTotal)
	prometheus.MustRegister(impactAssessmentsTotal)
	prometheus.MustRegister(testResultsTotal)
	prometheus.MustRegister(deploymentsTotal)
	prometheus.MustRegister(databaseConnectionsActive)
	prometheus.MustRegister(databaseConnectionsIdle)
	prometheus.MustRegister(databaseConnectionsMax)
	prometheus.MustRegister(changesByStatus)

	// 注册 Go 运行时指标（只注册一次）
	once.Do(func() {
		// 尝试注册 Go 运行时指标，如果已注册则忽略错误
		_ = prometheus.Register(prometheus.NewGoCollector())
		_ = prometheus.Register(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	})
}

// Handler 返回 Prometheus 指标处理器
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordAPIRequest 记录 API 请求
func RecordAPIRequest(method, path string, status int, duration float64) {
	statusText := http.StatusText(status)
	if statusText == "" {
		statusText = fmt.Sprintf("%d", status)
	}
	apiRequestsTotal.WithLabelValues(method, path, statusText).Inc()
	apiRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// RecordChangeCreated 记录变更创建
func RecordChangeCreated() {
	changesCreatedTotal.Inc()
}

// RecordOperation 记录变更操作结果
func RecordOperation(operation string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	changeOperationsTotal.WithLabelValues(operation, result).Inc()
}

// RecordApproval 记录审批操作
func RecordApproval(action string) {
	approvalsTotal.WithLabelValues(action).Inc()
}

// RecordImpactAssessment 记录影响评估来源
func RecordImpactAssessment(source string) {
	impactAssessmentsTotal.WithLabelValues(source).Inc()
}

// RecordTestResult 记录测试结果
func RecordTestResult(suite string, passed bool) {
	result := "failed"
	if passed {
		result = "passed"
	}
	testResultsTotal.WithLabelValues(suite, result).Inc()
}

// RecordDeployment 记录部署结果
func RecordDeployment(result string) {
	deploymentsTotal.WithLabelValues(result).Inc()
}

// UpdateDatabaseConnections 更新数据库连接数指标
func UpdateDatabaseConnections(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}

	stats := sqlDB.Stats()
	databaseConnectionsActive.Set(float64(stats.OpenConnections - stats.Idle))
	databaseConnectionsIdle.Set(float64(stats.Idle))
	databaseConnectionsMax.Set(float64(stats.MaxOpenConnections))

	return nil
}

// UpdateChangesByStatus 更新变更状态分布指标
func UpdateChangesByStatus(status string, count float64) {
	changesByStatus.WithLabelValues(status).Set(count)
}
