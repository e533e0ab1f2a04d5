package testrunner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mautops/change-gin/internal/change"
)

// HTTPConfig 远程测试服务配置
type HTTPConfig struct {
	Endpoint string
	Token    string
	Timeout  time.Duration
}

type runRequest struct {
	ChangeID string `json:"change_id"`
	TestType string `json:"test_type"`
}

type runResponse struct {
	Name            string   `json:"test_name"`
	Passed          bool     `json:"passed"`
	DurationSeconds float64  `json:"duration_seconds"`
	Details         string   `json:"details"`
	Artifacts       []string `json:"artifacts"`
}

// HTTPRunner 调用远程测试服务执行测试
type HTTPRunner struct {
	endpoint   string
	token      string
	httpClient *http.Client
	now        func() time.Time
}

// NewHTTPRunner 创建远程测试执行器
func NewHTTPRunner(cfg HTTPConfig) *HTTPRunner {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &HTTPRunner{
		endpoint:   cfg.Endpoint,
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}
}

// RunSuite 实现 Runner 接口
func (r *HTTPRunner) RunSuite(ctx context.Context, changeID string, testType string) (*change.TestResult, error) {
	// 1. 序列化请求
	body, err := json.Marshal(runRequest{ChangeID: changeID, TestType: testType})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	// 2. 创建 HTTP 请求
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	// 3. 发送请求
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", change.ErrExternalServiceUnavailable, err)
	}
	defer resp.Body.Close()

	// 4. 检查响应状态码
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: test service returned status code %d", change.ErrExternalServiceUnavailable, resp.StatusCode)
	}

	// 5. 解析结果
	var out runResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode test result: %w", err)
	}

	now := r.now()
	name := out.Name
	if name == "" {
		name = displayName(testType)
	}
	status := "failed"
	if out.Passed {
		status = "passed"
	}
	artifacts := out.Artifacts
	if artifacts == nil {
		artifacts = []string{}
	}

	return &change.TestResult{
		ID:              TestID(changeID, testType, now),
		Name:            name,
		TestType:        testType,
		Status:          status,
		Passed:          out.Passed,
		DurationSeconds: out.DurationSeconds,
		Details:         out.Details,
		Timestamp:       now,
		Artifacts:       artifacts,
	}, nil
}
