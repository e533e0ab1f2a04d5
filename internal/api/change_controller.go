package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mautops/change-gin/internal/integration"
	"github.com/mautops/change-gin/internal/service"
	"github.com/mautops/change-gin/internal/utils"
)

// ChangeController 变更控制器
type ChangeController struct {
	changeService service.ChangeService
}

// NewChangeController 创建变更控制器
func NewChangeController(changeService service.ChangeService) *ChangeController {
	return &ChangeController{
		changeService: changeService,
	}
}

// validateChangeID 验证变更 ID 并返回错误响应（如果无效）
func validateChangeID(ctx *gin.Context) (string, bool) {
	id := ctx.Param("id")
	if err := utils.ValidateChangeID(id); err != nil {
		_ = ctx.Error(WrapError(err, http.StatusBadRequest, "invalid change ID"))
		return "", false
	}
	return id, true
}

// bindActionRequest 绑定请求体并校验操作人
func bindActionRequest(ctx *gin.Context, req interface{}, actor func() string) bool {
	if err := ctx.ShouldBindJSON(req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return false
	}
	if actor != nil {
		if err := utils.ValidateActor(actor()); err != nil {
			Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
			return false
		}
	}
	return true
}

// Create 创建变更
// @Summary      创建变更请求
// @Description  创建变更请求,初始状态为 DRAFT
// @Tags         变更管理
// @Accept       json
// @Produce      json
// @Param        request body integration.CreateChangeRequest true "变更信息"
// @Success      201  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      503  {object}  ErrorResponse
// @Router       /changes [post]
func (c *ChangeController) Create(ctx *gin.Context) {
	var req integration.CreateChangeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	if err := utils.ValidateTitle(req.Title); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid title", err.Error())
		return
	}
	if err := utils.ValidateActor(req.Requester); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid requester", err.Error())
		return
	}

	rec, err := c.changeService.Create(ctx.Request.Context(), &req)
	if err != nil {
		handleServiceError(ctx, err, "create change")
		return
	}

	Created(ctx, rec)
}

// Get 获取变更
// @Summary      获取变更详情
// @Tags         变更管理
// @Produce      json
// @Param        id path string true "变更 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Router       /changes/{id} [get]
func (c *ChangeController) Get(ctx *gin.Context) {
	id, ok := validateChangeID(ctx)
	if !ok {
		return
	}

	rec, err := c.changeService.Get(ctx.Request.Context(), id)
	if err != nil {
		handleServiceError(ctx, err, "get change")
		return
	}

	Success(ctx, rec)
}

// GetStatus 获取变更状态报告
func (c *ChangeController) GetStatus(ctx *gin.Context) {
	id, ok := validateChangeID(ctx)
	if !ok {
		return
	}

	report, err := c.changeService.GetStatusReport(ctx.Request.Context(), id)
	if err != nil {
		handleServiceError(ctx, err, "get change status")
		return
	}

	Success(ctx, report)
}

// Submit 提交评审
func (c *ChangeController) Submit(ctx *gin.Context) {
	id, ok := validateChangeID(ctx)
	if !ok {
		return
	}

	var req service.SubmitRequest
	if !bindActionRequest(ctx, &req, func() string { return req.SubmittedBy }) {
		return
	}

	rec, err := c.changeService.SubmitForReview(ctx.Request.Context(), id, &req)
	if err != nil {
		handleServiceError(ctx, err, "submit change")
		return
	}

	Success(ctx, rec)
}

// AssessImpact 执行影响评估
// @Summary      影响评估
// @Description  调用 AI 分析器评估变更影响,分析器不可用时回退到按变更类型的人工评估
// @Tags         变更管理
// @Produce      json
// @Param        id path string true "变更 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /changes/{id}/assess [post]
func (c *ChangeController) AssessImpact(ctx *gin.Context) {
	id, ok := validateChangeID(ctx)
	if !ok {
		return
	}

	assessment, err := c.changeService.AssessImpact(ctx.Request.Context(), id)
	if err != nil {
		handleServiceError(ctx, err, "assess impact")
		return
	}

	Success(ctx, assessment)
}

// CreateRollbackPlan 生成回滚计划
func (c *ChangeController) CreateRollbackPlan(ctx *gin.Context) {
	id, ok := validateChangeID(ctx)
	if !ok {
		return
	}

	plan, err := c.changeService.CreateRollbackPlan(ctx.Request.Context(), id)
	if err != nil {
		handleServiceError(ctx, err, "create rollback plan")
		return
	}

	Success(ctx, plan)
}

// RunTests 执行测试套件
// @Summary      执行测试
// @Description  按套件执行测试,套件为空时使用 standard,未知套件按 standard 执行
// @Tags         变更管理
// @Accept       json
// @Produce      json
// @Param        id path string true "变更 ID"
// @Param        request body service.RunTestsRequest false "测试套件"
// @Success      200  {object}  Response
// @Failure      409  {object}  ErrorResponse
// @Router       /changes/{id}/tests [post]
func (c *ChangeController) RunTests(ctx *gin.Context) {
	id, ok := validateChangeID(ctx)
	if !ok {
		return
	}

	// 请求体可选
	var req service.RunTestsRequest
	if ctx.Request.ContentLength > 0 {
		if !bindActionRequest(ctx, &req, nil) {
			return
		}
	}

	results, err := c.changeService.RunTests(ctx.Request.Context(), id, &req)
	if err != nil {
		handleServiceError(ctx, err, "run tests")
		return
	}

	Success(ctx, results)
}

// RequestApproval 发起审批
func (c *ChangeController) RequestApproval(ctx *gin.Context) {
	id, ok := validateChangeID(ctx)
	if !ok {
		return
	}

	var req service.ApprovalRequest
	if !bindActionRequest(ctx, &req, func() string { return req.Approver }) {
		return
	}

	approval, err := c.changeService.RequestApproval(ctx.Request.Context(), id, &req)
	if err != nil {
		handleServiceError(ctx, err, "request approval")
		return
	}

	Success(ctx, approval)
}

// Approve 审批通过
// @Summary      审批通过
// @Tags         变更管理
// @Accept       json
// @Produce      json
// @Param        id path string true "变更 ID"
// @Param        request body service.DecisionRequest true "审批信息"
// @Success      200  {object}  Response
// @Failure      409  {object}  ErrorResponse
// @Router       /changes/{id}/approve [post]
func (c *ChangeController) Approve(ctx *gin.Context) {
	id, ok := validateChangeID(ctx)
	if !ok {
		return
	}

	var req service.DecisionRequest
	if !bindActionRequest(ctx, &req, func() string { return req.Approver }) {
		return
	}

	approval, err := c.changeService.Approve(ctx.Request.Context(), id, &req)
	if err != nil {
		handleServiceError(ctx, err, "approve change")
		return
	}

	Success(ctx, approval)
}

// Reject 审批驳回
func (c *ChangeController) Reject(ctx *gin.Context) {
	id, ok := validateChangeID(ctx)
	if !ok {
		return
	}

	var req service.DecisionRequest
	if !bindActionRequest(ctx, &req, func() string { return req.Approver }) {
		return
	}

	approval, err := c.changeService.Reject(ctx.Request.Context(), id, &req)
	if err != nil {
		handleServiceError(ctx, err, "reject change")
		return
	}

	Success(ctx, approval)
}

// Deploy 开始部署
func (c *ChangeController) Deploy(ctx *gin.Context) {
	id, ok := validateChangeID(ctx)
	if !ok {
		return
	}

	var req service.DeployRequest
	if !bindActionRequest(ctx, &req, func() string { return req.DeployedBy }) {
		return
	}

	deployment, err := c.changeService.Deploy(ctx.Request.Context(), id, &req)
	if err != nil {
		handleServiceError(ctx, err, "deploy change")
		return
	}

	Success(ctx, deployment)
}

// CompleteDeployment 完成部署(成功或失败)
func (c *ChangeController) CompleteDeployment(ctx *gin.Context) {
	id, ok := validateChangeID(ctx)
	if !ok {
		return
	}

	var req service.CompleteDeploymentRequest
	if !bindActionRequest(ctx, &req, nil) {
		return
	}

	deployment, err := c.changeService.CompleteDeployment(ctx.Request.Context(), id, &req)
	if err != nil {
		handleServiceError(ctx, err, "complete deployment")
		return
	}

	Success(ctx, deployment)
}

// Rollback 执行回滚
// @Summary      执行回滚
// @Description  按回滚计划执行回滚,需要先生成回滚计划
// @Tags         变更管理
// @Accept       json
// @Produce      json
// @Param        id path string true "变更 ID"
// @Param        request body service.RollbackRequest true "回滚信息"
// @Success      200  {object}  Response
// @Failure      409  {object}  ErrorResponse
// @Router       /changes/{id}/rollback [post]
func (c *ChangeController) Rollback(ctx *gin.Context) {
	id, ok := validateChangeID(ctx)
	if !ok {
		return
	}

	var req service.RollbackRequest
	if !bindActionRequest(ctx, &req, func() string { return req.RolledBackBy }) {
		return
	}

	execution, err := c.changeService.Rollback(ctx.Request.Context(), id, &req)
	if err != nil {
		handleServiceError(ctx, err, "rollback change")
		return
	}

	Success(ctx, execution)
}

// Cancel 取消变更
func (c *ChangeController) Cancel(ctx *gin.Context) {
	id, ok := validateChangeID(ctx)
	if !ok {
		return
	}

	var req service.CancelRequest
	if !bindActionRequest(ctx, &req, func() string { return req.CancelledBy }) {
		return
	}

	rec, err := c.changeService.Cancel(ctx.Request.Context(), id, &req)
	if err != nil {
		handleServiceError(ctx, err, "cancel change")
		return
	}

	Success(ctx, rec)
}
