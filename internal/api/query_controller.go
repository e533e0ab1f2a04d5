package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mautops/change-gin/internal/change"
	"github.com/mautops/change-gin/internal/service"
)

// QueryController 查询控制器
type QueryController struct {
	queryService service.QueryService
}

// NewQueryController 创建查询控制器
func NewQueryController(queryService service.QueryService) *QueryController {
	return &QueryController{
		queryService: queryService,
	}
}

// ListChanges 列出变更
// @Summary      获取变更列表
// @Description  分页获取变更摘要,按创建时间倒序
// @Tags         查询统计
// @Produce      json
// @Param        status query string false "变更状态"
// @Param        priority query string false "优先级"
// @Param        change_type query string false "变更类型"
// @Param        requester query string false "请求人"
// @Param        affected_system query string false "受影响系统"
// @Param        page query int false "页码" default(1)
// @Param        page_size query int false "每页数量" default(20)
// @Success      200  {object}  PaginatedResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /changes [get]
func (c *QueryController) ListChanges(ctx *gin.Context) {
	filter := service.ListChangesFilter{
		Requester:      ctx.Query("requester"),
		AffectedSystem: ctx.Query("affected_system"),
	}

	// 手动解析枚举参数
	if v := ctx.Query("status"); v != "" {
		status := change.Status(v)
		filter.Status = &status
	}
	if v := ctx.Query("priority"); v != "" {
		priority := change.Priority(v)
		filter.Priority = &priority
	}
	if v := ctx.Query("change_type"); v != "" {
		changeType := change.Type(v)
		filter.ChangeType = &changeType
	}

	if pageStr := ctx.Query("page"); pageStr != "" {
		var page int
		if _, err := fmt.Sscanf(pageStr, "%d", &page); err != nil {
			Error(ctx, http.StatusBadRequest, "invalid query parameters", "page must be an integer")
			return
		}
		filter.Page = page
	}
	if pageSizeStr := ctx.Query("page_size"); pageSizeStr != "" {
		var pageSize int
		if _, err := fmt.Sscanf(pageSizeStr, "%d", &pageSize); err != nil {
			Error(ctx, http.StatusBadRequest, "invalid query parameters", "page_size must be an integer")
			return
		}
		filter.PageSize = pageSize
	}

	changes, total, err := c.queryService.ListChanges(ctx.Request.Context(), &filter)
	if err != nil {
		handleServiceError(ctx, err, "list changes")
		return
	}

	// 计算总页数
	totalPage := int((total + int64(filter.PageSize) - 1) / int64(filter.PageSize))

	Paginated(ctx, changes, PaginationInfo{
		Page:      filter.Page,
		PageSize:  filter.PageSize,
		Total:     total,
		TotalPage: totalPage,
	})
}

// GetEvents 获取审计事件
func (c *QueryController) GetEvents(ctx *gin.Context) {
	id, ok := validateChangeID(ctx)
	if !ok {
		return
	}

	events, err := c.queryService.GetEvents(ctx.Request.Context(), id)
	if err != nil {
		handleServiceError(ctx, err, "get events")
		return
	}

	Success(ctx, events)
}

// GetHistory 获取状态历史
func (c *QueryController) GetHistory(ctx *gin.Context) {
	id, ok := validateChangeID(ctx)
	if !ok {
		return
	}

	history, err := c.queryService.GetHistory(ctx.Request.Context(), id)
	if err != nil {
		handleServiceError(ctx, err, "get history")
		return
	}

	Success(ctx, history)
}
