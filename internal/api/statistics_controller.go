package api

import (
	"github.com/gin-gonic/gin"
	"github.com/mautops/change-gin/internal/service"
)

// StatisticsController 统计控制器
type StatisticsController struct {
	statisticsService service.StatisticsService
}

// NewStatisticsController 创建统计控制器
func NewStatisticsController(statisticsService service.StatisticsService) *StatisticsController {
	return &StatisticsController{
		statisticsService: statisticsService,
	}
}

// GetStatistics 获取变更统计
// @Summary      变更统计
// @Description  按状态、类型、优先级统计变更数量
// @Tags         查询统计
// @Produce      json
// @Success      200  {object}  Response{data=service.ChangeStatistics}
// @Failure      500  {object}  ErrorResponse
// @Router       /statistics [get]
func (c *StatisticsController) GetStatistics(ctx *gin.Context) {
	stats, err := c.statisticsService.GetStatistics(ctx.Request.Context())
	if err != nil {
		handleServiceError(ctx, err, "get statistics")
		return
	}

	Success(ctx, stats)
}
