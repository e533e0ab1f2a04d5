package api

import (
	"github.com/gin-gonic/gin"
	"github.com/mautops/change-gin/internal/service"
)

// BackupController 回滚快照控制器
type BackupController struct {
	changeService service.ChangeService
}

// NewBackupController 创建回滚快照控制器
func NewBackupController(changeService service.ChangeService) *BackupController {
	return &BackupController{
		changeService: changeService,
	}
}

// ListBackups 列出变更的回滚快照
// @Summary      列出回滚快照
// @Description  获取生成回滚计划时写入的快照文件,按时间倒序
// @Tags         变更管理
// @Produce      json
// @Param        id path string true "变更 ID"
// @Success      200  {object}  Response{data=[]service.BackupInfo}
// @Failure      404  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /changes/{id}/backups [get]
func (c *BackupController) ListBackups(ctx *gin.Context) {
	id, ok := validateChangeID(ctx)
	if !ok {
		return
	}

	backups, err := c.changeService.ListBackups(ctx.Request.Context(), id)
	if err != nil {
		handleServiceError(ctx, err, "list backups")
		return
	}

	Success(ctx, backups)
}

// GetBackup 读取回滚快照
// @Summary      读取回滚快照
// @Description  返回快照文件中保存的变更记录
// @Tags         变更管理
// @Produce      json
// @Param        id   path string true "变更 ID"
// @Param        file path string true "快照文件名"
// @Success      200  {object}  Response{data=change.Record}
// @Failure      404  {object}  ErrorResponse
// @Router       /changes/{id}/backups/{file} [get]
func (c *BackupController) GetBackup(ctx *gin.Context) {
	id, ok := validateChangeID(ctx)
	if !ok {
		return
	}

	snapshot, err := c.changeService.GetBackup(ctx.Request.Context(), id, ctx.Param("file"))
	if err != nil {
		handleServiceError(ctx, err, "get backup")
		return
	}

	Success(ctx, snapshot)
}
