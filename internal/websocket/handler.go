package websocket

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/mautops/change-gin/internal/change"
	"github.com/mautops/change-gin/internal/utils"
	"github.com/sirupsen/logrus"
)

// NewUpgrader 创建连接升级器,allowedOrigins 含 "*" 时不校验 Origin
func NewUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowAll := false
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = struct{}{}
	}

	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if allowAll || origin == "" {
				return true
			}
			_, ok := allowed[origin]
			return ok
		},
	}
}

// Handler 变更状态实时推送,连接建立后先推送当前状态
func Handler(hub *Hub, upgrader websocket.Upgrader, logger *logrus.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return func(c *gin.Context) {
		// 1. 校验变更
		changeID := c.Param("id")
		if err := utils.ValidateChangeID(changeID); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "invalid change ID", "detail": err.Error()})
			return
		}
		snapshot, err := hub.Snapshot(c.Request.Context(), changeID)
		if err != nil {
			code := http.StatusServiceUnavailable
			if errors.Is(err, change.ErrNotFound) {
				code = http.StatusNotFound
			}
			c.JSON(code, gin.H{"code": code, "message": "failed to subscribe change", "detail": err.Error()})
			return
		}

		// 2. 订阅
		sub, err := hub.Subscribe(changeID)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"code": http.StatusServiceUnavailable, "message": "failed to subscribe change", "detail": err.Error()})
			return
		}

		// 3. 升级连接,失败时 upgrader 已写回错误响应
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			hub.Unsubscribe(sub)
			logger.WithField("change_id", changeID).WithError(err).Warn("Failed to upgrade websocket")
			return
		}

		// 4. 推送当前状态
		data, _ := json.Marshal(snapshot)
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			hub.Unsubscribe(sub)
			_ = conn.Close()
			return
		}

		client := NewClient(sub, hub, conn, logger)
		go client.ReadPump()
		go client.WritePump()
	}
}
