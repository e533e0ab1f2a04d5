package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mautops/change-gin/internal/change"
	"github.com/mautops/change-gin/internal/websocket"
)

// SSEHandler 变更状态实时推送(Server-Sent Events)
// 连接建立后先推送当前状态,之后推送变更事件,并按 heartbeat 间隔发送心跳
func SSEHandler(hub *websocket.Hub, heartbeat time.Duration) gin.HandlerFunc {
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}

	return func(c *gin.Context) {
		// 1. 校验变更
		changeID, ok := validateChangeID(c)
		if !ok {
			return
		}
		snapshot, err := hub.Snapshot(c.Request.Context(), changeID)
		if err != nil {
			if !errors.Is(err, change.ErrNotFound) {
				err = fmt.Errorf("%w: %v", change.ErrPersistenceFailure, err)
			}
			handleServiceError(c, err, "subscribe change")
			return
		}

		flusher, ok := c.Writer.(http.Flusher)
		if !ok {
			Error(c, http.StatusInternalServerError, "streaming not supported", "")
			return
		}

		// 2. 订阅
		sub, err := hub.Subscribe(changeID)
		if err != nil {
			handleServiceError(c, fmt.Errorf("%w: %v", change.ErrExternalServiceUnavailable, err), "subscribe change")
			return
		}
		defer hub.Unsubscribe(sub)

		// 3. 设置 SSE 响应头
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no") // 禁用 Nginx 缓冲
		c.Status(http.StatusOK)

		data, _ := json.Marshal(snapshot)
		if err := sendSSEMessage(c.Writer, data); err != nil {
			return
		}
		flusher.Flush()

		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()

		// 4. 持续推送,Hub 关闭订阅或客户端断开时结束
		for {
			select {
			case <-c.Request.Context().Done():
				return
			case data, ok := <-sub.Send:
				if !ok {
					return
				}
				if err := sendSSEMessage(c.Writer, data); err != nil {
					return
				}
				flusher.Flush()
			case <-ticker.C:
				beat, _ := json.Marshal(websocket.Notification{
					Type:     websocket.TypeHeartbeat,
					ChangeID: changeID,
					Time:     time.Now().Unix(),
				})
				if err := sendSSEMessage(c.Writer, beat); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}

// sendSSEMessage SSE 格式: data: <json>\n\n
func sendSSEMessage(w io.Writer, data []byte) error {
	_, err := fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
