package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"vision-gateway/internal/dto"
	"vision-gateway/internal/response"
	"vision-gateway/internal/types"
	"vision-gateway/log"
)

var (
	watchInterval = 250 * time.Millisecond
	writeWait     = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WatchJob streams status snapshots over a websocket whenever the status or
// progress changes, and closes after the terminal snapshot.
func (h Handler) WatchJob(c *gin.Context) {
	jobID := c.Param("id")
	first, err := h.Gateway.Status(jobID)
	if err != nil {
		response.ErrorResponse(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.GetLogger().Warn("WatchJob upgrade failed", zap.String("job_id", jobID), zap.Error(err))
		return
	}
	defer conn.Close()

	// Drain client frames so a close from the peer is noticed.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()

	last := first
	if err = writeStatus(conn, last); err != nil {
		return
	}
	for !isTerminal(last) {
		select {
		case <-gone:
			return
		case <-ticker.C:
		}

		cur, err := h.Gateway.Status(jobID)
		if err != nil {
			// evicted while watching
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "job not found"), time.Now().Add(writeWait))
			return
		}
		if cur.Status == last.Status && cur.Progress == last.Progress {
			continue
		}
		if err = writeStatus(conn, cur); err != nil {
			return
		}
		last = cur
	}

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, last.Status), time.Now().Add(writeWait))
}

func writeStatus(conn *websocket.Conn, st *dto.JobStatusData) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(st); err != nil {
		log.GetLogger().Debug("WatchJob write failed", zap.String("job_id", st.JobId), zap.Error(err))
		return err
	}
	return nil
}

func isTerminal(st *dto.JobStatusData) bool {
	return st.Status == types.JobStatusCompleted.String() || st.Status == types.JobStatusFailed.String()
}
