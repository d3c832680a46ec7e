package handler

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"fundwatch/internal/refresh"
)

// StreamHandler pushes dashboard snapshots over a websocket at the render
// cadence, so a UI can mirror the stale-while-revalidate view without
// polling.
type StreamHandler struct {
	Scheduler *refresh.Scheduler
	Logger    *zap.Logger
	Interval  time.Duration
}

func (h *StreamHandler) Register(r *gin.Engine) {
	r.GET("/api/v1/dashboard/stream", h.stream)
}

func (h *StreamHandler) stream(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("websocket accept failed", zap.Error(err))
		}
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream aborted")

	interval := h.Interval
	if interval <= 0 {
		interval = time.Second
	}

	ctx := c.Request.Context()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// First frame goes out immediately so a connecting client is not blank
	// for a full tick. After that, only a fresher harvest produces a frame.
	snap := h.Scheduler.Snapshot()
	if err := h.write(ctx, conn, snap); err != nil {
		return
	}
	lastPush := snap.RefreshedAt
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case <-ticker.C:
			snap := h.Scheduler.Snapshot()
			if !snap.RefreshedAt.After(lastPush) {
				continue
			}
			if err := h.write(ctx, conn, snap); err != nil {
				return
			}
			lastPush = snap.RefreshedAt
		}
	}
}

func (h *StreamHandler) write(ctx context.Context, conn *websocket.Conn, snap refresh.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, payload)
}
