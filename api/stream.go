package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

const streamHeartbeat = 25 * time.Second

// streamBoard pushes the owner's board snapshot as server-sent events: once on
// connect and again after every committed change.
func streamBoard(boards Boards, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		owner := sessionFrom(c).UserID
		ctrl, err := boards.Open(ctx, owner)
		if err != nil {
			return writeError(c, err)
		}

		flusher, ok := c.Response().Writer.(http.Flusher)
		if !ok {
			return c.String(http.StatusInternalServerError, "stream unsupported")
		}
		c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
		c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
		c.Response().Header().Set("X-Accel-Buffering", "no")
		c.Response().WriteHeader(http.StatusOK)

		ch, unsubscribe := ctrl.Subscribe()
		defer unsubscribe()
		entry := logger.WithField("owner", owner)
		entry.Debug("board stream opened")

		heartbeat := time.NewTicker(streamHeartbeat)
		defer heartbeat.Stop()
		var sent uint64
		first := true
		for {
			snap := ctrl.Snapshot()
			if first || snap.Version != sent {
				data, err := sonic.Marshal(snap)
				if err != nil {
					entry.WithError(err).Error("encode board snapshot")
					return err
				}
				frame := make([]byte, 0, len(data)+32)
				frame = append(frame, "id: "...)
				frame = strconv.AppendUint(frame, snap.Version, 10)
				frame = append(frame, "\nevent: board\ndata: "...)
				frame = append(frame, data...)
				frame = append(frame, '\n', '\n')
				if _, err := c.Response().Write(frame); err != nil {
					entry.WithError(err).Debug("board stream closed by client")
					return nil
				}
				flusher.Flush()
				sent = snap.Version
				first = false
			}
			select {
			case <-ctx.Done():
				entry.Debug("board stream closed")
				return nil
			case <-heartbeat.C:
				if _, err := c.Response().Write([]byte(": ping\n\n")); err != nil {
					return nil
				}
				flusher.Flush()
			case <-ch:
			}
		}
	}
}
