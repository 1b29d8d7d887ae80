// internal/handlers/notifications_ws.go
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/arena/internal/auth"
	"github.com/jason-s-yu/arena/internal/middleware"
	"github.com/sirupsen/logrus"
)

const notificationSubprotocol = "notifications"

// Subscriber opens a push stream for one user. The channel closes when ctx
// is done.
type Subscriber interface {
	Subscribe(ctx context.Context, userID uuid.UUID) (<-chan []byte, error)
}

// NotificationsWSHandler upgrades to a websocket and streams the caller's
// notifications: lobby assignments, published credentials and operator
// messages. Anything queued while the user was offline is sent first.
func NotificationsWSHandler(sub Subscriber, logger logrus.FieldLogger, originPatterns []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		remoteAddr := r.RemoteAddr
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{notificationSubprotocol},
			OriginPatterns: originPatterns,
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != notificationSubprotocol {
			c.Close(BadSubprotocolError, "client must speak the notifications subprotocol")
			return
		}

		token := middleware.TokenFromRequest(r)
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		userID, err := auth.AuthenticateJWT(token)
		if err != nil {
			c.Close(InvalidAuthTokenError, "invalid auth token")
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		stream, err := sub.Subscribe(ctx, userID)
		if err != nil {
			logger.WithError(err).WithField("user", userID).Warn("notification subscribe failed")
			c.Close(SubscribeFailedError, "could not subscribe to notifications")
			return
		}

		middleware.LogWebSocketConnect(logger, remoteAddr, r.URL.Path)

		// the client never sends anything we act on; CloseRead handles
		// control frames and cancels ctx once the peer goes away
		ctx = c.CloseRead(ctx)
		err = writePump(ctx, c, stream, logger.WithField("user", userID))

		middleware.LogWebSocketDisconnect(logger, remoteAddr, r.URL.Path, err)
		c.Close(websocket.StatusNormalClosure, "")
	}
}

// writePump forwards stream to the socket and pings every 30s. It returns
// when the stream closes, ctx ends or a write fails.
func writePump(ctx context.Context, c *websocket.Conn, stream <-chan []byte, logger logrus.FieldLogger) error {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-stream:
			if !ok {
				return nil
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := c.Write(writeCtx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				logger.Warnf("failed to write notification: %v", err)
				return err
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.Warnf("failed to send ping: %v, assuming disconnect", err)
				return err
			}
		}
	}
}
