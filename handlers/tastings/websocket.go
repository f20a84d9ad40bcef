package tastings

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/viberl/BlindTasting-sub000/realtime"
	"github.com/viberl/BlindTasting-sub000/services"
)

// Largest frame accepted from a client
const maxMessageSize = 4096

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// [GET] TastingWebSocket
// @Summary Subscribe to a tasting room
// @Description Upgrade to a websocket. The first message is a snapshot; clients may send ping, snapshot and leave frames.
// @Tags Realtime
// @Param id path string true "Tasting ID"
// @Param host query bool false "Connect as the host"
// @Param token query string false "Bearer token, for clients that cannot set headers"
// @Success 101
// @Failure 401 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /tastings/{id}/ws [get]
// @Security Bearer
func (h *Handler) TastingWebSocket(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	tastingID := c.Param("id")

	tasting, err := h.svc.GetTasting(c.Request.Context(), caller, tastingID)
	if err != nil {
		respondWithServiceError(c, err, ErrFailedFetchTasting)
		return
	}
	// the host tag is only honored for the actual host
	wantsHost, _ := strconv.ParseBool(c.Query("host"))
	host := wantsHost && tasting.IsHost(caller.UserID)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "tasting_id", tastingID, "error", err)
		return
	}

	client := realtime.NewClient(conn, host, caller.UserID)
	go client.WritePump()

	// the request context ends with this handler, which outlives the socket
	ctx := context.WithoutCancel(c.Request.Context())
	if err := h.svc.Subscribe(ctx, tastingID, client); err != nil {
		h.logger.Warn("websocket subscribe failed", "tasting_id", tastingID, "error", err)
		client.Close()
		return
	}
	defer h.svc.Unsubscribe(tastingID, client)

	h.readPump(ctx, conn, client, caller, tastingID)
}

// readPump handles client frames until the connection fails or goes quiet
// for longer than realtime.PongWait.
func (h *Handler) readPump(ctx context.Context, conn *websocket.Conn, client *realtime.Client, caller services.Caller, tastingID string) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(realtime.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(realtime.PongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read error", "tasting_id", tastingID, "user_id", caller.UserID, "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(realtime.PongWait))

		var frame clientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			h.sendError(client, tastingID, ErrMalformedSocketFrame)
			continue
		}

		switch frame.Type {
		case "ping":
			_ = realtime.SendTo(client, realtime.NewEvent(tastingID, realtime.EventPong, nil))
		case "snapshot":
			if err := h.svc.SendSnapshot(ctx, tastingID, client); err != nil {
				h.logger.Warn("websocket snapshot failed", "tasting_id", tastingID, "error", err)
				h.sendError(client, tastingID, ErrFailedSocketSnapshot)
			}
		case "leave":
			if err := h.svc.LeaveTasting(ctx, caller, tastingID); err != nil {
				h.sendError(client, tastingID, err.Error())
			}
		default:
			h.sendError(client, tastingID, ErrUnknownSocketMessage)
		}
	}
}

func (h *Handler) sendError(client *realtime.Client, tastingID, message string) {
	event := realtime.NewEvent(tastingID, realtime.EventError, realtime.ErrorPayload{Message: message})
	if err := realtime.SendTo(client, event); err != nil {
		h.logger.Debug("websocket error not delivered", "tasting_id", tastingID, "error", err)
	}
}
