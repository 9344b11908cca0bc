package ws

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"dm-service/internal/auth"
	"dm-service/internal/models"
	"dm-service/internal/observability"
	"dm-service/internal/presence"
)

// Handler upgrades websocket connections and wires them into the presence
// registry. A connection open registers the user; a close removes them.
type Handler struct {
	registry      *presence.Registry
	router        *presence.Router
	authenticator *auth.Authenticator
}

// NewHandler constructs a websocket Handler.
func NewHandler(registry *presence.Registry, router *presence.Router, authenticator *auth.Authenticator) *Handler {
	return &Handler{registry: registry, router: router, authenticator: authenticator}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type inboundFrame struct {
	Event      string          `json:"event"`
	ReceiverID int             `json:"receiver_id"`
	Message    json.RawMessage `json:"message"`
}

// Handle upgrades the connection and registers the client for presence.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("dm-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	userID, err := h.authenticator.ValidateToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := ConnInfo{
		ConnID:      uuid.NewString(),
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		ConnectedAt: time.Now(),
	}
	client := newClient(conn, info)
	go client.writePump()

	// Registration is idempotent per user id: a second simultaneous
	// connection stays open but is not routed to.
	h.registry.Register(userID, client)

	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")

	go h.readLoop(client)
}

func (h *Handler) readLoop(client *Client) {
	defer func() {
		h.registry.Remove(client)
		client.close()
		client.conn.Close()
		observability.DecWSActive()
		observability.IncWSEvent("ws_disconnect")
	}()
	for {
		_, data, err := client.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("ws_error")
			}
			return
		}
		h.handleFrame(client, data)
	}
}

// handleFrame dispatches one inbound frame. Unknown or malformed frames are
// dropped; delivery failures are silent because an offline receiver is a
// normal state.
func (h *Handler) handleFrame(client *Client, data []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return
	}

	switch frame.Event {
	case "send_message":
		if frame.ReceiverID == 0 || len(frame.Message) == 0 {
			return
		}
		payload, err := json.Marshal(models.ChatEvent{Type: models.EventReceiveMessage, Message: frame.Message})
		if err != nil {
			return
		}
		delivered := h.router.Deliver(frame.ReceiverID, payload)
		observability.IncLiveDelivery(delivered)
		observability.IncWSEvent("send_message")
	}
}
