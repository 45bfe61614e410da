package wsocket

import (
	"context"
	"net/http"
	"time"

	"docchat_go_backend/internal/models"
	"docchat_go_backend/internal/services"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const writeWait = 10 * time.Second

type Subscriber interface {
	Subscribe(topic string) <-chan interface{}
	Unsubscribe(topic string, ch <-chan interface{})
}

// Handler streams the owner's chat events over a websocket.
type Handler struct {
	upgrader     websocket.Upgrader
	events       Subscriber
	pingInterval time.Duration
}

// Message is the envelope for anything the server pushes that is not a
// chat event.
type Message struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

func NewHandler(upgrader websocket.Upgrader, events Subscriber, pingInterval time.Duration) *Handler {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &Handler{
		upgrader:     upgrader,
		events:       events,
		pingInterval: pingInterval,
	}
}

func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request, user *models.User) {
	log := zerolog.Ctx(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	topic := services.UserTopic(user.ID)
	events := h.events.Subscribe(topic)
	defer h.events.Unsubscribe(topic, events)

	// Reads only serve to notice the client going away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := h.write(conn, Message{Type: "connected", Content: user.ID.String()}); err != nil {
		return
	}

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := h.write(conn, event); err != nil {
				log.Debug().Err(err).Msg("websocket write failed")
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (h *Handler) write(conn *websocket.Conn, v interface{}) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(v)
}
