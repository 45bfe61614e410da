package wsocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"docchat_go_backend/internal/models"
	"docchat_go_backend/internal/services"
	"docchat_go_backend/internal/utils/broker"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleWebSocket(t *testing.T) {
	b := broker.NewBroker()
	user := &models.User{ID: uuid.New(), IsActive: true}
	handler := NewHandler(websocket.Upgrader{}, b, time.Minute)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.HandleWebSocket(w, r, user)
	}))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var hello Message
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, "connected", hello.Type)
	assert.Equal(t, user.ID.String(), hello.Content)

	chatID := uuid.New()
	topic := services.UserTopic(user.ID)
	require.Eventually(t, func() bool { return b.Subscribers(topic) == 1 }, time.Second, 10*time.Millisecond)
	b.Publish(topic, services.ChatEvent{
		Type:    services.EventMessageAppended,
		ChatID:  chatID,
		Message: &models.Message{ChatID: chatID, Role: models.RoleAssistant, Content: "hi"},
	})

	var event services.ChatEvent
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, services.EventMessageAppended, event.Type)
	assert.Equal(t, chatID, event.ChatID)
	require.NotNil(t, event.Message)
	assert.Equal(t, "hi", event.Message.Content)

	conn.Close()
	assert.Eventually(t, func() bool { return b.Subscribers(topic) == 0 }, time.Second, 10*time.Millisecond)
}
