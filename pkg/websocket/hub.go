package websocket

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// Hub управляет всеми подключёнными клиентами и рассылкой уведомлений.
// Все мутации карт происходят только в горутине Run.
type Hub struct {
	clients     map[*Client]bool
	userClients map[uint64][]*Client
	Register    chan *Client
	unregister  chan *Client
	send        chan userMessage
	logger      *zap.Logger
}

type userMessage struct {
	userID uint64
	data   []byte
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:     make(map[*Client]bool),
		userClients: make(map[uint64][]*Client),
		Register:    make(chan *Client),
		unregister:  make(chan *Client),
		send:        make(chan userMessage, 64),
		logger:      logger,
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				close(client.Send)
			}
			return
		case client := <-h.Register:
			h.clients[client] = true
			h.userClients[client.UserID] = append(h.userClients[client.UserID], client)
			h.logger.Info("websocket: клиент зарегистрирован", zap.Uint64("userID", client.UserID))
		case client := <-h.unregister:
			h.removeClient(client)
		case msg := <-h.send:
			// Срез копируется: removeClient правит h.userClients по месту.
			clients := append([]*Client(nil), h.userClients[msg.userID]...)
			for _, client := range clients {
				select {
				case client.Send <- msg.data:
				default:
					// Переполненный клиент отключается, чтобы не тормозить остальных.
					h.removeClient(client)
				}
			}
		}
	}
}

// removeClient снимает клиента с обеих карт и закрывает его канал.
// Повторный вызов для того же клиента — no-op, канал закрывается один раз.
func (h *Hub) removeClient(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.Send)
	clients := h.userClients[client.UserID]
	for i, c := range clients {
		if c == client {
			h.userClients[client.UserID] = append(clients[:i], clients[i+1:]...)
			break
		}
	}
	if len(h.userClients[client.UserID]) == 0 {
		delete(h.userClients, client.UserID)
	}
	h.logger.Info("websocket: клиент отсоединён", zap.Uint64("userID", client.UserID))
}

// SendToUser доставляет payload всем активным соединениям пользователя.
func (h *Hub) SendToUser(userID uint64, payload interface{}, messageType string) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("websocket: ошибка сериализации payload", zap.Error(err))
		return err
	}

	messageBytes, err := json.Marshal(Envelope{
		Type:      messageType,
		Payload:   payloadBytes,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		h.logger.Error("websocket: ошибка сериализации конверта", zap.Error(err))
		return err
	}

	h.send <- userMessage{userID: userID, data: messageBytes}
	return nil
}
