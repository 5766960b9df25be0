package ws

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"github.com/ndertimnet/leadengine/internal/logger"
	"github.com/ndertimnet/leadengine/internal/service"
)

// Hub рассылает события по офертам подписчикам заявок. Клиент подписывается
// на одну заявку; доступ проверяется хэндлером до регистрации.
type Hub struct {
	mu         sync.RWMutex
	clients    map[uuid.UUID]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan message
}

type message struct {
	jobID   uuid.UUID
	payload []byte
}

// NewHub создаёт новый хаб.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan message, 32),
	}
}

// Run запускает главный цикл хаба.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case msg := <-h.broadcast:
			h.send(msg.jobID, msg.payload)
		}
	}
}

// Register добавляет клиента.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister удаляет клиента.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// NotifyOffer отправляет событие всем подписчикам заявки. Не блокирует
// вызывающего: переполненный клиент отключается.
func (h *Hub) NotifyOffer(event service.OfferEvent) {
	payload := map[string]any{
		"type": event.Type,
		"data": event,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		logger.Log.WithError(err).Error("ws: не удалось сериализовать событие")
		return
	}

	select {
	case h.broadcast <- message{jobID: event.JobRequestID, payload: raw}:
	default:
		logger.Log.Warn("ws: очередь рассылки переполнена, событие пропущено")
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.jobID]; !ok {
		h.clients[client.jobID] = make(map[*Client]struct{})
	}
	h.clients[client.jobID][client] = struct{}{}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.clients[client.jobID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.clients, client.jobID)
		}
	}
}

func (h *Hub) send(jobID uuid.UUID, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[jobID] {
		select {
		case client.send <- payload:
		default:
			go client.Close()
		}
	}
}
