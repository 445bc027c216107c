// Package websocket pushes live savings balances to connected account holders.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"lending/internal/domain"
	"lending/internal/money"
)

type BalanceUpdate struct {
	SavingsAccountID string    `json:"savings_account_id"`
	Event            string    `json:"event"`
	Amount           string    `json:"amount"`
	Balance          string    `json:"balance"`
	Currency         string    `json:"currency"`
	OccurredOn       time.Time `json:"occurred_on"`
}

type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	log     logrus.FieldLogger
}

func NewHub(log logrus.FieldLogger) *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		log:     log,
	}
}

func (h *Hub) Register(userID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*Client]struct{})
	}
	h.clients[userID][client] = struct{}{}
}

func (h *Hub) Unregister(userID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		return
	}
	delete(h.clients[userID], client)
	if len(h.clients[userID]) == 0 {
		delete(h.clients, userID)
	}
}

// Connected reports how many sockets userID currently holds.
func (h *Hub) Connected(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// BroadcastBalance queues update for every socket of userID. Slow clients
// drop the update rather than block the publisher.
func (h *Hub) BroadcastBalance(userID string, update BalanceUpdate) error {
	payload, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("encode balance update: %w", err)
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[userID] {
		select {
		case client.send <- payload:
		default:
			h.log.WithField("user_id", userID).Warn("websocket client lagging, balance update dropped")
		}
	}
	return nil
}

// HandleEvent is an events.Handler for the balance-changing savings events.
func (h *Hub) HandleEvent(_ context.Context, event domain.Event) error {
	switch e := event.(type) {
	case domain.SavingsDeposited:
		return h.BroadcastBalance(e.UserID, balanceUpdate(event, e.SavingsAccountID, e.Amount, e.BalanceAfter))
	case domain.SavingsWithdrawn:
		return h.BroadcastBalance(e.UserID, balanceUpdate(event, e.SavingsAccountID, e.Amount, e.BalanceAfter))
	}
	return nil
}

func balanceUpdate(event domain.Event, accountID string, amount, balance money.Money) BalanceUpdate {
	return BalanceUpdate{
		SavingsAccountID: accountID,
		Event:            event.EventType(),
		Amount:           amount.Amount().StringFixed(2),
		Balance:          balance.Amount().StringFixed(2),
		Currency:         balance.Currency(),
		OccurredOn:       event.OccurredOn(),
	}
}
