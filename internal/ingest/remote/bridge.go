// Package remote connects to the hedge venue's bridge over websocket.
// It translates bridge JSON into schema messages and carries outbound
// entry and closure messages the other way.
package remote

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/yanun0323/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
	"github.com/yanun0323/pkg/ws"

	"hedgelink/internal/schema"
)

const subscribeID = 1

type Bridge struct {
	wss     *ws.WebSocket
	account string
}

// NewBridge creates a bridge client for the given websocket URL.
func NewBridge(ctx context.Context, url, account string) *Bridge {
	return &Bridge{
		wss:     ws.New(ctx, url),
		account: account,
	}
}

func (b *Bridge) Len() int {
	return b.wss.Len()
}

func (b *Bridge) Close() {
	b.wss.Close()
}

// StartWebsocket connects to the bridge.
func (b *Bridge) StartWebsocket(ctx context.Context) error {
	if err := b.wss.Start(ctx); err != nil {
		return errors.Wrap(err, "start wss")
	}
	return nil
}

type subscribeRequest struct {
	ID      int64  `json:"id"`
	Action  string `json:"action"`
	Channel string `json:"channel"`
	Account string `json:"account"`
}

type subscribeResponse struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
	Error  any    `json:"error"`
}

// SubscribeEvents subscribes the hedge event channel for the account.
func (b *Bridge) SubscribeEvents(ctx context.Context) error {
	if err := b.wss.SendAndWait(ctx, ws.Sidecar{
		Sender: func(ctx context.Context, client *ws.WebSocket) error {
			payload := subscribeRequest{
				ID:      subscribeID,
				Action:  "subscribe",
				Channel: "hedge_events",
				Account: b.account,
			}
			if err := client.WriteJSON(payload); err != nil {
				return errors.Wrap(err, "write subscribe payload").With("payload", payload)
			}
			return nil
		},
		Waiter: func(ctx context.Context, m ws.Message) (bool, error) {
			resp, ok := ws.ReadMessage[subscribeResponse](m)
			if !ok || resp.ID != subscribeID {
				return false, nil
			}
			if resp.Error != nil || resp.Status != "success" {
				return false, errors.Errorf("subscribe hedge events, err: %+v", resp.Error)
			}
			return true, nil
		},
	}, true); err != nil {
		return errors.Wrap(err, "send and wait")
	}
	return nil
}

// bridgeNotification is the venue's wire layout. Quantities arrive as
// decimals even though contracts are whole.
type bridgeNotification struct {
	EventType  string          `json:"event_type"`
	BaseID     string          `json:"base_id"`
	Ticket     uint64          `json:"ticket"`
	Quantity   decimal.Decimal `json:"quantity"`
	Reason     string          `json:"closure_reason"`
	MessageID  string          `json:"message_id"`
	OrderType  string          `json:"order_type"`
	Instrument string          `json:"instrument"`
	Timestamp  int64           `json:"timestamp"`
}

// ObserveNotifications streams venue messages into the handler until
// the context ends.
func (b *Bridge) ObserveNotifications(ctx context.Context, handler func(n schema.RemoteNotification)) (unsubscribe func()) {
	ch, cancel := b.wss.Subscribe()

	go func() {
		defer cancel()
		for {
			select {
			case <-sys.Shutdown():
				return
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}

				raw, ok := ws.ReadMessage[bridgeNotification](m)
				if !ok || raw.EventType == "" {
					continue
				}

				n, ok := toNotification(raw)
				if !ok {
					logs.Errorf("drop bridge message, eventType: %s, baseId: %s", raw.EventType, raw.BaseID)
					continue
				}
				handler(n)
			}
		}
	}()

	return cancel
}

func toNotification(raw bridgeNotification) (schema.RemoteNotification, bool) {
	event := parseEventType(raw.EventType)
	if event == schema.RemoteUnknown {
		return schema.RemoteNotification{}, false
	}
	qty, ok := wholeContracts(raw.Quantity)
	if !ok {
		return schema.RemoteNotification{}, false
	}
	return schema.RemoteNotification{
		Event:      event,
		BaseID:     raw.BaseID,
		Ticket:     raw.Ticket,
		Quantity:   qty,
		Reason:     raw.Reason,
		MessageID:  raw.MessageID,
		OrderType:  raw.OrderType,
		Instrument: raw.Instrument,
		TsEvent:    raw.Timestamp,
	}, true
}

func parseEventType(s string) schema.RemoteEventType {
	switch strings.ToUpper(s) {
	case "HEDGE_OPENED":
		return schema.RemoteHedgeOpened
	case "HEDGE_CLOSED":
		return schema.RemoteHedgeClosed
	case "CLOSE_NOTIFICATION", "MT5_CLOSE_NOTIFICATION":
		return schema.RemoteCloseNotification
	default:
		return schema.RemoteUnknown
	}
}

// wholeContracts converts a venue decimal to a contract count. A
// fractional part means the message is malformed.
func wholeContracts(d decimal.Decimal) (schema.Quantity, bool) {
	s := d.String()
	if s == "" {
		return 0, true
	}
	whole, frac, _ := strings.Cut(s, ".")
	if strings.Trim(frac, "0") != "" {
		return 0, false
	}
	v, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, false
	}
	return schema.Quantity(v), true
}

type entryPayload struct {
	Action        string `json:"action"`
	BaseID        string `json:"base_id"`
	Quantity      int64  `json:"quantity"`
	Price         int64  `json:"price"`
	Instrument    string `json:"instrument_name"`
	Account       string `json:"account_name"`
	Seq           uint64 `json:"seq"`
	ContractNum   int32  `json:"contract_num"`
	TotalQuantity int64  `json:"total_quantity"`
	Timestamp     int64  `json:"timestamp"`
}

type closePayload struct {
	Action    string `json:"action"`
	BaseID    string `json:"base_id"`
	Quantity  int64  `json:"quantity"`
	Reason    string `json:"closure_reason"`
	Ticket    uint64 `json:"ticket,omitempty"`
	Seq       uint64 `json:"seq"`
	Timestamp int64  `json:"timestamp"`
}

// SendEntry delivers an entry message to the venue.
func (b *Bridge) SendEntry(ctx context.Context, msg schema.EntryMessage) error {
	action := "buy"
	if msg.Direction == schema.DirectionShort {
		action = "sell"
	}
	payload := entryPayload{
		Action:        action,
		BaseID:        msg.BaseID,
		Quantity:      int64(msg.Quantity),
		Price:         int64(msg.Price),
		Instrument:    msg.Instrument,
		Account:       msg.Account,
		Seq:           msg.Seq,
		ContractNum:   msg.ContractNum,
		TotalQuantity: int64(msg.TotalQuantity),
		Timestamp:     time.Now().UTC().UnixMilli(),
	}
	if err := b.wss.WriteJSON(payload); err != nil {
		return errors.Wrap(err, "write entry payload").With("baseId", msg.BaseID)
	}
	return nil
}

// SendClosure delivers a closure message to the venue. A zero ticket
// is omitted; the venue then falls back to comment matching.
func (b *Bridge) SendClosure(ctx context.Context, msg schema.CloseMessage) error {
	payload := closePayload{
		Action:    schema.CloseHedgeAction,
		BaseID:    msg.BaseID,
		Quantity:  int64(msg.Quantity),
		Reason:    msg.Reason,
		Ticket:    msg.Ticket,
		Seq:       msg.Seq,
		Timestamp: time.Now().UTC().UnixMilli(),
	}
	if err := b.wss.WriteJSON(payload); err != nil {
		return errors.Wrap(err, "write close payload").With("baseId", msg.BaseID)
	}
	return nil
}
