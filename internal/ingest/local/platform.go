// Package local connects to the primary trading platform's addon over
// websocket. It streams execution fills and position updates into the
// service and submits mirror-close orders back.
package local

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yanun0323/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
	"github.com/yanun0323/pkg/ws"

	"hedgelink/internal/mirror"
	"hedgelink/internal/schema"
)

const (
	subscribeID = 1

	// priceScale matches the scaled-integer price representation used
	// across the journal: four decimal places.
	priceScale = 4

	mirrorOrderPrefix = "MC_"
	mirrorOrderName   = "MirrorClose"
)

// Platform is the primary platform client. It caches the latest
// position updates so the mirror handler and classifier read live
// state without a round trip.
type Platform struct {
	wss     *ws.WebSocket
	account string

	posMu     sync.Mutex
	positions map[string]mirror.Position
}

// NewPlatform creates a platform client for the given websocket URL.
func NewPlatform(ctx context.Context, url, account string) *Platform {
	return &Platform{
		wss:       ws.New(ctx, url),
		account:   account,
		positions: make(map[string]mirror.Position),
	}
}

func (p *Platform) Len() int {
	return p.wss.Len()
}

func (p *Platform) Close() {
	p.wss.Close()
}

// StartWebsocket connects to the platform addon.
func (p *Platform) StartWebsocket(ctx context.Context) error {
	if err := p.wss.Start(ctx); err != nil {
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

// SubscribeExecutions subscribes the execution and position stream for
// the account.
func (p *Platform) SubscribeExecutions(ctx context.Context) error {
	if err := p.wss.SendAndWait(ctx, ws.Sidecar{
		Sender: func(ctx context.Context, client *ws.WebSocket) error {
			payload := subscribeRequest{
				ID:      subscribeID,
				Action:  "subscribe",
				Channel: "executions",
				Account: p.account,
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
				return false, errors.Errorf("subscribe executions, err: %+v", resp.Error)
			}
			return true, nil
		},
	}, true); err != nil {
		return errors.Wrap(err, "send and wait")
	}
	return nil
}

// platformMessage is the addon's wire layout. Type selects which
// fields are set.
type platformMessage struct {
	Type           string          `json:"type"`
	ExecutionID    string          `json:"execution_id"`
	OrderID        string          `json:"order_id"`
	OrderName      string          `json:"order_name"`
	Instrument     string          `json:"instrument"`
	Account        string          `json:"account"`
	Action         string          `json:"action"`
	Quantity       decimal.Decimal `json:"quantity"`
	Price          decimal.Decimal `json:"price"`
	MarketPosition string          `json:"market_position"`
	Timestamp      int64           `json:"timestamp"`
}

// ObserveExecutions streams execution fills into the handler until the
// context ends. Position updates refresh the live cache and are not
// forwarded.
func (p *Platform) ObserveExecutions(ctx context.Context, handler func(e schema.LocalExecution)) (unsubscribe func()) {
	ch, cancel := p.wss.Subscribe()

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

				raw, ok := ws.ReadMessage[platformMessage](m)
				if !ok || raw.Type == "" {
					continue
				}

				switch raw.Type {
				case "execution":
					e, ok := toExecution(raw)
					if !ok {
						logs.Errorf("drop platform execution, executionId: %s, orderId: %s", raw.ExecutionID, raw.OrderID)
						continue
					}
					handler(e)
				case "position":
					p.applyPosition(raw)
				}
			}
		}
	}()

	return cancel
}

func toExecution(raw platformMessage) (schema.LocalExecution, bool) {
	action := parseAction(raw.Action)
	if action == schema.ActionUnknown || raw.ExecutionID == "" {
		return schema.LocalExecution{}, false
	}
	qty, ok := wholeContracts(raw.Quantity)
	if !ok || qty <= 0 {
		return schema.LocalExecution{}, false
	}
	price, ok := scaledPrice(raw.Price)
	if !ok {
		return schema.LocalExecution{}, false
	}
	return schema.LocalExecution{
		ExecutionID: raw.ExecutionID,
		OrderID:     raw.OrderID,
		OrderName:   raw.OrderName,
		Instrument:  raw.Instrument,
		Account:     raw.Account,
		Action:      action,
		Quantity:    qty,
		Price:       price,
		TsEvent:     raw.Timestamp,
	}, true
}

func parseAction(s string) schema.OrderAction {
	switch strings.ToUpper(strings.ReplaceAll(s, "_", "")) {
	case "BUY":
		return schema.ActionBuy
	case "SELL":
		return schema.ActionSell
	case "SELLSHORT":
		return schema.ActionSellShort
	case "BUYTOCOVER":
		return schema.ActionBuyToCover
	default:
		return schema.ActionUnknown
	}
}

func (p *Platform) applyPosition(raw platformMessage) {
	qty, ok := wholeContracts(raw.Quantity)
	if !ok || raw.Instrument == "" {
		return
	}
	key := raw.Instrument + "|" + raw.Account

	p.posMu.Lock()
	defer p.posMu.Unlock()
	switch strings.ToUpper(raw.MarketPosition) {
	case "LONG":
		p.positions[key] = mirror.Position{
			Instrument: raw.Instrument,
			Account:    raw.Account,
			Direction:  schema.DirectionLong,
			Quantity:   qty,
		}
	case "SHORT":
		p.positions[key] = mirror.Position{
			Instrument: raw.Instrument,
			Account:    raw.Account,
			Direction:  schema.DirectionShort,
			Quantity:   qty,
		}
	default:
		delete(p.positions, key)
	}
}

// Positions returns the latest position for every instrument the
// platform has reported.
func (p *Platform) Positions() []mirror.Position {
	p.posMu.Lock()
	defer p.posMu.Unlock()
	out := make([]mirror.Position, 0, len(p.positions))
	for _, pos := range p.positions {
		out = append(out, pos)
	}
	return out
}

type closeOrderPayload struct {
	Command    string `json:"command"`
	OrderID    string `json:"order_id"`
	OrderName  string `json:"order_name"`
	Instrument string `json:"instrument"`
	Account    string `json:"account"`
	Action     string `json:"action"`
	Quantity   int64  `json:"quantity"`
	Timestamp  int64  `json:"timestamp"`
}

// SubmitClose places a market order that flattens part of a live
// position. The returned order id tags the eventual fill.
func (p *Platform) SubmitClose(instrument, account string, direction schema.Direction, qty schema.Quantity) (string, error) {
	action := "SELL"
	if direction == schema.DirectionShort {
		action = "BUY_TO_COVER"
	}
	orderID := mirrorOrderPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
	payload := closeOrderPayload{
		Command:    "submit_order",
		OrderID:    orderID,
		OrderName:  mirrorOrderName,
		Instrument: instrument,
		Account:    account,
		Action:     action,
		Quantity:   int64(qty),
		Timestamp:  time.Now().UTC().UnixMilli(),
	}
	if err := p.wss.WriteJSON(payload); err != nil {
		return "", errors.Wrap(err, "write close order").With("orderId", orderID)
	}
	return orderID, nil
}

// wholeContracts converts a platform decimal to a contract count. A
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

// scaledPrice converts a platform decimal to the journal's fixed-point
// price representation.
func scaledPrice(d decimal.Decimal) (schema.Price, bool) {
	s := d.String()
	if s == "" {
		return 0, true
	}
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	whole, frac, _ := strings.Cut(s, ".")
	if len(frac) > priceScale {
		frac = frac[:priceScale]
	}
	for len(frac) < priceScale {
		frac += "0"
	}
	v, err := strconv.ParseInt(whole+frac, 10, 64)
	if err != nil {
		return 0, false
	}
	if neg {
		v = -v
	}
	return schema.Price(v), true
}
