package codec

import "hedgelink/internal/schema"

// EncodeLocalExecution serializes a local fill.
func EncodeLocalExecution(dst []byte, e schema.LocalExecution) []byte {
	dst = appendString(dst, e.ExecutionID)
	dst = appendString(dst, e.OrderID)
	dst = appendString(dst, e.OrderName)
	dst = appendString(dst, e.Instrument)
	dst = appendString(dst, e.Account)
	dst = appendUint16(dst, uint16(e.Action))
	dst = appendUint64(dst, uint64(e.Quantity))
	dst = appendUint64(dst, uint64(e.Price))
	dst = appendUint64(dst, uint64(e.TsEvent))
	return dst
}

// DecodeLocalExecution parses a local fill payload.
func DecodeLocalExecution(src []byte) (schema.LocalExecution, bool) {
	d := newDecoder(src)
	e := schema.LocalExecution{
		ExecutionID: d.string(),
		OrderID:     d.string(),
		OrderName:   d.string(),
		Instrument:  d.string(),
		Account:     d.string(),
		Action:      schema.OrderAction(d.uint16()),
		Quantity:    schema.Quantity(d.int64()),
		Price:       schema.Price(d.int64()),
		TsEvent:     d.int64(),
	}
	return e, d.ok
}

// EncodeRemoteNotification serializes a hedge venue message.
func EncodeRemoteNotification(dst []byte, n schema.RemoteNotification) []byte {
	dst = appendUint16(dst, uint16(n.Event))
	dst = appendString(dst, n.BaseID)
	dst = appendUint64(dst, n.Ticket)
	dst = appendUint64(dst, uint64(n.Quantity))
	dst = appendString(dst, n.Reason)
	dst = appendString(dst, n.MessageID)
	dst = appendString(dst, n.OrderType)
	dst = appendString(dst, n.Instrument)
	dst = appendUint64(dst, uint64(n.TsEvent))
	return dst
}

// DecodeRemoteNotification parses a hedge venue message payload.
func DecodeRemoteNotification(src []byte) (schema.RemoteNotification, bool) {
	d := newDecoder(src)
	n := schema.RemoteNotification{
		Event:      schema.RemoteEventType(d.uint16()),
		BaseID:     d.string(),
		Ticket:     d.uint64(),
		Quantity:   schema.Quantity(d.int64()),
		Reason:     d.string(),
		MessageID:  d.string(),
		OrderType:  d.string(),
		Instrument: d.string(),
		TsEvent:    d.int64(),
	}
	return n, d.ok
}
