package codec

import "hedgelink/internal/schema"

// EncodeEntryMessage serializes an outbound entry message.
func EncodeEntryMessage(dst []byte, m schema.EntryMessage) []byte {
	dst = appendString(dst, m.BaseID)
	dst = appendUint16(dst, uint16(m.Direction))
	dst = appendUint64(dst, uint64(m.Quantity))
	dst = appendUint64(dst, uint64(m.Price))
	dst = appendString(dst, m.Instrument)
	dst = appendString(dst, m.Account)
	dst = appendUint64(dst, m.Seq)
	dst = appendUint32(dst, uint32(m.ContractNum))
	dst = appendUint64(dst, uint64(m.TotalQuantity))
	return dst
}

// DecodeEntryMessage parses an outbound entry message payload.
func DecodeEntryMessage(src []byte) (schema.EntryMessage, bool) {
	d := newDecoder(src)
	m := schema.EntryMessage{
		BaseID:        d.string(),
		Direction:     schema.Direction(d.uint16()),
		Quantity:      schema.Quantity(d.int64()),
		Price:         schema.Price(d.int64()),
		Instrument:    d.string(),
		Account:       d.string(),
		Seq:           d.uint64(),
		ContractNum:   int32(d.uint32()),
		TotalQuantity: schema.Quantity(d.int64()),
	}
	return m, d.ok
}

// EncodeCloseMessage serializes an outbound closure message.
func EncodeCloseMessage(dst []byte, m schema.CloseMessage) []byte {
	dst = appendString(dst, m.BaseID)
	dst = appendUint64(dst, uint64(m.Quantity))
	dst = appendString(dst, m.Reason)
	dst = appendUint64(dst, m.Ticket)
	dst = appendUint64(dst, m.Seq)
	return dst
}

// DecodeCloseMessage parses an outbound closure message payload.
func DecodeCloseMessage(src []byte) (schema.CloseMessage, bool) {
	d := newDecoder(src)
	m := schema.CloseMessage{
		BaseID:   d.string(),
		Quantity: schema.Quantity(d.int64()),
		Reason:   d.string(),
		Ticket:   d.uint64(),
		Seq:      d.uint64(),
	}
	return m, d.ok
}
