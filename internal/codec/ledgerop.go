package codec

import "hedgelink/internal/schema"

// EncodeEntryRegistered serializes a ledger registration op.
func EncodeEntryRegistered(dst []byte, op schema.EntryRegistered) []byte {
	dst = appendString(dst, op.BaseID)
	dst = appendUint16(dst, uint16(op.Direction))
	dst = appendUint64(dst, uint64(op.Quantity))
	dst = appendString(dst, op.Instrument)
	dst = appendString(dst, op.Account)
	return dst
}

// DecodeEntryRegistered parses a ledger registration op payload.
func DecodeEntryRegistered(src []byte) (schema.EntryRegistered, bool) {
	d := newDecoder(src)
	op := schema.EntryRegistered{
		BaseID:     d.string(),
		Direction:  schema.Direction(d.uint16()),
		Quantity:   schema.Quantity(d.int64()),
		Instrument: d.string(),
		Account:    d.string(),
	}
	return op, d.ok
}

// EncodeGroupReduced serializes a ledger decrement op.
func EncodeGroupReduced(dst []byte, op schema.GroupReduced) []byte {
	dst = appendString(dst, op.BaseID)
	dst = appendUint64(dst, uint64(op.Quantity))
	return dst
}

// DecodeGroupReduced parses a ledger decrement op payload.
func DecodeGroupReduced(src []byte) (schema.GroupReduced, bool) {
	d := newDecoder(src)
	op := schema.GroupReduced{
		BaseID:   d.string(),
		Quantity: schema.Quantity(d.int64()),
	}
	return op, d.ok
}

// EncodeGroupRemoved serializes a ledger removal op.
func EncodeGroupRemoved(dst []byte, op schema.GroupRemoved) []byte {
	return appendString(dst, op.BaseID)
}

// DecodeGroupRemoved parses a ledger removal op payload.
func DecodeGroupRemoved(src []byte) (schema.GroupRemoved, bool) {
	d := newDecoder(src)
	op := schema.GroupRemoved{BaseID: d.string()}
	return op, d.ok
}
