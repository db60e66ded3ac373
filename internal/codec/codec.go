// Package codec serializes schema messages for the journal and the
// in-memory bus. Numeric fields use fixed little-endian layouts;
// identifiers and symbols are length-prefixed strings, so payloads are
// variable size.
package codec

import "encoding/binary"

const maxStringLen = int(^uint16(0))

func appendUint16(dst []byte, v uint16) []byte {
	return binary.LittleEndian.AppendUint16(dst, v)
}

func appendUint32(dst []byte, v uint32) []byte {
	return binary.LittleEndian.AppendUint32(dst, v)
}

func appendUint64(dst []byte, v uint64) []byte {
	return binary.LittleEndian.AppendUint64(dst, v)
}

// appendString writes a uint16 length prefix followed by the bytes.
// Oversized strings are truncated at the prefix limit.
func appendString(dst []byte, s string) []byte {
	if len(s) > maxStringLen {
		s = s[:maxStringLen]
	}
	dst = appendUint16(dst, uint16(len(s)))
	return append(dst, s...)
}

type decoder struct {
	src []byte
	ok  bool
}

func newDecoder(src []byte) *decoder {
	return &decoder{src: src, ok: true}
}

func (d *decoder) uint16() uint16 {
	if !d.ok || len(d.src) < 2 {
		d.ok = false
		return 0
	}
	v := binary.LittleEndian.Uint16(d.src)
	d.src = d.src[2:]
	return v
}

func (d *decoder) uint32() uint32 {
	if !d.ok || len(d.src) < 4 {
		d.ok = false
		return 0
	}
	v := binary.LittleEndian.Uint32(d.src)
	d.src = d.src[4:]
	return v
}

func (d *decoder) uint64() uint64 {
	if !d.ok || len(d.src) < 8 {
		d.ok = false
		return 0
	}
	v := binary.LittleEndian.Uint64(d.src)
	d.src = d.src[8:]
	return v
}

func (d *decoder) int64() int64 {
	return int64(d.uint64())
}

func (d *decoder) string() string {
	n := int(d.uint16())
	if !d.ok || len(d.src) < n {
		d.ok = false
		return ""
	}
	v := string(d.src[:n])
	d.src = d.src[n:]
	return v
}
