// Package hkv implements the packed (header, key, value) record format
// the engine stores at monotonically increasing offsets in the KV arena
// (spec §3 "HKV record", §4.1, §6 "HKV byte layout").
//
// Layout (all multi-byte fields little-endian, matching the UID codec and
// rpcpool-yellowstone-faithful/bucketteer's use of binary.LittleEndian for
// its own packed prefix table):
//
//	header_1 (1 byte header): [flag=0:1 | key_len:3 | val_len:4]
//	header_3 (3 byte header): [flag=1:1 | key_len:7][val_len:16]
//	header_5 (5 byte header): [flag=0:1 | xxx=0:3 | yyy=0:4][key_len:16][val_len:16]
//	header_8 (8 byte header): [flag=0:1 | xxx=0:3 | yyy=1:4][key_len:24][val_len:32]
//
// header_1 requires key_len in [1,7]; a zero key_len field in that layout
// is reinterpreted by Decode as "not header_1" and the decoder falls
// through to the header_5/header_8 disambiguation, exactly as spec §6
// describes. The encoder always selects the smallest width both lengths
// fit in.
//
// © 2025 sheetkv authors. MIT License.
package hkv

import (
	"encoding/binary"
	"errors"

	"github.com/Voskan/sheetkv/internal/bytesconv"
)

// ErrValueTooLarge is returned by Encode and EncodedLen when the key is
// empty or the key or value exceeds the largest (header_8) layout's
// limits.
var ErrValueTooLarge = errors.New("hkv: key or value exceeds header_8 limits")

// ErrCorrupt is returned by Decode/HeaderLen when the source bytes do not
// match any known header pattern — an internal invariant violation,
// never expected on data this package itself wrote.
var ErrCorrupt = errors.New("hkv: corrupt record header")

// Width limits per spec §3 "HKV record" table.
const (
	MaxKeyHeader1 = 7
	MaxValHeader1 = 15

	MaxKeyHeader3 = 127
	MaxValHeader3 = 65535

	MaxKeyHeader5 = 65535
	MaxValHeader5 = 65535

	MaxKeyHeader8 = 16777215
	MaxValHeader8 = 4294967295
)

// Record is the result of a Decode call. Key and Value alias the source
// buffer and are valid only as long as that buffer is.
type Record struct {
	HeaderLen int
	Key       []byte
	Value     []byte
	TotalLen  int
}

// EncodedLen returns the total byte length (header+key+value) Encode would
// produce for the given lengths, or an error if neither header fits.
func EncodedLen(keyLen, valLen int) (int, error) {
	h, err := headerWidth(keyLen, valLen)
	if err != nil {
		return 0, err
	}
	return h + keyLen + valLen, nil
}

func headerWidth(keyLen, valLen int) (int, error) {
	switch {
	case keyLen >= 1 && keyLen <= MaxKeyHeader1 && valLen <= MaxValHeader1:
		return 1, nil
	case keyLen >= 1 && keyLen <= MaxKeyHeader3 && valLen <= MaxValHeader3:
		return 3, nil
	case keyLen >= 1 && keyLen <= MaxKeyHeader5 && valLen <= MaxValHeader5:
		return 5, nil
	case keyLen >= 1 && keyLen <= MaxKeyHeader8 && uint64(valLen) <= MaxValHeader8:
		return 8, nil
	default:
		return 0, ErrValueTooLarge
	}
}

// Encode writes header+key+value into dst (which must be at least
// EncodedLen(len(key), len(val)) bytes) and returns the number of bytes
// written.
func Encode(dst, key, val []byte) (int, error) {
	width, err := headerWidth(len(key), len(val))
	if err != nil {
		return 0, err
	}
	total := width + len(key) + len(val)
	if len(dst) < total {
		return 0, errors.New("hkv: dst too small")
	}

	switch width {
	case 1:
		dst[0] = byte(len(key))<<4 | byte(len(val))
	case 3:
		dst[0] = 0x80 | byte(len(key))
		binary.LittleEndian.PutUint16(dst[1:3], uint16(len(val)))
	case 5:
		dst[0] = 0x00
		binary.LittleEndian.PutUint16(dst[1:3], uint16(len(key)))
		binary.LittleEndian.PutUint16(dst[3:5], uint16(len(val)))
	case 8:
		dst[0] = 0x01
		put24(dst[1:4], uint32(len(key)))
		binary.LittleEndian.PutUint32(dst[4:8], uint32(len(val)))
	}

	copy(dst[width:width+len(key)], key)
	copy(dst[width+len(key):total], val)
	return total, nil
}

// HeaderLen peeks at the first byte of src and returns the header width
// without decoding key/value lengths fully.
func HeaderLen(src []byte) (int, error) {
	if len(src) == 0 {
		return 0, ErrCorrupt
	}
	b0 := src[0]
	if b0&0x80 != 0 {
		return 3, nil
	}
	if (b0>>4)&0x07 != 0 {
		return 1, nil
	}
	switch b0 & 0x0F {
	case 0x00:
		return 5, nil
	case 0x01:
		return 8, nil
	default:
		return 0, ErrCorrupt
	}
}

// Decode parses one record starting at src[0]. The returned Record's Key
// and Value alias src.
func Decode(src []byte) (Record, error) {
	if len(src) == 0 {
		return Record{}, ErrCorrupt
	}
	b0 := src[0]

	var width, keyLen, valLen int

	switch {
	case b0&0x80 != 0:
		width = 3
		if len(src) < width {
			return Record{}, ErrCorrupt
		}
		keyLen = int(b0 & 0x7F)
		valLen = int(binary.LittleEndian.Uint16(src[1:3]))
	case (b0>>4)&0x07 != 0:
		width = 1
		keyLen = int((b0 >> 4) & 0x07)
		valLen = int(b0 & 0x0F)
	case b0&0x0F == 0x00:
		width = 5
		if len(src) < width {
			return Record{}, ErrCorrupt
		}
		keyLen = int(binary.LittleEndian.Uint16(src[1:3]))
		valLen = int(binary.LittleEndian.Uint16(src[3:5]))
	case b0&0x0F == 0x01:
		width = 8
		if len(src) < width {
			return Record{}, ErrCorrupt
		}
		keyLen = int(get24(src[1:4]))
		valLen = int(binary.LittleEndian.Uint32(src[4:8]))
	default:
		return Record{}, ErrCorrupt
	}

	total := width + keyLen + valLen
	if len(src) < total {
		return Record{}, ErrCorrupt
	}

	return Record{
		HeaderLen: width,
		Key:       src[width : width+keyLen],
		Value:     src[width+keyLen : total],
		TotalLen:  total,
	}, nil
}

// KeysEqual reports whether a decoded record's key matches the given raw
// key bytes; a thin convenience for the probe engine's comparison step
// (spec §4.4 "compare key length and key bytes").
func KeysEqual(rec Record, key []byte) bool {
	return bytesconv.Equal(rec.Key, key)
}

func put24(dst []byte, v uint32) {
	dst[0] = byte(v)
	dst[1] = byte(v >> 8)
	dst[2] = byte(v >> 16)
}

func get24(src []byte) uint32 {
	return uint32(src[0]) | uint32(src[1])<<8 | uint32(src[2])<<16
}
