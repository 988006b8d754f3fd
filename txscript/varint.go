// 实现了比特币紧凑变长无符号整数（CompactSize）的编解码，用于脚本外层长度前缀。

package txscript

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"math/big"

	"github.com/btcsuite/btcd/wire"
)

// maxVarInt 是变长整数能够表示的最大值。
var maxVarInt = new(big.Int).SetUint64(math.MaxUint64)

// ReadVarInt 从 r 中读取一个变长整数，根据首字节标记读取 1、3、5 或 9 个字节。
// 输入提前结束时返回 ErrUnexpectedEOF，非最短形式的编码返回 ErrNonCanonicalVarInt。
func ReadVarInt(r io.Reader) (uint64, error) {
	val, err := wire.ReadVarInt(r, wire.ProtocolVersion)
	if err == nil {
		return val, nil
	}

	var msgErr *wire.MessageError
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return 0, scriptError(ErrUnexpectedEOF, "unexpected end of input "+
			"while reading varint")
	case errors.As(err, &msgErr):
		return 0, scriptError(ErrNonCanonicalVarInt, msgErr.Description)
	}
	return 0, err
}

// WriteVarInt 使用最少的字节数将 val 序列化到 w。
func WriteVarInt(w io.Writer, val uint64) error {
	return wire.WriteVarInt(w, wire.ProtocolVersion, val)
}

// EncodeVarInt 返回 val 的变长整数编码。
func EncodeVarInt(val uint64) []byte {
	var buf bytes.Buffer
	buf.Grow(VarIntSerializeSize(val))
	// bytes.Buffer 的写入不会失败
	_ = WriteVarInt(&buf, val)
	return buf.Bytes()
}

// EncodeVarIntBig 对任意精度的非负整数进行编码。
// 当数值为负或者超过 64 位可表示的范围时，返回 ErrValueTooLarge。
func EncodeVarIntBig(val *big.Int) ([]byte, error) {
	if val == nil || val.Sign() < 0 || val.Cmp(maxVarInt) > 0 {
		str := fmt.Sprintf("integer %v cannot be encoded as a varint", val)
		return nil, scriptError(ErrValueTooLarge, str)
	}
	return EncodeVarInt(val.Uint64()), nil
}

// VarIntSerializeSize 返回将 val 序列化为变长整数所需的字节数。
func VarIntSerializeSize(val uint64) int {
	return wire.VarIntSerializeSize(val)
}

// decodeVarIntBytes 是 ReadVarInt 针对字节切片的便捷包装。
func decodeVarIntBytes(b []byte) (uint64, int, error) {
	r := bytes.NewReader(b)
	val, err := ReadVarInt(r)
	if err != nil {
		return 0, 0, err
	}
	return val, len(b) - r.Len(), nil
}
