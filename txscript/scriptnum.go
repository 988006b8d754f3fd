// 实现了脚本数字的编解码：小端字节序，最高字节的最高位表示符号。

package txscript

import (
	"fmt"
)

const (
	// defaultScriptNumLen 是作为数字解释的栈元素默认允许的最大字节数。
	defaultScriptNumLen = 4
)

// scriptNum 表示脚本引擎中使用的数值。
//
// 所有数值在栈上以小端字节序编码，最高字节的最高位为符号位。
// 0 被编码为空字节串，负零 0x80 同样被视为零。
type scriptNum int64

// Bytes 返回数字的最小编码。
//
// Example encodings:
//
//	 127 -> [0x7f]
//	-127 -> [0xff]
//	 128 -> [0x80 0x00]
//	-128 -> [0x80 0x80]
//	 129 -> [0x81 0x00]
//	-129 -> [0x81 0x80]
//	 256 -> [0x00 0x01]
//	-256 -> [0x00 0x81]
func (n scriptNum) Bytes() []byte {
	if n == 0 {
		return nil
	}

	isNegative := n < 0
	if isNegative {
		n = -n
	}

	result := make([]byte, 0, 9)
	for n > 0 {
		result = append(result, byte(n&0xff))
		n >>= 8
	}

	// When the most significant byte already has the high bit set, an
	// additional high byte is required to indicate whether the number is
	// negative or positive.
	if result[len(result)-1]&0x80 != 0 {
		extraByte := byte(0x00)
		if isNegative {
			extraByte = 0x80
		}
		result = append(result, extraByte)

	} else if isNegative {
		result[len(result)-1] |= 0x80
	}

	return result
}

// makeScriptNum 将字节串解释为脚本数字。
// 超过 scriptNumLen 字节时返回 ErrNumberTooBig。
func makeScriptNum(v []byte, scriptNumLen int) (scriptNum, error) {
	if len(v) > scriptNumLen {
		str := fmt.Sprintf("numeric value encoded as %x is %d bytes which "+
			"exceeds the max allowed of %d", v, len(v), scriptNumLen)
		return 0, scriptError(ErrNumberTooBig, str)
	}

	if len(v) == 0 {
		return 0, nil
	}

	var result int64
	for i, val := range v {
		result |= int64(val) << uint8(8*i)
	}

	// When the most significant byte of the input bytes has the sign bit
	// set, the result is negative.
	if v[len(v)-1]&0x80 != 0 {
		result &= ^(int64(0x80) << uint8(8*(len(v)-1)))
		return scriptNum(-result), nil
	}

	return scriptNum(result), nil
}

// DecodeScriptNum 将最多 4 字节的栈元素解释为整数。
func DecodeScriptNum(v []byte) (int64, error) {
	n, err := makeScriptNum(v, defaultScriptNumLen)
	return int64(n), err
}

// EncodeScriptNum 返回整数的最小脚本数字编码。
func EncodeScriptNum(n int64) []byte {
	return scriptNum(n).Bytes()
}
