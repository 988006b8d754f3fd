// 包含脚本命令序列的表示，以及脚本字节码与命令序列之间的编解码。

package txscript

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
)

// 这些是为各个脚本中的最大值指定的常量。
const (
	MaxScriptElementSize = 520 // 可推入堆栈的最大字节数。
	MaxDirectPushSize    = 75  // 直接推送（不带 OP_PUSHDATA 前缀）的最大字节数。
	maxPushData1Size     = 0xff
)

// Command 是脚本中的一条命令：要么是一个操作码，要么是一段推送数据。
// Command 构造后不可修改。
type Command struct {
	op   byte
	data []byte
	push bool
}

// NewOpcode 返回一个操作码命令。
func NewOpcode(op byte) Command {
	return Command{op: op}
}

// NewPushData 返回一个推送数据命令。数据会被复制。
func NewPushData(data []byte) Command {
	cp := make([]byte, len(data))
	copy(cp, data)
	return Command{data: cp, push: true}
}

// IsPushData 返回命令是否为推送数据。
func (c Command) IsPushData() bool {
	return c.push
}

// Opcode 返回操作码命令的取值。对推送数据命令返回 0。
func (c Command) Opcode() byte {
	return c.op
}

// Data 返回推送数据命令携带的字节。对操作码命令返回 nil。
// 调用者不得修改返回的切片。
func (c Command) Data() []byte {
	return c.data
}

// Equal 返回两条命令是否完全相同。
func (c Command) Equal(other Command) bool {
	if c.push != other.push {
		return false
	}
	if c.push {
		return bytes.Equal(c.data, other.data)
	}
	return c.op == other.op
}

// String 返回命令的非紧凑反汇编。
func (c Command) String() string {
	var buf strings.Builder
	disasmCommand(&buf, c, standardNames{}, false)
	return buf.String()
}

// Script 拥有一个有序的命令序列，顺序即执行顺序。
type Script struct {
	cmds []Command
}

// NewScript 使用给定的命令构造脚本。
func NewScript(cmds ...Command) *Script {
	s := &Script{cmds: make([]Command, len(cmds))}
	copy(s.cmds, cmds)
	return s
}

// Commands 返回脚本命令序列的副本。
func (s *Script) Commands() []Command {
	cmds := make([]Command, len(s.cmds))
	copy(cmds, s.cmds)
	return cmds
}

// Len 返回脚本中命令的数量。
func (s *Script) Len() int {
	return len(s.cmds)
}

// Concat 按顺序拼接两个脚本的命令序列，返回一个新脚本。
// 常用于把解锁脚本与锁定脚本组合成一次完整的执行。
func (s *Script) Concat(other *Script) *Script {
	cmds := make([]Command, 0, len(s.cmds)+len(other.cmds))
	cmds = append(cmds, s.cmds...)
	cmds = append(cmds, other.cmds...)
	return &Script{cmds: cmds}
}

// Equal 返回两个脚本的命令序列是否完全相同。
func (s *Script) Equal(other *Script) bool {
	if len(s.cmds) != len(other.cmds) {
		return false
	}
	for i := range s.cmds {
		if !s.cmds[i].Equal(other.cmds[i]) {
			return false
		}
	}
	return true
}

// String 将脚本格式化为一行：操作码使用名称，推送数据使用十六进制。
func (s *Script) String() string {
	return s.Disasm(standardNames{}, false)
}

// Disasm 使用给定的操作码名称表反汇编脚本。
// compact 为 true 时小整数操作码以数值显示。
func (s *Script) Disasm(names OpcodeNamer, compact bool) string {
	var buf strings.Builder
	for i, cmd := range s.cmds {
		if i > 0 {
			buf.WriteByte(' ')
		}
		disasmCommand(&buf, cmd, names, compact)
	}
	return buf.String()
}

// ParseScript 从 r 中精确读取 length 个字节并将其解析为命令序列。
//
// 取值 1-75 的字节为直接推送，76 (OP_PUSHDATA1) 后跟 1 字节小端长度，
// 77 (OP_PUSHDATA2) 后跟 2 字节小端长度，其余取值均为单字节操作码。
// 消耗的字节数必须与 length 完全相等，否则返回 ErrTruncatedScript；
// 读取推送数据时越过输入末尾返回 ErrUnexpectedEOF。
func ParseScript(length int, r io.Reader) (*Script, error) {
	var cmds []Command
	var count int
	var b [2]byte
	for count < length {
		if err := readFull(r, b[:1]); err != nil {
			return nil, err
		}
		count++

		current := b[0]
		var dataLen int
		switch {
		case current >= OP_DATA_1 && current <= OP_DATA_75:
			dataLen = int(current)

		case current == OP_PUSHDATA1:
			if err := readFull(r, b[:1]); err != nil {
				return nil, err
			}
			dataLen = int(b[0])
			count++

		case current == OP_PUSHDATA2:
			if err := readFull(r, b[:2]); err != nil {
				return nil, err
			}
			dataLen = int(binary.LittleEndian.Uint16(b[:2]))
			count += 2

		default:
			cmds = append(cmds, NewOpcode(current))
			continue
		}

		if dataLen > MaxScriptElementSize {
			str := fmt.Sprintf("push of %d bytes at offset %d exceeds the "+
				"max allowed size of %d", dataLen, count, MaxScriptElementSize)
			return nil, scriptError(ErrPushDataTooLong, str)
		}

		data := make([]byte, dataLen)
		if err := readFull(r, data); err != nil {
			return nil, err
		}
		cmds = append(cmds, Command{data: data, push: true})
		count += dataLen
	}

	if count != length {
		str := fmt.Sprintf("parsing script failed: consumed %d bytes, "+
			"declared length is %d", count, length)
		return nil, scriptError(ErrTruncatedScript, str)
	}

	return &Script{cmds: cmds}, nil
}

// ParseScriptBytes 将整个字节切片解析为脚本，长度即切片长度。
func ParseScriptBytes(script []byte) (*Script, error) {
	return ParseScript(len(script), bytes.NewReader(script))
}

// ParseFramedScript 先读取变长整数长度前缀，再解析相应长度的脚本。
// 它是 Serialize 的逆操作。
func ParseFramedScript(r io.Reader) (*Script, error) {
	length, err := ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	if length > uint64(maxFramedScriptLen) {
		str := fmt.Sprintf("declared script length %d is too large", length)
		return nil, scriptError(ErrTruncatedScript, str)
	}
	return ParseScript(int(length), r)
}

// ParseFramedScriptBytes 解析带长度前缀的脚本，要求切片被完整消耗。
func ParseFramedScriptBytes(framed []byte) (*Script, error) {
	length, n, err := decodeVarIntBytes(framed)
	if err != nil {
		return nil, err
	}
	rest := framed[n:]
	if length != uint64(len(rest)) {
		str := fmt.Sprintf("framed script declares %d bytes, %d present",
			length, len(rest))
		if length > uint64(len(rest)) {
			return nil, scriptError(ErrUnexpectedEOF, str)
		}
		return nil, scriptError(ErrTruncatedScript, str)
	}
	return ParseScriptBytes(rest)
}

// maxFramedScriptLen 限制长度前缀，防止在 32 位平台上溢出 int。
const maxFramedScriptLen = 1<<31 - 1

// readFull 从 r 读满 buf，输入提前结束时返回 ErrUnexpectedEOF。
func readFull(r io.Reader, buf []byte) error {
	if _, err := io.ReadFull(r, buf); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return scriptError(ErrUnexpectedEOF, fmt.Sprintf("unexpected "+
				"end of input reading %d bytes", len(buf)))
		}
		return err
	}
	return nil
}

// RawSerialize 返回不带长度前缀的脚本字节码。
//
// 长度不超过 75 的推送数据以 1 字节长度直接推送，76-255 使用 OP_PUSHDATA1，
// 256-520 使用 OP_PUSHDATA2，超过 520 返回 ErrPushDataTooLong。
// 空推送数据被编码为单字节 0x00，解析后即为 OP_0。
func (s *Script) RawSerialize() ([]byte, error) {
	var buf bytes.Buffer
	for i, cmd := range s.cmds {
		if !cmd.push {
			buf.WriteByte(cmd.op)
			continue
		}

		dataLen := len(cmd.data)
		switch {
		case dataLen <= MaxDirectPushSize:
			buf.WriteByte(byte(dataLen))

		case dataLen <= maxPushData1Size:
			buf.WriteByte(OP_PUSHDATA1)
			buf.WriteByte(byte(dataLen))

		case dataLen <= MaxScriptElementSize:
			var lenBytes [2]byte
			binary.LittleEndian.PutUint16(lenBytes[:], uint16(dataLen))
			buf.WriteByte(OP_PUSHDATA2)
			buf.Write(lenBytes[:])

		default:
			str := fmt.Sprintf("command %d pushes %d bytes which exceeds the "+
				"max allowed size of %d", i, dataLen, MaxScriptElementSize)
			return nil, scriptError(ErrPushDataTooLong, str)
		}
		buf.Write(cmd.data)
	}
	return buf.Bytes(), nil
}

// Serialize 返回带变长整数长度前缀的脚本字节码。
func (s *Script) Serialize() ([]byte, error) {
	raw, err := s.RawSerialize()
	if err != nil {
		return nil, err
	}
	framed := EncodeVarInt(uint64(len(raw)))
	return append(framed, raw...), nil
}

// IsSmallInt 返回操作码是否被视为小整数，即 OP_0 或 OP_1 到 OP_16。
func IsSmallInt(op byte) bool {
	return op == OP_0 || (op >= OP_1 && op <= OP_16)
}

// AsSmallInt 以整数形式返回传递的操作码，根据 IsSmallInt()，该操作码必须为 true。
func AsSmallInt(op byte) int {
	if op == OP_0 {
		return 0
	}

	return int(op - (OP_1 - 1))
}
