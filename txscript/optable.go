// 定义了操作码表的契约：按操作码取值查找显示名称与可执行操作。

package txscript

import "fmt"

// OpClass 是操作码的调用约定类别。
type OpClass uint8

const (
	// ClassPlain 类操作仅接收主栈。
	ClassPlain OpClass = iota

	// ClassControlFlow 类操作接收主栈以及尚未执行的命令序列，用于跳过未选中的分支。
	ClassControlFlow

	// ClassAltStack 类操作接收主栈与备用栈。
	ClassAltStack

	// ClassCheckSig 类操作接收主栈与签名哈希。
	ClassCheckSig
)

var opClassStrings = map[OpClass]string{
	ClassPlain:       "Plain",
	ClassControlFlow: "ControlFlow",
	ClassAltStack:    "AltStack",
	ClassCheckSig:    "CheckSig",
}

// String 返回类别名称。
func (c OpClass) String() string {
	if s, ok := opClassStrings[c]; ok {
		return s
	}
	return fmt.Sprintf("OpClass(%d)", uint8(c))
}

// Operation 是一个可执行的操作码实现。
// 只有本包定义的四种函数类型实现了该接口，引擎按具体类型分派。
type Operation interface {
	Class() OpClass
	operation()
}

// PlainOp 仅操作主栈。
type PlainOp func(stack *Stack) error

// ControlFlowOp 可以改写尚未执行的命令序列。
type ControlFlowOp func(stack *Stack, pending *Pending) error

// AltStackOp 在主栈与备用栈之间移动数据。
type AltStackOp func(stack, altStack *Stack) error

// CheckSigOp 使用签名哈希校验签名。
type CheckSigOp func(stack *Stack, sigHash []byte) error

func (PlainOp) Class() OpClass       { return ClassPlain }
func (ControlFlowOp) Class() OpClass { return ClassControlFlow }
func (AltStackOp) Class() OpClass    { return ClassAltStack }
func (CheckSigOp) Class() OpClass    { return ClassCheckSig }

func (PlainOp) operation()       {}
func (ControlFlowOp) operation() {}
func (AltStackOp) operation()    {}
func (CheckSigOp) operation()    {}

// OpcodeNamer 提供操作码的显示名称。
type OpcodeNamer interface {
	// Name 返回操作码的名称，未知时返回空串。
	Name(op byte) string
}

// OpcodeTable 是脚本解释器依赖的操作码表。
// 名称映射覆盖全部 256 个取值，可执行映射可以是部分的；
// Lookup 返回 false 的操作码在执行时被视为致命的未知操作码。
type OpcodeTable interface {
	OpcodeNamer

	// Lookup 返回操作码对应的可执行操作。
	Lookup(op byte) (Operation, bool)
}

// standardNames 使用本包定义的操作码名称。
type standardNames struct{}

// Name 实现 OpcodeNamer 接口。
func (standardNames) Name(op byte) string {
	return opcodeNames[op]
}

// MapTable 是基于映射的操作码表，适合调用者注入自定义的操作码语义。
// 名称使用本包的标准名称。
type MapTable map[byte]Operation

// Name 实现 OpcodeNamer 接口。
func (t MapTable) Name(op byte) string {
	return opcodeNames[op]
}

// Lookup 实现 OpcodeTable 接口。
func (t MapTable) Lookup(op byte) (Operation, bool) {
	operation, ok := t[op]
	return operation, ok
}

// Pending 是解释器中尚未执行的命令序列。
// 条件类操作通过它查看并改写后续命令，从而跳过未选中的分支。
type Pending struct {
	cmds []Command
}

// Len 返回剩余命令的数量。
func (p *Pending) Len() int {
	return len(p.cmds)
}

// Remaining 返回剩余命令。调用者不得修改返回的切片。
func (p *Pending) Remaining() []Command {
	return p.cmds
}

// Replace 用给定的命令序列替换剩余命令。
func (p *Pending) Replace(cmds []Command) {
	p.cmds = cmds
}

// next 取出并返回下一条命令。
func (p *Pending) next() (Command, bool) {
	if len(p.cmds) == 0 {
		return Command{}, false
	}
	cmd := p.cmds[0]
	p.cmds = p.cmds[1:]
	return cmd, true
}
