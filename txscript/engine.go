// 包含脚本执行引擎，负责按顺序执行命令序列并给出结果。

package txscript

import (
	"fmt"
)

// EvalResult 是一次脚本执行的结果。
// 脚本无效是正常的执行结果而不是错误，失败的操作码与原因记录在这里供诊断使用。
type EvalResult struct {
	// Valid 表示脚本执行成功且栈顶元素为真。
	Valid bool

	// Failed 表示执行因某个操作码失败而提前终止。
	Failed bool

	// FailedOpcode 是失败的操作码，仅在 Failed 为 true 时有意义。
	FailedOpcode byte

	// Step 是失败命令的执行序号（从 0 开始，按实际执行顺序计数）。
	Step int

	// Err 是操作码返回的失败原因。
	Err error

	// Stack 是执行结束时的主栈，从栈底到栈顶排列。
	Stack [][]byte
}

// String 返回结果的简短描述。
func (r *EvalResult) String() string {
	switch {
	case r.Failed:
		return fmt.Sprintf("bad op: %s at step %d: %v",
			OpcodeName(r.FailedOpcode), r.Step, r.Err)
	case r.Valid:
		return "valid"
	}
	return "invalid"
}

// Engine 是脚本解释器。它不持有执行状态，可以被多个 goroutine 同时使用。
type Engine struct {
	table OpcodeTable
}

// NewEngine 返回一个使用给定操作码表的解释器。
func NewEngine(table OpcodeTable) *Engine {
	return &Engine{table: table}
}

// Execute 从左到右单次遍历执行脚本，sigHash 作为签名类操作码的辅助输入。
//
// 推送数据直接压入主栈；操作码按其类别以不同的参数调用：
// 条件类接收尚未执行的命令序列，备用栈类接收备用栈，签名类接收 sigHash。
// 任一操作码失败时立即终止并在结果中记录失败的操作码。
// 全部命令执行完毕后，主栈为空或栈顶为空字节串则脚本无效。
//
// 操作码表中没有可执行映射的操作码属于输入格式错误，以 ErrUnknownOpcode 返回。
func (vm *Engine) Execute(script *Script, sigHash []byte) (*EvalResult, error) {
	var stack, altStack Stack
	pending := Pending{cmds: script.Commands()}

	for step := 0; ; step++ {
		cmd, ok := pending.next()
		if !ok {
			break
		}

		if cmd.IsPushData() {
			stack.PushByteArray(cmd.Data())
			continue
		}

		op := cmd.Opcode()
		operation, ok := vm.table.Lookup(op)
		if !ok || operation == nil {
			str := fmt.Sprintf("opcode %s (%d) at step %d has no executable "+
				"mapping", vm.opcodeName(op), op, step)
			return nil, scriptError(ErrUnknownOpcode, str)
		}

		var err error
		switch fn := operation.(type) {
		case ControlFlowOp:
			err = fn(&stack, &pending)
		case AltStackOp:
			err = fn(&stack, &altStack)
		case CheckSigOp:
			err = fn(&stack, sigHash)
		case PlainOp:
			err = fn(&stack)
		default:
			str := fmt.Sprintf("opcode %s has unsupported operation type %T",
				vm.opcodeName(op), operation)
			return nil, scriptError(ErrInternal, str)
		}
		if err != nil {
			return &EvalResult{
				Failed:       true,
				FailedOpcode: op,
				Step:         step,
				Err:          err,
				Stack:        stack.Items(),
			}, nil
		}
	}

	result := &EvalResult{Stack: stack.Items()}
	top, err := stack.PopByteArray()
	if err != nil {
		return result, nil
	}
	result.Valid = len(top) != 0
	return result, nil
}

// opcodeName 返回操作码表中的名称，缺失时使用 OP_[n] 形式。
func (vm *Engine) opcodeName(op byte) string {
	if name := vm.table.Name(op); name != "" {
		return name
	}
	return fmt.Sprintf("OP_[%d]", op)
}

// Evaluate 使用标准操作码表执行脚本，仅返回脚本是否有效。
// 包含未知操作码的脚本同样视为无效。
func Evaluate(script *Script, sigHash []byte) bool {
	result, err := NewEngine(standardTable).Execute(script, sigHash)
	if err != nil {
		return false
	}
	return result.Valid
}
