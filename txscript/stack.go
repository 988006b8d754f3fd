// 实现了脚本执行期间使用的数据栈，主栈与备用栈都使用该类型。

package txscript

import (
	"encoding/hex"
	"fmt"
)

// asBool 获取字节数组的布尔值。
// 全零字节（包括负零 0x80 结尾）为假，其余为真。
func asBool(t []byte) bool {
	for i := range t {
		if t[i] != 0 {
			// Negative 0 is also considered false.
			if i == len(t)-1 && t[i] == 0x80 {
				return false
			}
			return true
		}
	}
	return false
}

// fromBool 将布尔值转换为适当的字节数组。
func fromBool(v bool) []byte {
	if v {
		return []byte{1}
	}
	return nil
}

// Stack 表示比特币脚本使用的不可变对象的栈。
// 栈中的对象可能被共享，修改前必须先深拷贝。
// 零值即可使用，仅在一次 Evaluate 调用内有效。
type Stack struct {
	stk [][]byte
}

// Depth 返回栈中元素的数量。
func (s *Stack) Depth() int {
	return len(s.stk)
}

// PushByteArray 将给定的字节数组压入栈顶。
//
// Stack transformation: [... x1 x2] -> [... x1 x2 data]
func (s *Stack) PushByteArray(so []byte) {
	s.stk = append(s.stk, so)
}

// PushInt 将整数转换为脚本数字编码后压入栈顶。
//
// Stack transformation: [... x1 x2] -> [... x1 x2 int]
func (s *Stack) PushInt(val int64) {
	s.PushByteArray(scriptNum(val).Bytes())
}

// PushBool 将布尔值转换为字节数组后压入栈顶。
//
// Stack transformation: [... x1 x2] -> [... x1 x2 bool]
func (s *Stack) PushBool(val bool) {
	s.PushByteArray(fromBool(val))
}

// PopByteArray 弹出栈顶元素并返回。
//
// Stack transformation: [... x1 x2 x3] -> [... x1 x2]
func (s *Stack) PopByteArray() ([]byte, error) {
	return s.nipN(0)
}

// PopInt 弹出栈顶元素，将其解释为脚本数字后返回。
//
// Stack transformation: [... x1 x2 x3] -> [... x1 x2]
func (s *Stack) PopInt() (int64, error) {
	so, err := s.PopByteArray()
	if err != nil {
		return 0, err
	}

	n, err := makeScriptNum(so, defaultScriptNumLen)
	return int64(n), err
}

// PopBool 弹出栈顶元素，将其解释为布尔值后返回。
//
// Stack transformation: [... x1 x2 x3] -> [... x1 x2]
func (s *Stack) PopBool() (bool, error) {
	so, err := s.PopByteArray()
	if err != nil {
		return false, err
	}

	return asBool(so), nil
}

// PeekByteArray 返回从栈顶数起第 idx 个元素，不将其移除。
func (s *Stack) PeekByteArray(idx int) ([]byte, error) {
	sz := len(s.stk)
	if idx < 0 || idx >= sz {
		str := fmt.Sprintf("index %d is invalid for stack size %d", idx, sz)
		return nil, scriptError(ErrStackUnderflow, str)
	}

	return s.stk[sz-idx-1], nil
}

// PeekInt 返回从栈顶数起第 idx 个元素的脚本数字值。
func (s *Stack) PeekInt(idx int) (int64, error) {
	so, err := s.PeekByteArray(idx)
	if err != nil {
		return 0, err
	}

	n, err := makeScriptNum(so, defaultScriptNumLen)
	return int64(n), err
}

// PeekBool 返回从栈顶数起第 idx 个元素的布尔值。
func (s *Stack) PeekBool(idx int) (bool, error) {
	so, err := s.PeekByteArray(idx)
	if err != nil {
		return false, err
	}

	return asBool(so), nil
}

// nipN 是一个内部函数，用于移除从栈顶数起第 idx 个元素并返回。
//
// Stack transformation:
// nipN(0): [... x1 x2 x3] -> [... x1 x2]
// nipN(1): [... x1 x2 x3] -> [... x1 x3]
// nipN(2): [... x1 x2 x3] -> [... x2 x3]
func (s *Stack) nipN(idx int) ([]byte, error) {
	sz := len(s.stk)
	if idx < 0 || idx > sz-1 {
		str := fmt.Sprintf("index %d is invalid for stack size %d", idx, sz)
		return nil, scriptError(ErrStackUnderflow, str)
	}

	so := s.stk[sz-idx-1]
	if idx == 0 {
		s.stk = s.stk[:sz-1]
	} else if idx == sz-1 {
		s1 := make([][]byte, sz-1)
		copy(s1, s.stk[1:])
		s.stk = s1
	} else {
		s1 := s.stk[sz-idx : sz]
		s.stk = s.stk[:sz-idx-1]
		s.stk = append(s.stk, s1...)
	}
	return so, nil
}

// NipN 移除从栈顶数起第 idx 个元素。
//
// Stack transformation:
// NipN(0): [... x1 x2 x3] -> [... x1 x2]
// NipN(1): [... x1 x2 x3] -> [... x1 x3]
func (s *Stack) NipN(idx int) error {
	_, err := s.nipN(idx)
	return err
}

// Tuck 将栈顶元素复制并插入到倒数第二个元素之前。
//
// Stack transformation: [... x1 x2] -> [... x2 x1 x2]
func (s *Stack) Tuck() error {
	so2, err := s.PopByteArray()
	if err != nil {
		return err
	}
	so1, err := s.PopByteArray()
	if err != nil {
		return err
	}
	s.PushByteArray(so2)
	s.PushByteArray(so1)
	s.PushByteArray(so2)

	return nil
}

// DropN 移除栈顶的 n 个元素。
//
// Stack transformation:
// DropN(1): [... x1 x2] -> [... x1]
// DropN(2): [... x1 x2] -> [...]
func (s *Stack) DropN(n int) error {
	if n < 1 {
		str := fmt.Sprintf("attempt to drop %d items from stack", n)
		return scriptError(ErrInvalidStackOperation, str)
	}

	for ; n > 0; n-- {
		if _, err := s.PopByteArray(); err != nil {
			return err
		}
	}
	return nil
}

// DupN 复制栈顶的 n 个元素。
//
// Stack transformation:
// DupN(1): [... x1 x2] -> [... x1 x2 x2]
// DupN(2): [... x1 x2] -> [... x1 x2 x1 x2]
func (s *Stack) DupN(n int) error {
	if n < 1 {
		str := fmt.Sprintf("attempt to dup %d stack items", n)
		return scriptError(ErrInvalidStackOperation, str)
	}

	// Iteratively duplicate the value n-1 down the stack n times.
	// This leaves an in-order duplicate of the top n items on the stack.
	for i := n; i > 0; i-- {
		so, err := s.PeekByteArray(n - 1)
		if err != nil {
			return err
		}
		s.PushByteArray(so)
	}
	return nil
}

// RotN 将栈顶的 3n 个元素向左轮换 n 次。
//
// Stack transformation:
// RotN(1): [... x1 x2 x3] -> [... x2 x3 x1]
// RotN(2): [... x1 x2 x3 x4 x5 x6] -> [... x3 x4 x5 x6 x1 x2]
func (s *Stack) RotN(n int) error {
	if n < 1 {
		str := fmt.Sprintf("attempt to rotate %d stack items", n)
		return scriptError(ErrInvalidStackOperation, str)
	}

	// Nip the 3n-1th item from the stack to the top n times to rotate
	// them up to the head of the stack.
	entry := 3*n - 1
	for i := n; i > 0; i-- {
		so, err := s.nipN(entry)
		if err != nil {
			return err
		}

		s.PushByteArray(so)
	}
	return nil
}

// SwapN 将栈顶的 n 个元素与其下方的 n 个元素交换。
//
// Stack transformation:
// SwapN(1): [... x1 x2] -> [... x2 x1]
// SwapN(2): [... x1 x2 x3 x4] -> [... x3 x4 x1 x2]
func (s *Stack) SwapN(n int) error {
	if n < 1 {
		str := fmt.Sprintf("attempt to swap %d stack items", n)
		return scriptError(ErrInvalidStackOperation, str)
	}

	entry := 2*n - 1
	for i := n; i > 0; i-- {
		// Swap 2n-1th entry to top.
		so, err := s.nipN(entry)
		if err != nil {
			return err
		}

		s.PushByteArray(so)
	}
	return nil
}

// OverN 将栈顶 n 个元素之下的 n 个元素复制到栈顶。
//
// Stack transformation:
// OverN(1): [... x1 x2 x3] -> [... x1 x2 x3 x2]
// OverN(2): [... x1 x2 x3 x4] -> [... x1 x2 x3 x4 x1 x2]
func (s *Stack) OverN(n int) error {
	if n < 1 {
		str := fmt.Sprintf("attempt to perform over on %d stack items", n)
		return scriptError(ErrInvalidStackOperation, str)
	}

	// Copy 2n-1th entry to top of the stack.
	entry := 2*n - 1
	for ; n > 0; n-- {
		so, err := s.PeekByteArray(entry)
		if err != nil {
			return err
		}
		s.PushByteArray(so)
	}

	return nil
}

// PickN 将从栈顶数起第 n 个元素复制到栈顶。
//
// Stack transformation:
// PickN(0): [x1 x2 x3] -> [x1 x2 x3 x3]
// PickN(1): [x1 x2 x3] -> [x1 x2 x3 x2]
func (s *Stack) PickN(n int) error {
	so, err := s.PeekByteArray(n)
	if err != nil {
		return err
	}
	s.PushByteArray(so)

	return nil
}

// RollN 将从栈顶数起第 n 个元素移动到栈顶。
//
// Stack transformation:
// RollN(0): [x1 x2 x3] -> [x1 x2 x3]
// RollN(1): [x1 x2 x3] -> [x1 x3 x2]
// RollN(2): [x1 x2 x3] -> [x2 x3 x1]
func (s *Stack) RollN(n int) error {
	so, err := s.nipN(n)
	if err != nil {
		return err
	}

	s.PushByteArray(so)

	return nil
}

// Items 返回栈中元素的副本，从栈底到栈顶排列。
func (s *Stack) Items() [][]byte {
	items := make([][]byte, len(s.stk))
	copy(items, s.stk)
	return items
}

// String 以人类可读的格式返回栈，从栈底到栈顶每行一个元素。
func (s *Stack) String() string {
	var result string
	for _, stack := range s.stk {
		if len(stack) == 0 {
			result += "00000000  <empty>\n"
		}
		result += hex.Dump(stack)
	}

	return result
}
