// 包含测试数据栈功能的代码。

package txscript

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
)

// tstCheckScriptError 确保两个传递的错误的类型相同（要么都是 nil，要么都是 Error 类型），并且当不为 nil 时，它们的错误代码匹配。
func tstCheckScriptError(gotErr, wantErr error) error {
	if reflect.TypeOf(gotErr) != reflect.TypeOf(wantErr) {
		return fmt.Errorf("wrong error - got %T (%[1]v), want %T",
			gotErr, wantErr)
	}
	if gotErr == nil {
		return nil
	}

	werr, ok := wantErr.(Error)
	if !ok {
		return fmt.Errorf("unexpected test error type %T", wantErr)
	}

	gotErrorCode := gotErr.(Error).ErrorCode
	if gotErrorCode != werr.ErrorCode {
		return fmt.Errorf("mismatched error code - got %v (%v), want %v",
			gotErrorCode, gotErr, werr.ErrorCode)
	}

	return nil
}

// stackOf 返回按栈底到栈顶顺序包含给定元素的栈。
func stackOf(items ...[]byte) *Stack {
	var s Stack
	for _, item := range items {
		s.PushByteArray(item)
	}
	return &s
}

// TestStackTransformations 测试各个栈操作的变换结果与下溢错误。
func TestStackTransformations(t *testing.T) {
	t.Parallel()

	five := [][]byte{{1}, {2}, {3}, {4}, {5}}

	tests := []struct {
		name   string
		before [][]byte
		op     func(*Stack) error
		code   ErrorCode // 为 numErrorCodes 时表示没有错误
		after  [][]byte
	}{
		{"nip top", five, func(s *Stack) error { return s.NipN(0) },
			numErrorCodes, [][]byte{{1}, {2}, {3}, {4}}},
		{"nip middle", five, func(s *Stack) error { return s.NipN(2) },
			numErrorCodes, [][]byte{{1}, {2}, {4}, {5}}},
		{"nip bottom", five, func(s *Stack) error { return s.NipN(4) },
			numErrorCodes, [][]byte{{2}, {3}, {4}, {5}}},
		{"nip too far", five, func(s *Stack) error { return s.NipN(5) },
			ErrStackUnderflow, nil},
		{"tuck", [][]byte{{1}, {2}}, func(s *Stack) error { return s.Tuck() },
			numErrorCodes, [][]byte{{2}, {1}, {2}}},
		{"tuck underflow", [][]byte{{1}}, func(s *Stack) error { return s.Tuck() },
			ErrStackUnderflow, nil},
		{"drop 2", five, func(s *Stack) error { return s.DropN(2) },
			numErrorCodes, [][]byte{{1}, {2}, {3}}},
		{"drop all", five, func(s *Stack) error { return s.DropN(5) },
			numErrorCodes, [][]byte{}},
		{"drop too many", five, func(s *Stack) error { return s.DropN(6) },
			ErrStackUnderflow, nil},
		{"drop 0", five, func(s *Stack) error { return s.DropN(0) },
			ErrInvalidStackOperation, nil},
		{"dup 1", five, func(s *Stack) error { return s.DupN(1) },
			numErrorCodes, [][]byte{{1}, {2}, {3}, {4}, {5}, {5}}},
		{"dup 3", five, func(s *Stack) error { return s.DupN(3) },
			numErrorCodes, [][]byte{{1}, {2}, {3}, {4}, {5}, {3}, {4}, {5}}},
		{"dup underflow", [][]byte{{1}}, func(s *Stack) error { return s.DupN(2) },
			ErrStackUnderflow, nil},
		{"dup -1", five, func(s *Stack) error { return s.DupN(-1) },
			ErrInvalidStackOperation, nil},
		{"rot 1", five, func(s *Stack) error { return s.RotN(1) },
			numErrorCodes, [][]byte{{1}, {2}, {4}, {5}, {3}}},
		{"rot 2", [][]byte{{1}, {2}, {3}, {4}, {5}, {6}},
			func(s *Stack) error { return s.RotN(2) },
			numErrorCodes, [][]byte{{3}, {4}, {5}, {6}, {1}, {2}}},
		{"rot underflow", [][]byte{{1}, {2}}, func(s *Stack) error { return s.RotN(1) },
			ErrStackUnderflow, nil},
		{"rot 0", five, func(s *Stack) error { return s.RotN(0) },
			ErrInvalidStackOperation, nil},
		{"swap 1", five, func(s *Stack) error { return s.SwapN(1) },
			numErrorCodes, [][]byte{{1}, {2}, {3}, {5}, {4}}},
		{"swap 2", five, func(s *Stack) error { return s.SwapN(2) },
			numErrorCodes, [][]byte{{1}, {4}, {5}, {2}, {3}}},
		{"swap underflow", [][]byte{{1}}, func(s *Stack) error { return s.SwapN(1) },
			ErrStackUnderflow, nil},
		{"over 1", five, func(s *Stack) error { return s.OverN(1) },
			numErrorCodes, [][]byte{{1}, {2}, {3}, {4}, {5}, {4}}},
		{"over 2", five, func(s *Stack) error { return s.OverN(2) },
			numErrorCodes, [][]byte{{1}, {2}, {3}, {4}, {5}, {2}, {3}}},
		{"over underflow", [][]byte{{1}, {2}, {3}}, func(s *Stack) error { return s.OverN(2) },
			ErrStackUnderflow, nil},
		{"pick 0", five, func(s *Stack) error { return s.PickN(0) },
			numErrorCodes, [][]byte{{1}, {2}, {3}, {4}, {5}, {5}}},
		{"pick 4", five, func(s *Stack) error { return s.PickN(4) },
			numErrorCodes, [][]byte{{1}, {2}, {3}, {4}, {5}, {1}}},
		{"pick underflow", five, func(s *Stack) error { return s.PickN(5) },
			ErrStackUnderflow, nil},
		{"roll 0", five, func(s *Stack) error { return s.RollN(0) },
			numErrorCodes, five},
		{"roll 4", five, func(s *Stack) error { return s.RollN(4) },
			numErrorCodes, [][]byte{{2}, {3}, {4}, {5}, {1}}},
		{"roll underflow", five, func(s *Stack) error { return s.RollN(-1) },
			ErrStackUnderflow, nil},
	}

	for _, test := range tests {
		s := stackOf(test.before...)
		err := test.op(s)
		if test.code != numErrorCodes {
			require.True(t, IsErrorCode(err, test.code), "%s: got %v",
				test.name, err)
			continue
		}
		require.NoError(t, err, test.name)
		require.Equal(t, test.after, s.Items(), test.name)
		require.Equal(t, len(test.after), s.Depth(), test.name)
	}
}

// TestStackValues 测试整数与布尔值的压栈、弹出与查看。
func TestStackValues(t *testing.T) {
	t.Parallel()

	var s Stack
	s.PushInt(0)
	s.PushInt(-1)
	s.PushInt(1 << 20)
	s.PushBool(true)
	s.PushBool(false)

	require.Equal(t, [][]byte{nil, {0x81}, {0x00, 0x00, 0x10}, {1}, nil},
		s.Items())

	v, err := s.PeekInt(2)
	require.NoError(t, err)
	require.Equal(t, int64(1<<20), v)

	b, err := s.PeekBool(1)
	require.NoError(t, err)
	require.True(t, b)

	b, err = s.PopBool()
	require.NoError(t, err)
	require.False(t, b)

	_, err = s.PopBool()
	require.NoError(t, err)

	v, err = s.PopInt()
	require.NoError(t, err)
	require.Equal(t, int64(1<<20), v)

	v, err = s.PopInt()
	require.NoError(t, err)
	require.Equal(t, int64(-1), v)

	v, err = s.PopInt()
	require.NoError(t, err)
	require.Equal(t, int64(0), v)

	_, err = s.PopInt()
	require.True(t, IsErrorCode(err, ErrStackUnderflow))
	_, err = s.PeekByteArray(0)
	require.True(t, IsErrorCode(err, ErrStackUnderflow))

	// 超过四字节的数字无法作为整数使用
	s.PushByteArray([]byte{1, 2, 3, 4, 5})
	_, err = s.PeekInt(0)
	require.True(t, IsErrorCode(err, ErrNumberTooBig))
	_, err = s.PopInt()
	require.True(t, IsErrorCode(err, ErrNumberTooBig))
	require.Zero(t, s.Depth())
}

// TestAsBool 测试字节数组的真值判断，包括负零。
func TestAsBool(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   []byte
		want bool
	}{
		{nil, false},
		{[]byte{}, false},
		{[]byte{0x00}, false},
		{[]byte{0x00, 0x00}, false},
		{[]byte{0x80}, false},
		{[]byte{0x00, 0x80}, false},
		{[]byte{0x80, 0x00}, true},
		{[]byte{0x01}, true},
		{[]byte{0x00, 0x01}, true},
	}
	for _, test := range tests {
		require.Equal(t, test.want, asBool(test.in), "%x", test.in)
	}
}

// TestStackString 测试栈的可读格式。
func TestStackString(t *testing.T) {
	t.Parallel()

	s := stackOf(nil, []byte{0xab})
	require.Equal(t, "00000000  <empty>\n"+
		"00000000  ab                                                |.|\n",
		s.String())
}
