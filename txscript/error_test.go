// 包含测试 error.go 中定义的错误类型的代码。
package txscript

import (
	"fmt"
	"testing"
)

// TestErrorCodeStringer 测试 ErrorCode 类型的字符串化输出。
func TestErrorCodeStringer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   ErrorCode
		want string
	}{
		{ErrInternal, "ErrInternal"},
		{ErrTruncatedScript, "ErrTruncatedScript"},
		{ErrUnexpectedEOF, "ErrUnexpectedEOF"},
		{ErrPushDataTooLong, "ErrPushDataTooLong"},
		{ErrValueTooLarge, "ErrValueTooLarge"},
		{ErrNonCanonicalVarInt, "ErrNonCanonicalVarInt"},
		{ErrUnknownOpcode, "ErrUnknownOpcode"},
		{ErrMalformedControlBlock, "ErrMalformedControlBlock"},
		{ErrEmptyWitness, "ErrEmptyWitness"},
		{ErrInvalidWitnessHex, "ErrInvalidWitnessHex"},
		{ErrTaprootMerkleProofInvalid, "ErrTaprootMerkleProofInvalid"},
		{ErrTaprootOutputKeyParityMismatch, "ErrTaprootOutputKeyParityMismatch"},
		{ErrStackUnderflow, "ErrStackUnderflow"},
		{ErrInvalidStackOperation, "ErrInvalidStackOperation"},
		{ErrNumberTooBig, "ErrNumberTooBig"},
		{ErrVerify, "ErrVerify"},
		{ErrEqualVerify, "ErrEqualVerify"},
		{ErrNumEqualVerify, "ErrNumEqualVerify"},
		{ErrCheckSigVerify, "ErrCheckSigVerify"},
		{ErrCheckMultiSigVerify, "ErrCheckMultiSigVerify"},
		{ErrEarlyReturn, "ErrEarlyReturn"},
		{ErrUnbalancedConditional, "ErrUnbalancedConditional"},
		{ErrInvalidSignature, "ErrInvalidSignature"},
		{ErrInvalidPubKey, "ErrInvalidPubKey"},
		{0xffff, "Unknown ErrorCode (65535)"},
	}

	// 检测额外的错误代码，这些错误代码没有添加到上面的测试中。
	if len(tests)-1 != int(numErrorCodes) {
		t.Errorf("It appears an error code was added without adding an " +
			"associated stringer test")
	}

	for i, test := range tests {
		result := test.in.String()
		if result != test.want {
			t.Errorf("String #%d\n got: %s want: %s", i, result,
				test.want)
			continue
		}
	}
}

// TestError 测试错误输出与错误代码判断。
func TestError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   Error
		want string
	}{
		{
			Error{Description: "some error"},
			"some error",
		},
		{
			Error{Description: "human-readable error"},
			"human-readable error",
		},
	}

	for i, test := range tests {
		result := test.in.Error()
		if result != test.want {
			t.Errorf("Error #%d\n got: %s want: %s", i, result,
				test.want)
			continue
		}
	}

	err := fmt.Errorf("parse leaf: %w", scriptError(ErrUnexpectedEOF, "eof"))
	if !IsErrorCode(err, ErrUnexpectedEOF) {
		t.Errorf("IsErrorCode: wrapped error code not detected")
	}
	if IsErrorCode(err, ErrTruncatedScript) {
		t.Errorf("IsErrorCode: unexpected match for %v", ErrTruncatedScript)
	}
	if IsErrorCode(fmt.Errorf("plain"), ErrInternal) {
		t.Errorf("IsErrorCode: plain error matched")
	}
}
