// 定义了脚本解码、执行和见证分类过程中可能遇到的错误类型。

package txscript

import (
	"errors"
	"fmt"
)

// ErrorCode 标识一种脚本错误。
type ErrorCode int

// 这些常量用于标识特定的错误。
const (
	// ErrInternal 在内部代码的一致性检查失败时返回。
	ErrInternal ErrorCode = iota

	// ---------------------------------------
	// 与脚本编解码相关的失败。
	// ---------------------------------------

	// ErrTruncatedScript 在解析消耗的字节数与声明的脚本长度不完全相等时返回。
	ErrTruncatedScript

	// ErrUnexpectedEOF 在读取推送数据时超出了剩余缓冲区时返回。
	ErrUnexpectedEOF

	// ErrPushDataTooLong 在序列化长度超过 MaxScriptElementSize 的推送数据时返回。
	ErrPushDataTooLong

	// ErrValueTooLarge 在要编码的变长整数超出 64 位可表示范围时返回。
	ErrValueTooLarge

	// ErrNonCanonicalVarInt 在读取到非最短形式编码的变长整数时返回。
	ErrNonCanonicalVarInt

	// ---------------------------------------
	// 与操作码分派相关的失败。
	// ---------------------------------------

	// ErrUnknownOpcode 在操作码表中没有可执行映射的操作码被执行时返回。
	ErrUnknownOpcode

	// ---------------------------------------
	// 与见证分类相关的失败。
	// ---------------------------------------

	// ErrMalformedControlBlock 在控制块去掉首字节后的长度不是 32 的倍数时返回。
	ErrMalformedControlBlock

	// ErrEmptyWitness 在剥离附件后见证为空时返回。
	ErrEmptyWitness

	// ErrInvalidWitnessHex 在见证元素不是合法的十六进制字符串时返回。
	ErrInvalidWitnessHex

	// ErrTaprootMerkleProofInvalid 在由控制块重建的输出密钥与见证程序不一致时返回。
	ErrTaprootMerkleProofInvalid

	// ErrTaprootOutputKeyParityMismatch 在控制块记录的奇偶位与重建的输出密钥不一致时返回。
	ErrTaprootOutputKeyParityMismatch

	// ---------------------------------------
	// 操作码执行失败。
	// ---------------------------------------

	// ErrStackUnderflow 在操作码需要的栈元素多于栈中现有元素时返回。
	ErrStackUnderflow

	// ErrInvalidStackOperation 在栈操作的参数超出可接受范围时返回。
	ErrInvalidStackOperation

	// ErrNumberTooBig 在栈元素作为数字解释时超过允许的长度时返回。
	ErrNumberTooBig

	// ErrVerify 在 OP_VERIFY 遇到栈顶为假时返回。
	ErrVerify

	// ErrEqualVerify 在 OP_EQUALVERIFY 比较失败时返回。
	ErrEqualVerify

	// ErrNumEqualVerify 在 OP_NUMEQUALVERIFY 比较失败时返回。
	ErrNumEqualVerify

	// ErrCheckSigVerify 在 OP_CHECKSIGVERIFY 签名校验失败时返回。
	ErrCheckSigVerify

	// ErrCheckMultiSigVerify 在 OP_CHECKMULTISIGVERIFY 签名校验失败时返回。
	ErrCheckMultiSigVerify

	// ErrEarlyReturn 在执行 OP_RETURN 时返回。
	ErrEarlyReturn

	// ErrUnbalancedConditional 在条件分支没有匹配的 OP_ENDIF，
	// 或者直接执行到 OP_ELSE/OP_ENDIF 时返回。
	ErrUnbalancedConditional

	// ErrInvalidSignature 在签名无法解析时返回。
	ErrInvalidSignature

	// ErrInvalidPubKey 在公钥无法解析时返回。
	ErrInvalidPubKey

	// numErrorCodes 是错误代码的最大值。
	// 这用于测试时确保每个错误代码都有一个字符串表示。
	numErrorCodes
)

// errorCodeStrings 将错误代码值映射回其常量名称，以便打印输出。
var errorCodeStrings = map[ErrorCode]string{
	ErrInternal:              "ErrInternal",
	ErrTruncatedScript:       "ErrTruncatedScript",
	ErrUnexpectedEOF:         "ErrUnexpectedEOF",
	ErrPushDataTooLong:       "ErrPushDataTooLong",
	ErrValueTooLarge:         "ErrValueTooLarge",
	ErrNonCanonicalVarInt:    "ErrNonCanonicalVarInt",
	ErrUnknownOpcode:         "ErrUnknownOpcode",
	ErrMalformedControlBlock: "ErrMalformedControlBlock",
	ErrEmptyWitness:          "ErrEmptyWitness",
	ErrInvalidWitnessHex:     "ErrInvalidWitnessHex",

	ErrTaprootMerkleProofInvalid:      "ErrTaprootMerkleProofInvalid",
	ErrTaprootOutputKeyParityMismatch: "ErrTaprootOutputKeyParityMismatch",

	ErrStackUnderflow:        "ErrStackUnderflow",
	ErrInvalidStackOperation: "ErrInvalidStackOperation",
	ErrNumberTooBig:          "ErrNumberTooBig",
	ErrVerify:                "ErrVerify",
	ErrEqualVerify:           "ErrEqualVerify",
	ErrNumEqualVerify:        "ErrNumEqualVerify",
	ErrCheckSigVerify:        "ErrCheckSigVerify",
	ErrCheckMultiSigVerify:   "ErrCheckMultiSigVerify",
	ErrEarlyReturn:           "ErrEarlyReturn",
	ErrUnbalancedConditional: "ErrUnbalancedConditional",
	ErrInvalidSignature:      "ErrInvalidSignature",
	ErrInvalidPubKey:         "ErrInvalidPubKey",
}

// String 将 ErrorCode 作为人类可读的名称返回。
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// Error 标识与脚本相关的错误。
// 调用者可以通过 ErrorCode 以编程方式确定具体错误，同时 Description 提供上下文信息。
type Error struct {
	ErrorCode   ErrorCode
	Description string
}

// Error 满足错误接口并打印人类可读的错误。
func (e Error) Error() string {
	return e.Description
}

// scriptError 根据给定的错误代码和描述创建一个 Error。
func scriptError(c ErrorCode, desc string) Error {
	return Error{ErrorCode: c, Description: desc}
}

// IsErrorCode 返回所提供的错误是否为具有所提供错误代码的脚本错误。
func IsErrorCode(err error, c ErrorCode) bool {
	var serr Error
	return errors.As(err, &serr) && serr.ErrorCode == c
}
