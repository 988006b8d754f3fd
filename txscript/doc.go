// 通常包含包的文档说明，描述 txscript 包的目的和总体用途

/*
txscript 包实现了比特币脚本的解码、执行以及 Taproot 见证的花费路径分类。

比特币使用的脚本语言的完整描述可以在 https://en.bitcoin.it/wiki/Script 找到。
以下仅作为快速概述，提供有关如何使用该包的信息。

# 脚本编解码

脚本是一个有序的命令序列，每条命令要么是一个单字节操作码，要么是一段推送数据。
ParseScript 精确读取给定长度的字节并解析出命令序列，消耗的字节数必须与声明的长度完全相等。
Serialize 按长度选择直接推送、OP_PUSHDATA1 或 OP_PUSHDATA2 编码，并在最前面加上变长整数长度前缀。

# 脚本执行

Engine 使用注入的 OpcodeTable 执行脚本。操作码按调用约定分为四类：
仅操作主栈的 PlainOp，可以改写尚未执行的命令的 ControlFlowOp，
在主栈与备用栈之间移动数据的 AltStackOp，以及接收签名哈希的 CheckSigOp。
StandardTable 提供了一个可用的默认操作码表。

# 见证分类

ClassifyWitness 剥离可选的附件后，将见证分类为无效、密钥路径或脚本路径花费。
对于脚本路径花费，它解码叶子脚本统计 OP_CHECKSIGADD 的数量并读取其后的阈值，
同时从控制块中得到被揭示叶子在脚本树中的深度。分类从不因为格式错误的记录而失败。

# 错误

该包返回的错误类型为 txscript.Error。
这允许调用者通过检查断言的 txscript.Error 类型的 ErrorCode 字段以编程方式确定特定错误，同时仍然提供带有上下文信息的丰富错误消息。
还提供了一个名为 IsErrorCode 的便捷函数，允许调用者轻松检查特定的错误代码。
有关完整列表，请参阅包文档中的 ErrorCode。
*/
package txscript

/**

doc.go					包的文档说明。
engine.go				脚本执行引擎，按顺序执行命令序列并给出结果。
engine_test.go			脚本执行引擎的单元测试。
error.go				脚本处理过程中可能遇到的错误类型。
error_test.go			错误类型的测试。
example_test.go			包使用示例。
opcode.go				操作码常量、名称以及反汇编。
ops.go					标准操作码表的实现。
optable.go				操作码表的契约与操作码调用约定。
script.go				命令、脚本以及脚本字节码的编解码。
script_test.go			脚本编解码的测试。
scriptnum.go			脚本数字的编解码。
scriptnum_test.go		脚本数字的测试。
stack.go				执行期间使用的数据栈。
stack_test.go			数据栈的测试。
taproot.go				Taproot 见证分类与控制块解析。
taproot_test.go			见证分类与脚本树承诺的测试。
taptree.go				tapscript 梅克尔树、输出密钥调整与承诺校验。
varint.go				变长整数的编解码。
varint_test.go			变长整数的测试。

*/
