// 包含标准操作码表：常量、栈操作、算术、哈希、条件分支与签名校验。

package txscript

import (
	"bytes"
	"crypto/sha1"
	"crypto/sha256"
	"fmt"
	"hash"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"golang.org/x/crypto/ripemd160"
)

// MaxPubKeysPerMultiSig 是多重签名允许的最大公钥数量。
const MaxPubKeysPerMultiSig = 20

// standardTable 在 init 中构建，Evaluate 直接共享使用，不得修改。
var standardTable MapTable

// StandardTable 返回标准操作码表的副本，调用者可以在其上增删操作码。
func StandardTable() MapTable {
	table := make(MapTable, len(standardTable))
	for op, operation := range standardTable {
		table[op] = operation
	}
	return table
}

func init() {
	t := MapTable{
		OP_0:       PlainOp(opcodeFalse),
		OP_1NEGATE: PlainOp(opcodeN(-1)),

		OP_NOP:                 PlainOp(opcodeNop),
		OP_IF:                  ControlFlowOp(opcodeIf),
		OP_NOTIF:               ControlFlowOp(opcodeNotIf),
		OP_ELSE:                PlainOp(opcodeUnbalanced),
		OP_ENDIF:               PlainOp(opcodeUnbalanced),
		OP_VERIFY:              PlainOp(opcodeVerify),
		OP_RETURN:              PlainOp(opcodeReturn),
		OP_TOALTSTACK:          AltStackOp(opcodeToAltStack),
		OP_FROMALTSTACK:        AltStackOp(opcodeFromAltStack),
		OP_2DROP:               PlainOp(func(s *Stack) error { return s.DropN(2) }),
		OP_2DUP:                PlainOp(func(s *Stack) error { return s.DupN(2) }),
		OP_3DUP:                PlainOp(func(s *Stack) error { return s.DupN(3) }),
		OP_2OVER:               PlainOp(func(s *Stack) error { return s.OverN(2) }),
		OP_2ROT:                PlainOp(func(s *Stack) error { return s.RotN(2) }),
		OP_2SWAP:               PlainOp(func(s *Stack) error { return s.SwapN(2) }),
		OP_IFDUP:               PlainOp(opcodeIfDup),
		OP_DEPTH:               PlainOp(opcodeDepth),
		OP_DROP:                PlainOp(func(s *Stack) error { return s.DropN(1) }),
		OP_DUP:                 PlainOp(func(s *Stack) error { return s.DupN(1) }),
		OP_NIP:                 PlainOp(func(s *Stack) error { return s.NipN(1) }),
		OP_OVER:                PlainOp(func(s *Stack) error { return s.OverN(1) }),
		OP_PICK:                PlainOp(opcodePick),
		OP_ROLL:                PlainOp(opcodeRoll),
		OP_ROT:                 PlainOp(func(s *Stack) error { return s.RotN(1) }),
		OP_SWAP:                PlainOp(func(s *Stack) error { return s.SwapN(1) }),
		OP_TUCK:                PlainOp(func(s *Stack) error { return s.Tuck() }),
		OP_SIZE:                PlainOp(opcodeSize),
		OP_EQUAL:               PlainOp(opcodeEqual),
		OP_EQUALVERIFY:         PlainOp(opcodeEqualVerify),
		OP_1ADD:                PlainOp(unaryNum(func(a int64) int64 { return a + 1 })),
		OP_1SUB:                PlainOp(unaryNum(func(a int64) int64 { return a - 1 })),
		OP_NEGATE:              PlainOp(unaryNum(func(a int64) int64 { return -a })),
		OP_ABS:                 PlainOp(unaryNum(opAbs)),
		OP_NOT:                 PlainOp(unaryNum(func(a int64) int64 { return boolNum(a == 0) })),
		OP_0NOTEQUAL:           PlainOp(unaryNum(func(a int64) int64 { return boolNum(a != 0) })),
		OP_ADD:                 PlainOp(binaryNum(func(a, b int64) int64 { return a + b })),
		OP_SUB:                 PlainOp(binaryNum(func(a, b int64) int64 { return a - b })),
		OP_BOOLAND:             PlainOp(binaryNum(func(a, b int64) int64 { return boolNum(a != 0 && b != 0) })),
		OP_BOOLOR:              PlainOp(binaryNum(func(a, b int64) int64 { return boolNum(a != 0 || b != 0) })),
		OP_NUMEQUAL:            PlainOp(binaryNum(func(a, b int64) int64 { return boolNum(a == b) })),
		OP_NUMEQUALVERIFY:      PlainOp(opcodeNumEqualVerify),
		OP_NUMNOTEQUAL:         PlainOp(binaryNum(func(a, b int64) int64 { return boolNum(a != b) })),
		OP_LESSTHAN:            PlainOp(binaryNum(func(a, b int64) int64 { return boolNum(a < b) })),
		OP_GREATERTHAN:         PlainOp(binaryNum(func(a, b int64) int64 { return boolNum(a > b) })),
		OP_LESSTHANOREQUAL:     PlainOp(binaryNum(func(a, b int64) int64 { return boolNum(a <= b) })),
		OP_GREATERTHANOREQUAL:  PlainOp(binaryNum(func(a, b int64) int64 { return boolNum(a >= b) })),
		OP_MIN:                 PlainOp(binaryNum(opMin)),
		OP_MAX:                 PlainOp(binaryNum(opMax)),
		OP_WITHIN:              PlainOp(opcodeWithin),
		OP_RIPEMD160:           PlainOp(hashOp(ripemd160.New)),
		OP_SHA1:                PlainOp(hashOp(sha1.New)),
		OP_SHA256:              PlainOp(hashOp(sha256.New)),
		OP_HASH160:             PlainOp(opcodeHash160),
		OP_HASH256:             PlainOp(opcodeHash256),
		OP_CODESEPARATOR:       PlainOp(opcodeNop),
		OP_CHECKSIG:            CheckSigOp(opcodeCheckSig),
		OP_CHECKSIGVERIFY:      CheckSigOp(opcodeCheckSigVerify),
		OP_CHECKMULTISIG:       CheckSigOp(opcodeCheckMultiSig),
		OP_CHECKMULTISIGVERIFY: CheckSigOp(opcodeCheckMultiSigVerify),
		OP_CHECKSIGADD:         CheckSigOp(opcodeCheckSigAdd),
	}

	for op := OP_1; op <= OP_16; op++ {
		t[byte(op)] = PlainOp(opcodeN(int64(op - (OP_1 - 1))))
	}

	// Without a spending transaction the lock time opcodes behave as
	// their NOP ancestors.
	for _, op := range []byte{OP_NOP1, OP_CHECKLOCKTIMEVERIFY,
		OP_CHECKSEQUENCEVERIFY, OP_NOP4, OP_NOP5, OP_NOP6, OP_NOP7, OP_NOP8,
		OP_NOP9, OP_NOP10} {

		t[op] = PlainOp(opcodeNop)
	}

	standardTable = t
}

// *******************************************
// 操作码实现函数从这里开始。
// *******************************************

// opcodeFalse 将一个空数组压入数据栈来表示 false。
func opcodeFalse(s *Stack) error {
	s.PushByteArray(nil)
	return nil
}

// opcodeN 返回将固定数值压入数据栈的处理程序。
func opcodeN(n int64) func(*Stack) error {
	return func(s *Stack) error {
		s.PushInt(n)
		return nil
	}
}

func opcodeNop(s *Stack) error {
	return nil
}

// branchOf 从待执行命令中切分出与当前 IF/NOTIF 匹配的两个分支，
// 并返回 OP_ENDIF 之后的剩余命令。嵌套的条件块原样保留在所属分支中。
func branchOf(cmds []Command) (trueBranch, falseBranch, rest []Command, err error) {
	current := &trueBranch
	depth := 1
	for i, cmd := range cmds {
		if cmd.IsPushData() {
			*current = append(*current, cmd)
			continue
		}

		switch cmd.Opcode() {
		case OP_IF, OP_NOTIF:
			depth++
			*current = append(*current, cmd)

		case OP_ELSE:
			if depth == 1 {
				current = &falseBranch
				continue
			}
			*current = append(*current, cmd)

		case OP_ENDIF:
			if depth == 1 {
				return trueBranch, falseBranch, cmds[i+1:], nil
			}
			depth--
			*current = append(*current, cmd)

		default:
			*current = append(*current, cmd)
		}
	}

	return nil, nil, nil, scriptError(ErrUnbalancedConditional,
		"end of script reached in conditional execution")
}

// abstractIf 实现 OP_IF 与 OP_NOTIF：弹出栈顶布尔值，把选中的分支拼接到剩余命令之前。
//
// <expression> if [statements] [else [statements]] endif
func abstractIf(s *Stack, pending *Pending, negate bool) error {
	if s.Depth() < 1 {
		return scriptError(ErrStackUnderflow, "conditional requires a "+
			"stack item")
	}

	trueBranch, falseBranch, rest, err := branchOf(pending.Remaining())
	if err != nil {
		return err
	}

	cond, err := s.PopBool()
	if err != nil {
		return err
	}

	chosen := falseBranch
	if cond != negate {
		chosen = trueBranch
	}

	cmds := make([]Command, 0, len(chosen)+len(rest))
	cmds = append(cmds, chosen...)
	cmds = append(cmds, rest...)
	pending.Replace(cmds)
	return nil
}

// opcodeIf 在栈顶为真时执行第一个分支，否则执行 OP_ELSE 分支。
func opcodeIf(s *Stack, pending *Pending) error {
	return abstractIf(s, pending, false)
}

// opcodeNotIf 在栈顶为假时执行第一个分支，否则执行 OP_ELSE 分支。
func opcodeNotIf(s *Stack, pending *Pending) error {
	return abstractIf(s, pending, true)
}

// opcodeUnbalanced 处理直接执行到的 OP_ELSE 与 OP_ENDIF。
// 匹配的 OP_ELSE/OP_ENDIF 已在 OP_IF/OP_NOTIF 改写待执行命令时被消耗。
func opcodeUnbalanced(s *Stack) error {
	return scriptError(ErrUnbalancedConditional, "encountered opcode "+
		"without a matching conditional")
}

// abstractVerify 将栈顶元素作为布尔值检查，为假时返回给定的错误代码。
func abstractVerify(s *Stack, c ErrorCode, name string) error {
	verified, err := s.PopBool()
	if err != nil {
		return err
	}

	if !verified {
		return scriptError(c, fmt.Sprintf("%s failed", name))
	}
	return nil
}

func opcodeVerify(s *Stack) error {
	return abstractVerify(s, ErrVerify, "OP_VERIFY")
}

// opcodeReturn 返回适当的错误，因为从脚本提前返回始终是错误。
func opcodeReturn(s *Stack) error {
	return scriptError(ErrEarlyReturn, "script returned early")
}

// opcodeToAltStack 将主栈栈顶元素移动到备用栈。
//
// Main data stack transformation: [... x1 x2 x3] -> [... x1 x2]
// Alt data stack transformation:  [... y1 y2 y3] -> [... y1 y2 y3 x3]
func opcodeToAltStack(s, alt *Stack) error {
	so, err := s.PopByteArray()
	if err != nil {
		return err
	}
	alt.PushByteArray(so)

	return nil
}

// opcodeFromAltStack 将备用栈栈顶元素移回主栈。
//
// Main data stack transformation: [... x1 x2 x3] -> [... x1 x2 x3 y3]
// Alt data stack transformation:  [... y1 y2 y3] -> [... y1 y2]
func opcodeFromAltStack(s, alt *Stack) error {
	so, err := alt.PopByteArray()
	if err != nil {
		return err
	}
	s.PushByteArray(so)

	return nil
}

// opcodeIfDup 在栈顶元素不为零时复制它。
func opcodeIfDup(s *Stack) error {
	so, err := s.PeekByteArray(0)
	if err != nil {
		return err
	}

	if asBool(so) {
		s.PushByteArray(so)
	}

	return nil
}

// opcodeDepth 将操作前的栈深度压入栈顶。
func opcodeDepth(s *Stack) error {
	s.PushInt(int64(s.Depth()))
	return nil
}

// opcodePick 将栈顶数值视为索引，把对应元素复制到栈顶。
func opcodePick(s *Stack) error {
	val, err := s.PopInt()
	if err != nil {
		return err
	}

	return s.PickN(int(val))
}

// opcodeRoll 将栈顶数值视为索引，把对应元素移动到栈顶。
func opcodeRoll(s *Stack) error {
	val, err := s.PopInt()
	if err != nil {
		return err
	}

	return s.RollN(int(val))
}

// opcodeSize 将栈顶元素的字节数压入栈顶，不移除该元素。
func opcodeSize(s *Stack) error {
	so, err := s.PeekByteArray(0)
	if err != nil {
		return err
	}

	s.PushInt(int64(len(so)))
	return nil
}

// opcodeEqual 比较栈顶两个元素的字节是否相同。
func opcodeEqual(s *Stack) error {
	a, err := s.PopByteArray()
	if err != nil {
		return err
	}
	b, err := s.PopByteArray()
	if err != nil {
		return err
	}

	s.PushBool(bytes.Equal(a, b))
	return nil
}

func opcodeEqualVerify(s *Stack) error {
	if err := opcodeEqual(s); err != nil {
		return err
	}
	return abstractVerify(s, ErrEqualVerify, "OP_EQUALVERIFY")
}

func opcodeNumEqualVerify(s *Stack) error {
	if err := binaryNum(func(a, b int64) int64 { return boolNum(a == b) })(s); err != nil {
		return err
	}
	return abstractVerify(s, ErrNumEqualVerify, "OP_NUMEQUALVERIFY")
}

// unaryNum 返回弹出一个数字并压入 fn 结果的处理程序。
func unaryNum(fn func(a int64) int64) func(*Stack) error {
	return func(s *Stack) error {
		a, err := s.PopInt()
		if err != nil {
			return err
		}
		s.PushInt(fn(a))
		return nil
	}
}

// binaryNum 返回弹出两个数字并压入 fn 结果的处理程序，b 为原栈顶。
func binaryNum(fn func(a, b int64) int64) func(*Stack) error {
	return func(s *Stack) error {
		b, err := s.PopInt()
		if err != nil {
			return err
		}
		a, err := s.PopInt()
		if err != nil {
			return err
		}
		s.PushInt(fn(a, b))
		return nil
	}
}

func boolNum(v bool) int64 {
	if v {
		return 1
	}
	return 0
}

func opAbs(a int64) int64 {
	if a < 0 {
		return -a
	}
	return a
}

func opMin(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func opMax(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

// opcodeWithin 判断 x 是否位于 [min, max) 区间。
//
// Stack transformation: [... x min max] -> [... bool]
func opcodeWithin(s *Stack) error {
	maxVal, err := s.PopInt()
	if err != nil {
		return err
	}
	minVal, err := s.PopInt()
	if err != nil {
		return err
	}
	x, err := s.PopInt()
	if err != nil {
		return err
	}

	s.PushBool(x >= minVal && x < maxVal)
	return nil
}

// calcHash 使用给定的哈希函数计算 buf 的哈希。
func calcHash(buf []byte, hasher hash.Hash) []byte {
	hasher.Write(buf)
	return hasher.Sum(nil)
}

// hashOp 返回将栈顶元素替换为其哈希值的处理程序。
func hashOp(newHash func() hash.Hash) func(*Stack) error {
	return func(s *Stack) error {
		buf, err := s.PopByteArray()
		if err != nil {
			return err
		}
		s.PushByteArray(calcHash(buf, newHash()))
		return nil
	}
}

// opcodeHash160 将栈顶元素替换为 RIPEMD160(SHA256(x))。
func opcodeHash160(s *Stack) error {
	buf, err := s.PopByteArray()
	if err != nil {
		return err
	}

	h := sha256.Sum256(buf)
	s.PushByteArray(calcHash(h[:], ripemd160.New()))
	return nil
}

// opcodeHash256 将栈顶元素替换为 SHA256(SHA256(x))。
func opcodeHash256(s *Stack) error {
	buf, err := s.PopByteArray()
	if err != nil {
		return err
	}

	s.PushByteArray(chainhash.DoubleHashB(buf))
	return nil
}

// parseECDSAPair 解析 SEC 编码的公钥与去掉哈希类型字节的 DER 签名。
func parseECDSAPair(pkBytes, fullSig []byte) (*btcec.PublicKey, *ecdsa.Signature, error) {
	pubKey, err := btcec.ParsePubKey(pkBytes)
	if err != nil {
		return nil, nil, scriptError(ErrInvalidPubKey,
			fmt.Sprintf("unable to parse public key: %v", err))
	}

	if len(fullSig) < 1 {
		return nil, nil, scriptError(ErrInvalidSignature, "empty signature")
	}
	sig, err := ecdsa.ParseDERSignature(fullSig[:len(fullSig)-1])
	if err != nil {
		return nil, nil, scriptError(ErrInvalidSignature,
			fmt.Sprintf("unable to parse signature: %v", err))
	}
	return pubKey, sig, nil
}

// verifySchnorr 按 BIP 342 的规则校验 tapscript 签名。
// 空签名返回假；非 32 字节的公钥属于未知类型，视为校验通过；
// 非空签名校验失败时返回 ErrInvalidSignature。
func verifySchnorr(pkBytes, rawSig, sigHash []byte) (bool, error) {
	if len(pkBytes) == 0 {
		return false, scriptError(ErrInvalidPubKey, "empty public key")
	}
	if len(rawSig) == 0 {
		return false, nil
	}
	if len(pkBytes) != schnorr.PubKeyBytesLen {
		return true, nil
	}

	pubKey, err := schnorr.ParsePubKey(pkBytes)
	if err != nil {
		return false, scriptError(ErrInvalidPubKey,
			fmt.Sprintf("unable to parse public key: %v", err))
	}

	// A 65 byte signature carries an explicit sighash type.
	if len(rawSig) == schnorr.SignatureSize+1 {
		rawSig = rawSig[:schnorr.SignatureSize]
	}
	sig, err := schnorr.ParseSignature(rawSig)
	if err != nil {
		return false, scriptError(ErrInvalidSignature,
			fmt.Sprintf("unable to parse signature: %v", err))
	}
	if !sig.Verify(sigHash, pubKey) {
		return false, scriptError(ErrInvalidSignature, "schnorr signature "+
			"verification failed")
	}
	return true, nil
}

// opcodeCheckSig 使用 sigHash 校验签名，结果以布尔值压入栈顶。
// 32 字节的公钥为 tapscript 的 x-only 公钥，使用 Schnorr 签名，
// 其余公钥使用 ECDSA 签名。
//
// Stack transformation: [... signature pubkey] -> [... bool]
func opcodeCheckSig(s *Stack, sigHash []byte) error {
	pkBytes, err := s.PopByteArray()
	if err != nil {
		return err
	}
	fullSig, err := s.PopByteArray()
	if err != nil {
		return err
	}

	if len(pkBytes) == schnorr.PubKeyBytesLen {
		ok, err := verifySchnorr(pkBytes, fullSig, sigHash)
		if err != nil {
			return err
		}
		s.PushBool(ok)
		return nil
	}

	pubKey, sig, err := parseECDSAPair(pkBytes, fullSig)
	if err != nil {
		return err
	}

	s.PushBool(sig.Verify(sigHash, pubKey))
	return nil
}

func opcodeCheckSigVerify(s *Stack, sigHash []byte) error {
	if err := opcodeCheckSig(s, sigHash); err != nil {
		return err
	}
	return abstractVerify(s, ErrCheckSigVerify, "OP_CHECKSIGVERIFY")
}

// opcodeCheckMultiSig 校验 m-of-n ECDSA 多重签名。
// 签名与公钥按顺序匹配，公钥被消耗后不再参与后续签名的校验。
//
// Stack transformation:
// [... dummy [sig ...] numsigs [pubkey ...] numpubkeys] -> [... bool]
func opcodeCheckMultiSig(s *Stack, sigHash []byte) error {
	numKeys, err := s.PopInt()
	if err != nil {
		return err
	}
	if numKeys < 0 || numKeys > MaxPubKeysPerMultiSig {
		str := fmt.Sprintf("number of pubkeys %d is out of range", numKeys)
		return scriptError(ErrInvalidStackOperation, str)
	}

	pubKeys := make([][]byte, 0, numKeys)
	for i := int64(0); i < numKeys; i++ {
		pk, err := s.PopByteArray()
		if err != nil {
			return err
		}
		pubKeys = append(pubKeys, pk)
	}

	numSigs, err := s.PopInt()
	if err != nil {
		return err
	}
	if numSigs < 0 || numSigs > numKeys {
		str := fmt.Sprintf("number of signatures %d is out of range for "+
			"%d pubkeys", numSigs, numKeys)
		return scriptError(ErrInvalidStackOperation, str)
	}

	sigs := make([][]byte, 0, numSigs)
	for i := int64(0); i < numSigs; i++ {
		sig, err := s.PopByteArray()
		if err != nil {
			return err
		}
		sigs = append(sigs, sig)
	}

	// The historical off-by-one dummy element.
	if _, err := s.PopByteArray(); err != nil {
		return err
	}

	// Both slices were popped top first, reverse them into script order.
	reverse(pubKeys)
	reverse(sigs)

	success := true
	for _, fullSig := range sigs {
		matched := false
		for len(pubKeys) > 0 {
			pubKey, sig, err := parseECDSAPair(pubKeys[0], fullSig)
			pubKeys = pubKeys[1:]
			if err != nil {
				return err
			}
			if sig.Verify(sigHash, pubKey) {
				matched = true
				break
			}
		}
		if !matched {
			success = false
			break
		}
	}

	s.PushBool(success)
	return nil
}

func opcodeCheckMultiSigVerify(s *Stack, sigHash []byte) error {
	if err := opcodeCheckMultiSig(s, sigHash); err != nil {
		return err
	}
	return abstractVerify(s, ErrCheckMultiSigVerify, "OP_CHECKMULTISIGVERIFY")
}

// opcodeCheckSigAdd 实现 Tapscript 的签名累加：空签名时计数不变，
// 否则使用 BIP340 Schnorr 校验签名，成功则计数加一，失败返回错误。
// 长度不是 32 字节的非空公钥属于未定义的公钥类型，按校验成功处理。
//
// Stack transformation: [... sig n pubkey] -> [... n+success]
func opcodeCheckSigAdd(s *Stack, sigHash []byte) error {
	pkBytes, err := s.PopByteArray()
	if err != nil {
		return err
	}
	n, err := s.PopInt()
	if err != nil {
		return err
	}
	rawSig, err := s.PopByteArray()
	if err != nil {
		return err
	}

	ok, err := verifySchnorr(pkBytes, rawSig, sigHash)
	if err != nil {
		return err
	}
	if ok {
		n++
	}

	s.PushInt(n)
	return nil
}

func reverse(items [][]byte) {
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
}
