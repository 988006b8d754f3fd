// 包含 Taproot 见证的分类逻辑：剥离附件、区分密钥路径与脚本路径花费，
// 并从叶子脚本与控制块中提取多签阈值和脚本树深度。

package txscript

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/wire"
)

// TapscriptLeafVersion 表示 tapscript 叶子版本。
type TapscriptLeafVersion uint8

const (
	// BaseLeafVersion 是 BIP 342 定义的基本 tapscript 叶子版本。
	BaseLeafVersion TapscriptLeafVersion = 0xc0
)

const (
	// TaprootAnnexTag 是见证附件的首字节标记。
	TaprootAnnexTag = 0x50

	// TaprootLeafMask 用于从控制块首字节中去掉奇偶位，得到叶子版本。
	TaprootLeafMask = 0xfe

	// ControlBlockBaseSize 是控制块的基本尺寸，
	// 包括叶子版本字节和序列化的 x-only 内部公钥。
	ControlBlockBaseSize = 33

	// ControlBlockNodeSize 是控制块中每个梅克尔分支哈希的大小。
	ControlBlockNodeSize = 32

	// ControlBlockMaxNodeCount 是控制块中可包含的最大节点数。
	ControlBlockMaxNodeCount = 128

	// ControlBlockMaxSize 是控制块的最大可能大小。
	ControlBlockMaxSize = ControlBlockBaseSize + (ControlBlockNodeSize *
		ControlBlockMaxNodeCount)
)

// ControlBlock 是脚本路径花费中最后一个见证元素的只读视图：
// 叶子版本与输出密钥奇偶位、内部公钥，以及梅克尔包含证明。
type ControlBlock struct {
	// LeafVersion is the leaf version with the parity bit masked off.
	LeafVersion TapscriptLeafVersion

	// OutputKeyYIsOdd denotes if the y coordinate of the output key is
	// odd.
	OutputKeyYIsOdd bool

	// InternalKey is the raw 32 byte x-only internal key.
	InternalKey []byte

	// InclusionProof is the concatenation of the merkle path nodes, leaf
	// side first.
	InclusionProof []byte
}

// ParseControlBlock 解析控制块的原始字节。
// 长度小于 33 字节、超过最大值或去掉首字节后不是 32 的倍数时返回 ErrMalformedControlBlock。
// 内部公钥不在这里校验，需要时使用 ParseInternalKey。
func ParseControlBlock(ctrlBlock []byte) (*ControlBlock, error) {
	switch {
	case len(ctrlBlock) < ControlBlockBaseSize:
		str := fmt.Sprintf("min size is %v bytes, control block "+
			"is %v bytes", ControlBlockBaseSize, len(ctrlBlock))
		return nil, scriptError(ErrMalformedControlBlock, str)

	case len(ctrlBlock) > ControlBlockMaxSize:
		str := fmt.Sprintf("max size is %v, control block is %v bytes",
			ControlBlockMaxSize, len(ctrlBlock))
		return nil, scriptError(ErrMalformedControlBlock, str)

	case (len(ctrlBlock)-1)%ControlBlockNodeSize != 0:
		str := fmt.Sprintf("control block proof is not a multiple "+
			"of 32: %v", len(ctrlBlock)-ControlBlockBaseSize)
		return nil, scriptError(ErrMalformedControlBlock, str)
	}

	internalKey := make([]byte, ControlBlockBaseSize-1)
	copy(internalKey, ctrlBlock[1:ControlBlockBaseSize])

	proof := make([]byte, len(ctrlBlock)-ControlBlockBaseSize)
	copy(proof, ctrlBlock[ControlBlockBaseSize:])

	return &ControlBlock{
		LeafVersion:     TapscriptLeafVersion(ctrlBlock[0] & TaprootLeafMask),
		OutputKeyYIsOdd: ctrlBlock[0]&0x01 == 0x01,
		InternalKey:     internalKey,
		InclusionProof:  proof,
	}, nil
}

// Depth 返回梅克尔路径中的节点数量，即被揭示叶子在脚本树中的最小深度。
func (c *ControlBlock) Depth() int {
	return len(c.InclusionProof) / ControlBlockNodeSize
}

// MerklePath 返回按从叶子到根的顺序排列的路径节点。
func (c *ControlBlock) MerklePath() [][]byte {
	nodes := make([][]byte, 0, c.Depth())
	for i := 0; i+ControlBlockNodeSize <= len(c.InclusionProof); i += ControlBlockNodeSize {
		nodes = append(nodes, c.InclusionProof[i:i+ControlBlockNodeSize])
	}
	return nodes
}

// ParseInternalKey 将内部公钥解析为 BIP 340 x-only 公钥。
func (c *ControlBlock) ParseInternalKey() (*btcec.PublicKey, error) {
	pubKey, err := schnorr.ParsePubKey(c.InternalKey)
	if err != nil {
		return nil, scriptError(ErrInvalidPubKey,
			fmt.Sprintf("invalid internal key: %v", err))
	}
	return pubKey, nil
}

// ToBytes 返回控制块的见证编码。
func (c *ControlBlock) ToBytes() []byte {
	leafVersionAndParity := byte(c.LeafVersion)
	if c.OutputKeyYIsOdd {
		leafVersionAndParity |= 0x01
	}

	b := make([]byte, 0, 1+len(c.InternalKey)+len(c.InclusionProof))
	b = append(b, leafVersionAndParity)
	b = append(b, c.InternalKey...)
	return append(b, c.InclusionProof...)
}

// SpendType 是 Taproot 输入的花费路径。
type SpendType uint8

const (
	// SpendInvalid 表示剥离附件后见证为空。
	SpendInvalid SpendType = iota

	// SpendKeyPath 表示仅有一个签名的密钥路径花费。
	SpendKeyPath

	// SpendScriptPath 表示揭示了叶子脚本与控制块的脚本路径花费。
	SpendScriptPath
)

var spendTypeStrings = map[SpendType]string{
	SpendInvalid:    "invalid",
	SpendKeyPath:    "keypath",
	SpendScriptPath: "scriptpath",
}

// String 返回花费路径的名称。
func (t SpendType) String() string {
	if s, ok := spendTypeStrings[t]; ok {
		return s
	}
	return fmt.Sprintf("SpendType(%d)", uint8(t))
}

// SpendClassification 是一次见证分类的结果。
// 阈值、签名计数与树深度仅对脚本路径花费有意义。
type SpendClassification struct {
	Type SpendType

	// Threshold is the literal that follows the last OP_CHECKSIGADD.
	// HasThreshold is false when the script holds no OP_CHECKSIGADD or
	// the following command is not a number.
	Threshold    uint32
	HasThreshold bool

	// ChecksigCount starts at one and counts every OP_CHECKSIGADD.
	ChecksigCount uint32

	// TreeDepth is the number of merkle path nodes in the control block.
	// DepthKnown is false when the bytes after the first one are not a
	// multiple of 32.
	TreeDepth  uint32
	DepthKnown bool

	// ScriptMalformed is set when the leaf script could not be decoded.
	ScriptMalformed bool

	// LeafScript and ControlBlock are the raw witness elements of a script
	// path spend.
	LeafScript   []byte
	ControlBlock []byte
}

// String 返回分类结果的简短描述。
func (c SpendClassification) String() string {
	if c.Type != SpendScriptPath {
		return c.Type.String()
	}

	threshold := "-"
	if c.HasThreshold {
		threshold = fmt.Sprintf("%d", c.Threshold)
	}
	depth := "?"
	if c.DepthKnown {
		depth = fmt.Sprintf("%d", c.TreeDepth)
	}
	return fmt.Sprintf("%s threshold=%s checksigs=%d depth=%s", c.Type,
		threshold, c.ChecksigCount, depth)
}

// isAnnexedWitness 判断最后一个见证元素是否为附件。
// 与 BIP 341 一致，只有至少两个元素的见证才可能带有附件，
// 单独一个以 0x50 开头的元素仍是密钥路径签名。
func isAnnexedWitness(witness [][]byte) bool {
	if len(witness) < 2 {
		return false
	}
	last := witness[len(witness)-1]
	return len(last) > 0 && last[0] == TaprootAnnexTag
}

// StripAnnex 在见证至少有两个元素且最后一个元素以 0x50 开头时将其去掉，
// 返回剩余的见证与附件。
func StripAnnex(witness [][]byte) ([][]byte, []byte) {
	if !isAnnexedWitness(witness) {
		return witness, nil
	}
	return witness[:len(witness)-1], witness[len(witness)-1]
}

// ClassifyWitness 对一个输入的见证进行分类。
//
// 剥离附件后：空见证为 SpendInvalid；仅有一个元素（即使以 0x50 开头）为 SpendKeyPath；
// 否则倒数第二个元素为叶子脚本，最后一个元素为控制块。
// 分类从不返回错误：无法解码的叶子脚本只给出基础签名计数，
// 首字节之后的长度不是 32 的倍数的控制块只给出未知深度，以便批量分析可以继续处理后续记录。
func ClassifyWitness(witness wire.TxWitness) SpendClassification {
	stack, _ := StripAnnex(witness)

	switch len(stack) {
	case 0:
		return SpendClassification{Type: SpendInvalid}
	case 1:
		return SpendClassification{Type: SpendKeyPath}
	}

	leafScript := stack[len(stack)-2]
	ctrlBlock := stack[len(stack)-1]

	class := SpendClassification{
		Type:          SpendScriptPath,
		ChecksigCount: 1,
		LeafScript:    leafScript,
		ControlBlock:  ctrlBlock,
	}

	script, err := ParseScriptBytes(leafScript)
	if err != nil {
		class.ScriptMalformed = true
	} else {
		class.ChecksigCount, class.Threshold, class.HasThreshold =
			checkSigAddThreshold(script)
	}

	class.TreeDepth, class.DepthKnown = controlBlockDepth(ctrlBlock)

	return class
}

// controlBlockDepth 返回控制块中的路径节点数。
// 与 ParseControlBlock 不同，这里只要求首字节之后的长度是 32 的倍数：
// 只有首字节的控制块深度为 0，超过最大尺寸的控制块同样给出深度。
func controlBlockDepth(ctrlBlock []byte) (uint32, bool) {
	if len(ctrlBlock) == 0 || (len(ctrlBlock)-1)%ControlBlockNodeSize != 0 {
		return 0, false
	}
	if len(ctrlBlock) < ControlBlockBaseSize {
		return 0, true
	}
	return uint32((len(ctrlBlock) - ControlBlockBaseSize) / ControlBlockNodeSize), true
}

// ClassifyHexWitness 解码十六进制编码的见证元素后进行分类。
// 任一元素不是合法的十六进制时返回 ErrInvalidWitnessHex。
func ClassifyHexWitness(elements []string) (SpendClassification, error) {
	witness := make(wire.TxWitness, 0, len(elements))
	for i, element := range elements {
		b, err := hex.DecodeString(element)
		if err != nil {
			str := fmt.Sprintf("witness element %d is not valid hex: %v",
				i, err)
			return SpendClassification{}, scriptError(ErrInvalidWitnessHex, str)
		}
		witness = append(witness, b)
	}

	return ClassifyWitness(witness), nil
}

// checkSigAddThreshold 统计 OP_CHECKSIGADD 的出现次数（从 1 开始计数），
// 并将最后一次出现之后的命令读作阈值。
// 该约定对应 "<pk> OP_CHECKSIG <pk> OP_CHECKSIGADD ... <m> OP_NUMEQUAL" 形式的多签模板，
// 对任意 tapscript 只是一种启发式。
func checkSigAddThreshold(script *Script) (count, threshold uint32, ok bool) {
	cmds := script.cmds
	count = 1
	last := -1
	for i, cmd := range cmds {
		if !cmd.IsPushData() && cmd.Opcode() == OP_CHECKSIGADD {
			count++
			last = i
		}
	}

	if last < 0 || last+1 >= len(cmds) {
		return count, 0, false
	}

	next := cmds[last+1]
	if next.IsPushData() {
		n, err := DecodeScriptNum(next.Data())
		if err != nil || n < 0 {
			return count, 0, false
		}
		return count, uint32(n), true
	}

	if IsSmallInt(next.Opcode()) {
		return count, uint32(AsSmallInt(next.Opcode())), true
	}
	return count, 0, false
}
