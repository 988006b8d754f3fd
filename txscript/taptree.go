// 包含 tapscript 梅克尔树的哈希计算、输出密钥调整以及控制块承诺校验。

package txscript

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	secp "github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// TapLeaf 表示 tapscript 树中的一片叶子：叶子版本以及与之关联的脚本。
type TapLeaf struct {
	LeafVersion TapscriptLeafVersion
	Script      []byte
}

// NewBaseTapLeaf 返回使用基本叶子版本（BIP 342）的叶子。
func NewBaseTapLeaf(script []byte) TapLeaf {
	return TapLeaf{LeafVersion: BaseLeafVersion, Script: script}
}

// TapHash 返回叶子的标记哈希：
// h_tapleaf(leafVersion || compactSize(script) || script)。
func (t TapLeaf) TapHash() chainhash.Hash {
	var leafEncoding bytes.Buffer
	leafEncoding.WriteByte(byte(t.LeafVersion))
	leafEncoding.Write(EncodeVarInt(uint64(len(t.Script))))
	leafEncoding.Write(t.Script)

	return *chainhash.TaggedHash(chainhash.TagTapLeaf, leafEncoding.Bytes())
}

// tapBranchHash 将两个子节点哈希按字典序排列后计算分支哈希。
func tapBranchHash(l, r []byte) chainhash.Hash {
	if bytes.Compare(l, r) > 0 {
		l, r = r, l
	}

	return *chainhash.TaggedHash(chainhash.TagTapBranch, l, r)
}

// RootHash 从被揭示的脚本出发，沿控制块的梅克尔路径逐层计算脚本树的根哈希。
func (c *ControlBlock) RootHash(revealedScript []byte) chainhash.Hash {
	acc := TapLeaf{LeafVersion: c.LeafVersion, Script: revealedScript}.TapHash()
	for _, node := range c.MerklePath() {
		acc = tapBranchHash(acc[:], node)
	}
	return acc
}

// ComputeTaprootOutputKey 计算输出密钥：
// taprootKey = internalKey + h_tapTweak(internalKey || scriptRoot)*G。
func ComputeTaprootOutputKey(pubKey *btcec.PublicKey,
	scriptRoot []byte) *btcec.PublicKey {

	// Only the x coordinate commits, force the even y variant.
	internalKey, _ := schnorr.ParsePubKey(schnorr.SerializePubKey(pubKey))

	tapTweakHash := chainhash.TaggedHash(
		chainhash.TagTapTweak, schnorr.SerializePubKey(internalKey),
		scriptRoot,
	)

	var tweakScalar btcec.ModNScalar
	tweakScalar.SetBytes((*[32]byte)(tapTweakHash))

	var internalPoint, tPoint, taprootKey btcec.JacobianPoint
	internalKey.AsJacobian(&internalPoint)
	btcec.ScalarBaseMultNonConst(&tweakScalar, &tPoint)
	btcec.AddNonConst(&internalPoint, &tPoint, &taprootKey)
	taprootKey.ToAffine()

	return btcec.NewPublicKey(&taprootKey.X, &taprootKey.Y)
}

// VerifyTaprootLeafCommitment 校验控制块与被揭示脚本是否打开了给定的见证程序
// （32 字节 x-only 输出密钥）。输出密钥或奇偶位不一致时返回错误。
func VerifyTaprootLeafCommitment(controlBlock *ControlBlock,
	taprootWitnessProgram []byte, revealedScript []byte) error {

	internalKey, err := controlBlock.ParseInternalKey()
	if err != nil {
		return err
	}

	rootHash := controlBlock.RootHash(revealedScript)
	taprootKey := ComputeTaprootOutputKey(internalKey, rootHash[:])

	if !bytes.Equal(schnorr.SerializePubKey(taprootKey), taprootWitnessProgram) {
		return scriptError(ErrTaprootMerkleProofInvalid,
			"control block does not commit to the witness program")
	}

	derivedYIsOdd := taprootKey.SerializeCompressed()[0] ==
		secp.PubKeyFormatCompressedOdd
	if controlBlock.OutputKeyYIsOdd != derivedYIsOdd {
		str := fmt.Sprintf("control block y is odd: %v, derived "+
			"parity is odd: %v", controlBlock.OutputKeyYIsOdd,
			derivedYIsOdd)
		return scriptError(ErrTaprootOutputKeyParityMismatch, str)
	}

	return nil
}

// TapTree 是由一组叶子构成的平衡 tapscript 树，保存每片叶子的包含证明。
type TapTree struct {
	// Root is the merkle root committed to by the output key.
	Root chainhash.Hash

	// Leaves keeps the input order.
	Leaves []TapLeaf

	proofs [][]byte
}

// BuildTapTree 将叶子对半划分递归构建平衡树。叶子数量为零时返回 nil。
func BuildTapTree(leaves ...TapLeaf) *TapTree {
	if len(leaves) == 0 {
		return nil
	}

	tree := &TapTree{
		Leaves: leaves,
		proofs: make([][]byte, len(leaves)),
	}
	tree.Root = tree.build(0, len(leaves))
	return tree
}

// build 返回 [lo, hi) 区间叶子构成的子树哈希，并把兄弟节点追加到每片叶子的证明中。
func (t *TapTree) build(lo, hi int) chainhash.Hash {
	if hi-lo == 1 {
		return t.Leaves[lo].TapHash()
	}

	mid := lo + (hi-lo+1)/2
	left := t.build(lo, mid)
	right := t.build(mid, hi)

	for i := lo; i < mid; i++ {
		t.proofs[i] = append(t.proofs[i], right[:]...)
	}
	for i := mid; i < hi; i++ {
		t.proofs[i] = append(t.proofs[i], left[:]...)
	}

	return tapBranchHash(left[:], right[:])
}

// OutputKey 返回给定内部密钥提交到该树后的输出密钥。
func (t *TapTree) OutputKey(internalKey *btcec.PublicKey) *btcec.PublicKey {
	return ComputeTaprootOutputKey(internalKey, t.Root[:])
}

// ControlBlock 返回花费第 idx 片叶子所需的控制块。
func (t *TapTree) ControlBlock(idx int, internalKey *btcec.PublicKey) (*ControlBlock, error) {
	if idx < 0 || idx >= len(t.Leaves) {
		return nil, scriptError(ErrInternal,
			fmt.Sprintf("leaf index %d out of range for %d leaves", idx,
				len(t.Leaves)))
	}

	outputKey := t.OutputKey(internalKey)
	proof := make([]byte, len(t.proofs[idx]))
	copy(proof, t.proofs[idx])

	return &ControlBlock{
		LeafVersion: t.Leaves[idx].LeafVersion,
		OutputKeyYIsOdd: outputKey.SerializeCompressed()[0] ==
			secp.PubKeyFormatCompressedOdd,
		InternalKey:    schnorr.SerializePubKey(internalKey),
		InclusionProof: proof,
	}, nil
}
