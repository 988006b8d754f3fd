package taprootscan

import (
	"bytes"
	"context"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	btctxscript "github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/qinglongcn/taprootscan/txscript"
	"github.com/stretchr/testify/require"
)

// testKey 返回由单个字节重复构成的私钥。
func testKey(seed byte) *btcec.PrivateKey {
	key, _ := btcec.PrivKeyFromBytes(bytes.Repeat([]byte{seed}, 32))
	return key
}

// keyPathAddress 返回不带脚本树的 taproot 地址。
func keyPathAddress(t *testing.T, seed byte) string {
	outputKey := txscript.ComputeTaprootOutputKey(testKey(seed).PubKey(), []byte{})
	addr, err := btcutil.NewAddressTaproot(schnorr.SerializePubKey(outputKey),
		&chaincfg.MainNetParams)
	require.NoError(t, err)
	return addr.EncodeAddress()
}

// scriptPathSpend 构造一个 2-of-3 OP_CHECKSIGADD 叶子与一个后备叶子组成的脚本树，
// 返回收款地址以及花费多签叶子的见证元素。
func scriptPathSpend(t *testing.T) (string, []string) {
	pubKeys := make([][]byte, 3)
	for i := range pubKeys {
		pubKeys[i] = schnorr.SerializePubKey(testKey(byte(i + 2)).PubKey())
	}

	multiSig, err := btctxscript.NewScriptBuilder().
		AddData(pubKeys[0]).AddOp(btctxscript.OP_CHECKSIG).
		AddData(pubKeys[1]).AddOp(btctxscript.OP_CHECKSIGADD).
		AddData(pubKeys[2]).AddOp(btctxscript.OP_CHECKSIGADD).
		AddOp(btctxscript.OP_2).AddOp(btctxscript.OP_NUMEQUAL).
		Script()
	require.NoError(t, err)

	fallback, err := btctxscript.NewScriptBuilder().
		AddInt64(144).AddOp(btctxscript.OP_CHECKSEQUENCEVERIFY).
		AddOp(btctxscript.OP_DROP).
		AddData(pubKeys[0]).AddOp(btctxscript.OP_CHECKSIG).
		Script()
	require.NoError(t, err)

	tree := txscript.BuildTapTree(txscript.NewBaseTapLeaf(multiSig),
		txscript.NewBaseTapLeaf(fallback))
	internalKey := testKey(1).PubKey()
	cb, err := tree.ControlBlock(0, internalKey)
	require.NoError(t, err)

	addr, err := btcutil.NewAddressTaproot(
		schnorr.SerializePubKey(tree.OutputKey(internalKey)),
		&chaincfg.MainNetParams)
	require.NoError(t, err)

	sig := strings.Repeat("11", 64)
	witness := []string{"", sig, sig, hex.EncodeToString(multiSig),
		hex.EncodeToString(cb.ToBytes())}
	return addr.EncodeAddress(), witness
}

// newTestDB 在临时目录中创建带有见证数据表的 sqlite 数据库。
func newTestDB(t *testing.T) *SqliteDB {
	db, err := NewSqliteDB(t.TempDir(), DbFile)
	require.NoError(t, err)
	require.NoError(t, db.InitDBTable(InputTable))
	t.Cleanup(func() { db.Close() })
	return db
}

// newTestStore 创建内存中的结果存储。
func newTestStore(t *testing.T) *ResultStore {
	store, err := OpenResultStore("", true)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// insertWitness 插入一条逗号分隔见证的记录。
func insertWitness(t *testing.T, db *SqliteDB, txid, recipient string, witness []string) {
	err := db.InsertWitnessRecord(InputTable, &WitnessRecord{
		Txid:            txid,
		Recipient:       recipient,
		SpendingWitness: strings.Join(witness, ","),
	})
	require.NoError(t, err)
}

// TestIsTaprootRecipient 测试收款地址的过滤。
func TestIsTaprootRecipient(t *testing.T) {
	t.Parallel()

	mainnet := &chaincfg.MainNetParams
	testnet := &chaincfg.TestNet3Params

	taproot := keyPathAddress(t, 1)
	require.True(t, IsTaprootRecipient(taproot, mainnet))
	require.False(t, IsTaprootRecipient(taproot, testnet))

	// BIP 350 测试向量中的 v1 地址
	require.True(t, IsTaprootRecipient(
		"bc1p0xlxvlhemja6c4dqv22uapctqupfhlxm9h8z3k2e72q4k9hcz7vqzk5jj0", mainnet))

	// P2WPKH 不是 taproot 地址
	require.False(t, IsTaprootRecipient(
		"bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4", mainnet))
	require.False(t, IsTaprootRecipient("bc1pnotanaddress", mainnet))
	require.False(t, IsTaprootRecipient("", mainnet))
}

// TestSurveyRun 测试扫描的计数器与保存的分类结果。
func TestSurveyRun(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	store := newTestStore(t)

	scriptAddr, scriptWitness := scriptPathSpend(t)
	keyAddr := keyPathAddress(t, 9)

	insertWitness(t, db, "keypath", keyAddr, []string{strings.Repeat("22", 64)})
	insertWitness(t, db, "scriptpath", scriptAddr, scriptWitness)
	// 同一个见证，但收款地址并不提交该脚本树
	insertWitness(t, db, "mismatch", keyAddr, scriptWitness)
	insertWitness(t, db, "bad-address", "bc1pnotanaddress", []string{"00"})
	insertWitness(t, db, "bad-hex", keyAddr, []string{"zz"})
	insertWitness(t, db, "empty", keyAddr, nil)
	// 测试网地址被 SQL 前缀过滤掉
	insertWitness(t, db, "testnet", "tb1pqqqqp399et2xygdj5xreqhjjvcmzhxw4aywxecjdzew6hylgvsesf3hn0c",
		[]string{"00"})

	opt := DefaultOptions()
	opt.Workers = 3
	survey := NewSurvey(opt, db, store)

	stats, err := survey.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, int64(6), stats.Records)
	require.Equal(t, int64(1), stats.Skipped)
	require.Equal(t, int64(5), stats.Taproot)
	require.Equal(t, int64(1), stats.KeyPath)
	require.Equal(t, int64(2), stats.ScriptPath)
	require.Equal(t, int64(1), stats.Invalid)
	require.Equal(t, int64(1), stats.Malformed)
	require.Equal(t, int64(0), stats.ScriptMalformed)
	require.Equal(t, int64(1), stats.CommitmentMismatch)
	require.Equal(t, map[uint32]int64{2: 2}, stats.Thresholds)
	require.Equal(t, map[uint32]int64{1: 2}, stats.Depths)
	require.Equal(t, stats, survey.Stats())

	count, err := store.Count()
	require.NoError(t, err)
	require.Equal(t, 5, count)

	// 主键按插入顺序从 1 开始
	rec, err := store.Get(2, 0)
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Equal(t, "scriptpath", rec.Txid)
	require.Equal(t, "scriptpath", rec.SpendType)
	require.True(t, rec.HasThreshold)
	require.Equal(t, uint32(2), rec.Threshold)
	require.Equal(t, uint32(3), rec.ChecksigCount)
	require.True(t, rec.DepthKnown)
	require.Equal(t, uint32(1), rec.TreeDepth)
	require.Equal(t, CommitmentOK, rec.Commitment)

	rec, err = store.Get(3, 0)
	require.NoError(t, err)
	require.Equal(t, CommitmentMismatch, rec.Commitment)

	rec, err = store.Get(1, 0)
	require.NoError(t, err)
	require.Equal(t, "keypath", rec.SpendType)
	require.Equal(t, CommitmentUnchecked, rec.Commitment)

	rec, err = store.Get(4, 0)
	require.NoError(t, err)
	require.Nil(t, rec)

	rec, err = store.Get(5, 0)
	require.NoError(t, err)
	require.True(t, rec.WitnessMalformed)
	require.Equal(t, "invalid", rec.SpendType)

	rec, err = store.Get(6, 0)
	require.NoError(t, err)
	require.False(t, rec.WitnessMalformed)
	require.Equal(t, "invalid", rec.SpendType)
}

// TestSurveyRunResetsResults 确保再次扫描时不保留上一次扫描的结果与计数。
func TestSurveyRunResetsResults(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	keyAddr := keyPathAddress(t, 4)
	sig := []string{strings.Repeat("33", 64)}

	first := newTestDB(t)
	for _, txid := range []string{"a1", "a2", "a3"} {
		insertWitness(t, first, txid, keyAddr, sig)
	}
	stats, err := NewSurvey(DefaultOptions(), first, store).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(3), stats.KeyPath)

	second := newTestDB(t)
	insertWitness(t, second, "b1", keyAddr, sig)
	survey := NewSurvey(DefaultOptions(), second, store)
	stats, err = survey.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.Taproot)

	var txids []string
	err = store.ForEach(func(rec *SpendRecord) error {
		txids = append(txids, rec.Txid)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"b1"}, txids)

	// 同一个扫描任务再次运行时计数器从零开始
	stats, err = survey.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.Records)
	require.Equal(t, int64(1), stats.KeyPath)
}

// TestSurveyRawTx 测试完整交易模式下从交易中取出见证。
func TestSurveyRawTx(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	store := newTestStore(t)

	scriptAddr, scriptWitness := scriptPathSpend(t)

	witness := make(wire.TxWitness, len(scriptWitness))
	for i, element := range scriptWitness {
		b, err := hex.DecodeString(element)
		require.NoError(t, err)
		witness[i] = b
	}

	tx := wire.NewMsgTx(2)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Hash: chainhash.Hash{1}, Index: 0},
		Witness:          wire.TxWitness{bytes.Repeat([]byte{0x33}, 64)},
	})
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Hash: chainhash.Hash{2}, Index: 1},
		Witness:          witness,
	})
	tx.AddTxOut(wire.NewTxOut(1000, []byte{0x51}))

	var buf bytes.Buffer
	require.NoError(t, tx.Serialize(&buf))

	records := []*WitnessRecord{
		{Vin: 1, Recipient: scriptAddr, RawTx: buf.Bytes()},
		{Vin: 0, Recipient: keyPathAddress(t, 1), RawTx: buf.Bytes()},
		{Vin: 2, Recipient: scriptAddr, RawTx: buf.Bytes()},
		{Vin: 0, Recipient: scriptAddr, RawTx: []byte{0x01, 0x02}},
	}
	for _, r := range records {
		require.NoError(t, db.InsertWitnessRecord(InputTable, r))
	}

	opt := DefaultOptions()
	opt.RawTx = true
	stats, err := NewSurvey(opt, db, store).Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, int64(4), stats.Taproot)
	require.Equal(t, int64(1), stats.ScriptPath)
	require.Equal(t, int64(1), stats.KeyPath)
	require.Equal(t, int64(2), stats.Malformed)

	rec, err := store.Get(1, 1)
	require.NoError(t, err)
	require.Equal(t, tx.TxHash().String(), rec.Txid)
	require.Equal(t, "scriptpath", rec.SpendType)
	require.Equal(t, CommitmentOK, rec.Commitment)
}

// TestSurveyCancel 确保上下文取消会终止扫描。
func TestSurveyCancel(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	store := newTestStore(t)
	for i := 0; i < 20; i++ {
		insertWitness(t, db, "keypath", keyPathAddress(t, 1),
			[]string{strings.Repeat("22", 64)})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewSurvey(DefaultOptions(), db, store).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
