package taprootscan

import (
	"bytes"
	"context"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
	"github.com/qinglongcn/taprootscan/txscript"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	CommitmentUnchecked = ""         // 非脚本路径花费或控制块无法解析
	CommitmentOK        = "ok"       // 控制块与输出密钥一致
	CommitmentMismatch  = "mismatch" // 控制块与输出密钥不一致
)

// SpendRecord 是单个 taproot 输入的分类结果
type SpendRecord struct {
	RecordId  int64  // 见证数据表中的主键
	Txid      string // 花费交易的哈希
	Vin       uint32 // 输入序号
	Recipient string // 被花费输出的地址

	SpendType     string // invalid、keypath 或 scriptpath
	Threshold     uint32 // 最后一个 OP_CHECKSIGADD 之后的阈值
	HasThreshold  bool   // 阈值是否存在
	ChecksigCount uint32 // 签名检查次数，从 1 开始
	TreeDepth     uint32 // 控制块中的路径节点数
	DepthKnown    bool   // 控制块是否格式正确

	WitnessMalformed bool   // 见证无法解码
	ScriptMalformed  bool   // 叶子脚本无法解码
	Commitment       string // 控制块承诺校验的结果
}

// IsTaprootRecipient 判断地址是否为给定网络上的 taproot 地址
func IsTaprootRecipient(addr string, params *chaincfg.Params) bool {
	a, err := btcutil.DecodeAddress(addr, params)
	if err != nil {
		return false
	}
	if _, ok := a.(*btcutil.AddressTaproot); !ok {
		return false
	}
	return a.IsForNet(params)
}

// Survey 遍历见证数据集并对每个 taproot 输入分类
type Survey struct {
	opt   *Options
	db    *SqliteDB
	store *ResultStore
	stats *Stats
}

// NewSurvey 创建一个扫描任务
func NewSurvey(opt *Options, db *SqliteDB, store *ResultStore) *Survey {
	return &Survey{
		opt:   opt,
		db:    db,
		store: store,
		stats: NewStats(),
	}
}

// Stats 返回当前计数器的副本
func (s *Survey) Stats() StatsSnapshot {
	return s.stats.Snapshot()
}

// Run 读取收款地址为 taproot 地址的记录，由多个工作协程并发分类并保存结果。
// 每次扫描前清空计数器与结果存储，报表只包含本次扫描的记录。
// 单条记录的格式错误只计入计数器，数据库或结果存储的错误会终止扫描。
func (s *Survey) Run(ctx context.Context) (StatsSnapshot, error) {
	if err := s.store.Reset(); err != nil {
		return StatsSnapshot{}, fmt.Errorf("清空结果存储失败: %w", err)
	}
	s.stats = NewStats()

	params := s.opt.ChainParams()
	// taproot 地址以 <hrp>1p 开头
	prefix := params.Bech32HRPSegwit + "1p"

	g, ctx := errgroup.WithContext(ctx)
	records := make(chan *WitnessRecord, s.opt.Workers*2)

	g.Go(func() error {
		defer close(records)
		return s.db.IterateWitnessRecords(ctx, s.opt.Table, prefix,
			func(r *WitnessRecord) error {
				select {
				case records <- r:
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			})
	})

	for i := 0; i < s.opt.Workers; i++ {
		g.Go(func() error {
			for r := range records {
				if err := s.process(r, params); err != nil {
					return err
				}
			}
			return nil
		})
	}

	err := g.Wait()
	snapshot := s.stats.Snapshot()
	if err != nil {
		return snapshot, fmt.Errorf("扫描中断: %w", err)
	}

	logrus.Infof("[Survey] 扫描完成: %s", snapshot)
	return snapshot, nil
}

// process 对一条记录分类，更新计数器并保存结果
func (s *Survey) process(r *WitnessRecord, params *chaincfg.Params) error {
	s.stats.numRecords.Add(1)

	if !IsTaprootRecipient(r.Recipient, params) {
		s.stats.numSkipped.Add(1)
		logrus.Debugf("[Survey] 跳过非 taproot 地址 %s (id=%d)", r.Recipient, r.Id)
		return nil
	}
	s.stats.numTaproot.Add(1)

	rec := &SpendRecord{
		RecordId:  r.Id,
		Txid:      r.Txid,
		Vin:       r.Vin,
		Recipient: r.Recipient,
	}

	class, err := s.classify(r, rec)
	if err != nil {
		s.stats.numMalformed.Add(1)
		rec.SpendType = txscript.SpendInvalid.String()
		rec.WitnessMalformed = true
		logrus.Warnf("[Survey] 记录 %d (%s:%d) 无法解码: %v", r.Id, rec.Txid, rec.Vin, err)
		return s.store.Put(rec)
	}

	rec.SpendType = class.Type.String()
	switch class.Type {
	case txscript.SpendInvalid:
		s.stats.numInvalid.Add(1)

	case txscript.SpendKeyPath:
		s.stats.numKeyPath.Add(1)

	case txscript.SpendScriptPath:
		s.stats.numScriptPath.Add(1)

		rec.Threshold, rec.HasThreshold = class.Threshold, class.HasThreshold
		rec.ChecksigCount = class.ChecksigCount
		rec.TreeDepth, rec.DepthKnown = class.TreeDepth, class.DepthKnown
		rec.ScriptMalformed = class.ScriptMalformed

		if class.HasThreshold {
			increment(s.stats.thresholds, class.Threshold)
		}
		if class.DepthKnown {
			increment(s.stats.depths, class.TreeDepth)
		}
		if class.ScriptMalformed {
			s.stats.numScriptMalformed.Add(1)
		}

		rec.Commitment = checkCommitment(class, r.Recipient, params)
		if rec.Commitment == CommitmentMismatch {
			s.stats.numCommitmentMismatch.Add(1)
			logrus.Warnf("[Survey] %s:%d 的控制块与输出密钥不一致", rec.Txid, rec.Vin)
		}
	}

	logrus.Debugf("[Survey] %s:%d %s", rec.Txid, rec.Vin, class)
	return s.store.Put(rec)
}

// classify 取出记录中的见证并分类。
// 完整交易模式下见证取自交易中序号为 Vin 的输入，交易哈希也从交易计算。
func (s *Survey) classify(r *WitnessRecord, rec *SpendRecord) (txscript.SpendClassification, error) {
	if !s.opt.RawTx {
		return txscript.ClassifyHexWitness(r.Elements())
	}

	var tx wire.MsgTx
	if err := tx.Deserialize(bytes.NewReader(r.RawTx)); err != nil {
		return txscript.SpendClassification{}, fmt.Errorf("解析交易失败: %w", err)
	}
	if int(r.Vin) >= len(tx.TxIn) {
		return txscript.SpendClassification{}, fmt.Errorf("输入序号 %d 超出范围，交易只有 %d 个输入",
			r.Vin, len(tx.TxIn))
	}
	rec.Txid = tx.TxHash().String()

	return txscript.ClassifyWitness(tx.TxIn[r.Vin].Witness), nil
}

// checkCommitment 校验控制块与被揭示的叶子脚本是否打开了收款地址的输出密钥
func checkCommitment(class txscript.SpendClassification, recipient string,
	params *chaincfg.Params) string {

	cb, err := txscript.ParseControlBlock(class.ControlBlock)
	if err != nil {
		return CommitmentUnchecked
	}
	addr, err := btcutil.DecodeAddress(recipient, params)
	if err != nil {
		return CommitmentUnchecked
	}

	err = txscript.VerifyTaprootLeafCommitment(cb, addr.ScriptAddress(), class.LeafScript)
	if err != nil {
		logrus.Debugf("[Survey] 承诺校验失败: %v", err)
		return CommitmentMismatch
	}
	return CommitmentOK
}
