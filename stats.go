package taprootscan

import (
	"fmt"
	"sort"
	"strconv"
	"sync/atomic"

	cmap "github.com/orcaman/concurrent-map/v2"
)

// Stats 是一次扫描的计数器，可被多个工作协程并发更新
type Stats struct {
	numRecords            atomic.Int64 // 读取的记录数
	numSkipped            atomic.Int64 // 收款地址不是 taproot 地址的记录数
	numTaproot            atomic.Int64 // taproot 输入数
	numKeyPath            atomic.Int64 // 密钥路径花费数
	numScriptPath         atomic.Int64 // 脚本路径花费数
	numInvalid            atomic.Int64 // 无效（空）见证数
	numMalformed          atomic.Int64 // 无法解码的记录数
	numScriptMalformed    atomic.Int64 // 叶子脚本无法解码的脚本路径花费数
	numCommitmentMismatch atomic.Int64 // 控制块与输出密钥不一致的脚本路径花费数

	thresholds cmap.ConcurrentMap[string, int64] // 阈值分布
	depths     cmap.ConcurrentMap[string, int64] // 树深度分布
}

// NewStats 返回一组清零的计数器
func NewStats() *Stats {
	return &Stats{
		thresholds: cmap.New[int64](),
		depths:     cmap.New[int64](),
	}
}

// increment 将 key 对应的计数加一
func increment(m cmap.ConcurrentMap[string, int64], key uint32) {
	m.Upsert(strconv.FormatUint(uint64(key), 10), 1,
		func(exist bool, valueInMap int64, newValue int64) int64 {
			if exist {
				return valueInMap + newValue
			}
			return newValue
		})
}

// StatsSnapshot 是计数器在某一时刻的副本
type StatsSnapshot struct {
	Records            int64
	Skipped            int64
	Taproot            int64
	KeyPath            int64
	ScriptPath         int64
	Invalid            int64
	Malformed          int64
	ScriptMalformed    int64
	CommitmentMismatch int64

	Thresholds map[uint32]int64
	Depths     map[uint32]int64
}

// Snapshot 返回计数器的副本
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Records:            s.numRecords.Load(),
		Skipped:            s.numSkipped.Load(),
		Taproot:            s.numTaproot.Load(),
		KeyPath:            s.numKeyPath.Load(),
		ScriptPath:         s.numScriptPath.Load(),
		Invalid:            s.numInvalid.Load(),
		Malformed:          s.numMalformed.Load(),
		ScriptMalformed:    s.numScriptMalformed.Load(),
		CommitmentMismatch: s.numCommitmentMismatch.Load(),
		Thresholds:         histogram(s.thresholds),
		Depths:             histogram(s.depths),
	}
}

// histogram 将字符串键的分布转换为数值键
func histogram(m cmap.ConcurrentMap[string, int64]) map[uint32]int64 {
	out := make(map[uint32]int64, m.Count())
	for k, v := range m.Items() {
		n, err := strconv.ParseUint(k, 10, 32)
		if err != nil {
			continue
		}
		out[uint32(n)] = v
	}
	return out
}

// String 返回计数器的摘要
func (s StatsSnapshot) String() string {
	return fmt.Sprintf("records=%d skipped=%d taproot=%d keypath=%d "+
		"scriptpath=%d invalid=%d malformed=%d script_malformed=%d "+
		"commitment_mismatch=%d thresholds=%s depths=%s", s.Records,
		s.Skipped, s.Taproot, s.KeyPath, s.ScriptPath, s.Invalid,
		s.Malformed, s.ScriptMalformed, s.CommitmentMismatch,
		formatHistogram(s.Thresholds), formatHistogram(s.Depths))
}

// formatHistogram 按键升序显示分布，例如 {1:3 2:5}
func formatHistogram(h map[uint32]int64) string {
	keys := make([]uint32, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	str := "{"
	for i, k := range keys {
		if i > 0 {
			str += " "
		}
		str += fmt.Sprintf("%d:%d", k, h[k])
	}
	return str + "}"
}
