package taprootscan

import (
	"encoding/csv"
	"fmt"
	"strconv"
)

// reportHeader 是报表的列
var reportHeader = []string{
	"txid",
	"vin",
	"spend_type",
	"threshold",
	"checksig_count",
	"tree_depth",
	"commitment",
}

// reportRow 将一条分类结果转换为报表行。
// 阈值和深度未知时为空，签名计数与深度只对脚本路径花费有值。
func reportRow(rec *SpendRecord) []string {
	threshold, checksigs, depth := "", "", ""
	if rec.HasThreshold {
		threshold = strconv.FormatUint(uint64(rec.Threshold), 10)
	}
	if rec.ChecksigCount > 0 {
		checksigs = strconv.FormatUint(uint64(rec.ChecksigCount), 10)
	}
	if rec.DepthKnown {
		depth = strconv.FormatUint(uint64(rec.TreeDepth), 10)
	}

	return []string{
		rec.Txid,
		strconv.FormatUint(uint64(rec.Vin), 10),
		rec.SpendType,
		threshold,
		checksigs,
		depth,
		rec.Commitment,
	}
}

// WriteReport 将结果存储中的所有分类结果按数据表顺序写成 CSV 报表，返回写入的行数
func WriteReport(fs *FileStore, subDir, name string, store *ResultStore) (int, error) {
	file, err := fs.CreateFile(subDir, name)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(reportHeader); err != nil {
		return 0, fmt.Errorf("写入报表失败: %w", err)
	}

	rows := 0
	err = store.ForEach(func(rec *SpendRecord) error {
		rows++
		return w.Write(reportRow(rec))
	})
	if err != nil {
		return rows, fmt.Errorf("写入报表失败: %w", err)
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return rows, fmt.Errorf("写入报表失败: %w", err)
	}

	return rows, file.Close()
}
