package taprootscan

import "fmt"

// InitDBTable 数据库表
func (s *SqliteDB) InitDBTable(table string) error {
	// 创建见证数据表
	if err := s.createInputsTable(table); err != nil {
		return err
	}

	return nil
}

// createInputsTable 创建见证数据表
// 每行对应一个交易输入：要么保存逗号分隔的十六进制见证元素，要么保存整笔原始交易。
func (s *SqliteDB) createInputsTable(table string) error {
	columns := []string{
		"id INTEGER PRIMARY KEY AUTOINCREMENT", // 自增长主键
		"txid VARCHAR(64)",                     // 花费交易的哈希
		"vin INTEGER",                          // 输入序号
		"recipient VARCHAR(100)",               // 被花费输出的地址
		"spending_witness TEXT",                // 逗号分隔的十六进制见证元素
		"raw_tx BLOB",                          // 序列化的完整交易
	}

	// 创建表
	if err := s.CreateTable(table, columns); err != nil {
		return fmt.Errorf("创建数据表 %s 失败: %w", table, err)
	}

	return nil
}
