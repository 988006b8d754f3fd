package taprootscan

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// SqliteDB 封装了见证数据集所在的 sqlite 数据库
type SqliteDB struct {
	db *sql.DB
}

// NewSqliteDB 在指定目录打开（必要时创建）sqlite 数据库
func NewSqliteDB(dir, file string) (*SqliteDB, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("创建数据库目录失败: %w", err)
	}

	db, err := sql.Open("sqlite3", filepath.Join(dir, file))
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}

	return &SqliteDB{db: db}, nil
}

// Close 关闭数据库
func (s *SqliteDB) Close() error {
	return s.db.Close()
}

// CreateTable 创建数据表，表已存在时不做任何事
func (s *SqliteDB) CreateTable(name string, columns []string) error {
	query := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s);", name,
		strings.Join(columns, ", "))
	_, err := s.db.Exec(query)
	return err
}

// Insert 向数据表插入一行，data 的键为列名
func (s *SqliteDB) Insert(table string, data map[string]interface{}) error {
	columns := make([]string, 0, len(data))
	for column := range data {
		columns = append(columns, column)
	}
	sort.Strings(columns)

	placeholders := make([]string, len(columns))
	args := make([]interface{}, len(columns))
	for i, column := range columns {
		placeholders[i] = "?"
		args[i] = data[column]
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s);", table,
		strings.Join(columns, ", "), strings.Join(placeholders, ", "))
	_, err := s.db.Exec(query, args...)
	return err
}

// Exists 判断满足所有条件的行是否存在
func (s *SqliteDB) Exists(table string, conditions []string, args []interface{}) (bool, error) {
	query := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE %s);", table,
		strings.Join(conditions, " AND "))

	var exists bool
	if err := s.db.QueryRow(query, args...).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// WitnessRecord 是见证数据表中的一行
type WitnessRecord struct {
	Id              int64  // 自增长主键
	Txid            string // 花费交易的哈希
	Vin             uint32 // 输入序号
	Recipient       string // 被花费输出的地址
	SpendingWitness string // 逗号分隔的十六进制见证元素
	RawTx           []byte // 序列化的完整交易
}

// Elements 返回逗号分隔的见证元素，空见证返回 nil
func (r *WitnessRecord) Elements() []string {
	if r.SpendingWitness == "" {
		return nil
	}
	return strings.Split(r.SpendingWitness, ",")
}

// ExistsWitnessRecord 判断某个交易输入是否已经存在
func (s *SqliteDB) ExistsWitnessRecord(table, txid string, vin uint32) (bool, error) {
	conditions := []string{"txid=?", "vin=?"} // 查询条件
	args := []interface{}{txid, vin}          // 查询条件对应的值
	exists, err := s.Exists(table, conditions, args)
	if err != nil {
		return exists, fmt.Errorf("数据库操作失败: %w", err)
	}

	return exists, nil
}

// InsertWitnessRecord 保存一条见证记录
func (s *SqliteDB) InsertWitnessRecord(table string, r *WitnessRecord) error {
	data := map[string]interface{}{
		"txid":             r.Txid,            // 花费交易的哈希
		"vin":              r.Vin,             // 输入序号
		"recipient":        r.Recipient,       // 被花费输出的地址
		"spending_witness": r.SpendingWitness, // 见证元素
		"raw_tx":           r.RawTx,           // 完整交易
	}

	if err := s.Insert(table, data); err != nil {
		return fmt.Errorf("数据库操作失败: %w", err)
	}

	return nil
}

// IterateWitnessRecords 按主键顺序遍历地址以 recipientPrefix 开头的记录。
// 回调返回错误或上下文被取消时停止遍历。
func (s *SqliteDB) IterateWitnessRecords(ctx context.Context, table, recipientPrefix string,
	fn func(*WitnessRecord) error) error {

	query := fmt.Sprintf("SELECT id, txid, vin, recipient, "+
		"COALESCE(spending_witness, ''), raw_tx FROM %s "+
		"WHERE recipient LIKE ? ORDER BY id ASC;", table)
	rows, err := s.db.QueryContext(ctx, query, recipientPrefix+"%")
	if err != nil {
		return fmt.Errorf("查询见证记录失败: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		r := new(WitnessRecord)
		if err := rows.Scan(&r.Id, &r.Txid, &r.Vin, &r.Recipient,
			&r.SpendingWitness, &r.RawTx); err != nil {
			return fmt.Errorf("读取见证记录失败: %w", err)
		}
		if err := fn(r); err != nil {
			return err
		}
	}

	return rows.Err()
}
