package taprootscan

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"
)

// resultPrefix 是分类结果键的前缀
var resultPrefix = []byte("cls-")

// ResultStore 将每个输入的分类结果保存在 badger 中。
// 键为前缀加记录主键与输入序号的大端编码，遍历顺序与数据表顺序一致。
type ResultStore struct {
	db *badger.DB
}

// OpenResultStore 打开结果存储，inMemory 为真时不落盘
func OpenResultStore(path string, inMemory bool) (*ResultStore, error) {
	var opts badger.Options
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(path) // 设置 Badger 数据库选项
		opts.ValueDir = path
	}
	opts = opts.WithLogger(nil)

	var db *badger.DB
	var err error
	if inMemory {
		db, err = badger.Open(opts)
	} else {
		db, err = openDB(path, opts)
	}
	if err != nil {
		return nil, err
	}

	return &ResultStore{db: db}, nil
}

// Close 关闭结果存储
func (s *ResultStore) Close() error {
	return s.db.Close()
}

// resultKey 返回记录主键与输入序号对应的键
func resultKey(id int64, vin uint32) []byte {
	key := make([]byte, len(resultPrefix)+12)
	copy(key, resultPrefix)
	binary.BigEndian.PutUint64(key[len(resultPrefix):], uint64(id))
	binary.BigEndian.PutUint32(key[len(resultPrefix)+8:], vin)
	return key
}

// Put 保存一条分类结果，相同的键会被覆盖
func (s *ResultStore) Put(rec *SpendRecord) error {
	v, err := EncodeToBytes(rec)
	if err != nil {
		return fmt.Errorf("编码分类结果失败: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(resultKey(rec.RecordId, rec.Vin), v)
	})
}

// Get 读取一条分类结果，不存在时返回 nil
func (s *ResultStore) Get(id int64, vin uint32) (*SpendRecord, error) {
	var rec *SpendRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(resultKey(id, vin))
		if err == badger.ErrKeyNotFound {
			return nil
		} else if err != nil {
			return err
		}

		return item.Value(func(v []byte) error {
			rec = new(SpendRecord)
			return DecodeFromBytes(v, rec)
		})
	})
	if err != nil {
		return nil, err
	}

	return rec, nil
}

// ForEach 按键顺序遍历所有分类结果
func (s *ResultStore) ForEach(fn func(*SpendRecord) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = resultPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		// 使用前缀来查找所有分类结果
		for it.Seek(resultPrefix); it.ValidForPrefix(resultPrefix); it.Next() {
			v, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			rec := new(SpendRecord)
			if err := DecodeFromBytes(v, rec); err != nil {
				return fmt.Errorf("解码分类结果失败: %w", err)
			}
			if err := fn(rec); err != nil {
				return err
			}
		}

		return nil
	})
}

// Count 返回保存的分类结果数量
func (s *ResultStore) Count() (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		// 要启用仅可以用键迭代，需要将 IteratorOptions.PrefetchValues 字段设置为 false
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(resultPrefix); it.ValidForPrefix(resultPrefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// Reset 删除所有分类结果，每次扫描开始前调用
func (s *ResultStore) Reset() error {
	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(resultPrefix); it.ValidForPrefix(resultPrefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return err
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range keys {
		if err := wb.Delete(key); err != nil {
			return fmt.Errorf("删除分类结果失败: %w", err)
		}
	}
	return wb.Flush()
}

// openDB 打开数据库，如果因为存在 LOCK 文件打开失败，执行 retry 确保打开
func openDB(path string, opts badger.Options) (*badger.DB, error) {
	db, err := badger.Open(opts)
	if err != nil && strings.Contains(err.Error(), "LOCK") {
		db, err = retry(path, opts)
		if err != nil {
			return nil, fmt.Errorf("无法解锁数据库: %w", err)
		}
		return db, nil
	} else if err != nil {
		return nil, err
	}
	return db, nil
}

// retry 删除 lock 文件，并再次尝试打开数据库
func retry(path string, opts badger.Options) (*badger.DB, error) {
	lockPath := filepath.Join(path, "LOCK")

	// 检查锁文件是否可以安全删除
	if err := checkLock(lockPath); err != nil {
		return nil, err
	}

	if err := os.Remove(lockPath); err != nil {
		return nil, fmt.Errorf("移除 LOCK: %w", err)
	}

	var db *badger.DB
	var err error
	for i := 0; i < 3; i++ {
		db, err = badger.Open(opts)
		if err == nil {
			return db, nil
		}
		logrus.Errorf("打开数据库失败，%d 秒后重试", i+1)
		time.Sleep(time.Duration(i+1) * time.Second)
	}

	return nil, fmt.Errorf("打开数据库失败: %w", err)
}

// checkLock 检查锁文件是否可以安全删除
func checkLock(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("打开 LOCK 文件失败: %w", err)
	}
	defer file.Close()

	// 尝试获取文件锁
	err = syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
	if err != nil {
		return fmt.Errorf("数据库正被其他进程使用: %w", err)
	}
	return syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
}
