// Package badger 提供基于BadgerDB的存储实现
package badger

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	badgerdb "github.com/dgraph-io/badger/v3"

	badgerconfig "github.com/obelisk/v1/internal/config/storage/badger"
	log "github.com/obelisk/v1/pkg/interfaces/infrastructure/log"
	interfaces "github.com/obelisk/v1/pkg/interfaces/infrastructure/storage"
)

// Store 实现KVStore接口
type Store struct {
	db     *badgerdb.DB
	config *badgerconfig.Config
	logger log.Logger

	// 避免 Close 过程中仍有写入进行，触发 Badger 内部断言退出
	closing int32
	writeWg sync.WaitGroup
}

// New 创建新的Store实例并打开数据库
func New(config *badgerconfig.Config, logger log.Logger) (interfaces.KVStore, error) {
	if config == nil {
		config = badgerconfig.New(nil)
	}
	if logger == nil {
		logger = nopLogger{}
	}

	store := &Store{
		config: config,
		logger: logger,
	}

	var opts badgerdb.Options
	if config.IsInMemory() {
		opts = badgerdb.DefaultOptions("").WithInMemory(true)
		logger.Info("初始化内存模式BadgerDB存储")
	} else {
		dataDir := config.GetPath()
		if err := os.MkdirAll(dataDir, 0700); err != nil {
			return nil, fmt.Errorf("无法创建BadgerDB数据目录 %s: %w", dataDir, err)
		}
		opts = badgerdb.DefaultOptions(dataDir)
		logger.Infof("初始化BadgerDB存储，数据目录: %s", dataDir)
	}

	opts.SyncWrites = config.IsSyncWritesEnabled()
	if config.GetMemTableSize() > 0 {
		opts.MemTableSize = config.GetMemTableSize()
	}
	// 控制缓存占用：链状态核心的工作集主要是元数据索引，64MB 足够
	opts.BlockCacheSize = 64 << 20
	opts.IndexCacheSize = 64 << 20
	opts.NumMemtables = 2
	opts.Logger = newBadgerLogger(logger)

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("无法打开BadgerDB: %w", err)
	}
	store.db = db

	return store, nil
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	if !atomic.CompareAndSwapInt32(&s.closing, 0, 1) {
		return nil
	}
	// 等待在途写入完成后再关闭
	s.writeWg.Wait()
	return s.db.Close()
}

// Get 获取指定键的值（键不存在时返回 nil, nil）
func (s *Store) Get(ctx context.Context, key []byte) ([]byte, error) {
	var value []byte
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err == badgerdb.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取键失败 key=%s: %w", string(key), err)
	}
	return value, nil
}

// Set 设置键值对
func (s *Store) Set(ctx context.Context, key, value []byte) error {
	if err := s.beginWrite(); err != nil {
		return err
	}
	defer s.writeWg.Done()

	return s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(key, value)
	})
}

// Delete 删除指定键的值
func (s *Store) Delete(ctx context.Context, key []byte) error {
	if err := s.beginWrite(); err != nil {
		return err
	}
	defer s.writeWg.Done()

	return s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Delete(key)
	})
}

// Exists 检查键是否存在
func (s *Store) Exists(ctx context.Context, key []byte) (bool, error) {
	err := s.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get(key)
		return err
	})
	if err == badgerdb.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// PrefixScan 扫描指定前缀的所有键值对
func (s *Store) PrefixScan(ctx context.Context, prefix []byte) (map[string][]byte, error) {
	result := make(map[string][]byte)
	err := s.db.View(func(txn *badgerdb.Txn) error {
		it := txn.NewIterator(badgerdb.IteratorOptions{
			PrefetchValues: true,
			PrefetchSize:   100,
			Prefix:         prefix,
		})
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			result[string(item.KeyCopy(nil))] = value
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("前缀扫描失败 prefix=%s: %w", string(prefix), err)
	}
	return result, nil
}

// RunInTransaction 在单个事务中执行一组操作
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx interfaces.Transaction) error) error {
	if err := s.beginWrite(); err != nil {
		return err
	}
	defer s.writeWg.Done()

	return s.db.Update(func(txn *badgerdb.Txn) error {
		return fn(&transaction{txn: txn})
	})
}

// beginWrite 登记一次在途写入；存储已进入关闭流程时拒绝
func (s *Store) beginWrite() error {
	if atomic.LoadInt32(&s.closing) != 0 {
		return fmt.Errorf("存储正在关闭，拒绝写入")
	}
	s.writeWg.Add(1)
	if atomic.LoadInt32(&s.closing) != 0 {
		s.writeWg.Done()
		return fmt.Errorf("存储正在关闭，拒绝写入")
	}
	return nil
}

// 编译时检查
var _ interfaces.KVStore = (*Store)(nil)

// nopLogger 可选日志依赖未注入时的兜底实现
type nopLogger struct{}

func (nopLogger) Debug(string)                  {}
func (nopLogger) Debugf(string, ...interface{}) {}
func (nopLogger) Info(string)                   {}
func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warn(string)                   {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Error(string)                  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Fatal(string)                  {}
func (nopLogger) Fatalf(string, ...interface{}) {}
func (n nopLogger) With(...interface{}) log.Logger {
	return n
}
func (nopLogger) Sync() error { return nil }

// badgerLogger 将Badger内部日志桥接到系统日志
type badgerLogger struct {
	logger log.Logger
}

func newBadgerLogger(logger log.Logger) *badgerLogger {
	return &badgerLogger{logger: logger}
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Errorf("badger: "+format, args...)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warnf("badger: "+format, args...)
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debugf("badger: "+format, args...)
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debugf("badger: "+format, args...)
}
