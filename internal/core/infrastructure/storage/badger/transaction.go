package badger

import (
	badgerdb "github.com/dgraph-io/badger/v3"

	interfaces "github.com/obelisk/v1/pkg/interfaces/infrastructure/storage"
)

// transaction 实现Transaction接口（包装Badger事务）
type transaction struct {
	txn *badgerdb.Txn
}

// Get 事务内读取（键不存在时返回 nil, nil）
func (t *transaction) Get(key []byte) ([]byte, error) {
	item, err := t.txn.Get(key)
	if err == badgerdb.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

// Set 事务内写入
func (t *transaction) Set(key, value []byte) error {
	return t.txn.Set(key, value)
}

// Delete 事务内删除
func (t *transaction) Delete(key []byte) error {
	return t.txn.Delete(key)
}

// 编译时检查
var _ interfaces.Transaction = (*transaction)(nil)
