// Package storage 提供系统的键值存储接口定义
//
// 💾 **键值存储服务 (Key-Value Storage Service)**
//
// 本文件定义了系统的键值存储接口，专注于：
// - 高性能存储：BadgerDB 的原生高性能键值存储能力
// - 事务支持：支持 ACID 事务和批量操作
// - 前缀扫描：高效的数据遍历和查询机制
//
// 🎯 **设计原则**
// - 性能优先：充分利用底层存储引擎的性能优势
// - 数据安全：支持事务和数据完整性保障
// - 易用性：简洁的接口设计和错误处理
//
// 🔗 **组件关系**
// - KVStore：被区块元数据、分支、回滚记录等模块使用
// - 与 Transaction：事务内操作的统一抽象
package storage

import "context"

// KVStore 定义了键值存储的应用接口
//
// 提供简单易用的键值存储操作，适用于需要高性能键值操作的场景。
// 可用于实现索引、状态存储、回滚记录存储等功能。
type KVStore interface {
	// Close 关闭数据库连接
	//
	// 确保所有待处理的事务被提交，数据被正确写入磁盘。
	// 应用关闭时必须调用此方法以避免数据损坏。
	Close() error

	// Get 获取指定键的值
	//
	// 如果键不存在，返回 nil 值和 nil 错误。
	Get(ctx context.Context, key []byte) ([]byte, error)

	// Set 设置键值对
	//
	// 如果键已存在，将覆盖原有值。
	Set(ctx context.Context, key, value []byte) error

	// Delete 删除指定键的值
	//
	// 如果键不存在，不会返回错误。
	Delete(ctx context.Context, key []byte) error

	// Exists 检查键是否存在
	Exists(ctx context.Context, key []byte) (bool, error)

	// PrefixScan 扫描指定前缀的所有键值对
	//
	// 返回 map 的键为键的字符串表示。
	// 大前缀扫描应在事务外执行（事务内只做确定性键列表的写删）。
	PrefixScan(ctx context.Context, prefix []byte) (map[string][]byte, error)

	// RunInTransaction 在单个事务中执行一组操作
	//
	// fn 返回错误时整个事务回滚；否则原子提交。
	// 事务内不允许再发起 PrefixScan 等嵌套读扫描。
	RunInTransaction(ctx context.Context, fn func(tx Transaction) error) error
}

// Transaction 事务内操作接口
type Transaction interface {
	// Get 事务内读取
	Get(key []byte) ([]byte, error)

	// Set 事务内写入
	Set(key, value []byte) error

	// Delete 事务内删除
	Delete(key []byte) error
}
