// Package types provides blockchain type definitions.
package types

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Hash 区块/交易统一标识（32 字节）
//
// 直接复用 btcsuite 的 chainhash.Hash：
// - 序列化/反序列化、字符串表示均为成熟实现
// - 与外部 PoW 验证器使用同一标识类型，避免转换损耗
type Hash = chainhash.Hash

// ZeroHash 全零哈希
//
// 语义约定：创世区块的父哈希为 ZeroHash（创世哨兵）。
// 元数据存储只接受唯一一个以 ZeroHash 为父的区块。
var ZeroHash = chainhash.Hash{}

// NewHashFromBytes 从字节切片构造 Hash
//
// 长度不等于 32 时返回错误（由 chainhash 内部校验）。
func NewHashFromBytes(b []byte) (Hash, error) {
	var h Hash
	if err := h.SetBytes(b); err != nil {
		return ZeroHash, err
	}
	return h, nil
}

// NewHashFromString 从十六进制字符串构造 Hash
func NewHashFromString(s string) (Hash, error) {
	h, err := chainhash.NewHashFromStr(s)
	if err != nil {
		return ZeroHash, err
	}
	return *h, nil
}

// ShortHash 返回哈希的短表示（前 8 个十六进制字符），用于日志输出。
func ShortHash(h Hash) string {
	s := h.String()
	if len(s) > 8 {
		return s[:8]
	}
	return s
}
