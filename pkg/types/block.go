// Package types provides blockchain type definitions.
package types

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// BlockHeader 区块头（跨模块数据结构）
//
// 🎯 **设计说明**：
// - 链状态核心只关心头部字段：高度、父哈希、难度目标、时间戳
// - 交易内容对本核心不透明（由账本协作者解释），因此不在此定义
// - 哈希计算采用确定性二进制编码 + DoubleSHA256，与外部验证器保持一致
type BlockHeader struct {
	// Version 区块版本号
	Version uint32 `json:"version"`

	// Height 区块高度（创世区块为 0）
	Height uint64 `json:"height"`

	// PreviousHash 父区块哈希（创世区块为 ZeroHash）
	PreviousHash Hash `json:"previous_hash"`

	// MerkleRoot 交易默克尔根（由外部验证器校验，此处仅参与哈希）
	MerkleRoot Hash `json:"merkle_root"`

	// Timestamp 区块时间戳（Unix 秒）
	Timestamp int64 `json:"timestamp"`

	// Bits 压缩难度目标（compact 编码，与 PoW 验证规则一致）
	Bits uint32 `json:"bits"`

	// Nonce PoW 随机数
	Nonce uint64 `json:"nonce"`
}

// HeaderSize 区块头编码长度（4+8+32+32+8+4+8 字节）
const HeaderSize = 96

// Serialize 返回区块头的确定性二进制编码（固定 HeaderSize 字节）。
//
// 编码顺序：Version | Height | PreviousHash | MerkleRoot | Timestamp | Bits | Nonce
// 全部采用小端序。该编码是区块身份的唯一来源，任何改动都是共识变更。
func (h *BlockHeader) Serialize() []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.Version)
	binary.LittleEndian.PutUint64(buf[4:12], h.Height)
	copy(buf[12:44], h.PreviousHash[:])
	copy(buf[44:76], h.MerkleRoot[:])
	binary.LittleEndian.PutUint64(buf[76:84], uint64(h.Timestamp))
	binary.LittleEndian.PutUint32(buf[84:88], h.Bits)
	binary.LittleEndian.PutUint64(buf[88:96], h.Nonce)
	return buf
}

// BlockHash 计算区块哈希：DoubleSHA256(Serialize())
func (h *BlockHeader) BlockHash() Hash {
	return chainhash.DoubleHashH(h.Serialize())
}

// DeserializeBlockHeader 从确定性二进制编码还原区块头。
func DeserializeBlockHeader(data []byte) (*BlockHeader, error) {
	if len(data) != HeaderSize {
		return nil, fmt.Errorf("区块头长度无效: %d", len(data))
	}
	h := &BlockHeader{}
	h.Version = binary.LittleEndian.Uint32(data[0:4])
	h.Height = binary.LittleEndian.Uint64(data[4:12])
	copy(h.PreviousHash[:], data[12:44])
	copy(h.MerkleRoot[:], data[44:76])
	h.Timestamp = int64(binary.LittleEndian.Uint64(data[76:84]))
	h.Bits = binary.LittleEndian.Uint32(data[84:88])
	h.Nonce = binary.LittleEndian.Uint64(data[88:96])
	return h, nil
}

// Block 区块（头 + 对本核心不透明的交易载荷）
type Block struct {
	Header *BlockHeader `json:"header"`

	// Payload 区块体的原始编码。链状态核心从不解释其内容，
	// 只在调用账本 Apply/Undo 时原样传递。
	Payload []byte `json:"payload,omitempty"`
}

// Hash 返回区块哈希（等价于 Header.BlockHash）。
func (b *Block) Hash() Hash {
	return b.Header.BlockHash()
}

// BlockMetadata 区块元数据记录（链图索引的节点）
//
// 不变量：
//   - 非创世区块：CumulativeWork = parent.CumulativeWork + work(本块)，
//     Height = parent.Height + 1
//   - 创世区块：ParentHash == ZeroHash，Height == 0，CumulativeWork == 自身工作量
//   - 所有记录构成以创世为根的树（父子均以哈希引用，不存在所有权环）
type BlockMetadata struct {
	// Hash 区块哈希（记录主键）
	Hash Hash `json:"hash"`

	// Height 区块高度
	Height uint64 `json:"height"`

	// ParentHash 父区块哈希
	ParentHash Hash `json:"parent_hash"`

	// CumulativeWork 从创世累积到本块的工作量总和
	CumulativeWork *big.Int `json:"cumulative_work"`

	// Children 已知子区块哈希集合（同一父块允许多个子块，即分叉）
	Children []Hash `json:"children"`
}

// IsGenesis 判断该记录是否为创世区块。
func (m *BlockMetadata) IsGenesis() bool {
	return m.Height == 0 && m.ParentHash == ZeroHash
}

// Clone 返回元数据的深拷贝（上层可安全修改，不影响存储缓存）。
func (m *BlockMetadata) Clone() *BlockMetadata {
	if m == nil {
		return nil
	}
	cp := &BlockMetadata{
		Hash:       m.Hash,
		Height:     m.Height,
		ParentHash: m.ParentHash,
	}
	if m.CumulativeWork != nil {
		cp.CumulativeWork = new(big.Int).Set(m.CumulativeWork)
	}
	if len(m.Children) > 0 {
		cp.Children = make([]Hash, len(m.Children))
		copy(cp.Children, m.Children)
	}
	return cp
}

// UndoRecord 回滚记录（由账本协作者生成，本核心负责持久化）
//
// 不变量：apply(block) 后紧接 undo(block, record) 必须将账本恢复到
// apply 之前的状态（字节级一致）。Data 的内部格式由账本定义，
// 本核心只做压缩存储与按哈希取回。
type UndoRecord struct {
	// BlockHash 所属区块哈希（存储键）
	BlockHash Hash `json:"block_hash"`

	// Height 所属区块高度（用于保留窗口裁剪）
	Height uint64 `json:"height"`

	// Data 账本回滚数据（对本核心不透明）
	Data []byte `json:"data"`
}
