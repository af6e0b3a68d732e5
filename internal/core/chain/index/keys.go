package index

import (
	"encoding/binary"
	"fmt"

	"github.com/obelisk/v1/pkg/types"
)

// 存储键布局
//
// - indices:meta:{hash}    -> 区块元数据记录（JSON）
// - indices:height:{height} -> 主链该高度的区块哈希（32 字节）
// - blocks:{hash}          -> 区块原文 header(HeaderSize) + payload
// - state:chain:tip        -> 主链链尖 height(8, 大端) + hash(32)
const (
	metaKeyPrefix   = "indices:meta:"
	heightKeyPrefix = "indices:height:"
	blockKeyPrefix  = "blocks:"
	tipKey          = "state:chain:tip"
)

func metaKey(hash types.Hash) []byte {
	return []byte(metaKeyPrefix + hash.String())
}

func heightKey(height uint64) []byte {
	return []byte(fmt.Sprintf("%s%d", heightKeyPrefix, height))
}

func blockKey(hash types.Hash) []byte {
	return []byte(blockKeyPrefix + hash.String())
}

// encodeTip 编码链尖值：height(8) + hash(32)
func encodeTip(height uint64, hash types.Hash) []byte {
	value := make([]byte, 40)
	binary.BigEndian.PutUint64(value[:8], height)
	copy(value[8:], hash[:])
	return value
}

// decodeTip 解码链尖值
func decodeTip(value []byte) (uint64, types.Hash, error) {
	if len(value) != 40 {
		return 0, types.ZeroHash, fmt.Errorf("链尖数据无效 len=%d", len(value))
	}
	height := binary.BigEndian.Uint64(value[:8])
	hash, err := types.NewHashFromBytes(value[8:])
	if err != nil {
		return 0, types.ZeroHash, err
	}
	return height, hash, nil
}
