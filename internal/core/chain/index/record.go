package index

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/obelisk/v1/pkg/types"
)

// metaRecord 区块元数据的持久化形态
//
// 累计工作量以十进制字符串存储，避免大整数的精度/平台差异。
type metaRecord struct {
	Hash     string   `json:"hash"`
	Height   uint64   `json:"height"`
	Parent   string   `json:"parent"`
	Work     string   `json:"work"`
	Children []string `json:"children,omitempty"`
}

func encodeMeta(meta *types.BlockMetadata) ([]byte, error) {
	record := metaRecord{
		Hash:     meta.Hash.String(),
		Height:   meta.Height,
		Parent:   meta.ParentHash.String(),
		Work:     "0",
		Children: make([]string, 0, len(meta.Children)),
	}
	if meta.CumulativeWork != nil {
		record.Work = meta.CumulativeWork.Text(10)
	}
	for _, child := range meta.Children {
		record.Children = append(record.Children, child.String())
	}
	return json.Marshal(&record)
}

func decodeMeta(data []byte) (*types.BlockMetadata, error) {
	var record metaRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("解析元数据记录失败: %w", err)
	}

	hash, err := types.NewHashFromString(record.Hash)
	if err != nil {
		return nil, fmt.Errorf("元数据哈希无效: %w", err)
	}
	parent, err := types.NewHashFromString(record.Parent)
	if err != nil {
		return nil, fmt.Errorf("元数据父哈希无效: %w", err)
	}

	work, ok := new(big.Int).SetString(record.Work, 10)
	if !ok {
		return nil, fmt.Errorf("元数据工作量无效: %q", record.Work)
	}

	meta := &types.BlockMetadata{
		Hash:           hash,
		Height:         record.Height,
		ParentHash:     parent,
		CumulativeWork: work,
		Children:       make([]types.Hash, 0, len(record.Children)),
	}
	for _, raw := range record.Children {
		child, err := types.NewHashFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("元数据子哈希无效: %w", err)
		}
		meta.Children = append(meta.Children, child)
	}
	return meta, nil
}
