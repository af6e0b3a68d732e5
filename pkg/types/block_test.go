package types_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obelisk/v1/pkg/types"
)

func sampleHeader() *types.BlockHeader {
	var parent, merkle types.Hash
	parent[0], parent[31] = 0xab, 0x01
	merkle[0], merkle[31] = 0xcd, 0x02
	return &types.BlockHeader{
		Version:      7,
		Height:       123456,
		PreviousHash: parent,
		MerkleRoot:   merkle,
		Timestamp:    1735689600,
		Bits:         0x1d00ffff,
		Nonce:        0xdeadbeefcafe0042,
	}
}

// 编码长度必须与 HeaderSize 一致：GetBlock 以该常量切分头部与载荷，
// 任何偏差都会让载荷前缀混入头部字段。
func TestBlockHeader_SerializeLength(t *testing.T) {
	encoded := sampleHeader().Serialize()
	assert.Len(t, encoded, types.HeaderSize)
}

func TestBlockHeader_CodecRoundTrip(t *testing.T) {
	original := sampleHeader()

	decoded, err := types.DeserializeBlockHeader(original.Serialize())
	require.NoError(t, err)

	assert.Equal(t, original, decoded)
	// 区块身份必须在编解码后保持不变（元数据以哈希为主键）
	assert.Equal(t, original.BlockHash(), decoded.BlockHash())
}

func TestBlockHeader_NonceSurvivesRoundTrip(t *testing.T) {
	original := sampleHeader()

	decoded, err := types.DeserializeBlockHeader(original.Serialize())
	require.NoError(t, err)
	assert.Equal(t, original.Nonce, decoded.Nonce)
}

func TestDeserializeBlockHeader_RejectsBadLength(t *testing.T) {
	_, err := types.DeserializeBlockHeader(make([]byte, types.HeaderSize-1))
	assert.Error(t, err)

	_, err = types.DeserializeBlockHeader(make([]byte, types.HeaderSize+1))
	assert.Error(t, err)
}
