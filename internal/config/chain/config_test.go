package chain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	chainconfig "github.com/obelisk/v1/internal/config/chain"
)

func TestNew_DefaultsWhenNil(t *testing.T) {
	cfg := chainconfig.New(nil)
	require.NoError(t, cfg.Validate())

	opts := cfg.GetOptions()
	assert.Equal(t, uint32(100), opts.MaxReorgDepth)
	assert.Equal(t, 100, opts.OrphanPoolCapacity)
	assert.Equal(t, 20*time.Minute, opts.OrphanTTL)
}

// 装入 interface{} 的空指针不等于 nil，覆盖逻辑必须把它当作"无用户配置"处理
func TestNew_TypedNilPointerUsesDefaults(t *testing.T) {
	var user *chainconfig.ChainOptions

	cfg := chainconfig.New(user)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, uint32(100), cfg.GetOptions().MaxReorgDepth)
}

func TestNew_UserOverridesKeepDefaultsForZeroFields(t *testing.T) {
	cfg := chainconfig.New(&chainconfig.ChainOptions{MaxReorgDepth: 7})
	require.NoError(t, cfg.Validate())

	opts := cfg.GetOptions()
	assert.Equal(t, uint32(7), opts.MaxReorgDepth)
	assert.Equal(t, 100, opts.OrphanPoolCapacity) // 未覆盖字段保持默认
}
