// internal/services/config_service_test.go
package services

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Corphon/LiveVision/internal/config"
	"github.com/Corphon/LiveVision/internal/utils"
)

type recordingSubscriber struct {
	changes [][2]config.EmotionConfig
}

func (r *recordingSubscriber) OnConfigChanged(oldConfig, newConfig config.EmotionConfig) {
	r.changes = append(r.changes, [2]config.EmotionConfig{oldConfig, newConfig})
}

func newConfigService(t *testing.T) *ConfigService {
	t.Helper()
	logger := utils.NewLogger(&bytes.Buffer{}, utils.ERROR)
	store, err := config.NewEmotionConfigStore(filepath.Join(t.TempDir(), "emotion-config.json"), "", config.EmotionConfig{Endpoint: "http://env"}, logger)
	require.NoError(t, err)
	return NewConfigService(store, logger)
}

func TestConfigServiceUpdateNotifiesAndRecords(t *testing.T) {
	svc := newConfigService(t)
	sub := &recordingSubscriber{}
	svc.Subscribe(sub)

	saved, err := svc.Update(config.EmotionConfig{Endpoint: " http://new ", Token: "secret-token"}, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "http://new", saved.Endpoint)
	assert.Equal(t, saved, svc.Get())

	require.Len(t, sub.changes, 1)
	assert.Equal(t, "http://env", sub.changes[0][0].Endpoint)
	assert.Equal(t, "secret-token", sub.changes[0][1].Token)

	history := svc.History()
	require.Len(t, history, 1)
	assert.Equal(t, "10.0.0.1", history[0].ChangedBy)
	assert.Equal(t, "****oken", history[0].NewValue.Token)
}

func TestConfigServiceHistoryIsBounded(t *testing.T) {
	svc := newConfigService(t)
	for i := 0; i < maxChangeHistory+5; i++ {
		_, err := svc.Update(config.EmotionConfig{Model: "m"}, "cli")
		require.NoError(t, err)
	}
	assert.Len(t, svc.History(), maxChangeHistory)
}
