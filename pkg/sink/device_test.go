//go:build !windows

package sink

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestDevice создает файл, играющий роль файла устройства
func newTestDevice(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pcm-device")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	return path
}

func TestDeviceSink_WriteAndClose(t *testing.T) {
	path := newTestDevice(t)

	s, err := NewDeviceSink(DeviceConfig{Path: path}, nil)
	require.NoError(t, err)

	assert.True(t, s.Healthy())
	require.NoError(t, s.Write([]byte{0x01, 0x02}))
	require.NoError(t, s.Write(make([]byte, 960)))
	assert.Zero(t, s.Dropped())

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.False(t, s.Healthy())

	// данные дошли до "устройства"
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, data, 962)
}

func TestDeviceSink_OpenFailure(t *testing.T) {
	_, err := NewDeviceSink(DeviceConfig{Path: "/nonexistent/pcm-device"}, nil)
	require.Error(t, err)

	var sinkErr *SinkError
	require.ErrorAs(t, err, &sinkErr)
	assert.Equal(t, "start", sinkErr.Op)
}

func TestDeviceSink_WriteAfterCloseIsDropped(t *testing.T) {
	path := newTestDevice(t)

	s, err := NewDeviceSink(DeviceConfig{Path: path}, nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// запись в закрытый sink молча сбрасывается, ошибки нет
	assert.NoError(t, s.Write([]byte{0xFF}))
}

func TestDeviceSink_Restart(t *testing.T) {
	path := newTestDevice(t)

	s, err := NewDeviceSink(DeviceConfig{Path: path}, nil)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Restart())
	assert.True(t, s.Healthy())
	require.NoError(t, s.Write([]byte{0x01}))
}
