//go:build windows

package sink

import (
	"fmt"
	"log/slog"
)

// DeviceConfig конфигурация прямой записи в файл устройства
type DeviceConfig struct {
	// Path путь к файлу устройства или FIFO, принимающему сырой PCM
	Path string
}

// NewDeviceSink на Windows не поддерживается: нет файлов устройств
// с неблокирующей записью. Используйте ProcessSink.
func NewDeviceSink(config DeviceConfig, log *slog.Logger) (Sink, error) {
	return nil, newSinkError("start", "device:"+config.Path,
		fmt.Errorf("прямая запись в устройство не поддерживается на Windows"))
}
