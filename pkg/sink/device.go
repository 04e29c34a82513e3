//go:build !windows

package sink

import (
	"log/slog"
	"sync"

	"golang.org/x/sys/unix"
)

// DeviceConfig конфигурация прямой записи в файл устройства
type DeviceConfig struct {
	// Path путь к файлу устройства или FIFO, принимающему сырой PCM
	Path string
}

// DeviceSink пишет PCM напрямую в файл устройства в неблокирующем
// режиме. Переполнение буфера устройства (EAGAIN) - штатная ситуация:
// запись сбрасывается, цикл приема не блокируется. Ошибки уровня
// устройства проглатываются и считаются временными.
type DeviceSink struct {
	config DeviceConfig
	log    *slog.Logger

	mu      sync.Mutex
	fd      int
	open    bool
	dropped uint64
}

// NewDeviceSink открывает файл устройства для неблокирующей записи.
// Ошибка открытия фатальна для старта приемника.
func NewDeviceSink(config DeviceConfig, log *slog.Logger) (*DeviceSink, error) {
	if log == nil {
		log = slog.Default()
	}

	fd, err := unix.Open(config.Path, unix.O_WRONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, newSinkError("start", "device:"+config.Path, err)
	}

	return &DeviceSink{config: config, log: log, fd: fd, open: true}, nil
}

// Write выполняет неблокирующую запись PCM в устройство.
// Полный буфер и прочие ошибки устройства не являются ошибками sink:
// запись сбрасывается, возвращается nil.
func (s *DeviceSink) Write(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return nil
	}

	if _, err := unix.Write(s.fd, payload); err != nil {
		// EAGAIN: буфер устройства полон, сбрасываем запись.
		// Прочие ошибки устройства временные - поведение то же.
		s.dropped++
		if err != unix.EAGAIN {
			s.log.Debug("запись в устройство отклонена",
				slog.String("path", s.config.Path),
				slog.String("error", err.Error()))
		}
	}
	return nil
}

// Healthy для устройства всегда true: ошибки записи временные
// и рестарта не требуют.
func (s *DeviceSink) Healthy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// Restart переоткрывает файл устройства
func (s *DeviceSink) Restart() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.open {
		unix.Close(s.fd)
		s.open = false
	}

	fd, err := unix.Open(s.config.Path, unix.O_WRONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return newSinkError("restart", "device:"+s.config.Path, err)
	}
	s.fd = fd
	s.open = true
	return nil
}

// Dropped возвращает количество сброшенных записей
func (s *DeviceSink) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close закрывает файл устройства. Повторные вызовы безопасны.
func (s *DeviceSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return nil
	}
	s.open = false
	return unix.Close(s.fd)
}
