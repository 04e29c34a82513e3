// Package service собирает компоненты приемника в единый сервис:
// цикл приема RTP, HTTP API состояния и mDNS публикацию.
package service

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arzzra/audio_receiver/pkg/discovery"
	"github.com/arzzra/audio_receiver/pkg/receiver"
	"github.com/arzzra/audio_receiver/pkg/sink"
	"github.com/arzzra/audio_receiver/pkg/status"
)

// Config конфигурация сервиса. Все значения фиксируются на время
// жизни процесса - горячая переконфигурация не поддерживается.
type Config struct {
	// Device идентификатор аудио выхода. Значение с ведущим "/"
	// трактуется как путь файла устройства (прямая неблокирующая
	// запись), иначе как имя ALSA устройства для aplay.
	Device string

	// RTPPort порт приема RTP
	RTPPort int

	// HTTPPort порт status API
	HTTPPort int

	// DisableDiscovery отключает mDNS публикацию
	DisableDiscovery bool
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() Config {
	return Config{
		Device:   "default",
		RTPPort:  5004,
		HTTPPort: 8080,
	}
}

// Validate проверяет конфигурацию
func (c Config) Validate() error {
	if c.RTPPort <= 0 || c.RTPPort > 65535 {
		return fmt.Errorf("невалидный RTP порт: %d", c.RTPPort)
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("невалидный HTTP порт: %d", c.HTTPPort)
	}
	if c.RTPPort == c.HTTPPort {
		return fmt.Errorf("RTP и HTTP порты совпадают: %d", c.RTPPort)
	}
	if c.Device == "" {
		return fmt.Errorf("не указано аудио устройство")
	}
	return nil
}

// Service композиция приемника, status API и mDNS публикации
type Service struct {
	config Config
	log    *slog.Logger

	registry  *prometheus.Registry
	audioSink sink.Sink
	receiver  *receiver.Receiver
	status    *status.Server
	discovery *discovery.Publisher
}

// New создает сервис по конфигурации
func New(config Config, log *slog.Logger) (*Service, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{config: config, log: log}, nil
}

// newSink создает аудио sink по идентификатору устройства
func (s *Service) newSink() (sink.Sink, error) {
	if strings.HasPrefix(s.config.Device, "/") {
		return sink.NewDeviceSink(sink.DeviceConfig{Path: s.config.Device}, s.log)
	}

	cfg := sink.DefaultProcessConfig()
	cfg.Device = s.config.Device
	return sink.NewProcessSink(cfg, s.log)
}

// Start запускает все компоненты сервиса.
// Фатальны только сбой создания sink и bind RTP сокета; недоступность
// mDNS лишь логируется - прием продолжает работать.
func (s *Service) Start() error {
	s.log.Info("запуск сервиса приема аудио",
		slog.String("device", s.config.Device),
		slog.Int("rtp_port", s.config.RTPPort),
		slog.Int("http_port", s.config.HTTPPort))

	audioSink, err := s.newSink()
	if err != nil {
		return receiver.WrapReceiverError(receiver.ErrorCodeSinkInitFailed,
			"создание аудио sink", err)
	}
	s.audioSink = audioSink

	s.registry = prometheus.NewRegistry()
	metrics := receiver.NewMetrics(s.registry)

	rcvConfig := receiver.DefaultConfig()
	rcvConfig.Transport.ListenAddr = fmt.Sprintf(":%d", s.config.RTPPort)

	s.receiver = receiver.New(rcvConfig, audioSink, s.log, metrics)
	if err := s.receiver.Start(); err != nil {
		audioSink.Close()
		return err
	}

	s.status = status.NewServer(status.Config{
		ListenAddr: fmt.Sprintf(":%d", s.config.HTTPPort),
		Device:     s.config.Device,
		RTPPort:    s.config.RTPPort,
	}, s.receiver, s.registry, s.log)
	if err := s.status.Start(); err != nil {
		s.receiver.Stop()
		return err
	}

	if !s.config.DisableDiscovery {
		s.discovery = discovery.NewPublisher(discovery.Config{
			Version:     status.ServiceVersion,
			Device:      s.config.Device,
			RTPPort:     s.config.RTPPort,
			HTTPPort:    s.config.HTTPPort,
			AudioFormat: sink.FormatString,
		}, s.log)
		if err := s.discovery.Register(); err != nil {
			s.log.Warn("mDNS публикация недоступна",
				slog.String("error", err.Error()))
			s.discovery = nil
		}
	}

	return nil
}

// Stop останавливает компоненты в обратном порядке: публикация,
// HTTP сервер, затем цикл приема (который закрывает sink).
func (s *Service) Stop() {
	s.log.Info("остановка сервиса приема аудио")

	if s.discovery != nil {
		s.discovery.Shutdown()
	}
	if s.status != nil {
		if err := s.status.Stop(); err != nil {
			s.log.Warn("ошибка остановки HTTP сервера",
				slog.String("error", err.Error()))
		}
	}
	if s.receiver != nil {
		s.receiver.Stop()
	}

	s.log.Info("сервис остановлен")
}

// Receiver возвращает приемник (для тестов и диагностики)
func (s *Service) Receiver() *receiver.Receiver {
	return s.receiver
}
