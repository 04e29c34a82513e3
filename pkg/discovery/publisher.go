// Package discovery публикует сервис приемника в локальной сети
// через mDNS/DNS-SD.
//
// Запись _rew-audio._tcp несет в TXT свойствах версию протокола,
// идентификатор аудио устройства, порт status API и фиксированную
// строку формата аудио. Порт записи - порт приема RTP. Отправитель
// находит приемник по этой записи и начинает слать поток без какого-
// либо ответного обмена.
package discovery

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/grandcat/zeroconf"
)

// ServiceType тип DNS-SD записи приемника
const ServiceType = "_rew-audio._tcp"

// domain стандартный mDNS домен
const domain = "local."

// Config конфигурация публикации сервиса
type Config struct {
	// Instance имя экземпляра; пустое значение дает "REW-Pi-<hostname>"
	Instance string

	// Version версия протокола, публикуется в TXT
	Version string

	// Device идентификатор аудио устройства, публикуется в TXT
	Device string

	// RTPPort порт приема RTP - порт DNS-SD записи
	RTPPort int

	// HTTPPort порт status API, публикуется в TXT
	HTTPPort int

	// AudioFormat строка формата потока, например "48000/16/2"
	AudioFormat string
}

// Publisher регистрирует и снимает DNS-SD запись приемника
type Publisher struct {
	config Config
	log    *slog.Logger

	mu     sync.Mutex
	server *zeroconf.Server
}

// NewPublisher создает публикатор сервиса
func NewPublisher(config Config, log *slog.Logger) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	return &Publisher{config: config, log: log}
}

// TXTRecords формирует TXT свойства DNS-SD записи
func (p *Publisher) TXTRecords() []string {
	return []string{
		"version=" + p.config.Version,
		"device=" + p.config.Device,
		"http_port=" + strconv.Itoa(p.config.HTTPPort),
		"audio_format=" + p.config.AudioFormat,
	}
}

// InstanceName возвращает имя экземпляра записи
func (p *Publisher) InstanceName() string {
	if p.config.Instance != "" {
		return p.config.Instance
	}

	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "receiver"
	}
	// короткое имя хоста без домена
	if idx := strings.IndexByte(hostname, '.'); idx > 0 {
		hostname = hostname[:idx]
	}
	return "REW-Pi-" + hostname
}

// Register публикует запись в локальной сети.
// Ошибка публикации не фатальна для сервиса: приемник продолжает
// работать, отправителя придется сконфигурировать вручную.
func (p *Publisher) Register() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.server != nil {
		return nil
	}

	instance := p.InstanceName()
	server, err := zeroconf.Register(
		instance,
		ServiceType,
		domain,
		p.config.RTPPort,
		p.TXTRecords(),
		nil, // все мультикаст-интерфейсы хоста
	)
	if err != nil {
		return fmt.Errorf("регистрация mDNS сервиса: %w", err)
	}

	p.server = server
	p.log.Info("mDNS сервис зарегистрирован",
		slog.String("instance", instance),
		slog.String("type", ServiceType),
		slog.Int("port", p.config.RTPPort))
	return nil
}

// Shutdown снимает публикацию. Повторные вызовы безопасны.
func (p *Publisher) Shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.server == nil {
		return
	}
	p.server.Shutdown()
	p.server = nil
	p.log.Info("mDNS сервис снят с публикации")
}
