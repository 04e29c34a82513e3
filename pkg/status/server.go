// Package status реализует HTTP API состояния приемника.
//
// Endpoints:
//   - GET /status  полный снапшот: сервис, аудио, статистика, соединение
//   - GET /health  легковесный liveness ответ
//   - GET /metrics Prometheus экспорт
//
// Обработчики читают только неизменяемые снапшоты статистики -
// записи в состояние приемника через этот пакет невозможны.
package status

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arzzra/audio_receiver/pkg/receiver"
)

// ServiceName имя сервиса в ответах status API
const ServiceName = "REW Audio Receiver"

// ServiceVersion версия протокола/сервиса
const ServiceVersion = "1.0.0"

// ReceiverInfo источник снапшотов для status API.
// Реализуется приемником; доступ только на чтение.
type ReceiverInfo interface {
	Running() bool
	Stats() receiver.StatsSnapshot
	ConnectionState() receiver.ConnectionState
}

// Config конфигурация HTTP сервера состояния
type Config struct {
	// ListenAddr адрес HTTP сервера, например ":8080"
	ListenAddr string

	// Device идентификатор аудио устройства для ответа /status
	Device string

	// RTPPort порт приема RTP для ответа /status
	RTPPort int
}

// statusResponse структура ответа GET /status
type statusResponse struct {
	Service string      `json:"service"`
	Version string      `json:"version"`
	Status  string      `json:"status"`
	Audio   audioInfo   `json:"audio"`
	Stats   interface{} `json:"stats"`

	ConnectionStatus string `json:"connection_status"`
	Timestamp        int64  `json:"timestamp"`
}

type audioInfo struct {
	Device  string `json:"device"`
	Port    int    `json:"port"`
	Running bool   `json:"running"`
}

// healthResponse структура ответа GET /health
type healthResponse struct {
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
}

// Server HTTP сервер состояния приемника
type Server struct {
	config Config
	info   ReceiverInfo
	log    *slog.Logger

	httpServer *http.Server
	mu         sync.Mutex
	started    bool
}

// NewServer создает сервер состояния. Registry может быть nil -
// тогда endpoint /metrics не монтируется.
func NewServer(config Config, info ReceiverInfo, registry *prometheus.Registry, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}

	s := &Server{config: config, info: info, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/health", s.handleHealth)
	if registry != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	s.httpServer = &http.Server{
		Addr:              config.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start запускает HTTP сервер в фоновой горутине
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.started = true

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("HTTP сервер состояния завершился",
				slog.String("error", err.Error()))
		}
	}()

	s.log.Info("HTTP сервер состояния запущен",
		slog.String("listen", s.config.ListenAddr))
	return nil
}

// Stop останавливает HTTP сервер с ограниченным ожиданием
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.started = false

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

// Handler возвращает HTTP handler сервера (для тестов)
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// handleStatus отдает полный снапшот состояния приемника
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	running := s.info.Running()
	statusText := "running"
	if !running {
		statusText = "stopped"
	}

	resp := statusResponse{
		Service: ServiceName,
		Version: ServiceVersion,
		Status:  statusText,
		Audio: audioInfo{
			Device:  s.config.Device,
			Port:    s.config.RTPPort,
			Running: running,
		},
		Stats:            s.info.Stats(),
		ConnectionStatus: string(s.info.ConnectionState()),
		Timestamp:        time.Now().Unix(),
	}

	writeJSON(w, resp)
}

// handleHealth отдает легковесный liveness ответ
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, healthResponse{
		Status:    "healthy",
		Timestamp: time.Now().Unix(),
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}
