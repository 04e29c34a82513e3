package receiver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics экспортирует счетчики цикла приема в Prometheus.
// Обновляется только горутиной цикла приема, параллельно со Stats.
type Metrics struct {
	packetsReceived prometheus.Counter
	bytesReceived   prometheus.Counter
	packetsDropped  prometheus.Counter
	packetsIgnored  prometheus.Counter
	receiveErrors   prometheus.Counter
	sinkRestarts    prometheus.Counter
	connected       prometheus.Gauge

	stateTransitions *prometheus.CounterVec
}

// NewMetrics регистрирует метрики приемника в переданном Registerer
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		packetsReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "audio_receiver",
			Subsystem: "rtp",
			Name:      "packets_received_total",
			Help:      "Количество принятых валидных RTP пакетов",
		}),
		bytesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "audio_receiver",
			Subsystem: "rtp",
			Name:      "bytes_received_total",
			Help:      "Количество принятых байт включая RTP заголовки",
		}),
		packetsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "audio_receiver",
			Subsystem: "rtp",
			Name:      "packets_dropped_total",
			Help:      "Оценка потерянных пакетов по разрывам sequence",
		}),
		packetsIgnored: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "audio_receiver",
			Subsystem: "rtp",
			Name:      "packets_ignored_total",
			Help:      "Отброшенные датаграммы: короткие или версия != 2",
		}),
		receiveErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "audio_receiver",
			Subsystem: "rtp",
			Name:      "receive_errors_total",
			Help:      "I/O ошибки чтения сокета кроме таймаутов",
		}),
		sinkRestarts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "audio_receiver",
			Subsystem: "sink",
			Name:      "restarts_total",
			Help:      "Количество авто-рестартов аудио sink",
		}),
		connected: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "audio_receiver",
			Subsystem: "rtp",
			Name:      "sender_connected",
			Help:      "1 если отправитель считается подключенным",
		}),
		stateTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "audio_receiver",
			Subsystem: "lifecycle",
			Name:      "state_transitions_total",
			Help:      "Переходы состояний жизненного цикла приемника",
		}, []string{"from", "to"}),
	}
}

func (m *Metrics) observePacket(size int) {
	if m == nil {
		return
	}
	m.packetsReceived.Inc()
	m.bytesReceived.Add(float64(size))
}

func (m *Metrics) observeDropped(n uint16) {
	if m == nil {
		return
	}
	m.packetsDropped.Add(float64(n))
}

func (m *Metrics) observeIgnored() {
	if m == nil {
		return
	}
	m.packetsIgnored.Inc()
}

func (m *Metrics) observeReceiveError() {
	if m == nil {
		return
	}
	m.receiveErrors.Inc()
}

func (m *Metrics) observeSinkRestart() {
	if m == nil {
		return
	}
	m.sinkRestarts.Inc()
}

func (m *Metrics) observeConnected(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.connected.Set(1)
	} else {
		m.connected.Set(0)
	}
}

func (m *Metrics) observeTransition(from, to string) {
	if m == nil {
		return
	}
	m.stateTransitions.WithLabelValues(from, to).Inc()
}
