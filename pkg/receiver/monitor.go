package receiver

import (
	"log/slog"
	"time"
)

// ConnectionState производное состояние соединения, вычисляемое из
// времени прошедшего с последнего принятого пакета. Скрытого состояния
// нет - чистая функция от счетчиков цикла приема.
type ConnectionState string

const (
	// StateStopped приемник не запущен
	StateStopped ConnectionState = "STOPPED"
	// StateWaiting запущен, но ни одного валидного пакета не принято
	StateWaiting ConnectionState = "WAITING"
	// StateGood пакеты приходят регулярно (< 2 секунд с последнего)
	StateGood ConnectionState = "GOOD"
	// StateSlow поток деградировал (2-10 секунд без пакетов)
	StateSlow ConnectionState = "SLOW"
	// StateDisconnected поток пропал (>= 10 секунд без пакетов)
	StateDisconnected ConnectionState = "DISCONNECTED"
)

// Пороги мониторинга соединения. Значения соответствуют поведению
// оригинального сервиса и не конфигурируются.
const (
	// goodThreshold граница GOOD / SLOW
	goodThreshold = 2 * time.Second

	// slowThreshold граница SLOW / DISCONNECTED
	slowThreshold = 10 * time.Second

	// disconnectAfter сброс флага connected при тишине
	disconnectAfter = 5 * time.Second

	// startupGrace период после старта, в течение которого предупреждения
	// "нет данных" не выдаются
	startupGrace = 10 * time.Second

	// silenceWarnAfter порог advisory предупреждения о тишине
	silenceWarnAfter = 15 * time.Second

	// Порог advisory предупреждения о высоком проценте ошибок:
	// errors > 5% от принятых при packetsReceived > 100
	errorRateMinPackets = 100
	errorRateThreshold  = 0.05
)

// ConnectionMonitor вычисляет состояние соединения и выполняет
// периодические advisory проверки здоровья потока. Проверки только
// логируют - никаких переходов состояния или рестартов не инициируют.
type ConnectionMonitor struct {
	log *slog.Logger
}

// NewConnectionMonitor создает монитор соединения
func NewConnectionMonitor(log *slog.Logger) *ConnectionMonitor {
	if log == nil {
		log = slog.Default()
	}
	return &ConnectionMonitor{log: log}
}

// State возвращает производное состояние соединения на момент now
func (m *ConnectionMonitor) State(running bool, lastPacket time.Time, now time.Time) ConnectionState {
	if !running {
		return StateStopped
	}
	if lastPacket.IsZero() {
		return StateWaiting
	}

	elapsed := now.Sub(lastPacket)
	switch {
	case elapsed < goodThreshold:
		return StateGood
	case elapsed < slowThreshold:
		return StateSlow
	default:
		return StateDisconnected
	}
}

// CheckHealth выполняет периодическую проверку здоровья потока.
// Вызывается на каждом таймауте чтения сокета, когда пакеты не приходят.
// Все находки advisory: предупреждение о длительной тишине и о высоком
// проценте ошибок.
func (m *ConnectionMonitor) CheckHealth(stats *Stats, now time.Time) {
	started := stats.startedAt()
	if started.IsZero() || now.Sub(started) < startupGrace {
		// стартовый grace period - отправитель мог еще не подключиться
		return
	}

	lastPacket := stats.lastPacketAt()
	if lastPacket.IsZero() {
		lastPacket = started
	}

	if silence := now.Sub(lastPacket); silence > silenceWarnAfter {
		m.log.Warn("нет данных от отправителя",
			slog.Duration("silence", silence.Round(time.Second)))
	}

	packets, errors := stats.counters()
	if packets > errorRateMinPackets && float64(errors) > float64(packets)*errorRateThreshold {
		errorPercent := float64(errors) * 100.0 / float64(packets)
		m.log.Warn("высокий процент ошибок приема",
			slog.Float64("error_percent", errorPercent),
			slog.Uint64("errors", errors),
			slog.Uint64("packets", packets))
	}
}
