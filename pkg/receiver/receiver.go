package receiver

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/looplab/fsm"

	"github.com/arzzra/audio_receiver/pkg/sink"
)

// Состояния жизненного цикла приемника.
// Единственная допустимая цепочка переходов:
// stopped -> starting -> running -> stopping -> stopped
// (плюс starting -> stopped при фатальной ошибке старта).
const (
	lifecycleStopped  = "stopped"
	lifecycleStarting = "starting"
	lifecycleRunning  = "running"
	lifecycleStopping = "stopping"
)

// Config конфигурация приемника
type Config struct {
	// Transport настройки UDP сокета
	Transport TransportConfig

	// SummaryEvery период консольной сводки в принятых пакетах
	// (0 отключает сводки)
	SummaryEvery uint64
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() Config {
	return Config{
		Transport:    DefaultTransportConfig(),
		SummaryEvery: 1000,
	}
}

// Receiver принимает RTP поток по UDP и доставляет PCM payload в
// аудио sink.
//
// Цикл приема владеет сокетом, sink и мутабельной частью Stats
// эксклюзивно - одна выделенная горутина, без блокировок в горячем
// пути помимо мьютекса снапшота. Внешние читатели получают только
// копии статистики через Stats().
//
// Ошибки внутри RUNNING никогда не завершают цикл: пакетные ошибки
// отбрасываются, сбой sink лечится авто-рестартом, I/O ошибки сокета
// считаются и цикл продолжается. Выход только по явному Stop() или
// фатальной ошибке старта.
type Receiver struct {
	config  Config
	sink    sink.Sink
	stats   *Stats
	monitor *ConnectionMonitor
	metrics *Metrics
	log     *slog.Logger

	lifecycle *fsm.FSM
	transport *UDPTransport
	tracker   SequenceTracker

	stopCh chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex

	// состояние периодической сводки (только горутина цикла)
	summaryBase  uint64
	summaryBytes uint64
	summaryAt    time.Time
}

// New создает приемник поверх готового аудио sink.
// Metrics может быть nil - тогда Prometheus экспорт отключен.
func New(config Config, audioSink sink.Sink, log *slog.Logger, metrics *Metrics) *Receiver {
	if log == nil {
		log = slog.Default()
	}
	if config.SummaryEvery == 0 {
		config.SummaryEvery = 1000
	}

	r := &Receiver{
		config:  config,
		sink:    audioSink,
		stats:   NewStats(),
		monitor: NewConnectionMonitor(log),
		metrics: metrics,
		log:     log,
	}

	r.lifecycle = fsm.NewFSM(
		lifecycleStopped,
		fsm.Events{
			{Name: "start", Src: []string{lifecycleStopped}, Dst: lifecycleStarting},
			{Name: "started", Src: []string{lifecycleStarting}, Dst: lifecycleRunning},
			{Name: "fail", Src: []string{lifecycleStarting}, Dst: lifecycleStopped},
			{Name: "stop", Src: []string{lifecycleRunning}, Dst: lifecycleStopping},
			{Name: "stopped", Src: []string{lifecycleStopping}, Dst: lifecycleStopped},
		},
		fsm.Callbacks{
			"after_event": func(ctx context.Context, e *fsm.Event) {
				r.metrics.observeTransition(e.Src, e.Dst)
				r.log.Debug("переход состояния приемника",
					slog.String("from", e.Src),
					slog.String("to", e.Dst))
			},
		},
	)

	return r
}

// Start связывает UDP сокет, проверяет sink и запускает цикл приема.
// Ошибки здесь фатальны: приемник не переходит в RUNNING.
func (r *Receiver) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ctx := context.Background()
	if err := r.lifecycle.Event(ctx, "start"); err != nil {
		return NewReceiverError(ErrorCodeAlreadyRunning, "приемник уже запущен")
	}

	if r.sink == nil || !r.sink.Healthy() {
		r.lifecycle.Event(ctx, "fail")
		return ErrSinkInitFailed
	}

	transport, err := NewUDPTransport(r.config.Transport)
	if err != nil {
		r.lifecycle.Event(ctx, "fail")
		return err
	}
	r.transport = transport

	now := time.Now()
	r.stats.markStarted(now)
	r.summaryAt = now
	r.summaryBase = 0
	r.summaryBytes = 0
	r.tracker.Reset()

	r.stopCh = make(chan struct{})
	r.lifecycle.Event(ctx, "started")

	r.log.Info("приемник запущен",
		slog.String("listen", transport.LocalAddr().String()),
		slog.String("format", sink.FormatString))

	r.wg.Add(1)
	go r.run()
	return nil
}

// Stop останавливает цикл приема, закрывает сокет и sink.
// Кооперативная остановка: флаг проверяется раз за итерацию, худшая
// латентность равна таймауту чтения сокета. Повторные вызовы безопасны.
func (r *Receiver) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ctx := context.Background()
	if err := r.lifecycle.Event(ctx, "stop"); err != nil {
		// уже остановлен или останавливается
		return nil
	}

	close(r.stopCh)
	// закрытие сокета снимает блокировку чтения немедленно
	r.transport.Close()
	r.wg.Wait()

	if err := r.sink.Close(); err != nil {
		r.log.Warn("ошибка закрытия sink", slog.String("error", err.Error()))
	}

	r.lifecycle.Event(ctx, "stopped")
	r.log.Info("приемник остановлен")
	return nil
}

// run главный цикл приема. Работает в единственной выделенной горутине.
func (r *Receiver) run() {
	defer r.wg.Done()

	buf := make([]byte, r.transport.BufferSize())
	r.log.Info("ожидание RTP пакетов")

	for {
		select {
		case <-r.stopCh:
			return
		default:
		}

		n, addr, err := r.transport.Receive(buf)
		if err != nil {
			select {
			case <-r.stopCh:
				return
			default:
			}

			if IsTimeout(err) {
				// штатный тик: пакетов нет, проверяем здоровье потока
				now := time.Now()
				r.checkDisconnect(now)
				r.monitor.CheckHealth(r.stats, now)
				continue
			}

			r.stats.recordReceiveError()
			r.metrics.observeReceiveError()
			r.log.Error("ошибка чтения сокета", slog.String("error", err.Error()))
			continue
		}

		r.handleDatagram(buf[:n], addr, time.Now())
	}
}

// handleDatagram обрабатывает одну датаграмму: парсинг заголовка,
// учет разрывов sequence, статистика, доставка payload в sink,
// отслеживание отправителя.
func (r *Receiver) handleDatagram(data []byte, addr *net.UDPAddr, now time.Time) {
	header, payload, err := ParsePacket(data)
	if err != nil || header.Version != ExpectedRTPVersion {
		// короткая датаграмма или не RTP v2: молча отбрасываем,
		// статистика приема не обновляется
		r.stats.recordIgnored()
		r.metrics.observeIgnored()
		return
	}

	if dropped := r.tracker.Observe(header.SequenceNumber); dropped > 0 {
		r.stats.recordDropped(dropped)
		r.metrics.observeDropped(dropped)
		_, errorTotal := r.stats.counters()
		r.log.Warn("потеряны пакеты",
			slog.Int("dropped", int(dropped)),
			slog.Int("expected_seq", int(header.SequenceNumber-dropped)),
			slog.Int("got_seq", int(header.SequenceNumber)),
			slog.Uint64("total_errors", errorTotal))
	}

	r.stats.recordPacket(len(data), header.SequenceNumber, now)
	r.metrics.observePacket(len(data))

	// пустой payload валиден, но в sink не передается
	if len(payload) > 0 {
		if err := r.sink.Write(payload); err != nil {
			r.recoverSink(err)
		}
	}

	r.trackSender(addr)
	r.maybeSummary(now)
}

// recoverSink обрабатывает сбой записи в sink: один авто-рестарт на
// обнаруженный сбой. Пакет, вызвавший сбой, потерян и не повторяется.
// Ошибка рестарта не останавливает цикл приема.
func (r *Receiver) recoverSink(writeErr error) {
	r.log.Warn("сбой аудио sink", slog.String("error", writeErr.Error()))

	if r.sink.Healthy() {
		// временная ошибка живого sink, рестарт не требуется
		return
	}

	if err := r.sink.Restart(); err != nil {
		r.log.Error("не удалось перезапустить sink",
			slog.String("error", err.Error()))
		return
	}
	r.metrics.observeSinkRestart()
}

// trackSender отслеживает адрес отправителя: первое подключение,
// смену отправителя (failover, не disconnect/reconnect).
func (r *Receiver) trackSender(addr *net.UDPAddr) {
	ip := addr.IP.String()
	connected, lastSender := r.stats.connectionInfo()

	switch {
	case !connected:
		r.stats.setConnected(true, ip)
		r.metrics.observeConnected(true)
		r.log.Info("отправитель подключен",
			slog.String("sender", addr.String()))
	case lastSender != ip:
		// смена отправителя при живом потоке - событие failover
		r.stats.setConnected(true, ip)
		r.log.Info("смена отправителя",
			slog.String("old", lastSender),
			slog.String("new", ip))
	}
}

// checkDisconnect сбрасывает флаг подключения после тишины
func (r *Receiver) checkDisconnect(now time.Time) {
	connected, lastSender := r.stats.connectionInfo()
	if !connected {
		return
	}

	lastPacket := r.stats.lastPacketAt()
	if lastPacket.IsZero() || now.Sub(lastPacket) <= disconnectAfter {
		return
	}

	r.stats.setConnected(false, "")
	r.metrics.observeConnected(false)
	r.log.Info("отправитель отключен", slog.String("sender", lastSender))
}

// maybeSummary печатает периодическую человекочитаемую сводку потока
func (r *Receiver) maybeSummary(now time.Time) {
	if r.config.SummaryEvery == 0 {
		return
	}

	snap := r.stats.Snapshot()
	if snap.PacketsReceived < r.summaryBase+r.config.SummaryEvery {
		return
	}

	duration := now.Sub(r.summaryAt).Seconds()
	if duration > 0 {
		bitrate := float64(snap.BytesReceived-r.summaryBytes) * 8.0 / duration
		r.log.Info("сводка приема",
			slog.Uint64("packets", snap.PacketsReceived),
			slog.Float64("kbps", bitrate/1000.0),
			slog.String("status", string(r.ConnectionState())))
	}

	r.summaryBase = snap.PacketsReceived
	r.summaryBytes = snap.BytesReceived
	r.summaryAt = now
}

// Running сообщает находится ли приемник в состоянии RUNNING
func (r *Receiver) Running() bool {
	return r.lifecycle.Current() == lifecycleRunning
}

// Stats возвращает неизменяемую копию статистики приема
func (r *Receiver) Stats() StatsSnapshot {
	return r.stats.Snapshot()
}

// ConnectionState возвращает производное состояние соединения
func (r *Receiver) ConnectionState() ConnectionState {
	return r.monitor.State(r.Running(), r.stats.lastPacketAt(), time.Now())
}

// LocalAddr возвращает адрес слушающего сокета (nil до старта)
func (r *Receiver) LocalAddr() net.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.transport == nil {
		return nil
	}
	return r.transport.LocalAddr()
}
