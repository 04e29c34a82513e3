package receiver

import (
	"sync"
	"time"
)

// Stats накапливает статистику приема. Мутирует ее исключительно
// горутина цикла приема; внешние читатели (HTTP status, discovery)
// получают копию через Snapshot() и не имеют доступа на запись.
//
// Мьютекс нужен только для согласованного копирования снапшота -
// в горячем пути он берется одним писателем без конкуренции.
type Stats struct {
	mu sync.Mutex

	packetsReceived  uint64
	bytesReceived    uint64
	errorCount       uint64 // оценка потерянных пакетов + I/O ошибки
	packetsIgnored   uint64 // короткие датаграммы и версия != 2
	connectionErrors uint64 // ошибки чтения сокета (кроме таймаута)

	hasSequence  bool
	lastSequence uint16

	lastPacketTime  time.Time // время последнего принятого пакета
	streamStartTime time.Time // время входа в состояние RUNNING

	connected  bool
	lastSender string // IP последнего источника датаграмм
}

// StatsSnapshot неизменяемая копия статистики для внешних читателей.
// Ключи JSON совпадают с форматом status API.
type StatsSnapshot struct {
	PacketsReceived  uint64 `json:"packets_received"`
	BytesReceived    uint64 `json:"bytes_received"`
	Errors           uint64 `json:"errors"`
	PacketsIgnored   uint64 `json:"packets_ignored"`
	ConnectionErrors uint64 `json:"connection_errors"`

	// LastSequence равен -1 пока не принят ни один пакет
	LastSequence int32 `json:"last_sequence"`

	LastPacketTime  int64 `json:"last_packet_time"`
	StreamStartTime int64 `json:"stream_start_time"`

	Connected  bool   `json:"connected"`
	LastSender string `json:"last_sender,omitempty"`
}

// NewStats создает статистику с нулевыми счетчиками и без базового
// порядкового номера (last_sequence = -1).
func NewStats() *Stats {
	return &Stats{}
}

// recordPacket учитывает принятый (прошедший валидацию) пакет.
// size - полная длина датаграммы включая 12-байтовый заголовок.
func (s *Stats) recordPacket(size int, seq uint16, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.packetsReceived++
	s.bytesReceived += uint64(size)
	s.hasSequence = true
	s.lastSequence = seq
	s.lastPacketTime = now
}

// recordDropped учитывает оценку потерянных пакетов. errorCount
// только растет.
func (s *Stats) recordDropped(n uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errorCount += uint64(n)
}

// recordIgnored учитывает отброшенную датаграмму (короткая или
// версия != 2). Не влияет на errorCount и packetsReceived.
func (s *Stats) recordIgnored() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.packetsIgnored++
}

// recordReceiveError учитывает I/O ошибку чтения сокета
func (s *Stats) recordReceiveError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connectionErrors++
	s.errorCount++
}

// markStarted фиксирует время входа в RUNNING
func (s *Stats) markStarted(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streamStartTime = now
}

// setConnected обновляет флаг подключения и адрес отправителя
func (s *Stats) setConnected(connected bool, sender string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = connected
	s.lastSender = sender
}

// connectionInfo возвращает флаг подключения и адрес последнего отправителя
func (s *Stats) connectionInfo() (bool, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected, s.lastSender
}

// lastPacketAt возвращает время последнего принятого пакета
// (нулевое время если пакетов еще не было).
func (s *Stats) lastPacketAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPacketTime
}

// startedAt возвращает время входа в RUNNING
func (s *Stats) startedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamStartTime
}

// counters возвращает пару (принято, ошибки) для проверки error rate
func (s *Stats) counters() (uint64, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.packetsReceived, s.errorCount
}

// Snapshot возвращает согласованную копию статистики.
// Счетчики копируются под мьютексом; для status endpoint достаточно
// eventually consistent семантики.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := StatsSnapshot{
		PacketsReceived:  s.packetsReceived,
		BytesReceived:    s.bytesReceived,
		Errors:           s.errorCount,
		PacketsIgnored:   s.packetsIgnored,
		ConnectionErrors: s.connectionErrors,
		LastSequence:     -1,
		Connected:        s.connected,
		LastSender:       s.lastSender,
	}
	if s.hasSequence {
		snap.LastSequence = int32(s.lastSequence)
	}
	if !s.lastPacketTime.IsZero() {
		snap.LastPacketTime = s.lastPacketTime.Unix()
	}
	if !s.streamStartTime.IsZero() {
		snap.StreamStartTime = s.streamStartTime.Unix()
	}
	return snap
}

// Reset сбрасывает статистику в исходное состояние. Вызывается только
// при явном рестарте приемника, никогда во время работы цикла.
func (s *Stats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.packetsReceived = 0
	s.bytesReceived = 0
	s.errorCount = 0
	s.packetsIgnored = 0
	s.connectionErrors = 0
	s.hasSequence = false
	s.lastSequence = 0
	s.lastPacketTime = time.Time{}
	s.streamStartTime = time.Time{}
	s.connected = false
	s.lastSender = ""
}
