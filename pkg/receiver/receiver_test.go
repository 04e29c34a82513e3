package receiver

import (
	"bytes"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// === MOCK SINK ДЛЯ ТЕСТИРОВАНИЯ ===

// mockSink имитирует аудио sink. Предикат failOn позволяет
// инъецировать одиночный сбой записи (имитация broken pipe).
type mockSink struct {
	mu       sync.Mutex
	writes   [][]byte
	healthy  bool
	restarts int
	closed   bool
	failOn   func(payload []byte) bool
}

func newMockSink() *mockSink {
	return &mockSink{healthy: true}
}

func (m *mockSink) Write(payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failOn != nil && m.failOn(payload) {
		// одиночный сбой: sink ломается, запись теряется
		m.failOn = nil
		m.healthy = false
		return fmt.Errorf("write: broken pipe")
	}

	buf := make([]byte, len(payload))
	copy(buf, payload)
	m.writes = append(m.writes, buf)
	return nil
}

func (m *mockSink) Healthy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.healthy && !m.closed
}

func (m *mockSink) Restart() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.restarts++
	m.healthy = true
	return nil
}

func (m *mockSink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockSink) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.writes)
}

func (m *mockSink) restartCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.restarts
}

func (m *mockSink) hasWrite(payload []byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.writes {
		if bytes.Equal(w, payload) {
			return true
		}
	}
	return false
}

// === ХЕЛПЕРЫ ===

// startReceiver запускает приемник на свободном порту с mock sink
func startReceiver(t *testing.T, snk *mockSink) *Receiver {
	t.Helper()

	config := DefaultConfig()
	config.Transport.ListenAddr = "127.0.0.1:0"
	config.Transport.ReadTimeout = 100 * time.Millisecond
	config.SummaryEvery = 0

	r := New(config, snk, nil, nil)
	require.NoError(t, r.Start())
	t.Cleanup(func() { r.Stop() })
	return r
}

// dialReceiver открывает UDP соединение к слушающему сокету приемника
func dialReceiver(t *testing.T, r *Receiver) *net.UDPConn {
	t.Helper()

	addr, ok := r.LocalAddr().(*net.UDPAddr)
	require.True(t, ok)

	conn, err := net.DialUDP("udp", nil, &net.UDPAddr{
		IP:   net.IPv4(127, 0, 0, 1),
		Port: addr.Port,
	})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// sendSequence отправляет RTP пакеты с указанными порядковыми номерами
func sendSequence(t *testing.T, conn *net.UDPConn, seqs []uint16, payload []byte) {
	t.Helper()

	for i, seq := range seqs {
		data := buildRTPPacket(t, seq, uint32(seq)*160, 0x12345678, payload)
		_, err := conn.Write(data)
		require.NoError(t, err)

		// легкий троттлинг от переполнения приемного буфера сокета
		if i%100 == 99 {
			time.Sleep(time.Millisecond)
		}
	}
}

func waitForPackets(t *testing.T, r *Receiver, want uint64) {
	t.Helper()
	require.Eventually(t, func() bool {
		return r.Stats().PacketsReceived >= want
	}, 5*time.Second, 10*time.Millisecond,
		"ожидалось %d пакетов, принято %d", want, r.Stats().PacketsReceived)
}

// === ТЕСТЫ ЖИЗНЕННОГО ЦИКЛА ===

func TestReceiver_StartStop(t *testing.T) {
	snk := newMockSink()
	r := startReceiver(t, snk)

	assert.True(t, r.Running())
	assert.Equal(t, StateWaiting, r.ConnectionState())

	require.NoError(t, r.Stop())
	assert.False(t, r.Running())
	assert.Equal(t, StateStopped, r.ConnectionState())

	// повторный Stop безопасен
	require.NoError(t, r.Stop())
}

func TestReceiver_DoubleStartFails(t *testing.T) {
	r := startReceiver(t, newMockSink())

	err := r.Start()
	require.Error(t, err)
	assert.ErrorIs(t, err, NewReceiverError(ErrorCodeAlreadyRunning, ""))
}

func TestReceiver_StartWithoutSinkFails(t *testing.T) {
	config := DefaultConfig()
	config.Transport.ListenAddr = "127.0.0.1:0"

	r := New(config, nil, nil, nil)
	err := r.Start()
	assert.ErrorIs(t, err, ErrSinkInitFailed)
	assert.False(t, r.Running())
}

func TestReceiver_BindConflictFails(t *testing.T) {
	// занимаем порт сокетом без SO_REUSEADDR - повторный bind невозможен
	occupier, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer occupier.Close()

	config := DefaultConfig()
	config.Transport.ListenAddr = occupier.LocalAddr().String()

	r := New(config, newMockSink(), nil, nil)
	err = r.Start()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBindFailed)
	assert.False(t, r.Running())
}

// === ТЕСТЫ ПРИЕМА ===

func TestReceiver_EndToEndContinuousStream(t *testing.T) {
	snk := newMockSink()
	r := startReceiver(t, snk)
	conn := dialReceiver(t, r)

	// 1000 пакетов seq 0..999 с тишиной в payload
	seqs := make([]uint16, 1000)
	for i := range seqs {
		seqs[i] = uint16(i)
	}
	silence := make([]byte, 160)
	sendSequence(t, conn, seqs, silence)

	waitForPackets(t, r, 1000)

	snap := r.Stats()
	assert.Equal(t, uint64(1000), snap.PacketsReceived)
	assert.Equal(t, uint64(1000*(RTPHeaderSize+160)), snap.BytesReceived)
	assert.Zero(t, snap.Errors)
	assert.Equal(t, int32(999), snap.LastSequence)
	assert.True(t, snap.Connected)
	assert.Equal(t, "127.0.0.1", snap.LastSender)
	assert.Equal(t, StateGood, r.ConnectionState())
	assert.Equal(t, 1000, snk.writeCount())
}

func TestReceiver_DropDetection(t *testing.T) {
	snk := newMockSink()
	r := startReceiver(t, snk)
	conn := dialReceiver(t, r)

	// 0..9, разрыв до 15, далее 16..20: потеряны 10..14
	seqs := []uint16{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 15, 16, 17, 18, 19, 20}
	sendSequence(t, conn, seqs, make([]byte, 32))

	waitForPackets(t, r, uint64(len(seqs)))

	snap := r.Stats()
	assert.Equal(t, uint64(5), snap.Errors)
	assert.Equal(t, int32(20), snap.LastSequence)
}

func TestReceiver_InvalidDatagramsIgnored(t *testing.T) {
	snk := newMockSink()
	r := startReceiver(t, snk)
	conn := dialReceiver(t, r)

	// короткая датаграмма
	_, err := conn.Write([]byte{0x80, 0x60, 0x00})
	require.NoError(t, err)

	// корректная длина, но версия 1
	wrongVersion := buildRTPPacket(t, 5, 0, 1, []byte{0xAA})
	wrongVersion[0] = (wrongVersion[0] &^ 0xC0) | (1 << 6)
	_, err = conn.Write(wrongVersion)
	require.NoError(t, err)

	// валидный пакет для синхронизации
	sendSequence(t, conn, []uint16{100}, []byte{0xBB})
	waitForPackets(t, r, 1)

	snap := r.Stats()
	// невалидные датаграммы не принимаются и не считаются ошибками
	assert.Equal(t, uint64(1), snap.PacketsReceived)
	assert.Equal(t, uint64(2), snap.PacketsIgnored)
	assert.Zero(t, snap.Errors)
	assert.Equal(t, int32(100), snap.LastSequence)
	// sink видел только payload валидного пакета
	assert.Equal(t, 1, snk.writeCount())
}

func TestReceiver_EmptyPayloadAcceptedNotForwarded(t *testing.T) {
	snk := newMockSink()
	r := startReceiver(t, snk)
	conn := dialReceiver(t, r)

	sendSequence(t, conn, []uint16{1}, nil)
	waitForPackets(t, r, 1)

	snap := r.Stats()
	assert.Equal(t, uint64(1), snap.PacketsReceived)
	assert.Equal(t, uint64(RTPHeaderSize), snap.BytesReceived)
	assert.Zero(t, snk.writeCount())
}

func TestReceiver_SinkAutoRestart(t *testing.T) {
	snk := newMockSink()
	poison := []byte{0xDE, 0xAD}
	snk.failOn = func(p []byte) bool { return bytes.Equal(p, poison) }

	r := startReceiver(t, snk)
	conn := dialReceiver(t, r)

	sendSequence(t, conn, []uint16{1}, []byte{0x01})
	sendSequence(t, conn, []uint16{2}, poison) // ломает sink
	sendSequence(t, conn, []uint16{3}, []byte{0x03})

	waitForPackets(t, r, 3)
	require.Eventually(t, func() bool {
		return snk.restartCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	// ровно один рестарт; пакет вызвавший сбой потерян и не повторялся
	assert.Equal(t, 1, snk.restartCount())
	assert.False(t, snk.hasWrite(poison))
	assert.True(t, snk.hasWrite([]byte{0x01}))
	assert.True(t, snk.hasWrite([]byte{0x03}))
	assert.True(t, snk.Healthy())

	// все три пакета приняты, сбой sink не считается ошибкой приема
	snap := r.Stats()
	assert.Equal(t, uint64(3), snap.PacketsReceived)
	assert.Zero(t, snap.Errors)
}

func TestReceiver_StopLatencyBounded(t *testing.T) {
	r := startReceiver(t, newMockSink())

	start := time.Now()
	require.NoError(t, r.Stop())

	// закрытие сокета снимает блокировку чтения: остановка быстрее
	// таймаута чтения
	assert.Less(t, time.Since(start), time.Second)
}
