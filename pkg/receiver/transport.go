package receiver

import (
	"context"
	"fmt"
	"net"
	"sync"
	"syscall"
	"time"
)

// DSCPExpeditedForwarding DSCP класс EF для голосового трафика (RFC 3246).
// Для входящего потока маркировка значения не имеет, но выставляется
// симметрично отправителю - некоторые сети учитывают ее для обратного пути.
const DSCPExpeditedForwarding = 46

// TransportConfig конфигурация UDP транспорта приемника
type TransportConfig struct {
	// ListenAddr локальный адрес для приема RTP, например ":5004"
	ListenAddr string

	// BufferSize размер буфера чтения датаграмм (по умолчанию MTU 1500)
	BufferSize int

	// ReadTimeout таймаут блокирующего чтения. Ограничивает латентность
	// остановки и задает период тиков монитора соединения.
	ReadTimeout time.Duration
}

// DefaultTransportConfig возвращает конфигурацию по умолчанию
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		ListenAddr:  ":5004",
		BufferSize:  MaxRTPPacketSize,
		ReadTimeout: time.Second,
	}
}

// UDPTransport владеет единственным UDP сокетом приемника.
// Оптимизирован для аудио: сокет настраивается платформо-специфичными
// опциями (SO_REUSEADDR, DSCP маркировка, приоритет на Linux).
type UDPTransport struct {
	conn   *net.UDPConn
	config TransportConfig

	active bool
	mutex  sync.RWMutex
}

// NewUDPTransport открывает UDP сокет на сконфигурированном порту.
// Ошибка bind фатальна для старта приемника - процесс без сокета
// продолжать работу не может.
func NewUDPTransport(config TransportConfig) (*UDPTransport, error) {
	if config.BufferSize == 0 {
		config.BufferSize = MaxRTPPacketSize
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = time.Second
	}

	// SO_REUSEADDR должен быть выставлен до bind, поэтому используем
	// ListenConfig.Control вместо настройки через SyscallConn после
	lc := net.ListenConfig{
		Control: func(network, address string, raw syscall.RawConn) error {
			var sockOptErr error
			err := raw.Control(func(fd uintptr) {
				sockOptErr = applySockOptForAudio(int(fd))
			})
			if err != nil {
				return err
			}
			return sockOptErr
		},
	}

	pc, err := lc.ListenPacket(context.Background(), "udp", config.ListenAddr)
	if err != nil {
		return nil, WrapReceiverError(ErrorCodeBindFailed,
			fmt.Sprintf("bind %s", config.ListenAddr), err)
	}

	conn, ok := pc.(*net.UDPConn)
	if !ok {
		pc.Close()
		return nil, NewReceiverError(ErrorCodeBindFailed, "ожидался UDP сокет")
	}

	return &UDPTransport{
		conn:   conn,
		config: config,
		active: true,
	}, nil
}

// Receive читает одну датаграмму в buf с ограниченным таймаутом.
// Таймаут не является ошибкой уровня вызывающего: проверяется через
// IsTimeout и используется как периодический тик монитора.
func (t *UDPTransport) Receive(buf []byte) (int, *net.UDPAddr, error) {
	t.mutex.RLock()
	active := t.active
	conn := t.conn
	timeout := t.config.ReadTimeout
	t.mutex.RUnlock()

	if !active {
		return 0, nil, NewReceiverError(ErrorCodeNotRunning, "транспорт не активен")
	}

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return 0, nil, WrapReceiverError(ErrorCodeReceiveFailed, "set read deadline", err)
	}

	n, addr, err := conn.ReadFromUDP(buf)
	if err != nil {
		return 0, nil, err
	}
	return n, addr, nil
}

// LocalAddr возвращает локальный адрес сокета
func (t *UDPTransport) LocalAddr() net.Addr {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	if t.conn == nil {
		return nil
	}
	return t.conn.LocalAddr()
}

// BufferSize возвращает сконфигурированный размер буфера чтения
func (t *UDPTransport) BufferSize() int {
	return t.config.BufferSize
}

// Close закрывает сокет. Повторные вызовы безопасны.
func (t *UDPTransport) Close() error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if !t.active {
		return nil
	}
	t.active = false
	return t.conn.Close()
}

// IsTimeout проверяет является ли ошибка чтения таймаутом deadline
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	netErr, ok := err.(net.Error)
	return ok && netErr.Timeout()
}
