package sink

import (
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"
	"syscall"
	"time"
)

// ProcessConfig конфигурация внешнего процесса воспроизведения
type ProcessConfig struct {
	// Command исполняемый файл проигрывателя (по умолчанию aplay)
	Command string

	// Device идентификатор ALSA устройства (по умолчанию "default")
	Device string

	// BufferTime размер буфера устройства в микросекундах
	BufferTime int

	// Args полная замена аргументов проигрывателя. Если задан,
	// стандартные aplay аргументы не формируются (для нестандартных
	// плееров, ожидающих PCM на stdin).
	Args []string

	// GracefulTimeout время ожидания штатного завершения процесса
	// перед принудительным kill
	GracefulTimeout time.Duration
}

// DefaultProcessConfig возвращает конфигурацию по умолчанию:
// aplay на устройстве default с форматом потока 48000/16/2.
func DefaultProcessConfig() ProcessConfig {
	return ProcessConfig{
		Command:         "aplay",
		Device:          "default",
		BufferTime:      50000, // 50ms
		GracefulTimeout: 2 * time.Second,
	}
}

// args формирует аргументы запуска проигрывателя. PCM подается на stdin.
func (c ProcessConfig) args() []string {
	if c.Args != nil {
		return c.Args
	}
	return []string{
		"--device", c.Device,
		"--format", "S16_LE",
		"--rate", strconv.Itoa(SampleRate),
		"--channels", strconv.Itoa(Channels),
		"--buffer-time", strconv.Itoa(c.BufferTime),
	}
}

// child один экземпляр дочернего процесса. Единственная горутина Wait
// закрывает done при завершении процесса - и Write, и terminate
// наблюдают смерть процесса через этот канал.
type child struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	done  chan struct{}
}

// exited сообщает завершился ли процесс
func (c *child) exited() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// ProcessSink кормит PCM байтами долгоживущий дочерний процесс
// (aplay или совместимый). Ровно один живой процесс в любой момент.
//
// При смерти процесса (broken pipe, exit) Write возвращает ошибку;
// политика авто-рестарта принадлежит вызывающей стороне: один Restart
// на обнаруженный сбой, пакет вызвавший сбой теряется.
type ProcessSink struct {
	config ProcessConfig
	log    *slog.Logger

	mu      sync.Mutex
	current *child
	closed  bool
}

// NewProcessSink запускает дочерний процесс проигрывателя.
// Ошибка запуска фатальна для старта приемника.
func NewProcessSink(config ProcessConfig, log *slog.Logger) (*ProcessSink, error) {
	if config.Command == "" {
		config.Command = "aplay"
	}
	if config.Device == "" {
		config.Device = "default"
	}
	if config.BufferTime == 0 {
		config.BufferTime = 50000
	}
	if config.GracefulTimeout == 0 {
		config.GracefulTimeout = 2 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}

	s := &ProcessSink{config: config, log: log}
	if err := s.spawnLocked(); err != nil {
		return nil, err
	}
	return s, nil
}

// spawnLocked запускает новый дочерний процесс. Вызывается под s.mu
// (или до публикации sink).
func (s *ProcessSink) spawnLocked() error {
	cmd := exec.Command(s.config.Command, s.config.args()...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return newSinkError("start", s.config.Command, err)
	}

	// stdout/stderr проигрывателя не читаются
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return newSinkError("start", s.config.Command, err)
	}

	c := &child{cmd: cmd, stdin: stdin, done: make(chan struct{})}
	go func() {
		// единственный Wait на процесс: reap и сигнал о смерти
		err := cmd.Wait()
		close(c.done)
		if err != nil {
			s.log.Debug("процесс воспроизведения завершился",
				slog.String("command", s.config.Command),
				slog.String("error", err.Error()))
		}
	}()

	s.current = c
	s.log.Debug("процесс воспроизведения запущен",
		slog.String("command", s.config.Command),
		slog.String("device", s.config.Device),
		slog.Int("pid", cmd.Process.Pid))
	return nil
}

// terminate выполняет двухфазное завершение процесса: закрытие stdin и
// SIGTERM, ограниченное ожидание, затем принудительный kill.
func (s *ProcessSink) terminate(c *child) {
	if c == nil {
		return
	}

	c.stdin.Close()
	if c.cmd.Process != nil {
		c.cmd.Process.Signal(syscall.SIGTERM)
	}

	select {
	case <-c.done:
		return
	case <-time.After(s.config.GracefulTimeout):
	}

	if c.cmd.Process != nil {
		c.cmd.Process.Kill()
	}
	<-c.done
}

// Write подает PCM байты на stdin процесса.
// Возвращает ошибку если процесс умер - запись не буферизуется и не
// повторяется, решение о рестарте принимает вызывающая сторона.
func (s *ProcessSink) Write(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return newSinkError("write", s.config.Command, fmt.Errorf("sink закрыт"))
	}
	if s.current == nil || s.current.exited() {
		return newSinkError("write", s.config.Command, fmt.Errorf("процесс не запущен"))
	}

	if _, err := s.current.stdin.Write(payload); err != nil {
		return newSinkError("write", s.config.Command, err)
	}
	return nil
}

// Healthy сообщает жив ли дочерний процесс
func (s *ProcessSink) Healthy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && s.current != nil && !s.current.exited()
}

// Restart завершает мертвый (или зависший) процесс и запускает новый
// с идентичной конфигурацией. Записи, сделанные до сбоя, не повторяются.
func (s *ProcessSink) Restart() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return newSinkError("restart", s.config.Command, fmt.Errorf("sink закрыт"))
	}

	old := s.current
	s.current = nil
	s.terminate(old)

	s.log.Warn("перезапуск процесса воспроизведения",
		slog.String("command", s.config.Command))
	return s.spawnLocked()
}

// Close завершает дочерний процесс. Повторные вызовы безопасны.
func (s *ProcessSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	old := s.current
	s.current = nil
	s.terminate(old)
	return nil
}
