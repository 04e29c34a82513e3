// Package sink предоставляет абстракцию аудио выхода для приемника.
//
// Sink принимает сырые PCM байты в фиксированном формате потока
// (48000 Hz, 16-bit signed little-endian, 2 канала) и доставляет их
// устройству воспроизведения. Два варианта реализации:
//
//   - ProcessSink: долгоживущий дочерний процесс (aplay), получающий
//     PCM на stdin; при падении процесса выполняется авто-рестарт
//   - DeviceSink: прямая неблокирующая запись в файл устройства;
//     переполнение буфера приводит к сбросу записи, а не к блокировке
//
// Цикл приема не знает какой вариант активен - оба реализуют единый
// контракт Sink.
package sink

import "fmt"

// Фиксированный формат аудио потока. Payload RTP пакетов уже является
// PCM в этом формате - декодирование не выполняется.
const (
	SampleRate = 48000
	BitDepth   = 16
	Channels   = 2

	// FormatString строка формата для service discovery (rate/bits/channels)
	FormatString = "48000/16/2"
)

// Sink единый контракт аудио выхода для цикла приема.
//
// Write никогда не должен блокировать цикл приема надолго: переполнение
// буфера устройства - штатная ситуация, запись сбрасывается. Ошибка
// Write означает что sink сломан (например, умер дочерний процесс);
// вызывающая сторона решает выполнять ли Restart. Пакет, вызвавший
// ошибку, теряется и повторно не доставляется.
type Sink interface {
	// Write доставляет PCM байты устройству воспроизведения
	Write(payload []byte) error

	// Healthy сообщает жив ли sink и готов ли принимать запись
	Healthy() bool

	// Restart пересоздает sink с идентичной конфигурацией
	Restart() error

	// Close освобождает ресурсы sink. Повторные вызовы безопасны.
	Close() error
}

// SinkError ошибка операции sink
type SinkError struct {
	Op      string // "write", "start", "restart"
	Sink    string // идентификатор sink ("aplay", "device:...")
	Wrapped error
}

// Error реализует интерфейс error
func (e *SinkError) Error() string {
	return fmt.Sprintf("sink %s: %s: %v", e.Sink, e.Op, e.Wrapped)
}

// Unwrap возвращает обернутую ошибку
func (e *SinkError) Unwrap() error {
	return e.Wrapped
}

func newSinkError(op, sink string, err error) *SinkError {
	return &SinkError{Op: op, Sink: sink, Wrapped: err}
}
