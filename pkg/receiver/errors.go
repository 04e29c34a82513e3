package receiver

import "fmt"

// ReceiverErrorCode определяет типизированные коды ошибок приемника.
// Позволяет классифицировать ошибки по категориям и обрабатывать их
// соответствующим образом (fatal при старте vs transient в цикле приема).
type ReceiverErrorCode int

const (
	// Фатальные ошибки старта
	ErrorCodeBindFailed ReceiverErrorCode = iota + 2000
	ErrorCodeSinkInitFailed
	ErrorCodeAlreadyRunning
	ErrorCodeNotRunning
	ErrorCodeInvalidConfig

	// Ошибки пакетов (transient, цикл приема продолжается)
	ErrorCodeMalformedPacket
	ErrorCodePacketTooLarge
	ErrorCodeReceiveFailed
)

// String возвращает строковое представление кода ошибки
func (code ReceiverErrorCode) String() string {
	switch code {
	case ErrorCodeBindFailed:
		return "BindFailed"
	case ErrorCodeSinkInitFailed:
		return "SinkInitFailed"
	case ErrorCodeAlreadyRunning:
		return "AlreadyRunning"
	case ErrorCodeNotRunning:
		return "NotRunning"
	case ErrorCodeInvalidConfig:
		return "InvalidConfig"
	case ErrorCodeMalformedPacket:
		return "MalformedPacket"
	case ErrorCodePacketTooLarge:
		return "PacketTooLarge"
	case ErrorCodeReceiveFailed:
		return "ReceiveFailed"
	default:
		return fmt.Sprintf("Unknown(%d)", int(code))
	}
}

// ReceiverError базовая структура ошибок приемника.
// Предоставляет типизированный код, человекочитаемое сообщение и
// возможность обертывания исходной ошибки (errors.Is/As friendly).
type ReceiverError struct {
	Code    ReceiverErrorCode
	Message string
	Wrapped error
}

// Error реализует интерфейс error
func (e *ReceiverError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("[receiver:%s] %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("[receiver:%s] %s", e.Code, e.Message)
}

// Unwrap возвращает обернутую ошибку, поддерживая errors.Unwrap
func (e *ReceiverError) Unwrap() error {
	return e.Wrapped
}

// Is поддерживает errors.Is, позволяя сравнивать ошибки по коду
func (e *ReceiverError) Is(target error) bool {
	if t, ok := target.(*ReceiverError); ok {
		return e.Code == t.Code
	}
	return false
}

// NewReceiverError создает новую ошибку приемника с указанным кодом
func NewReceiverError(code ReceiverErrorCode, message string) *ReceiverError {
	return &ReceiverError{Code: code, Message: message}
}

// WrapReceiverError оборачивает существующую ошибку с типизированным кодом
func WrapReceiverError(code ReceiverErrorCode, message string, err error) *ReceiverError {
	return &ReceiverError{Code: code, Message: message, Wrapped: err}
}

// Предопределенные ошибки для errors.Is сравнений
var (
	// ErrMalformedPacket датаграмма короче фиксированного RTP заголовка
	ErrMalformedPacket = NewReceiverError(ErrorCodeMalformedPacket, "датаграмма короче 12 байт RTP заголовка")

	// ErrBindFailed не удалось открыть UDP сокет на сконфигурированном порту
	ErrBindFailed = NewReceiverError(ErrorCodeBindFailed, "не удалось открыть UDP сокет")

	// ErrSinkInitFailed аудио sink не удалось создать при старте
	ErrSinkInitFailed = NewReceiverError(ErrorCodeSinkInitFailed, "не удалось инициализировать аудио sink")
)
