//go:build darwin

package receiver

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// applySockOptForAudio применяет macOS-специфичные настройки сокета
// для приема аудио потока. Вызывается до bind через ListenConfig.Control.
func applySockOptForAudio(fd int) error {
	// SO_REUSEADDR для быстрого рестарта сервиса на том же порту
	if err := syscall.SetsockoptInt(fd, syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1); err != nil {
		return err
	}

	// SO_NOSIGPIPE для предотвращения SIGPIPE при закрытии
	syscall.SetsockoptInt(fd, syscall.SOL_SOCKET, unix.SO_NOSIGPIPE, 1)

	// DSCP маркировка; на macOS некоторые TOS значения требуют
	// привилегий - ошибки не критичны
	tos := DSCPExpeditedForwarding << 2
	syscall.SetsockoptInt(fd, syscall.IPPROTO_IP, syscall.IP_TOS, tos)
	syscall.SetsockoptInt(fd, syscall.IPPROTO_IPV6, unix.IPV6_TCLASS, tos)

	return nil
}
