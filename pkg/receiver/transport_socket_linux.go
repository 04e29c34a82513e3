//go:build linux

package receiver

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// applySockOptForAudio применяет Linux-специфичные настройки сокета
// для приема аудио потока. Вызывается до bind через ListenConfig.Control.
func applySockOptForAudio(fd int) error {
	// SO_REUSEADDR для быстрого рестарта сервиса на том же порту
	if err := syscall.SetsockoptInt(fd, syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1); err != nil {
		return err
	}

	// Высокий приоритет сокета для интерактивного аудио.
	// В контейнерах может быть недоступно - не критично.
	syscall.SetsockoptInt(fd, syscall.SOL_SOCKET, unix.SO_PRIORITY, 6)

	// DSCP EF маркировка в старших 6 битах TOS поля
	tos := DSCPExpeditedForwarding << 2
	syscall.SetsockoptInt(fd, syscall.IPPROTO_IP, syscall.IP_TOS, tos)
	syscall.SetsockoptInt(fd, syscall.IPPROTO_IPV6, unix.IPV6_TCLASS, tos)

	return nil
}
