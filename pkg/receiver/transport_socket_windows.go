//go:build windows

package receiver

import (
	"golang.org/x/sys/windows"
)

// applySockOptForAudio применяет Windows-специфичные настройки сокета
// для приема аудио потока. Вызывается до bind через ListenConfig.Control.
func applySockOptForAudio(fd int) error {
	handle := windows.Handle(fd)

	// SO_REUSEADDR для быстрого рестарта сервиса на том же порту
	if err := windows.SetsockoptInt(handle, windows.SOL_SOCKET, windows.SO_REUSEADDR, 1); err != nil {
		return err
	}

	// QoS на Windows управляется через qWAVE API, а не сокет-опциями;
	// DSCP маркировка на уровне сокета не применяется
	return nil
}
