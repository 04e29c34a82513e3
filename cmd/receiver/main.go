// Приемник RTP аудио потока: принимает PCM по UDP, выводит на аудио
// устройство, публикует status API и mDNS запись сервиса.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/arzzra/audio_receiver/pkg/service"
)

func main() {
	var (
		device   = flag.String("device", "default", "Аудио устройство: имя ALSA устройства или путь файла устройства")
		rtpPort  = flag.Int("rtp-port", 5004, "UDP порт приема RTP")
		httpPort = flag.Int("http-port", 8080, "Порт HTTP status API")
		noMDNS   = flag.Bool("no-mdns", false, "Отключить mDNS публикацию сервиса")
		verbose  = flag.Bool("verbose", false, "Подробное логирование")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	config := service.Config{
		Device:           *device,
		RTPPort:          *rtpPort,
		HTTPPort:         *httpPort,
		DisableDiscovery: *noMDNS,
	}

	svc, err := service.New(config, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ошибка конфигурации: %v\n", err)
		os.Exit(2)
	}

	if err := svc.Start(); err != nil {
		log.Error("не удалось запустить сервис", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// ожидание Ctrl-C / SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("получен сигнал завершения", slog.String("signal", sig.String()))

	svc.Stop()
}
