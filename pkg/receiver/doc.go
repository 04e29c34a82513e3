// Package receiver реализует прием RTP аудио потока по UDP.
//
// Ядро пакета - цикл приема (Receiver): одна выделенная горутина
// владеет UDP сокетом, разбирает фиксированный 12-байтовый RTP
// заголовок, отслеживает разрывы порядковых номеров (оценка потерь с
// учетом wraparound), доставляет PCM payload в аудио sink и ведет
// статистику, доступную внешним читателям только через снапшоты.
//
// Жизненный цикл управляется конечным автоматом
// (stopped -> starting -> running -> stopping -> stopped):
//
//	snk, err := sink.NewProcessSink(sink.DefaultProcessConfig(), log)
//	if err != nil { ... } // фатально: sink не создан
//	rcv := receiver.New(receiver.DefaultConfig(), snk, log, metrics)
//	if err := rcv.Start(); err != nil { ... } // фатально: bind не удался
//	defer rcv.Stop()
//
// Прием устойчив к сбоям: невалидные датаграммы молча отбрасываются,
// переполнение буфера устройства сбрасывает запись, смерть процесса
// воспроизведения лечится одним авто-рестартом на сбой. Цикл приема
// завершается только по Stop().
//
// Поток данных: UDP датаграмма -> ParsePacket -> SequenceTracker ->
// Stats -> sink.Write -> ConnectionMonitor -> StatsSnapshot.
package receiver
