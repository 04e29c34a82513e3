package receiver

import "encoding/binary"

// Константы для валидации пакетов согласно RFC 3550
const (
	// RTPHeaderSize минимальный (фиксированный) размер RTP заголовка
	RTPHeaderSize = 12

	// MaxRTPPacketSize максимальный размер датаграммы (MTU limit)
	MaxRTPPacketSize = 1500

	// ExpectedRTPVersion RFC 3550: версия RTP должна быть 2
	ExpectedRTPVersion = 2
)

// Header представляет фиксированный 12-байтовый RTP заголовок.
//
// Потребляются только Version, PayloadType и SequenceNumber; остальные
// поля декодируются для диагностики, но на логику приема не влияют.
// Расширения (padding, CSRC list, extension header) не разбираются:
// payload всегда начинается с байта 12.
type Header struct {
	Version        uint8  // 2 бита, принимаем только версию 2
	Padding        bool   // P flag
	Extension      bool   // X flag
	CSRCCount      uint8  // CC, 4 бита
	Marker         bool   // M flag
	PayloadType    uint8  // PT, 7 бит
	SequenceNumber uint16 // порядковый номер, wraparound mod 65536
	Timestamp      uint32 // RTP timestamp
	SSRC           uint32 // идентификатор источника синхронизации
}

// ParsePacket декодирует фиксированный RTP заголовок из сырой датаграммы
// (network byte order) и возвращает payload начиная со смещения 12.
//
// Возвращает ErrMalformedPacket если датаграмма короче 12 байт.
// Версия != 2 НЕ является ошибкой парсинга: решение отбросить пакет
// принимает вызывающая сторона (политика: молча игнорировать).
// Payload может быть пустым - это валидный RTP пакет.
func ParsePacket(data []byte) (Header, []byte, error) {
	if len(data) < RTPHeaderSize {
		return Header{}, nil, ErrMalformedPacket
	}

	h := Header{
		Version:        (data[0] >> 6) & 0x03,
		Padding:        (data[0]>>5)&0x01 == 1,
		Extension:      (data[0]>>4)&0x01 == 1,
		CSRCCount:      data[0] & 0x0F,
		Marker:         (data[1]>>7)&0x01 == 1,
		PayloadType:    data[1] & 0x7F,
		SequenceNumber: binary.BigEndian.Uint16(data[2:4]),
		Timestamp:      binary.BigEndian.Uint32(data[4:8]),
		SSRC:           binary.BigEndian.Uint32(data[8:12]),
	}

	return h, data[RTPHeaderSize:], nil
}
