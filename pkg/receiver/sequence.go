package receiver

// SequenceTracker отслеживает порядковые номера RTP пакетов и оценивает
// количество потерянных пакетов по разрывам в последовательности.
//
// Каждый наблюдаемый номер становится новой базой независимо от разрыва:
// дубликаты и пакеты пришедшие не по порядку не корректируются, а
// принимаются как новая точка отсчета. Дубликат (seq == lastSequence)
// неотличим от "без потерь" и возвращает 0 - это принятое поведение.
type SequenceTracker struct {
	initialized  bool
	lastSequence uint16
}

// Observe обрабатывает очередной порядковый номер и возвращает оценку
// количества потерянных пакетов.
//
// Первый вызов устанавливает базу и возвращает 0. Далее ожидается
// (lastSequence + 1) mod 65536; разрыв считается как
// (seq - expected) mod 65536 - беззнаковая арифметика uint16 дает
// корректный wraparound без отрицательных значений.
func (t *SequenceTracker) Observe(seq uint16) uint16 {
	if !t.initialized {
		t.initialized = true
		t.lastSequence = seq
		return 0
	}

	// дубликат: та же база, потерь нет
	if seq == t.lastSequence {
		return 0
	}

	expected := t.lastSequence + 1
	t.lastSequence = seq

	if seq == expected {
		return 0
	}
	return seq - expected
}

// Last возвращает последний наблюдаемый порядковый номер и флаг того,
// что хотя бы один пакет был принят.
func (t *SequenceTracker) Last() (uint16, bool) {
	return t.lastSequence, t.initialized
}

// Reset сбрасывает трекер в исходное состояние (нет базы)
func (t *SequenceTracker) Reset() {
	t.initialized = false
	t.lastSequence = 0
}
