package backoff

import (
	"math/rand"
	"time"
)

// Policy описывает ограниченную экспоненциальную задержку между попытками.
type Policy struct {
	Initial      time.Duration
	Max          time.Duration
	Multiplier   float64
	JitterFactor float64
	MaxAttempts  int
}

// Default — политика переподключения по умолчанию: 1s, x2, потолок 30s,
// не более 5 попыток.
func Default() Policy {
	return Policy{
		Initial:      time.Second,
		Max:          30 * time.Second,
		Multiplier:   2,
		JitterFactor: 0.2,
		MaxAttempts:  5,
	}
}

func (p Policy) normalized() Policy {
	if p.Initial <= 0 {
		p.Initial = 500 * time.Millisecond
	}
	if p.Max <= 0 {
		p.Max = 10 * time.Second
	}
	if p.Multiplier < 1 {
		p.Multiplier = 2
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	return p
}

// Delay возвращает задержку перед попыткой с номером attempt (с единицы).
// Результат без джиттера монотонно не убывает до потолка Max.
func (p Policy) Delay(attempt int) time.Duration {
	p = p.normalized()
	if attempt < 1 {
		attempt = 1
	}

	delay := p.Initial
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * p.Multiplier)
		if delay >= p.Max {
			return p.Max
		}
	}
	if delay > p.Max {
		delay = p.Max
	}
	return delay
}

// DelayWithJitter — Delay плюс случайное отклонение ±JitterFactor.
func (p Policy) DelayWithJitter(attempt int) time.Duration {
	base := p.Delay(attempt)
	if p.JitterFactor <= 0 {
		return base
	}
	delta := int64(float64(base) * p.JitterFactor)
	if delta <= 0 {
		return base
	}
	return base + time.Duration(rand.Int63n(2*delta)-delta)
}

// Exhausted сообщает, что лимит попыток исчерпан.
func (p Policy) Exhausted(attempt int) bool {
	p = p.normalized()
	return attempt > p.MaxAttempts
}
