package application

import "time"

// Clock abstraction supaya submission timestamp gampang ditest
type Clock interface {
	Now() time.Time
}

// SystemClock implementasi default untuk production, pakai time.Now()
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
