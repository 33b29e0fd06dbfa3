package clock

import "time"

// Clock is injected wherever activation timestamps are produced.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func New() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now().UTC() }
