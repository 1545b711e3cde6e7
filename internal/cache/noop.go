package cache

import "time"

// Noop satisfies Cache without storing anything, for deployments that
// disable caching and for tests that assert store-level behavior.
type Noop struct{}

func NewNoop() Noop { return Noop{} }

func (Noop) Get(string) ([]byte, bool)                    { return nil, false }
func (Noop) SetWithTTL(string, []byte, time.Duration) error { return nil }
func (Noop) Delete(string) error                          { return nil }
