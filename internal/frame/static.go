package frame

import "sync"

// Static is a Window whose answers are fixed at construction, typically from
// configuration (the widget process is told which page embedded it).
type Static struct {
	Top         bool
	ReferrerURL string
	// Err, when set, is returned by IsTop to model a refused check.
	Err error

	once      sync.Once
	closeOnce sync.Once
	unload    chan struct{}
}

// NewStatic returns a window that is embedded when referrer is non-empty
func NewStatic(referrer string) *Static {
	return &Static{Top: referrer == "", ReferrerURL: referrer}
}

func (s *Static) IsTop() (bool, error) {
	if s.Err != nil {
		return false, s.Err
	}
	return s.Top, nil
}

func (s *Static) Referrer() string {
	return s.ReferrerURL
}

func (s *Static) Unloading() <-chan struct{} {
	s.init()
	return s.unload
}

// Unload signals that the hosting page is going away. Safe to call twice.
func (s *Static) Unload() {
	s.init()
	s.closeOnce.Do(func() { close(s.unload) })
}

func (s *Static) init() {
	s.once.Do(func() {
		s.unload = make(chan struct{})
	})
}
