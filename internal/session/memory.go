package session

import "sync"

// MemoryJar is a CookieJar held in memory. A negative max age deletes.
type MemoryJar struct {
	mu      sync.Mutex
	Cookies map[string]string
	MaxAges map[string]int
}

func NewMemoryJar() *MemoryJar {
	return &MemoryJar{Cookies: make(map[string]string), MaxAges: make(map[string]int)}
}

func (j *MemoryJar) Get(name string) (string, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	v, ok := j.Cookies[name]
	return v, ok
}

func (j *MemoryJar) Set(name, value string, maxAge int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if maxAge < 0 {
		delete(j.Cookies, name)
		delete(j.MaxAges, name)
		return
	}
	j.Cookies[name] = value
	j.MaxAges[name] = maxAge
}
