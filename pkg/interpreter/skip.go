package interpreter

import "sync"

// SkipMode fast-forwards dialog. It can only be switched on once unlocked
// and switches itself off at every choice and mini-game.
type SkipMode struct {
	mu       sync.Mutex
	unlocked bool
	active   bool
}

// Unlock allows the player to toggle skip mode
func (s *SkipMode) Unlock() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unlocked = true
}

// Unlocked reports whether skip mode is available
func (s *SkipMode) Unlocked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unlocked
}

// Toggle flips skip mode and returns the new state. It is a no-op while locked.
func (s *SkipMode) Toggle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unlocked {
		s.active = !s.active
	}
	return s.active
}

// Disable switches skip mode off
func (s *SkipMode) Disable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
}

// Active reports whether dialog should be fast-forwarded
func (s *SkipMode) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}
