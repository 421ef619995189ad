package service

import "time"

// SetClock 替换 GameService 的时间源
func (s *GameService) SetClock(now func() time.Time) {
	s.now = now
}
