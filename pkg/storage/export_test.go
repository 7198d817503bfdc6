package storage

import "time"

func (s *Store) OverloadClock(now func() time.Time) func() {
	ref := s.now
	s.now = now
	return func() { s.now = ref }
}

func (s *Store) OverloadID(newID func() string) func() {
	ref := s.newID
	s.newID = newID
	return func() { s.newID = ref }
}
