package job

// Slot is the single exclusive microphone. It is owned by the event loop
// and is not safe for concurrent use.
type Slot struct {
	holder string
}

// Holder returns the id of the job holding the slot
func (s *Slot) Holder() (string, bool) {
	return s.holder, s.holder != ""
}

// Acquire takes the slot for id. It fails if another job holds it.
func (s *Slot) Acquire(id string) bool {
	if s.holder != "" && s.holder != id {
		return false
	}
	s.holder = id
	return true
}

// Release frees the slot if id holds it
func (s *Slot) Release(id string) {
	if s.holder == id {
		s.holder = ""
	}
}
