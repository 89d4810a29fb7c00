package payment

// SheetLock guards the singleton confirmation sheet. The checkout and
// subscription orchestrators share one instance because both ultimately drive
// the same sheet. TryAcquire never blocks: a caller arriving while locked
// gets an immediate refusal instead of queueing.
type SheetLock struct {
	slot chan struct{}
}

func NewSheetLock() *SheetLock {
	return &SheetLock{slot: make(chan struct{}, 1)}
}

func (l *SheetLock) TryAcquire() bool {
	select {
	case l.slot <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release is safe to call from a defer on every exit path, including paths
// where acquisition never happened.
func (l *SheetLock) Release() {
	select {
	case <-l.slot:
	default:
	}
}

// Held reports whether a confirmation is currently in flight.
func (l *SheetLock) Held() bool {
	return len(l.slot) == 1
}
