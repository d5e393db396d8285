package vectorstore

import "time"

// Observer receives index lifecycle events.
type Observer interface {
	// OnPersist is called after every snapshot write.
	OnPersist(duration time.Duration, bytes int, err error)
	// OnAdd reports how many entries an AddAndPersist call appended.
	OnAdd(entries int)
	// OnRetrieve is called when a retrieval completes.
	OnRetrieve(duration time.Duration, results int, err error)
	// OnLoadFallback is called when an unreadable snapshot is replaced by a fresh index.
	OnLoadFallback(reason error)
}

// NoopObserver discards all events.
type NoopObserver struct{}

func (NoopObserver) OnPersist(time.Duration, int, error)  {}
func (NoopObserver) OnAdd(int)                            {}
func (NoopObserver) OnRetrieve(time.Duration, int, error) {}
func (NoopObserver) OnLoadFallback(error)                 {}
