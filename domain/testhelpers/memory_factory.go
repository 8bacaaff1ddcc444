package testhelpers

import (
	"fundsledger/domain/interfaces"
	"fundsledger/repository/memory"
)

// MemoryUnitOfWorkFactory creates units of work over an in-memory store. Each
// one buffers its events and forwards them to Events on commit.
type MemoryUnitOfWorkFactory struct {
	repos  *memory.UnitOfWorkFactory
	Events *RecordingPublisher
}

// NewMemoryUnitOfWorkFactory creates a factory over store with a fresh recorder
func NewMemoryUnitOfWorkFactory(store *memory.Store) *MemoryUnitOfWorkFactory {
	return &MemoryUnitOfWorkFactory{
		repos:  memory.NewUnitOfWorkFactory(store),
		Events: &RecordingPublisher{},
	}
}

func (f *MemoryUnitOfWorkFactory) Create() interfaces.UnitOfWork {
	return f.repos.CreateWithPublisher(NewBufferedPublisher(f.Events))
}
