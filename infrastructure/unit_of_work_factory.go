package infrastructure

import (
	"fundsledger/domain/interfaces"
)

// RepositoryFactory is implemented by the postgres and memory stores
type RepositoryFactory interface {
	CreateWithPublisher(transactionalPublisher interfaces.TransactionalEventPublisher) interfaces.UnitOfWork
}

// UnitOfWorkFactory gives every unit of work its own transactional publisher
// in front of the shared event publisher.
type UnitOfWorkFactory struct {
	repoFactory    RepositoryFactory
	eventPublisher interfaces.EventPublisher
}

// NewUnitOfWorkFactory creates a factory implementing interfaces.UnitOfWorkFactory
func NewUnitOfWorkFactory(repoFactory RepositoryFactory, eventPublisher interfaces.EventPublisher) *UnitOfWorkFactory {
	return &UnitOfWorkFactory{
		repoFactory:    repoFactory,
		eventPublisher: eventPublisher,
	}
}

// Create creates a new UnitOfWork with a transactional event publisher
func (f *UnitOfWorkFactory) Create() interfaces.UnitOfWork {
	return f.repoFactory.CreateWithPublisher(NewNATSTransactionalPublisher(f.eventPublisher))
}
