package ampoule

import (
	"github.com/google/uuid"
)

type IService interface {
	GetValue() int
}

type Service struct {
	value string
}

func (s *Service) GetValue() int {
	return 12
}

func NewService() IService {
	return &Service{value: uuid.NewString()}
}

type IRepository interface {
	Name() string
}

type Repository struct {
	id string
}

func (r *Repository) Name() string {
	return "repository"
}

func NewRepository() IRepository {
	return &Repository{id: uuid.NewString()}
}

type ServiceWithRepository struct {
	id         string
	repository IRepository
}

func NewServiceWithRepository(repository IRepository) *ServiceWithRepository {
	return &ServiceWithRepository{id: uuid.NewString(), repository: repository}
}

type EventLog struct {
	Entries []string
}

type Emitter struct {
	id  string
	Log *EventLog
}

func NewEmitter(log *EventLog) *Emitter {
	return &Emitter{id: uuid.NewString(), Log: log}
}

type DisposableService struct {
	id       string
	disposed bool
}

func NewDisposableService() *DisposableService {
	return &DisposableService{id: uuid.NewString()}
}

func (s *DisposableService) Dispose() error {
	s.disposed = true
	return nil
}

func (s *DisposableService) IsDisposed() bool {
	return s.disposed
}
