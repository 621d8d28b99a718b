package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pesio-ai/be-zoo-core/internal/apperrors"
	"github.com/pesio-ai/be-zoo-core/internal/rbac"
	"github.com/pesio-ai/be-zoo-core/internal/repository"
	"github.com/pesio-ai/be-zoo-core/internal/session"
	"github.com/pesio-ai/be-zoo-core/internal/store"
	"github.com/pesio-ai/be-zoo-core/pkg/logger"
)

// FeedingService manages feed schedules
type FeedingService struct {
	feedingRepo *repository.FeedingRepository
	animalRepo  *repository.AnimalRepository
	guard       *Guard
	log         *logger.Logger
}

// NewFeedingService creates a new feeding service
func NewFeedingService(
	feedingRepo *repository.FeedingRepository,
	animalRepo *repository.AnimalRepository,
	guard *Guard,
	log *logger.Logger,
) *FeedingService {
	return &FeedingService{
		feedingRepo: feedingRepo,
		animalRepo:  animalRepo,
		guard:       guard,
		log:         log.With("feeding"),
	}
}

// FeedScheduleRequest is the payload for creating or updating a schedule
type FeedScheduleRequest struct {
	AnimalID     int64  `json:"animal_id" validate:"required,gt=0"`
	FeedItem     string `json:"feed_item" validate:"required,max=100"`
	Quantity     string `json:"quantity" validate:"required,max=50"`
	ScheduleTime string `json:"schedule_time" validate:"required,clock"`
	Frequency    string `json:"frequency" validate:"required,max=50"`
}

func (r *FeedScheduleRequest) normalize() {
	r.FeedItem = strings.TrimSpace(r.FeedItem)
	r.Quantity = strings.TrimSpace(r.Quantity)
	r.ScheduleTime = strings.TrimSpace(r.ScheduleTime)
	r.Frequency = strings.TrimSpace(r.Frequency)
}

func (r *FeedScheduleRequest) apply(f *repository.FeedSchedule) {
	f.AnimalID = r.AnimalID
	f.FeedItem = r.FeedItem
	f.Quantity = r.Quantity
	f.ScheduleTime = r.ScheduleTime
	f.Frequency = r.Frequency
}

// List returns every schedule with its animal, ordered by time of day
func (s *FeedingService) List(ctx context.Context) ([]*repository.FeedSchedule, error) {
	schedules, err := s.feedingRepo.List(ctx)
	if err != nil {
		return nil, apperrors.Storage("list feed schedules", err)
	}
	return schedules, nil
}

// Create creates a new feed schedule
func (s *FeedingService) Create(ctx context.Context, sess *session.Session, req *FeedScheduleRequest) (*repository.FeedSchedule, error) {
	req.normalize()

	op := Operation{
		Capability: rbac.Cap(rbac.DomainFeeding, rbac.ActionCreate),
		Action:     "CREATE_FEEDING",
		Entity:     "feed_schedules",
		Payload:    req,
	}

	schedule := &repository.FeedSchedule{}
	_, err := s.guard.Run(ctx, sess, op, func(ctx context.Context, tx store.DBTX) (Change, error) {
		animal, err := s.animal(ctx, tx, req.AnimalID)
		if err != nil {
			return Change{}, err
		}

		req.apply(schedule)
		if err := s.feedingRepo.WithTx(tx).Create(ctx, schedule); err != nil {
			return Change{}, err
		}
		schedule.AnimalName = animal.Name
		schedule.AnimalSpecies = animal.Species

		return Change{
			EntityID: schedule.ID,
			Details:  fmt.Sprintf("%s for %s at %s", schedule.FeedItem, animal.Name, schedule.ScheduleTime),
		}, nil
	})
	if err != nil {
		return nil, err
	}

	return schedule, nil
}

// Update overwrites a feed schedule
func (s *FeedingService) Update(ctx context.Context, sess *session.Session, id int64, req *FeedScheduleRequest) (*repository.FeedSchedule, error) {
	req.normalize()

	op := Operation{
		Capability: rbac.Cap(rbac.DomainFeeding, rbac.ActionUpdate),
		Action:     "UPDATE_FEEDING",
		Entity:     "feed_schedules",
		Payload:    req,
	}

	schedule := &repository.FeedSchedule{ID: id}
	_, err := s.guard.Run(ctx, sess, op, func(ctx context.Context, tx store.DBTX) (Change, error) {
		animal, err := s.animal(ctx, tx, req.AnimalID)
		if err != nil {
			return Change{}, err
		}

		req.apply(schedule)
		if err := s.feedingRepo.WithTx(tx).Update(ctx, schedule); err != nil {
			return Change{}, err
		}
		schedule.AnimalName = animal.Name
		schedule.AnimalSpecies = animal.Species

		return Change{
			EntityID: id,
			Details:  fmt.Sprintf("%s for %s at %s", schedule.FeedItem, animal.Name, schedule.ScheduleTime),
		}, nil
	})
	if err != nil {
		return nil, err
	}

	return schedule, nil
}

// Delete deletes a feed schedule
func (s *FeedingService) Delete(ctx context.Context, sess *session.Session, id int64) error {
	op := Operation{
		Capability: rbac.Cap(rbac.DomainFeeding, rbac.ActionDelete),
		Action:     "DELETE_FEEDING",
		Entity:     "feed_schedules",
	}

	_, err := s.guard.Run(ctx, sess, op, func(ctx context.Context, tx store.DBTX) (Change, error) {
		if err := s.feedingRepo.WithTx(tx).Delete(ctx, id); err != nil {
			return Change{}, err
		}
		return Change{EntityID: id}, nil
	})
	return err
}

// animal resolves the schedule's animal; a missing one is a payload error
func (s *FeedingService) animal(ctx context.Context, tx store.DBTX, id int64) (*repository.Animal, error) {
	animal, err := s.animalRepo.WithTx(tx).GetByID(ctx, id)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.NewValidationError("animal_id", fmt.Sprintf("animal %d does not exist", id))
	}
	return animal, err
}
