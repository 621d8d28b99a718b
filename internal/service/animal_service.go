package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pesio-ai/be-zoo-core/internal/apperrors"
	"github.com/pesio-ai/be-zoo-core/internal/rbac"
	"github.com/pesio-ai/be-zoo-core/internal/repository"
	"github.com/pesio-ai/be-zoo-core/internal/session"
	"github.com/pesio-ai/be-zoo-core/internal/store"
	"github.com/pesio-ai/be-zoo-core/pkg/logger"
)

const (
	DefaultSex          = "Unknown"
	DefaultHealthStatus = "Healthy"
)

// AnimalService manages animal records
type AnimalService struct {
	animalRepo    *repository.AnimalRepository
	enclosureRepo *repository.EnclosureRepository
	guard         *Guard
	log           *logger.Logger
}

// NewAnimalService creates a new animal service
func NewAnimalService(
	animalRepo *repository.AnimalRepository,
	enclosureRepo *repository.EnclosureRepository,
	guard *Guard,
	log *logger.Logger,
) *AnimalService {
	return &AnimalService{
		animalRepo:    animalRepo,
		enclosureRepo: enclosureRepo,
		guard:         guard,
		log:           log.With("animals"),
	}
}

// AnimalRequest is the payload for creating or updating an animal
type AnimalRequest struct {
	TagID        string     `json:"tag_id" validate:"required,max=50"`
	Name         string     `json:"name" validate:"required,max=100"`
	Species      string     `json:"species" validate:"required,max=100"`
	Sex          string     `json:"sex" validate:"oneof=Male Female Unknown"`
	DOB          *time.Time `json:"dob"`
	EnclosureID  *int64     `json:"enclosure_id" validate:"omitempty,gt=0"`
	HealthStatus string     `json:"health_status" validate:"max=100"`
	Notes        string     `json:"notes"`
}

func (r *AnimalRequest) normalize() {
	r.TagID = strings.TrimSpace(r.TagID)
	r.Name = strings.TrimSpace(r.Name)
	r.Species = strings.TrimSpace(r.Species)
	r.Sex = strings.TrimSpace(r.Sex)
	if r.Sex == "" {
		r.Sex = DefaultSex
	}
	r.HealthStatus = strings.TrimSpace(r.HealthStatus)
	if r.HealthStatus == "" {
		r.HealthStatus = DefaultHealthStatus
	}
	if r.DOB != nil {
		d := dateOf(*r.DOB)
		r.DOB = &d
	}
}

func (r *AnimalRequest) apply(a *repository.Animal) {
	a.TagID = r.TagID
	a.Name = r.Name
	a.Species = r.Species
	a.Sex = r.Sex
	a.DOB = r.DOB
	a.EnclosureID = r.EnclosureID
	a.HealthStatus = r.HealthStatus
	a.Notes = r.Notes
}

// HealthRequest records the outcome of a checkup
type HealthRequest struct {
	Status string `json:"status" validate:"required,max=100"`
}

// List returns every animal with its enclosure name, newest first
func (s *AnimalService) List(ctx context.Context) ([]*repository.Animal, error) {
	animals, err := s.animalRepo.List(ctx)
	if err != nil {
		return nil, apperrors.Storage("list animals", err)
	}
	return animals, nil
}

// Create creates a new animal
func (s *AnimalService) Create(ctx context.Context, sess *session.Session, req *AnimalRequest) (*repository.Animal, error) {
	req.normalize()

	op := Operation{
		Capability: rbac.Cap(rbac.DomainAnimals, rbac.ActionCreate),
		Action:     "CREATE_ANIMAL",
		Entity:     "animals",
		Payload:    req,
	}

	animal := &repository.Animal{}
	_, err := s.guard.Run(ctx, sess, op, func(ctx context.Context, tx store.DBTX) (Change, error) {
		if err := s.checkReferences(ctx, tx, req, 0); err != nil {
			return Change{}, err
		}

		req.apply(animal)
		if err := s.animalRepo.WithTx(tx).Create(ctx, animal); err != nil {
			return Change{}, err
		}
		return Change{
			EntityID: animal.ID,
			Details:  fmt.Sprintf("Created %s (%s)", animal.Name, animal.Species),
		}, nil
	})
	if err != nil {
		return nil, err
	}

	return animal, nil
}

// Update overwrites an animal record
func (s *AnimalService) Update(ctx context.Context, sess *session.Session, id int64, req *AnimalRequest) (*repository.Animal, error) {
	req.normalize()

	op := Operation{
		Capability: rbac.Cap(rbac.DomainAnimals, rbac.ActionUpdate),
		Action:     "UPDATE_ANIMAL",
		Entity:     "animals",
		Payload:    req,
	}

	var animal *repository.Animal
	_, err := s.guard.Run(ctx, sess, op, func(ctx context.Context, tx store.DBTX) (Change, error) {
		animals := s.animalRepo.WithTx(tx)

		existing, err := animals.GetByID(ctx, id)
		if err != nil {
			return Change{}, err
		}
		if err := s.checkReferences(ctx, tx, req, id); err != nil {
			return Change{}, err
		}

		req.apply(existing)
		if err := animals.Update(ctx, existing); err != nil {
			return Change{}, err
		}

		animal = existing
		return Change{
			EntityID: id,
			Details:  fmt.Sprintf("Updated %s (%s)", existing.Name, existing.Species),
		}, nil
	})
	if err != nil {
		return nil, err
	}

	return animal, nil
}

// UpdateHealth sets the health status and stamps today as the last checkup
func (s *AnimalService) UpdateHealth(ctx context.Context, sess *session.Session, id int64, req *HealthRequest) error {
	req.Status = strings.TrimSpace(req.Status)

	op := Operation{
		Capability: rbac.Cap(rbac.DomainAnimals, rbac.ActionUpdate),
		Action:     "UPDATE_HEALTH",
		Entity:     "animals",
		Payload:    req,
	}

	_, err := s.guard.Run(ctx, sess, op, func(ctx context.Context, tx store.DBTX) (Change, error) {
		if err := s.animalRepo.WithTx(tx).UpdateHealth(ctx, id, req.Status, dateOf(time.Now())); err != nil {
			return Change{}, err
		}
		return Change{EntityID: id, Details: "Health -> " + req.Status}, nil
	})
	return err
}

// Delete deletes an animal along with its feed schedules
func (s *AnimalService) Delete(ctx context.Context, sess *session.Session, id int64) error {
	op := Operation{
		Capability: rbac.Cap(rbac.DomainAnimals, rbac.ActionDelete),
		Action:     "DELETE_ANIMAL",
		Entity:     "animals",
	}

	_, err := s.guard.Run(ctx, sess, op, func(ctx context.Context, tx store.DBTX) (Change, error) {
		animals := s.animalRepo.WithTx(tx)

		existing, err := animals.GetByID(ctx, id)
		if err != nil {
			return Change{}, err
		}
		if err := animals.Delete(ctx, id); err != nil {
			return Change{}, err
		}
		return Change{
			EntityID: id,
			Details:  fmt.Sprintf("Deleted %s (%s)", existing.Name, existing.Species),
		}, nil
	})
	return err
}

// checkReferences rejects a taken tag id or a missing enclosure
func (s *AnimalService) checkReferences(ctx context.Context, tx store.DBTX, req *AnimalRequest, exceptID int64) error {
	taken, err := s.animalRepo.WithTx(tx).TagInUse(ctx, req.TagID, exceptID)
	if err != nil {
		return err
	}
	if taken {
		return apperrors.NewValidationError("tag_id", fmt.Sprintf("tag_id %q is already in use", req.TagID))
	}

	if req.EnclosureID == nil {
		return nil
	}
	_, err = s.enclosureRepo.WithTx(tx).GetByID(ctx, *req.EnclosureID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return apperrors.NewValidationError("enclosure_id", fmt.Sprintf("enclosure %d does not exist", *req.EnclosureID))
	}
	return err
}

// dateOf truncates t to its calendar day, keeping the local date
func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
