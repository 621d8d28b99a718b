package service

import (
	"context"
	"strings"

	"github.com/pesio-ai/be-zoo-core/internal/apperrors"
	"github.com/pesio-ai/be-zoo-core/internal/rbac"
	"github.com/pesio-ai/be-zoo-core/internal/repository"
	"github.com/pesio-ai/be-zoo-core/internal/session"
	"github.com/pesio-ai/be-zoo-core/internal/store"
	"github.com/pesio-ai/be-zoo-core/pkg/logger"
)

// EnclosureService manages enclosures
type EnclosureService struct {
	enclosureRepo *repository.EnclosureRepository
	guard         *Guard
	log           *logger.Logger
}

// NewEnclosureService creates a new enclosure service
func NewEnclosureService(enclosureRepo *repository.EnclosureRepository, guard *Guard, log *logger.Logger) *EnclosureService {
	return &EnclosureService{
		enclosureRepo: enclosureRepo,
		guard:         guard,
		log:           log.With("enclosures"),
	}
}

// EnclosureRequest is the payload for creating or updating an enclosure
type EnclosureRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Type     string `json:"type" validate:"max=100"`
	Capacity int    `json:"capacity" validate:"gte=0"`
	Location string `json:"location" validate:"max=255"`
	Notes    string `json:"notes"`
}

func (r *EnclosureRequest) normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Type = strings.TrimSpace(r.Type)
	r.Location = strings.TrimSpace(r.Location)
}

func (r *EnclosureRequest) apply(e *repository.Enclosure) {
	e.Name = r.Name
	e.Type = r.Type
	e.Capacity = r.Capacity
	e.Location = r.Location
	e.Notes = r.Notes
}

// List returns every enclosure with its current animal count
func (s *EnclosureService) List(ctx context.Context) ([]*repository.Enclosure, error) {
	enclosures, err := s.enclosureRepo.List(ctx)
	if err != nil {
		return nil, apperrors.Storage("list enclosures", err)
	}
	return enclosures, nil
}

// Create creates a new enclosure
func (s *EnclosureService) Create(ctx context.Context, sess *session.Session, req *EnclosureRequest) (*repository.Enclosure, error) {
	req.normalize()

	op := Operation{
		Capability: rbac.Cap(rbac.DomainEnclosures, rbac.ActionCreate),
		Action:     "CREATE_ENCLOSURE",
		Entity:     "enclosures",
		Payload:    req,
	}

	enclosure := &repository.Enclosure{}
	_, err := s.guard.Run(ctx, sess, op, func(ctx context.Context, tx store.DBTX) (Change, error) {
		req.apply(enclosure)
		if err := s.enclosureRepo.WithTx(tx).Create(ctx, enclosure); err != nil {
			return Change{}, err
		}
		return Change{EntityID: enclosure.ID, Details: "Created enclosure " + enclosure.Name}, nil
	})
	if err != nil {
		return nil, err
	}

	return enclosure, nil
}

// Update overwrites an enclosure
func (s *EnclosureService) Update(ctx context.Context, sess *session.Session, id int64, req *EnclosureRequest) (*repository.Enclosure, error) {
	req.normalize()

	op := Operation{
		Capability: rbac.Cap(rbac.DomainEnclosures, rbac.ActionUpdate),
		Action:     "UPDATE_ENCLOSURE",
		Entity:     "enclosures",
		Payload:    req,
	}

	enclosure := &repository.Enclosure{ID: id}
	_, err := s.guard.Run(ctx, sess, op, func(ctx context.Context, tx store.DBTX) (Change, error) {
		req.apply(enclosure)
		if err := s.enclosureRepo.WithTx(tx).Update(ctx, enclosure); err != nil {
			return Change{}, err
		}
		return Change{EntityID: id, Details: "Updated enclosure " + enclosure.Name}, nil
	})
	if err != nil {
		return nil, err
	}

	return enclosure, nil
}

// Delete deletes an enclosure; animals in it are left without one
func (s *EnclosureService) Delete(ctx context.Context, sess *session.Session, id int64) error {
	op := Operation{
		Capability: rbac.Cap(rbac.DomainEnclosures, rbac.ActionDelete),
		Action:     "DELETE_ENCLOSURE",
		Entity:     "enclosures",
	}

	_, err := s.guard.Run(ctx, sess, op, func(ctx context.Context, tx store.DBTX) (Change, error) {
		enclosures := s.enclosureRepo.WithTx(tx)

		existing, err := enclosures.GetByID(ctx, id)
		if err != nil {
			return Change{}, err
		}
		if err := enclosures.Delete(ctx, id); err != nil {
			return Change{}, err
		}
		return Change{EntityID: id, Details: "Deleted enclosure " + existing.Name}, nil
	})
	return err
}
