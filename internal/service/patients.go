package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/clinickit/internal/domain"
	"github.com/dmitrymomot/clinickit/internal/store"
	"github.com/dmitrymomot/clinickit/pkg/audit"
	"github.com/dmitrymomot/clinickit/pkg/limits"
	"github.com/dmitrymomot/clinickit/pkg/scope"
)

// PatientRepository is implemented by *store.PatientStore.
type PatientRepository interface {
	Create(ctx context.Context, p *domain.Patient) error
	Get(ctx context.Context, id uuid.UUID, opts ...scope.Option) (domain.Patient, error)
	List(ctx context.Context, f store.PatientFilter) ([]domain.Patient, error)
	Update(ctx context.Context, p domain.Patient) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	Restore(ctx context.Context, id uuid.UUID) error
}

// PatientService manages the patients of the tenant in context.
type PatientService struct {
	repo   PatientRepository
	limits LimitChecker
	audit  AuditLog
	now    func() time.Time
}

// NewPatientService creates a PatientService.
func NewPatientService(repo PatientRepository, lc LimitChecker, a AuditLog) *PatientService {
	if a == nil {
		a = nopAudit{}
	}
	return &PatientService{repo: repo, limits: lc, audit: a, now: time.Now}
}

// PatientInput creates or replaces a patient.
type PatientInput struct {
	Name             string               `json:"name"`
	BirthDate        time.Time            `json:"birth_date"`
	Gender           string               `json:"gender,omitempty"`
	Phone            string               `json:"phone,omitempty"`
	EmergencyContact string               `json:"emergency_contact,omitempty"`
	PrimaryDiagnosis string               `json:"primary_diagnosis,omitempty"`
	Status           domain.PatientStatus `json:"status,omitempty"`
	Notes            string               `json:"notes,omitempty"`
}

func (in PatientInput) validate(now time.Time) error {
	var errs []error
	if strings.TrimSpace(in.Name) == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if in.BirthDate.IsZero() || in.BirthDate.After(now) {
		errs = append(errs, errors.New("birth date is invalid"))
	}
	switch in.Gender {
	case "", "M", "F", "O":
	default:
		errs = append(errs, fmt.Errorf("unknown gender %q", in.Gender))
	}
	if in.Status != "" && !in.Status.Valid() {
		errs = append(errs, fmt.Errorf("unknown status %q", in.Status))
	}
	if len(errs) > 0 {
		return errors.Join(append([]error{ErrInvalidInput}, errs...)...)
	}
	return nil
}

func (in PatientInput) apply(p *domain.Patient) {
	p.Name = strings.TrimSpace(in.Name)
	p.BirthDate = in.BirthDate
	p.Gender = in.Gender
	p.Phone = in.Phone
	p.EmergencyContact = in.EmergencyContact
	p.PrimaryDiagnosis = in.PrimaryDiagnosis
	p.Notes = in.Notes
	if in.Status != "" {
		p.Status = in.Status
	}
}

// Create registers a patient if the tenant's patient limit allows it.
func (s *PatientService) Create(ctx context.Context, in PatientInput) (domain.Patient, error) {
	t, err := currentTenant(ctx)
	if err != nil {
		return domain.Patient{}, err
	}
	if err := in.validate(s.now()); err != nil {
		return domain.Patient{}, err
	}
	if _, err := s.limits.Check(ctx, t, limits.ResourcePatients, 1); err != nil {
		return domain.Patient{}, err
	}

	var p domain.Patient
	in.apply(&p)
	if err := s.repo.Create(ctx, &p); err != nil {
		return domain.Patient{}, err
	}
	s.limits.Invalidate(ctx, t.ID, limits.ResourcePatients)
	_ = s.audit.Info(ctx, "patient.created", p.Name, audit.WithExtra("patient_id", p.ID.String()))
	return p, nil
}

// Get returns a patient; soft-deleted ones only when withDeleted is set.
func (s *PatientService) Get(ctx context.Context, id uuid.UUID, withDeleted bool) (domain.Patient, error) {
	var opts []scope.Option
	if withDeleted {
		opts = append(opts, scope.WithDeleted())
	}
	p, err := s.repo.Get(ctx, id, opts...)
	if errors.Is(err, store.ErrNotFound) {
		return p, ErrNotFound
	}
	return p, err
}

// List returns the current tenant's patients matching f.
func (s *PatientService) List(ctx context.Context, f store.PatientFilter) ([]domain.Patient, error) {
	return s.repo.List(ctx, f)
}

// Update replaces the editable fields of a patient.
func (s *PatientService) Update(ctx context.Context, id uuid.UUID, in PatientInput) (domain.Patient, error) {
	if err := in.validate(s.now()); err != nil {
		return domain.Patient{}, err
	}
	p, err := s.Get(ctx, id, false)
	if err != nil {
		return p, err
	}
	in.apply(&p)
	if err := s.repo.Update(ctx, p); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return p, ErrNotFound
		}
		return p, err
	}
	return p, nil
}

// Delete soft-deletes a patient. The record stays restorable.
func (s *PatientService) Delete(ctx context.Context, id uuid.UUID) error {
	t, err := currentTenant(ctx)
	if err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	s.limits.Invalidate(ctx, t.ID, limits.ResourcePatients)
	_ = s.audit.Warning(ctx, "patient.deleted", id.String(), audit.WithExtra("patient_id", id.String()))
	return nil
}

// Restore undeletes a patient if the limit allows one more.
func (s *PatientService) Restore(ctx context.Context, id uuid.UUID) error {
	t, err := currentTenant(ctx)
	if err != nil {
		return err
	}
	if _, err := s.limits.Check(ctx, t, limits.ResourcePatients, 1); err != nil {
		return err
	}
	if err := s.repo.Restore(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	s.limits.Invalidate(ctx, t.ID, limits.ResourcePatients)
	return nil
}
