package store

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/dmitrymomot/clinickit/internal/domain"
	"github.com/dmitrymomot/clinickit/pkg/scope"
)

var patientColumns = []string{
	"id", "tenant_id", "name", "birth_date", "gender", "phone", "emergency_contact",
	"primary_diagnosis", "status", "notes", "is_active", "created_at", "updated_at", "deleted_at",
}

func scanPatient(r rowScanner) (domain.Patient, error) {
	var p domain.Patient
	err := r.Scan(&p.ID, &p.TenantID, &p.Name, &p.BirthDate, &p.Gender, &p.Phone, &p.EmergencyContact,
		&p.PrimaryDiagnosis, &p.Status, &p.Notes, &p.IsActive, &p.CreatedAt, &p.UpdatedAt, &p.DeletedAt)
	return p, err
}

// PatientFilter narrows List.
type PatientFilter struct {
	Visibility scope.Visibility
	Status     domain.PatientStatus
	Search     string
	Limit      int
	Offset     int
}

// PatientStore persists patients of the tenant in context.
type PatientStore struct {
	db    DB
	table scope.Table
}

// NewPatientStore creates a PatientStore.
func NewPatientStore(db DB) *PatientStore {
	return &PatientStore{db: db, table: scope.On("patients")}
}

// Create inserts p into the tenant in context and fills its generated
// fields.
func (s *PatientStore) Create(ctx context.Context, p *domain.Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = domain.PatientActive
	}
	now := time.Now().UTC()
	p.IsActive, p.CreatedAt, p.UpdatedAt = true, now, now

	b, err := s.table.Insert(ctx, map[string]any{
		"id": p.ID, "name": p.Name, "birth_date": p.BirthDate, "gender": p.Gender, "phone": p.Phone,
		"emergency_contact": p.EmergencyContact, "primary_diagnosis": p.PrimaryDiagnosis,
		"status": string(p.Status), "notes": p.Notes, "is_active": true, "created_at": now, "updated_at": now,
	})
	if err != nil {
		return err
	}
	query, args, err := b.Suffix("RETURNING tenant_id").ToSql()
	if err != nil {
		return err
	}
	return mapErr(s.db.QueryRow(ctx, query, args...).Scan(&p.TenantID))
}

// Get returns a live patient; scope options widen the lookup.
func (s *PatientStore) Get(ctx context.Context, id uuid.UUID, opts ...scope.Option) (domain.Patient, error) {
	b, err := s.table.With(opts...).Select(ctx, patientColumns...)
	if err != nil {
		return domain.Patient{}, err
	}
	return queryOne(ctx, s.db, b.Where(sq.Eq{"id": id}), scanPatient)
}

// List returns patients ordered by name.
func (s *PatientStore) List(ctx context.Context, f PatientFilter) ([]domain.Patient, error) {
	b, err := s.table.With(scope.WithVisibility(f.Visibility)).Select(ctx, patientColumns...)
	if err != nil {
		return nil, err
	}
	if f.Status != "" {
		b = b.Where(sq.Eq{"status": string(f.Status)})
	}
	if f.Search != "" {
		b = b.Where(sq.ILike{"name": "%" + f.Search + "%"})
	}
	return queryAll(ctx, s.db, paginate(b.OrderBy("name"), f.Limit, f.Offset), scanPatient)
}

// Update writes the editable fields of p.
func (s *PatientStore) Update(ctx context.Context, p domain.Patient) error {
	b, err := s.table.Update(ctx)
	if err != nil {
		return err
	}
	return execOne(ctx, s.db, b.SetMap(map[string]any{
		"name": p.Name, "birth_date": p.BirthDate, "gender": p.Gender, "phone": p.Phone,
		"emergency_contact": p.EmergencyContact, "primary_diagnosis": p.PrimaryDiagnosis,
		"status": string(p.Status), "notes": p.Notes,
	}).Where(sq.Eq{"id": p.ID}))
}

// SoftDelete deactivates a patient.
func (s *PatientStore) SoftDelete(ctx context.Context, id uuid.UUID) error {
	b, err := s.table.SoftDelete(ctx)
	if err != nil {
		return err
	}
	return execOne(ctx, s.db, b.Where(sq.Eq{"id": id}))
}

// Restore reactivates a soft-deleted patient.
func (s *PatientStore) Restore(ctx context.Context, id uuid.UUID) error {
	b, err := s.table.Restore(ctx)
	if err != nil {
		return err
	}
	return execOne(ctx, s.db, b.Where(sq.Eq{"id": id}))
}

// Count returns the number of live patients of a tenant; the patients
// counter for limit enforcement.
func (s *PatientStore) Count(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	b, err := s.table.With(scope.ForTenant(tenantID)).Count(scope.AsSuperuser(ctx))
	if err != nil {
		return 0, err
	}
	return queryInt(ctx, s.db, b)
}
