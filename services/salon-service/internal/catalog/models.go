package catalog

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/model"
)

type serviceRow struct {
	bun.BaseModel `bun:"table:services,alias:svc"`

	ID              string    `bun:"id,pk,type:uuid"`
	Name            string    `bun:"name,notnull"`
	Description     string    `bun:"description,notnull"`
	DurationMinutes int       `bun:"duration_minutes,notnull"`
	PriceCents      int64     `bun:"price_cents,notnull"`
	Active          bool      `bun:"active,notnull"`
	CreatedAt       time.Time `bun:"created_at,notnull"`
	UpdatedAt       time.Time `bun:"updated_at,notnull"`
}

type staffRow struct {
	bun.BaseModel `bun:"table:staff,alias:st"`

	ID        string    `bun:"id,pk,type:uuid"`
	Name      string    `bun:"name,notnull"`
	Email     string    `bun:"email,notnull"`
	Active    bool      `bun:"active,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

type staffServiceRow struct {
	bun.BaseModel `bun:"table:staff_services,alias:ss"`

	StaffID   string `bun:"staff_id,pk,type:uuid"`
	ServiceID string `bun:"service_id,pk,type:uuid"`
}

type workingHoursRow struct {
	bun.BaseModel `bun:"table:staff_working_hours,alias:wh"`

	ID          string `bun:"id,pk,type:uuid"`
	StaffID     string `bun:"staff_id,notnull,type:uuid"`
	Weekday     int    `bun:"weekday,notnull"`
	StartMinute int    `bun:"start_minute,notnull"`
	EndMinute   int    `bun:"end_minute,notnull"`

	StaffName string `bun:"staff_name,scanonly"`
}

type productRow struct {
	bun.BaseModel `bun:"table:products,alias:p"`

	ID          string    `bun:"id,pk,type:uuid"`
	Name        string    `bun:"name,notnull"`
	Description string    `bun:"description,notnull"`
	PriceCents  int64     `bun:"price_cents,notnull"`
	Stock       int       `bun:"stock,notnull"`
	ImageURL    string    `bun:"image_url,notnull"`
	Active      bool      `bun:"active,notnull"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
	UpdatedAt   time.Time `bun:"updated_at,notnull"`
}

// stamp assigns ids and timestamps the way every catalog table expects.
func stamp(id *string, created, updated *time.Time, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if *id == "" {
			v, err := uuid.NewV7()
			if err != nil {
				return err
			}
			*id = v.String()
		}
		if created != nil && created.IsZero() {
			*created = now
		}
		if updated != nil {
			*updated = now
		}
	case *bun.UpdateQuery:
		if updated != nil {
			*updated = now
		}
	}
	return nil
}

var (
	_ bun.BeforeAppendModelHook = (*serviceRow)(nil)
	_ bun.BeforeAppendModelHook = (*staffRow)(nil)
	_ bun.BeforeAppendModelHook = (*workingHoursRow)(nil)
	_ bun.BeforeAppendModelHook = (*productRow)(nil)
)

func (r *serviceRow) BeforeAppendModel(_ context.Context, q bun.Query) error {
	return stamp(&r.ID, &r.CreatedAt, &r.UpdatedAt, q)
}

func (r *staffRow) BeforeAppendModel(_ context.Context, q bun.Query) error {
	return stamp(&r.ID, &r.CreatedAt, &r.UpdatedAt, q)
}

func (r *workingHoursRow) BeforeAppendModel(_ context.Context, q bun.Query) error {
	return stamp(&r.ID, nil, nil, q)
}

func (r *productRow) BeforeAppendModel(_ context.Context, q bun.Query) error {
	return stamp(&r.ID, &r.CreatedAt, &r.UpdatedAt, q)
}

func (r serviceRow) toModel() model.Service {
	return model.Service{
		ID:              r.ID,
		Name:            r.Name,
		Description:     r.Description,
		DurationMinutes: r.DurationMinutes,
		PriceCents:      r.PriceCents,
		Active:          r.Active,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func fromService(s model.Service) serviceRow {
	return serviceRow{
		ID:              s.ID,
		Name:            s.Name,
		Description:     s.Description,
		DurationMinutes: s.DurationMinutes,
		PriceCents:      s.PriceCents,
		Active:          s.Active,
		CreatedAt:       s.CreatedAt,
	}
}

func (r staffRow) toModel(serviceIDs []string) model.Staff {
	if serviceIDs == nil {
		serviceIDs = []string{}
	}
	return model.Staff{
		ID:         r.ID,
		Name:       r.Name,
		Email:      r.Email,
		Active:     r.Active,
		ServiceIDs: serviceIDs,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

func (r workingHoursRow) toModel() model.WorkingHoursWindow {
	return model.WorkingHoursWindow{
		ID:        r.ID,
		StaffID:   r.StaffID,
		StaffName: r.StaffName,
		Weekday:   r.Weekday,
		Start:     model.TimeOfDay(r.StartMinute),
		End:       model.TimeOfDay(r.EndMinute),
	}
}

func (r productRow) toModel() model.Product {
	return model.Product{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		PriceCents:  r.PriceCents,
		Stock:       r.Stock,
		ImageURL:    r.ImageURL,
		Active:      r.Active,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func fromProduct(p model.Product) productRow {
	return productRow{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		PriceCents:  p.PriceCents,
		Stock:       p.Stock,
		ImageURL:    p.ImageURL,
		Active:      p.Active,
		CreatedAt:   p.CreatedAt,
	}
}
