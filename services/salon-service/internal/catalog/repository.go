// Package catalog stores services, staff, working hours and products, and
// serves working hours to the availability calculator.
package catalog

import (
	"context"
	"slices"
	"time"

	"github.com/uptrace/bun"

	"github.com/md-rashed-zaman/salonbook/libs/db"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/model"
)

// DefaultSchedule is seeded for new staff: Monday to Friday, 09:00-17:00.
var DefaultSchedule = func() []model.WorkingHoursWindow {
	var out []model.WorkingHoursWindow
	for wd := time.Monday; wd <= time.Friday; wd++ {
		out = append(out, model.WorkingHoursWindow{Weekday: int(wd), Start: 9 * 60, End: 17 * 60})
	}
	return out
}()

type Repository struct {
	db *bun.DB
}

func NewRepository(bdb *bun.DB) *Repository {
	return &Repository{db: bdb}
}

func notFound(err error) error {
	if db.IsNotFound(err) {
		return model.ErrNotFound
	}
	return err
}

func affected(res interface{ RowsAffected() (int64, error) }) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

// Services

func (r *Repository) ListServices(ctx context.Context, includeInactive bool) ([]model.Service, error) {
	var rows []serviceRow
	q := r.db.NewSelect().Model(&rows).OrderExpr("svc.name ASC")
	if !includeInactive {
		q = q.Where("svc.active")
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]model.Service, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	return out, nil
}

func (r *Repository) GetService(ctx context.Context, id string) (model.Service, error) {
	var row serviceRow
	if err := r.db.NewSelect().Model(&row).Where("svc.id = ?", id).Scan(ctx); err != nil {
		return model.Service{}, notFound(err)
	}
	return row.toModel(), nil
}

func (r *Repository) CreateService(ctx context.Context, s *model.Service) error {
	if err := s.Validate(); err != nil {
		return err
	}
	row := fromService(*s)
	if _, err := r.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return err
	}
	*s = row.toModel()
	return nil
}

func (r *Repository) UpdateService(ctx context.Context, s *model.Service) error {
	if err := s.Validate(); err != nil {
		return err
	}
	row := fromService(*s)
	res, err := r.db.NewUpdate().Model(&row).
		Column("name", "description", "duration_minutes", "price_cents", "active", "updated_at").
		WherePK().
		Returning("created_at").
		Exec(ctx)
	if err != nil {
		return err
	}
	if err := affected(res); err != nil {
		return err
	}
	*s = row.toModel()
	return nil
}

func (r *Repository) DeactivateService(ctx context.Context, id string) error {
	res, err := r.db.NewUpdate().Model((*serviceRow)(nil)).
		Set("active = FALSE").
		Set("updated_at = now()").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return affected(res)
}

// Staff

func (r *Repository) ListStaff(ctx context.Context, includeInactive bool) ([]model.Staff, error) {
	var rows []staffRow
	q := r.db.NewSelect().Model(&rows).OrderExpr("st.name ASC, st.id ASC")
	if !includeInactive {
		q = q.Where("st.active")
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	var links []staffServiceRow
	if err := r.db.NewSelect().Model(&links).OrderExpr("ss.service_id").Scan(ctx); err != nil {
		return nil, err
	}
	byStaff := make(map[string][]string)
	for _, l := range links {
		byStaff[l.StaffID] = append(byStaff[l.StaffID], l.ServiceID)
	}

	out := make([]model.Staff, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel(byStaff[row.ID]))
	}
	return out, nil
}

func (r *Repository) GetStaff(ctx context.Context, id string) (model.Staff, error) {
	var row staffRow
	if err := r.db.NewSelect().Model(&row).Where("st.id = ?", id).Scan(ctx); err != nil {
		return model.Staff{}, notFound(err)
	}
	var serviceIDs []string
	err := r.db.NewSelect().Model((*staffServiceRow)(nil)).
		ColumnExpr("ss.service_id::text").
		Where("ss.staff_id = ?", id).
		OrderExpr("ss.service_id").
		Scan(ctx, &serviceIDs)
	if err != nil {
		return model.Staff{}, err
	}
	return row.toModel(serviceIDs), nil
}

// CreateStaff stores the staff member with its service links. When
// schedule is nil the default schedule is seeded.
func (r *Repository) CreateStaff(ctx context.Context, s *model.Staff, schedule []model.WorkingHoursWindow) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if schedule == nil {
		schedule = DefaultSchedule
	}
	for _, w := range schedule {
		if err := w.Validate(); err != nil {
			return err
		}
	}

	row := staffRow{Name: s.Name, Email: s.Email, Active: true}
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(&row).Exec(ctx); err != nil {
			return err
		}
		if err := replaceLinks(ctx, tx, row.ID, s.ServiceIDs); err != nil {
			return err
		}
		if len(schedule) == 0 {
			return nil
		}
		hours := make([]workingHoursRow, 0, len(schedule))
		for _, w := range schedule {
			hours = append(hours, workingHoursRow{StaffID: row.ID, Weekday: w.Weekday, StartMinute: int(w.Start), EndMinute: int(w.End)})
		}
		_, err := tx.NewInsert().Model(&hours).Exec(ctx)
		return err
	})
	if err != nil {
		return mapLinkErr(err)
	}
	*s = row.toModel(s.ServiceIDs)
	return nil
}

func (r *Repository) UpdateStaff(ctx context.Context, s *model.Staff) error {
	if err := s.Validate(); err != nil {
		return err
	}
	row := staffRow{ID: s.ID, Name: s.Name, Email: s.Email, Active: s.Active}
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().Model(&row).
			Column("name", "email", "active", "updated_at").
			WherePK().
			Returning("created_at").
			Exec(ctx)
		if err != nil {
			return err
		}
		if err := affected(res); err != nil {
			return err
		}
		return replaceLinks(ctx, tx, row.ID, s.ServiceIDs)
	})
	if err != nil {
		return mapLinkErr(err)
	}
	*s = row.toModel(s.ServiceIDs)
	return nil
}

func replaceLinks(ctx context.Context, tx bun.Tx, staffID string, serviceIDs []string) error {
	if _, err := tx.NewDelete().Model((*staffServiceRow)(nil)).Where("staff_id = ?", staffID).Exec(ctx); err != nil {
		return err
	}
	if len(serviceIDs) == 0 {
		return nil
	}
	ids := slices.Clone(serviceIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)
	links := make([]staffServiceRow, 0, len(ids))
	for _, id := range ids {
		links = append(links, staffServiceRow{StaffID: staffID, ServiceID: id})
	}
	_, err := tx.NewInsert().Model(&links).Exec(ctx)
	return err
}

func mapLinkErr(err error) error {
	if db.IsForeignKeyViolation(err) {
		return model.Invalid("service_ids", "references an unknown service")
	}
	return err
}

func (r *Repository) DeactivateStaff(ctx context.Context, id string) error {
	res, err := r.db.NewUpdate().Model((*staffRow)(nil)).
		Set("active = FALSE").
		Set("updated_at = now()").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return affected(res)
}

// StaffForService returns the ids of staff mapped to the service.
func (r *Repository) StaffForService(ctx context.Context, serviceID string) ([]string, error) {
	var ids []string
	err := r.db.NewSelect().Model((*staffServiceRow)(nil)).
		ColumnExpr("ss.staff_id::text").
		Where("ss.service_id = ?", serviceID).
		Scan(ctx, &ids)
	return ids, err
}

// Qualified reports whether staffID may perform serviceID: either it is
// mapped to the service or nobody is.
func (r *Repository) Qualified(ctx context.Context, staffID, serviceID string) (bool, error) {
	ids, err := r.StaffForService(ctx, serviceID)
	if err != nil {
		return false, err
	}
	return len(ids) == 0 || slices.Contains(ids, staffID), nil
}

// Working hours

func (r *Repository) WindowsForWeekday(ctx context.Context, weekday time.Weekday) ([]model.WorkingHoursWindow, error) {
	var rows []workingHoursRow
	err := r.db.NewSelect().Model(&rows).
		ColumnExpr("wh.*").
		ColumnExpr("st.name AS staff_name").
		Join("JOIN staff AS st ON st.id = wh.staff_id").
		Where("wh.weekday = ?", int(weekday)).
		Where("st.active").
		OrderExpr("st.name, wh.start_minute").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.WorkingHoursWindow, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	return out, nil
}

func (r *Repository) ListWorkingHours(ctx context.Context, staffID string) ([]model.WorkingHoursWindow, error) {
	var rows []workingHoursRow
	err := r.db.NewSelect().Model(&rows).
		ColumnExpr("wh.*").
		ColumnExpr("st.name AS staff_name").
		Join("JOIN staff AS st ON st.id = wh.staff_id").
		Where("wh.staff_id = ?", staffID).
		OrderExpr("wh.weekday, wh.start_minute").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.WorkingHoursWindow, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	return out, nil
}

func (r *Repository) AddWorkingHours(ctx context.Context, w *model.WorkingHoursWindow) error {
	if err := w.Validate(); err != nil {
		return err
	}
	row := workingHoursRow{StaffID: w.StaffID, Weekday: w.Weekday, StartMinute: int(w.Start), EndMinute: int(w.End)}
	if _, err := r.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		if db.IsForeignKeyViolation(err) {
			return model.ErrNotFound
		}
		return err
	}
	w.ID = row.ID
	return nil
}

// ReplaceWorkingHours swaps the staff member's whole weekly schedule.
func (r *Repository) ReplaceWorkingHours(ctx context.Context, staffID string, windows []model.WorkingHoursWindow) error {
	for _, w := range windows {
		if err := w.Validate(); err != nil {
			return err
		}
	}
	if _, err := r.GetStaff(ctx, staffID); err != nil {
		return err
	}
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*workingHoursRow)(nil)).Where("staff_id = ?", staffID).Exec(ctx); err != nil {
			return err
		}
		if len(windows) == 0 {
			return nil
		}
		rows := make([]workingHoursRow, 0, len(windows))
		for _, w := range windows {
			rows = append(rows, workingHoursRow{StaffID: staffID, Weekday: w.Weekday, StartMinute: int(w.Start), EndMinute: int(w.End)})
		}
		_, err := tx.NewInsert().Model(&rows).Exec(ctx)
		return err
	})
}

func (r *Repository) DeleteWorkingHours(ctx context.Context, staffID, id string) error {
	res, err := r.db.NewDelete().Model((*workingHoursRow)(nil)).
		Where("id = ?", id).
		Where("staff_id = ?", staffID).
		Exec(ctx)
	if err != nil {
		return err
	}
	return affected(res)
}

// Products

func (r *Repository) ListProducts(ctx context.Context, includeInactive bool) ([]model.Product, error) {
	var rows []productRow
	q := r.db.NewSelect().Model(&rows).OrderExpr("p.name ASC")
	if !includeInactive {
		q = q.Where("p.active")
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]model.Product, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	return out, nil
}

func (r *Repository) GetProduct(ctx context.Context, id string) (model.Product, error) {
	var row productRow
	if err := r.db.NewSelect().Model(&row).Where("p.id = ?", id).Scan(ctx); err != nil {
		return model.Product{}, notFound(err)
	}
	return row.toModel(), nil
}

// ProductsByID loads the given products keyed by id; unknown ids are absent.
func (r *Repository) ProductsByID(ctx context.Context, ids []string) (map[string]model.Product, error) {
	out := make(map[string]model.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []productRow
	if err := r.db.NewSelect().Model(&rows).Where("p.id IN (?)", bun.In(ids)).Scan(ctx); err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row.toModel()
	}
	return out, nil
}

func (r *Repository) CreateProduct(ctx context.Context, p *model.Product) error {
	if err := p.Validate(); err != nil {
		return err
	}
	row := fromProduct(*p)
	if _, err := r.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return err
	}
	*p = row.toModel()
	return nil
}

func (r *Repository) UpdateProduct(ctx context.Context, p *model.Product) error {
	if err := p.Validate(); err != nil {
		return err
	}
	row := fromProduct(*p)
	res, err := r.db.NewUpdate().Model(&row).
		Column("name", "description", "price_cents", "stock", "image_url", "active", "updated_at").
		WherePK().
		Returning("created_at").
		Exec(ctx)
	if err != nil {
		return err
	}
	if err := affected(res); err != nil {
		return err
	}
	*p = row.toModel()
	return nil
}

func (r *Repository) DeactivateProduct(ctx context.Context, id string) error {
	res, err := r.db.NewUpdate().Model((*productRow)(nil)).
		Set("active = FALSE").
		Set("updated_at = now()").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return affected(res)
}
