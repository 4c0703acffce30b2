package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/opsdesk/internal/orgcontext"
	"github.com/smallbiznis/opsdesk/internal/work/domain"
	"github.com/smallbiznis/opsdesk/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("work.service"),
		genID: p.GenID,
	}
}

func (s *Service) CreateWork(ctx context.Context, req domain.CreateWorkRequest) (domain.Work, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.Work{}, domain.ErrInvalidOrganization
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return domain.Work{}, domain.ErrInvalidTitle
	}
	customerID, err := parseSnowflake(req.CustomerID)
	if err != nil {
		return domain.Work{}, domain.ErrInvalidCustomer
	}
	serviceID, err := parseSnowflake(req.ServiceID)
	if err != nil {
		return domain.Work{}, domain.ErrInvalidService
	}
	priority, err := parsePriority(req.Priority)
	if err != nil {
		return domain.Work{}, err
	}

	var frequency domain.Frequency
	if req.Recurring {
		frequency, err = parseFrequency(req.Frequency)
		if err != nil {
			return domain.Work{}, err
		}
	}

	assignedTo, err := parseOptionalSnowflake(req.AssignedTo)
	if err != nil {
		return domain.Work{}, domain.ErrInvalidID
	}

	now := time.Now().UTC()
	work := domain.Work{
		ID:            s.genID.Generate(),
		OrgID:         orgID,
		Title:         title,
		CustomerID:    customerID,
		ServiceID:     serviceID,
		AssignedTo:    assignedTo,
		Status:        domain.StatusPending,
		Priority:      priority,
		DueDate:       normalizeTime(req.DueDate),
		Recurring:     req.Recurring,
		Frequency:     frequency,
		TaskTemplates: datatypes.NewJSONSlice(trimAll(req.TaskTemplates)),
		Notes:         strings.TrimSpace(req.Notes),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.db.WithContext(ctx).Create(&work).Error; err != nil {
		return domain.Work{}, err
	}
	return work, nil
}

func (s *Service) UpdateWork(ctx context.Context, req domain.UpdateWorkRequest) (domain.Work, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.Work{}, domain.ErrInvalidOrganization
	}

	work, err := s.findWork(ctx, orgID, req.ID)
	if err != nil {
		return domain.Work{}, err
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return domain.Work{}, domain.ErrInvalidTitle
	}
	priority, err := parsePriority(req.Priority)
	if err != nil {
		return domain.Work{}, err
	}
	assignedTo, err := parseOptionalSnowflake(req.AssignedTo)
	if err != nil {
		return domain.Work{}, domain.ErrInvalidID
	}

	work.Title = title
	work.Priority = priority
	work.AssignedTo = assignedTo
	work.DueDate = normalizeTime(req.DueDate)
	work.TaskTemplates = datatypes.NewJSONSlice(trimAll(req.TaskTemplates))
	work.Notes = strings.TrimSpace(req.Notes)
	work.UpdatedAt = time.Now().UTC()

	if err := s.db.WithContext(ctx).Save(work).Error; err != nil {
		return domain.Work{}, err
	}
	return *work, nil
}

func (s *Service) ListWorks(ctx context.Context, req domain.ListWorkRequest) ([]domain.Work, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	stmt := s.db.WithContext(ctx).
		Model(&domain.Work{}).
		Where("works.org_id = ?", orgID).
		Preload("Customer").
		Preload("Service").
		Preload("Assignee")
	if status := strings.TrimSpace(req.Status); status != "" {
		parsed, err := parseStatus(status)
		if err != nil {
			return nil, err
		}
		stmt = stmt.Where("works.status = ?", parsed)
	}
	if req.CustomerID != "" {
		customerID, err := parseSnowflake(req.CustomerID)
		if err != nil {
			return nil, domain.ErrInvalidCustomer
		}
		stmt = stmt.Where("works.customer_id = ?", customerID)
	}
	if req.AssignedTo != "" {
		assigneeID, err := parseSnowflake(req.AssignedTo)
		if err != nil {
			return nil, domain.ErrInvalidID
		}
		stmt = stmt.Where("works.assigned_to = ?", assigneeID)
	}
	if req.Recurring != nil {
		stmt = stmt.Where("works.recurring = ?", *req.Recurring)
	}

	var works []domain.Work
	if err := stmt.Order("works.created_at desc, works.id desc").Find(&works).Error; err != nil {
		return nil, err
	}
	return works, nil
}

func (s *Service) GetWork(ctx context.Context, rawID string) (domain.Work, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.Work{}, domain.ErrInvalidOrganization
	}

	id, err := parseSnowflake(rawID)
	if err != nil {
		return domain.Work{}, domain.ErrInvalidID
	}

	var work domain.Work
	err = s.db.WithContext(ctx).
		Where("works.org_id = ? AND works.id = ?", orgID, id).
		Preload("Customer").
		Preload("Service").
		Preload("Assignee").
		Take(&work).Error
	if err == gorm.ErrRecordNotFound {
		return domain.Work{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Work{}, err
	}
	return work, nil
}

func (s *Service) DeleteWork(ctx context.Context, rawID string) error {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.ErrInvalidOrganization
	}

	id, err := parseSnowflake(rawID)
	if err != nil {
		return domain.ErrInvalidID
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("org_id = ? AND id = ?", orgID, id).Delete(&domain.Work{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		if err := tx.Where("org_id = ? AND work_id = ?", orgID, id).Delete(&domain.WorkTask{}).Error; err != nil {
			return err
		}
		if err := tx.Where("org_id = ? AND work_id = ?", orgID, id).Delete(&domain.PeriodTask{}).Error; err != nil {
			return err
		}
		return tx.Where("org_id = ? AND work_id = ?", orgID, id).Delete(&domain.RecurringPeriod{}).Error
	})
}

func (s *Service) UpdateWorkStatus(ctx context.Context, rawID, rawStatus string) (domain.Work, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.Work{}, domain.ErrInvalidOrganization
	}

	work, err := s.findWork(ctx, orgID, rawID)
	if err != nil {
		return domain.Work{}, err
	}

	status, err := parseStatus(rawStatus)
	if err != nil {
		return domain.Work{}, err
	}

	now := time.Now().UTC()
	work.Status = status
	work.UpdatedAt = now
	if status == domain.StatusCompleted {
		work.CompletedAt = &now
	} else {
		work.CompletedAt = nil
	}

	if err := s.db.WithContext(ctx).Save(work).Error; err != nil {
		return domain.Work{}, err
	}
	return *work, nil
}

func (s *Service) ListPeriods(ctx context.Context, rawWorkID string) ([]domain.RecurringPeriod, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	workID, err := parseSnowflake(rawWorkID)
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	var periods []domain.RecurringPeriod
	err = s.db.WithContext(ctx).
		Where("org_id = ? AND work_id = ?", orgID, workID).
		Order("period_start desc").
		Find(&periods).Error
	if err != nil {
		return nil, err
	}
	return periods, nil
}

func (s *Service) UpdatePeriodStatus(ctx context.Context, rawID, rawStatus string) (domain.RecurringPeriod, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.RecurringPeriod{}, domain.ErrInvalidOrganization
	}

	id, err := parseSnowflake(rawID)
	if err != nil {
		return domain.RecurringPeriod{}, domain.ErrInvalidID
	}
	status, err := parseStatus(rawStatus)
	if err != nil {
		return domain.RecurringPeriod{}, err
	}

	var period domain.RecurringPeriod
	err = s.db.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, id).
		Take(&period).Error
	if err == gorm.ErrRecordNotFound {
		return domain.RecurringPeriod{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.RecurringPeriod{}, err
	}

	period.Status = status
	period.UpdatedAt = time.Now().UTC()
	if err := s.db.WithContext(ctx).Save(&period).Error; err != nil {
		return domain.RecurringPeriod{}, err
	}
	return period, nil
}

func (s *Service) EnsurePeriod(ctx context.Context, req domain.EnsurePeriodRequest) (domain.RecurringPeriod, bool, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.RecurringPeriod{}, false, domain.ErrInvalidOrganization
	}

	work, err := s.findWork(ctx, orgID, req.WorkID)
	if err != nil {
		return domain.RecurringPeriod{}, false, err
	}
	if !work.Recurring {
		return domain.RecurringPeriod{}, false, domain.ErrInvalidPeriod
	}
	name := strings.TrimSpace(req.Name)
	if name == "" || !req.PeriodEnd.After(req.PeriodStart) {
		return domain.RecurringPeriod{}, false, domain.ErrInvalidPeriod
	}

	var existing domain.RecurringPeriod
	err = s.db.WithContext(ctx).
		Where("org_id = ? AND work_id = ? AND name = ?", orgID, work.ID, name).
		Take(&existing).Error
	if err == nil {
		return existing, false, nil
	}
	if err != gorm.ErrRecordNotFound {
		return domain.RecurringPeriod{}, false, err
	}

	now := time.Now().UTC()
	dueDate := req.PeriodEnd.UTC()
	period := domain.RecurringPeriod{
		ID:          s.genID.Generate(),
		OrgID:       orgID,
		WorkID:      work.ID,
		Name:        name,
		PeriodStart: req.PeriodStart.UTC(),
		PeriodEnd:   dueDate,
		Status:      domain.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&period).Error; err != nil {
			return err
		}
		for _, title := range work.TaskTemplates {
			title = strings.TrimSpace(title)
			if title == "" {
				continue
			}
			task := domain.PeriodTask{
				ID:        s.genID.Generate(),
				OrgID:     orgID,
				PeriodID:  period.ID,
				WorkID:    work.ID,
				Title:     title,
				Status:    domain.StatusPending,
				Priority:  work.Priority,
				DueDate:   &dueDate,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if task.DueDate != nil {
				due := *task.DueDate
				task.DueDate = &due
			}
			if err := tx.Create(&task).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		// A concurrent tick may have created the same period.
		if db.IsDuplicateKeyErr(err) {
			var raced domain.RecurringPeriod
			if lookupErr := s.db.WithContext(ctx).
				Where("org_id = ? AND work_id = ? AND name = ?", orgID, work.ID, name).
				Take(&raced).Error; lookupErr == nil {
				return raced, false, nil
			}
		}
		return domain.RecurringPeriod{}, false, err
	}
	return period, true, nil
}

func (s *Service) CreateWorkTask(ctx context.Context, req domain.CreateTaskRequest) (domain.WorkTask, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.WorkTask{}, domain.ErrInvalidOrganization
	}

	work, err := s.findWork(ctx, orgID, req.WorkID)
	if err != nil {
		return domain.WorkTask{}, err
	}
	if work.Recurring {
		return domain.WorkTask{}, domain.ErrRecurringWorkTask
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return domain.WorkTask{}, domain.ErrInvalidTitle
	}
	priority, err := parsePriority(req.Priority)
	if err != nil {
		return domain.WorkTask{}, err
	}
	assignedTo, err := parseOptionalSnowflake(req.AssignedTo)
	if err != nil {
		return domain.WorkTask{}, domain.ErrInvalidID
	}

	now := time.Now().UTC()
	task := domain.WorkTask{
		ID:         s.genID.Generate(),
		OrgID:      orgID,
		WorkID:     work.ID,
		Title:      title,
		Status:     domain.StatusPending,
		Priority:   priority,
		DueDate:    normalizeTime(req.DueDate),
		AssignedTo: assignedTo,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.db.WithContext(ctx).Create(&task).Error; err != nil {
		return domain.WorkTask{}, err
	}
	return task, nil
}

func (s *Service) CreatePeriodTask(ctx context.Context, req domain.CreateTaskRequest) (domain.PeriodTask, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.PeriodTask{}, domain.ErrInvalidOrganization
	}

	periodID, err := parseSnowflake(req.PeriodID)
	if err != nil {
		return domain.PeriodTask{}, domain.ErrInvalidPeriod
	}

	var period domain.RecurringPeriod
	err = s.db.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, periodID).
		Take(&period).Error
	if err == gorm.ErrRecordNotFound {
		return domain.PeriodTask{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.PeriodTask{}, err
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return domain.PeriodTask{}, domain.ErrInvalidTitle
	}
	priority, err := parsePriority(req.Priority)
	if err != nil {
		return domain.PeriodTask{}, err
	}
	assignedTo, err := parseOptionalSnowflake(req.AssignedTo)
	if err != nil {
		return domain.PeriodTask{}, domain.ErrInvalidID
	}

	now := time.Now().UTC()
	task := domain.PeriodTask{
		ID:         s.genID.Generate(),
		OrgID:      orgID,
		PeriodID:   period.ID,
		WorkID:     period.WorkID,
		Title:      title,
		Status:     domain.StatusPending,
		Priority:   priority,
		DueDate:    normalizeTime(req.DueDate),
		AssignedTo: assignedTo,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.db.WithContext(ctx).Create(&task).Error; err != nil {
		return domain.PeriodTask{}, err
	}
	return task, nil
}

func (s *Service) ListWorkTasks(ctx context.Context, rawWorkID string) ([]domain.WorkTask, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	workID, err := parseSnowflake(rawWorkID)
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	var tasks []domain.WorkTask
	err = s.db.WithContext(ctx).
		Where("org_id = ? AND work_id = ?", orgID, workID).
		Preload("Assignee").
		Order("created_at asc").
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

func (s *Service) ListPeriodTasks(ctx context.Context, rawPeriodID string) ([]domain.PeriodTask, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	periodID, err := parseSnowflake(rawPeriodID)
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	var tasks []domain.PeriodTask
	err = s.db.WithContext(ctx).
		Where("org_id = ? AND period_id = ?", orgID, periodID).
		Preload("Assignee").
		Order("created_at asc").
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

func (s *Service) UpdateTaskStatus(ctx context.Context, kindRaw, rawID, rawStatus string) error {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.ErrInvalidOrganization
	}

	id, err := parseSnowflake(rawID)
	if err != nil {
		return domain.ErrInvalidID
	}
	status, err := parseStatus(rawStatus)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	updates := map[string]any{
		"status":     status,
		"updated_at": now,
	}
	if status == domain.StatusCompleted {
		updates["completed_at"] = now
	} else {
		updates["completed_at"] = nil
	}

	var result *gorm.DB
	switch strings.ToLower(strings.TrimSpace(kindRaw)) {
	case "work":
		result = s.db.WithContext(ctx).
			Model(&domain.WorkTask{}).
			Where("org_id = ? AND id = ?", orgID, id).
			Updates(updates)
	case "period":
		result = s.db.WithContext(ctx).
			Model(&domain.PeriodTask{}).
			Where("org_id = ? AND id = ?", orgID, id).
			Updates(updates)
	default:
		return domain.ErrInvalidTaskKind
	}
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Service) DeleteTask(ctx context.Context, kindRaw, rawID string) error {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.ErrInvalidOrganization
	}

	id, err := parseSnowflake(rawID)
	if err != nil {
		return domain.ErrInvalidID
	}

	var result *gorm.DB
	switch strings.ToLower(strings.TrimSpace(kindRaw)) {
	case "work":
		result = s.db.WithContext(ctx).
			Where("org_id = ? AND id = ?", orgID, id).
			Delete(&domain.WorkTask{})
	case "period":
		result = s.db.WithContext(ctx).
			Where("org_id = ? AND id = ?", orgID, id).
			Delete(&domain.PeriodTask{})
	default:
		return domain.ErrInvalidTaskKind
	}
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Service) findWork(ctx context.Context, orgID snowflake.ID, rawID string) (*domain.Work, error) {
	id, err := parseSnowflake(rawID)
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	var work domain.Work
	err = s.db.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, id).
		Take(&work).Error
	if err == gorm.ErrRecordNotFound {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &work, nil
}

func parseStatus(raw string) (domain.Status, error) {
	status := domain.Status(strings.ToLower(strings.TrimSpace(raw)))
	switch status {
	case domain.StatusPending, domain.StatusInProgress, domain.StatusCompleted, domain.StatusCancelled:
		return status, nil
	default:
		return "", domain.ErrInvalidStatus
	}
}

func parsePriority(raw string) (domain.Priority, error) {
	priority := domain.Priority(strings.ToLower(strings.TrimSpace(raw)))
	if priority == "" {
		return domain.PriorityMedium, nil
	}
	switch priority {
	case domain.PriorityLow, domain.PriorityMedium, domain.PriorityHigh, domain.PriorityUrgent:
		return priority, nil
	default:
		return "", domain.ErrInvalidPriority
	}
}

func parseFrequency(raw string) (domain.Frequency, error) {
	frequency := domain.Frequency(strings.ToLower(strings.TrimSpace(raw)))
	switch frequency {
	case domain.FrequencyMonthly, domain.FrequencyQuarterly, domain.FrequencyYearly:
		return frequency, nil
	default:
		return "", domain.ErrInvalidFrequency
	}
}

func parseSnowflake(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

func parseOptionalSnowflake(value string) (*snowflake.ID, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	id, err := parseSnowflake(value)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func normalizeTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	utc := t.UTC()
	return &utc
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
