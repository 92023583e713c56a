package brokers

import (
	"context"
	"errors"

	"github.com/estatedesk/lead-router/pkg/db/models"
	"github.com/estatedesk/lead-router/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Area is a geography cell: region plus locality, matched exactly.
type Area struct {
	Region   string
	Locality string
}

// Criteria narrows the candidate pool for one tier.
type Criteria struct {
	Tier     enums.BrokerTier
	Area     Area
	Excluded []uuid.UUID
}

// Selector ranks eligible brokers. A nil broker with a nil error means the pool is empty.
type Selector interface {
	WithTx(tx *gorm.DB) Selector
	SelectCandidate(ctx context.Context, criteria Criteria) (*models.Broker, error)
	SelectFallback(ctx context.Context) (*models.Broker, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Broker, error)
}

type selectorImpl struct {
	db *gorm.DB
}

// NewSelector returns a selector bound to the provided database.
func NewSelector(db *gorm.DB) Selector {
	return &selectorImpl{db: db}
}

func (s *selectorImpl) WithTx(tx *gorm.DB) Selector {
	if tx == nil {
		return s
	}
	return &selectorImpl{db: tx}
}

// SelectCandidate returns the fairest active, off-call broker of the tier covering the area.
func (s *selectorImpl) SelectCandidate(ctx context.Context, criteria Criteria) (*models.Broker, error) {
	query := s.ranked(ctx).
		Where("b.tier = ?", criteria.Tier).
		Where("b.on_call = ?", false).
		Where(
			"EXISTS (SELECT 1 FROM broker_areas ba WHERE ba.broker_id = b.id AND ba.region = ? AND ba.locality = ?)",
			criteria.Area.Region, criteria.Area.Locality,
		)
	if len(criteria.Excluded) > 0 {
		query = query.Where("b.id NOT IN ?", criteria.Excluded)
	}
	return first(query)
}

// SelectFallback returns the fairest active on-call broker regardless of tier or area.
func (s *selectorImpl) SelectFallback(ctx context.Context) (*models.Broker, error) {
	return first(s.ranked(ctx).Where("b.on_call = ?", true))
}

// Get loads a broker by id; missing brokers return nil.
func (s *selectorImpl) Get(ctx context.Context, id uuid.UUID) (*models.Broker, error) {
	var broker models.Broker
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&broker).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &broker, nil
}

// ranked orders active brokers by fairness: fewest historical assignments,
// then never-assigned or least recently assigned, then score, tenure and id.
func (s *selectorImpl) ranked(ctx context.Context) *gorm.DB {
	stats := s.db.Table("lead_assignments").
		Select("broker_id, COUNT(*) AS assignment_count, MAX(created_at) AS last_assigned_at").
		Group("broker_id")

	return s.db.WithContext(ctx).
		Table("brokers AS b").
		Select("b.*").
		Joins("LEFT JOIN (?) AS s ON s.broker_id = b.id", stats).
		Where("b.active = ?", true).
		Order("COALESCE(s.assignment_count, 0) ASC").
		Order("CASE WHEN s.last_assigned_at IS NULL THEN 0 ELSE 1 END ASC").
		Order("s.last_assigned_at ASC").
		Order("(b.experience_level + b.points) DESC").
		Order("b.created_at ASC").
		Order("b.id ASC")
}

func first(query *gorm.DB) (*models.Broker, error) {
	var found []models.Broker
	if err := query.Limit(1).Find(&found).Error; err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, nil
	}
	return &found[0], nil
}
