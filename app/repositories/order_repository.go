package repositories

import (
	"time"

	"gorm.io/gorm"

	"github.com/driftmarket/driftmarket/app/models"
)

// retryBackoffStep spaces retries out linearly: the Nth failure pushes
// the next attempt N×10 minutes into the future.
const retryBackoffStep = 10 * time.Minute

// OrderFilter narrows List queries.
type OrderFilter struct {
	Converted *bool
	Page      int
	Limit     int
}

// OrderRepository handles database operations for Order.
type OrderRepository struct {
	db         *gorm.DB
	now        func() time.Time
	maxRetries int
}

func NewOrderRepository(db *gorm.DB, maxRetries int) *OrderRepository {
	if maxRetries < 1 {
		maxRetries = models.MaxEmailRetries
	}
	return &OrderRepository{db: db, now: time.Now, maxRetries: maxRetries}
}

// Create persists a new order.
func (r *OrderRepository) Create(o *models.Order) error {
	return r.db.Create(o).Error
}

// ByPublicID looks up an order by its external uuid.
func (r *OrderRepository) ByPublicID(publicID string) (models.Order, error) {
	var o models.Order
	err := r.db.Where("public_id = ?", publicID).First(&o).Error
	return o, err
}

// List returns orders matching the filter, newest first, plus the total.
func (r *OrderRepository) List(f OrderFilter) ([]models.Order, int64, error) {
	q := r.db.Model(&models.Order{})
	if f.Converted != nil {
		q = q.Where("is_converted = ?", *f.Converted)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, limit := f.Page, f.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}

	var orders []models.Order
	err := q.Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&orders).Error
	return orders, total, err
}

// ListNeedingRetry returns unsent orders still under the retry cap whose
// backoff window has elapsed, oldest first. max caps the result; max <= 0
// returns nothing.
func (r *OrderRepository) ListNeedingRetry(max int) ([]models.Order, error) {
	if max <= 0 {
		return nil, nil
	}
	var orders []models.Order
	err := r.db.
		Where("email_sent = ?", false).
		Where("email_retry_count < ?", r.maxRetries).
		Where("next_retry_at IS NULL OR next_retry_at <= ?", r.now()).
		Order("created_at ASC").
		Limit(max).
		Find(&orders).Error
	return orders, err
}

// MarkEmailSent records a successful send and clears any prior error.
func (r *OrderRepository) MarkEmailSent(publicID string) error {
	return r.db.Model(&models.Order{}).
		Where("public_id = ?", publicID).
		Updates(map[string]any{
			"email_sent":    true,
			"email_error":   "",
			"next_retry_at": nil,
		}).Error
}

// MarkEmailFailed records a failed send: bumps the retry counter (never
// past the cap), stores the error and schedules the next attempt.
func (r *OrderRepository) MarkEmailFailed(publicID string, sendErr error) error {
	var o models.Order
	if err := r.db.Where("public_id = ?", publicID).First(&o).Error; err != nil {
		return err
	}

	count := o.EmailRetryCount + 1
	if count > r.maxRetries {
		count = r.maxRetries
	}
	next := r.now().Add(time.Duration(count) * retryBackoffStep)

	return r.db.Model(&models.Order{}).
		Where("public_id = ?", publicID).
		Updates(map[string]any{
			"email_retry_count": count,
			"email_error":       sendErr.Error(),
			"next_retry_at":     next,
		}).Error
}

// MarkConverted flags the order as a confirmed conversion.
func (r *OrderRepository) MarkConverted(publicID string) error {
	res := r.db.Model(&models.Order{}).
		Where("public_id = ?", publicID).
		Update("is_converted", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete removes an order. Physical delete.
func (r *OrderRepository) Delete(publicID string) error {
	res := r.db.Where("public_id = ?", publicID).Delete(&models.Order{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// All returns every order, for CSV export.
func (r *OrderRepository) All(converted *bool) ([]models.Order, error) {
	q := r.db.Model(&models.Order{})
	if converted != nil {
		q = q.Where("is_converted = ?", *converted)
	}
	var orders []models.Order
	err := q.Order("created_at ASC").Find(&orders).Error
	return orders, err
}
