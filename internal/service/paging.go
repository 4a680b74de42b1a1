package service

import (
	"context"

	"content_platform/internal/utils"

	"gorm.io/gorm"
)

// listPage counts and fetches one page of T inside a single transaction so
// the total and the rows come from the same snapshot.
func listPage[T any](ctx context.Context, db *gorm.DB, scope func(*gorm.DB) *gorm.DB, order string, page utils.Page) ([]T, int64, error) {
	var (
		rows  []T
		total int64
	)
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model T
		if err := scope(tx.Model(&model)).Count(&total).Error; err != nil {
			return err
		}
		return scope(tx.Model(&model)).Order(order).Offset(page.Offset()).Limit(page.PageSize).Find(&rows).Error
	})
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// noScope leaves a query unfiltered
func noScope(tx *gorm.DB) *gorm.DB { return tx }
