package database

import (
	"context"
	"fmt"

	"whatsapp-router/internal/models"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const copyBatchSize = 500

// CopyAll copies every router table from src into dst, parents first. Rows
// already present in dst are left untouched, so a copy can be re-run.
func CopyAll(ctx context.Context, src, dst *gorm.DB) (map[string]int, error) {
	counts := map[string]int{}
	steps := []struct {
		table string
		copy  func(context.Context, *gorm.DB, *gorm.DB) (int, error)
	}{
		{"users", copyTable[models.User]},
		{"projects", copyTable[models.Project]},
		{"contacts", copyTable[models.Contact]},
		{"conversations", copyTable[models.Conversation]},
		{"messages", copyTable[models.Message]},
	}

	for _, step := range steps {
		n, err := step.copy(ctx, src, dst)
		if err != nil {
			return counts, fmt.Errorf("copy %s: %w", step.table, err)
		}
		counts[step.table] = n
		log.Info().Str("table", step.table).Int("rows", n).Msg("Table copied")
	}
	return counts, nil
}

func copyTable[T any](ctx context.Context, src, dst *gorm.DB) (int, error) {
	var rows []T
	total := 0
	err := src.WithContext(ctx).FindInBatches(&rows, copyBatchSize, func(_ *gorm.DB, _ int) error {
		err := dst.WithContext(ctx).
			Omit(clause.Associations).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&rows).Error
		if err != nil {
			return err
		}
		total += len(rows)
		return nil
	}).Error
	return total, err
}
