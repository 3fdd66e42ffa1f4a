package sql

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"mailvault/exporter/internal/domain"
)

const importBatchSize = 200

// Migrate 创建归档表结构（使用 GORM AutoMigrate）
func (s *Store) Migrate() error {
	return s.gormDB.AutoMigrate(
		&domain.Mailbox{},
		&domain.AttachmentRecord{},
		&domain.Message{},
	)
}

// Import 在一个事务中写入邮箱、附件和邮件，用于从 JSON 导出文件初始化归档
func (s *Store) Import(ctx context.Context, mailboxes []domain.Mailbox, attachments []domain.AttachmentRecord, messages []domain.Message) error {
	err := s.gormDB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(mailboxes) > 0 {
			if err := tx.CreateInBatches(mailboxes, importBatchSize).Error; err != nil {
				return fmt.Errorf("failed to import mailboxes: %w", err)
			}
		}
		if len(attachments) > 0 {
			if err := tx.CreateInBatches(attachments, importBatchSize).Error; err != nil {
				return fmt.Errorf("failed to import attachments: %w", err)
			}
		}
		if len(messages) > 0 {
			if err := tx.CreateInBatches(messages, importBatchSize).Error; err != nil {
				return fmt.Errorf("failed to import messages: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("archive imported",
		zap.Int("mailboxes", len(mailboxes)),
		zap.Int("attachments", len(attachments)),
		zap.Int("messages", len(messages)),
	)
	return nil
}
