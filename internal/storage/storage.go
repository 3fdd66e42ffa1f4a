package storage

import (
	"context"
	"errors"

	"mailvault/exporter/internal/domain"
)

var (
	// ErrUnsupportedDriver 不支持的归档类型
	ErrUnsupportedDriver = errors.New("unsupported archive driver")
	// ErrStopIteration 由回调返回时提前结束遍历，不视为错误
	ErrStopIteration = errors.New("stop iteration")
)

// MessageFunc 遍历邮件时的回调
type MessageFunc func(msg domain.Message) error

// Archive 定义归档存储的只读访问。
//
// 导出流程只读取归档，不做任何写入。EachMessage 按 Seq 升序回调。
type Archive interface {
	ListMailboxes(ctx context.Context) ([]domain.Mailbox, error)
	ListAttachments(ctx context.Context) ([]domain.AttachmentRecord, error)
	EachMessage(ctx context.Context, fn MessageFunc) error
	Health() error
	Close() error
}

// Output 定义导出结果的写入目标。
type Output interface {
	// WriteMessage 写入 <mailboxPath>/<messageID>.eml，返回最终路径
	WriteMessage(mailboxPath, messageID string, data []byte) (string, error)
	// WriteAttachment 写入附件目录，返回最终路径
	WriteAttachment(filename string, data []byte) (string, error)
}
