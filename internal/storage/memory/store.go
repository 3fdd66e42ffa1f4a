package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"mailvault/exporter/internal/domain"
	"mailvault/exporter/internal/storage"
)

// ErrClosed 归档已关闭
var ErrClosed = errors.New("archive is closed")

var _ storage.Archive = (*Store)(nil)

// Store 使用内存保存归档数据，用于测试和 JSON 导出文件。
type Store struct {
	mu          sync.RWMutex
	mailboxes   []domain.Mailbox
	attachments []domain.AttachmentRecord
	messages    []domain.Message
	closed      bool
}

// NewStore 创建一个空的内存归档。
func NewStore() *Store {
	return &Store{}
}

// AddMailbox 添加邮箱
func (s *Store) AddMailbox(mailboxes ...domain.Mailbox) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mailboxes = append(s.mailboxes, mailboxes...)
}

// AddAttachment 添加附件记录
func (s *Store) AddAttachment(records ...domain.AttachmentRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attachments = append(s.attachments, records...)
}

// AddMessage 添加邮件
func (s *Store) AddMessage(messages ...domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, messages...)
}

// ListMailboxes 返回所有邮箱
func (s *Store) ListMailboxes(ctx context.Context) ([]domain.Mailbox, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Mailbox, len(s.mailboxes))
	copy(out, s.mailboxes)
	return out, nil
}

// ListAttachments 返回所有附件记录
func (s *Store) ListAttachments(ctx context.Context) ([]domain.AttachmentRecord, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.AttachmentRecord, len(s.attachments))
	copy(out, s.attachments)
	return out, nil
}

// EachMessage 按 Seq 升序遍历邮件；Seq 相同时保持插入顺序
func (s *Store) EachMessage(ctx context.Context, fn storage.MessageFunc) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	s.mu.RLock()
	messages := make([]domain.Message, len(s.messages))
	copy(messages, s.messages)
	s.mu.RUnlock()

	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].Seq < messages[j].Seq
	})

	for _, msg := range messages {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(msg); err != nil {
			if errors.Is(err, storage.ErrStopIteration) {
				return nil
			}
			return err
		}
	}
	return nil
}

// Health 检查归档状态
func (s *Store) Health() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Close 关闭归档
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.Health()
}
