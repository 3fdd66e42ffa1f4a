package memory

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"mailvault/exporter/internal/domain"
)

// dump JSON 导出文件格式
type dump struct {
	Mailboxes   []domain.Mailbox          `json:"mailboxes"`
	Attachments []domain.AttachmentRecord `json:"attachments"`
	Messages    []dumpMessage             `json:"messages"`
}

// dumpMessage 允许 tree 既是 JSON 字符串也是内联对象
type dumpMessage struct {
	ID        string          `json:"id"`
	MailboxID string          `json:"mailboxId"`
	Subject   string          `json:"subject"`
	Seq       int64           `json:"seq"`
	Tree      json.RawMessage `json:"tree"`
}

func (m dumpMessage) toDomain() domain.Message {
	msg := domain.Message{ID: m.ID, MailboxID: m.MailboxID, Subject: m.Subject, Seq: m.Seq}

	var text string
	if err := json.Unmarshal(m.Tree, &text); err == nil {
		msg.Tree = text
	} else {
		msg.Tree = string(m.Tree)
	}
	return msg
}

// Load 从 JSON 导出内容创建内存归档
func Load(r io.Reader) (*Store, error) {
	var d dump
	if err := json.NewDecoder(r).Decode(&d); err != nil {
		return nil, fmt.Errorf("failed to decode archive dump: %w", err)
	}

	store := NewStore()
	store.AddMailbox(d.Mailboxes...)
	store.AddAttachment(d.Attachments...)
	for _, m := range d.Messages {
		store.AddMessage(m.toDomain())
	}
	return store, nil
}

// LoadFile 从 JSON 导出文件创建内存归档
func LoadFile(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive dump: %w", err)
	}
	defer f.Close()

	return Load(f)
}
