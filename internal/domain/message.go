package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyTree 邮件树为空
	ErrEmptyTree = errors.New("message tree is empty")
	// ErrInvalidTree 邮件树 JSON 无法解析
	ErrInvalidTree = errors.New("message tree is invalid")
)

// Message 表示归档中的一封邮件记录。
type Message struct {
	ID        string `json:"id" gorm:"primaryKey;column:id"`
	MailboxID string `json:"mailboxId" gorm:"column:mailbox_id;index"`
	Subject   string `json:"subject" gorm:"column:subject"`
	Seq       int64  `json:"seq" gorm:"column:seq;index"` // 排序键（升序）
	Tree      string `json:"tree" gorm:"column:tree"`     // 序列化的 MIME 节点树（JSON）
}

// TableName 指定归档表名
func (Message) TableName() string { return "messages" }

// ParseTree 解析邮件存储的 MIME 节点树。
//
// 解析失败属于单条记录可恢复错误，调用方应跳过该邮件。
func (m *Message) ParseTree() (*MimeNode, error) {
	raw := strings.TrimSpace(m.Tree)
	if raw == "" || raw == "null" {
		return nil, ErrEmptyTree
	}

	var node MimeNode
	if err := json.Unmarshal([]byte(raw), &node); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTree, err)
	}
	return &node, nil
}

// MimeNode 表示邮件结构树中的一个部分。
type MimeNode struct {
	Headers      []string    `json:"headers"`                // 原始头部行 "Name: value"
	Body         *Body       `json:"body,omitempty"`         // 正文，nil 表示无正文
	AttachmentID string      `json:"attachmentId,omitempty"` // 附件表引用
	Children     []*MimeNode `json:"children,omitempty"`
}

// HasBody 判断节点是否带有正文
func (n *MimeNode) HasBody() bool {
	return n != nil && n.Body != nil
}

// Body 节点正文：UTF-8 文本或二进制载荷。
type Body struct {
	Text   string
	Binary []byte
	IsText bool
}

// TextBody 构造文本正文
func TextBody(s string) *Body {
	return &Body{Text: s, IsText: true}
}

// BinaryBody 构造二进制正文
func BinaryBody(b []byte) *Body {
	return &Body{Binary: b}
}

// bufferJSON 二进制正文的存储形式：{"type":"Buffer","data":[...]}
type bufferJSON struct {
	Type string `json:"type"`
	Data []int  `json:"data"`
}

// UnmarshalJSON 支持字符串和 Buffer 两种正文形式
func (b *Body) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "\"") {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*b = Body{Text: s, IsText: true}
		return nil
	}

	var buf bufferJSON
	if err := json.Unmarshal(data, &buf); err != nil {
		return fmt.Errorf("unsupported body form: %w", err)
	}
	if buf.Type != "" && buf.Type != "Buffer" {
		return fmt.Errorf("unsupported body type %q", buf.Type)
	}

	raw := make([]byte, len(buf.Data))
	for i, v := range buf.Data {
		if v < 0 || v > 255 {
			return fmt.Errorf("body byte %d out of range: %d", i, v)
		}
		raw[i] = byte(v)
	}
	*b = Body{Binary: raw}
	return nil
}

// MarshalJSON 与 UnmarshalJSON 对称
func (b Body) MarshalJSON() ([]byte, error) {
	if b.IsText {
		return json.Marshal(b.Text)
	}
	data := make([]int, len(b.Binary))
	for i, v := range b.Binary {
		data[i] = int(v)
	}
	return json.Marshal(bufferJSON{Type: "Buffer", Data: data})
}
