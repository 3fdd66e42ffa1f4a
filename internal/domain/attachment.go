package domain

// DefaultContentType 未声明类型时使用的通用二进制类型
const DefaultContentType = "application/octet-stream"

// AttachmentRecord 表示归档中存储的附件行。
type AttachmentRecord struct {
	ID               string `json:"id" gorm:"primaryKey;column:id"`
	AttachmentID     string `json:"attachmentId" gorm:"column:attachment_id;index"`
	ContentType      string `json:"contentType" gorm:"column:content_type"`
	TransferEncoding string `json:"transferEncoding" gorm:"column:transfer_encoding"`
	Hash             string `json:"hash" gorm:"column:hash"`
	Size             *int64 `json:"size" gorm:"column:size"` // 声明大小（可选）
	Body             string `json:"body" gorm:"column:body"` // 十六进制包装后的存储内容
}

// TableName 指定归档表名
func (AttachmentRecord) TableName() string { return "attachments" }

// DecodedAttachment 表示解码完成的附件。
type DecodedAttachment struct {
	AttachmentID string
	ContentType  string
	Filename     string
	Content      []byte
	Size         int64
}

// AttachmentTable 附件只读查找表，按附件 ID 索引。
//
// 解码阶段一次性写入，序列化阶段只读。
type AttachmentTable map[string]*DecodedAttachment

// Lookup 查找附件；不存在时视为无附件
func (t AttachmentTable) Lookup(id string) (*DecodedAttachment, bool) {
	if id == "" || t == nil {
		return nil, false
	}
	att, ok := t[id]
	return att, ok && att != nil
}
