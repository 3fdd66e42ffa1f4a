package domain

// Mailbox 表示归档中的一个邮箱目录。
type Mailbox struct {
	ID       string `json:"id" gorm:"primaryKey;column:id"`
	Path     string `json:"path" gorm:"column:path"` // 原始路径，可能包含非 ASCII 字符
	SafePath string `json:"-" gorm:"-"`              // 文件系统安全路径
}

// TableName 指定归档表名
func (Mailbox) TableName() string { return "mailboxes" }
