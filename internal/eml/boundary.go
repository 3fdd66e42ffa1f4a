package eml

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Boundaries 单封邮件序列化期间的 boundary 唯一性上下文。
//
// 同一封邮件中生成或声明的 boundary 互不相同，避免子部分的分隔符提前结束祖先部分。
// 非并发安全，每封邮件使用独立实例。
type Boundaries struct {
	seen  map[string]struct{}
	order []string
	n     int
	token func() string
}

// NewBoundaries 创建 boundary 上下文
func NewBoundaries() *Boundaries {
	return &Boundaries{
		seen:  make(map[string]struct{}),
		token: uuid.NewString,
	}
}

// Next 生成一个新的 boundary，保证与已登记的值不重复
func (b *Boundaries) Next() string {
	for {
		b.n++
		token := strings.ReplaceAll(b.token(), "-", "")
		candidate := fmt.Sprintf("----=_Part_%d_%s", b.n, token)
		if _, exists := b.seen[candidate]; exists {
			continue
		}
		b.add(candidate)
		return candidate
	}
}

// Reserve 登记源数据中已声明的 boundary
func (b *Boundaries) Reserve(boundary string) {
	if boundary == "" {
		return
	}
	if _, exists := b.seen[boundary]; exists {
		return
	}
	b.add(boundary)
}

// All 按登记顺序返回全部 boundary
func (b *Boundaries) All() []string {
	out := make([]string, len(b.order))
	copy(out, b.order)
	return out
}

func (b *Boundaries) add(boundary string) {
	b.seen[boundary] = struct{}{}
	b.order = append(b.order, boundary)
}
