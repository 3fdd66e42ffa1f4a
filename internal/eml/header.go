package eml

import (
	"net/http"
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	inferredHTML          = "text/html; charset=UTF-8"
	inferredPlain         = "text/plain; charset=UTF-8"
	defaultTransferEncode = "quoted-printable"
)

var boundaryPattern = regexp.MustCompile(`(?i)boundary\s*=\s*"?([^";]+)"?`)

// Header 一条解析后的头部
type Header struct {
	Name  string // 原始声明的名称
	Value string // 已去除首尾空白
}

// HeaderSet 节点头部的有序集合与大小写不敏感查找表。
type HeaderSet struct {
	headers []Header
	lookup  map[string]int // 小写名称 -> 首次出现的下标
}

// ParseHeaders 解析节点的原始头部行。
//
// 每行按第一个冒号拆分为名称和值；不含冒号的行被忽略。
func ParseHeaders(lines []string) *HeaderSet {
	hs := &HeaderSet{
		headers: make([]Header, 0, len(lines)),
		lookup:  make(map[string]int, len(lines)),
	}

	for _, line := range lines {
		idx := strings.Index(line, ":")
		if idx <= 0 {
			continue
		}
		name := strings.TrimSpace(line[:idx])
		if name == "" {
			continue
		}
		value := strings.TrimSpace(line[idx+1:])

		key := strings.ToLower(name)
		if _, exists := hs.lookup[key]; !exists {
			hs.lookup[key] = len(hs.headers)
		}
		hs.headers = append(hs.headers, Header{Name: name, Value: value})
	}

	return hs
}

// Has 判断头部是否存在
func (hs *HeaderSet) Has(name string) bool {
	_, ok := hs.lookup[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// Get 返回首次出现的头部值
func (hs *HeaderSet) Get(name string) string {
	idx, ok := hs.lookup[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return ""
	}
	return hs.headers[idx].Value
}

// Headers 返回全部头部（按原始顺序）
func (hs *HeaderSet) Headers() []Header {
	return hs.headers
}

// ContentType 返回 content-type 的原始值
func (hs *HeaderSet) ContentType() string {
	return hs.Get("content-type")
}

// Boundary 返回 content-type 中声明的 boundary 参数
func (hs *HeaderSet) Boundary() string {
	return extractBoundary(hs.ContentType())
}

// Without 返回去除指定头部后的副本
func (hs *HeaderSet) Without(names ...string) *HeaderSet {
	drop := make(map[string]bool, len(names))
	for _, name := range names {
		drop[strings.ToLower(name)] = true
	}

	lines := make([]string, 0, len(hs.headers))
	for _, h := range hs.headers {
		if drop[strings.ToLower(h.Name)] {
			continue
		}
		lines = append(lines, h.Name+": "+h.Value)
	}
	return ParseHeaders(lines)
}

// Built 节点头部的重建结果
type Built struct {
	Lines            []string
	ContentType      string // 解析或推断得到的 content-type
	TransferEncoding string
	Boundary         string
	contentTypeLine  int // Lines 中 Content-Type 行的下标，-1 表示不存在
}

// SetBoundary 将 boundary 参数写入输出的 Content-Type 行
func (b *Built) SetBoundary(boundary string) {
	b.Boundary = boundary
	b.ContentType = withBoundary(b.ContentType, boundary)
	if b.contentTypeLine >= 0 {
		name := b.Lines[b.contentTypeLine]
		if idx := strings.Index(name, ":"); idx > 0 {
			name = name[:idx]
		}
		b.Lines[b.contentTypeLine] = name + ": " + b.ContentType
	}
}

// Build 按重建规则生成节点的输出头部。
//
// 1. 原样输出每条头部，值经过 Normalize；
// 2. 缺少 content-type 时根据正文推断，无正文则不推断；
// 3. 缺少 content-transfer-encoding 时声明为 quoted-printable（不重新编码正文）。
func (hs *HeaderSet) Build(body string, hasBody bool) Built {
	built := Built{
		Lines:           make([]string, 0, len(hs.headers)+2),
		contentTypeLine: -1,
	}

	for _, h := range hs.headers {
		if strings.EqualFold(h.Name, "content-type") && built.contentTypeLine < 0 {
			built.contentTypeLine = len(built.Lines)
		}
		built.Lines = append(built.Lines, h.Name+": "+Normalize(h.Value))
	}

	if hs.Has("content-type") {
		built.ContentType = hs.ContentType()
		built.Boundary = hs.Boundary()
	} else if hasBody {
		if looksLikeHTML(body) {
			built.ContentType = inferredHTML
		} else {
			built.ContentType = inferredPlain
		}
		built.contentTypeLine = len(built.Lines)
		built.Lines = append(built.Lines, "Content-Type: "+built.ContentType)
	}

	if hs.Has("content-transfer-encoding") {
		built.TransferEncoding = hs.Get("content-transfer-encoding")
	} else {
		built.TransferEncoding = defaultTransferEncode
		built.Lines = append(built.Lines, "Content-Transfer-Encoding: "+defaultTransferEncode)
	}

	return built
}

func looksLikeHTML(body string) bool {
	trimmed := strings.ToLower(strings.TrimLeft(body, " \t\r\n\uFEFF"))
	return strings.HasPrefix(trimmed, "<!doctype html")
}

func extractBoundary(contentType string) string {
	m := boundaryPattern.FindStringSubmatch(contentType)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func withBoundary(contentType, boundary string) string {
	if contentType == "" {
		return contentType
	}
	if loc := boundaryPattern.FindStringIndex(contentType); loc != nil {
		return contentType[:loc[0]] + `boundary="` + boundary + `"` + contentType[loc[1]:]
	}
	return strings.TrimRight(strings.TrimSpace(contentType), ";") + `; boundary="` + boundary + `"`
}

// TopLevel 邮件顶层元数据
type TopLevel struct {
	From    string
	To      string
	Subject string
	Date    string
}

// topLevelNames 从根节点头部中提取到顶层的字段
var topLevelNames = []string{"from", "to", "subject", "date", "mime-version"}

// Hydrate 从根节点头部和邮件元数据中提取顶层字段，并返回去除这些字段后的根头部。
//
// 主题优先使用邮件记录中的值。
func Hydrate(root *HeaderSet, subject string) (TopLevel, *HeaderSet) {
	top := TopLevel{
		From:    root.Get("from"),
		To:      root.Get("to"),
		Subject: root.Get("subject"),
		Date:    root.Get("date"),
	}
	if strings.TrimSpace(subject) != "" {
		top.Subject = strings.TrimSpace(subject)
	}
	return top, root.Without(topLevelNames...)
}

// Lines 输出顶层头部：From、Subject、To、Date（存在时）以及固定的 MIME-Version
func (t TopLevel) Lines() []string {
	lines := make([]string, 0, 5)
	if t.From != "" {
		lines = append(lines, "From: "+Normalize(t.From))
	}
	if t.Subject != "" {
		lines = append(lines, "Subject: "+Normalize(t.Subject))
	}
	if t.To != "" {
		lines = append(lines, "To: "+Normalize(t.To))
	}
	if t.Date != "" {
		lines = append(lines, "Date: "+FormatDate(t.Date))
	}
	return append(lines, "MIME-Version: 1.0")
}

// FormatDate 将日期规范为 HTTP 风格的 UTC 时间；无法解析时原样返回
func FormatDate(value string) string {
	value = strings.TrimSpace(value)
	if t, ok := parseDate(value); ok {
		return t.UTC().Format(http.TimeFormat)
	}
	return value
}

func parseDate(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	if t, err := mail.ParseDate(value); err == nil {
		return t, true
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", http.TimeFormat} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	if n, err := strconv.ParseInt(value, 10, 64); err == nil && n > 0 {
		// 超过 1e11 视为毫秒时间戳
		if n > 1e11 {
			return time.UnixMilli(n), true
		}
		return time.Unix(n, 0), true
	}
	return time.Time{}, false
}
