package eml

import (
	"encoding/base64"
	"strings"

	"mailvault/exporter/internal/domain"
)

const (
	// CRLF MIME 规范换行
	CRLF = "\r\n"
	// Preamble 外层 multipart/mixed 的可读前言
	Preamble = "This is a multi-part message in MIME format."

	base64LineLength = 76
)

// AttachmentLookup 附件只读查找表
type AttachmentLookup interface {
	Lookup(id string) (*domain.DecodedAttachment, bool)
}

// Serializer 将 MIME 节点树渲染为 RFC 5322/MIME 文本。
//
// 渲染过程只读访问节点树与附件表，可在多个 goroutine 中对不同邮件并发使用。
type Serializer struct {
	attachments AttachmentLookup
}

// NewSerializer 创建序列化器；attachments 为 nil 时视为没有任何附件
func NewSerializer(attachments AttachmentLookup) *Serializer {
	return &Serializer{attachments: attachments}
}

// SerializeMessage 从根节点头部与邮件元数据补全顶层字段后序列化整封邮件
func (s *Serializer) SerializeMessage(msg domain.Message, root *domain.MimeNode) []byte {
	if root == nil {
		return nil
	}
	top, rest := Hydrate(ParseHeaders(root.Headers), msg.Subject)
	return s.Serialize(top, rest, root)
}

// Serialize 序列化整封邮件。
//
// rootHeaders 为去除顶层字段后的根节点头部。根节点或其直接子节点带有附件时，
// 整封邮件再包裹一层 multipart/mixed。
func (s *Serializer) Serialize(top TopLevel, rootHeaders *HeaderSet, root *domain.MimeNode) []byte {
	if root == nil {
		return nil
	}

	bounds := NewBoundaries()
	rootLines := s.render(root, rootHeaders, bounds)

	lines := top.Lines()
	if s.needsEnvelope(root) {
		b := bounds.Next()
		lines = append(lines,
			`Content-Type: multipart/mixed; boundary="`+b+`"`,
			"",
			Preamble,
			"--"+b,
		)
		lines = append(lines, rootLines...)
		lines = append(lines, "--"+b+"--")
	} else {
		lines = append(lines, rootLines...)
	}

	return []byte(strings.Join(lines, CRLF) + CRLF)
}

// needsEnvelope 根节点或直接子节点引用了可解析的附件
func (s *Serializer) needsEnvelope(root *domain.MimeNode) bool {
	if _, ok := s.lookup(root.AttachmentID); ok {
		return true
	}
	for _, child := range root.Children {
		if child == nil {
			continue
		}
		if _, ok := s.lookup(child.AttachmentID); ok {
			return true
		}
	}
	return false
}

func (s *Serializer) lookup(id string) (*domain.DecodedAttachment, bool) {
	if s.attachments == nil || id == "" {
		return nil, false
	}
	return s.attachments.Lookup(id)
}

// render 深度优先渲染单个节点
func (s *Serializer) render(node *domain.MimeNode, hs *HeaderSet, bounds *Boundaries) []string {
	built := hs.Build(rawBody(node.Body), node.HasBody())
	bounds.Reserve(built.Boundary)

	body := NormalizeBody(node.Body, built.ContentType)
	multipart := isMultipart(built.ContentType)
	att, hasAtt := s.lookup(node.AttachmentID)

	if multipart && built.Boundary == "" && (len(node.Children) > 0 || hasAtt) {
		built.SetBoundary(bounds.Next())
	}

	if hasAtt && !multipart {
		return s.renderWithAttachment(node, hs, built, body, att, bounds)
	}

	lines := append([]string{}, built.Lines...)
	lines = append(lines, "")
	if node.HasBody() {
		lines = append(lines, splitLines(body)...)
	}

	if !multipart {
		// 非 multipart 却带子节点：顺序输出，不加分隔符
		return append(lines, s.renderChildren(node, bounds)...)
	}

	b := built.Boundary
	for _, child := range node.Children {
		if child == nil {
			continue
		}
		lines = append(lines, "--"+b)
		lines = append(lines, s.render(child, ParseHeaders(child.Headers), bounds)...)
	}
	if hasAtt {
		lines = append(lines, "--"+b)
		lines = append(lines, attachmentPart(att)...)
	}
	if len(node.Children) > 0 || hasAtt {
		lines = append(lines, "--"+b+"--")
	}
	return lines
}

// renderWithAttachment 为非 multipart 节点引入新的 multipart/mixed 包裹，
// 原内容作为第一部分，附件作为第二部分。
func (s *Serializer) renderWithAttachment(node *domain.MimeNode, hs *HeaderSet, built Built, body string, att *domain.DecodedAttachment, bounds *Boundaries) []string {
	b := bounds.Next()

	lines := make([]string, 0, len(hs.Headers())+8)
	for _, h := range hs.Headers() {
		if strings.EqualFold(h.Name, "content-type") || strings.EqualFold(h.Name, "content-transfer-encoding") {
			continue
		}
		lines = append(lines, h.Name+": "+Normalize(h.Value))
	}
	lines = append(lines,
		`Content-Type: multipart/mixed; boundary="`+b+`"`,
		"",
		"--"+b,
	)

	if built.ContentType != "" {
		lines = append(lines, "Content-Type: "+Normalize(built.ContentType))
	}
	lines = append(lines, "Content-Transfer-Encoding: "+Normalize(built.TransferEncoding), "")
	if node.HasBody() {
		lines = append(lines, splitLines(body)...)
	}
	lines = append(lines, s.renderChildren(node, bounds)...)

	lines = append(lines, "--"+b)
	lines = append(lines, attachmentPart(att)...)
	return append(lines, "--"+b+"--")
}

func (s *Serializer) renderChildren(node *domain.MimeNode, bounds *Boundaries) []string {
	var lines []string
	for _, child := range node.Children {
		if child == nil {
			continue
		}
		lines = append(lines, s.render(child, ParseHeaders(child.Headers), bounds)...)
	}
	return lines
}

// attachmentPart 附件部分：头部、空行、76 列折行的 base64 内容
func attachmentPart(att *domain.DecodedAttachment) []string {
	contentType := att.ContentType
	if contentType == "" {
		contentType = domain.DefaultContentType
	}

	lines := []string{
		"Content-Type: " + contentType + `; name="` + att.Filename + `"`,
		"Content-Transfer-Encoding: base64",
		`Content-Disposition: attachment; filename="` + att.Filename + `"`,
		"",
	}
	return append(lines, wrapBase64(att.Content)...)
}

func wrapBase64(content []byte) []string {
	encoded := base64.StdEncoding.EncodeToString(content)
	lines := make([]string, 0, len(encoded)/base64LineLength+1)
	for len(encoded) > base64LineLength {
		lines = append(lines, encoded[:base64LineLength])
		encoded = encoded[base64LineLength:]
	}
	if encoded != "" {
		lines = append(lines, encoded)
	}
	return lines
}

// splitLines 按任意换行拆分正文，统一由 CRLF 重新连接
func splitLines(body string) []string {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	return strings.Split(body, "\n")
}

// rawBody 用于推断 content-type 的原始正文
func rawBody(body *domain.Body) string {
	if body == nil {
		return ""
	}
	if body.IsText {
		return body.Text
	}
	return string(body.Binary)
}
