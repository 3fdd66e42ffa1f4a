package eml

import (
	"mime"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"

	"mailvault/exporter/internal/domain"
)

// mojibakeReplacer 修正 UTF-8 标点被按 Windows-1252 误解码后的常见序列
var mojibakeReplacer = strings.NewReplacer(
	"\u00e2\u20ac\u2122", "\u2019",
	"\u00e2\u20ac\u02dc", "\u2018",
	"\u00e2\u20ac\u0153", "\u201c",
	"\u00e2\u20ac\u009d", "\u201d",
	"\u00e2\u20ac\ufffd", "\u201d",
	"\u00e2\u20ac\u201c", "\u2013",
	"\u00e2\u20ac\u201d", "\u2014",
	"\u00e2\u20ac\u00a6", "\u2026",
	"\u00c2\u00a0", " ",
)

// invisible 需要剔除的 BOM 与零宽字符
func invisible(r rune) bool {
	switch r {
	case '\uFEFF', '\u200B', '\u200C', '\u200D', '\u2060':
		return true
	}
	return false
}

func nbspToSpace(r rune) rune {
	if r == '\u00A0' {
		return ' '
	}
	return r
}

// Normalize 清理写入头部或文本正文的字符串。
//
// 移除 BOM 与不可见字符，不换行空格替换为普通空格，并修正已知的乱码标点。
// 纯函数，不会失败。
func Normalize(s string) string {
	if s == "" {
		return ""
	}

	s = mojibakeReplacer.Replace(s)

	t := transform.Chain(runes.Remove(runes.Predicate(invisible)), runes.Map(nbspToSpace))
	out, _, err := transform.String(t, s)
	if err != nil {
		// runes 转换器不会产生错误，这里保留原串
		return s
	}
	return out
}

// NormalizeBody 规范化节点正文；text/html 先解码 HTML 实体。
func NormalizeBody(body *domain.Body, contentType string) string {
	if body == nil {
		return ""
	}

	text := body.Text
	if !body.IsText {
		text = decodeBinary(body.Binary, contentType)
		if !isTextType(contentType) {
			return text
		}
	}

	if mediaType(contentType) == "text/html" {
		text = html.UnescapeString(text)
	}
	return Normalize(text)
}

// decodeBinary 将 text/* 部分的二进制正文按声明字符集转换为 UTF-8
func decodeBinary(raw []byte, contentType string) string {
	if !isTextType(contentType) {
		return string(raw)
	}

	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return string(raw)
	}
	charset := strings.ToLower(strings.TrimSpace(params["charset"]))
	if charset == "" || charset == "utf-8" || charset == "us-ascii" {
		return string(raw)
	}

	enc, err := ianaindex.MIME.Encoding(charset)
	if err != nil || enc == nil {
		return string(raw)
	}
	converted, _, err := transform.Bytes(enc.NewDecoder(), raw)
	if err != nil {
		return string(raw)
	}
	return string(converted)
}

// mediaType 返回小写的媒体类型（不含参数）
func mediaType(contentType string) string {
	value := contentType
	if idx := strings.Index(value, ";"); idx >= 0 {
		value = value[:idx]
	}
	return strings.ToLower(strings.TrimSpace(value))
}

func isTextType(contentType string) bool {
	return strings.HasPrefix(mediaType(contentType), "text/")
}

func isMultipart(contentType string) bool {
	return strings.HasPrefix(mediaType(contentType), "multipart/")
}
