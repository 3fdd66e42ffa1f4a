package attachment

import (
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"mailvault/exporter/internal/domain"
)

const fallbackExtension = ".bin"

// preferredExtensions 常见类型的首选扩展名，避免 mime 包按字母序返回 .asc、.jfif 等
var preferredExtensions = map[string]string{
	"text/plain":               ".txt",
	"text/html":                ".html",
	"text/csv":                 ".csv",
	"text/calendar":            ".ics",
	"image/jpeg":               ".jpg",
	"image/png":                ".png",
	"image/gif":                ".gif",
	"application/pdf":          ".pdf",
	"application/zip":          ".zip",
	"application/msword":       ".doc",
	"application/octet-stream": "",
	"message/rfc822":           ".eml",
}

// Filename 生成附件输出文件名：<hash 或记录 ID>_<附件 ID><扩展名>
func Filename(rec domain.AttachmentRecord, contentType string, content []byte) string {
	prefix := strings.TrimSpace(rec.Hash)
	if prefix == "" {
		prefix = rec.ID
	}
	return prefix + "_" + rec.AttachmentID + Extension(contentType, content)
}

// Extension 推断附件扩展名：首选表、mimetype 类型库、内容嗅探，最后回退为 .bin
func Extension(contentType string, content []byte) string {
	media, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		media = strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	}

	if ext, ok := preferredExtensions[media]; ok && ext != "" {
		return ext
	}
	if media != "" && media != domain.DefaultContentType {
		if mt := mimetype.Lookup(media); mt != nil && mt.Extension() != "" {
			return mt.Extension()
		}
		if exts, err := mime.ExtensionsByType(media); err == nil && len(exts) > 0 {
			return exts[0]
		}
	}
	if len(content) > 0 {
		if ext := mimetype.Detect(content).Extension(); ext != "" {
			return ext
		}
	}
	return fallbackExtension
}
