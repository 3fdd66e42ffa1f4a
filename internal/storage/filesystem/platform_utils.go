package filesystem

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/emersion/go-imap/utf7"
)

const (
	// UnknownMailboxDir 找不到所属邮箱的邮件写入此目录
	UnknownMailboxDir = "_unknown"
	unnamed           = "unnamed"
	maxFilenameLength = 200
)

// invalidChars 导出目录需要在各平台间可移植，统一按最严格的字符集处理
var invalidChars = []string{"<", ">", ":", "\"", "|", "?", "*", "\\", "/", "\x00"}

// PlatformUtils 平台兼容性工具
type PlatformUtils struct{}

// NewPlatformUtils 创建平台工具实例
func NewPlatformUtils() *PlatformUtils {
	return &PlatformUtils{}
}

// SanitizeFilename 清理文件名，确保跨平台兼容
func (p *PlatformUtils) SanitizeFilename(filename string) string {
	// 1. 替换不允许的字符（包括路径分隔符）
	for _, char := range invalidChars {
		filename = strings.ReplaceAll(filename, char, "_")
	}

	// 2. 移除控制字符
	filename = p.removeControlChars(filename)

	// 3. 移除前后空格和点，避免 "." ".." 以及 Windows 不接受的结尾
	filename = strings.Trim(filename, " .")

	// 4. 限制长度
	filename = p.limitLength(filename, maxFilenameLength)

	if filename == "" {
		return unnamed
	}
	return filename
}

// SafeMailboxPath 把邮箱路径转换为 ASCII 兼容的相对目录。
//
// 每一段先按 IMAP modified UTF-7 编码，再清理文件名字符；空段被忽略。
func (p *PlatformUtils) SafeMailboxPath(path string) string {
	segments := strings.Split(path, "/")
	safe := make([]string, 0, len(segments))

	for _, segment := range segments {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		encoded, err := utf7.Encoding.NewEncoder().String(segment)
		if err != nil {
			encoded = asciiFallback(segment)
		}
		safe = append(safe, p.SanitizeFilename(encoded))
	}

	if len(safe) == 0 {
		return UnknownMailboxDir
	}
	return filepath.Join(safe...)
}

// asciiFallback 编码失败时把非 ASCII 字符替换为下划线
func asciiFallback(s string) string {
	return strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return '_'
		}
		return r
	}, s)
}

// removeControlChars 移除控制字符
func (p *PlatformUtils) removeControlChars(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

// limitLength 限制字符串长度，保留扩展名
func (p *PlatformUtils) limitLength(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}

	ext := filepath.Ext(s)
	if len(ext) > maxLen/4 {
		ext = ""
	}
	nameWithoutExt := strings.TrimSuffix(s, ext)

	availableLen := maxLen - len(ext)
	return strings.ToValidUTF8(nameWithoutExt[:availableLen], "") + ext
}

// ValidatePath 验证相对路径是否安全
func (p *PlatformUtils) ValidatePath(path string) error {
	if len(path) > 2000 {
		return fmt.Errorf("path too long: %d characters", len(path))
	}

	for _, segment := range strings.FieldsFunc(path, func(r rune) bool { return r == '/' || r == '\\' }) {
		if segment == ".." {
			return fmt.Errorf("path traversal detected: %s", path)
		}
	}

	return nil
}

// NormalizePath 转换为绝对路径并清理
func (p *PlatformUtils) NormalizePath(path string) string {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return filepath.Clean(absPath)
}
