package filesystem

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestPlatformUtils 测试平台兼容性工具
func TestPlatformUtils(t *testing.T) {
	utils := NewPlatformUtils()

	t.Run("sanitize filename", func(t *testing.T) {
		testCases := []struct {
			input    string
			expected string
		}{
			// 正常文件名
			{"document.pdf", "document.pdf"},
			{"test file.txt", "test file.txt"},
			{"abc123_att-1.jpg", "abc123_att-1.jpg"},

			// 包含特殊字符
			{"file<name>.txt", "file_name_.txt"},
			{"file:name.txt", "file_name.txt"},
			{"file|name.txt", "file_name.txt"},
			{"file?name.txt", "file_name.txt"},
			{"file*name.txt", "file_name.txt"},
			{"file\"name\".txt", "file_name_.txt"},

			// 路径分隔符
			{"path/to/file.txt", "path_to_file.txt"},
			{"path\\to\\file.txt", "path_to_file.txt"},

			// 控制字符
			{"file\x00name.txt", "file_name.txt"},
			{"file\tname\n.txt", "filename.txt"},

			// 空文件名与特殊目录
			{"", "unnamed"},
			{"   ", "unnamed"},
			{"..", "unnamed"},
			{"...", "unnamed"},

			// 超长文件名
			{strings.Repeat("a", 300) + ".txt", strings.Repeat("a", 196) + ".txt"},
		}

		for _, tc := range testCases {
			result := utils.SanitizeFilename(tc.input)
			assert.Equal(t, tc.expected, result, "Input: %q", tc.input)
		}
	})

	t.Run("limit length keeps valid utf8", func(t *testing.T) {
		result := utils.SanitizeFilename(strings.Repeat("é", 150))
		assert.LessOrEqual(t, len(result), maxFilenameLength)
		assert.True(t, strings.HasPrefix(result, "éé"))
		assert.NotContains(t, result, "\uFFFD")
	})

	t.Run("validate path", func(t *testing.T) {
		assert.NoError(t, utils.ValidatePath("INBOX/Sent"))
		assert.NoError(t, utils.ValidatePath("a..b/c"))
		assert.Error(t, utils.ValidatePath("../outside"))
		assert.Error(t, utils.ValidatePath("INBOX/../../etc"))
		assert.Error(t, utils.ValidatePath(strings.Repeat("a", 2001)))
	})

	t.Run("normalize path", func(t *testing.T) {
		normalized := utils.NormalizePath("some/dir/../file")
		assert.True(t, filepath.IsAbs(normalized))
		assert.Equal(t, "file", filepath.Base(normalized))
		assert.Equal(t, "some", filepath.Base(filepath.Dir(normalized)))
	})
}

// TestSafeMailboxPath 测试邮箱路径转换
func TestSafeMailboxPath(t *testing.T) {
	utils := NewPlatformUtils()

	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"ascii", "INBOX", "INBOX"},
		{"nested", "INBOX/Sent", filepath.Join("INBOX", "Sent")},
		{"latin", "Jérôme", "J&AOk-r&APQ-me"},
		{"cjk", "日本", "&ZeVnLA-"},
		{"ampersand", "Q&A", "Q&-A"},
		{"empty segments", "/INBOX//Drafts/", filepath.Join("INBOX", "Drafts")},
		{"traversal", "../etc", filepath.Join("unnamed", "etc")},
		{"invalid chars", "Work:2024?", "Work_2024_"},
		{"empty", "", UnknownMailboxDir},
		{"only separators", "///", UnknownMailboxDir},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := utils.SafeMailboxPath(tc.input)
			assert.Equal(t, tc.expected, result)
			for _, r := range result {
				assert.Less(t, r, rune(128), "non-ascii rune in %q", result)
			}
		})
	}
}
