package filesystem

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"mailvault/exporter/internal/storage"
)

// DefaultAttachmentsDir 附件输出目录的默认名称
const DefaultAttachmentsDir = "attachments"

var _ storage.Output = (*Store)(nil)

// Store 文件系统输出实现
type Store struct {
	basePath        string         // 导出根目录
	attachmentsPath string         // 附件目录
	platformUtils   *PlatformUtils // 平台兼容性工具
}

// NewStore 创建文件系统输出。attachmentsDir 为相对路径时位于 basePath 之下。
func NewStore(basePath, attachmentsDir string) (*Store, error) {
	platformUtils := NewPlatformUtils()

	if err := platformUtils.ValidatePath(basePath); err != nil {
		return nil, fmt.Errorf("invalid base path: %w", err)
	}
	normalizedPath := platformUtils.NormalizePath(basePath)

	if attachmentsDir == "" {
		attachmentsDir = DefaultAttachmentsDir
	}
	if !filepath.IsAbs(attachmentsDir) {
		if err := platformUtils.ValidatePath(attachmentsDir); err != nil {
			return nil, fmt.Errorf("invalid attachments dir: %w", err)
		}
		attachmentsDir = filepath.Join(normalizedPath, attachmentsDir)
	}

	for _, dir := range []string{normalizedPath, attachmentsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return &Store{
		basePath:        normalizedPath,
		attachmentsPath: filepath.Clean(attachmentsDir),
		platformUtils:   platformUtils,
	}, nil
}

// BasePath 返回导出根目录
func (s *Store) BasePath() string { return s.basePath }

// WriteMessage 保存邮件到 <mailboxPath>/<messageID>.eml
func (s *Store) WriteMessage(mailboxPath, messageID string, data []byte) (string, error) {
	if err := s.platformUtils.ValidatePath(mailboxPath); err != nil {
		return "", fmt.Errorf("invalid mailbox path: %w", err)
	}

	dir := filepath.Join(s.basePath, mailboxPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create mailbox directory: %w", err)
	}

	file := filepath.Join(dir, s.platformUtils.SanitizeFilename(messageID)+".eml")
	if err := writeFileAtomic(file, data); err != nil {
		return "", fmt.Errorf("failed to write message: %w", err)
	}

	return s.relative(file), nil
}

// WriteAttachment 保存附件到附件目录
func (s *Store) WriteAttachment(filename string, data []byte) (string, error) {
	file := filepath.Join(s.attachmentsPath, s.platformUtils.SanitizeFilename(filename))
	if err := writeFileAtomic(file, data); err != nil {
		return "", fmt.Errorf("failed to write attachment: %w", err)
	}
	return s.relative(file), nil
}

// Stats 导出目录统计
type Stats struct {
	Messages    int
	Attachments int
	TotalBytes  int64
}

// Stats 遍历导出目录，统计邮件与附件文件
func (s *Store) Stats() (Stats, error) {
	var stats Stats

	err := filepath.WalkDir(s.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // 跳过错误，继续遍历
		}
		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		stats.TotalBytes += info.Size()

		switch {
		case filepath.Dir(path) == s.attachmentsPath:
			stats.Attachments++
		case filepath.Ext(path) == ".eml":
			stats.Messages++
		}
		return nil
	})
	if err != nil {
		return Stats{}, err
	}

	return stats, nil
}

func (s *Store) relative(file string) string {
	rel, err := filepath.Rel(s.basePath, file)
	if err != nil {
		return file
	}
	return rel
}

// writeFileAtomic 先写临时文件再重命名，失败时不留下残缺文件
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
