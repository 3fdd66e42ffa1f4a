package filesystem

import (
	"fmt"
	"os"
	"path/filepath"

	"mailvault/exporter/internal/attachment"
)

var _ attachment.Sink = (*TraceSink)(nil)

// TraceSink 把附件解码各阶段的中间产物写入 <dir>/<attachmentID>/<stage>
type TraceSink struct {
	dir           string
	platformUtils *PlatformUtils
}

// NewTraceSink 创建诊断输出目录
func NewTraceSink(dir string) (*TraceSink, error) {
	platformUtils := NewPlatformUtils()
	if err := platformUtils.ValidatePath(dir); err != nil {
		return nil, fmt.Errorf("invalid debug dir: %w", err)
	}

	dir = platformUtils.NormalizePath(dir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create debug dir: %w", err)
	}

	return &TraceSink{dir: dir, platformUtils: platformUtils}, nil
}

// Trace 实现 attachment.Sink
func (t *TraceSink) Trace(attachmentID string, stage attachment.Stage, data []byte) error {
	dir := filepath.Join(t.dir, t.platformUtils.SanitizeFilename(attachmentID))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, string(stage)), data, 0644)
}
