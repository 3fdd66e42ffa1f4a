package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"mailvault/exporter/internal/attachment"
	"mailvault/exporter/internal/domain"
	"mailvault/exporter/internal/eml"
	"mailvault/exporter/internal/monitoring"
	"mailvault/exporter/internal/pool"
	"mailvault/exporter/internal/storage"
	"mailvault/exporter/internal/storage/filesystem"
)

// Summary 一次导出的统计结果
type Summary struct {
	Messages          int // 遍历的邮件数
	Exported          int // 写出的 .eml 文件数
	Empty             int // 序列化结果为空而跳过的邮件数
	Errors            int // 解析、序列化或写入失败的邮件数
	Attachments       int // 解码成功的附件数
	AttachmentErrors  int // 解码失败的附件数
	AttachmentSkipped int // 内容为空而跳过的附件数
	SizeMismatches    int // 解码大小与声明大小不一致的附件数
	WriteErrors       int // 写入输出失败的次数（邮件与附件）
	Duration          time.Duration
}

// Options 导出服务可选项
type Options struct {
	Workers     int               // 附件解码并发数，<= 0 时使用默认值
	Sink        attachment.Sink   // 附件诊断输出，可选
	Metrics     *monitoring.Metrics
	Logger      *zap.Logger
	MailboxPath func(path string) string // 邮箱路径转换，默认 IMAP modified UTF-7
}

// ExportService 把归档中的邮件导出为 .eml 文件。
type ExportService struct {
	archive     storage.Archive
	output      storage.Output
	decoder     *attachment.Decoder
	workers     int
	metrics     *monitoring.Metrics
	logger      *zap.Logger
	mailboxPath func(path string) string
}

// NewExportService 创建导出服务。
func NewExportService(archive storage.Archive, output storage.Output, opts Options) *ExportService {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	mailboxPath := opts.MailboxPath
	if mailboxPath == nil {
		mailboxPath = filesystem.NewPlatformUtils().SafeMailboxPath
	}

	return &ExportService{
		archive:     archive,
		output:      output,
		decoder:     attachment.NewDecoder(log.Named("attachment"), opts.Sink),
		workers:     opts.Workers,
		metrics:     opts.Metrics,
		logger:      log,
		mailboxPath: mailboxPath,
	}
}

// Run 执行一次完整导出。
//
// 只有归档访问失败和 ctx 取消会返回错误；单封邮件或单个附件的失败只计入统计。
func (s *ExportService) Run(ctx context.Context) (sum Summary, err error) {
	start := time.Now()

	defer func() {
		sum.Duration = time.Since(start)
		s.metrics.RecordRun(sum.Duration, time.Now())
	}()

	table, err := s.decodeAttachments(ctx, &sum)
	if err != nil {
		return sum, err
	}

	paths, err := s.mailboxPaths(ctx)
	if err != nil {
		return sum, err
	}

	serializer := eml.NewSerializer(table)
	err = s.archive.EachMessage(ctx, func(msg domain.Message) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.exportMessage(serializer, msg, paths, &sum)
		return nil
	})
	if err != nil {
		return sum, fmt.Errorf("failed to iterate messages: %w", err)
	}

	s.logger.Info("export finished",
		zap.Int("messages", sum.Messages),
		zap.Int("exported", sum.Exported),
		zap.Int("empty", sum.Empty),
		zap.Int("errors", sum.Errors),
		zap.Int("attachments", sum.Attachments),
		zap.Int("attachment_errors", sum.AttachmentErrors),
		zap.Int("attachment_skipped", sum.AttachmentSkipped),
		zap.Int("size_mismatches", sum.SizeMismatches),
		zap.Int("write_errors", sum.WriteErrors),
		zap.Duration("duration", time.Since(start)),
	)
	return sum, nil
}

// decodeResult 单条附件记录的解码结果，每个任务只写自己的槽位
type decodeResult struct {
	outcome *attachment.Outcome
	err     error
	done    bool
}

// decodeAttachments 并行解码所有附件，按记录顺序构建只读查找表并写出附件文件
func (s *ExportService) decodeAttachments(ctx context.Context, sum *Summary) (domain.AttachmentTable, error) {
	records, err := s.archive.ListAttachments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}

	results := make([]decodeResult, len(records))
	workers := pool.NewWorkerPool(s.workers, len(records),
		pool.WithLogger(s.logger),
		pool.WithPanicHandler(func(any) { s.metrics.RecordPanic() }),
	)
	workers.Start(ctx)

	for i := range records {
		err := workers.Submit(ctx, func() {
			outcome, err := s.decoder.Decode(records[i])
			results[i] = decodeResult{outcome: outcome, err: err, done: true}
		})
		if err != nil {
			workers.Stop()
			return nil, err
		}
	}
	workers.Stop()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	table := make(domain.AttachmentTable, len(records))
	for i, res := range results {
		rec := records[i]
		log := s.logger.With(zap.String("attachment_id", rec.AttachmentID))

		switch {
		case !res.done:
			sum.AttachmentErrors++
			s.metrics.RecordAttachment(monitoring.ResultError, 0)
			continue
		case errors.Is(res.err, attachment.ErrEmptyBody):
			sum.AttachmentSkipped++
			s.metrics.RecordAttachment(monitoring.ResultSkipped, 0)
			continue
		case res.err != nil:
			sum.AttachmentErrors++
			s.metrics.RecordAttachment(monitoring.ResultError, 0)
			continue
		}

		for _, w := range res.outcome.Warnings {
			s.metrics.RecordAttachmentWarning(string(w.Kind))
			if w.Kind == attachment.WarnSizeMismatch {
				sum.SizeMismatches++
			}
		}

		att := res.outcome.Attachment
		if _, exists := table[att.AttachmentID]; exists {
			log.Warn("duplicate attachment id, keeping first record", zap.String("record_id", rec.ID))
			continue
		}
		table[att.AttachmentID] = att
		sum.Attachments++
		s.metrics.RecordAttachment(monitoring.ResultDecoded, att.Size)

		if _, err := s.output.WriteAttachment(att.Filename, att.Content); err != nil {
			sum.WriteErrors++
			log.Error("failed to write attachment", zap.String("filename", att.Filename), zap.Error(err))
		}
	}

	s.logger.Info("attachments decoded",
		zap.Int("records", len(records)),
		zap.Int("decoded", sum.Attachments),
		zap.Int("errors", sum.AttachmentErrors),
		zap.Int("skipped", sum.AttachmentSkipped),
	)
	return table, nil
}

// mailboxPaths 构建邮箱 ID 到安全路径的映射
func (s *ExportService) mailboxPaths(ctx context.Context) (map[string]string, error) {
	mailboxes, err := s.archive.ListMailboxes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list mailboxes: %w", err)
	}

	paths := make(map[string]string, len(mailboxes))
	for i := range mailboxes {
		mb := &mailboxes[i]
		mb.SafePath = s.mailboxPath(mb.Path)
		paths[mb.ID] = mb.SafePath
		s.logger.Debug("mailbox path", zap.String("mailbox_id", mb.ID), zap.String("path", mb.Path), zap.String("safe_path", mb.SafePath))
	}
	return paths, nil
}

// exportMessage 处理单封邮件，任何失败都只影响这一封
func (s *ExportService) exportMessage(serializer *eml.Serializer, msg domain.Message, paths map[string]string, sum *Summary) {
	sum.Messages++
	log := s.logger.With(zap.String("message_id", msg.ID), zap.String("mailbox_id", msg.MailboxID))

	root, err := msg.ParseTree()
	if errors.Is(err, domain.ErrEmptyTree) {
		sum.Empty++
		s.metrics.RecordMessage(monitoring.ResultEmpty, 0, 0)
		log.Debug("message tree is empty, skipping")
		return
	}
	if err != nil {
		sum.Errors++
		s.metrics.RecordMessage(monitoring.ResultError, 0, 0)
		log.Warn("failed to parse message tree", zap.Error(err))
		return
	}

	start := time.Now()
	data, err := s.serialize(serializer, msg, root)
	elapsed := time.Since(start)
	if err != nil {
		sum.Errors++
		s.metrics.RecordPanic()
		s.metrics.RecordMessage(monitoring.ResultError, 0, 0)
		log.Error("failed to serialize message", zap.Error(err))
		return
	}

	if len(bytes.TrimSpace(data)) == 0 {
		sum.Empty++
		s.metrics.RecordMessage(monitoring.ResultEmpty, 0, 0)
		log.Debug("serialized message is empty, skipping")
		return
	}

	dir, ok := paths[msg.MailboxID]
	if !ok {
		dir = filesystem.UnknownMailboxDir
		log.Warn("message references unknown mailbox")
	}

	if _, err := s.output.WriteMessage(dir, msg.ID, data); err != nil {
		sum.Errors++
		sum.WriteErrors++
		s.metrics.RecordMessage(monitoring.ResultError, 0, 0)
		log.Error("failed to write message", zap.Error(err))
		return
	}

	sum.Exported++
	s.metrics.RecordMessage(monitoring.ResultExported, len(data), elapsed)
}

// serialize 调用序列化器并把 panic 转换为错误
func (s *ExportService) serialize(serializer *eml.Serializer, msg domain.Message, root *domain.MimeNode) (data []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("serializer panic: %v", r)
		}
	}()
	return serializer.SerializeMessage(msg, root), nil
}
