package attachment

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"mailvault/exporter/internal/domain"
)

var (
	// ErrEmptyBody 附件内容为空，跳过
	ErrEmptyBody = errors.New("attachment body is empty")
	// ErrDecodeFailed 传输编码解码失败，跳过该附件
	ErrDecodeFailed = errors.New("attachment decode failed")
)

// WarningKind 非致命告警类型
type WarningKind string

const (
	WarnHexFallback     WarningKind = "hex_fallback"
	WarnUnknownEncoding WarningKind = "unknown_encoding"
	WarnSizeMismatch    WarningKind = "size_mismatch"
)

// Warning 解码过程中的非致命告警
type Warning struct {
	Kind   WarningKind
	Detail string
}

// Result 两阶段解码的结果
type Result struct {
	Wire        []byte // 去除十六进制包装后的字节
	Content     []byte // 最终内容
	HexFallback bool   // 存储内容不是合法十六进制，直接使用原始字节
}

// Unwrap 执行两阶段解码，是 (raw, enc) 的纯函数。
//
// 第一阶段去除空白后按十六进制解码，不合法时回退为原始字符串字节；
// 第二阶段按传输编码处理。quoted-printable 不解释 =XX 转义序列。
func Unwrap(raw string, enc TransferEncoding) (Result, error) {
	var res Result

	stripped := stripSpace(raw)
	if wire, ok := decodeHex(stripped); ok {
		res.Wire = wire
	} else {
		res.Wire = []byte(raw)
		res.HexFallback = true
	}

	switch enc.Kind {
	case Base64:
		text := stripSpace(string(res.Wire))
		content, err := base64.StdEncoding.DecodeString(text)
		if err != nil {
			return res, fmt.Errorf("%w: base64: %v", ErrDecodeFailed, err)
		}
		res.Content = content
	case SevenBit, EightBit, Binary:
		res.Content = res.Wire
	case QuotedPrintable:
		// 已知差异：保留 UTF-8 文本原样，不做 quoted-printable 解码
		res.Content = []byte(strings.ToValidUTF8(string(res.Wire), "\uFFFD"))
	default:
		res.Content = res.Wire
	}

	return res, nil
}

// Outcome 单个附件的解码结果
type Outcome struct {
	Attachment *domain.DecodedAttachment
	Warnings   []Warning
}

// Decoder 附件解码器
type Decoder struct {
	logger *zap.Logger
	sink   Sink
}

// NewDecoder 创建解码器；sink 为 nil 时不输出诊断文件
func NewDecoder(logger *zap.Logger, sink Sink) *Decoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sink == nil {
		sink = NopSink{}
	}
	return &Decoder{logger: logger, sink: sink}
}

// Decode 解码一条附件记录。
//
// 空内容返回 ErrEmptyBody，base64 失败返回 ErrDecodeFailed，两者均只跳过该附件。
// 十六进制回退、未知编码和大小不一致只记录告警。
func (d *Decoder) Decode(rec domain.AttachmentRecord) (*Outcome, error) {
	log := d.logger.With(zap.String("attachment_id", rec.AttachmentID), zap.String("record_id", rec.ID))

	if strings.TrimSpace(rec.Body) == "" {
		log.Warn("attachment body is empty, skipping")
		return nil, ErrEmptyBody
	}

	enc := ParseTransferEncoding(rec.TransferEncoding)
	d.trace(rec.AttachmentID, StageOriginal, []byte(rec.Body))

	res, err := Unwrap(rec.Body, enc)
	if !res.HexFallback {
		d.trace(rec.AttachmentID, StageHexDecoded, res.Wire)
	}
	if err != nil {
		log.Warn("failed to decode attachment", zap.String("encoding", enc.String()), zap.Error(err))
		return nil, err
	}

	outcome := &Outcome{}
	if res.HexFallback {
		outcome.Warnings = append(outcome.Warnings, Warning{Kind: WarnHexFallback, Detail: "body is not hex encoded, using raw bytes"})
		log.Warn("attachment body is not valid hex, using raw bytes")
	}
	if enc.Kind == Unknown {
		outcome.Warnings = append(outcome.Warnings, Warning{Kind: WarnUnknownEncoding, Detail: enc.Raw})
		log.Warn("unrecognized transfer encoding, using raw bytes", zap.String("encoding", enc.Raw))
	}

	d.trace(rec.AttachmentID, StageDecodedHex, []byte(hex.EncodeToString(res.Content)))
	d.trace(rec.AttachmentID, StageDecodedB64, []byte(base64.StdEncoding.EncodeToString(res.Content)))

	size := int64(len(res.Content))
	if rec.Size != nil && *rec.Size != size {
		outcome.Warnings = append(outcome.Warnings, Warning{
			Kind:   WarnSizeMismatch,
			Detail: fmt.Sprintf("declared %d, decoded %d", *rec.Size, size),
		})
		log.Warn("attachment size mismatch", zap.Int64("declared", *rec.Size), zap.Int64("decoded", size))
	}

	contentType := strings.TrimSpace(rec.ContentType)
	if contentType == "" {
		contentType = domain.DefaultContentType
	}

	outcome.Attachment = &domain.DecodedAttachment{
		AttachmentID: rec.AttachmentID,
		ContentType:  contentType,
		Filename:     Filename(rec, contentType, res.Content),
		Content:      res.Content,
		Size:         size,
	}
	return outcome, nil
}

func (d *Decoder) trace(attachmentID string, stage Stage, data []byte) {
	if err := d.sink.Trace(attachmentID, stage, data); err != nil {
		d.logger.Debug("failed to write attachment trace",
			zap.String("attachment_id", attachmentID),
			zap.String("stage", string(stage)),
			zap.Error(err),
		)
	}
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// decodeHex 非空且仅含十六进制字符时解码
func decodeHex(s string) ([]byte, bool) {
	if s == "" {
		return nil, false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F') {
			return nil, false
		}
	}
	out, err := hex.DecodeString(s)
	if err != nil {
		return nil, false
	}
	return out, true
}
