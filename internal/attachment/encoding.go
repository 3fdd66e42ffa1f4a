package attachment

import "strings"

// EncodingKind 传输编码的封闭枚举
type EncodingKind int

const (
	Base64 EncodingKind = iota
	SevenBit
	EightBit
	Binary
	QuotedPrintable
	Unknown
)

// TransferEncoding 附件声明的传输编码
type TransferEncoding struct {
	Kind EncodingKind
	Raw  string // 原始声明值，Unknown 时用于告警
}

// ParseTransferEncoding 解析传输编码（大小写不敏感）
func ParseTransferEncoding(value string) TransferEncoding {
	raw := strings.TrimSpace(value)
	switch strings.ToLower(raw) {
	case "base64":
		return TransferEncoding{Kind: Base64, Raw: raw}
	case "7bit":
		return TransferEncoding{Kind: SevenBit, Raw: raw}
	case "8bit":
		return TransferEncoding{Kind: EightBit, Raw: raw}
	case "binary":
		return TransferEncoding{Kind: Binary, Raw: raw}
	case "quoted-printable":
		return TransferEncoding{Kind: QuotedPrintable, Raw: raw}
	default:
		return TransferEncoding{Kind: Unknown, Raw: raw}
	}
}

// String 返回规范名称
func (e TransferEncoding) String() string {
	switch e.Kind {
	case Base64:
		return "base64"
	case SevenBit:
		return "7bit"
	case EightBit:
		return "8bit"
	case Binary:
		return "binary"
	case QuotedPrintable:
		return "quoted-printable"
	default:
		return e.Raw
	}
}
