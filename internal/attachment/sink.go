package attachment

// Stage 诊断输出的解码阶段
type Stage string

const (
	StageOriginal   Stage = "original"
	StageHexDecoded Stage = "hex-decoded"
	StageDecodedHex Stage = "decoded.hex"
	StageDecodedB64 Stage = "decoded.b64"
)

// Sink 可选的诊断输出能力，解码器在各阶段写入中间产物。
//
// 实现失败不影响解码结果。
type Sink interface {
	Trace(attachmentID string, stage Stage, data []byte) error
}

// NopSink 丢弃所有诊断输出
type NopSink struct{}

// Trace 实现 Sink
func (NopSink) Trace(string, Stage, []byte) error { return nil }
