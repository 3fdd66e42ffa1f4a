package attachment

import (
	"crypto/rand"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailvault/exporter/internal/domain"
)

// recordingSink 记录诊断输出
type recordingSink struct {
	stages map[Stage][]byte
}

func (r *recordingSink) Trace(_ string, stage Stage, data []byte) error {
	if r.stages == nil {
		r.stages = make(map[Stage][]byte)
	}
	r.stages[stage] = data
	return nil
}

func int64Ptr(v int64) *int64 { return &v }

func TestParseTransferEncoding(t *testing.T) {
	tests := []struct {
		in   string
		want EncodingKind
	}{
		{"base64", Base64},
		{" BASE64 ", Base64},
		{"7bit", SevenBit},
		{"8BIT", EightBit},
		{"binary", Binary},
		{"Quoted-Printable", QuotedPrintable},
		{"x-uuencode", Unknown},
		{"", Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseTransferEncoding(tt.in).Kind)
		})
	}
	assert.Equal(t, "x-uuencode", ParseTransferEncoding("x-uuencode").String())
}

func TestUnwrap_HexThenBase64(t *testing.T) {
	raw := hex.EncodeToString([]byte("SGVsbG8="))

	res, err := Unwrap(raw, ParseTransferEncoding("base64"))
	require.NoError(t, err)
	assert.Equal(t, []byte("Hello"), res.Content)
	assert.False(t, res.HexFallback)
}

func TestUnwrap_HexWithEmbeddedWhitespace(t *testing.T) {
	res, err := Unwrap("5347567362\r\n  47383d\n", ParseTransferEncoding("base64"))
	require.NoError(t, err)
	assert.Equal(t, []byte("Hello"), res.Content)
}

func TestUnwrap_HexRoundTrip(t *testing.T) {
	for i := 0; i < 20; i++ {
		buf := make([]byte, 1+i*7)
		_, err := rand.Read(buf)
		require.NoError(t, err)
		h := hex.EncodeToString(buf)

		res, err := Unwrap(h, ParseTransferEncoding("binary"))
		require.NoError(t, err)
		assert.Equal(t, h, hex.EncodeToString(res.Wire))
		assert.Equal(t, buf, res.Content)
	}
}

func TestUnwrap_Deterministic(t *testing.T) {
	raw := hex.EncodeToString([]byte("aGVsbG8gd29ybGQ="))
	enc := ParseTransferEncoding("base64")

	first, err := Unwrap(raw, enc)
	require.NoError(t, err)
	second, err := Unwrap(raw, enc)
	require.NoError(t, err)
	assert.Equal(t, first.Content, second.Content)
}

func TestUnwrap_NonHexFallsBackToRawBytes(t *testing.T) {
	res, err := Unwrap("SGVs\nbG8=", ParseTransferEncoding("base64"))
	require.NoError(t, err)
	assert.True(t, res.HexFallback)
	assert.Equal(t, []byte("SGVs\nbG8="), res.Wire)
	assert.Equal(t, []byte("Hello"), res.Content)
}

func TestUnwrap_OddLengthHexFallsBack(t *testing.T) {
	res, err := Unwrap("abc", ParseTransferEncoding("7bit"))
	require.NoError(t, err)
	assert.True(t, res.HexFallback)
	assert.Equal(t, []byte("abc"), res.Content)
}

func TestUnwrap_PassThroughEncodings(t *testing.T) {
	raw := hex.EncodeToString([]byte("plain bytes"))
	for _, enc := range []string{"7bit", "8bit", "binary"} {
		t.Run(enc, func(t *testing.T) {
			res, err := Unwrap(raw, ParseTransferEncoding(enc))
			require.NoError(t, err)
			assert.Equal(t, []byte("plain bytes"), res.Content)
		})
	}
}

// quoted-printable 附件保持原文，不解释 =XX 序列（已知差异，按现状保留）
func TestUnwrap_QuotedPrintableNotInterpreted(t *testing.T) {
	raw := hex.EncodeToString([]byte("caf=C3=A9 =\r\nsoft"))

	res, err := Unwrap(raw, ParseTransferEncoding("quoted-printable"))
	require.NoError(t, err)
	assert.Equal(t, []byte("caf=C3=A9 =\r\nsoft"), res.Content)
}

func TestUnwrap_UnknownEncodingUsesWireBytes(t *testing.T) {
	raw := hex.EncodeToString([]byte{0x00, 0x01, 0xFF})

	res, err := Unwrap(raw, ParseTransferEncoding("x-custom"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x01, 0xFF}, res.Content)
}

func TestUnwrap_InvalidBase64(t *testing.T) {
	raw := hex.EncodeToString([]byte("!!!not base64"))

	_, err := Unwrap(raw, ParseTransferEncoding("base64"))
	assert.ErrorIs(t, err, ErrDecodeFailed)
}

func TestDecoder_Decode(t *testing.T) {
	t.Run("success with traces", func(t *testing.T) {
		sink := &recordingSink{}
		d := NewDecoder(nil, sink)

		outcome, err := d.Decode(domain.AttachmentRecord{
			ID:               "row-1",
			AttachmentID:     "att-1",
			ContentType:      "text/plain",
			TransferEncoding: "base64",
			Hash:             "abc123",
			Size:             int64Ptr(5),
			Body:             hex.EncodeToString([]byte("SGVsbG8=")),
		})
		require.NoError(t, err)
		assert.Empty(t, outcome.Warnings)

		att := outcome.Attachment
		assert.Equal(t, "att-1", att.AttachmentID)
		assert.Equal(t, "text/plain", att.ContentType)
		assert.Equal(t, "abc123_att-1.txt", att.Filename)
		assert.Equal(t, []byte("Hello"), att.Content)
		assert.Equal(t, int64(5), att.Size)

		assert.Equal(t, []byte("SGVsbG8="), sink.stages[StageHexDecoded])
		assert.Equal(t, []byte(hex.EncodeToString([]byte("Hello"))), sink.stages[StageDecodedHex])
		assert.Equal(t, []byte("SGVsbG8="), sink.stages[StageDecodedB64])
		assert.Contains(t, sink.stages, StageOriginal)
	})

	t.Run("empty body skipped", func(t *testing.T) {
		d := NewDecoder(nil, nil)
		outcome, err := d.Decode(domain.AttachmentRecord{AttachmentID: "att-2", Body: " \n "})
		assert.Nil(t, outcome)
		assert.ErrorIs(t, err, ErrEmptyBody)
	})

	t.Run("base64 failure skipped", func(t *testing.T) {
		d := NewDecoder(nil, nil)
		_, err := d.Decode(domain.AttachmentRecord{
			AttachmentID:     "att-3",
			TransferEncoding: "base64",
			Body:             hex.EncodeToString([]byte("***")),
		})
		assert.ErrorIs(t, err, ErrDecodeFailed)
	})

	t.Run("warnings are non fatal", func(t *testing.T) {
		d := NewDecoder(nil, nil)
		outcome, err := d.Decode(domain.AttachmentRecord{
			ID:               "row-4",
			AttachmentID:     "att-4",
			TransferEncoding: "x-weird",
			Size:             int64Ptr(99),
			Body:             "not hex at all",
		})
		require.NoError(t, err)

		kinds := make([]WarningKind, 0, len(outcome.Warnings))
		for _, w := range outcome.Warnings {
			kinds = append(kinds, w.Kind)
		}
		assert.ElementsMatch(t, []WarningKind{WarnHexFallback, WarnUnknownEncoding, WarnSizeMismatch}, kinds)
		assert.Equal(t, []byte("not hex at all"), outcome.Attachment.Content)
		assert.Equal(t, domain.DefaultContentType, outcome.Attachment.ContentType)
		assert.Equal(t, "row-4_att-4.txt", outcome.Attachment.Filename)
	})
}

func TestExtension(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		content     []byte
		want        string
	}{
		{"preferred table", "image/jpeg", nil, ".jpg"},
		{"parameters ignored", "text/plain; charset=utf-8", nil, ".txt"},
		{"mimetype lookup", "application/json", nil, ".json"},
		{"sniffed from content", "", []byte("%PDF-1.7\n%binary"), ".pdf"},
		{"generic type sniffed", "application/octet-stream", []byte("%PDF-1.7\n"), ".pdf"},
		{"fallback", "application/x-made-up", nil, ".bin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Extension(tt.contentType, tt.content))
		})
	}
}
