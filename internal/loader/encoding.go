package loader

// encoding.go turns raw delimited-text payloads into UTF-8 readers.
//
// Detection samples the head of the payload with a statistical detector.
// Decoding is streamed: the CSV reader pulls from a chain of
//
//	bytes -> decoder (x/text or strict validator) -> BOM skipper
//
// so a 100MB upload is never copied into a second decoded buffer.

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// DetectSampleSize is how many leading bytes are fed to the detector.
const DetectSampleSize = 200_000

// minConfidence is the detector score below which the guess is ignored.
const minConfidence = 30

const (
	encUTF8   = "utf-8"
	encASCII  = "ascii"
	encLatin1 = "latin-1"
)

// errDecode marks failures caused by bytes that are invalid in the
// encoding being tried, as opposed to structural parse errors.
var errDecode = errors.New("invalid byte sequence")

// detectEncoding guesses the encoding of the payload head. It returns
// "utf-8" when the detector has no confident answer.
func detectEncoding(data []byte) string {
	sample := data
	if len(sample) > DetectSampleSize {
		sample = sample[:DetectSampleSize]
	}
	if len(sample) == 0 {
		return encUTF8
	}
	if isAllASCII(sample) {
		return encASCII
	}
	// Valid UTF-8 with multi-byte sequences is almost never another charset.
	if utf8.Valid(sample[:len(sample)-incompleteTrailingBytes(sample)]) {
		return encUTF8
	}
	res, err := chardet.NewTextDetector().DetectBest(sample)
	if err != nil || res == nil || res.Charset == "" || res.Confidence < minConfidence {
		return encUTF8
	}
	return strings.ToLower(res.Charset)
}

// candidateEncodings is the fallback chain: detected, then utf-8, then
// latin-1, without repeats.
func candidateEncodings(detected string) []string {
	chain := []string{detected, encUTF8, encLatin1}
	out := make([]string, 0, len(chain))
	seen := make(map[string]bool, len(chain))
	for _, enc := range chain {
		key := canonicalEncoding(enc)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, enc)
	}
	return out
}

func canonicalEncoding(name string) string {
	switch strings.ToLower(strings.ReplaceAll(name, "_", "-")) {
	case "utf-8", "utf8":
		return encUTF8
	case "ascii", "us-ascii":
		return encASCII
	case "latin-1", "latin1", "iso-8859-1", "l1":
		return encLatin1
	default:
		return strings.ToLower(name)
	}
}

// textReader returns a UTF-8 reader over data interpreted as enc.
func textReader(data []byte, enc string) (io.Reader, error) {
	src := bytes.NewReader(data)
	var decoded io.Reader
	switch canonicalEncoding(enc) {
	case encUTF8:
		decoded = newValidatingReader(src, false)
	case encASCII:
		decoded = newValidatingReader(src, true)
	case encLatin1:
		decoded = transform.NewReader(src, charmap.ISO8859_1.NewDecoder())
	default:
		e, err := htmlindex.Get(enc)
		if err != nil {
			return nil, fmt.Errorf("%w: unknown encoding %q", errDecode, enc)
		}
		decoded = transform.NewReader(src, e.NewDecoder())
	}
	return newBOMSkippingReader(decoded), nil
}

// validatingReader passes UTF-8 (or ASCII) through unchanged and fails on
// the first invalid sequence. Multi-byte sequences split across reads are
// carried over to the next call.
type validatingReader struct {
	r         io.Reader
	asciiOnly bool
	pending   []byte
	offset    int64
}

func newValidatingReader(r io.Reader, asciiOnly bool) *validatingReader {
	return &validatingReader{
		r:         r,
		asciiOnly: asciiOnly,
		pending:   make([]byte, 0, utf8.UTFMax),
	}
}

func (v *validatingReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	n := copy(p, v.pending)
	v.pending = v.pending[:0]

	m, err := v.r.Read(p[n:])
	n += m

	keep := n
	if err == nil {
		keep -= incompleteTrailingBytes(p[:n])
	}

	chunk := p[:keep]
	if v.asciiOnly {
		if i := firstNonASCII(chunk); i >= 0 {
			return 0, fmt.Errorf("%w: non-ascii byte at offset %d", errDecode, v.offset+int64(i))
		}
	} else if !isAllASCII(chunk) && !utf8.Valid(chunk) {
		return 0, fmt.Errorf("%w: invalid utf-8 near offset %d", errDecode, v.offset+int64(firstInvalidUTF8(chunk)))
	}

	v.pending = append(v.pending, p[keep:n]...)
	v.offset += int64(keep)
	return keep, err
}

// isAllASCII returns true if all bytes are ASCII (< 128).
func isAllASCII(data []byte) bool {
	return firstNonASCII(data) < 0
}

func firstNonASCII(data []byte) int {
	for i, b := range data {
		if b >= 0x80 {
			return i
		}
	}
	return -1
}

func firstInvalidUTF8(data []byte) int {
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size <= 1 {
			return i
		}
		i += size
	}
	return len(data)
}

// incompleteTrailingBytes returns the number of bytes at the end of data
// that could start a multi-byte sequence finished by the next read.
func incompleteTrailingBytes(data []byte) int {
	for i := 1; i <= 3 && i <= len(data); i++ {
		b := data[len(data)-i]
		if b >= 0xC0 {
			if i < runeLen(b) {
				return i
			}
			return 0
		}
		// Anything but a continuation byte ends the scan.
		if b&0xC0 != 0x80 {
			return 0
		}
	}
	return 0
}

// runeLen returns the expected length of a UTF-8 sequence starting with b.
func runeLen(b byte) int {
	switch {
	case b < 0x80:
		return 1
	case b < 0xC0:
		return 0
	case b < 0xE0:
		return 2
	case b < 0xF0:
		return 3
	default:
		return 4
	}
}

// bomSkippingReader drops a leading UTF-8 byte order mark, which Windows
// tools prepend and which would otherwise end up in the first header name.
type bomSkippingReader struct {
	r       io.Reader
	checked bool
	head    []byte
}

func newBOMSkippingReader(r io.Reader) *bomSkippingReader {
	return &bomSkippingReader{r: r}
}

func (b *bomSkippingReader) Read(p []byte) (int, error) {
	if !b.checked {
		b.checked = true
		var buf [3]byte
		n, err := io.ReadFull(b.r, buf[:])
		if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			return 0, err
		}
		if !(n == 3 && buf[0] == 0xEF && buf[1] == 0xBB && buf[2] == 0xBF) {
			b.head = append(b.head, buf[:n]...)
		}
	}

	if len(b.head) > 0 {
		copied := copy(p, b.head)
		b.head = b.head[copied:]
		return copied, nil
	}
	return b.r.Read(p)
}
