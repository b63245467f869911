package encoding

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const sniffSize = 4096

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// Charset names reported by Detect.
const (
	UTF8        = "UTF-8"
	UTF16LE     = "UTF-16LE"
	UTF16BE     = "UTF-16BE"
	Windows1252 = "windows-1252"
	ISO88599    = "ISO-8859-9"
)

// Decoded is a UTF-8 view over an uploaded file together with the charset it came in.
type Decoded struct {
	io.Reader
	Charset string
}

// Detect sniffs the start of r and returns a reader that yields UTF-8.
//
// Spreadsheet exports arrive in whatever encoding the user's office suite
// picked, so detection goes BOM first, then UTF-8 validity, then chardet,
// and finally assumes Windows-1252.
func Detect(r io.Reader) (*Decoded, error) {
	br := bufio.NewReaderSize(r, sniffSize)

	buf, err := br.Peek(sniffSize)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, fmt.Errorf("peek: %w", err)
	}

	switch {
	case bytes.HasPrefix(buf, bomUTF8):
		_, _ = br.Discard(len(bomUTF8))
		return &Decoded{Reader: br, Charset: UTF8}, nil
	case bytes.HasPrefix(buf, bomUTF16LE):
		return decode(br, unicode.UTF16(unicode.LittleEndian, unicode.UseBOM), UTF16LE), nil
	case bytes.HasPrefix(buf, bomUTF16BE):
		return decode(br, unicode.UTF16(unicode.BigEndian, unicode.UseBOM), UTF16BE), nil
	case utf8.Valid(trimPartialRune(buf)):
		return &Decoded{Reader: br, Charset: UTF8}, nil
	}

	if result, err := chardet.NewTextDetector().DetectBest(buf); err == nil {
		switch result.Charset {
		case "UTF-8":
			return &Decoded{Reader: br, Charset: UTF8}, nil
		case "ISO-8859-1", "windows-1252":
			return decode(br, charmap.Windows1252, Windows1252), nil
		case "ISO-8859-9":
			return decode(br, charmap.ISO8859_9, ISO88599), nil
		}
	}

	return decode(br, charmap.Windows1252, Windows1252), nil
}

// trimPartialRune drops a multi-byte sequence cut off by the sniff window.
func trimPartialRune(buf []byte) []byte {
	for i := 1; i < utf8.UTFMax && i <= len(buf); i++ {
		if utf8.RuneStart(buf[len(buf)-i]) {
			if !utf8.FullRune(buf[len(buf)-i:]) {
				return buf[:len(buf)-i]
			}

			break
		}
	}

	return buf
}

func decode(r io.Reader, enc encoding.Encoding, charset string) *Decoded {
	return &Decoded{
		Reader:  transform.NewReader(r, enc.NewDecoder()),
		Charset: charset,
	}
}
