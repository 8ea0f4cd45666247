// Package pngmeta stores image descriptions and tags in PNG tEXt chunks, mirrored in a JSON index.
package pngmeta

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"

	"golang.org/x/text/encoding/charmap"
)

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

var (
	// ErrNotPNG is returned for data that does not start with the PNG signature.
	ErrNotPNG = errors.New("only PNG files are supported")

	// ErrInvalidKeyword is returned for keywords PNG does not allow.
	ErrInvalidKeyword = errors.New("invalid tEXt keyword")
)

type chunk struct {
	typ  string
	data []byte
	raw  []byte // length, type, data and CRC as found in the file
}

// chunks splits the stream after the signature up to and including IEND.
// A truncated trailing chunk ends the scan.
func chunks(data []byte) []chunk {
	var out []chunk
	pos := len(pngSignature)
	for pos+8 <= len(data) {
		length := int(binary.BigEndian.Uint32(data[pos : pos+4]))
		end := pos + 12 + length
		if length < 0 || end > len(data) {
			break
		}
		c := chunk{
			typ:  string(data[pos+4 : pos+8]),
			data: data[pos+8 : pos+8+length],
			raw:  data[pos:end],
		}
		out = append(out, c)
		pos = end
		if c.typ == "IEND" {
			break
		}
	}
	return out
}

func textKeyword(c chunk) (string, []byte, bool) {
	if c.typ != "tEXt" {
		return "", nil, false
	}
	key, value, ok := bytes.Cut(c.data, []byte{0})
	if !ok {
		return "", nil, false
	}
	return string(key), value, true
}

// ReadText returns the text of the first tEXt chunk with keyword, decoded from Latin-1.
func ReadText(data []byte, keyword string) (string, bool, error) {
	if !bytes.HasPrefix(data, pngSignature) {
		return "", false, ErrNotPNG
	}
	for _, c := range chunks(data) {
		key, value, ok := textKeyword(c)
		if !ok || key != keyword {
			continue
		}
		text, err := charmap.ISO8859_1.NewDecoder().Bytes(value)
		if err != nil {
			return "", false, fmt.Errorf("decode tEXt value: %w", err)
		}
		return string(text), true, nil
	}
	return "", false, nil
}

// WriteText returns a copy of data whose tEXt chunk for keyword holds text. Existing chunks
// with the keyword are dropped and the new one is placed directly before IEND.
func WriteText(data []byte, keyword, text string) ([]byte, error) {
	if !bytes.HasPrefix(data, pngSignature) {
		return nil, ErrNotPNG
	}
	if len(keyword) == 0 || len(keyword) > 79 || bytes.IndexByte([]byte(keyword), 0) >= 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKeyword, keyword)
	}

	enc := charmap.ISO8859_1.NewEncoder()
	key, err := enc.Bytes([]byte(keyword))
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not Latin-1", ErrInvalidKeyword, keyword)
	}
	value, err := enc.Bytes([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("encode tEXt value as Latin-1: %w", err)
	}

	var out bytes.Buffer
	out.Write(pngSignature)
	wroteText := false
	for _, c := range chunks(data) {
		if k, _, ok := textKeyword(c); ok && k == keyword {
			continue
		}
		if c.typ == "IEND" {
			writeTextChunk(&out, key, value)
			wroteText = true
		}
		out.Write(c.raw)
	}
	if !wroteText {
		return nil, errors.New("PNG has no IEND chunk")
	}
	return out.Bytes(), nil
}

func writeTextChunk(w *bytes.Buffer, key, value []byte) {
	body := make([]byte, 0, 4+len(key)+1+len(value))
	body = append(body, "tEXt"...)
	body = append(body, key...)
	body = append(body, 0)
	body = append(body, value...)

	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(len(body)-4))
	w.Write(buf[:])
	w.Write(body)
	binary.BigEndian.PutUint32(buf[:], crc32.ChecksumIEEE(body))
	w.Write(buf[:])
}
