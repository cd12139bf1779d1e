// Package edgar parses the SEC insider-transaction data set formats:
// the quarterly ZIP container, its tab-separated tables, the dataset's
// date formats, and per-filing Form 4 XML documents.
package edgar

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// ZIP local file header layout (APPNOTE 4.3.7).
const (
	localHeaderSig = "PK\x03\x04"
	localHeaderLen = 30
	offMethod      = 8
	offCompSize    = 18
	offNameLen     = 26
	offExtraLen    = 28
	methodStored   = 0
	methodDeflated = 8
)

// ExtractTable scans buf for the first ZIP entry whose base filename starts
// with namePrefix (case-insensitive, directory components stripped),
// decompresses it, and returns its text lines. The second return is false
// when no entry matches; callers treat a missing table as zero rows.
//
// The scan walks local file headers directly instead of reading the central
// directory. This is only valid because the published SEC archives record
// true compressed sizes in every local header (no streaming data
// descriptors); it is not a general-purpose ZIP reader.
func ExtractTable(buf []byte, namePrefix string) ([]string, bool, error) {
	sig := []byte(localHeaderSig)
	prefix := strings.ToUpper(namePrefix)

	cursor := 0
	for {
		rel := bytes.Index(buf[cursor:], sig)
		if rel < 0 {
			return nil, false, nil
		}
		hdr := cursor + rel
		if hdr+localHeaderLen > len(buf) {
			return nil, false, nil
		}

		method := binary.LittleEndian.Uint16(buf[hdr+offMethod:])
		compSize := int(binary.LittleEndian.Uint32(buf[hdr+offCompSize:]))
		nameLen := int(binary.LittleEndian.Uint16(buf[hdr+offNameLen:]))
		extraLen := int(binary.LittleEndian.Uint16(buf[hdr+offExtraLen:]))

		nameStart := hdr + localHeaderLen
		dataStart := nameStart + nameLen + extraLen
		if nameStart+nameLen > len(buf) || dataStart+compSize > len(buf) {
			return nil, false, eris.Errorf("zipscan: truncated entry at offset %d", hdr)
		}

		name := string(buf[nameStart : nameStart+nameLen])
		base := name
		if i := strings.LastIndexByte(base, '/'); i >= 0 {
			base = base[i+1:]
		}

		if !strings.HasPrefix(strings.ToUpper(base), prefix) {
			cursor = dataStart + compSize
			continue
		}

		data, err := decompress(buf[dataStart:dataStart+compSize], method)
		if err != nil {
			return nil, false, eris.Wrapf(err, "zipscan: entry %q", name)
		}
		return splitLines(data), true, nil
	}
}

// decompress expands one entry's data span. Only the two methods the SEC
// archives use are supported.
func decompress(span []byte, method uint16) ([]byte, error) {
	switch method {
	case methodStored:
		out := make([]byte, len(span))
		copy(out, span)
		return out, nil
	case methodDeflated:
		fr := flate.NewReader(bytes.NewReader(span))
		defer fr.Close() //nolint:errcheck
		out, err := io.ReadAll(fr)
		if err != nil {
			return nil, eris.Wrap(err, "inflate")
		}
		return out, nil
	default:
		return nil, eris.Errorf("unsupported compression method %d", method)
	}
}

// splitLines splits decompressed table bytes into lines, tolerating CRLF.
func splitLines(data []byte) []string {
	lines := strings.Split(string(data), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, "\r")
	}
	// Trailing newline produces one empty final element; drop it.
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	return lines
}
