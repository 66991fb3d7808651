package weave

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/keshon/surefile/internal/snapshot"
)

const formatVersion = 1

// The store is a line stream: a header, one line per version, one line per
// weave record in append order, and a trailer whose counts expose
// truncation. Each line is a one-byte tag, a space, and a JSON body.
const (
	tagHeader  = 'h'
	tagVersion = 'v'
	tagRecord  = 'r'
	tagTrailer = 't'
)

type header struct {
	Format int `json:"format"`
}

// VersionInfo describes one stored version.
type VersionInfo struct {
	Version int               `json:"version"`
	Time    time.Time         `json:"time"`
	Tags    map[string]string `json:"tags,omitempty"`
}

// record is one woven entry: the serialized Entry plus its tag pair. A
// record is active for version V when Ins <= V and (Del == 0 or Del > V).
type record struct {
	snapshot.Entry
	Ins int `json:"ins"`
	Del int `json:"del,omitempty"`

	line int // decode position, diagnostics only
}

func (r *record) activeAt(version int) bool {
	return r.Ins <= version && (r.Del == 0 || r.Del > version)
}

type trailer struct {
	Records  int `json:"records"`
	Versions int `json:"versions"`
}

type weaveFile struct {
	versions []VersionInfo
	records  []record
}

func (w *weaveFile) latest() int { return len(w.versions) }

func encode(w *weaveFile) ([]byte, error) {
	var buf bytes.Buffer

	writeLine := func(tag byte, v any) error {
		body, err := json.Marshal(v)
		if err != nil {
			return err
		}
		buf.WriteByte(tag)
		buf.WriteByte(' ')
		buf.Write(body)
		buf.WriteByte('\n')
		return nil
	}

	if err := writeLine(tagHeader, header{Format: formatVersion}); err != nil {
		return nil, err
	}
	for i := range w.versions {
		if err := writeLine(tagVersion, &w.versions[i]); err != nil {
			return nil, err
		}
	}
	for i := range w.records {
		if err := writeLine(tagRecord, &w.records[i]); err != nil {
			return nil, err
		}
	}
	if err := writeLine(tagTrailer, trailer{Records: len(w.records), Versions: len(w.versions)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decode parses and validates the full line stream. path is only used in
// error diagnostics.
func decode(path string, data []byte) (*weaveFile, error) {
	corrupt := func(line int, format string, args ...any) error {
		return &CorruptStoreError{Path: path, Line: line, Reason: fmt.Sprintf(format, args...)}
	}

	w := &weaveFile{}
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64<<10), 8<<20)

	var (
		lineNo     int
		sawHeader  bool
		sawTrailer bool
	)
	for sc.Scan() {
		lineNo++
		line := sc.Bytes()
		if sawTrailer {
			return nil, corrupt(lineNo, "data after trailer")
		}
		if len(line) < 3 || line[1] != ' ' {
			return nil, corrupt(lineNo, "malformed line")
		}
		tag, body := line[0], line[2:]

		if !sawHeader {
			if tag != tagHeader {
				return nil, corrupt(lineNo, "expected header, found %q", tag)
			}
			var h header
			if err := json.Unmarshal(body, &h); err != nil {
				return nil, corrupt(lineNo, "bad header: %v", err)
			}
			if h.Format != formatVersion {
				return nil, corrupt(lineNo, "unsupported format %d", h.Format)
			}
			sawHeader = true
			continue
		}

		switch tag {
		case tagVersion:
			if len(w.records) > 0 {
				return nil, corrupt(lineNo, "version line after records")
			}
			var v VersionInfo
			if err := json.Unmarshal(body, &v); err != nil {
				return nil, corrupt(lineNo, "bad version line: %v", err)
			}
			if v.Version != len(w.versions)+1 {
				return nil, corrupt(lineNo, "version %d out of sequence", v.Version)
			}
			w.versions = append(w.versions, v)

		case tagRecord:
			var r record
			if err := json.Unmarshal(body, &r); err != nil {
				return nil, corrupt(lineNo, "bad record: %v", err)
			}
			r.line = lineNo
			if r.Path == "" {
				return nil, corrupt(lineNo, "record without path")
			}
			if r.Ins < 1 || r.Ins > len(w.versions) {
				return nil, corrupt(lineNo, "record insert version %d out of range", r.Ins)
			}
			if r.Del != 0 && (r.Del <= r.Ins || r.Del > len(w.versions)) {
				return nil, corrupt(lineNo, "record delete version %d invalid for insert %d", r.Del, r.Ins)
			}
			w.records = append(w.records, r)

		case tagTrailer:
			var t trailer
			if err := json.Unmarshal(body, &t); err != nil {
				return nil, corrupt(lineNo, "bad trailer: %v", err)
			}
			if t.Records != len(w.records) || t.Versions != len(w.versions) {
				return nil, corrupt(lineNo, "trailer counts %d/%d do not match stream %d/%d",
					t.Records, t.Versions, len(w.records), len(w.versions))
			}
			sawTrailer = true

		default:
			return nil, corrupt(lineNo, "unknown line tag %q", tag)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, corrupt(lineNo, "read: %v", err)
	}
	if !sawHeader {
		return nil, corrupt(0, "empty store file")
	}
	if !sawTrailer {
		return nil, corrupt(lineNo, "truncated store: missing trailer")
	}
	return w, nil
}
