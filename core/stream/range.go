// Package stream parses byte-range requests for the track stream endpoint.
package stream

import (
	"fmt"
	"strconv"
	"strings"

	"WaveDeck/apperr"
)

const bytesUnit = "bytes="

// Range is an inclusive byte window [Start, End] within a file of Size bytes.
type Range struct {
	Start int64
	End   int64
	Size  int64
}

// Length is the number of bytes in the window.
func (r Range) Length() int64 {
	return r.End - r.Start + 1
}

// ContentRange renders the Content-Range header value.
func (r Range) ContentRange() string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, r.Size)
}

// UnsatisfiedContentRange renders the Content-Range header for a 416 response.
func UnsatisfiedContentRange(size int64) string {
	return fmt.Sprintf("bytes */%d", size)
}

// ParseRange interprets a Range header against a file of size bytes.
//
// It returns ok=false when the header is absent or not of the single
// "bytes=<start>-<end>" form; callers serve the whole file in that case. A
// well-formed range outside the file returns a RangeNotSatisfiable error.
func ParseRange(header string, size int64) (rng Range, ok bool, err error) {
	header = strings.TrimSpace(header)
	if !strings.HasPrefix(header, bytesUnit) {
		return Range{}, false, nil
	}
	set := strings.TrimSpace(header[len(bytesUnit):])

	startStr, endStr, found := strings.Cut(set, "-")
	if !found {
		return Range{}, false, nil
	}
	startStr = strings.TrimSpace(startStr)
	endStr = strings.TrimSpace(endStr)

	// Suffix ranges ("-500") and lists ("0-1,4-5") are not supported.
	start, perr := parseOffset(startStr)
	if perr != nil {
		return Range{}, false, nil
	}

	end := size - 1
	if endStr != "" {
		end, perr = parseOffset(endStr)
		if perr != nil {
			return Range{}, false, nil
		}
	}

	if start > end || end >= size {
		return Range{}, false, apperr.RangeNotSatisfiable("Requested range %s not satisfiable for %d bytes", set, size)
	}
	return Range{Start: start, End: end, Size: size}, true, nil
}

func parseOffset(s string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty offset")
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("invalid offset %q", s)
		}
	}
	return strconv.ParseInt(s, 10, 64)
}
