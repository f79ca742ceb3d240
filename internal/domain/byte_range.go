package domain

import (
	"strconv"
	"strings"
)

// ByteRange is an inclusive window [Start, End] over a resource of
// TotalSize bytes. Start <= End < TotalSize always holds for values
// returned by ResolveRange.
type ByteRange struct {
	Start     int64
	End       int64
	TotalSize int64
}

func (r ByteRange) Length() int64 {
	return r.End - r.Start + 1
}

func (r ByteRange) valid() bool {
	return r.Start >= 0 && r.Start <= r.End && r.End < r.TotalSize
}

// ContentRange formats the value of a Content-Range response header.
func (r ByteRange) ContentRange() string {
	return "bytes " + strconv.FormatInt(r.Start, 10) + "-" + strconv.FormatInt(r.End, 10) + "/" + strconv.FormatInt(r.TotalSize, 10)
}

// ResolveRange translates a single-interval Range header value into a
// concrete window over totalSize bytes. Forms accepted: "bytes=S-E",
// "bytes=S-" and "bytes=-N". Nothing is clamped except a suffix longer
// than the resource, which selects the whole resource.
func ResolveRange(value string, totalSize int64) (ByteRange, error) {
	value = strings.TrimSpace(value)
	if len(value) < len("bytes=") || !strings.EqualFold(value[:len("bytes=")], "bytes=") {
		return ByteRange{}, ErrInvalidRange
	}

	spec := value[len("bytes="):]
	if strings.Contains(spec, ",") {
		return ByteRange{}, ErrInvalidRange
	}
	startStr, endStr, ok := strings.Cut(spec, "-")
	if !ok {
		return ByteRange{}, ErrInvalidRange
	}
	if startStr == "" && endStr == "" {
		return ByteRange{}, ErrInvalidRange
	}

	r := ByteRange{TotalSize: totalSize}
	if startStr == "" {
		suffix, err := parseOffset(endStr)
		if err != nil {
			return ByteRange{}, err
		}
		if suffix > totalSize {
			suffix = totalSize
		}
		r.Start = totalSize - suffix
		r.End = totalSize - 1
	} else {
		start, err := parseOffset(startStr)
		if err != nil {
			return ByteRange{}, err
		}
		r.Start = start
		r.End = totalSize - 1
		if endStr != "" {
			end, err := parseOffset(endStr)
			if err != nil {
				return ByteRange{}, err
			}
			r.End = end
		}
	}

	if !r.valid() {
		return ByteRange{}, ErrRangeNotSatisfiable
	}
	return r, nil
}

// parseOffset accepts ASCII digits only; signs and spaces are malformed.
func parseOffset(s string) (int64, error) {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, ErrInvalidRange
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, ErrInvalidRange
	}
	return n, nil
}
