package enums

import "fmt"

// BookFormat identifies the sellable format of a book variant.
type BookFormat string

const (
	BookFormatHardcopy  BookFormat = "HARDCOPY"
	BookFormatEbook     BookFormat = "EBOOK"
	BookFormatAudiobook BookFormat = "AUDIOBOOK"
)

var validBookFormats = []BookFormat{
	BookFormatHardcopy,
	BookFormatEbook,
	BookFormatAudiobook,
}

// String implements fmt.Stringer.
func (f BookFormat) String() string {
	return string(f)
}

// IsValid reports whether the value is a known BookFormat.
func (f BookFormat) IsValid() bool {
	for _, candidate := range validBookFormats {
		if candidate == f {
			return true
		}
	}
	return false
}

// IsPhysical reports whether the format consumes finite warehouse stock.
func (f BookFormat) IsPhysical() bool {
	return f == BookFormatHardcopy
}

// ParseBookFormat converts raw input into a BookFormat.
func ParseBookFormat(value string) (BookFormat, error) {
	for _, candidate := range validBookFormats {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid book format %q", value)
}
