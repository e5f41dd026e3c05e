package avatar

import "fmt"

// Format is the image format requested for an avatar.
//
// The zero value, FormatAuto, means no format was requested and the resolver
// picks one from the avatar hash.
type Format int

const (
	FormatAuto Format = iota
	FormatPNG
	FormatJPG
	FormatWebP
	FormatGIF
)

// String returns the file extension used on the CDN.
func (f Format) String() string {
	switch f {
	case FormatPNG:
		return "png"
	case FormatJPG:
		return "jpg"
	case FormatWebP:
		return "webp"
	case FormatGIF:
		return "gif"
	default:
		return "auto"
	}
}

// ParseFormat parses a format name. "jpeg" is accepted as an alias of "jpg".
func ParseFormat(s string) (Format, error) {
	switch s {
	case "png":
		return FormatPNG, nil
	case "jpg", "jpeg":
		return FormatJPG, nil
	case "webp":
		return FormatWebP, nil
	case "gif":
		return FormatGIF, nil
	}
	return FormatAuto, fmt.Errorf("avatar: unknown format %q", s)
}
