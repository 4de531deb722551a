package upload

import (
	"errors"
	"fmt"

	"github.com/vbonduro/foodiepass/internal/apperr"
)

// MaxSize is the largest accepted upload, in bytes.
const MaxSize = 10 * 1024 * 1024

const (
	MediaJPEG = "image/jpeg"
	MediaPNG  = "image/png"
	MediaHEIC = "image/heic"
)

// allowedMediaTypes is the set of declared media types accepted for menu photos.
var allowedMediaTypes = map[string]bool{
	MediaJPEG: true,
	MediaPNG:  true,
	MediaHEIC: true,
}

// File is a user-selected image before normalization. MediaType is the type
// the source declared, not a sniffed one.
type File struct {
	Name      string
	MediaType string
	Size      int64
	Data      []byte
}

type Reason int

const (
	UnsupportedType Reason = iota + 1
	TooLarge
)

func (r Reason) String() string {
	switch r {
	case UnsupportedType:
		return "unsupported_type"
	case TooLarge:
		return "too_large"
	default:
		return "unknown"
	}
}

// Rejection is returned by Validate for a file that must not be processed.
type Rejection struct {
	Reason    Reason
	MediaType string
	Size      int64
}

func (r *Rejection) Error() string {
	switch r.Reason {
	case UnsupportedType:
		return fmt.Sprintf("unsupported media type %q", r.MediaType)
	case TooLarge:
		return fmt.Sprintf("file size %d exceeds %d bytes", r.Size, MaxSize)
	default:
		return "rejected upload"
	}
}

// Validate accepts JPEG, PNG and HEIC files up to MaxSize. It performs no I/O.
func Validate(f File) error {
	if !allowedMediaTypes[f.MediaType] {
		return apperr.New(apperr.KindValidation, &Rejection{Reason: UnsupportedType, MediaType: f.MediaType, Size: f.Size})
	}
	if f.Size > MaxSize {
		return apperr.New(apperr.KindValidation, &Rejection{Reason: TooLarge, MediaType: f.MediaType, Size: f.Size})
	}
	return nil
}

// RejectionOf extracts the rejection from a Validate error.
func RejectionOf(err error) (*Rejection, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}
