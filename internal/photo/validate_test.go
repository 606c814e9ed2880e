package photo

import (
	"errors"
	"testing"

	"github.com/savethepaws/pawmap/internal/model"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		header  FileHeader
		wantErr error
	}{
		{"jpeg within limit", FileHeader{Name: "dog.jpg", ContentType: "image/jpeg", Size: 1024}, nil},
		{"exactly 5 MiB", FileHeader{Name: "dog.png", ContentType: "image/png", Size: 5242880}, nil},
		{"one byte over 5 MiB", FileHeader{Name: "dog.png", ContentType: "image/png", Size: 5242881}, model.ErrTooLarge},
		{"6 MB jpeg", FileHeader{Name: "big.jpg", ContentType: "image/jpeg", Size: 6 * 1024 * 1024}, model.ErrTooLarge},
		{"uppercase mime", FileHeader{Name: "dog.JPG", ContentType: "IMAGE/JPEG", Size: 10}, nil},
		{"pdf", FileHeader{Name: "doc.pdf", ContentType: "application/pdf", Size: 10}, model.ErrInvalidType},
		{"empty mime", FileHeader{Name: "unknown", ContentType: "", Size: 10}, model.ErrInvalidType},
		{"non-image oversized reports type first", FileHeader{Name: "movie.mp4", ContentType: "video/mp4", Size: 50 << 20}, model.ErrInvalidType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.header)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate(%+v) = %v, want %v", tt.header, err, tt.wantErr)
			}
		})
	}
}

func TestValidate_ErrorsAreValidationErrors(t *testing.T) {
	err := Validate(FileHeader{ContentType: "text/plain", Size: 1})
	ve, ok := model.AsValidationError(err)
	if !ok {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if ve.Message != "Bitte wähle ein Bild aus" {
		t.Errorf("Message = %q", ve.Message)
	}
}
