package utils

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/textproto"
	"testing"
	"time"
)

func TestNewULIDFromTimestampIsSortable(t *testing.T) {
	u := New()
	now := time.Now()

	a, err := u.NewULIDFromTimestamp(now)
	if err != nil {
		t.Fatal(err)
	}
	b, err := u.NewULIDFromTimestamp(now.Add(time.Second))
	if err != nil {
		t.Fatal(err)
	}

	if len(a) != 26 || len(b) != 26 {
		t.Fatalf("unexpected ulid lengths %d and %d", len(a), len(b))
	}
	if a >= b {
		t.Errorf("expected %s < %s", a, b)
	}
}

func header(contentType string, size int64) *multipart.FileHeader {
	h := textproto.MIMEHeader{}
	h.Set("Content-Type", contentType)
	return &multipart.FileHeader{Filename: "frame", Header: h, Size: size}
}

func TestValidateImageFile(t *testing.T) {
	u := New()

	tests := []struct {
		name string
		file *multipart.FileHeader
		want error
	}{
		{"missing", nil, ErrNoFile},
		{"too large", header("image/jpeg", u.MaxFileSize()+1), ErrFileTooLarge},
		{"not an image", header("application/pdf", 100), ErrNotAnImage},
		{"jpeg", header("image/jpeg", 100), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := u.ValidateImageFile(tt.file); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDecodeAndEncode(t *testing.T) {
	u := New()

	src := image.NewNRGBA(image.Rect(0, 0, 40, 20))
	for i := 0; i < len(src.Pix); i += 4 {
		src.Pix[i], src.Pix[i+1], src.Pix[i+2], src.Pix[i+3] = 200, 100, 50, 255
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatal(err)
	}

	img, err := u.DecodeImage(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 40 || img.Bounds().Dy() != 20 {
		t.Fatalf("decoded bounds %v", img.Bounds())
	}

	out, err := u.EncodeJPEG(img, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) < 2 || out[0] != 0xFF || out[1] != 0xD8 {
		t.Fatal("output is not a JPEG")
	}

	back, err := u.DecodeImage(bytes.NewReader(out))
	if err != nil {
		t.Fatal(err)
	}
	if c := color.NRGBAModel.Convert(back.At(20, 10)).(color.NRGBA); c.R < 180 || c.B > 80 {
		t.Errorf("unexpected colour after round trip: %+v", c)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := New().DecodeImage(bytes.NewReader([]byte("not an image"))); err == nil {
		t.Fatal("expected decode error")
	}
}
