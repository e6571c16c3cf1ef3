package imageproc

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
)

func testImageBytes(t *testing.T, w, h int, format imaging.Format) []byte {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: 100, G: 100, B: 200, A: 255})
		}
	}

	var buf bytes.Buffer
	err := imaging.Encode(&buf, img, format)
	require.NoError(t, err)

	return buf.Bytes()
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		maxSide int
		wantW   int
		wantH   int
		wantErr bool
	}{
		{
			name:    "small png untouched",
			data:    testImageBytes(t, 200, 100, imaging.PNG),
			maxSide: 1024,
			wantW:   200,
			wantH:   100,
		},
		{
			name:    "jpeg untouched",
			data:    testImageBytes(t, 64, 48, imaging.JPEG),
			maxSide: 1024,
			wantW:   64,
			wantH:   48,
		},
		{
			name:    "downscaled landscape",
			data:    testImageBytes(t, 400, 100, imaging.PNG),
			maxSide: 200,
			wantW:   200,
			wantH:   50,
		},
		{
			name:    "zero budget falls back to default",
			data:    testImageBytes(t, 10, 10, imaging.PNG),
			maxSide: 0,
			wantW:   10,
			wantH:   10,
		},
		{
			name:    "broken image",
			data:    []byte("not-an-image"),
			maxSide: 1024,
			wantErr: true,
		},
		{
			name:    "empty data",
			data:    nil,
			maxSide: 1024,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := Decode(tt.data, tt.maxSide)
			if tt.wantErr {
				require.Error(t, err)
				require.Nil(t, img)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tt.wantW, img.Bounds().Dx())
			require.Equal(t, tt.wantH, img.Bounds().Dy())
			require.Equal(t, image.Point{}, img.Bounds().Min)
		})
	}
}

func TestDecode_LargePhotoIsDownscaled(t *testing.T) {
	data := testImageBytes(t, 2000, 3000, imaging.JPEG)

	img, err := Decode(data, DefaultMaxSide)
	require.NoError(t, err)
	require.Equal(t, 1024, img.Bounds().Dy())
	require.Equal(t, 683, img.Bounds().Dx())
}

func TestEncodePNG_RoundTrip(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 7, 5))
	for y := 0; y < 5; y++ {
		for x := 0; x < 7; x++ {
			src.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 30), G: uint8(y * 40), B: 77, A: 255})
		}
	}
	// a few erased pixels keep their colour bytes in NRGBA
	src.Pix[3] = 0
	src.Pix[src.PixOffset(6, 4)+3] = 0

	data, err := EncodePNG(src)
	require.NoError(t, err)

	got, err := Decode(data, DefaultMaxSide)
	require.NoError(t, err)
	require.Equal(t, src.Bounds(), got.Bounds())

	for y := 0; y < 5; y++ {
		for x := 0; x < 7; x++ {
			want := src.NRGBAAt(x, y)
			if want.A == 0 {
				require.Equal(t, uint8(0), got.NRGBAAt(x, y).A)
				continue
			}
			require.Equal(t, want, got.NRGBAAt(x, y), "pixel %d,%d", x, y)
		}
	}
}

func TestEncodePNG_Nil(t *testing.T) {
	_, err := EncodePNG(nil)
	require.Error(t, err)
}

func TestThumbnail(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		size    int
		wantErr bool
	}{
		{"OK thumbnail", testImageBytes(t, 300, 200, imaging.PNG), 100, false},
		{"empty data", nil, 100, true},
		{"bad size", testImageBytes(t, 300, 200, imaging.PNG), 0, true},
		{"broken image", []byte("broken"), 100, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Thumbnail(tt.data, tt.size)
			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			img, err := imaging.Decode(bytes.NewReader(res))
			require.NoError(t, err)
			require.Equal(t, tt.size, img.Bounds().Dx())
			require.Equal(t, tt.size, img.Bounds().Dy())
		})
	}
}
