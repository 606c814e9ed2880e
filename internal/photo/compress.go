package photo

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"math"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	// MaxWidth は保存する写真の最大幅（px）。
	MaxWidth = 1200
	// JPEGQuality は保存時のJPEG品質。
	JPEGQuality = 82
	// MaxSide はデコードを許す1辺の最大ピクセル数。
	MaxSide = 12000
	// MaxPixels はデコードを許す総ピクセル数の上限。
	MaxPixels = 40_000_000
)

// ErrImageTooLarge は宣言された画像寸法が上限を超えていることを示す。
var ErrImageTooLarge = errors.New("画像の寸法が大きすぎます")

// TargetSize は保存時の寸法を返す。
// 幅がMaxWidthを超える場合は幅をMaxWidthにし、高さを同じ比率で四捨五入する。
func TargetSize(width, height int) (int, int) {
	if width <= MaxWidth {
		return width, height
	}
	h := int(math.Round(float64(height) * float64(MaxWidth) / float64(width)))
	if h < 1 {
		h = 1
	}
	return MaxWidth, h
}

// Decode は画像バイト列をデコードする。JPEG/PNG/GIF/WebP/BMP/TIFFに対応する。
// ヘッダーの寸法がMaxSideまたはMaxPixelsを超える画像はピクセルを展開せずに拒否する。
func Decode(data []byte) (image.Image, string, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("画像のデコードに失敗しました: %w", err)
	}
	if cfg.Width > MaxSide || cfg.Height > MaxSide || int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, "", fmt.Errorf("%dx%d: %w", cfg.Width, cfg.Height, ErrImageTooLarge)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("画像のデコードに失敗しました: %w", err)
	}
	return img, format, nil
}

// Compress は画像をTargetSizeに縮小し、JPEG品質JPEGQualityでエンコードする。
// 透過部分は白で塗りつぶす。
func Compress(src image.Image) ([]byte, int, int, error) {
	b := src.Bounds()
	w, h := TargetSize(b.Dx(), b.Dy())

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, 0, 0, fmt.Errorf("JPEGエンコードに失敗しました: %w", err)
	}
	return buf.Bytes(), w, h, nil
}
