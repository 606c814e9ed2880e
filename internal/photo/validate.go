// Package photo はユーザーが選択した写真の取り込み処理を提供する。
// 検証、即時プレビュー、縮小・JPEG圧縮、ストレージへの保存を順に行う。
package photo

import (
	"strings"

	"github.com/savethepaws/pawmap/internal/model"
)

// MaxFileSize は受け付ける写真の最大バイト数（5MiB）。
const MaxFileSize = 5 * 1024 * 1024

// FileHeader は選択されたファイルのメタデータ。
type FileHeader struct {
	Name        string
	ContentType string
	Size        int64
}

// Validate はファイルのMIMEタイプとサイズを検証する。
// 画像以外はmodel.ErrInvalidType、5MiB超はmodel.ErrTooLargeを返す。
func Validate(header FileHeader) error {
	if !strings.HasPrefix(strings.ToLower(header.ContentType), "image/") {
		return model.ErrInvalidType
	}
	if header.Size > MaxFileSize {
		return model.ErrTooLarge
	}
	return nil
}
