package image

// FitWithin はアスペクト比を保ったまま最大枠に収まる寸法を計算する。
// 元画像が枠より小さい場合は拡大せず元の寸法を返す。
func FitWithin(srcWidth, srcHeight, maxWidth, maxHeight int) (int, int) {
	if srcWidth <= 0 || srcHeight <= 0 {
		return 0, 0
	}
	if srcWidth <= maxWidth && srcHeight <= maxHeight {
		return srcWidth, srcHeight
	}

	ratioW := float64(maxWidth) / float64(srcWidth)
	ratioH := float64(maxHeight) / float64(srcHeight)
	ratio := ratioW
	if ratioH < ratio {
		ratio = ratioH
	}

	width := int(float64(srcWidth) * ratio)
	height := int(float64(srcHeight) * ratio)
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	return width, height
}

// extensionForFormat はimage.Decodeが返すフォーマット名を
// ファイル拡張子にマッピングする。未知のフォーマットは.jpgとして扱う。
func extensionForFormat(format string) string {
	switch format {
	case "jpeg":
		return ".jpg"
	case "png":
		return ".png"
	case "gif":
		return ".gif"
	case "webp":
		return ".webp"
	default:
		return ".jpg"
	}
}

// contentTypeForFormat はimage.Decodeが返すフォーマット名を
// MIMEタイプにマッピングする。未知のフォーマットはimage/jpegとして扱う。
func contentTypeForFormat(format string) string {
	switch format {
	case "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
