package image

import (
	"bytes"
	"fmt"

	"github.com/rwcarlsen/goexif/exif"
)

// readExif 读取EXIF中的相机信息，图片不含EXIF时保持空值
func readExif(data []byte, meta *Metadata) {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return
	}

	meta.CameraMake = exifString(x, exif.Make)
	meta.CameraModel = exifString(x, exif.Model)
	meta.LensModel = exifString(x, exif.LensModel)

	if t, err := x.DateTime(); err == nil {
		meta.TakenAt = t.Format("2006-01-02 15:04:05")
	}
	if tag, err := x.Get(exif.FNumber); err == nil {
		if num, den, err := tag.Rat2(0); err == nil && den != 0 {
			meta.FNumber = fmt.Sprintf("f/%.1f", float64(num)/float64(den))
		}
	}
	if tag, err := x.Get(exif.FocalLength); err == nil {
		if num, den, err := tag.Rat2(0); err == nil && den != 0 {
			meta.FocalLength = fmt.Sprintf("%.0fmm", float64(num)/float64(den))
		}
	}
}

func exifString(x *exif.Exif, field exif.FieldName) string {
	tag, err := x.Get(field)
	if err != nil {
		return ""
	}
	s, err := tag.StringVal()
	if err != nil {
		return ""
	}
	return s
}
