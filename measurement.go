package slidereview

// EMU (English Metric Units) conversion helpers.
// 1 inch = 914400 EMU, 1 point = 12700 EMU, 1 pixel (96 DPI) = 9525 EMU.

const (
	// EMUPerPixel is the number of EMU in one raster pixel. Every offset,
	// extent and slide size read from a document is divided by it before any
	// pixel operation. It is a property of the OOXML format, not a setting.
	EMUPerPixel = 9525

	// maxSlideEMU is the largest slide side a presentation may declare
	// (56 inches, 5376 px).
	maxSlideEMU = 51206400
)

// EMUToPixel converts an EMU value to pixels using floor division, so
// negative offsets round toward negative infinity (-1 EMU is pixel -1, not 0).
// Non-negative values truncate.
func EMUToPixel(emu int64) int {
	q := emu / EMUPerPixel
	if emu%EMUPerPixel != 0 && emu < 0 {
		q--
	}
	return int(q)
}

// Pixel converts pixels to EMU.
func Pixel(n int) int64 {
	return int64(n) * EMUPerPixel
}
