// internal/vision/locator.go
package vision

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"os"

	// 注册上传帧的解码器
	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	pigo "github.com/esimov/pigo/core"
)

// MaxAnalyzedFaces 每帧最多分类的人脸数
const MaxAnalyzedFaces = 4

// Box 像素坐标下的人脸框
type Box struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Rect 转换为 image.Rectangle
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.W, b.Y+b.H)
}

// FaceLocator 在解码后的帧中定位人脸
type FaceLocator interface {
	Locate(img image.Image) []Box
}

// NoopLocator 从不返回人脸，所有帧走整帧分类
type NoopLocator struct{}

// Locate 实现 FaceLocator
func (NoopLocator) Locate(image.Image) []Box { return nil }

// PigoLocator 使用 pigo 级联检测正脸
type PigoLocator struct {
	classifier *pigo.Pigo

	MinSize      int
	MaxSize      int
	ShiftFactor  float64
	ScaleFactor  float64
	IoUThreshold float64
	MinQuality   float32
}

// NewPigoLocator 从文件加载 pigo facefinder 级联
func NewPigoLocator(path string) (*PigoLocator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cascade: %w", err)
	}
	return NewPigoLocatorFromBytes(data)
}

// NewPigoLocatorFromBytes 解析内存中的 facefinder 级联
func NewPigoLocatorFromBytes(cascade []byte) (*PigoLocator, error) {
	if len(cascade) == 0 {
		return nil, errors.New("empty cascade")
	}
	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("unpack cascade: %w", err)
	}
	return &PigoLocator{
		classifier:   classifier,
		MinSize:      48,
		MaxSize:      1000,
		ShiftFactor:  0.1,
		ScaleFactor:  1.1,
		IoUThreshold: 0.2,
		MinQuality:   5.0,
	}, nil
}

// Locate 实现 FaceLocator
func (p *PigoLocator) Locate(img image.Image) []Box {
	bounds := img.Bounds()
	cols, rows := bounds.Dx(), bounds.Dy()
	if cols == 0 || rows == 0 {
		return nil
	}

	params := pigo.CascadeParams{
		MinSize:     p.MinSize,
		MaxSize:     p.MaxSize,
		ShiftFactor: p.ShiftFactor,
		ScaleFactor: p.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pigo.RgbToGrayscale(img),
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	dets := p.classifier.RunCascade(params, 0.0)
	dets = p.classifier.ClusterDetections(dets, p.IoUThreshold)

	boxes := make([]Box, 0, len(dets))
	for _, d := range dets {
		if d.Q < p.MinQuality {
			continue
		}
		half := d.Scale / 2
		box := Box{
			X: bounds.Min.X + d.Col - half,
			Y: bounds.Min.Y + d.Row - half,
			W: d.Scale,
			H: d.Scale,
		}
		clipped := box.Rect().Intersect(bounds)
		if clipped.Empty() {
			continue
		}
		boxes = append(boxes, Box{X: clipped.Min.X, Y: clipped.Min.Y, W: clipped.Dx(), H: clipped.Dy()})
	}
	return boxes
}

// Decode 按已注册格式解码上传帧
func Decode(frame []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(frame))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return img, nil
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// CropJPEG 裁剪人脸框并编码为 JPEG
func CropJPEG(img image.Image, box Box) ([]byte, error) {
	rect := box.Rect().Intersect(img.Bounds())
	if rect.Empty() {
		return nil, errors.New("crop outside frame")
	}

	var crop image.Image
	if si, ok := img.(subImager); ok {
		crop = si.SubImage(rect)
	} else {
		rgba := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
		for y := rect.Min.Y; y < rect.Max.Y; y++ {
			for x := rect.Min.X; x < rect.Max.X; x++ {
				rgba.Set(x-rect.Min.X, y-rect.Min.Y, img.At(x, y))
			}
		}
		crop = rgba
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, crop, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("encode crop: %w", err)
	}
	return buf.Bytes(), nil
}
