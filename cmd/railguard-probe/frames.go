package main

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
)

// ESP32-CAM VGA 해상도
const (
	frameWidth  = 640
	frameHeight = 480
)

var (
	lightGray = color.RGBA{211, 211, 211, 255}
	gray      = color.RGBA{128, 128, 128, 255}
	red       = color.RGBA{220, 20, 20, 255}
	darkRed   = color.RGBA{139, 0, 0, 255}
	lightBlue = color.RGBA{173, 216, 230, 255}
	brown     = color.RGBA{139, 69, 19, 255}
)

// obstacleFrame - 선로 위 자동차 모양 장애물 (차체, 창문, 바퀴)
func obstacleFrame() ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, frameWidth, frameHeight))
	fill(img, img.Bounds(), lightGray)

	fill(img, image.Rect(197, 197, 403, 303), darkRed)
	fill(img, image.Rect(200, 200, 400, 300), red)
	fill(img, image.Rect(220, 210, 280, 250), lightBlue)
	fill(img, image.Rect(320, 210, 380, 250), lightBlue)
	disc(img, 240, 300, 20, color.Black)
	disc(img, 380, 300, 20, color.Black)

	return encodeJPEG(img)
}

// emptyTrackFrame - 장애물 없는 선로 (레일 4개)
func emptyTrackFrame() ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, frameWidth, frameHeight))
	fill(img, img.Bounds(), gray)

	thickLine(img, 100, 480, 250, 0, 8, brown)
	thickLine(img, 200, 480, 350, 0, 8, brown)
	thickLine(img, 540, 480, 390, 0, 8, brown)
	thickLine(img, 440, 480, 290, 0, 8, brown)

	return encodeJPEG(img)
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func fill(img draw.Image, r image.Rectangle, c color.Color) {
	draw.Draw(img, r, &image.Uniform{C: c}, image.Point{}, draw.Src)
}

func disc(img draw.Image, cx, cy, radius int, c color.Color) {
	for y := -radius; y <= radius; y++ {
		for x := -radius; x <= radius; x++ {
			if x*x+y*y <= radius*radius {
				img.Set(cx+x, cy+y, c)
			}
		}
	}
}

func thickLine(img draw.Image, x0, y0, x1, y1, width int, c color.Color) {
	steps := max(abs(x1-x0), abs(y1-y0))
	if steps == 0 {
		return
	}
	half := width / 2
	for i := 0; i <= steps; i++ {
		x := x0 + (x1-x0)*i/steps
		y := y0 + (y1-y0)*i/steps
		fill(img, image.Rect(x-half, y-half, x+half, y+half), c)
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
