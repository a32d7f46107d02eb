package main

import (
	"bufio"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"q2048/game2048"
)

const cellPixels = 32

// loadBoard reads a board file: one line per row, tile values separated by
// spaces, 0 for an empty square. Blank lines and lines starting with # are
// skipped.
func loadBoard(filePath string) (game2048.Board, error) {
	var b game2048.Board
	file, err := os.Open(filePath)
	if err != nil {
		return b, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	row := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if row == game2048.Size {
			return b, errors.Errorf("%s: more than %d rows", filePath, game2048.Size)
		}
		fields := strings.Fields(line)
		if len(fields) != game2048.Size {
			return b, errors.Errorf("%s: row %d has %d tiles, want %d", filePath, row+1, len(fields), game2048.Size)
		}
		for col, f := range fields {
			v, err := strconv.Atoi(f)
			if err != nil || !validTile(v) {
				return b, errors.Errorf("%s: row %d: bad tile %q", filePath, row+1, f)
			}
			b[row][col] = v
		}
		row++
	}
	if err := scanner.Err(); err != nil {
		return b, errors.Wrapf(err, "reading %s", filePath)
	}
	if row != game2048.Size {
		return b, errors.Errorf("%s: %d rows, want %d", filePath, row, game2048.Size)
	}
	return b, nil
}

func validTile(v int) bool {
	return v == 0 || (v >= 2 && v&(v-1) == 0)
}

// saveBoardImage draws a board grid, darker squares for larger tiles.
func saveBoardImage(grid *tensor.Dense, filePath string) error {
	shape := grid.Shape()
	if len(shape) != 2 {
		return errors.Errorf("board grid has shape %v", shape)
	}
	rows, cols := shape[0], shape[1]
	img := image.NewRGBA(image.Rect(0, 0, cols*cellPixels, rows*cellPixels))
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			v, err := grid.At(y, x)
			if err != nil {
				return err
			}
			cell := image.Rect(x*cellPixels, y*cellPixels, (x+1)*cellPixels, (y+1)*cellPixels)
			draw.Draw(img, cell, &image.Uniform{tileColor(v.(float64))}, image.Point{}, draw.Src)
		}
	}

	file, err := os.Create(filePath)
	if err != nil {
		return err
	}
	if err := png.Encode(file, img); err != nil {
		file.Close()
		return errors.Wrapf(err, "encoding %s", filePath)
	}
	return file.Close()
}

func tileColor(v float64) color.RGBA {
	if v == 0 {
		return color.RGBA{205, 193, 180, 255}
	}
	level := math.Min(math.Log2(v), 14)
	shade := uint8(240 - level*15)
	return color.RGBA{240, shade, uint8(float64(shade) * 0.6), 255}
}
