package main

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/tiff"

	kriging "github.com/flywave/go-kriging-gpu"
	"github.com/flywave/go-kriging-gpu/codec"
)

// writeImage stores img as PNG or TIFF depending on format.
func writeImage(dir, name, format string, img image.Image) (string, error) {
	format = strings.ToLower(format)
	ext := ".png"
	if format == "tiff" || format == "tif" {
		ext = ".tif"
	}
	path := filepath.Join(dir, name+ext)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if ext == ".png" {
		err = png.Encode(f, img)
	} else {
		err = tiff.Encode(f, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
	}
	if err != nil {
		return "", fmt.Errorf("error encoding %s: %w", path, err)
	}
	return path, nil
}

// writeRaw stores a top-down float32 raster as little-endian binary.
func writeRaw(dir, name string, values []float32) (string, error) {
	path := filepath.Join(dir, name+".f32")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := binary.Write(f, binary.LittleEndian, values); err != nil {
		return "", fmt.Errorf("error writing %s: %w", path, err)
	}
	return path, nil
}

// classify colours a raster on the CPU; noData cells stay transparent.
func classify(g kriging.Grid, values []float32, ramp codec.ColorRamp, noData float64) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, g.Cols, g.Rows))
	for i, v := range values {
		if float64(v) == noData {
			continue
		}
		img.SetRGBA(i%g.Cols, i/g.Cols, ramp.Lookup(float64(v)))
	}
	return img
}
