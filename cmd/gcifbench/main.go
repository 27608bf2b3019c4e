// gcifbench compares GCIF compression against PNG and lossless JPEG 2000
// on a set of input images.
//
// Usage:
//
//	gcifbench <in.png> [<in.png> ...]
//
// For each input the tool encodes with all three codecs, verifies the GCIF
// round trip, and prints a size/ratio row. Exit code 0 when every file
// processed, 1 otherwise.
package main

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"os"

	jpeg2000 "github.com/mrjoshuak/go-jpeg2000"

	"github.com/mrjoshuak/go-gcif/gcif"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: gcifbench <in.png> [<in.png> ...]")
		os.Exit(1)
	}

	fmt.Printf("%-32s %10s %10s %10s %10s\n", "file", "raw", "gcif", "png", "j2k")
	failed := false
	for _, path := range os.Args[1:] {
		if err := bench(path); err != nil {
			fmt.Fprintf(os.Stderr, "gcifbench: %s: %v\n", path, err)
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

func bench(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	src, err := png.Decode(f)
	f.Close()
	if err != nil {
		return err
	}

	bounds := src.Bounds()
	nrgba := image.NewNRGBA(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			nrgba.Set(x, y, src.At(x, y))
		}
	}

	img := &gcif.Image{Width: bounds.Dx(), Height: bounds.Dy(), Pix: nrgba.Pix}
	raw := len(img.Pix)

	gcifData, err := gcif.Encode(img, nil)
	if err != nil {
		return err
	}
	decoded, err := gcif.Decode(gcifData)
	if err != nil {
		return fmt.Errorf("round trip decode: %w", err)
	}
	if !bytes.Equal(decoded.Pix, img.Pix) {
		return fmt.Errorf("round trip mismatch")
	}

	var pngBuf bytes.Buffer
	if err := png.Encode(&pngBuf, nrgba); err != nil {
		return err
	}

	var j2kBuf bytes.Buffer
	j2kErr := jpeg2000.Encode(&j2kBuf, nrgba, &jpeg2000.Options{
		Format:   jpeg2000.FormatJ2K,
		Lossless: true,
	})
	j2kSize := "-"
	if j2kErr == nil {
		j2kSize = fmt.Sprintf("%d", j2kBuf.Len())
	}

	fmt.Printf("%-32s %10d %10d %10d %10s\n", path, raw, len(gcifData), pngBuf.Len(), j2kSize)
	return nil
}
