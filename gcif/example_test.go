package gcif_test

import (
	"bytes"
	"fmt"

	"github.com/mrjoshuak/go-gcif/gcif"
)

// Example demonstrates a basic encode/decode round trip.
func Example() {
	img := gcif.NewImage(8, 8)
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = 200   // R
		img.Pix[i+1] = 60  // G
		img.Pix[i+2] = 40  // B
		img.Pix[i+3] = 255 // A
	}

	data, err := gcif.Encode(img, nil)
	if err != nil {
		fmt.Println("encode failed:", err)
		return
	}

	decoded, err := gcif.Decode(data)
	if err != nil {
		fmt.Println("decode failed:", err)
		return
	}
	fmt.Printf("%dx%d, lossless: %v\n",
		decoded.Width, decoded.Height, bytes.Equal(decoded.Pix, img.Pix))
	// Output: 8x8, lossless: true
}

// Example_statistics shows the optional encoder side channel.
func Example_statistics() {
	img := gcif.NewImage(16, 16)
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}

	stats := &gcif.EncodeStats{}
	if _, err := gcif.Encode(img, &gcif.Options{Stats: stats}); err != nil {
		fmt.Println("encode failed:", err)
		return
	}
	fmt.Printf("chaos levels in [1,16]: %v\n", stats.ChaosLevels >= 1 && stats.ChaosLevels <= 16)
	// Output: chaos levels in [1,16]: true
}
