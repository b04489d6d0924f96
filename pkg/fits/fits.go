// Package fits writes single-HDU FITS images: a primary header with
// BITPIX -32 followed by big-endian float32 pixel data, padded to the
// standard 2880-byte records. It covers exactly what the simulator
// produces: one image per (detector, band) render target.
package fits

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"strings"
)

const recordSize = 2880
const cardSize = 80

// Card is one header keyword/value pair. Values are already formatted
// per the FITS fixed-format rules by the typed helpers below.
type Card struct {
	Keyword string
	Value   string
	Comment string
}

// BoolCard formats a logical header card.
func BoolCard(key string, v bool, comment string) Card {
	val := "F"
	if v {
		val = "T"
	}
	return Card{Keyword: key, Value: fmt.Sprintf("%20s", val), Comment: comment}
}

// IntCard formats an integer header card.
func IntCard(key string, v int64, comment string) Card {
	return Card{Keyword: key, Value: fmt.Sprintf("%20d", v), Comment: comment}
}

// FloatCard formats a floating-point header card.
func FloatCard(key string, v float64, comment string) Card {
	return Card{Keyword: key, Value: fmt.Sprintf("%20s", strings.ToUpper(fmt.Sprintf("%g", v))), Comment: comment}
}

// StringCard formats a quoted string header card.
func StringCard(key string, v, comment string) Card {
	quoted := "'" + strings.ReplaceAll(v, "'", "''") + "'"
	if len(quoted) < 10 {
		quoted += strings.Repeat(" ", 10-len(quoted))
	}
	return Card{Keyword: key, Value: quoted, Comment: comment}
}

func (c Card) render() string {
	card := fmt.Sprintf("%-8s= %s", c.Keyword, c.Value)
	if c.Comment != "" {
		card += " / " + c.Comment
	}
	if len(card) > cardSize {
		card = card[:cardSize]
	}
	return card + strings.Repeat(" ", cardSize-len(card))
}

// WriteImage writes a 2-D float image as a standard FITS file. data is
// row-major with the given width; extra cards follow the mandatory ones.
func WriteImage(path string, data []float64, width, height int, extra ...Card) error {
	if width <= 0 || height <= 0 || len(data) != width*height {
		return fmt.Errorf("fits: image dimensions %dx%d do not match %d pixels", width, height, len(data))
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("fits: create %s: %w", path, err)
	}
	defer f.Close()

	cards := []Card{
		BoolCard("SIMPLE", true, "conforms to FITS standard"),
		IntCard("BITPIX", -32, "IEEE single precision floating point"),
		IntCard("NAXIS", 2, "number of array dimensions"),
		IntCard("NAXIS1", int64(width), ""),
		IntCard("NAXIS2", int64(height), ""),
	}
	cards = append(cards, extra...)

	var hdr strings.Builder
	for _, c := range cards {
		hdr.WriteString(c.render())
	}
	hdr.WriteString(fmt.Sprintf("%-80s", "END"))
	for hdr.Len()%recordSize != 0 {
		hdr.WriteString(" ")
	}
	if _, err := f.WriteString(hdr.String()); err != nil {
		return fmt.Errorf("fits: write header: %w", err)
	}

	buf := make([]byte, len(data)*4)
	for i, v := range data {
		binary.BigEndian.PutUint32(buf[i*4:], math.Float32bits(float32(v)))
	}
	if _, err := f.Write(buf); err != nil {
		return fmt.Errorf("fits: write pixels: %w", err)
	}
	if pad := len(buf) % recordSize; pad != 0 {
		if _, err := f.Write(make([]byte, recordSize-pad)); err != nil {
			return fmt.Errorf("fits: pad data: %w", err)
		}
	}
	return nil
}
