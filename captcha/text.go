package captcha

import (
	"encoding/xml"
	"strconv"
	"strings"

	"github.com/MrEthical07/stayAuth/internal"
)

const (
	textLength = 6

	lowerChars   = "abcdefghijklmnopqrstuvwxyz"
	upperChars   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digitChars   = "0123456789"
	specialChars = "@#$%&*?!"
	allChars     = lowerChars + upperChars + digitChars + specialChars

	noiseLines = 6
)

// GenerateText returns a six character challenge containing at least one
// lowercase letter, one uppercase letter, one digit and one symbol, in a
// random order.
func GenerateText() (string, error) {
	out := make([]byte, 0, textLength)
	for _, class := range []string{lowerChars, upperChars, digitChars, specialChars} {
		c, err := pick(class)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}
	for len(out) < textLength {
		c, err := pick(allChars)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}

	// Fisher-Yates
	for i := len(out) - 1; i > 0; i-- {
		j, err := internal.RandomIndex(i + 1)
		if err != nil {
			return "", err
		}
		out[i], out[j] = out[j], out[i]
	}
	return string(out), nil
}

func pick(source string) (byte, error) {
	i, err := internal.RandomIndex(len(source))
	if err != nil {
		return 0, err
	}
	return source[i], nil
}

// RenderSVG draws text on a 160x48 canvas crossed by noise lines.
func RenderSVG(text string) (string, error) {
	var b strings.Builder
	b.Grow(1024)

	b.WriteString(`<svg xmlns="http://www.w3.org/2000/svg" width="160" height="48" viewBox="0 0 160 48">`)
	b.WriteString(`<rect width="100%" height="100%" fill="#fffaf3" rx="8" />`)

	for i := 0; i < noiseLines; i++ {
		x1 := 10 + i*20
		y1, err := internal.RandomIndex(35)
		if err != nil {
			return "", err
		}
		y2, err := internal.RandomIndex(35)
		if err != nil {
			return "", err
		}
		b.WriteString(`<line x1="`)
		b.WriteString(strconv.Itoa(x1))
		b.WriteString(`" y1="`)
		b.WriteString(strconv.Itoa(5 + y1))
		b.WriteString(`" x2="`)
		b.WriteString(strconv.Itoa(x1 + 20))
		b.WriteString(`" y2="`)
		b.WriteString(strconv.Itoa(5 + y2))
		b.WriteString(`" stroke="#d3c4ae" stroke-width="1" />`)
	}

	b.WriteString(`<text x="12" y="32" font-size="24" font-family="monospace" fill="#7d3b12" letter-spacing="2">`)
	if err := xml.EscapeText(&b, []byte(text)); err != nil {
		return "", err
	}
	b.WriteString(`</text></svg>`)

	return b.String(), nil
}
