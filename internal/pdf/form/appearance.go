package form

import (
	"strconv"
	"strings"
)

// Appearance is the parsed default appearance (DA) string of a field
type Appearance struct {
	FontName string  `json:"font_name,omitempty"`
	FontSize float64 `json:"font_size,omitempty"`
	// ColorOp is the colour operator with its operands, e.g. "0 g" or "0 0 1 rg"
	ColorOp string `json:"color_op,omitempty"`
}

// ParseDA parses the operators of a DA string the viewer uses to draw field text
func ParseDA(da string) *Appearance {
	a := &Appearance{}
	parts := strings.Fields(da)
	for i := 0; i < len(parts); i++ {
		switch parts[i] {
		case "Tf":
			if i >= 2 {
				a.FontName = strings.TrimPrefix(parts[i-2], "/")
				if size, err := strconv.ParseFloat(parts[i-1], 64); err == nil {
					a.FontSize = size
				}
			}
		case "g", "G":
			if i >= 1 {
				a.ColorOp = parts[i-1] + " g"
			}
		case "rg", "RG":
			if i >= 3 {
				a.ColorOp = strings.Join(parts[i-3:i], " ") + " rg"
			}
		case "k", "K":
			if i >= 4 {
				a.ColorOp = strings.Join(parts[i-4:i], " ") + " k"
			}
		}
	}
	return a
}
