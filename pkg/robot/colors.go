package robot

import (
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"morse/pkg/protocol"
)

// cssColors covers the named colors people actually reach for when
// poking robot LEDs. Anything fancier goes through hex.
var cssColors = map[string]string{
	"black":   "#000000",
	"white":   "#ffffff",
	"red":     "#ff0000",
	"green":   "#008000",
	"lime":    "#00ff00",
	"blue":    "#0000ff",
	"yellow":  "#ffff00",
	"cyan":    "#00ffff",
	"magenta": "#ff00ff",
	"orange":  "#ffa500",
	"purple":  "#800080",
	"pink":    "#ffc0cb",
	"tomato":  "#ff6347",
	"gold":    "#ffd700",
	"teal":    "#008080",
	"navy":    "#000080",
	"maroon":  "#800000",
	"olive":   "#808000",
	"silver":  "#c0c0c0",
	"gray":    "#808080",
	"grey":    "#808080",
	"indigo":  "#4b0082",
	"violet":  "#ee82ee",
	"brown":   "#a52a2a",
	"coral":   "#ff7f50",
	"salmon":  "#fa8072",
	"khaki":   "#f0e68c",
	"plum":    "#dda0dd",
	"orchid":  "#da70d6",
	"crimson": "#dc143c",
}

// ParseColor resolves a CSS color name or hex string ("#rgb" or
// "#rrggbb", leading # optional) to LED channel bytes.
func ParseColor(s string) (r, g, b uint8, err error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if hex, ok := cssColors[name]; ok {
		name = hex
	}
	if !strings.HasPrefix(name, "#") {
		name = "#" + name
	}
	if len(name) == 4 { // #rgb shorthand
		name = string([]byte{'#', name[1], name[1], name[2], name[2], name[3], name[3]})
	}
	c, perr := colorful.Hex(name)
	if perr != nil {
		return 0, 0, 0, &protocol.InvalidParameterError{
			Command: "color",
			Param:   "value",
			Value:   s,
			Reason:  "not a known color name or hex string",
		}
	}
	r, g, b = c.RGB255()
	return r, g, b, nil
}
