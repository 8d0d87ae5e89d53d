package timeline

// Color tokens cycled per route, one per new series.
var Colors = []string{"b", "g", "r", "c", "m", "y"}

// Hatch tokens cycled per drawn series, independent of lanes.
var Hatches = []string{"/", `\`, "|", "-", "+"}

// Palette hands out colors and hatches in a fixed cycle. Each report run, and
// each route within it, starts from a fresh Palette.
type Palette struct {
	color int
	hatch int
}

func NewPalette() *Palette {
	return &Palette{}
}

func (p *Palette) NextColor() string {
	c := Colors[p.color%len(Colors)]
	p.color++
	return c
}

func (p *Palette) NextHatch() string {
	h := Hatches[p.hatch%len(Hatches)]
	p.hatch++
	return h
}
