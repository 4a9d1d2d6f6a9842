package region

// Side tells which team a slot belongs to.
type Side string

const (
	Attack  Side = "attack"
	Defense Side = "defense"
)

// Slot pairs a rectangle with its side and its index within that side.
type Slot struct {
	Rect  Rect
	Side  Side
	Index int
}

// Layout is the static slot configuration for a screenshot.
type Layout struct {
	Attack  []Rect `yaml:"attack" json:"attack"`
	Defense []Rect `yaml:"defense" json:"defense"`
	// DefenseFirst processes defense slots before attack slots.
	DefenseFirst bool `yaml:"defense_first" json:"defense_first"`
}

// Slots flattens the layout in processing order. Within a side the
// configured order is preserved.
func (l Layout) Slots() []Slot {
	out := make([]Slot, 0, len(l.Attack)+len(l.Defense))
	add := func(side Side, rects []Rect) {
		for i, r := range rects {
			out = append(out, Slot{Rect: r, Side: side, Index: i})
		}
	}
	if l.DefenseFirst {
		add(Defense, l.Defense)
		add(Attack, l.Attack)
	} else {
		add(Attack, l.Attack)
		add(Defense, l.Defense)
	}
	return out
}

// DefaultLayout is the result screen layout the slots were tuned against.
func DefaultLayout() Layout {
	return Layout{
		Attack: []Rect{
			{ID: "A1", X: 0.11, Y: 0.40, W: 0.07, H: 0.25},
			{ID: "A2", X: 0.21, Y: 0.40, W: 0.07, H: 0.25},
			{ID: "A3", X: 0.31, Y: 0.40, W: 0.07, H: 0.25},
			{ID: "A4", X: 0.41, Y: 0.40, W: 0.07, H: 0.25},
			{ID: "A5", X: 0.51, Y: 0.40, W: 0.07, H: 0.25},
		},
		Defense: []Rect{
			{ID: "D1", X: 0.59, Y: 0.40, W: 0.07, H: 0.25},
			{ID: "D2", X: 0.69, Y: 0.40, W: 0.07, H: 0.25},
			{ID: "D3", X: 0.79, Y: 0.40, W: 0.07, H: 0.25},
			{ID: "D4", X: 0.89, Y: 0.40, W: 0.07, H: 0.25},
			{ID: "D5", X: 0.99, Y: 0.40, W: 0.07, H: 0.25},
		},
	}
}
