package action

import "fmt"

// Rect is a rectangle carried as a resolution payload (for example the
// bounds an animation settled on).
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// IsEmpty reports whether the rectangle has no area.
func (r Rect) IsEmpty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// PayloadKind discriminates the Payload union.
type PayloadKind int

const (
	// PayloadNone means the action resolved without a value.
	PayloadNone PayloadKind = iota
	// PayloadInt carries an integer argument.
	PayloadInt
	// PayloadRect carries a Rect argument.
	PayloadRect
)

// String returns the payload kind name.
func (k PayloadKind) String() string {
	switch k {
	case PayloadNone:
		return "none"
	case PayloadInt:
		return "int"
	case PayloadRect:
		return "rect"
	default:
		return fmt.Sprintf("PayloadKind(%d)", int(k))
	}
}

// Payload is the value an action resolves with: nothing, an int, or a Rect.
// The zero value is PayloadNone.
type Payload struct {
	kind PayloadKind
	i    int
	rect Rect
}

// IntPayload wraps an integer.
func IntPayload(v int) Payload {
	return Payload{kind: PayloadInt, i: v}
}

// RectPayload wraps a rectangle.
func RectPayload(r Rect) Payload {
	return Payload{kind: PayloadRect, rect: r}
}

// Kind returns which variant is populated.
func (p Payload) Kind() PayloadKind {
	return p.kind
}

// Int returns the integer variant, or 0 when another variant is held.
func (p Payload) Int() int {
	if p.kind != PayloadInt {
		return 0
	}
	return p.i
}

// Rect returns the rectangle variant, or the empty Rect when another
// variant is held.
func (p Payload) Rect() Rect {
	if p.kind != PayloadRect {
		return Rect{}
	}
	return p.rect
}
