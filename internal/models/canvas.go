package models

import (
	"encoding/json"
	"fmt"
)

// I12Pair packs two signed 12-bit coordinates into three bytes, the same
// layout the canvas uses client-side. Valid range is [-2048, 2047].
type I12Pair struct {
	bytes [3]byte
}

// NewI12Pair packs (x, y). Out-of-range values wrap modulo 2^12.
func NewI12Pair(x, y int16) I12Pair {
	return I12Pair{bytes: [3]byte{
		byte(x),
		byte(x>>8&0xf) | byte(y<<4),
		byte(y >> 4),
	}}
}

// X recovers the sign-extended x coordinate.
func (p I12Pair) X() int16 {
	unsigned := uint16(p.bytes[0]) | uint16(p.bytes[1]&0xf)<<8
	return int16(unsigned<<4) >> 4
}

// Y recovers the sign-extended y coordinate.
func (p I12Pair) Y() int16 {
	unsigned := uint16(p.bytes[1])>>4 | uint16(p.bytes[2])<<4
	return int16(unsigned<<4) >> 4
}

type i12JSON struct {
	X int16 `json:"x"`
	Y int16 `json:"y"`
}

func (p I12Pair) MarshalJSON() ([]byte, error) {
	return json.Marshal(i12JSON{X: p.X(), Y: p.Y()})
}

func (p *I12Pair) UnmarshalJSON(b []byte) error {
	var v i12JSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	if v.X < -(1<<11) || v.X >= 1<<11 || v.Y < -(1<<11) || v.Y >= 1<<11 {
		return fmt.Errorf("coordinate out of 12-bit range: (%d, %d)", v.X, v.Y)
	}
	*p = NewI12Pair(v.X, v.Y)
	return nil
}

// Color is an opaque RGB triple from the fixed palette.
type Color struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// LineWidth names the pen radii the client renders.
type LineWidth string

const (
	WidthSmall  LineWidth = "small"
	WidthNormal LineWidth = "normal"
	WidthMedium LineWidth = "medium"
	WidthLarge  LineWidth = "large"
	WidthExtra  LineWidth = "extra"
)

// CanvasType discriminates CanvasEvent.
type CanvasType string

const (
	CanvasLine     CanvasType = "line"
	CanvasFill     CanvasType = "fill"
	CanvasPushUndo CanvasType = "push_undo"
	CanvasPopUndo  CanvasType = "pop_undo"
	CanvasClear    CanvasType = "clear"
)

// CanvasEvent is one drawing operation. The lobby retains the ordered log of
// the current Drawing phase to replay to joiners.
type CanvasEvent struct {
	Type CanvasType `json:"type"`

	// Line.
	From  I12Pair   `json:"from"`
	To    I12Pair   `json:"to"`
	Width LineWidth `json:"width,omitempty"`

	// Fill.
	At I12Pair `json:"at"`

	// Line and Fill.
	Color Color `json:"color"`
}

// Line draws a stroke between two points.
func Line(from, to I12Pair, width LineWidth, color Color) CanvasEvent {
	return CanvasEvent{Type: CanvasLine, From: from, To: to, Width: width, Color: color}
}

// Fill flood-fills from a point.
func Fill(at I12Pair, color Color) CanvasEvent {
	return CanvasEvent{Type: CanvasFill, At: at, Color: color}
}

// PushUndo snapshots the canvas onto the client undo stack.
func PushUndo() CanvasEvent { return CanvasEvent{Type: CanvasPushUndo} }

// PopUndo restores the last undo snapshot.
func PopUndo() CanvasEvent { return CanvasEvent{Type: CanvasPopUndo} }

// Clear wipes the canvas.
func Clear() CanvasEvent { return CanvasEvent{Type: CanvasClear} }

func (c CanvasType) valid() bool {
	switch c {
	case CanvasLine, CanvasFill, CanvasPushUndo, CanvasPopUndo, CanvasClear:
		return true
	}
	return false
}
