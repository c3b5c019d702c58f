// Package transition defines the closed catalog of crossfade effects and the
// timing modes that govern how a transition affects total output duration.
//
// The catalog is static, read-only data. Adding an effect means adding a
// constant and listing it in catalog; nothing else in the module changes.
package transition

import (
	"fmt"
	"strings"
)

// Effect names one visual transition from the catalog.
type Effect string

// Catalog entries. Values are the engine identifiers passed to xfade.
const (
	Fade        Effect = "fade"
	Dissolve    Effect = "dissolve"
	WipeLeft    Effect = "wipeleft"
	WipeRight   Effect = "wiperight"
	WipeUp      Effect = "wipeup"
	WipeDown    Effect = "wipedown"
	SlideLeft   Effect = "slideleft"
	SlideRight  Effect = "slideright"
	SlideUp     Effect = "slideup"
	SlideDown   Effect = "slidedown"
	CircleCrop  Effect = "circlecrop"
	RectCrop    Effect = "rectcrop"
	Distance    Effect = "distance"
	FadeBlack   Effect = "fadeblack"
	FadeWhite   Effect = "fadewhite"
	Radial      Effect = "radial"
	SmoothLeft  Effect = "smoothleft"
	SmoothRight Effect = "smoothright"
	SmoothUp    Effect = "smoothup"
	SmoothDown  Effect = "smoothdown"
	CircleOpen  Effect = "circleopen"
	CircleClose Effect = "circleclose"
	VertOpen    Effect = "vertopen"
	VertClose   Effect = "vertclose"
	HorzOpen    Effect = "horzopen"
	HorzClose   Effect = "horzclose"
	DiagBL      Effect = "diagbl"
	DiagBR      Effect = "diagbr"
	DiagTL      Effect = "diagtl"
	DiagTR      Effect = "diagtr"
)

// DefaultEffect is used when a transition does not name one.
const DefaultEffect = Fade

var catalog = []Effect{
	Fade, Dissolve,
	WipeLeft, WipeRight, WipeUp, WipeDown,
	SlideLeft, SlideRight, SlideUp, SlideDown,
	CircleCrop, RectCrop, Distance,
	FadeBlack, FadeWhite, Radial,
	SmoothLeft, SmoothRight, SmoothUp, SmoothDown,
	CircleOpen, CircleClose, VertOpen, VertClose, HorzOpen, HorzClose,
	DiagBL, DiagBR, DiagTL, DiagTR,
}

var byName = func() map[string]Effect {
	m := make(map[string]Effect, len(catalog))
	for _, e := range catalog {
		m[string(e)] = e
	}
	return m
}()

// UnknownEffectError reports an effect name outside the catalog.
type UnknownEffectError struct {
	Name string
}

func (e *UnknownEffectError) Error() string {
	return fmt.Sprintf("unknown transition effect %q", e.Name)
}

// Effects returns the catalog in stable order.
func Effects() []Effect {
	out := make([]Effect, len(catalog))
	copy(out, catalog)
	return out
}

// Valid reports whether e is a catalog entry.
func (e Effect) Valid() bool {
	_, ok := byName[string(e)]
	return ok
}

func (e Effect) String() string { return string(e) }

// Resolve returns the engine-specific identifier for e.
func Resolve(e Effect) (string, error) {
	if !e.Valid() {
		return "", &UnknownEffectError{Name: string(e)}
	}
	return string(e), nil
}

// ParseEffect looks up an effect by name, ignoring case and surrounding space.
// An empty name yields DefaultEffect.
func ParseEffect(name string) (Effect, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return DefaultEffect, nil
	}
	e, ok := byName[key]
	if !ok {
		return "", &UnknownEffectError{Name: name}
	}
	return e, nil
}
