package domain

import (
	"strings"
	"time"
)

type PersonSource string

const (
	PersonModelGenerated PersonSource = "model-generated"
	PersonUserUploaded   PersonSource = "user-uploaded"
	PersonUnknown        PersonSource = "unknown"
)

// Normalize maps the zero value and unrecognized input to PersonUnknown.
func (p PersonSource) Normalize() PersonSource {
	switch p {
	case PersonModelGenerated, PersonUserUploaded:
		return p
	default:
		return PersonUnknown
	}
}

// ImageFile is an inline raster payload: base64 bytes plus media type.
type ImageFile struct {
	Base64   string `json:"base64"`
	MimeType string `json:"mimeType"`
}

// ProductRef is carried opaquely; the history layer never interprets it.
type ProductRef struct {
	ID         string   `json:"id"`
	Title      string   `json:"title,omitempty"`
	Price      int      `json:"price,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	Category   string   `json:"category,omitempty"`
	ImageURL   string   `json:"imageUrl,omitempty"`
	ProductURL string   `json:"productUrl,omitempty"`
	Score      float64  `json:"score,omitempty"`
}

type ClothingSlot struct {
	Label   string      `json:"label,omitempty"`
	Product *ProductRef `json:"product,omitempty"`
	Image   *ImageFile  `json:"image,omitempty"`
}

// Populated reports whether the slot carries a label or an inline image.
// A product reference alone does not populate a slot.
func (s *ClothingSlot) Populated() bool {
	if s == nil {
		return false
	}
	return strings.TrimSpace(s.Label) != "" || s.Image != nil
}

type OutfitAttempt struct {
	PersonSource PersonSource  `json:"personSource"`
	Top          *ClothingSlot `json:"top,omitempty"`
	Pants        *ClothingSlot `json:"pants,omitempty"`
	Shoes        *ClothingSlot `json:"shoes,omitempty"`
	Outer        *ClothingSlot `json:"outer,omitempty"`
}

// Slots returns the clothing slots in their fixed order: top, pants, shoes, outer.
func (a OutfitAttempt) Slots() []*ClothingSlot {
	return []*ClothingSlot{a.Top, a.Pants, a.Shoes, a.Outer}
}

// Populated reports whether any clothing slot is populated.
func (a OutfitAttempt) Populated() bool {
	for _, slot := range a.Slots() {
		if slot.Populated() {
			return true
		}
	}
	return false
}

type InputRecord struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	OutfitAttempt
}

type Evaluation struct {
	Score       int       `json:"score"`
	Reasoning   string    `json:"reasoning,omitempty"`
	ModelLabel  string    `json:"modelLabel,omitempty"`
	EvaluatedAt time.Time `json:"evaluatedAt"`
}

// Clamped returns a copy with the score bounded to the 0..100 scale.
func (e Evaluation) Clamped() Evaluation {
	if e.Score < 0 {
		e.Score = 0
	}
	if e.Score > 100 {
		e.Score = 100
	}
	return e
}

// OutputRecord holds the full encoded image as a data URI, not a reference.
type OutputRecord struct {
	ID         string      `json:"id"`
	CreatedAt  time.Time   `json:"createdAt"`
	Image      string      `json:"image"`
	Evaluation *Evaluation `json:"evaluation,omitempty"`
}
