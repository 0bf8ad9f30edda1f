package slidereview

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// Session holds the single live generation of converted slides: the base
// and served images on disk and the comment log of every slide. Convert
// replaces the whole generation; there is never more than one.
//
// Installing a generation holds the session write lock, so other calls see
// either the previous generation or the complete new one. Comment calls for
// different slides run in parallel; calls for the same slide are
// serialized.
type Session struct {
	store   *DirStore
	raster  *Rasterizer
	overlay *OverlayOptions

	mu  sync.RWMutex
	gen *generation
}

type generation struct {
	slides []*slideState
}

// slideState is the comment log of one slide. mu serializes the read,
// append, overlay and served-image write of a comment.
type slideState struct {
	mu       sync.Mutex
	comments []string
}

// slide returns the state of slide n (1-based), or nil.
func (g *generation) slide(n int) *slideState {
	if n < 1 || n > len(g.slides) {
		return nil
	}
	return g.slides[n-1]
}

// ConvertResult describes a completed conversion.
type ConvertResult struct {
	SlideCount int
	Warnings   []ShapeWarning
}

// NewSession creates a session with an empty generation. Nil rasterizer or
// overlay options select the defaults.
func NewSession(store *DirStore, raster *Rasterizer, overlay *OverlayOptions) (*Session, error) {
	if store == nil {
		return nil, errors.New("image store is nil")
	}
	if raster == nil {
		raster = NewRasterizer(nil)
	}
	if overlay == nil {
		overlay = DefaultOverlayOptions()
	}
	return &Session{
		store:   store,
		raster:  raster,
		overlay: overlay,
		gen:     &generation{},
	}, nil
}

// Reset discards the current generation: every comment log and every image
// in both directories.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resetLocked()
}

func (s *Session) resetLocked() error {
	s.gen = &generation{}
	return s.store.Reset()
}

// Convert resets the session and installs doc as the new generation: each
// slide is rasterized and its image written both as base and as served
// image. If conversion fails part way the slides written so far stay
// installed; call Convert again for a clean generation.
func (s *Session) Convert(doc *Document) (*ConvertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.resetLocked(); err != nil {
		return nil, err
	}

	res, err := s.raster.Rasterize(doc)
	if err != nil {
		return nil, err
	}

	gen := s.gen
	for i, img := range res.Images {
		n := i + 1
		data, err := EncodePNG(img)
		if err != nil {
			return nil, fmt.Errorf("slide %d: %w", n, err)
		}
		if err := s.store.PutBase(n, data); err != nil {
			return nil, fmt.Errorf("slide %d: %w", n, err)
		}
		if err := s.store.PutServed(n, data); err != nil {
			return nil, fmt.Errorf("slide %d: %w", n, err)
		}
		gen.slides = append(gen.slides, &slideState{})
	}

	Logger().Info("presentation converted", "slides", len(res.Images), "warnings", len(res.Warnings))
	return &ConvertResult{SlideCount: len(res.Images), Warnings: res.Warnings}, nil
}

// SlideCount returns the number of slides in the current generation.
func (s *Session) SlideCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.gen.slides)
}

// AddComment appends text to the comment log of slide n and re-renders the
// slide's served image from its base image and the full log. It returns the
// updated log. For a slide without a base image it returns
// ErrSlideNotFound and the log is left untouched; the log is also left
// untouched when rendering fails.
func (s *Session) AddComment(n int, text string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := s.gen.slide(n)
	if st == nil {
		return nil, fmt.Errorf("slide %d: %w", n, ErrSlideNotFound)
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	base, err := s.store.Base(n)
	if err != nil {
		return nil, err
	}

	comments := make([]string, len(st.comments), len(st.comments)+1)
	copy(comments, st.comments)
	comments = append(comments, text)

	img, err := Overlay(base, comments, s.overlay)
	if err != nil {
		return nil, fmt.Errorf("slide %d: %w", n, err)
	}
	data, err := EncodePNG(img)
	if err != nil {
		return nil, fmt.Errorf("slide %d: %w", n, err)
	}
	if err := s.store.PutServed(n, data); err != nil {
		return nil, fmt.Errorf("slide %d: %w", n, err)
	}
	st.comments = comments

	Logger().Info("comment added", "slide", n, "comments", len(comments))
	return slices.Clone(comments), nil
}

// Comments returns a copy of the comment log of slide n in the order the
// comments were added. Unknown slides have an empty log.
func (s *Session) Comments(n int) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := s.gen.slide(n)
	if st == nil {
		return []string{}
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return append([]string{}, st.comments...)
}

// ServedImage returns the PNG data clients see for slide n, or
// ErrSlideNotFound.
func (s *Session) ServedImage(n int) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.Served(n)
}
