package slidereview

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	dir := t.TempDir()
	store, err := NewDirStore(filepath.Join(dir, "original_slides"), filepath.Join(dir, "slides"))
	if err != nil {
		t.Fatalf("NewDirStore: %v", err)
	}
	s, err := NewSession(store, nil, nil)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return s
}

// smallDoc returns a document of n slides on a 240x120 px canvas, each with
// its number as text.
func smallDoc(n int) *Document {
	doc := NewDocument(Pixel(240), Pixel(120))
	for i := 1; i <= n; i++ {
		doc.CreateSlide().CreateTextShape(fmt.Sprintf("Slide %d", i)).SetPosition(Pixel(100), Pixel(80))
	}
	return doc
}

func convert(t *testing.T, s *Session, doc *Document) *ConvertResult {
	t.Helper()
	res, err := s.Convert(doc)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	return res
}

func TestSession_Convert(t *testing.T) {
	s := newTestSession(t)
	res := convert(t, s, smallDoc(3))
	if res.SlideCount != 3 || s.SlideCount() != 3 {
		t.Fatalf("slide count = %d / %d, want 3", res.SlideCount, s.SlideCount())
	}
	for n := 1; n <= 3; n++ {
		base, err := os.ReadFile(filepath.Join(s.store.BaseDir(), SlideFileName(n)))
		if err != nil {
			t.Fatalf("base image %d: %v", n, err)
		}
		served, err := s.ServedImage(n)
		if err != nil {
			t.Fatalf("ServedImage(%d): %v", n, err)
		}
		if !bytes.Equal(base, served) {
			t.Errorf("slide %d: served image differs from base before any comment", n)
		}
		if got := s.Comments(n); len(got) != 0 {
			t.Errorf("slide %d: comments = %v, want none", n, got)
		}
	}
	if _, err := s.ServedImage(4); !errors.Is(err, ErrSlideNotFound) {
		t.Errorf("ServedImage(4) error = %v, want ErrSlideNotFound", err)
	}
}

func TestSession_CommentsKeepOrder(t *testing.T) {
	s := newTestSession(t)
	convert(t, s, smallDoc(2))

	for _, c := range []string{"first", "second", "third"} {
		if _, err := s.AddComment(1, c); err != nil {
			t.Fatalf("AddComment(%q): %v", c, err)
		}
	}
	got, err := s.AddComment(1, "fourth")
	if err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	want := []string{"first", "second", "third", "fourth"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("AddComment result mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, s.Comments(1)); diff != "" {
		t.Errorf("Comments mismatch (-want +got):\n%s", diff)
	}
	if got := s.Comments(2); len(got) != 0 {
		t.Errorf("slide 2 comments = %v, want none", got)
	}
}

func TestSession_ServedImageMatchesOverlay(t *testing.T) {
	s := newTestSession(t)
	convert(t, s, smallDoc(1))

	if _, err := s.AddComment(1, "A"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddComment(1, "B"); err != nil {
		t.Fatal(err)
	}

	base, err := s.store.Base(1)
	if err != nil {
		t.Fatalf("Base: %v", err)
	}
	want, err := Overlay(base, []string{"A", "B"}, nil)
	if err != nil {
		t.Fatalf("Overlay: %v", err)
	}
	data, err := s.ServedImage(1)
	if err != nil {
		t.Fatalf("ServedImage: %v", err)
	}
	got, err := DecodePNG(data)
	if err != nil {
		t.Fatalf("DecodePNG: %v", err)
	}
	if n := countPixels(got, got.Bounds(), isRed); n != countPixels(want, want.Bounds(), isRed) {
		t.Errorf("served image has %d red pixels, overlay of the full log has %d", n, countPixels(want, want.Bounds(), isRed))
	}
	if n := countPixels(base, base.Bounds(), isRed); n != 0 {
		t.Errorf("base image gained %d red pixels", n)
	}
}

func TestSession_UnknownSlide(t *testing.T) {
	s := newTestSession(t)
	convert(t, s, smallDoc(2))

	for _, n := range []int{0, -1, 3, 99} {
		if _, err := s.AddComment(n, "x"); !errors.Is(err, ErrSlideNotFound) {
			t.Errorf("AddComment(%d) error = %v, want ErrSlideNotFound", n, err)
		}
		if got := s.Comments(n); got == nil || len(got) != 0 {
			t.Errorf("Comments(%d) = %#v, want empty", n, got)
		}
	}
}

func TestSession_CommentLeftUntouchedWhenBaseMissing(t *testing.T) {
	s := newTestSession(t)
	convert(t, s, smallDoc(1))
	if err := os.Remove(filepath.Join(s.store.BaseDir(), SlideFileName(1))); err != nil {
		t.Fatal(err)
	}

	if _, err := s.AddComment(1, "lost"); !errors.Is(err, ErrSlideNotFound) {
		t.Errorf("AddComment error = %v, want ErrSlideNotFound", err)
	}
	if got := s.Comments(1); len(got) != 0 {
		t.Errorf("comments = %v, want none", got)
	}
}

func TestSession_ConvertResets(t *testing.T) {
	s := newTestSession(t)
	convert(t, s, smallDoc(3))
	if _, err := s.AddComment(2, "old"); err != nil {
		t.Fatal(err)
	}

	convert(t, s, smallDoc(1))
	if s.SlideCount() != 1 {
		t.Fatalf("SlideCount() = %d, want 1", s.SlideCount())
	}
	if got := s.Comments(1); len(got) != 0 {
		t.Errorf("comments after reconvert = %v, want none", got)
	}
	if got := s.Comments(2); len(got) != 0 {
		t.Errorf("stale comments for slide 2: %v", got)
	}
	if _, err := s.ServedImage(2); !errors.Is(err, ErrSlideNotFound) {
		t.Errorf("ServedImage(2) error = %v, want ErrSlideNotFound", err)
	}
	if _, err := s.store.Base(3); !errors.Is(err, ErrSlideNotFound) {
		t.Errorf("base image of the previous generation survived: %v", err)
	}
}

func TestSession_ConvertInvalidCanvas(t *testing.T) {
	s := newTestSession(t)
	convert(t, s, smallDoc(2))

	doc := NewDocument(0, 0)
	doc.CreateSlide()
	if _, err := s.Convert(doc); !errors.Is(err, ErrInvalidCanvas) {
		t.Fatalf("Convert error = %v, want ErrInvalidCanvas", err)
	}
	if s.SlideCount() != 0 {
		t.Errorf("SlideCount() = %d after failed convert, want 0", s.SlideCount())
	}
}

func TestSession_Reset(t *testing.T) {
	s := newTestSession(t)
	convert(t, s, smallDoc(2))
	if _, err := s.AddComment(1, "x"); err != nil {
		t.Fatal(err)
	}

	if err := s.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if s.SlideCount() != 0 {
		t.Errorf("SlideCount() = %d, want 0", s.SlideCount())
	}
	entries, err := os.ReadDir(s.store.ServedDir())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("served directory has %d entries after reset", len(entries))
	}
}

func TestSession_ConcurrentComments(t *testing.T) {
	s := newTestSession(t)
	convert(t, s, smallDoc(2))

	const perSlide = 20
	var wg sync.WaitGroup
	for n := 1; n <= 2; n++ {
		for i := 0; i < perSlide; i++ {
			wg.Add(1)
			go func(n, i int) {
				defer wg.Done()
				if _, err := s.AddComment(n, fmt.Sprintf("c%d", i)); err != nil {
					t.Errorf("AddComment(%d): %v", n, err)
				}
			}(n, i)
		}
	}
	wg.Wait()

	for n := 1; n <= 2; n++ {
		got := s.Comments(n)
		if len(got) != perSlide {
			t.Errorf("slide %d has %d comments, want %d", n, len(got), perSlide)
			continue
		}
		seen := map[string]bool{}
		for _, c := range got {
			seen[c] = true
		}
		if len(seen) != perSlide {
			t.Errorf("slide %d lost or duplicated comments: %v", n, got)
		}
	}
}

func TestSession_CommentsReturnsCopy(t *testing.T) {
	s := newTestSession(t)
	convert(t, s, smallDoc(1))
	got, err := s.AddComment(1, "keep")
	if err != nil {
		t.Fatal(err)
	}
	got[0] = "changed"
	s.Comments(1)[0] = "changed"
	if c := s.Comments(1); c[0] != "keep" {
		t.Errorf("comment log was modified through a returned slice: %v", c)
	}
}

func TestSession_DeckScenario(t *testing.T) {
	s := newTestSession(t)
	doc := readDeck(t, fxDeck{slides: [][]fxShape{
		{textBox("Greeting", 0, 0, "Hello")},
		{picture("Photo", Pixel(300), Pixel(200), Pixel(120), Pixel(80), solidPNG(t, 3, 2, color.RGBA{R: 255, A: 255}))},
	}})
	if res := convert(t, s, doc); res.SlideCount != 2 {
		t.Fatalf("SlideCount = %d, want 2", res.SlideCount)
	}

	slide1, err := s.store.Base(1)
	if err != nil {
		t.Fatal(err)
	}
	if n := countPixels(slide1, image.Rect(0, 0, 40, 16), isBlack); n == 0 {
		t.Error("slide 1 has no black text near the top-left")
	}
	slide2, err := s.store.Base(2)
	if err != nil {
		t.Fatal(err)
	}
	if n := countPixels(slide2, image.Rect(300, 200, 420, 280), isRed); n != 120*80 {
		t.Errorf("slide 2 placement has %d red pixels, want %d", n, 120*80)
	}

	for _, c := range []string{"Looks good", "Fix title"} {
		if _, err := s.AddComment(1, c); err != nil {
			t.Fatal(err)
		}
	}
	if diff := cmp.Diff([]string{"Looks good", "Fix title"}, s.Comments(1)); diff != "" {
		t.Errorf("comments mismatch (-want +got):\n%s", diff)
	}
	data, err := s.ServedImage(1)
	if err != nil {
		t.Fatal(err)
	}
	served, err := DecodePNG(data)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		top := CommentMarginTop + i*CommentLineHeight
		if n := countPixels(served, image.Rect(CommentMarginLeft, top, 200, top+16), isRed); n == 0 {
			t.Errorf("served image has no red pixels on comment line %d", i+1)
		}
	}
}

func TestNewSession_NilStore(t *testing.T) {
	if _, err := NewSession(nil, nil, nil); err == nil {
		t.Error("expected error for nil store")
	}
}
