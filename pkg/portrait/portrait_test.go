package portrait

import (
	"context"
	"errors"
	"image"
	"math"
	"image/color"
	"sync/atomic"
	"testing"
	"time"

	"github.com/disintegration/imaging"

	"crucible/pkg/fingerprint"
)

func solid(v uint8) fingerprint.Fingerprint {
	return fingerprint.Build(imaging.New(8, 8, color.NRGBA{v, v, v, 255}), 16)
}

func TestMatchEmptyLibrary(t *testing.T) {
	m := NewMatcher(0)
	for _, lib := range []*Library{nil, NewLibrary(nil, 16)} {
		got := m.Match(solid(120), lib)
		if got.Name != "" || got.Found || got.Compared {
			t.Fatalf("expected empty match got %+v", got)
		}
	}
}

func TestMatchIdentical(t *testing.T) {
	lib := NewLibrary([]Entry{
		{Name: "Iron Fist", Fingerprint: solid(30)},
		{Name: "Sword Master", Fingerprint: solid(200)},
	}, 16)
	got := NewMatcher(0.12).Match(solid(200), lib)
	if got.Name != "Sword Master" || got.Distance != 0 || !got.Found {
		t.Fatalf("expected exact match got %+v", got)
	}
}

func TestMatchRejectsDistant(t *testing.T) {
	lib := NewLibrary([]Entry{{Name: "Steel Serpent", Fingerprint: solid(0)}}, 16)
	got := NewMatcher(0.12).Match(solid(255), lib)
	if got.Name != "" || got.Found {
		t.Fatalf("expected rejection got %+v", got)
	}
	if !got.Compared || got.Distance < 0.99 {
		t.Fatalf("expected best distance reported, got %+v", got)
	}
}

func TestMatchThresholdBoundary(t *testing.T) {
	base := make(fingerprint.Fingerprint, 4)
	near := fingerprint.Fingerprint{0.1, 0.1, 0.1, 0.1}
	lib := NewLibrary([]Entry{{Name: "Lady Deathstrike", Fingerprint: near}}, 2)
	if got := NewMatcher(0.1).Match(base, lib); !got.Found {
		t.Fatalf("distance equal to the threshold should match: %+v", got)
	}
	if got := NewMatcher(0.09).Match(base, lib); got.Found {
		t.Fatalf("distance above threshold should not match: %+v", got)
	}
}

func TestMatchTieKeepsFirst(t *testing.T) {
	lib := NewLibrary([]Entry{
		{Name: "Iron Fist", Fingerprint: solid(100)},
		{Name: "Iron Fist WWII", Fingerprint: solid(100)},
	}, 16)
	got := NewMatcher(0).Match(solid(100), lib)
	if got.Name != "Iron Fist" {
		t.Fatalf("tie should resolve to the first entry, got %q", got.Name)
	}
}

func TestMatchLengthMismatch(t *testing.T) {
	lib := NewLibrary([]Entry{{Name: "x", Fingerprint: solid(10)}}, 16)
	got := NewMatcher(0).Match(fingerprint.Fingerprint{0, 0, 0, 0}, lib)
	if got.Found || got.Compared {
		t.Fatalf("mismatched fingerprint must not match: %+v", got)
	}
}

func TestNewLibraryDropsWrongSize(t *testing.T) {
	lib := NewLibrary([]Entry{
		{Name: "ok", Fingerprint: solid(1)},
		{Name: "bad", Fingerprint: fingerprint.Fingerprint{1, 2}},
	}, 16)
	if lib.Len() != 1 || lib.Entry(0).Name != "ok" {
		t.Fatalf("unexpected library %v", lib.Names())
	}
}

func TestLoadLibraryKeepsConfigOrder(t *testing.T) {
	refs := []Reference{
		{Name: "slow", URL: "slow"},
		{Name: "broken", URL: "broken"},
		{Name: "fast", URL: "fast"},
	}
	var calls int32
	open := func(ctx context.Context, src string) (image.Image, error) {
		atomic.AddInt32(&calls, 1)
		switch src {
		case "slow":
			time.Sleep(20 * time.Millisecond)
			return imaging.New(4, 4, color.NRGBA{10, 10, 10, 255}), nil
		case "broken":
			return nil, errors.New("boom")
		}
		return imaging.New(4, 4, color.NRGBA{240, 240, 240, 255}), nil
	}
	lib, err := LoadLibrary(context.Background(), refs, WithOpener(open), WithWorkers(3), WithSize(8))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 loads got %d", calls)
	}
	names := lib.Names()
	if len(names) != 2 || names[0] != "slow" || names[1] != "fast" {
		t.Fatalf("expected [slow fast] got %v", names)
	}
	if lib.Size() != 8 || len(lib.Entry(0).Fingerprint) != 64 {
		t.Fatalf("unexpected size %d", lib.Size())
	}
}

func TestLoadLibraryAllFail(t *testing.T) {
	open := func(ctx context.Context, src string) (image.Image, error) { return nil, errors.New("nope") }
	lib, err := LoadLibrary(context.Background(), []Reference{{Name: "a", URL: "a"}}, WithOpener(open))
	if !errors.Is(err, ErrEmptyLibrary) {
		t.Fatalf("expected ErrEmptyLibrary got %v", err)
	}
	if lib.Len() != 0 {
		t.Fatalf("expected empty library")
	}
	lib, err = LoadLibrary(context.Background(), nil)
	if err != nil || lib.Len() != 0 {
		t.Fatalf("no references should give an empty library without error: %v", err)
	}
}

func TestMatchNonFiniteThresholdUsesDefault(t *testing.T) {
	base := make(fingerprint.Fingerprint, 4)
	far := fingerprint.Fingerprint{1, 1, 1, 1}
	lib := NewLibrary([]Entry{{Name: "Sabretooth", Fingerprint: far}}, 2)
	for _, th := range []float64{math.NaN(), math.Inf(1)} {
		if got := NewMatcher(th).Match(base, lib); got.Found {
			t.Fatalf("threshold %v accepted a distant entry: %+v", th, got)
		}
		if got := (Matcher{Threshold: th}).Match(base, lib); got.Found {
			t.Fatalf("zero-value matcher with threshold %v accepted a distant entry: %+v", th, got)
		}
	}
}
