package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/janelia-flyem/planerender/dvid"
)

// testSource returns planes where every sample of channel c equals values[c].
type testSource struct {
	dims   dvid.Dims
	dt     dvid.DataType
	values []float64

	delay   time.Duration
	block   chan struct{}
	started chan struct{}
	err     error
	short   bool

	fetches   int32
	active    int32
	maxActive int32
}

func (s *testSource) Extents(ctx context.Context) (dvid.Dims, error) {
	return s.dims, nil
}

func (s *testSource) Fetch(ctx context.Context, channel int, pd dvid.PlaneDef) (dvid.DataType, []byte, error) {
	atomic.AddInt32(&s.fetches, 1)
	n := atomic.AddInt32(&s.active, 1)
	defer atomic.AddInt32(&s.active, -1)
	for {
		m := atomic.LoadInt32(&s.maxActive)
		if n <= m || atomic.CompareAndSwapInt32(&s.maxActive, m, n) {
			break
		}
	}
	if s.started != nil {
		select {
		case s.started <- struct{}{}:
		default:
		}
	}
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return 0, nil, ctx.Err()
		}
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.err != nil {
		return 0, nil, s.err
	}
	if pd.Region == nil {
		return 0, nil, fmt.Errorf("expected renderer to always pass a region")
	}
	n2 := pd.Region.NumPixels()
	if s.short {
		n2--
	}
	raw := make([]byte, n2*s.dt.Bytes())
	for i := 0; i < n2; i++ {
		s.dt.PutValue(raw, i, s.values[channel])
	}
	return s.dt, raw, nil
}

func newTestRenderer(t *testing.T, src RawPlaneSource, maxWorkers int) *Renderer {
	r, err := New(Config{Source: src, MaxWorkers: maxWorkers})
	if err != nil {
		t.Fatalf("error creating renderer: %v\n", err)
	}
	return r
}

func binding(c int, dt dvid.DataType, w Window, color RGB) ChannelBinding {
	return ChannelBinding{Channel: c, Active: true, PixelType: dt, Window: w, Color: color}
}

func TestRenderGrey(t *testing.T) {
	src := &testSource{dims: dvid.Dims{X: 4, Y: 3, Z: 2, C: 1, T: 1}, dt: dvid.T_uint8, values: []float64{128}}
	r := newTestRenderer(t, src, 0)
	bindings := []ChannelBinding{binding(0, dvid.T_uint8, Window{0, 255}, White)}
	img, err := r.Render(context.Background(), dvid.NewPlaneDef(dvid.XY, 1, 0), bindings)
	if err != nil {
		t.Fatalf("error rendering: %v\n", err)
	}
	if img.Width != 4 || img.Height != 3 {
		t.Fatalf("expected 4 x 3 image, got %d x %d\n", img.Width, img.Height)
	}
	if r, g, b, a := img.RGBA(3, 2); r != 128 || g != 128 || b != 128 || a != 255 {
		t.Errorf("expected (128,128,128,255), got (%d,%d,%d,%d)\n", r, g, b, a)
	}

	packed, err := r.RenderPackedInt(context.Background(), dvid.NewPlaneDef(dvid.XY, 1, 0), bindings)
	if err != nil {
		t.Fatalf("error rendering packed: %v\n", err)
	}
	if len(packed) != 12 || packed[0] != 0xFF808080 {
		t.Errorf("bad packed result: %d words, first %08x\n", len(packed), packed[0])
	}
}

func TestRenderRedGreen(t *testing.T) {
	src := &testSource{dims: dvid.Dims{X: 8, Y: 8, Z: 1, C: 2, T: 1}, dt: dvid.T_uint16, values: []float64{4095, 4095}}
	r := newTestRenderer(t, src, 2)
	bindings := []ChannelBinding{
		binding(0, dvid.T_uint16, Window{0, 4095}, Red),
		binding(1, dvid.T_uint16, Window{0, 4095}, Green),
	}
	img, err := r.Render(context.Background(), dvid.NewPlaneDef(dvid.XY, 0, 0), bindings)
	if err != nil {
		t.Fatalf("error rendering: %v\n", err)
	}
	if r, g, b, a := img.RGBA(5, 5); r != 255 || g != 255 || b != 0 || a != 255 {
		t.Errorf("expected yellow, got (%d,%d,%d,%d)\n", r, g, b, a)
	}
}

func TestRenderRegionAndOrientation(t *testing.T) {
	src := &testSource{dims: dvid.Dims{X: 20, Y: 10, Z: 6, C: 1, T: 2}, dt: dvid.T_float32, values: []float64{0.5}}
	r := newTestRenderer(t, src, 1)
	bindings := []ChannelBinding{binding(0, dvid.T_float32, Window{0, 1}, White)}

	tests := []struct {
		pd         dvid.PlaneDef
		w, h       int
		shouldFail bool
	}{
		{dvid.NewPlaneDef(dvid.XY, 5, 1), 20, 10, false},
		{dvid.NewPlaneDef(dvid.ZY, 19, 0), 6, 10, false},
		{dvid.NewPlaneDef(dvid.XZ, 9, 0), 20, 6, false},
		{dvid.NewPlaneDef(dvid.XY, 0, 0).WithRegion(dvid.Rect{X: 2, Y: 3, Width: 4, Height: 5}), 4, 5, false},
		{dvid.NewPlaneDef(dvid.ZY, 0, 0).WithRegion(dvid.Rect{X: 5, Y: 0, Width: 1, Height: 10}), 1, 10, false},
		{dvid.NewPlaneDef(dvid.XY, 0, 0).WithRegion(dvid.Rect{X: 18, Y: 0, Width: 4, Height: 5}), 0, 0, true},
	}
	for _, tc := range tests {
		img, err := r.Render(context.Background(), tc.pd, bindings)
		if tc.shouldFail {
			if !dvid.IsConfigError(err) {
				t.Errorf("%s: expected config error, got %v\n", tc.pd, err)
			}
			if img != nil {
				t.Errorf("%s: expected no image on failure\n", tc.pd)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: error rendering: %v\n", tc.pd, err)
		}
		if img.Width != tc.w || img.Height != tc.h || len(img.Pix) != 4*tc.w*tc.h {
			t.Errorf("%s: expected %d x %d image, got %d x %d\n", tc.pd, tc.w, tc.h, img.Width, img.Height)
		}
		if v, _, _, _ := img.RGBA(0, 0); v != 128 {
			t.Errorf("%s: expected intensity 128, got %d\n", tc.pd, v)
		}
	}
}

func TestRenderPlaneNotFound(t *testing.T) {
	src := &testSource{dims: dvid.Dims{X: 4, Y: 4, Z: 3, C: 2, T: 1}, dt: dvid.T_uint8, values: []float64{1, 2}}
	r := newTestRenderer(t, src, 0)

	bindings := []ChannelBinding{binding(3, dvid.T_uint8, Window{0, 255}, White)}
	if _, err := r.Render(context.Background(), dvid.NewPlaneDef(dvid.XY, 0, 0), bindings); !dvid.IsPlaneNotFound(err) {
		t.Errorf("expected plane not found for channel 3, got %v\n", err)
	}
	bindings = []ChannelBinding{binding(0, dvid.T_uint8, Window{0, 255}, White)}
	for _, pd := range []dvid.PlaneDef{
		dvid.NewPlaneDef(dvid.XY, 3, 0),
		dvid.NewPlaneDef(dvid.XY, -1, 0),
		dvid.NewPlaneDef(dvid.ZY, 4, 0),
		dvid.NewPlaneDef(dvid.XY, 0, 1),
	} {
		if _, err := r.Render(context.Background(), pd, bindings); !dvid.IsPlaneNotFound(err) {
			t.Errorf("expected plane not found for %s, got %v\n", pd, err)
		}
	}
	if src.fetches != 0 {
		t.Errorf("expected no fetches for invalid requests, got %d\n", src.fetches)
	}
}

func TestRenderInactiveIgnored(t *testing.T) {
	src := &testSource{dims: dvid.Dims{X: 2, Y: 2, Z: 1, C: 1, T: 1}, dt: dvid.T_uint8, values: []float64{255}}
	r := newTestRenderer(t, src, 0)
	bindings := []ChannelBinding{
		binding(0, dvid.T_uint8, Window{0, 255}, Blue),
		{Channel: 7, Active: false, PixelType: dvid.T_uint8, Window: Window{10, 5}},
	}
	img, err := r.Render(context.Background(), dvid.NewPlaneDef(dvid.XY, 0, 0), bindings)
	if err != nil {
		t.Fatalf("inactive channel should not matter: %v\n", err)
	}
	if r, g, b, _ := img.RGBA(1, 1); r != 0 || g != 0 || b != 255 {
		t.Errorf("expected blue, got (%d,%d,%d)\n", r, g, b)
	}
	if src.fetches != 1 {
		t.Errorf("expected 1 fetch, got %d\n", src.fetches)
	}

	bindings[0].Active = false
	img, err = r.Render(context.Background(), dvid.NewPlaneDef(dvid.XY, 0, 0), bindings)
	if err != nil {
		t.Fatalf("error rendering with no active channels: %v\n", err)
	}
	if len(img.Pix) != 16 || !bytes.Equal(img.Pix, make([]byte, 16)) {
		t.Errorf("expected fully zero image with no active channels\n")
	}
}

func TestRenderConfigErrors(t *testing.T) {
	src := &testSource{dims: dvid.Dims{X: 2, Y: 2, Z: 1, C: 1, T: 1}, dt: dvid.T_uint16, values: []float64{5}}
	r := newTestRenderer(t, src, 0)
	pd := dvid.NewPlaneDef(dvid.XY, 0, 0)
	for _, b := range []ChannelBinding{
		binding(0, dvid.T_uint16, Window{100, 10}, White),
		binding(0, dvid.T_uint16, Window{0, 70000}, White),
		binding(0, dvid.T_uint8, Window{0, 255}, White), // wrong sample width
		{Channel: -1, Active: true, PixelType: dvid.T_uint16, Window: Window{0, 1}},
		{Channel: 0, Active: true, PixelType: dvid.T_uint16, AutoWindow: true, AutoLow: 0.9, AutoHigh: 0.1},
	} {
		if _, err := r.Render(context.Background(), pd, []ChannelBinding{b}); !dvid.IsConfigError(err) {
			t.Errorf("expected config error for %s, got %v\n", b, err)
		}
	}

	// Same width, different signedness is allowed.
	b := binding(0, dvid.T_int16, Window{-10, 10}, White)
	if _, err := r.Render(context.Background(), pd, []ChannelBinding{b}); err != nil {
		t.Errorf("reinterpreting uint16 as int16 should work: %v\n", err)
	}

	if _, err := New(Config{}); err == nil {
		t.Errorf("expected error creating renderer without source\n")
	}
	if _, err := New(Config{Source: src, MaxWorkers: -1}); err == nil {
		t.Errorf("expected error creating renderer with negative workers\n")
	}
}

func TestRenderIOError(t *testing.T) {
	pd := dvid.NewPlaneDef(dvid.XY, 0, 0)
	bindings := []ChannelBinding{binding(0, dvid.T_uint8, Window{0, 255}, White)}

	failure := errors.New("disk on fire")
	src := &testSource{dims: dvid.Dims{X: 2, Y: 2, Z: 1, C: 1, T: 1}, dt: dvid.T_uint8, values: []float64{1}, err: failure}
	r := newTestRenderer(t, src, 0)
	img, err := r.Render(context.Background(), pd, bindings)
	if !dvid.IsIOError(err) || !errors.Is(err, failure) {
		t.Errorf("expected IO error wrapping source failure, got %v\n", err)
	}
	if img != nil {
		t.Errorf("expected no image on IO error\n")
	}

	src = &testSource{dims: dvid.Dims{X: 2, Y: 2, Z: 1, C: 1, T: 1}, dt: dvid.T_uint8, values: []float64{1}, short: true}
	r = newTestRenderer(t, src, 0)
	if _, err := r.Render(context.Background(), pd, bindings); !dvid.IsIOError(err) {
		t.Errorf("expected IO error on short plane, got %v\n", err)
	}
}

func TestRenderWorkerBound(t *testing.T) {
	const numChannels = 8
	values := make([]float64, numChannels)
	bindings := make([]ChannelBinding, numChannels)
	for c := range bindings {
		values[c] = float64(c)
		bindings[c] = binding(c, dvid.T_uint8, Window{0, 255}, White)
	}
	src := &testSource{
		dims:   dvid.Dims{X: 4, Y: 4, Z: 1, C: numChannels, T: 1},
		dt:     dvid.T_uint8,
		values: values,
		delay:  10 * time.Millisecond,
	}
	r := newTestRenderer(t, src, 3)
	img, err := r.Render(context.Background(), dvid.NewPlaneDef(dvid.XY, 0, 0), bindings)
	if err != nil {
		t.Fatalf("error rendering: %v\n", err)
	}
	if src.fetches != numChannels {
		t.Errorf("expected %d fetches, got %d\n", numChannels, src.fetches)
	}
	if src.maxActive > 3 {
		t.Errorf("expected at most 3 concurrent fetches, got %d\n", src.maxActive)
	}
	// Sum of 0..7 = 28
	if v, _, _, _ := img.RGBA(0, 0); v != 28 {
		t.Errorf("expected additive intensity 28, got %d\n", v)
	}
}

type stateRecorder struct {
	sync.Mutex
	states []State
}

func (s *stateRecorder) record(pd dvid.PlaneDef, st State) {
	s.Lock()
	s.states = append(s.states, st)
	s.Unlock()
}

func (s *stateRecorder) last() State {
	s.Lock()
	defer s.Unlock()
	return s.states[len(s.states)-1]
}

func TestRenderStates(t *testing.T) {
	src := &testSource{dims: dvid.Dims{X: 2, Y: 2, Z: 1, C: 1, T: 1}, dt: dvid.T_uint8, values: []float64{1}}
	rec := &stateRecorder{}
	r, err := New(Config{Source: src, OnState: rec.record})
	if err != nil {
		t.Fatalf("error creating renderer: %v\n", err)
	}
	bindings := []ChannelBinding{binding(0, dvid.T_uint8, Window{0, 255}, White)}
	if _, err := r.Render(context.Background(), dvid.NewPlaneDef(dvid.XY, 0, 0), bindings); err != nil {
		t.Fatalf("error rendering: %v\n", err)
	}
	expected := []State{StateIdle, StateValidating, StateFetching, StateQuantizing, StateCompositing, StateDone}
	if fmt.Sprint(rec.states) != fmt.Sprint(expected) {
		t.Errorf("expected states %v, got %v\n", expected, rec.states)
	}

	rec.states = nil
	if _, err := r.Render(context.Background(), dvid.NewPlaneDef(dvid.XY, 2, 0), bindings); err == nil {
		t.Fatalf("expected error rendering out of range plane\n")
	}
	if rec.last() != StateFailed || !rec.last().Terminal() {
		t.Errorf("expected failed terminal state, got %v\n", rec.states)
	}
}

func TestRenderCancel(t *testing.T) {
	src := &testSource{
		dims:    dvid.Dims{X: 2, Y: 2, Z: 1, C: 2, T: 1},
		dt:      dvid.T_uint8,
		values:  []float64{1, 2},
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	rec := &stateRecorder{}
	r, err := New(Config{Source: src, OnState: rec.record})
	if err != nil {
		t.Fatalf("error creating renderer: %v\n", err)
	}
	bindings := []ChannelBinding{
		binding(0, dvid.T_uint8, Window{0, 255}, Red),
		binding(1, dvid.T_uint8, Window{0, 255}, Green),
	}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-src.started
		cancel()
	}()
	img, err := r.Render(ctx, dvid.NewPlaneDef(dvid.XY, 0, 0), bindings)
	if !errors.Is(err, dvid.ErrCancelled) {
		t.Fatalf("expected cancellation, got %v\n", err)
	}
	if img != nil {
		t.Errorf("expected no image after cancellation\n")
	}
	if rec.last() != StateCancelled {
		t.Errorf("expected cancelled state, got %v\n", rec.states)
	}

	// Already cancelled context never reaches the source.
	fetches := atomic.LoadInt32(&src.fetches)
	if _, err := r.Render(ctx, dvid.NewPlaneDef(dvid.XY, 0, 0), bindings); !errors.Is(err, dvid.ErrCancelled) {
		t.Errorf("expected cancellation with done context, got %v\n", err)
	}
	if atomic.LoadInt32(&src.fetches) != fetches {
		t.Errorf("expected no fetch with done context\n")
	}
}

func TestRenderDeterministic(t *testing.T) {
	src := &testSource{dims: dvid.Dims{X: 16, Y: 16, Z: 1, C: 3, T: 1}, dt: dvid.T_int16, values: []float64{-100, 50, 3000}}
	r := newTestRenderer(t, src, 0)
	gamma, _ := NewGamma(2.2)
	chain, _ := NewChain(gamma, ReverseIntensity{})
	bindings := []ChannelBinding{
		binding(0, dvid.T_int16, Window{-200, 200}, Red),
		binding(1, dvid.T_int16, Window{0, 100}, RGB{0, 128, 255}),
		binding(2, dvid.T_int16, Window{0, 4000}, White),
	}
	bindings[1].Chain = chain
	first, err := r.Render(context.Background(), dvid.NewPlaneDef(dvid.XY, 0, 0), bindings)
	if err != nil {
		t.Fatalf("error rendering: %v\n", err)
	}
	for i := 0; i < 5; i++ {
		img, err := r.Render(context.Background(), dvid.NewPlaneDef(dvid.XY, 0, 0), bindings)
		if err != nil {
			t.Fatalf("error rendering: %v\n", err)
		}
		if !bytes.Equal(img.Pix, first.Pix) {
			t.Fatalf("render %d differs from first render\n", i)
		}
	}
}

func TestRenderGreyscaleModel(t *testing.T) {
	src := &testSource{dims: dvid.Dims{X: 2, Y: 2, Z: 1, C: 2, T: 1}, dt: dvid.T_uint8, values: []float64{60, 200}}
	r, err := New(Config{Source: src, Model: ModelGreyscale})
	if err != nil {
		t.Fatalf("error creating renderer: %v\n", err)
	}
	bindings := []ChannelBinding{
		binding(0, dvid.T_uint8, Window{0, 255}, Red),
		binding(1, dvid.T_uint8, Window{0, 255}, Green),
	}
	img, err := r.Render(context.Background(), dvid.NewPlaneDef(dvid.XY, 0, 0), bindings)
	if err != nil {
		t.Fatalf("error rendering: %v\n", err)
	}
	if r, g, b, _ := img.RGBA(0, 0); r != 60 || g != 60 || b != 60 {
		t.Errorf("expected grey 60, got (%d,%d,%d)\n", r, g, b)
	}
	if src.fetches != 1 {
		t.Errorf("greyscale should fetch only the first active channel, got %d fetches\n", src.fetches)
	}
}
