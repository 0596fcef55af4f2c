package render

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/janelia-flyem/planerender/dvid"
)

// RawPlaneSource supplies raw samples of a dataset.
type RawPlaneSource interface {
	// Extents returns the dimensions of the dataset.
	Extents(ctx context.Context) (dvid.Dims, error)

	// Fetch returns the pixel type and little-endian samples of a channel's plane,
	// restricted to pd.Region if given.  The buffer holds width*height samples in
	// row-major order.  Out-of-range indices return a *dvid.PlaneNotFoundError.
	Fetch(ctx context.Context, channel int, pd dvid.PlaneDef) (dvid.DataType, []byte, error)
}

// BindingsProvider supplies the rendering configuration of a dataset.  The returned
// bindings are treated as an immutable snapshot.
type BindingsProvider interface {
	Bindings(dataset string) ([]ChannelBinding, error)
}

// State is a stage of a render call.
type State uint8

const (
	StateIdle State = iota
	StateValidating
	StateFetching
	StateQuantizing
	StateCompositing
	StateDone
	StateCancelled
	StateFailed
)

var stateNames = [...]string{
	StateIdle:        "idle",
	StateValidating:  "validating",
	StateFetching:    "fetching",
	StateQuantizing:  "quantizing",
	StateCompositing: "compositing",
	StateDone:        "done",
	StateCancelled:   "cancelled",
	StateFailed:      "failed",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Terminal returns true for Done, Cancelled, and Failed.
func (s State) Terminal() bool {
	return s >= StateDone
}

// Config holds the settings of a Renderer.
type Config struct {
	Source RawPlaneSource

	// MaxWorkers caps the number of channels processed at once.  If zero, the
	// number of logical CPUs is used.
	MaxWorkers int

	Model Model

	// OnState, if non-nil, is called on every state transition of a render call.
	OnState func(pd dvid.PlaneDef, s State)
}

// Renderer turns planes of a raw source into images.  It keeps no state across calls
// and can be used concurrently.
type Renderer struct {
	source     RawPlaneSource
	maxWorkers int
	compositor Compositor
	onState    func(dvid.PlaneDef, State)
}

// New returns a Renderer for the configured source.
func New(c Config) (*Renderer, error) {
	if c.Source == nil {
		return nil, fmt.Errorf("renderer requires a raw plane source")
	}
	if c.MaxWorkers < 0 {
		return nil, dvid.NewConfigError("max workers must be non-negative, got %d", c.MaxWorkers)
	}
	maxWorkers := c.MaxWorkers
	if maxWorkers == 0 {
		maxWorkers = runtime.NumCPU()
	}
	return &Renderer{
		source:     c.Source,
		maxWorkers: maxWorkers,
		compositor: Compositor{Model: c.Model},
		onState:    c.OnState,
	}, nil
}

// Model returns the rendering model.
func (r *Renderer) Model() Model {
	return r.compositor.Model
}

// Source returns the raw plane source.
func (r *Renderer) Source() RawPlaneSource {
	return r.source
}

// call tracks the state of a single render call.
type call struct {
	r     *Renderer
	pd    dvid.PlaneDef
	state State
}

func (c *call) to(s State) {
	c.state = s
	if c.r.onState != nil {
		c.r.onState(c.pd, s)
	}
}

func (c *call) fail(err error) error {
	if errors.Is(err, dvid.ErrCancelled) {
		c.to(StateCancelled)
	} else {
		c.to(StateFailed)
	}
	return err
}

func cancelled(ctx context.Context) error {
	return fmt.Errorf("%w: %v", dvid.ErrCancelled, context.Cause(ctx))
}

// Render renders the plane for all active bindings.  On any error no image is
// returned.  If ctx is done before all planes are fetched the call fails with an
// error wrapping dvid.ErrCancelled; once compositing begins it runs to completion.
func (r *Renderer) Render(ctx context.Context, pd dvid.PlaneDef, bindings []ChannelBinding) (*Image, error) {
	timedLog := dvid.NewTimeLog()
	c := &call{r: r, pd: pd}
	c.to(StateIdle)

	c.to(StateValidating)
	if ctx.Err() != nil {
		return nil, c.fail(cancelled(ctx))
	}
	active, err := activeBindings(bindings)
	if err != nil {
		return nil, c.fail(err)
	}
	dims, err := r.source.Extents(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, c.fail(cancelled(ctx))
		}
		return nil, c.fail(err)
	}
	rect, err := pd.Bounds(dims)
	if err != nil {
		return nil, c.fail(err)
	}
	for _, b := range active {
		if b.Channel >= dims.C {
			return nil, c.fail(&dvid.PlaneNotFoundError{Channel: b.Channel, Plane: pd,
				Reason: fmt.Sprintf("channel %d outside [0,%d)", b.Channel, dims.C)})
		}
	}
	if len(active) == 0 {
		c.to(StateDone)
		return NewImage(rect.Width, rect.Height), nil
	}
	if r.compositor.Model == ModelGreyscale {
		active = active[:1]
	}

	// Clip to the region before fetching so only the requested rectangle is read.
	clipped := pd.WithRegion(rect)
	workers := len(active)
	if r.maxWorkers < workers {
		workers = r.maxWorkers
	}

	c.to(StateFetching)
	raws := make([][]byte, len(active))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, b := range active {
		g.Go(func() error {
			raw, err := r.fetch(gctx, clipped, rect, b)
			if err != nil {
				return err
			}
			raws[i] = raw
			return nil
		})
	}
	err = g.Wait()
	if ctx.Err() != nil {
		return nil, c.fail(cancelled(ctx))
	}
	if err != nil {
		return nil, c.fail(err)
	}

	c.to(StateQuantizing)
	outputs := make([]ChannelOutput, len(active))
	var qg errgroup.Group
	qg.SetLimit(workers)
	for i, b := range active {
		qg.Go(func() error {
			out, err := quantizeChannel(b, raws[i], rect.NumPixels())
			if err != nil {
				return err
			}
			outputs[i] = out
			raws[i] = nil
			return nil
		})
	}
	if err := qg.Wait(); err != nil {
		return nil, c.fail(err)
	}
	if ctx.Err() != nil {
		return nil, c.fail(cancelled(ctx))
	}

	c.to(StateCompositing)
	img, err := r.compositor.Composite(outputs, rect.Width, rect.Height)
	if err != nil {
		return nil, c.fail(err)
	}
	c.to(StateDone)
	timedLog.Debugf("Rendered %s with %d channels into %s image", pd, len(active), humanize.Bytes(uint64(len(img.Pix))))
	return img, nil
}

// RenderPackedInt renders the plane as one 0xAARRGGBB word per pixel.
func (r *Renderer) RenderPackedInt(ctx context.Context, pd dvid.PlaneDef, bindings []ChannelBinding) ([]uint32, error) {
	img, err := r.Render(ctx, pd, bindings)
	if err != nil {
		return nil, err
	}
	return img.PackedARGB(), nil
}

// fetch gets a channel's raw plane and checks it against the binding and region.
func (r *Renderer) fetch(ctx context.Context, pd dvid.PlaneDef, rect dvid.Rect, b ChannelBinding) ([]byte, error) {
	dt, raw, err := r.source.Fetch(ctx, b.Channel, pd)
	if err != nil {
		if ctx.Err() != nil {
			return nil, cancelled(ctx)
		}
		var pnf *dvid.PlaneNotFoundError
		var ioe *dvid.IOError
		if errors.As(err, &pnf) || errors.As(err, &ioe) {
			return nil, err
		}
		return nil, &dvid.IOError{Channel: b.Channel, Plane: pd, Err: err}
	}
	if dt.Bytes() != b.PixelType.Bytes() {
		return nil, dvid.NewConfigError("channel %d configured as %s but source holds %s samples",
			b.Channel, b.PixelType, dt)
	}
	if expected := rect.NumPixels() * dt.Bytes(); len(raw) != expected {
		return nil, &dvid.IOError{Channel: b.Channel, Plane: pd,
			Err: fmt.Errorf("got %d bytes, expected %d for %d x %d %s plane", len(raw), expected, rect.Width, rect.Height, dt)}
	}
	return raw, nil
}

// quantizeChannel converts a raw plane into display values using the binding's pixel
// type, which may reinterpret the signedness of the source's samples.
func quantizeChannel(b ChannelBinding, raw []byte, n int) (ChannelOutput, error) {
	window := b.Window
	if b.AutoWindow {
		low, high := b.quantiles()
		var err error
		if window, err = AutoWindow(b.PixelType, raw, low, high); err != nil {
			return ChannelOutput{}, err
		}
	}
	values := make([]uint8, n)
	if err := QuantizePlane(b.PixelType, raw, window, b.Chain, values); err != nil {
		return ChannelOutput{}, &dvid.IOError{Channel: b.Channel, Err: err}
	}
	return ChannelOutput{
		Channel: b.Channel,
		Values:  values,
		Color:   b.Color,
		LUT:     b.LUT,
	}, nil
}
