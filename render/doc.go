/*
Package render turns raw planes of a multi-channel dataset into displayable images.

Each active channel's plane is fetched from a RawPlaneSource, quantized from its raw
pixel type into [0,255] using the channel's window, passed through its chain of
codomain maps, and composited with the other channels into an RGBA image.

	r, err := render.New(render.Config{Source: src, MaxWorkers: 4})
	...
	img, err := r.Render(ctx, dvid.NewPlaneDef(dvid.XY, z, t), bindings)

Channels are fetched and quantized concurrently, bounded by MaxWorkers, and all
channels must finish before compositing begins.  Compositing is additive: each
output component is the saturating sum of every channel's colored contribution, so
the image does not depend on channel order.
*/
package render
