/*
Package planerender renders 2d planes of multi-channel microscopy volumes into color images.

A dataset is a 5d volume of raw samples indexed by (x, y, z, channel, time) and stored as
XY planes.  Each channel has a binding that says how its samples become display values:
an intensity window mapped linearly onto 0..255, an optional chain of codomain maps
(reverse, gamma, lookup table), and a display color or color LUT.  Rendering a plane fetches
the plane of every active channel, quantizes each one, and adds the colored channels into
one RGBA image.

Packages

	dvid         pixel types, plane geometry, errors, serialization, and logging
	render       quantization, codomain maps, compositing, and the concurrent renderer
	storage      raw plane sources: an in-memory store and a Badger-backed store
	rendercache  a cache of rendered images shared by the renderers of all datasets
	settings     per-dataset channel settings read from JSON or YAML files
	server       the HTTP API and its TOML configuration

Commands that can be performed with the planerender executable

In the following documentation, the type of brackets designate
<required parameter> and [optional parameter].

	planerender about

Prints the Go version and the dependencies of the executable.

	planerender [-compression=snappy] ingest <store path> <dataset> <x,y,z,c,t> <pixel type> <raw file>

Stores a raw file of little-endian samples, ordered as XY planes by time point, then
channel, then z, as a dataset in a Badger store.

	planerender serve <config.toml>

Serves the HTTP API for the datasets in the configured store.  Renders are requested as

	GET /api/dataset/<dataset>/render/<plane>/<coord>/<t>[?roi=x,y,w,h&format=png]

	planerender [-format=png] [-roi=x,y,w,h] render <config.toml> <dataset> <plane> <coord> <t> <output file>

Renders one plane into an image file.
*/
package planerender
