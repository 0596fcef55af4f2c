// Command-line interface for ingesting, serving, and rendering multi-channel planes.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strconv"
	"strings"
	"syscall"

	"github.com/janelia-flyem/planerender/dvid"
	"github.com/janelia-flyem/planerender/render"
	"github.com/janelia-flyem/planerender/server"
	"github.com/janelia-flyem/planerender/storage"
	"github.com/janelia-flyem/planerender/storage/badger"
)

var (
	// Display usage if true.
	showHelp = flag.Bool("help", false, "")

	// Run in verbose mode if true.
	runVerbose = flag.Bool("verbose", false, "")

	// Compression of planes stored by ingest.
	compression = flag.String("compression", "snappy", "")

	// Output format for render.  If unset, taken from the output file's extension.
	format = flag.String("format", "", "")

	// Sub-rectangle of a rendered plane.
	roi = flag.String("roi", "", "")
)

const helpMessage = `
planerender renders multi-channel microscopy planes into color images

Usage: planerender [options] <command>

      -compression =string  Compression for ingested planes: snappy, zstd, or none.
      -format      =string  Image format for render: png, jpg[:quality], tif, bmp, or argb.
      -roi         =string  Render only the region x,y,width,height of the plane.
      -verbose     (flag)   Run in verbose mode.
  -h, -help        (flag)   Show help message

Commands:

	about
	help
	serve  <config.toml>
	ingest <store path> <dataset> <x,y,z,c,t> <pixel type> <raw file>
	render <config.toml> <dataset> <plane> <coord> <t> <output file>

The raw file given to ingest holds little-endian samples of XY planes ordered by time
point, then channel, then z.  Pixel types are uint8, int8, uint16, int16, uint32, int32,
float32, and float64.  Planes are "xy", "zy", or "xz", and coord is the index along the
axis normal to the plane.
`

var usage = func() {
	fmt.Print(helpMessage)
}

func main() {
	flag.BoolVar(showHelp, "h", false, "Show help message")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() >= 1 && strings.ToLower(flag.Args()[0]) == "help" {
		*showHelp = true
	}
	if *runVerbose {
		dvid.Verbose = true
		dvid.SetLogMode(dvid.DebugMode)
	}
	if *showHelp || flag.NArg() == 0 {
		flag.Usage()
		os.Exit(0)
	}

	// Capture ctrl+c and other interrupts.  Then handle graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := DoCommand(ctx, flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

// DoCommand serves as a switchboard for commands.
func DoCommand(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("blank command")
	}
	switch args[0] {
	case "serve":
		return DoServe(ctx, args[1:])
	case "ingest":
		return DoIngest(ctx, args[1:])
	case "render":
		return DoRender(ctx, args[1:])
	case "about":
		fmt.Println(about())
		return nil
	default:
		return fmt.Errorf("unknown command %q, see 'planerender help'", args[0])
	}
}

func about() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "planerender running on %s/%s with %d CPUs, %s\n", runtime.GOOS, runtime.GOARCH, runtime.NumCPU(), runtime.Version())
	if bi, ok := debug.ReadBuildInfo(); ok {
		fmt.Fprintf(&sb, "%s %s\n", bi.Main.Path, bi.Main.Version)
		for _, dep := range bi.Deps {
			fmt.Fprintf(&sb, "  %-50s %s\n", dep.Path, dep.Version)
		}
	}
	return sb.String()
}

// openServer loads the configuration and opens its store.
func openServer(configPath string) (*server.Server, *server.Config, error) {
	c, err := server.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	if err := c.Logging.SetLogger(); err != nil {
		return nil, nil, err
	}
	if c.Store.Path == "" {
		return nil, nil, fmt.Errorf("no [store] path given in %s", configPath)
	}
	store, err := badger.Open(c.Store.Path, c.Compression())
	if err != nil {
		return nil, nil, err
	}
	s, err := server.New(c, store)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return s, c, nil
}

// DoServe runs the web server until interrupted.
func DoServe(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("serve requires a TOML configuration file")
	}
	s, _, err := openServer(args[0])
	if err != nil {
		return err
	}
	defer s.Close()
	return s.Serve(ctx)
}

// DoIngest stores a raw file as a new dataset.
func DoIngest(ctx context.Context, args []string) error {
	if len(args) != 5 {
		return fmt.Errorf("ingest requires <store path> <dataset> <x,y,z,c,t> <pixel type> <raw file>")
	}
	storePath, name, dimsStr, typeStr, rawPath := args[0], args[1], args[2], args[3], args[4]
	dims, err := dvid.ParseDims(dimsStr, ",")
	if err != nil {
		return err
	}
	dt, err := dvid.ParseDataType(typeStr)
	if err != nil {
		return err
	}
	compress, err := dvid.ParseCompression(*compression)
	if err != nil {
		return err
	}
	info := storage.DatasetInfo{Name: name, Dims: dims, PixelType: dt}
	if err := info.Check(); err != nil {
		return err
	}

	f, err := os.Open(rawPath)
	if err != nil {
		return err
	}
	defer f.Close()
	if fi, err := f.Stat(); err == nil {
		expected := int64(info.PlaneBytes()) * int64(dims.Z*dims.C*dims.T)
		if fi.Size() != expected {
			return fmt.Errorf("raw file %s has %d bytes, expected %d for %s", rawPath, fi.Size(), expected, info)
		}
	}

	store, err := badger.Open(storePath, compress)
	if err != nil {
		return err
	}
	defer store.Close()
	info, err = store.Ingest(ctx, info, f)
	if err != nil {
		return err
	}
	fmt.Printf("Ingested %s with UUID %s; store now uses %s\n", info, info.UUID, store.Usage())
	return nil
}

// DoRender renders one plane into an image file.
func DoRender(ctx context.Context, args []string) error {
	if len(args) != 6 {
		return fmt.Errorf("render requires <config.toml> <dataset> <plane> <coord> <t> <output file>")
	}
	configPath, name, planeStr, coordStr, tStr, outPath := args[0], args[1], args[2], args[3], args[4], args[5]
	o, err := dvid.ParseOrientation(planeStr)
	if err != nil {
		return err
	}
	coord, err := strconv.Atoi(coordStr)
	if err != nil {
		return fmt.Errorf("bad plane coordinate %q", coordStr)
	}
	t, err := strconv.Atoi(tStr)
	if err != nil {
		return fmt.Errorf("bad time point %q", tStr)
	}
	pd := dvid.NewPlaneDef(o, coord, t)
	if *roi != "" {
		rect, err := dvid.ParseRect(*roi)
		if err != nil {
			return err
		}
		pd = pd.WithRegion(rect)
	}

	s, c, err := openServer(configPath)
	if err != nil {
		return err
	}
	defer s.Close()

	f, err := outputFormat(outPath, c)
	if err != nil {
		return err
	}
	timedLog := dvid.NewTimeLog()
	img, err := s.Render(ctx, name, pd)
	if err != nil {
		return err
	}
	data, err := img.EncodeBytes(f)
	if err != nil {
		return err
	}
	if err := os.WriteFile(outPath, data, 0644); err != nil {
		return err
	}
	timedLog.Infof("Wrote %d x %d %s image of %s to %s\n", img.Width, img.Height, f, pd, outPath)
	return nil
}

// outputFormat returns the -format flag, else the format named by the file extension,
// else the configured default.
func outputFormat(outPath string, c *server.Config) (render.Format, error) {
	if *format != "" {
		return render.ParseFormat(*format)
	}
	if ext := strings.TrimPrefix(filepath.Ext(outPath), "."); ext != "" {
		if f, err := render.ParseFormat(ext); err == nil {
			return f, nil
		}
	}
	return c.Format()
}
