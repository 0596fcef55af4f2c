package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/cors"
	"github.com/twinj/uuid"
	"github.com/zenazn/goji/web"
	"github.com/zenazn/goji/web/middleware"

	"github.com/janelia-flyem/planerender/dvid"
	"github.com/janelia-flyem/planerender/render"
	"github.com/janelia-flyem/planerender/storage"
)

// WebAPIPath is the prefix of all HTTP API routes.
const WebAPIPath = "/api/"

const webHelp = `
planerender HTTP API

GET  /api/help
	Returns this help.

GET  /api/server/info
	Returns JSON with the server note, uptime, datasets, and render cache statistics.

GET  /api/dataset/<dataset>/info
	Returns JSON with the extents, pixel type, rendering model, and channel settings
	of a dataset.

GET  /api/dataset/<dataset>/render/<plane>/<coord>/<t>[?roi=x,y,w,h&format=png]
	Returns a rendered plane of all active channels.

	plane    "xy", "zy" (or "yz"), or "xz"
	coord    index along the axis normal to the plane: z for xy, x for zy, y for xz
	t        time point

	Query-string options:

	roi      Sub-rectangle of the plane given as x,y,width,height in plane coordinates.
	format   "png", "jpg" (optionally "jpg:<quality>"), "tif", "bmp", or "argb" for
	         little-endian 0xAARRGGBB words.  Defaults to the server's configured format.

Errors return 400 for bad settings or requests, 404 for unknown datasets or planes,
502 for storage failures, and 503 for cancelled renders.
`

func (s *Server) initRoutes() {
	mux := web.New()
	mux.Use(middleware.Recoverer)
	mux.Use(logRequest)
	mux.Get(WebAPIPath+"help", helpHandler)
	mux.Get(WebAPIPath+"server/info", s.serverInfoHandler)
	mux.Get(WebAPIPath+"dataset/:dataset/info", s.datasetInfoHandler)
	mux.Get(WebAPIPath+"dataset/:dataset/render/:plane/:coord/:t", s.renderHandler)
	mux.NotFound(func(w http.ResponseWriter, r *http.Request) {
		BadRequest(w, r, "unknown API request %q, see %shelp", r.URL.Path, WebAPIPath)
	})

	if origins := s.config.Server.AllowedOrigins; len(origins) != 0 {
		s.handler = cors.New(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodGet, http.MethodHead},
		}).Handler(mux)
	} else {
		s.handler = mux
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// logRequest is middleware that tags each request with an ID, returned in the
// X-Request-Id header, and logs the request once handled.
func logRequest(c *web.C, h http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewV4().String()
		if c.Env == nil {
			c.Env = make(map[interface{}]interface{})
		}
		c.Env["requestID"] = id
		w.Header().Set("X-Request-Id", id)

		timedLog := dvid.NewTimeLog()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		h.ServeHTTP(sw, r)
		timedLog.Infof("[%s] %s %s -> %d, %s\n", id, r.Method, r.URL, sw.status, humanize.Bytes(uint64(sw.bytes)))
	}
	return http.HandlerFunc(fn)
}

// BadRequest writes a 400 error with a formatted message.
func BadRequest(w http.ResponseWriter, r *http.Request, format string, args ...interface{}) {
	writeError(w, r, http.StatusBadRequest, fmt.Sprintf(format, args...))
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintln(w, msg)
	if status >= http.StatusInternalServerError {
		dvid.Errorf("%s %s: %s\n", r.Method, r.URL, msg)
	} else {
		dvid.Debugf("%s %s: %s\n", r.Method, r.URL, msg)
	}
}

// errorStatus returns the HTTP status for an error returned by rendering.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, dvid.ErrCancelled):
		return http.StatusServiceUnavailable
	case errors.Is(err, storage.ErrDatasetNotFound), dvid.IsPlaneNotFound(err):
		return http.StatusNotFound
	case dvid.IsConfigError(err):
		return http.StatusBadRequest
	case dvid.IsIOError(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, fmt.Sprintf("can't encode JSON response: %v", err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func helpHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, webHelp)
}

func (s *Server) serverInfoHandler(w http.ResponseWriter, r *http.Request) {
	infos, err := s.store.Datasets()
	if err != nil {
		writeError(w, r, http.StatusBadGateway, err.Error())
		return
	}
	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name
	}
	writeJSON(w, r, struct {
		Note     string      `json:"note"`
		Config   string      `json:"config"`
		Started  time.Time   `json:"started"`
		Uptime   string      `json:"uptime"`
		Format   string      `json:"defaultFormat"`
		Datasets []string    `json:"datasets"`
		Cache    interface{} `json:"cache"`
	}{
		Note:     s.config.Server.Note,
		Config:   s.config.Location(),
		Started:  s.started,
		Uptime:   time.Since(s.started).Round(time.Second).String(),
		Format:   s.format.String(),
		Datasets: names,
		Cache:    s.cache.Stats(),
	})
}

type channelInfo struct {
	Channel   int     `json:"channel"`
	Label     string  `json:"label"`
	Active    bool    `json:"active"`
	PixelType string  `json:"pixelType"`
	Window    string  `json:"window"`
	Color     string  `json:"color"`
	Codomain  string  `json:"codomain"`
	Summary   string  `json:"summary"`
	AutoLow   float64 `json:"autoLow,omitempty"`
	AutoHigh  float64 `json:"autoHigh,omitempty"`
}

func newChannelInfo(b render.ChannelBinding) channelInfo {
	ci := channelInfo{
		Channel:   b.Channel,
		Label:     b.Label,
		Active:    b.Active,
		PixelType: b.PixelType.String(),
		Window:    b.Window.String(),
		Color:     b.Color.String(),
		Codomain:  b.Chain.String(),
		Summary:   b.String(),
	}
	if b.AutoWindow {
		ci.Window = "auto"
		ci.AutoLow, ci.AutoHigh = b.AutoLow, b.AutoHigh
	}
	if b.LUT != nil {
		ci.Color = "lut " + b.LUT.Name
	}
	return ci
}

func (s *Server) datasetInfoHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	ds, err := s.store.Dataset(c.URLParams["dataset"])
	if err != nil {
		writeError(w, r, errorStatus(err), err.Error())
		return
	}
	info := ds.Info()
	model, bindings, err := s.Settings(info)
	if err != nil {
		writeError(w, r, errorStatus(err), err.Error())
		return
	}
	channels := make([]channelInfo, len(bindings))
	for i, b := range bindings {
		channels[i] = newChannelInfo(b)
	}
	writeJSON(w, r, struct {
		storage.DatasetInfo
		Model    string        `json:"model"`
		Channels []channelInfo `json:"channels"`
	}{
		DatasetInfo: info,
		Model:       model.String(),
		Channels:    channels,
	})
}

// parsePlane returns the plane requested by the URL parameters and query string.
func parsePlane(c web.C, r *http.Request) (dvid.PlaneDef, error) {
	var pd dvid.PlaneDef
	o, err := dvid.ParseOrientation(c.URLParams["plane"])
	if err != nil {
		return pd, err
	}
	coord, err := strconv.Atoi(c.URLParams["coord"])
	if err != nil {
		return pd, fmt.Errorf("bad plane coordinate %q", c.URLParams["coord"])
	}
	t, err := strconv.Atoi(c.URLParams["t"])
	if err != nil {
		return pd, fmt.Errorf("bad time point %q", c.URLParams["t"])
	}
	pd = dvid.NewPlaneDef(o, coord, t)
	if roi := r.URL.Query().Get("roi"); roi != "" {
		rect, err := dvid.ParseRect(roi)
		if err != nil {
			return pd, err
		}
		pd = pd.WithRegion(rect)
	}
	return pd, nil
}

func (s *Server) renderHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	pd, err := parsePlane(c, r)
	if err != nil {
		BadRequest(w, r, "%v", err)
		return
	}
	format := s.format
	if fs := r.URL.Query().Get("format"); fs != "" {
		if format, err = render.ParseFormat(fs); err != nil {
			BadRequest(w, r, "%v", err)
			return
		}
	}

	img, err := s.Render(r.Context(), c.URLParams["dataset"], pd)
	if err != nil {
		writeError(w, r, errorStatus(err), err.Error())
		return
	}
	data, err := img.EncodeBytes(format)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, fmt.Sprintf("can't encode %s image: %v", format, err))
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("X-Image-Size", fmt.Sprintf("%dx%d", img.Width, img.Height))
	w.Write(data)
}
