package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/janelia-flyem/planerender/dvid"
	"github.com/janelia-flyem/planerender/render"
	"github.com/janelia-flyem/planerender/rendercache"
	"github.com/janelia-flyem/planerender/settings"
	"github.com/janelia-flyem/planerender/storage"
)

// Server renders planes of the datasets in a store.
type Server struct {
	config   *Config
	store    storage.Store
	provider *settings.Provider
	cache    *rendercache.Cache
	format   render.Format
	started  time.Time

	mu        sync.Mutex
	renderers map[string]*render.Renderer // keyed by dataset ID

	handler http.Handler
}

// New returns a server for the store.  The store is closed by Close.
func New(c *Config, store storage.Store) (*Server, error) {
	if c == nil {
		c = DefaultConfig()
	}
	if store == nil {
		return nil, fmt.Errorf("server requires a store")
	}
	if err := c.check(); err != nil {
		return nil, err
	}
	format, err := c.Format()
	if err != nil {
		return nil, err
	}
	s := &Server{
		config:    c,
		store:     store,
		provider:  settings.NewProvider(c.Settings.Dir),
		cache:     rendercache.New(c.Cache.MB, c.CacheExpire()),
		format:    format,
		started:   time.Now(),
		renderers: make(map[string]*render.Renderer),
	}
	s.initRoutes()
	return s, nil
}

// Handler returns the HTTP handler of the web API.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Serve listens and serves HTTP requests on the configured address until ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	addr := s.config.Server.HTTPAddress
	if addr == "" {
		addr = DefaultWebAddress
	}
	src := &http.Server{
		Addr:        addr,
		Handler:     s.handler,
		ReadTimeout: 1 * time.Hour,
	}
	errCh := make(chan error, 1)
	go func() {
		dvid.Infof("Web server listening at %s ...\n", addr)
		errCh <- src.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		dvid.Infof("Shutting down web server at %s ...\n", addr)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return src.Shutdown(shutdownCtx)
	}
}

// Close releases the store.
func (s *Server) Close() {
	s.store.Close()
}

// datasetID identifies everything about a dataset renderer that changes its output.
func datasetID(info storage.DatasetInfo, model render.Model) string {
	return info.UUID + ":" + model.String()
}

// Settings returns the rendering model and channel bindings of a dataset.  Datasets
// without a settings file get default bindings for every channel.
func (s *Server) Settings(info storage.DatasetInfo) (render.Model, []render.ChannelBinding, error) {
	st, err := s.provider.Settings(info.Name)
	if errors.Is(err, settings.ErrNoSettings) {
		return render.ModelRGB, settings.Default(info.Dims, info.PixelType), nil
	}
	if err != nil {
		return render.ModelRGB, nil, err
	}
	bindings := make([]render.ChannelBinding, len(st.Bindings))
	copy(bindings, st.Bindings)
	return st.Model, bindings, nil
}

// renderer returns the renderer for a dataset and model, creating it if needed.
func (s *Server) renderer(ds storage.Dataset, model render.Model) (*render.Renderer, error) {
	id := datasetID(ds.Info(), model)
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, found := s.renderers[id]; found {
		return r, nil
	}
	r, err := render.New(render.Config{
		Source:     ds,
		MaxWorkers: s.config.Render.MaxWorkers,
		Model:      model,
		OnState:    logState(ds.Info().Name),
	})
	if err != nil {
		return nil, err
	}
	s.renderers[id] = r
	return r, nil
}

func logState(dataset string) func(dvid.PlaneDef, render.State) {
	return func(pd dvid.PlaneDef, st render.State) {
		switch st {
		case render.StateCancelled, render.StateFailed:
			dvid.Debugf("Render of %s for dataset %q %s\n", pd, dataset, st)
		}
	}
}

// Render renders a plane of the named dataset using its current settings.
func (s *Server) Render(ctx context.Context, dataset string, pd dvid.PlaneDef) (*render.Image, error) {
	ds, err := s.store.Dataset(dataset)
	if err != nil {
		return nil, err
	}
	info := ds.Info()
	model, bindings, err := s.Settings(info)
	if err != nil {
		return nil, err
	}
	r, err := s.renderer(ds, model)
	if err != nil {
		return nil, err
	}
	return s.cache.Render(ctx, r, datasetID(info, model), pd, bindings)
}
