package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"
	"github.com/sirupsen/logrus"

	"github.com/joeblew999/plat-annotate/internal/annotation"
	"github.com/joeblew999/plat-annotate/internal/events"
	"github.com/joeblew999/plat-annotate/internal/mapview"
	"github.com/joeblew999/plat-annotate/internal/projection"
	"github.com/joeblew999/plat-annotate/internal/scene"
	"github.com/joeblew999/plat-annotate/internal/scheduler"
	"github.com/joeblew999/plat-annotate/internal/style"
	"github.com/joeblew999/plat-annotate/internal/tiler"
)

// Session is one map with its annotations. All map and annotation state is
// owned by the session loop; exported methods hop onto it.
type Session struct {
	ID        string
	Name      string
	CreatedAt time.Time

	loop   *scheduler.Loop
	cancel context.CancelFunc
	log    *logrus.Entry
	store  sessionStore

	// Confined to the loop.
	m         *mapview.Map
	drag      *annotation.DragController
	container *annotation.Container
	hit       *annotation.Annotation
}

// sessionStore saves session state. Calls come from the session loop, so
// saves of one session happen in the order of the changes they record.
type sessionStore interface {
	saveAnnotations(id string, fc *geojson.FeatureCollection) error
	saveStyle(id, name string) error
}

// hitRecorder consumes annotation clicks and remembers the annotation.
type hitRecorder struct{ s *Session }

func (h hitRecorder) OnAnnotationClick(a *annotation.Annotation) bool {
	h.s.hit = a
	return true
}

func (h hitRecorder) OnAnnotationLongClick(a *annotation.Annotation) bool {
	h.s.hit = a
	return true
}

func newSession(rec sessionRecord, pub events.Publisher, store sessionStore) (*Session, error) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:        rec.ID,
		Name:      rec.Name,
		CreatedAt: rec.CreatedAt,
		loop:      scheduler.NewLoop(),
		cancel:    cancel,
		log:       logrus.WithField("session", rec.ID),
		store:     store,
	}
	go s.loop.Run(ctx)

	var err error
	doErr := s.loop.Do(ctx, func() {
		s.m = mapview.New(rec.Viewport.Projection(), s.loop)
		s.drag = annotation.NewDragController(s.m, annotation.DragConfig{})
		s.container, err = annotation.NewContainer(s.m, annotation.ContainerOptions{
			Drag:   s.drag,
			Events: pub,
		})
		if err != nil {
			return
		}
		s.container.AddClickListener(hitRecorder{s})
		s.container.AddLongClickListener(hitRecorder{s})
		s.container.AddDragListener(&annotation.DragFuncs{
			Finished: func(*annotation.Annotation) {
				if err := s.saveOnLoop(); err != nil {
					s.log.WithError(err).Error("Could not save session after drag")
				}
			},
		})

		st := style.New(rec.Style)
		st.MarkLoaded()
		s.m.SetStyle(st)
	})
	if doErr != nil {
		err = doErr
	}
	if err != nil {
		cancel()
		return nil, err
	}
	return s, nil
}

// do runs fn on the session loop and returns its error.
func (s *Session) do(ctx context.Context, fn func() error) error {
	var err error
	if doErr := s.loop.Do(ctx, func() { err = fn() }); doErr != nil {
		return doErr
	}
	return err
}

func (s *Session) close() {
	_ = s.loop.Do(context.Background(), func() {
		s.container.Destroy()
		s.drag.Detach()
	})
	s.cancel()
	<-s.loop.Done()
}

// Info describes the session.
func (s *Session) Info(ctx context.Context) (SessionInfo, error) {
	info := SessionInfo{ID: s.ID, Name: s.Name, CreatedAt: s.CreatedAt}
	err := s.do(ctx, func() error {
		info.Style = s.m.Style().Name()
		info.Viewport = *s.m.Projection()
		info.Annotations = s.container.Len()
		info.Layers = []string{}
		for _, l := range s.m.Style().Layers() {
			info.Layers = append(info.Layers, l.ID())
		}
		return nil
	})
	return info, err
}

// Annotations lists every annotation in id order.
func (s *Session) Annotations(ctx context.Context) ([]scene.Annotation, error) {
	var out []scene.Annotation
	err := s.do(ctx, func() error {
		out = s.describeAll()
		return nil
	})
	return out, err
}

// Annotation returns one annotation.
func (s *Session) Annotation(ctx context.Context, id int64) (scene.Annotation, error) {
	var out scene.Annotation
	err := s.do(ctx, func() error {
		a, err := s.lookup(id)
		if err != nil {
			return err
		}
		out = scene.FromAnnotation(a)
		return nil
	})
	return out, err
}

// AddAnnotations validates every spec, then adds them all.
func (s *Session) AddAnnotations(ctx context.Context, specs []scene.Annotation) ([]scene.Annotation, error) {
	built := make([]*annotation.Annotation, len(specs))
	for i, spec := range specs {
		a, err := spec.Build()
		if err != nil {
			return nil, fmt.Errorf("annotation %d: %w", i, err)
		}
		built[i] = a
	}

	out := make([]scene.Annotation, 0, len(built))
	err := s.mutate(ctx, func() error {
		for _, a := range built {
			if err := s.container.Add(a); err != nil {
				return err
			}
			out = append(out, scene.FromAnnotation(a))
		}
		return nil
	})
	return out, err
}

// UpdateAnnotation applies p. Changes are applied in the order geometry,
// properties, draggable, z-index and stop at the first error.
func (s *Session) UpdateAnnotation(ctx context.Context, id int64, p AnnotationPatch) (scene.Annotation, error) {
	var out scene.Annotation
	err := s.mutate(ctx, func() error {
		a, err := s.lookup(id)
		if err != nil {
			return err
		}
		if p.Geometry != nil {
			g, err := scene.DecodeGeometry(p.Geometry)
			if err != nil {
				return err
			}
			if err := a.SetGeometry(g); err != nil {
				return err
			}
		}
		for name, v := range p.Properties {
			if v == nil {
				err = a.Unset(name)
			} else {
				err = a.Set(name, v)
			}
			if err != nil {
				return err
			}
		}
		if p.Draggable != nil {
			a.SetDraggable(*p.Draggable)
		}
		if p.ZIndex != nil {
			a.SetZIndex(*p.ZIndex)
		}
		out = scene.FromAnnotation(a)
		return nil
	})
	return out, err
}

// DeleteAnnotation removes one annotation.
func (s *Session) DeleteAnnotation(ctx context.Context, id int64) error {
	return s.mutate(ctx, func() error {
		a, err := s.lookup(id)
		if err != nil {
			return err
		}
		s.container.Remove(a)
		return nil
	})
}

// Clear removes every annotation.
func (s *Session) Clear(ctx context.Context) error {
	return s.mutate(ctx, func() error {
		s.container.Clear()
		return nil
	})
}

// Click taps the map at pt and returns the annotation that was hit.
func (s *Session) Click(ctx context.Context, pt projection.ScreenPoint, long bool) (*scene.Annotation, error) {
	var out *scene.Annotation
	err := s.do(ctx, func() error {
		s.hit = nil
		if long {
			s.m.LongClick(pt)
		} else {
			s.m.Click(pt)
		}
		if s.hit != nil {
			a := scene.FromAnnotation(s.hit)
			out = &a
		}
		s.hit = nil
		return nil
	})
	return out, err
}

// Drag replays a one-finger pan from req.From to req.To. A draggable
// annotation under req.From follows the pointer; otherwise the camera pans.
func (s *Session) Drag(ctx context.Context, req DragRequest) (DragResult, error) {
	steps := req.Steps
	if steps < 1 {
		steps = 1
	}

	var res DragResult
	err := s.do(ctx, func() error {
		g := mapview.MoveGesture{Pointers: 1, Focal: req.From, Current: req.From}
		s.m.BeginMove(g)
		dragged := s.drag.Dragging()

		prev := req.From
		for i := 1; i <= steps; i++ {
			f := float64(i) / float64(steps)
			cur := projection.ScreenPoint{
				X: req.From.X + (req.To.X-req.From.X)*f,
				Y: req.From.Y + (req.To.Y-req.From.Y)*f,
			}
			s.m.Move(mapview.MoveGesture{
				Pointers: 1,
				Focal:    cur,
				Current:  cur,
				DeltaX:   cur.X - prev.X,
				DeltaY:   cur.Y - prev.Y,
			})
			prev = cur
		}
		s.m.EndMove(mapview.MoveGesture{Pointers: 1, Focal: req.To, Current: req.To})

		if dragged != nil {
			a := scene.FromAnnotation(dragged)
			res.Dragged = &a
		}
		res.Camera = *s.m.Projection()
		return nil
	})
	return res, err
}

// SetCamera moves the camera.
func (s *Session) SetCamera(ctx context.Context, v scene.Viewport) (projection.Viewport, error) {
	var out projection.Viewport
	err := s.do(ctx, func() error {
		p := s.m.Projection()
		next := v.Projection()
		p.Center, p.Zoom = next.Center, next.Zoom
		if v.Width > 0 {
			p.Width = v.Width
		}
		if v.Height > 0 {
			p.Height = v.Height
		}
		out = *p
		return nil
	})
	return out, err
}

// Style returns the current style document.
func (s *Session) Style(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	err := s.do(ctx, func() error {
		data, err := json.Marshal(s.m.Style())
		out = data
		return err
	})
	return out, err
}

// ReloadStyle reloads the current style in place, or switches to a new
// style called name and saves it as the session's style. Annotations are
// restored once the style has loaded.
func (s *Session) ReloadStyle(ctx context.Context, name string) error {
	return s.do(ctx, func() error {
		if name == "" || name == s.m.Style().Name() {
			s.m.ReloadStyle()
			return nil
		}
		s.m.SetStyle(style.New(name))
		if s.store == nil {
			return nil
		}
		return s.store.saveStyle(s.ID, name)
	})
}

// Sources returns the feature collection of every annotation source.
func (s *Session) Sources(ctx context.Context) (map[string]*geojson.FeatureCollection, error) {
	out := make(map[string]*geojson.FeatureCollection)
	err := s.do(ctx, func() error {
		for _, src := range s.m.Style().Sources() {
			out[src.ID()] = src.FeatureCollection()
		}
		return nil
	})
	return out, err
}

// Tile encodes the annotation sources as a vector tile. It returns nil
// for tiles without annotations.
func (s *Session) Tile(ctx context.Context, t maptile.Tile) ([]byte, error) {
	sources, err := s.Sources(ctx)
	if err != nil {
		return nil, err
	}
	return tiler.EncodeTile(sources, t)
}

// WriteArchive writes the annotation sources as a PMTiles archive.
func (s *Session) WriteArchive(ctx context.Context, w io.Writer, minZoom, maxZoom int) error {
	sources, err := s.Sources(ctx)
	if err != nil {
		return err
	}
	return tiler.WriteArchive(w, sources, tiler.ArchiveOptions{
		Name:    s.Name,
		MinZoom: minZoom,
		MaxZoom: maxZoom,
	})
}

// Snapshot returns every annotation as a feature collection.
func (s *Session) Snapshot(ctx context.Context) (*geojson.FeatureCollection, error) {
	var fc *geojson.FeatureCollection
	err := s.do(ctx, func() error {
		var err error
		fc, err = scene.Collection(s.describeAll())
		return err
	})
	return fc, err
}

// restore adds previously saved annotations without saving again.
// Unreadable features are skipped.
func (s *Session) restore(ctx context.Context, fc *geojson.FeatureCollection) error {
	specs := make([]scene.Annotation, 0, len(fc.Features))
	for i, f := range fc.Features {
		spec, err := scene.FromFeature(f)
		if err != nil {
			s.log.WithError(err).WithField("feature", i).Warn("Skipping unreadable feature")
			continue
		}
		specs = append(specs, spec)
	}
	built := make([]*annotation.Annotation, 0, len(specs))
	for _, spec := range specs {
		a, err := spec.Build()
		if err != nil {
			s.log.WithError(err).WithField("annotation_id", spec.ID).Warn("Skipping unreadable annotation")
			continue
		}
		built = append(built, a)
	}
	return s.do(ctx, func() error {
		for _, a := range built {
			if err := s.container.Add(a); err != nil {
				return err
			}
		}
		return nil
	})
}

// mutate runs fn on the loop and saves the session when it succeeds.
func (s *Session) mutate(ctx context.Context, fn func() error) error {
	return s.do(ctx, func() error {
		if err := fn(); err != nil {
			return err
		}
		return s.saveOnLoop()
	})
}

// saveOnLoop writes the current annotations. It must run on the loop.
func (s *Session) saveOnLoop() error {
	if s.store == nil {
		return nil
	}
	fc, err := scene.Collection(s.describeAll())
	if err != nil {
		return err
	}
	return s.store.saveAnnotations(s.ID, fc)
}

func (s *Session) describeAll() []scene.Annotation {
	all := s.container.Annotations()
	out := make([]scene.Annotation, len(all))
	for i, a := range all {
		out[i] = scene.FromAnnotation(a)
	}
	return out
}

func (s *Session) lookup(id int64) (*annotation.Annotation, error) {
	a, ok := s.container.Get(id)
	if !ok {
		return nil, fmt.Errorf("annotation %d: %w", id, annotation.ErrNotTracked)
	}
	return a, nil
}
