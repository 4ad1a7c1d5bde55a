package annotation

// ClickListener is told about clicks on annotations. Returning true
// consumes the click.
type ClickListener interface {
	OnAnnotationClick(a *Annotation) bool
}

// LongClickListener is told about long clicks on annotations.
type LongClickListener interface {
	OnAnnotationLongClick(a *Annotation) bool
}

// DragListener follows a drag session.
type DragListener interface {
	OnAnnotationDragStarted(a *Annotation)
	OnAnnotationDrag(a *Annotation)
	OnAnnotationDragFinished(a *Annotation)
}

// DragFuncs adapts optional functions to DragListener.
type DragFuncs struct {
	Started  func(a *Annotation)
	Drag     func(a *Annotation)
	Finished func(a *Annotation)
}

func (d *DragFuncs) OnAnnotationDragStarted(a *Annotation) {
	if d.Started != nil {
		d.Started(a)
	}
}

func (d *DragFuncs) OnAnnotationDrag(a *Annotation) {
	if d.Drag != nil {
		d.Drag(a)
	}
}

func (d *DragFuncs) OnAnnotationDragFinished(a *Annotation) {
	if d.Finished != nil {
		d.Finished(a)
	}
}

// listeners is an ordered registry. Removing an unknown listener is a no-op.
type listeners[T comparable] struct {
	items []T
}

func (l *listeners[T]) add(v T) {
	l.items = append(l.items, v)
}

func (l *listeners[T]) remove(v T) {
	for i, item := range l.items {
		if item == v {
			l.items = append(l.items[:i], l.items[i+1:]...)
			return
		}
	}
}

func (l *listeners[T]) snapshot() []T {
	return append([]T(nil), l.items...)
}

func (l *listeners[T]) len() int { return len(l.items) }

func (l *listeners[T]) clear() { l.items = nil }
