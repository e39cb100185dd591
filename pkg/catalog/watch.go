package catalog

import (
	"context"

	"github.com/fsnotify/fsnotify"
)

// WatchDir watches dir for created or written repository documents and
// re-adds each as a root repository, for the local-development workflow
// noted in SPEC_FULL §5 (off by default; the CLI does not call it). The
// returned stop function closes the underlying
// watcher; ctx cancellation also stops the watch loop.
func (c *Catalog) WatchDir(ctx context.Context, dir string) (stop func() error, err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, err
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := c.AddRepository(ctx, ev.Name); err != nil {
					c.log.WithField("path", ev.Name).WithError(err).Warn("failed to load changed repository")
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				c.log.WithError(err).Warn("repository watch error")
			}
		}
	}()

	return w.Close, nil
}
