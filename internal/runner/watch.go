package runner

import (
	"context"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// watchSandbox observes the scratch directory while the application
// runs and logs files the app creates or rewrites (build artifacts,
// databases, lock files). The watcher is advisory: any failure shuts
// it down silently without affecting the validation. The returned
// channel closes once the watcher has fully stopped.
func watchSandbox(ctx context.Context, log *zap.Logger, dir string) <-chan struct{} {
	done := make(chan struct{})

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Debug("sandbox watcher unavailable", zap.Error(err))
		close(done)
		return done
	}
	if err := watcher.Add(dir); err != nil {
		log.Debug("sandbox watcher add failed", zap.Error(err))
		watcher.Close()
		close(done)
		return done
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		defer watcher.Close()
		for {
			select {
			case <-groupCtx.Done():
				return nil
			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
					log.Debug("sandbox file activity",
						zap.String("path", event.Name),
						zap.String("op", event.Op.String()))
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				log.Debug("sandbox watcher error", zap.Error(err))
			}
		}
	})

	go func() {
		_ = group.Wait()
		close(done)
	}()
	return done
}
