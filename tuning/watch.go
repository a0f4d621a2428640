package tuning

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"go.viam.com/mechctl/logging"
)

// ReloadDelay is how long the file must stay quiet after a write before it is reloaded.
const ReloadDelay = 50 * time.Millisecond

// FileWatcher feeds a registry from a JSON object of numbers, reloading it whenever the file is
// written.
type FileWatcher struct {
	path     string
	registry *Registry
	logger   logging.Logger
	watcher  *fsnotify.Watcher
	reload   func(func())

	cancel                  context.CancelFunc
	activeBackgroundWorkers sync.WaitGroup
}

// WatchFile loads path into the registry and keeps watching it until Close. Values may be numbers
// or numeric strings.
func WatchFile(ctx context.Context, path string, registry *Registry, logger logging.Logger) (*FileWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fw := &FileWatcher{path: abs, registry: registry, logger: logger, reload: debounce.New(ReloadDelay)}
	if err := fw.Load(); err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "cannot create tunables watcher")
	}
	// editors often replace the file, so watch its directory
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return nil, multierr.Combine(errors.Wrapf(err, "cannot watch %q", abs), w.Close())
	}
	fw.watcher = w

	cancelCtx, cancel := context.WithCancel(ctx)
	fw.cancel = cancel
	fw.activeBackgroundWorkers.Add(1)
	goutils.ManagedGo(func() {
		fw.watch(cancelCtx)
	}, fw.activeBackgroundWorkers.Done)
	return fw, nil
}

func (fw *FileWatcher) watch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != fw.path || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			fw.reload(func() {
				if ctx.Err() != nil {
					return
				}
				if err := fw.Load(); err != nil {
					fw.logger.Warnw("cannot reload tunables", "path", fw.path, "error", err)
				}
			})
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warnw("tunables watcher error", "path", fw.path, "error", err)
		}
	}
}

// Load reads the file once and queues every value in it.
func (fw *FileWatcher) Load() error {
	values, err := readTunables(fw.path)
	if err != nil {
		return err
	}
	for k, v := range values {
		fw.registry.Set(k, v)
	}
	return nil
}

// Close stops watching and drops any pending reload.
func (fw *FileWatcher) Close() error {
	fw.cancel()
	fw.reload(func() {})
	err := fw.watcher.Close()
	fw.activeBackgroundWorkers.Wait()
	return err
}

func readTunables(path string) (map[string]float64, error) {
	//nolint:gosec
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read tunables %q", path)
	}
	var attrs map[string]interface{}
	if err := json.Unmarshal(raw, &attrs); err != nil {
		return nil, errors.Wrapf(err, "cannot parse tunables %q", path)
	}
	values := map[string]float64{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           &values,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(attrs); err != nil {
		return nil, errors.Wrapf(err, "tunables %q must map names to numbers", path)
	}
	return values, nil
}
