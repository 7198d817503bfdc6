// Package webdav shares the capture directory so staff can pull photos off
// the kiosk without stopping it.
package webdav

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/webdav"

	"booth-camera/pkg/utils"
)

type Share struct {
	lock   sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	port   int
	dir    string
}

func New(ctx context.Context, port int, dir string) *Share {
	return &Share{
		ctx:  ctx,
		port: port,
		dir:  dir,
	}
}

func (w *Share) Start() {
	w.lock.Lock()
	defer w.lock.Unlock()
	if w.cancel != nil {
		return
	}
	newCtx, cancel := context.WithCancel(w.ctx)
	w.cancel = cancel
	Serve(newCtx, w.port, w.dir)
}

func (w *Share) Stop() {
	w.lock.Lock()
	defer w.lock.Unlock()
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
}

func (w *Share) Running() bool {
	w.lock.Lock()
	defer w.lock.Unlock()
	return w.cancel != nil
}

func (w *Share) Port() int {
	return w.port
}

// Handler serves dir over WebDAV.
func Handler(dir string) http.Handler {
	logger := utils.GetLogger().Named("webdav")

	return &webdav.Handler{
		FileSystem: webdav.Dir(dir),
		LockSystem: webdav.NewMemLS(),
		Logger: func(r *http.Request, err error) {
			if err != nil {
				logger.Errorf("WEBDAV [%s]: %s, err: %s", r.Method, r.URL, err)
			}
		},
	}
}

func Serve(ctx context.Context, port int, dir string) {
	logger := utils.GetLogger().Named("webdav")

	svr := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: Handler(dir),
	}

	go func() {
		logger.Infof("sharing %s on :%d", dir, port)
		if err := svr.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("webdav server err: %s", err)
		}
	}()
	go func() {
		<-ctx.Done()
		srcCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := svr.Shutdown(srcCtx); err != nil {
			logger.Errorf("shutdown webdav server err: %s", err)
		}
	}()
}
