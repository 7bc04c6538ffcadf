// Package tlsutil loads the TLS certificate for the listeners and reloads it
// when the files on disk change, so certificates rotated by an external
// issuer are picked up without a restart.
package tlsutil

import (
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const reloadDebounce = 300 * time.Millisecond

// CertLoader watches a PEM certificate and key pair. GetCertificate hands
// the current pair to crypto/tls on every handshake.
type CertLoader struct {
	certFile string
	keyFile  string
	logger   zerolog.Logger
	watcher  *fsnotify.Watcher
	stop     chan struct{}

	mu   sync.RWMutex
	cert *tls.Certificate
}

// NewCertLoader loads the pair once and starts watching both files. A failed
// initial load is an error for the caller; failed reloads later keep the
// previous pair in service.
func NewCertLoader(certFile, keyFile string, logger zerolog.Logger) (*CertLoader, error) {
	cl := &CertLoader{
		certFile: certFile,
		keyFile:  keyFile,
		logger:   logger,
		stop:     make(chan struct{}),
	}

	if err := cl.load(); err != nil {
		return nil, fmt.Errorf("failed to load certificate: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	for _, file := range []string{certFile, keyFile} {
		if err := watcher.Add(file); err != nil {
			_ = watcher.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", file, err)
		}
	}
	cl.watcher = watcher
	go cl.watchLoop()

	logger.Info().
		Str("cert", certFile).
		Str("key", keyFile).
		Msg("TLS certificate loaded, watching for changes")
	return cl, nil
}

// GetCertificate is the tls.Config callback. It runs on every handshake.
func (cl *CertLoader) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return cl.cert, nil
}

// Reload re-reads the pair from disk, keeping the current one on failure.
func (cl *CertLoader) Reload() error {
	if err := cl.load(); err != nil {
		cl.logger.Error().
			Err(err).
			Str("cert", cl.certFile).
			Msg("failed to reload TLS certificate, keeping current one")
		return err
	}
	cl.logger.Info().Str("cert", cl.certFile).Msg("TLS certificate reloaded")
	return nil
}

// Stop ends the file watcher. The loader keeps serving its last certificate.
func (cl *CertLoader) Stop() {
	close(cl.stop)
	if cl.watcher != nil {
		_ = cl.watcher.Close()
	}
}

func (cl *CertLoader) load() error {
	cert, err := tls.LoadX509KeyPair(cl.certFile, cl.keyFile)
	if err != nil {
		return err
	}

	cl.mu.Lock()
	cl.cert = &cert
	cl.mu.Unlock()
	return nil
}

// watchLoop reloads after a short debounce so a rotation that writes the
// certificate and key separately is applied once, with both files settled.
func (cl *CertLoader) watchLoop() {
	var debounce *time.Timer
	for {
		select {
		case event, ok := <-cl.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(reloadDebounce, func() {
					_ = cl.Reload()
				})
			}
		case err, ok := <-cl.watcher.Errors:
			if !ok {
				return
			}
			cl.logger.Error().Err(err).Msg("TLS certificate watcher error")
		case <-cl.stop:
			if debounce != nil {
				debounce.Stop()
			}
			return
		}
	}
}
