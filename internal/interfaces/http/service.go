package httpinterface

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/watchdescriptor/internal/core/application"
	interfaces "github.com/tdex-network/watchdescriptor/internal/interfaces"
)

const shutdownTimeout = 5 * time.Second

type service struct {
	opts     ServiceOpts
	server   *http.Server
	handler  *handler
	listener net.Listener
}

type ServiceOpts struct {
	Address string

	WatchSvc      application.WatchService
	WebhookSvc    WebhookService
	Notifications http.Handler
}

func (o ServiceOpts) validate() error {
	if len(o.Address) <= 0 {
		return fmt.Errorf("missing listening address")
	}
	if _, _, err := net.SplitHostPort(o.Address); err != nil {
		return fmt.Errorf("invalid listening address %s: %s", o.Address, err)
	}
	if o.WatchSvc == nil {
		return fmt.Errorf("watch app service must not be null")
	}
	if o.WebhookSvc == nil {
		return fmt.Errorf("webhook app service must not be null")
	}
	return nil
}

// NewService returns the HTTP interface of the daemon.
func NewService(opts ServiceOpts) (interfaces.Service, error) {
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("invalid opts: %s", err)
	}

	return &service{opts: opts}, nil
}

func (s *service) Start() error {
	listener, err := net.Listen("tcp", s.opts.Address)
	if err != nil {
		return err
	}

	s.listener = listener
	s.handler = newHandler(
		s.opts.WatchSvc, s.opts.WebhookSvc, s.opts.Notifications,
	)
	s.server = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("http interface stopped unexpectedly")
		}
	}()

	log.Infof("http interface is listening on %s", listener.Addr())
	return nil
}

// Stop shuts the server down and waits for the pending rescans, so that
// nothing reaches the app services once they are closed.
func (s *service) Stop() {
	if s.server == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("failed to gracefully stop http interface")
	}
	s.handler.waitRescans()
	log.Debug("disabled http interface")
}
