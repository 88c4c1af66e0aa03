/*
 * Copyright (c) 2026, the Harmony project authors. All rights reserved.
 * See LICENSE for license information.
 */

package workserver

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"syscall"

	"k8s.io/klog/v2"

	"github.com/nasa/harmony-core/pkg/config"
	"github.com/nasa/harmony-core/pkg/store"
)

// Daemon is the deployable work server: the HTTP protocol plus its backing
// postgres store.
type Daemon struct {
	server *Server
	store  store.Interface
}

func NewDaemon() (*Daemon, error) {
	configPath := flag.String("config", "", "path of the optional YAML config file")
	klog.InitFlags(nil)
	flag.Parse()

	if err := config.LoadConfig(*configPath); err != nil {
		return nil, fmt.Errorf("failed to load config, err: %s", err.Error())
	}
	databaseURL := config.GetDatabaseURL()
	if databaseURL == "" {
		return nil, fmt.Errorf("no database url configured")
	}
	s, err := store.NewPostgresStoreFromURL(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect the work item store, err: %s", err.Error())
	}
	return &Daemon{
		server: NewServer(s, config.GetBackendPort()),
		store:  s,
	}, nil
}

// Start serves until SIGTERM or SIGINT.
func (d *Daemon) Start() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()
	defer func() {
		if err := d.store.Close(); err != nil {
			klog.ErrorS(err, "failed to close the work item store")
		}
		klog.Flush()
	}()

	if err := d.server.Start(ctx); err != nil {
		klog.ErrorS(err, "the work server exited with an error")
		return
	}
	klog.Infof("the work server stopped")
}
