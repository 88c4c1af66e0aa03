/*
 * Copyright (c) 2026, the Harmony project authors. All rights reserved.
 * See LICENSE for license information.
 */

package worker

import (
	"flag"
	"fmt"
	"os"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/klog/v2"

	"github.com/nasa/harmony-core/pkg/config"
	"github.com/nasa/harmony-core/pkg/objectstore"
	"github.com/nasa/harmony-core/pkg/sidecar"
	"github.com/nasa/harmony-core/pkg/util/httpclient"
)

// Daemon wires the pull worker to the pod it runs in: in-cluster Kubernetes
// client for the exec transport, S3 for artifacts, and the work server over
// HTTP.
type Daemon struct {
	worker    *Worker
	clientSet kubernetes.Interface
}

func NewDaemon() (*Daemon, error) {
	configPath := flag.String("config", "", "path of the optional YAML config file")
	klog.InitFlags(nil)
	flag.Parse()

	if err := config.LoadConfig(*configPath); err != nil {
		return nil, fmt.Errorf("failed to load config, err: %s", err.Error())
	}
	restConfig, err := rest.InClusterConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load the in-cluster config, err: %s", err.Error())
	}
	clientSet, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create the kubernetes client, err: %s", err.Error())
	}

	executor := sidecar.NewK8sExecutor(clientSet, restConfig,
		config.GetPodNamespace(), config.GetMyPodName())
	store := objectstore.Instance()
	runner := sidecar.NewRunner(executor, store)
	return &Daemon{
		worker:    New(httpclient.Instance(), runner, store),
		clientSet: clientSet,
	}, nil
}

// Start brings the worker through its startup states and then polls until
// the pod terminates. Startup failures exit non-zero so the pod restarts.
func (d *Daemon) Start() {
	klog.Infof("starting the pull worker for %s in pod %s",
		config.GetServiceID(), config.GetMyPodName())
	sentinels := d.worker.Sentinels()
	sentinels.TrapSignals()

	if err := WaitForSidecar(d.clientSet, config.GetPodNamespace(), config.GetMyPodName()); err != nil {
		klog.ErrorS(err, "the sidecar never became ready")
		klog.Flush()
		os.Exit(1)
	}
	if err := d.worker.PrimeService(); err != nil {
		klog.ErrorS(err, "failed to prime the service")
		klog.Flush()
		os.Exit(1)
	}

	terminating := make(chan struct{})
	sentinels.WatchTerminating(d.worker.tomb, terminating)
	d.worker.Start()
	<-terminating
	d.worker.Stop()
	klog.Infof("the pull worker stopped")
	klog.Flush()
}
