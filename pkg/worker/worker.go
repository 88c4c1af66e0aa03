/*
 * Copyright (c) 2026, the Harmony project authors. All rights reserved.
 * See LICENSE for license information.
 */

// Package worker implements the pull loop run by every service pod: poll the
// work server for one item at a time, hand it to the sidecar, upload the
// captured logs and report the outcome.
package worker

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/klog/v2"

	"github.com/nasa/harmony-core/pkg/config"
	"github.com/nasa/harmony-core/pkg/logstream"
	"github.com/nasa/harmony-core/pkg/models"
	"github.com/nasa/harmony-core/pkg/objectstore"
	"github.com/nasa/harmony-core/pkg/sidecar"
	"github.com/nasa/harmony-core/pkg/util/backoff"
	"github.com/nasa/harmony-core/pkg/util/channel"
	"github.com/nasa/harmony-core/pkg/util/httpclient"
	"github.com/nasa/harmony-core/pkg/util/jsonutil"
)

// queryCMRService marks the granule-query service, which is driven over its
// local HTTP endpoint and needs no priming.
const queryCMRService = "query-cmr"

const (
	sidecarCheckInterval = 3 * time.Second
	primeRetryInterval   = 100 * time.Millisecond
)

// Worker is the per-pod pull loop. At most one work item is in flight at any
// time; fleet-level concurrency comes from running many pods.
type Worker struct {
	client    httpclient.Interface
	runner    *sidecar.Runner
	store     objectstore.Interface
	reporter  *Reporter
	sentinels *Sentinels
	tomb      *channel.Tomb
	workURL   string
	serviceID string
	podName   string
}

func New(client httpclient.Interface, runner *sidecar.Runner, store objectstore.Interface) *Worker {
	return &Worker{
		client:    client,
		runner:    runner,
		store:     store,
		reporter:  NewReporter(client),
		sentinels: NewSentinels(config.GetWorkingDir()),
		tomb:      channel.NewTomb(),
		workURL:   config.BuildWorkURL(),
		serviceID: config.GetServiceID(),
		podName:   config.GetMyPodName(),
	}
}

func (w *Worker) Sentinels() *Sentinels {
	return w.sentinels
}

// WaitForSidecar blocks until the worker container of this pod is running.
// The pod is restarted via a non-zero exit if it never gets there.
func WaitForSidecar(clientSet kubernetes.Interface, namespace, podName string) error {
	timeout := time.Duration(config.GetSidecarReadyTimeoutSecond()) * time.Second
	deadline := time.Now().Add(timeout)
	for {
		pod, err := clientSet.CoreV1().Pods(namespace).Get(context.Background(), podName, metav1.GetOptions{})
		if err != nil {
			klog.ErrorS(err, "failed to read the pod status", "pod", podName)
		} else {
			for _, status := range pod.Status.ContainerStatuses {
				if status.Name == sidecar.WorkerContainer && status.State.Running != nil {
					klog.Infof("the %s container of %s is running", sidecar.WorkerContainer, podName)
					return nil
				}
			}
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("the %s container of %s did not reach running within %s",
				sidecar.WorkerContainer, podName, timeout)
		}
		time.Sleep(sidecarCheckInterval)
	}
}

// PrimeService pushes one synthetic invocation through the exec path. The
// first exec against a new pod intermittently fails inside the client
// machinery, so keep trying on a short interval until it goes through.
func (w *Worker) PrimeService() error {
	if strings.Contains(w.serviceID, queryCMRService) {
		return nil
	}
	maxRetries := config.GetMaxPrimeRetries()
	var err error
	for retry := 0; retry < maxRetries; retry++ {
		if err = w.runner.Prime(context.Background()); err == nil {
			klog.Infof("primed the %s service after %d attempts", w.serviceID, retry+1)
			return nil
		}
		time.Sleep(primeRetryInterval)
	}
	return fmt.Errorf("failed to prime the %s service after %d attempts: %w",
		w.serviceID, maxRetries, err)
}

// Start runs the pull loop in the background; Stop winds it down and waits
// for an in-flight item to be reported.
func (w *Worker) Start() {
	go w.Run()
}

func (w *Worker) Stop() {
	w.tomb.Stop()
}

func (w *Worker) shouldStop() bool {
	return w.tomb.IsStopped() || w.sentinels.IsTerminating()
}

// Run polls for work until the pod terminates. Poll failures and empty polls
// back off on the same jittered curve; acquiring an item resets it.
func (w *Worker) Run() {
	defer w.tomb.Done()
	retry := 0
	for {
		if w.shouldStop() {
			klog.Infof("the worker for %s is terminating", w.serviceID)
			return
		}
		w.sentinels.Purge()

		rsp, err := w.client.Get(w.pollURL(), authHeaders()...)
		if err == nil && rsp.IsSuccess() {
			response := &models.WorkResponse{}
			if parseErr := jsonutil.UnmarshalWithCheck(rsp.Body, response); parseErr == nil &&
				response.WorkItem != nil {
				retry = 0
				w.process(response)
				continue
			}
			klog.Errorf("the work server returned an unreadable work item: %s", rsp.String())
		} else if err != nil {
			klog.ErrorS(err, "work poll failed", "retry", retry+1)
		} else if rsp.StatusCode == http.StatusNotFound {
			klog.V(4).Infof("no work available for %s", w.serviceID)
		} else {
			klog.Errorf("work poll got an unexpected response: %s", rsp.String())
		}
		retry++
		backoff.SleepCheck(backoff.RetryDelay(retry), w.shouldStop)
	}
}

func (w *Worker) pollURL() string {
	return fmt.Sprintf("%s?serviceID=%s&podName=%s", w.workURL,
		url.QueryEscape(w.serviceID), url.QueryEscape(w.podName))
}

// process executes one leased item and reports its terminal status. The
// working sentinel brackets the whole span so the PreStop hook waits for the
// report to go out.
func (w *Worker) process(response *models.WorkResponse) {
	item := response.WorkItem
	w.sentinels.MarkWorking()
	defer w.sentinels.ClearWorking()
	klog.Infof("processing work item %d of job %s", item.ID, item.JobID)

	start := time.Now()
	var result *sidecar.Result
	if item.ScrollID != "" {
		result = sidecar.QueryCMR(w.client, item, response.MaxCMRGranules)
	} else {
		result = w.invoke(item)
	}
	applyResult(item, result, time.Since(start).Seconds())
	// The first PUT attempt always goes out so a terminating pod still
	// reports; only the transport retry sleeps are cut short.
	w.reporter.Report(item, w.shouldStop)
}

func (w *Worker) invoke(item *models.WorkItem) *sidecar.Result {
	timeout := time.Duration(config.GetWorkerTimeoutSecond()) * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	stream := logstream.NewStream(klog.Background(), item.ID, item.RetryCount)
	result := w.runner.Run(ctx, item, stream)
	stream.Flush()

	logsURL := logstream.LogsURL(config.GetArtifactBucket(), item.JobID, item.ID)
	if err := stream.Upload(context.Background(), w.store, logsURL); err != nil {
		klog.ErrorS(err, "failed to upload the service logs", "workItemID", item.ID)
	}
	return result
}

func applyResult(item *models.WorkItem, result *sidecar.Result, duration float64) {
	item.Status = result.Status
	item.Duration = duration
	item.Results = result.Results
	item.OutputItemSizes = result.OutputItemSizes
	item.TotalItemsSize = result.TotalItemsSize
	item.Hits = result.Hits
	item.Message = result.Message
	item.MessageCategory = result.MessageCategory
	if result.ScrollID != "" {
		item.ScrollID = result.ScrollID
	}
}
