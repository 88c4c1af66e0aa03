/*
 * Copyright (c) 2026, the Harmony project authors. All rights reserved.
 * See LICENSE for license information.
 */

package worker

import (
	"fmt"
	"net/http"

	"k8s.io/klog/v2"

	"github.com/nasa/harmony-core/pkg/config"
	"github.com/nasa/harmony-core/pkg/models"
	"github.com/nasa/harmony-core/pkg/util/backoff"
	"github.com/nasa/harmony-core/pkg/util/httpclient"
	"github.com/nasa/harmony-core/pkg/util/jsonutil"
)

// Reporter PUTs terminal work item status back to the work server.
type Reporter struct {
	client  httpclient.Interface
	workURL string
}

func NewReporter(client httpclient.Interface) *Reporter {
	return &Reporter{client: client, workURL: config.BuildWorkURL()}
}

// Report updates the work item on the server. Transport failures are retried
// on the poll backoff curve up to the configured limit; any response from the
// server settles the matter. A 409 means the server already moved the item
// on, e.g. the job was cancelled, and is only worth a warning. Other error
// responses are swallowed too: the lease will expire and the item will be
// retried by another pod.
func (r *Reporter) Report(item *models.WorkItem, abort func() bool) {
	if item.Operation != nil {
		// Variable lists can be large and the server does not need them back.
		item.Operation.StripVariables()
	}
	body := jsonutil.MarshalSilently(item)
	if body == nil {
		klog.Errorf("failed to serialize the status update of work item %d", item.ID)
		return
	}
	url := fmt.Sprintf("%s/%d", r.workURL, item.ID)

	maxRetries := config.GetMaxPutWorkRetries()
	for retry := 0; ; retry++ {
		rsp, err := r.client.Put(url, body, authHeaders()...)
		if err == nil {
			switch {
			case rsp.IsSuccess():
				klog.V(3).Infof("reported work item %d as %s", item.ID, item.Status)
			case rsp.StatusCode == http.StatusConflict:
				klog.Warningf("work item %d was already finalized by the server", item.ID)
			default:
				klog.Errorf("the server rejected the status update of work item %d: %s",
					item.ID, rsp.String())
			}
			return
		}
		if retry >= maxRetries {
			klog.ErrorS(err, "giving up on the status update, the lease will expire",
				"workItemID", item.ID, "retries", retry)
			return
		}
		klog.ErrorS(err, "failed to report work item status, will retry",
			"workItemID", item.ID, "retry", retry+1)
		if backoff.SleepCheck(backoff.RetryDelay(retry+1), abort) {
			return
		}
	}
}

// authHeaders carries the shared backend secret when one is configured.
func authHeaders() []string {
	secret := config.GetSharedSecretKey()
	if secret == "" {
		return nil
	}
	return []string{"Authorization", "Bearer " + secret}
}
