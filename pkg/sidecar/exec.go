/*
 * Copyright (c) 2026, the Harmony project authors. All rights reserved.
 * See LICENSE for license information.
 */

// Package sidecar translates work items into invocations of the service's
// transformation container and interprets what comes back: STAC catalogs on
// success, error.json or exit codes on failure.
package sidecar

import (
	"context"
	"io"
	"strconv"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/remotecommand"
	utilexec "k8s.io/client-go/util/exec"
	"k8s.io/klog/v2"
)

// WorkerContainer is the name of the transformation container in every
// service pod.
const WorkerContainer = "worker"

// ExecStatus is the outcome of one sidecar invocation.
type ExecStatus struct {
	Success bool
	// ExitCode is the container exit code, -1 when unknown.
	ExitCode int
	// Internal marks a 500-class failure inside the Kubernetes exec API
	// rather than a service-reported error; these are replayed.
	Internal bool
	Message  string
}

// Executor runs a command in the sidecar container. The k8s implementation
// execs into this pod; tests substitute their own.
type Executor interface {
	Exec(ctx context.Context, command []string, stdout io.Writer) *ExecStatus
}

type k8sExecutor struct {
	clientSet  kubernetes.Interface
	restConfig *rest.Config
	namespace  string
	podName    string
}

// NewK8sExecutor execs into the worker container of the named pod.
func NewK8sExecutor(clientSet kubernetes.Interface, restConfig *rest.Config,
	namespace, podName string) Executor {
	return &k8sExecutor{
		clientSet:  clientSet,
		restConfig: restConfig,
		namespace:  namespace,
		podName:    podName,
	}
}

func (e *k8sExecutor) Exec(ctx context.Context, command []string, stdout io.Writer) *ExecStatus {
	req := e.clientSet.CoreV1().RESTClient().Post().
		Resource("pods").
		Name(e.podName).
		Namespace(e.namespace).
		SubResource("exec").
		VersionedParams(&corev1.PodExecOptions{
			Container: WorkerContainer,
			Command:   command,
			Stdout:    true,
			Stderr:    true,
		}, scheme.ParameterCodec)

	executor, err := remotecommand.NewSPDYExecutor(e.restConfig, "POST", req.URL())
	if err != nil {
		return &ExecStatus{ExitCode: -1, Internal: true, Message: err.Error()}
	}
	err = executor.StreamWithContext(ctx, remotecommand.StreamOptions{
		Stdout: stdout,
		Stderr: stdout,
	})
	if err == nil {
		return &ExecStatus{Success: true}
	}
	return classifyExecError(err)
}

// classifyExecError maps the exec error onto the status the result
// resolution consumes. Non-zero container exits surface their code; API
// errors with a 500-class code are retryable.
func classifyExecError(err error) *ExecStatus {
	if codeErr, ok := err.(utilexec.CodeExitError); ok {
		return &ExecStatus{ExitCode: codeErr.Code, Message: codeErr.Error()}
	}
	if status, ok := err.(apierrors.APIStatus); ok {
		s := status.Status()
		result := &ExecStatus{ExitCode: -1, Message: s.Message}
		if s.Details != nil {
			for _, cause := range s.Details.Causes {
				if cause.Type == "ExitCode" {
					if code, convErr := strconv.Atoi(cause.Message); convErr == nil {
						result.ExitCode = code
					}
				}
			}
		}
		if result.ExitCode < 0 && s.Code >= 500 {
			result.Internal = true
		}
		return result
	}
	klog.ErrorS(err, "sidecar exec failed outside the kubernetes api")
	return &ExecStatus{ExitCode: -1, Internal: true, Message: err.Error()}
}
