/*
 * Copyright (c) 2026, the Harmony project authors. All rights reserved.
 * See LICENSE for license information.
 */

package config

// viper keys, with the environment variable each one binds to.
const (
	serviceID       = "harmony_service"      // HARMONY_SERVICE
	invocationArgs  = "invocation_args"      // INVOCATION_ARGS
	backendHost     = "backend_host"         // BACKEND_HOST
	backendPort     = "backend_port"         // BACKEND_PORT
	workerPort      = "worker_port"          // WORKER_PORT
	workerTimeout   = "worker_timeout"       // WORKER_TIMEOUT, seconds
	maxPutRetries   = "max_put_work_retries" // MAX_PUT_WORK_RETRIES
	artifactBucket  = "artifact_bucket"      // ARTIFACT_BUCKET
	myPodName       = "my_pod_name"          // MY_POD_NAME
	workingDir      = "working_dir"          // WORKING_DIR
	sharedSecretKey = "shared_secret_key"    // SHARED_SECRET_KEY
	clientID        = "client_id"            // CLIENT_ID
	databaseURL     = "database_url"         // DATABASE_URL
	podNamespace    = "pod_namespace"        // POD_NAMESPACE
)

// keys without an env binding; set from the config file.
const (
	maxGranuleLimit        = "max_granule_limit"
	defaultBatchSize       = "default_batch_size"
	maxSynchronousGranules = "max_synchronous_granules"
	maxPrimeRetries        = "max_prime_retries"
	workItemLeaseSeconds   = "work_item_lease_seconds"
	sidecarReadyTimeout    = "sidecar_ready_timeout_seconds"
	s3Endpoint             = "s3_endpoint"
	s3Region               = "s3_region"
	s3ForcePathStyle       = "s3_force_path_style"
)

var envBindings = map[string]string{
	serviceID:       "HARMONY_SERVICE",
	invocationArgs:  "INVOCATION_ARGS",
	backendHost:     "BACKEND_HOST",
	backendPort:     "BACKEND_PORT",
	workerPort:      "WORKER_PORT",
	workerTimeout:   "WORKER_TIMEOUT",
	maxPutRetries:   "MAX_PUT_WORK_RETRIES",
	artifactBucket:  "ARTIFACT_BUCKET",
	myPodName:       "MY_POD_NAME",
	workingDir:      "WORKING_DIR",
	sharedSecretKey: "SHARED_SECRET_KEY",
	clientID:        "CLIENT_ID",
	databaseURL:     "DATABASE_URL",
	podNamespace:    "POD_NAMESPACE",
}
