/*
 * Copyright (c) 2026, the Harmony project authors. All rights reserved.
 * See LICENSE for license information.
 */

package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// LoadConfig reads the optional YAML config file and binds the environment
// variables the core consumes. Env values win over file values.
func LoadConfig(path string) error {
	for key, env := range envBindings {
		if err := viper.BindEnv(key, env); err != nil {
			return err
		}
	}
	if path == "" {
		return nil
	}
	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")
	return viper.ReadInConfig()
}

// SetValue overrides a config key; tests use this instead of env vars.
func SetValue(key string, value interface{}) {
	viper.Set(key, value)
}

func getString(key, defaultValue string) string {
	if !viper.IsSet(key) {
		return defaultValue
	}
	return viper.GetString(key)
}

func getInt(key string, defaultValue int) int {
	if !viper.IsSet(key) {
		return defaultValue
	}
	return viper.GetInt(key)
}

func getBool(key string, defaultValue bool) bool {
	if !viper.IsSet(key) {
		return defaultValue
	}
	return viper.GetBool(key)
}

func GetServiceID() string {
	return getString(serviceID, "")
}

func GetInvocationArgs() string {
	return getString(invocationArgs, "")
}

func GetBackendHost() string {
	return getString(backendHost, "harmony")
}

func GetBackendPort() int {
	return getInt(backendPort, 3000)
}

func GetWorkerPort() int {
	return getInt(workerPort, 5000)
}

func GetWorkerTimeoutSecond() int {
	return getInt(workerTimeout, 300)
}

func GetMaxPutWorkRetries() int {
	return getInt(maxPutRetries, 3)
}

func GetArtifactBucket() string {
	return getString(artifactBucket, "")
}

func GetMyPodName() string {
	return getString(myPodName, "")
}

func GetPodNamespace() string {
	return getString(podNamespace, "harmony")
}

func GetWorkingDir() string {
	return getString(workingDir, "/tmp")
}

func GetSharedSecretKey() string {
	return getString(sharedSecretKey, "")
}

func GetClientID() string {
	return getString(clientID, "harmony")
}

func GetDatabaseURL() string {
	return getString(databaseURL, "")
}

func GetMaxGranuleLimit() int {
	return getInt(maxGranuleLimit, 350000)
}

func GetDefaultBatchSize() int {
	return getInt(defaultBatchSize, 2000)
}

func GetMaxSynchronousGranules() int {
	return getInt(maxSynchronousGranules, 1)
}

func GetMaxPrimeRetries() int {
	return getInt(maxPrimeRetries, 1200)
}

func GetWorkItemLeaseSecond() int {
	return getInt(workItemLeaseSeconds, 3600)
}

func GetSidecarReadyTimeoutSecond() int {
	return getInt(sidecarReadyTimeout, 180)
}

func GetS3Endpoint() string {
	return getString(s3Endpoint, "")
}

func GetS3Region() string {
	return getString(s3Region, "us-west-2")
}

func IsS3ForcePathStyle() bool {
	return getBool(s3ForcePathStyle, false)
}

// BuildWorkURL returns the work-item endpoint for this service. Requests to
// the local dev hosts stay on plain http; everything else is terminated
// with TLS. The loopback names join the documented dev hosts so processes
// sharing a network namespace with the work server need no certificates.
func BuildWorkURL() string {
	host := GetBackendHost()
	scheme := "https"
	switch host {
	case "harmony", "host.docker.internal", "localhost", "127.0.0.1":
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s:%d/service/work", scheme, host, GetBackendPort())
}
