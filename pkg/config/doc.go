// Package config loads appliance connection settings and desired-state
// manifests.
package config
