// Package metrics holds the Prometheus collectors of the service. Each file
// enqueues its collectors from init(); MustRegister installs them once.
package metrics

import "strings"

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
