// Package containers starts throwaway MySQL and Mosquitto instances for
// integration tests. Everything here is behind the integration build tag and
// needs a reachable Docker daemon:
//
//	go test -tags integration ./...
package containers
