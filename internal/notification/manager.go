package notification

import (
	"fmt"
	"sync"
)

var (
	instance *Service
	once     sync.Once
	mu       sync.RWMutex
)

// Initialize sets up the process-wide notification service from config.
// Later calls are ignored.
func Initialize(config *ServiceConfig) {
	once.Do(func() {
		mu.Lock()
		defer mu.Unlock()
		if instance == nil {
			instance = NewService(config)
		}
	})
}

// SetService installs an already built service as the process-wide instance.
func SetService(service *Service) error {
	mu.Lock()
	defer mu.Unlock()
	if instance != nil {
		return fmt.Errorf("notification service already initialized")
	}
	instance = service
	return nil
}

// GetService returns the process-wide service, or nil.
func GetService() *Service {
	mu.RLock()
	defer mu.RUnlock()
	return instance
}

// MustGetService returns the service instance or panics if not initialized.
func MustGetService() *Service {
	service := GetService()
	if service == nil {
		panic("notification service not initialized")
	}
	return service
}

// IsInitialized reports whether a service has been installed.
func IsInitialized() bool {
	mu.RLock()
	defer mu.RUnlock()
	return instance != nil
}
