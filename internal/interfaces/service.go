package interfaces

// Service is a host-facing surface of the daemon. It's started once the app
// services are ready and stopped before they are closed.
type Service interface {
	Start() error
	Stop()
}
