package workers

// Worker is a background job owned by the Manager.
type Worker interface {
	Start() error
	Stop()
	// Name is used in logs.
	Name() string
}
