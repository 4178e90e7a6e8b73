package interfaces

// EventPublisher announces committed ledger operations to downstream
// consumers. Publishing is best-effort; failures never roll back the
// ledger commit.
type EventPublisher interface {
	Publish(topic string, event any) error
}
