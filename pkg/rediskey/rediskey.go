package rediskey

import "fmt"

const (
	ReconcilePrefix   = "reconcile"
	RunSequencePrefix = "seq:run"
)

func NamespaceKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

// BuildReconcileLockKey returns "reconcile:lock"
func BuildReconcileLockKey() string {
	return NamespaceKey(ReconcilePrefix, "lock")
}

// BuildRunSequenceKey returns "seq:run:{yymmdd}"
func BuildRunSequenceKey(day string) string {
	return NamespaceKey(RunSequencePrefix, day)
}
