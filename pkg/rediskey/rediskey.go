package rediskey

import "fmt"

// Sequence counter namespaces (global convention across services)
const (
	SequencePrefix   = "seq"
	ContractPrefix   = "CT"
	WithdrawalPrefix = "WD"
)

func NamespaceKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

// BuildSequenceKey returns "seq:{prefix}:{period}", the monthly counter a
// business code is issued from.
func BuildSequenceKey(prefix, period string) string {
	return NamespaceKey(SequencePrefix, NamespaceKey(prefix, period))
}
