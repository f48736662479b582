package storage

type VersionHashSet = map[Version]struct{}

type TransactionState struct {
	Version  Version
	ReadOnly bool
	Active   VersionHashSet
}

// IsVisible reports whether a write made at version can be seen from this state.
func (txnState *TransactionState) IsVisible(version Version) bool {
	if _, ok := txnState.Active[version]; ok {
		// still running, only its own writes are visible
		return version == txnState.Version
	}
	if txnState.ReadOnly {
		return version < txnState.Version
	}
	return version <= txnState.Version
}
