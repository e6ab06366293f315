package syncer

import "github.com/kotosync/kotosync/internal/model"

// NeedsRefresh decides whether a category must be refetched: yes when no
// snapshot is cached, or when the manifest advertises a newer timestamp
// than the one the snapshot was fetched at. A cache at least as fresh as
// the manifest is reused without a network call.
func NeedsRefresh(cached *model.Snapshot, remoteTimestamp int64) bool {
	if cached == nil {
		return true
	}
	return cached.Timestamp < remoteTimestamp
}
