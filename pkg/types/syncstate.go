// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// SyncState records the last remote reference the local knowledgebase is
// known to be consistent with. A publish is only valid while the live
// remote reference still equals RemoteRef.
type SyncState struct {
	RemoteRef string    `json:"remote_ref" yaml:"remote_ref"`
	SyncedAt  time.Time `json:"synced_at" yaml:"synced_at"`
}

// IsZero reports whether no sync has been recorded yet.
func (s SyncState) IsZero() bool {
	return s.RemoteRef == ""
}
