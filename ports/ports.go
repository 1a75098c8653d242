// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"time"
)

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// FS answers the filesystem questions behind the path validators.
// Existence checks are delegated here so the engine core stays pure.
type FS interface {
	Exists(path string) bool
	IsFile(path string) bool
	IsDir(path string) bool
}

// Reachability performs the url_reachable check. Implementations must
// honor the context deadline; a hung check must never stall a run.
type Reachability interface {
	Check(ctx context.Context, url string) error
}
