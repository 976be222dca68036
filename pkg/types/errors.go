package types

import "errors"

// Sentinel errors returned by the debrid and library adapters. Callers
// in pkg/engine branch on these with errors.Is rather than string matching.
var (
	// ErrTorrentNotFound is returned when the debrid no longer recognizes a
	// torrent id the engine is still tracking (deleted externally, expired).
	ErrTorrentNotFound = errors.New("torrent not found on debrid")

	// ErrContentInfringement is returned when the debrid rejects a magnet
	// for hosting infringing content (real-debrid responds 403 on addMagnet
	// for blocked hashes).
	ErrContentInfringement = errors.New("content rejected: infringement")

	// ErrTooManyActiveDownloads is returned when the debrid is at its own
	// internal active-slot ceiling (real-debrid responds 509 on addMagnet).
	ErrTooManyActiveDownloads = errors.New("too many active downloads on debrid")

	// ErrItemNotFound is returned by the library adapter when an item id
	// or pseudo id cannot be resolved.
	ErrItemNotFound = errors.New("item not found")
)
