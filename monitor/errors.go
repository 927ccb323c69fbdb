// CLAUDE:SUMMARY Sentinel errors for the monitor: collection, download, extraction, configuration, notification, group admin.
package monitor

import (
	"errors"

	"github.com/hazyhaar/diario/monitor/internal/state"
)

// ErrCollection is reported when a source's listing or metadata fetch fails.
var ErrCollection = errors.New("monitor: collection failed")

// ErrDownload is reported when a document body cannot be fetched.
var ErrDownload = errors.New("monitor: download failed")

// ErrExtraction is reported when a document cannot be parsed or a page decoded.
var ErrExtraction = errors.New("monitor: extraction failed")

// ErrConfiguration is reported when a request resolves to no terms or names
// an unknown source.
var ErrConfiguration = errors.New("monitor: configuration error")

// ErrNotification wraps transport failures; they are reported as warnings
// and never abort a run.
var ErrNotification = errors.New("monitor: notification failed")

// Group admin errors.
var (
	ErrInvalidGroup  = state.ErrInvalidGroup
	ErrGroupNotFound = state.ErrGroupNotFound
)
