// Package model holds the entities a scan resolves: audio devices and the
// clock settings record.
//
// # Lifecycles
//
// Devices and settings are built differently and are kept apart:
//
//	Device    created whole from one info event, appended, never updated
//	Settings  one record, updated one field per property event
//
// A Store accumulates both during a scan. It has no locks; it is only
// touched from the dispatch goroutine and read once, through Snapshot,
// after the scan loop has stopped.
package model
