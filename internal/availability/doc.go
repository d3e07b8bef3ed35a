// Package availability defines the records extracted from reservation calendars.
//
// A Record is one (date, status) observation for a site, optionally scoped to a
// facility. Records are created through NewRecord, which rejects dates that do not
// exist, and are never modified afterwards.
package availability
