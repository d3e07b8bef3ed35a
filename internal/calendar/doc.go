// Package calendar decides which dates are worth watching and exports found dates as iCalendar.
//
// A target day is a Saturday, or a Sunday whose following day is a Monday public holiday
// (the middle night of a three-day weekend). Holiday tables are supplied per year by the
// caller; nothing in this package assumes a particular year.
package calendar
