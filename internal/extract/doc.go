// Package extract reads availability records out of fetched reservation pages.
//
// Every site declares one strategy:
//   - inline-pair: a regular expression pairing a day number with a status token
//     in a month-scoped page
//   - delimited-detail: a regular expression capturing month/day, status and an
//     optional parenthesized detail
//   - table-dom: an HTML table whose header row lists dates and whose body rows
//     list one facility each
//   - cell-scan: a calendar whose cells each carry a date, a weekday and a
//     status, with no header row
//
// All strategies return records in document order. Matches naming a date that
// does not exist are dropped and logged, never returned as errors.
package extract
