// Package cli implements the camp-watch command-line interface.
//
// The root command (and its alias "check") runs one poll cycle over the
// configured sites and prints a report in text or JSON. "sites" shows the
// configured sites and whether they validate; "holidays" shows the holiday
// tables and the Sunday nights they turn into targets.
package cli
