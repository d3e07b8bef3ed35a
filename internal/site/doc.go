// Package site describes the reservation sites being watched: where to fetch them,
// which extraction strategy reads them, and which facilities are worth reporting.
package site
