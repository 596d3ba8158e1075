// Package postgres provides the PostgreSQL implementation of the
// settlement journal, plus schema migration support. It is the only
// package that speaks SQL; callers depend on the journal.Journal
// interface instead.
package postgres
