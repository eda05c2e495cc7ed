// Package dialect describes the SQL flavour of the engine a session talks to.
//
// A Config is passed explicitly to the catalog and the translator; there is no
// process-wide dialect state. Presets exist for SQLite and PostgreSQL and a
// Config can be loaded from a CUE file, which is unified with the schema in
// schema.cue so that omitted fields take the SQLite defaults.
package dialect
