// Package inbox watches a drop directory and uploads recordings placed in
// it.
//
// A file is imported once its size has stopped changing for the settle
// period. Imported files move to "imported/", rejected ones to "rejected/",
// so a restart never uploads the same drop twice. When an auto stage is
// configured the watcher requests it right after the upload.
package inbox
