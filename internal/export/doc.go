// Package export copies completed assets out of the data directory, either
// to a local path or into an S3-compatible bucket.
//
// The destination string selects the target: "s3://<key>" (or "s3:" alone
// for the default key) uploads to the configured bucket, anything else is a
// local file or directory path.
package export
