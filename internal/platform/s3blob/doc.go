// Package s3blob stores recording artifacts in an S3-compatible bucket.
package s3blob
