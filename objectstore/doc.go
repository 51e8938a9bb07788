// Package objectstore provides core.ObjectStore implementations: an
// in-process Memory store for tests and local development, and a MinIO
// backed store in the minio subpackage.
package objectstore
