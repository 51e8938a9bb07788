package minio

import (
	"errors"
	"testing"

	"github.com/hupe1980/docmesh/core"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
)

func TestMapError(t *testing.T) {
	err := mapError("get b/k", minio.ErrorResponse{Code: "NoSuchKey", Message: "missing"})
	assert.ErrorIs(t, err, core.ErrNotFound)

	err = mapError("get b/k", minio.ErrorResponse{Code: "NoSuchBucket"})
	assert.ErrorIs(t, err, core.ErrNotFound)

	err = mapError("get b/k", errors.New("connection refused"))
	assert.NotErrorIs(t, err, core.ErrNotFound)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestNew_DefaultEndpoint(t *testing.T) {
	s, err := New(func(o *Options) {
		o.AccessKey = "minioadmin"
		o.SecretKey = "minioadmin"
	})
	assert.NoError(t, err)
	assert.Equal(t, "minio:9000", s.client.EndpointURL().Host)
}
