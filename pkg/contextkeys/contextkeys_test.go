package contextkeys

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestRequestID(t *testing.T) {
	assert.Empty(t, RequestID(context.Background()))

	ctx := context.WithValue(context.Background(), RequestIDKey, "abc")
	assert.Equal(t, "abc", RequestID(ctx))
}

func TestLogger(t *testing.T) {
	fallback := logrus.New()
	assert.Same(t, fallback, Logger(context.Background(), fallback).Logger)

	entry := logrus.NewEntry(logrus.New()).WithField("request_id", "abc")
	ctx := WithLogger(context.Background(), entry)
	assert.Same(t, entry, Logger(ctx, fallback))
}
