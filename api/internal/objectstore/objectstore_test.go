package objectstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReadingImagePath(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	assert.Equal(t, "readings/u1/1700000000123_2.jpg", ReadingImagePath("u1", at, 2))
}

func TestPublicURL(t *testing.T) {
	assert.Equal(t, "https://storage.googleapis.com/b/readings/u%201/x.jpg", PublicURL("b", "readings/u 1/x.jpg"))
	assert.Equal(t, "https://storage.googleapis.com/b/", BucketURL("b"))
	assert.Empty(t, BucketURL(""))
}
