package snapshot

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/carlaviz/startpositions/internal/viewer"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ viewer.Sink = (*Store)(nil)

func TestObjectKeys(t *testing.T) {
	id := uuid.MustParse("6f1c2a4e-0000-4000-8000-000000000001")
	r := &viewer.Report{SessionID: id, MapName: "Town01"}

	img, rep := ObjectKeys("runs/", r)
	assert.Equal(t, "runs/6f1c2a4e-0000-4000-8000-000000000001/Town01.png", img)
	assert.Equal(t, "runs/6f1c2a4e-0000-4000-8000-000000000001/report.json", rep)

	img, _ = ObjectKeys("", &viewer.Report{SessionID: id})
	assert.Equal(t, "6f1c2a4e-0000-4000-8000-000000000001/map.png", img)
}

func TestNewStore_IncompleteConfig(t *testing.T) {
	tests := []Config{
		{},
		{Endpoint: "localhost:9000"},
		{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b"},
	}
	for _, cfg := range tests {
		_, err := NewStore(context.Background(), cfg, zerolog.Nop())
		assert.ErrorIs(t, err, ErrIncompleteConfig)
	}
}

func TestNewStore_Unreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err = NewStore(ctx, Config{
		Endpoint:  addr,
		AccessKey: "minio",
		SecretKey: "minio123",
		Bucket:    "start-positions",
	}, zerolog.Nop())
	assert.ErrorContains(t, err, "failed to check bucket")
}

func TestRecord_RequiresImage(t *testing.T) {
	s := &Store{Logger: zerolog.Nop(), bucket: "b"}
	err := s.Record(context.Background(), &viewer.Report{SessionID: uuid.New()})
	assert.Error(t, err)
	assert.Equal(t, "snapshot", s.Name())
}
