package store_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"farmnook-dispatch/internal/domain"
	"farmnook-dispatch/internal/store"
)

func TestChunk(t *testing.T) {
	t.Parallel()

	ids := make([]string, 0, 65)
	for i := 0; i < 65; i++ {
		ids = append(ids, string(rune('A'+i%26))+string(rune('a'+i/26)))
	}
	ids = append(ids, ids[0], "", ids[1])

	chunks := store.Chunk(ids, store.MaxBatch)
	require.Len(t, chunks, 3)
	require.Len(t, chunks[0], 30)
	require.Len(t, chunks[1], 30)
	require.Len(t, chunks[2], 5)
	require.Equal(t, ids[0], chunks[0][0])

	require.Nil(t, store.Chunk(nil, 10))
	require.Equal(t, [][]string{{"a", "b"}}, store.Chunk([]string{"a", "b", "a"}, 0))
}

func TestEncodeDecode_RoundTripsTypedRecord(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, 5, 4, 10, 30, 0, 0, time.UTC)
	req := domain.DeliveryRequest{
		ID:            "R1",
		FarmerID:      "F1",
		VehicleID:     "V1",
		ScheduledTime: &at,
	}

	fields, err := store.Encode(req)
	require.NoError(t, err)
	require.Equal(t, false, fields["isAccepted"])
	require.Equal(t, "F1", fields["farmerId"])

	delete(fields, "id")
	var got domain.DeliveryRequest
	require.NoError(t, store.Decode(store.Document{ID: "R1", Data: fields}, &got))
	require.Equal(t, "R1", got.ID)
	require.True(t, got.ScheduledTime.Equal(at))
}

func TestMatches(t *testing.T) {
	t.Parallel()

	data := store.Fields{"isAccepted": false, "weight": 10, "farmerId": "F1"}

	require.True(t, store.Matches(data, nil))
	require.True(t, store.Matches(data, []store.Filter{store.Eq("isAccepted", false)}))
	require.True(t, store.Matches(data, []store.Filter{store.Eq("weight", 10.0)}))
	require.False(t, store.Matches(data, []store.Filter{store.Eq("farmerId", "F2")}))
	require.False(t, store.Matches(data, []store.Filter{store.Eq("isDone", false)}))
	require.True(t, store.Matches(data, []store.Filter{store.Eq("isDeclined", nil)}))
}
