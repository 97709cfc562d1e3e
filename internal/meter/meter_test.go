package meter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"milk-herd-backend/config"
	"milk-herd-backend/internal/model"
	"milk-herd-backend/internal/parse"
	"milk-herd-backend/internal/pedigree"
)

// mockStore resolves ear tags from a fixed map and records upserts.
type mockStore struct {
	tags     map[string]int64
	upserted []model.MilkRecord
	calls    int
}

func (m *mockStore) FindByEarTag(ctx context.Context, tag string) (*model.Animal, error) {
	normal, err := parse.EarTag(tag)
	if err != nil {
		return nil, err
	}
	id, ok := m.tags[normal]
	if !ok {
		return nil, pedigree.ErrNotFound
	}
	return &model.Animal{ID: id, EarTag: normal}, nil
}

func (m *mockStore) UpsertMilkRecords(ctx context.Context, records []model.MilkRecord) (int, error) {
	m.calls++
	m.upserted = append(m.upserted, records...)
	return len(records), nil
}

// feedServer serves pages of items, pageSize items at a time.
func feedServer(t *testing.T, pageSize int, items []map[string]any) (*httptest.Server, *int32) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "main", body["shed"])
		page := int(body["page"].(float64))

		start := (page - 1) * pageSize
		end := start + pageSize
		if start > len(items) {
			start = len(items)
		}
		if end > len(items) {
			end = len(items)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"code": 0,
			"data": map[string]any{
				"page":     page,
				"pageSize": pageSize,
				"total":    len(items),
				"items":    items[start:end],
			},
		})
	}))
	t.Cleanup(server.Close)
	return server, &requests
}

func meterConfig(url string, pageSize int) config.MeterConfig {
	return config.MeterConfig{
		Enabled:  true,
		Timezone: "Europe/Dublin",
		Request: config.MeterRequest{
			URL:      url,
			PageSize: pageSize,
			Payload:  map[string]any{"shed": "main"},
		},
	}
}

func TestSyncOnce(t *testing.T) {
	server, requests := feedServer(t, 2, []map[string]any{
		{"earTag": "ie#0001", "date": "2024-05-01", "liters": 18.456},
		{"earTag": "IE 0002", "date": "2024-05-01 06:15:00", "liters": "21,5 L", "notes": "am"},
		{"earTag": "IE 0009", "date": "2024-05-01", "liters": 10},
		{"earTag": "IE 0001", "date": "yesterday", "liters": 3},
		{"earTag": "IE 0001", "date": "2024-05-01T23:30:00Z", "liters": "7"},
	})
	st := &mockStore{tags: map[string]int64{"IE 0001": 1, "IE 0002": 2}}

	res, err := NewService(meterConfig(server.URL, 2), st).SyncOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(3), atomic.LoadInt32(requests))
	assert.Equal(t, Result{Fetched: 5, Stored: 3, Skipped: 1, Invalid: 1}, res)
	require.Len(t, st.upserted, 3)

	got := map[int64]map[string]string{}
	for _, r := range st.upserted {
		if got[r.AnimalID] == nil {
			got[r.AnimalID] = map[string]string{}
		}
		got[r.AnimalID][time.Time(r.Date).Format("2006-01-02")] = r.Liters.String()
	}
	assert.Equal(t, map[int64]map[string]string{
		1: {"2024-05-01": "18.46", "2024-05-02": "7"},
		2: {"2024-05-01": "21.5"},
	}, got)
}

func TestSyncOnce_LaterReadingForSameDayWins(t *testing.T) {
	server, _ := feedServer(t, 10, []map[string]any{
		{"earTag": "IE 0001", "date": "2024-05-01", "liters": 5},
		{"earTag": "IE 0001", "date": "2024-05-01 18:00:00", "liters": 6},
	})
	st := &mockStore{tags: map[string]int64{"IE 0001": 1}}

	res, err := NewService(meterConfig(server.URL, 10), st).SyncOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Stored)
	require.Len(t, st.upserted, 1)
	assert.Equal(t, "6", st.upserted[0].Liters.String())
}

func TestSyncOnce_FetchErrorWithNoItemsAborts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()
	st := &mockStore{}

	_, err := NewService(meterConfig(server.URL, 10), st).SyncOnce(context.Background())
	assert.Error(t, err)
	assert.Zero(t, st.calls, "nothing is written when the feed is down")
}

func TestSyncOnce_NonZeroCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code": 7, "data": {}}`))
	}))
	defer server.Close()

	_, err := NewService(meterConfig(server.URL, 10), &mockStore{}).SyncOnce(context.Background())
	assert.ErrorContains(t, err, "non-zero application code: 7")
}

func TestRun_Disabled(t *testing.T) {
	st := &mockStore{}
	cfg := meterConfig("http://127.0.0.1:0", 10)
	cfg.Enabled = false

	done := make(chan struct{})
	go func() {
		NewService(cfg, st).Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("disabled meter sync should return immediately")
	}
	assert.Zero(t, st.calls)
}

func TestReading_UnmarshalJSON(t *testing.T) {
	var item ApiItem
	require.NoError(t, json.Unmarshal([]byte(`{"liters": 12.5}`), &item))
	assert.Equal(t, Reading("12.5"), item.Liters)

	require.NoError(t, json.Unmarshal([]byte(`{"liters": "12,5 L"}`), &item))
	assert.Equal(t, Reading("12,5 L"), item.Liters)

	require.NoError(t, json.Unmarshal([]byte(`{"liters": null}`), &item))
	assert.Equal(t, Reading(""), item.Liters)

	assert.Error(t, json.Unmarshal([]byte(`{"liters": true}`), &item))
}
