package app

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heartmarshall/shop-catalog-backend/internal/adapter/postgres/testhelper"
	"github.com/heartmarshall/shop-catalog-backend/internal/config"
	"github.com/heartmarshall/shop-catalog-backend/internal/domain"
)

type wireItem struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	ParentID *string `json:"parentId"`
	Type     string  `json:"type"`
	Price    *int64  `json:"price"`
}

type wireBatch struct {
	Items      []wireItem `json:"items"`
	UpdateDate string     `json:"updateDate"`
}

func toWire(b domain.ImportBatch) wireBatch {
	out := wireBatch{UpdateDate: domain.FormatTimestamp(b.UpdateDate)}
	for _, it := range b.Items {
		var parent *string
		if it.ParentID != nil {
			s := it.ParentID.String()
			parent = &s
		}
		out.Items = append(out.Items, wireItem{
			ID:       it.ID.String(),
			Name:     it.Name,
			ParentID: parent,
			Type:     string(it.Type),
			Price:    it.Price,
		})
	}
	return out
}

type e2eNode struct {
	ID       string     `json:"id"`
	Price    *int64     `json:"price"`
	Date     string     `json:"date"`
	Children []*e2eNode `json:"children"`
}

type e2eStatistic struct {
	Items []struct {
		ID    string `json:"id"`
		Price *int64 `json:"price"`
	} `json:"items"`
}

func setupE2E(t *testing.T) *httptest.Server {
	t.Helper()

	pool := testhelper.SetupTestDB(t)
	rdb := testhelper.SetupTestRedis(t)

	cfg := testConfig()
	cfg.Import = config.ImportConfig{MaxItems: 1000, SerializationRetries: 5, RetryBaseDelay: time.Millisecond}
	cfg.Cache = config.CacheConfig{Enabled: true, TTL: time.Minute, KeyPrefix: "e2e:" + uuid.NewString()}

	a := build(cfg, discardLogger(), pool, rdb, prometheus.NewRegistry())
	t.Cleanup(a.close)

	srv := httptest.NewServer(a.handler)
	t.Cleanup(srv.Close)
	return srv
}

func postImport(t *testing.T, srv *httptest.Server, b wireBatch) int {
	t.Helper()
	body, err := json.Marshal(b)
	require.NoError(t, err)
	resp, err := http.Post(srv.URL+"/imports", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	return resp.StatusCode
}

func getJSON(t *testing.T, srv *httptest.Server, path string, v any) int {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK && v != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

func TestE2E_ReferenceCatalog(t *testing.T) {
	t.Parallel()
	srv := setupE2E(t)

	for _, b := range testhelper.CatalogBatches() {
		require.Equal(t, http.StatusOK, postImport(t, srv, toWire(b)))
	}

	var root e2eNode
	require.Equal(t, http.StatusOK, getJSON(t, srv, "/nodes/"+testhelper.GoodsID.String(), &root))
	require.NotNil(t, root.Price)
	assert.Equal(t, int64(58599), *root.Price)
	assert.Equal(t, "2022-02-03T15:00:00.000Z", root.Date)
	assert.Len(t, root.Children, 2)

	var sales e2eStatistic
	require.Equal(t, http.StatusOK, getJSON(t, srv, "/sales?date=2022-02-03T15:00:00.000Z", &sales))
	assert.Len(t, sales.Items, 3)

	var stat e2eStatistic
	require.Equal(t, http.StatusOK, getJSON(t, srv, "/node/"+testhelper.GoodsID.String()+"/statistic", &stat))
	assert.Len(t, stat.Items, 4)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/delete/"+testhelper.PhonesID.String(), nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, http.StatusNotFound, getJSON(t, srv, "/nodes/"+testhelper.JPhoneID.String(), nil))

	root = e2eNode{}
	require.Equal(t, http.StatusOK, getJSON(t, srv, "/nodes/"+testhelper.GoodsID.String(), &root))
	require.NotNil(t, root.Price)
	assert.Equal(t, int64(50999), *root.Price)
	assert.Len(t, root.Children, 1)
}

func TestE2E_RejectsInvalidImport(t *testing.T) {
	t.Parallel()
	srv := setupE2E(t)

	price := int64(100)
	bad := wireBatch{
		UpdateDate: "2022-02-01T12:00:00.000Z",
		Items: []wireItem{
			{ID: uuid.NewString(), Name: "category with price", Type: "CATEGORY", Price: &price},
		},
	}
	assert.Equal(t, http.StatusBadRequest, postImport(t, srv, bad))

	notUUID := wireBatch{
		UpdateDate: "2022-02-01T12:00:00.000Z",
		Items:      []wireItem{{ID: "not-a-uuid", Name: "x", Type: "OFFER", Price: &price}},
	}
	assert.Equal(t, http.StatusBadRequest, postImport(t, srv, notUUID))

	assert.Equal(t, http.StatusOK, getJSON(t, srv, "/health", nil))
}
