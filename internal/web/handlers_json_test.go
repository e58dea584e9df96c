package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yearn/vault_catalog/internal/domain"
	"github.com/yearn/vault_catalog/internal/usecase"
	"go.uber.org/zap/zaptest"
)

type stubIndexer struct {
	vaults map[uint64]string
	tokens map[uint64]string
}

func (s *stubIndexer) FetchVaults(ctx context.Context, chainID uint64) ([]byte, error) {
	if body, ok := s.vaults[chainID]; ok {
		return []byte(body), nil
	}
	return nil, errors.New("no vaults")
}

func (s *stubIndexer) FetchTokens(ctx context.Context, chainID uint64) ([]byte, error) {
	if body, ok := s.tokens[chainID]; ok {
		return []byte(body), nil
	}
	return []byte(`[]`), nil
}

func (s *stubIndexer) FetchRewards(ctx context.Context, chainID uint64) ([]byte, error) {
	return []byte(`[]`), nil
}

type memHoldings struct {
	items []*domain.Holding
}

func (m *memHoldings) SaveHolding(ctx context.Context, h *domain.Holding) error {
	m.items = append(m.items, h)
	return nil
}

func (m *memHoldings) ListHoldings(ctx context.Context, wallet string) ([]*domain.Holding, error) {
	var out []*domain.Holding
	for _, h := range m.items {
		if strings.EqualFold(h.Wallet, wallet) {
			out = append(out, h)
		}
	}
	return out, nil
}

func (m *memHoldings) DeleteHolding(ctx context.Context, wallet string, vault domain.VaultKey) error {
	var kept []*domain.Holding
	for _, h := range m.items {
		if strings.EqualFold(h.Wallet, wallet) && h.Vault == vault {
			continue
		}
		kept = append(kept, h)
	}
	m.items = kept
	return nil
}

const (
	testWallet = "0x9999999999999999999999999999999999999999"
	usdc       = "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"
)

func testVault(n int, name, category string, tvl float64) string {
	return fmt.Sprintf(`{"address": "0x%040x", "chainID": 1, "name": %q, "category": %q,
		"token": {"address": %q, "symbol": "USDC", "decimals": 6}, "tvl": {"tvl": %v}}`, n, name, category, usdc, tvl)
}

func setupTestServer(t *testing.T) (*Server, *memHoldings) {
	log := zaptest.NewLogger(t)
	idx := &stubIndexer{
		vaults: map[uint64]string{
			1: "[" + testVault(1, "Alpha", "Stablecoin", 10) + "," + testVault(2, "Bravo", "auto", 20) + "]",
		},
		tokens: map[uint64]string{
			1: `[{"address": "` + usdc + `", "chainID": 1, "symbol": "USDC", "decimals": 6, "price": "1000000"}]`,
		},
	}
	holdings := &memHoldings{}
	catalog := usecase.NewCatalogService(idx, nil, holdings, usecase.NewNormalizer(log), usecase.NewPriceResolver(log),
		usecase.CatalogOptions{Chains: []uint64{1}}, log)
	t.Cleanup(catalog.Close)
	require.NoError(t, catalog.Refresh(context.Background()))

	return NewServer(0, catalog, NewHub(log), 1, log), holdings
}

func doRequest(s *Server, method, target string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeVaults(t *testing.T, rec *httptest.ResponseRecorder) []VaultView {
	t.Helper()
	var views []VaultView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	return views
}

func TestHandleListVaults(t *testing.T) {
	s, _ := setupTestServer(t)

	rec := doRequest(s, http.MethodGet, "/api/vaults?sort=tvl&direction=desc", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	views := decodeVaults(t, rec)
	require.Len(t, views, 2)
	assert.Equal(t, "Bravo", views[0].Name)
	assert.Equal(t, "Volatile", views[0].DisplayCategory)
	assert.Equal(t, "1", views[0].TokenPrice.String())
}

func TestHandleListVaults_TrailingSlashAndFilters(t *testing.T) {
	s, _ := setupTestServer(t)

	rec := doRequest(s, http.MethodGet, "/api/vaults///?category=STABLECOIN", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	views := decodeVaults(t, rec)
	require.Len(t, views, 1)
	assert.Equal(t, "Alpha", views[0].Name)
}

func TestHandleListVaults_LocalChainFallsBack(t *testing.T) {
	s, _ := setupTestServer(t)

	rec := doRequest(s, http.MethodGet, "/api/vaults?chainID=31337", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeVaults(t, rec), 2)
}

func TestHandleListVaults_LocalChainNotListedTwice(t *testing.T) {
	s, _ := setupTestServer(t)

	for _, ids := range []string{"1,1337", "31337,1", "1,1"} {
		rec := doRequest(s, http.MethodGet, "/api/vaults?chainID="+ids, nil)
		require.Equal(t, http.StatusOK, rec.Code, ids)

		views := decodeVaults(t, rec)
		require.Len(t, views, 2, ids)
		assert.Equal(t, "Alpha", views[0].Name)
		assert.Equal(t, "Bravo", views[1].Name)
	}
}

func TestHandleListVaults_BadParams(t *testing.T) {
	s, _ := setupTestServer(t)

	assert.Equal(t, http.StatusBadRequest, doRequest(s, http.MethodGet, "/api/vaults?chainID=137", nil).Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(s, http.MethodGet, "/api/vaults?chainID=abc", nil).Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(s, http.MethodGet, "/api/vaults?sort=color", nil).Code)
}

func TestHandleGetToken(t *testing.T) {
	s, _ := setupTestServer(t)

	rec := doRequest(s, http.MethodGet, "/api/tokens/1/0x"+strings.ToUpper(usdc[2:]), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var tok domain.TokenRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tok))
	assert.Equal(t, "USDC", tok.Symbol)

	// Unknown token: placeholder, not an error.
	rec = doRequest(s, http.MethodGet, "/api/tokens/1/0x0000000000000000000000000000000000000001", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tok))
	assert.Empty(t, tok.Symbol)
	assert.True(t, tok.Price.IsZero())

	rec = doRequest(s, http.MethodGet, "/api/tokens/1/not-an-address", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHoldingsRoundTrip(t *testing.T) {
	s, holdings := setupTestServer(t)

	body, _ := json.Marshal(holdingRequest{Wallet: testWallet, ChainID: 1, Address: fmt.Sprintf("0x%040x", 2)})
	rec := doRequest(s, http.MethodPost, "/api/holdings", body)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, holdings.items, 1)

	rec = doRequest(s, http.MethodGet, "/api/holdings/"+testWallet, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var held []domain.VaultRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &held))
	require.Len(t, held, 1)
	assert.Equal(t, "Bravo", held[0].Name)

	rec = doRequest(s, http.MethodGet, "/api/vaults?wallet="+testWallet, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	views := decodeVaults(t, rec)
	require.Len(t, views, 1)
	assert.Equal(t, "Alpha", views[0].Name)

	rec = doRequest(s, http.MethodDelete, fmt.Sprintf("/api/holdings/%s/1/0x%040x", testWallet, 2), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, holdings.items)
}

func TestHandleAddHolding_Invalid(t *testing.T) {
	s, _ := setupTestServer(t)

	rec := doRequest(s, http.MethodPost, "/api/holdings", []byte(`{"wallet": "bob", "chainID": 1, "address": "0x1"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(s, http.MethodPost, "/api/holdings", []byte(`not json`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleStatus(t *testing.T) {
	s, _ := setupTestServer(t)

	rec := doRequest(s, http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Chains []usecase.ChainStatus `json:"chains"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Chains, 1)
	assert.Equal(t, 2, resp.Chains[0].Vaults)
}

func TestHandleListRewards_Empty(t *testing.T) {
	s, _ := setupTestServer(t)

	rec := doRequest(s, http.MethodGet, "/api/rewards/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}
