package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/yearn/vault_catalog/internal/domain"
	"github.com/yearn/vault_catalog/internal/usecase"
	"go.uber.org/zap"
)

var (
	errUnknownChain   = errors.New("unknown chain")
	errInvalidAddress = errors.New("invalid address")
)

type VaultView struct {
	domain.VaultRecord
	DisplayCategory string          `json:"displayCategory"`
	TokenPrice      decimal.Decimal `json:"tokenPrice"`
}

type holdingRequest struct {
	Wallet  string `json:"wallet"`
	ChainID uint64 `json:"chainID"`
	Address string `json:"address"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// resolveChain maps a requested chain ID to a served one. Local test
// networks resolve to the default chain.
func (s *Server) resolveChain(raw string) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chain id %q", raw)
	}
	id = domain.SafeChainID(id, s.defaultChainID)
	if !s.catalog.HasChain(id) {
		return 0, fmt.Errorf("%w: %d", errUnknownChain, id)
	}
	return id, nil
}

func (s *Server) handleListVaults(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	query := usecase.VaultQuery{
		Category:  q.Get("category"),
		Partner:   q.Get("partner"),
		Search:    q.Get("search"),
		Wallet:    q.Get("wallet"),
		Direction: usecase.ParseSortDirection(q.Get("direction")),
	}

	if raw := q.Get("chainID"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			id, err := s.resolveChain(part)
			if err != nil {
				s.writeError(w, http.StatusBadRequest, err)
				return
			}
			// Local networks resolve to the default chain, which may already be listed.
			if !slices.Contains(query.ChainIDs, id) {
				query.ChainIDs = append(query.ChainIDs, id)
			}
		}
	}

	if raw := q.Get("sort"); raw != "" {
		field, ok := usecase.ParseSortField(raw)
		if !ok {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("unknown sort field %q", raw))
			return
		}
		query.Sort = field
	}

	vaults, err := s.catalog.ListVaults(r.Context(), query)
	if err != nil {
		s.logger.Error("Failed to list vaults", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, errors.New("failed to list vaults"))
		return
	}

	views := make([]VaultView, 0, len(vaults))
	for _, v := range vaults {
		views = append(views, VaultView{
			VaultRecord:     v,
			DisplayCategory: usecase.ClassifyVault(v),
			TokenPrice:      s.catalog.Token(v.Token.Address, v.ChainID).Price,
		})
	}
	s.writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetToken(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	chainID, err := s.resolveChain(vars["chainID"])
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	address := vars["address"]
	if !usecase.IsHexAddress(address) {
		s.writeError(w, http.StatusBadRequest, errInvalidAddress)
		return
	}

	// Unknown tokens are served as a zero-valued placeholder, not a 404.
	s.writeJSON(w, http.StatusOK, s.catalog.Token(address, chainID))
}

func (s *Server) handleListRewards(w http.ResponseWriter, r *http.Request) {
	chainID, err := s.resolveChain(mux.Vars(r)["chainID"])
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	by := usecase.RewardsByTimestamp
	if r.URL.Query().Get("sort") == string(usecase.RewardsByAmount) {
		by = usecase.RewardsByAmount
	}
	dir := usecase.ParseSortDirection(r.URL.Query().Get("direction"))

	rewards := s.catalog.Rewards(chainID, by, dir)
	if rewards == nil {
		rewards = []domain.GaugeReward{}
	}
	s.writeJSON(w, http.StatusOK, rewards)
}

func (s *Server) handleAddHolding(w http.ResponseWriter, r *http.Request) {
	var req holdingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if !usecase.IsHexAddress(req.Wallet) || !usecase.IsHexAddress(req.Address) {
		s.writeError(w, http.StatusBadRequest, errInvalidAddress)
		return
	}
	chainID, err := s.resolveChain(strconv.FormatUint(req.ChainID, 10))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	key := domain.NewVaultKey(chainID, req.Address)
	if err := s.catalog.AddHolding(r.Context(), req.Wallet, key); err != nil {
		s.logger.Error("Failed to save holding", zap.String("wallet", req.Wallet), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, errors.New("failed to save holding"))
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"wallet": strings.ToLower(req.Wallet), "vault": key.String()})
}

func (s *Server) handleListHoldings(w http.ResponseWriter, r *http.Request) {
	wallet := mux.Vars(r)["wallet"]
	if !usecase.IsHexAddress(wallet) {
		s.writeError(w, http.StatusBadRequest, errInvalidAddress)
		return
	}

	vaults, err := s.catalog.Holdings(r.Context(), wallet)
	if err != nil {
		s.logger.Error("Failed to list holdings", zap.String("wallet", wallet), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, errors.New("failed to list holdings"))
		return
	}
	if vaults == nil {
		vaults = []domain.VaultRecord{}
	}
	s.writeJSON(w, http.StatusOK, vaults)
}

func (s *Server) handleDeleteHolding(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	chainID, err := s.resolveChain(vars["chainID"])
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if !usecase.IsHexAddress(vars["wallet"]) || !usecase.IsHexAddress(vars["address"]) {
		s.writeError(w, http.StatusBadRequest, errInvalidAddress)
		return
	}

	if err := s.catalog.RemoveHolding(r.Context(), vars["wallet"], domain.NewVaultKey(chainID, vars["address"])); err != nil {
		s.logger.Error("Failed to delete holding", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, errors.New("failed to delete holding"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"chains": s.catalog.Status(),
	})
}
