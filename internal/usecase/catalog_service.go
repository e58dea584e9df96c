package usecase

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/puzpuzpuz/xsync/v4"
	"github.com/yearn/vault_catalog/internal/domain"
	"go.uber.org/zap"
)

// DefaultRewardDecimals is the scale used to order reward amounts of mixed tokens.
const DefaultRewardDecimals int32 = 18

// ChainSnapshot is the immutable result of one fetch cycle for one chain.
// A newer cycle replaces it as a whole.
type ChainSnapshot struct {
	ChainID    uint64
	Vaults     []domain.VaultRecord
	Rewards    []domain.GaugeReward
	Degraded   int
	FetchedAt  time.Time
	Stale      bool // at least one feed was served from its persisted payload
	StaleFeeds []domain.PayloadKind
}

func (c *ChainSnapshot) markStale(kind domain.PayloadKind) {
	c.Stale = true
	c.StaleFeeds = append(c.StaleFeeds, kind)
}

type ChainStatus struct {
	ChainID    uint64               `json:"chainID"`
	Vaults     int                  `json:"vaults"`
	Rewards    int                  `json:"rewards"`
	Degraded   int                  `json:"degraded"`
	FetchedAt  time.Time            `json:"fetchedAt"`
	Stale      bool                 `json:"stale"`
	StaleFeeds []domain.PayloadKind `json:"staleFeeds,omitempty"`
}

type RefreshEvent struct {
	Updated []uint64  `json:"updated"`
	Failed  []uint64  `json:"failed"`
	At      time.Time `json:"at"`
}

type VaultQuery struct {
	ChainIDs  []uint64
	Category  string
	Partner   string
	Search    string
	Wallet    string // vaults held by this wallet are excluded
	Sort      SortField
	Direction SortDirection
}

type CatalogOptions struct {
	Chains     []uint64
	Workers    int
	Categories map[string]bool
	Partners   map[string]bool
}

type CatalogService struct {
	indexer    domain.Indexer
	snapshots  domain.SnapshotRepository
	holdings   domain.HoldingRepository
	normalizer *Normalizer
	prices     *PriceResolver
	categories InclusionMap
	partners   InclusionMap
	chains     []uint64
	pool       pond.Pool
	state      *xsync.Map[uint64, *ChainSnapshot]
	callbacks  []func(RefreshEvent)
	mu         sync.Mutex
	logger     *zap.Logger
	timeNow    func() time.Time // For testing
}

func NewCatalogService(
	indexer domain.Indexer,
	snapshots domain.SnapshotRepository,
	holdings domain.HoldingRepository,
	normalizer *Normalizer,
	prices *PriceResolver,
	opts CatalogOptions,
	logger *zap.Logger,
) *CatalogService {
	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}
	return &CatalogService{
		indexer:    indexer,
		snapshots:  snapshots,
		holdings:   holdings,
		normalizer: normalizer,
		prices:     prices,
		categories: NewInclusionMap(opts.Categories),
		partners:   NewInclusionMap(opts.Partners),
		chains:     uniqueChains(opts.Chains),
		pool:       pond.NewPool(workers),
		state:      xsync.NewMap[uint64, *ChainSnapshot](),
		logger:     logger,
		timeNow:    time.Now,
	}
}

// Close stops the fetch workers.
func (s *CatalogService) Close() {
	s.pool.StopAndWait()
}

func (s *CatalogService) Chains() []uint64 {
	return slices.Clone(s.chains)
}

func (s *CatalogService) HasChain(chainID uint64) bool {
	return slices.Contains(s.chains, chainID)
}

func (s *CatalogService) OnRefresh(callback func(RefreshEvent)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = append(s.callbacks, callback)
}

// Refresh fetches every configured chain in parallel and swaps in the new
// snapshots. Chains that fail without any persisted fallback keep their
// previous snapshot and are reported in the returned error.
func (s *CatalogService) Refresh(ctx context.Context) error {
	var (
		mu      sync.Mutex
		updated []uint64
		failed  []uint64
		errs    []error
	)

	group := s.pool.NewGroupContext(ctx)
	groupCtx := group.Context()
	for _, chainID := range s.chains {
		chainID := chainID
		group.Submit(func() {
			err := s.refreshChain(groupCtx, chainID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed = append(failed, chainID)
				errs = append(errs, fmt.Errorf("chain %d: %w", chainID, err))
				return
			}
			updated = append(updated, chainID)
		})
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
		s.logger.Warn("Refresh group failed", zap.Error(err))
	}

	slices.Sort(updated)
	slices.Sort(failed)
	s.notify(RefreshEvent{Updated: updated, Failed: failed, At: s.timeNow()})

	return errors.Join(errs...)
}

func (s *CatalogService) notify(ev RefreshEvent) {
	s.mu.Lock()
	callbacks := slices.Clone(s.callbacks)
	s.mu.Unlock()

	for _, cb := range callbacks {
		cb(ev)
	}
}

func (s *CatalogService) refreshChain(ctx context.Context, chainID uint64) error {
	vaults, err := loadFeed(ctx, s, chainID, domain.PayloadVaults, s.indexer.FetchVaults, s.normalizer.NormalizeVaults)
	if err != nil {
		return err
	}

	snap := &ChainSnapshot{
		ChainID:   chainID,
		Vaults:    make([]domain.VaultRecord, 0, len(vaults.records)),
		FetchedAt: vaults.fetchedAt,
	}
	if vaults.stale {
		snap.markStale(domain.PayloadVaults)
	}
	for i, v := range vaults.records {
		if !vaults.results[i].IsValid() {
			snap.Degraded++
		}
		// Feeds occasionally mix chains; keep only this chain's records.
		if v.ChainID == 0 {
			v.ChainID = chainID
		}
		if v.ChainID != chainID {
			continue
		}
		snap.Vaults = append(snap.Vaults, v)
	}

	// Prices and rewards are optional; a failure there keeps the vault list alive.
	if tokens, err := loadFeed(ctx, s, chainID, domain.PayloadTokens, s.indexer.FetchTokens, s.normalizer.NormalizeTokens); err != nil {
		s.logger.Warn("Token prices unavailable", zap.Uint64("chain_id", chainID), zap.Error(err))
	} else {
		if tokens.stale {
			snap.markStale(domain.PayloadTokens)
		}
		for i := range tokens.records {
			if tokens.records[i].ChainID == 0 {
				tokens.records[i].ChainID = chainID
			}
		}
		s.prices.Replace(chainID, tokens.records)
	}

	if rewards, err := loadFeed(ctx, s, chainID, domain.PayloadRewards, s.indexer.FetchRewards, s.normalizer.NormalizeRewards); err != nil {
		s.logger.Warn("Reward feed unavailable", zap.Uint64("chain_id", chainID), zap.Error(err))
	} else {
		if rewards.stale {
			snap.markStale(domain.PayloadRewards)
		}
		snap.Rewards = rewards.records
	}

	s.state.Store(chainID, snap)
	s.logger.Info("Chain refreshed",
		zap.Uint64("chain_id", chainID),
		zap.Int("vaults", len(snap.Vaults)),
		zap.Int("degraded", snap.Degraded),
		zap.Bool("stale", snap.Stale),
	)
	return nil
}

// errNoValidRecords marks a payload whose records all failed validation,
// such as an error object served with a 200 status.
var errNoValidRecords = errors.New("no record passed validation")

// feed is one normalized payload and where it came from.
type feed[T any] struct {
	records   []T
	results   []NormalizeResult[T]
	fetchedAt time.Time
	stale     bool
}

func validCount[T any](results []NormalizeResult[T]) int {
	n := 0
	for _, r := range results {
		if r.IsValid() {
			n++
		}
	}
	return n
}

// loadFeed fetches and normalizes one feed. Only a payload with at least one
// valid record is persisted as the fallback. When the fetch fails, or every
// record is degraded, the last persisted payload is served instead; a fully
// degraded payload is still served when nothing was persisted.
func loadFeed[T any](
	ctx context.Context,
	s *CatalogService,
	chainID uint64,
	kind domain.PayloadKind,
	fetch func(context.Context, uint64) ([]byte, error),
	normalize func([]byte) ([]T, []NormalizeResult[T], error),
) (*feed[T], error) {
	var degraded *feed[T]

	payload, err := fetch(ctx, chainID)
	if err == nil {
		records, results, nerr := normalize(payload)
		now := s.timeNow()
		switch {
		case nerr != nil:
			err = nerr
		case len(results) > 0 && validCount(results) == 0:
			degraded = &feed[T]{records: records, results: results, fetchedAt: now}
			err = errNoValidRecords
		default:
			if len(results) > 0 {
				s.persist(ctx, chainID, kind, payload, now)
			}
			return &feed[T]{records: records, results: results, fetchedAt: now}, nil
		}
	}

	s.logger.Warn("Fetch failed, trying persisted snapshot",
		zap.Uint64("chain_id", chainID), zap.String("kind", string(kind)), zap.Error(err))
	if prev := loadPersisted(ctx, s, chainID, kind, normalize); prev != nil {
		return prev, nil
	}
	if degraded != nil {
		return degraded, nil
	}
	return nil, err
}

func loadPersisted[T any](
	ctx context.Context,
	s *CatalogService,
	chainID uint64,
	kind domain.PayloadKind,
	normalize func([]byte) ([]T, []NormalizeResult[T], error),
) *feed[T] {
	if s.snapshots == nil {
		return nil
	}
	snap, err := s.snapshots.LatestSnapshot(ctx, chainID, kind)
	if err != nil {
		s.logger.Error("Failed to read persisted snapshot", zap.Uint64("chain_id", chainID), zap.String("kind", string(kind)), zap.Error(err))
		return nil
	}
	if snap == nil {
		return nil
	}
	records, results, err := normalize(snap.Payload)
	if err != nil {
		s.logger.Error("Persisted snapshot is unreadable", zap.Uint64("chain_id", chainID), zap.String("kind", string(kind)), zap.Error(err))
		return nil
	}
	return &feed[T]{records: records, results: results, fetchedAt: snap.FetchedAt, stale: true}
}

func (s *CatalogService) persist(ctx context.Context, chainID uint64, kind domain.PayloadKind, payload []byte, at time.Time) {
	if s.snapshots == nil {
		return
	}
	snap := &domain.Snapshot{ChainID: chainID, Kind: kind, Payload: payload, FetchedAt: at}
	if err := s.snapshots.SaveSnapshot(ctx, snap); err != nil {
		s.logger.Error("Failed to persist snapshot", zap.Uint64("chain_id", chainID), zap.String("kind", string(kind)), zap.Error(err))
	}
}

func (s *CatalogService) Snapshot(chainID uint64) (*ChainSnapshot, bool) {
	return s.state.Load(chainID)
}

// ExcludedKeys returns the composite keys of the vaults a wallet already holds.
func (s *CatalogService) ExcludedKeys(ctx context.Context, wallet string) (domain.KeySet, error) {
	if wallet == "" || s.holdings == nil {
		return domain.NewKeySet(), nil
	}
	held, err := s.holdings.ListHoldings(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("list holdings: %w", err)
	}
	keys := domain.NewKeySet()
	for _, h := range held {
		keys.Add(h.Vault)
	}
	return keys, nil
}

// uniqueChains drops repeated chain IDs, keeping first-seen order.
func uniqueChains(ids []uint64) []uint64 {
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

func (s *CatalogService) chainsFor(ids []uint64) []uint64 {
	if len(ids) == 0 {
		return s.chains
	}
	return uniqueChains(ids)
}

// Visible applies the configured category and partner inclusion maps.
// Keys the maps do not mention are shown.
func (s *CatalogService) Visible(v domain.VaultRecord) bool {
	if s.categories.Lookup(ClassifyVault(v)) == Excluded {
		return false
	}
	if v.Partner != "" && s.partners.Lookup(strings.TrimSpace(v.Partner)) == Excluded {
		return false
	}
	return true
}

func matchesSearch(v domain.VaultRecord, search string) bool {
	needle := strings.ToLower(strings.TrimSpace(search))
	if needle == "" {
		return true
	}
	for _, hay := range []string{v.Name, v.Symbol, v.Token.Symbol, v.Token.Name, v.Address} {
		if strings.Contains(strings.ToLower(hay), needle) {
			return true
		}
	}
	return false
}

// ListVaults runs the eligibility filter, classification and sort over the
// current snapshots.
func (s *CatalogService) ListVaults(ctx context.Context, q VaultQuery) ([]domain.VaultRecord, error) {
	excluded, err := s.ExcludedKeys(ctx, q.Wallet)
	if err != nil {
		return nil, err
	}

	preds := []Predicate{Eligibility(excluded), s.Visible}
	if q.Category != "" {
		preds = append(preds, func(v domain.VaultRecord) bool { return MatchesCategory(v, q.Category) })
	}
	if q.Partner != "" {
		preds = append(preds, func(v domain.VaultRecord) bool { return MatchesPartner(v, q.Partner) })
	}
	if q.Search != "" {
		preds = append(preds, func(v domain.VaultRecord) bool { return matchesSearch(v, q.Search) })
	}
	pred := All(preds...)

	var out []domain.VaultRecord
	for _, chainID := range s.chainsFor(q.ChainIDs) {
		snap, ok := s.state.Load(chainID)
		if !ok {
			continue
		}
		out = append(out, Filter(snap.Vaults, pred)...)
	}

	if q.Sort != "" {
		out = SortVaults(out, q.Sort, q.Direction)
	}
	return out, nil
}

// Holdings returns the current records of the vaults held by wallet, in
// holding order. Held vaults missing from the snapshots are skipped.
func (s *CatalogService) Holdings(ctx context.Context, wallet string) ([]domain.VaultRecord, error) {
	if s.holdings == nil {
		return nil, nil
	}
	held, err := s.holdings.ListHoldings(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("list holdings: %w", err)
	}
	var out []domain.VaultRecord
	for _, h := range held {
		snap, ok := s.state.Load(h.Vault.ChainID)
		if !ok {
			continue
		}
		for _, v := range snap.Vaults {
			if v.Key() == domain.NewVaultKey(h.Vault.ChainID, h.Vault.Address) {
				out = append(out, v)
				break
			}
		}
	}
	return out, nil
}

func (s *CatalogService) AddHolding(ctx context.Context, wallet string, vault domain.VaultKey) error {
	if s.holdings == nil {
		return errors.New("holdings storage is not configured")
	}
	return s.holdings.SaveHolding(ctx, &domain.Holding{Wallet: wallet, Vault: vault, CreatedAt: s.timeNow()})
}

func (s *CatalogService) RemoveHolding(ctx context.Context, wallet string, vault domain.VaultKey) error {
	if s.holdings == nil {
		return errors.New("holdings storage is not configured")
	}
	return s.holdings.DeleteHolding(ctx, wallet, vault)
}

func (s *CatalogService) Token(address string, chainID uint64) domain.TokenRecord {
	return s.prices.Token(address, chainID)
}

type RewardSort string

const (
	RewardsByAmount    RewardSort = "amount"
	RewardsByTimestamp RewardSort = "timestamp"
)

// Rewards returns the gauge reward feed of a chain, ordered by the given key.
func (s *CatalogService) Rewards(chainID uint64, by RewardSort, dir SortDirection) []domain.GaugeReward {
	snap, ok := s.state.Load(chainID)
	if !ok {
		return nil
	}
	if by == RewardsByAmount {
		return SortRewards(snap.Rewards, DefaultRewardDecimals, dir)
	}
	out := slices.Clone(snap.Rewards)
	slices.SortStableFunc(out, func(a, b domain.GaugeReward) int {
		x, y := float64(a.Timestamp), float64(b.Timestamp)
		return sign(CompareNumbers(&x, &y, dir))
	})
	return out
}

func (s *CatalogService) Status() []ChainStatus {
	out := make([]ChainStatus, 0, len(s.chains))
	for _, chainID := range s.chains {
		st := ChainStatus{ChainID: chainID}
		if snap, ok := s.state.Load(chainID); ok {
			st.Vaults = len(snap.Vaults)
			st.Rewards = len(snap.Rewards)
			st.Degraded = snap.Degraded
			st.FetchedAt = snap.FetchedAt
			st.Stale = snap.Stale
			st.StaleFeeds = snap.StaleFeeds
		}
		out = append(out, st)
	}
	return out
}
