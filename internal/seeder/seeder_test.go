package seeder

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"

	"mutualpool/internal/assets/adapters"
	claimsmodels "mutualpool/internal/claims/models"
	"mutualpool/internal/ledger"
	id "mutualpool/pkg/domain"
	outboxmemory "mutualpool/pkg/platform/outbox/store/memory"
	"mutualpool/pkg/requestcontext"
)

type SeederSuite struct {
	suite.Suite
	assets *adapters.MemoryRegistry
	engine *ledger.Engine
	seeder *Seeder
}

func TestSeederSuite(t *testing.T) {
	suite.Run(t, new(SeederSuite))
}

func (s *SeederSuite) SetupTest() {
	s.assets = adapters.NewMemoryRegistry()
	params := ledger.DefaultParams()
	params.PanelSize = 5
	s.engine = ledger.New(ledger.NewMemoryTx(outboxmemory.New()), s.assets, "root", params)
	cfg := Config{Panelists: 5, Stake: 100, OwnerFunds: 10_000, Deposit: 1_000, PendingClaim: 250}
	s.seeder = New(s.engine, s.assets, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func (s *SeederSuite) ctx(caller id.AccountID) context.Context {
	return requestcontext.WithCaller(context.Background(), caller)
}

func (s *SeederSuite) TestSeedAllBuildsAWorkingPool() {
	s.Require().NoError(s.seeder.SeedAll(context.Background()))

	credential, err := s.engine.Credential(s.ctx(Owner), Attester)
	s.Require().NoError(err)
	s.Equal(Insurer, credential.Issuer)

	stakers, err := s.engine.Stakers(s.ctx(Owner))
	s.Require().NoError(err)
	s.Len(stakers, 5)

	pool, err := s.engine.Pool(s.ctx(Owner))
	s.Require().NoError(err)
	s.Equal(uint64(1_000+10), pool.Total())

	claim, err := s.engine.Claim(s.ctx(Owner), 1)
	s.Require().NoError(err)
	s.Equal(claimsmodels.StatusPending, claim.Status)

	claim, err = s.engine.SelectPanel(s.ctx("root"), claim.ID)
	s.Require().NoError(err)
	s.Len(claim.Panel, 5)
}

func (s *SeederSuite) TestSeedAllIsIdempotent() {
	s.Require().NoError(s.seeder.SeedAll(context.Background()))
	s.Require().NoError(s.seeder.SeedAll(context.Background()))

	balance, err := s.engine.Balance(s.ctx(Owner), Owner)
	s.Require().NoError(err)
	s.Equal(uint64(10_000-1_000-10), balance.Wallet)
}

func (s *SeederSuite) TestWithoutAssetRegistryOnlyAccountsAreSeeded() {
	s.seeder.assets = nil
	s.Require().NoError(s.seeder.SeedAll(context.Background()))

	pool, err := s.engine.Pool(s.ctx(Owner))
	s.Require().NoError(err)
	s.Zero(pool.Total())
	balance, err := s.engine.Balance(s.ctx(Owner), Owner)
	s.Require().NoError(err)
	s.Equal(uint64(10_000), balance.Wallet)
}
