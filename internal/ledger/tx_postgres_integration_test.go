//go:build integration

package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"mutualpool/internal/assets/adapters"
	claimsmodels "mutualpool/internal/claims/models"
	claimsservice "mutualpool/internal/claims/service"
	credentialservice "mutualpool/internal/credential/service"
	eligibilityservice "mutualpool/internal/eligibility/service"
	rulesetmodels "mutualpool/internal/ruleset/models"
	id "mutualpool/pkg/domain"
	dErrors "mutualpool/pkg/domain-errors"
	outboxpostgres "mutualpool/pkg/platform/outbox/store/postgres"
	"mutualpool/pkg/testutil"
	"mutualpool/pkg/testutil/containers"
)

type PostgresLedgerSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	clock    *testutil.Clock
	engine   *Engine
}

func TestPostgresLedgerSuite(t *testing.T) {
	suite.Run(t, new(PostgresLedgerSuite))
}

func (s *PostgresLedgerSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
}

func (s *PostgresLedgerSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateAll(context.Background()))
	s.clock = testutil.NewClock(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC))

	registry := adapters.NewMemoryRegistry()
	registry.Register(ids.Subject, ids.Owner)
	registry.AuthorizeAttester(ids.Subject, ids.Attester)

	params := DefaultParams()
	params.PanelSize = 3
	s.engine = New(NewPostgresTx(s.postgres.DB), registry, ids.Admin, params)

	s.Require().NoError(s.engine.GrantRole(s.clock.As(ids.Admin), ids.Issuer, rulesetmodels.RoleIssuer))
	_, err := s.engine.IssueCredential(s.clock.As(ids.Issuer), credentialservice.IssueCommand{
		Holder: ids.Attester, LicenseRef: "MD-1", ExpiresAt: s.clock.Now().Add(365 * 24 * time.Hour),
	})
	s.Require().NoError(err)
	_, err = s.engine.FundAccount(s.clock.As(ids.Admin), ids.Owner, 1000)
	s.Require().NoError(err)
}

func (s *PostgresLedgerSuite) enroll(juror id.AccountID) {
	_, err := s.engine.RegisterParticipant(s.clock.As(ids.Admin), eligibilityservice.RegisterCommand{
		Participant: juror, DID: "did:example:" + juror.String(),
	})
	s.Require().NoError(err)
	_, err = s.engine.PerformCheck(s.clock.As(ids.Admin), juror, "hash-"+juror.String(), true)
	s.Require().NoError(err)
	_, err = s.engine.FundAccount(s.clock.As(ids.Admin), juror, 100)
	s.Require().NoError(err)
	_, err = s.engine.Stake(s.clock.As(juror), 100)
	s.Require().NoError(err)
}

func (s *PostgresLedgerSuite) TestClaimLifecyclePersists() {
	jurors := testutil.Jurors(3)
	for _, j := range jurors {
		s.enroll(j)
	}
	_, err := s.engine.Deposit(s.clock.As(ids.Owner), ids.Subject, 500)
	s.Require().NoError(err)

	claim, err := s.engine.SubmitClaim(s.clock.As(ids.Owner), claimsservice.SubmitCommand{
		Subject: ids.Subject, Attester: ids.Attester, EvidenceRef: "ipfs://assessment", Amount: 100,
	})
	s.Require().NoError(err)
	s.Equal(id.ClaimID(1), claim.ID)

	_, err = s.engine.SelectPanel(s.clock.As(ids.Admin), claim.ID)
	s.Require().NoError(err)
	for i, j := range jurors {
		_, err = s.engine.Vote(s.clock.As(j), claim.ID, i < 2)
		s.Require().NoError(err)
	}

	stored, err := s.engine.Claim(s.clock.As(ids.Owner), claim.ID)
	s.Require().NoError(err)
	s.Equal(claimsmodels.StatusApproved, stored.Status)
	s.True(stored.PaidOut)
	s.Len(stored.Votes, 3)
	s.Equal(jurors, stored.Panel)

	pool, err := s.engine.Pool(s.clock.As(ids.Owner))
	s.Require().NoError(err)
	s.Equal(uint64(510-100-2), pool.Total())

	history, err := s.engine.ReputationHistory(s.clock.As(ids.Admin), jurors[2])
	s.Require().NoError(err)
	s.Require().Len(history, 1)
	s.Equal(498, history[0].Score)

	pending, err := outboxpostgres.New(s.postgres.DB).CountPending(context.Background())
	s.Require().NoError(err)
	s.Positive(pending)
}

func (s *PostgresLedgerSuite) TestRollbackDiscardsWrites() {
	ctx := context.Background()
	before, err := outboxpostgres.New(s.postgres.DB).CountPending(ctx)
	s.Require().NoError(err)

	err = s.engine.tx.RunInTx(s.clock.As(ids.Admin), func(ctx context.Context, stores Stores) error {
		if _, err := s.engine.bind(stores).fund.FundAccount(ctx, ids.Owner, 50); err != nil {
			return err
		}
		return errors.New("boom")
	})
	s.Require().EqualError(err, "boom")

	balance, err := s.engine.Balance(s.clock.As(ids.Owner), ids.Owner)
	s.Require().NoError(err)
	s.Equal(uint64(1000), balance.Wallet)
	after, err := outboxpostgres.New(s.postgres.DB).CountPending(ctx)
	s.Require().NoError(err)
	s.Equal(before, after)
}

func (s *PostgresLedgerSuite) TestAdvisoryLockSerializesWithdrawals() {
	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.engine.Withdraw(s.clock.As(ids.Owner), 100)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, insufficient int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case dErrors.HasCode(err, dErrors.CodeInsufficientResource):
			insufficient++
		default:
			s.Failf("unexpected error", "%v", err)
		}
	}
	s.Equal(10, ok)
	s.Equal(10, insufficient)
}

func (s *PostgresLedgerSuite) TestClockFloorSurvivesRestart() {
	s.clock.Advance(time.Hour)
	_, err := s.engine.FundAccount(s.clock.As(ids.Admin), ids.Owner, 1)
	s.Require().NoError(err)
	floor := s.clock.Now()

	restarted := New(NewPostgresTx(s.postgres.DB), adapters.NewMemoryRegistry(), ids.Admin, DefaultParams())
	s.clock.Set(floor.Add(-time.Hour))
	credential, err := restarted.RenewCredential(s.clock.As(ids.Issuer), ids.Attester, floor.Add(400*24*time.Hour))
	s.Require().NoError(err)
	s.True(floor.Equal(credential.UpdatedAt), "got %s", credential.UpdatedAt)
}
