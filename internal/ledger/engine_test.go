package ledger

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"mutualpool/internal/assets/adapters"
	claimsmodels "mutualpool/internal/claims/models"
	claimsservice "mutualpool/internal/claims/service"
	credentialmodels "mutualpool/internal/credential/models"
	credentialservice "mutualpool/internal/credential/service"
	eligibilityservice "mutualpool/internal/eligibility/service"
	rulesetmodels "mutualpool/internal/ruleset/models"
	id "mutualpool/pkg/domain"
	dErrors "mutualpool/pkg/domain-errors"
	"mutualpool/pkg/platform/events"
	outboxmemory "mutualpool/pkg/platform/outbox/store/memory"
	"mutualpool/pkg/platform/sentinel"
	"mutualpool/pkg/requestcontext"
	"mutualpool/pkg/testutil"
)

var ids = testutil.TestIDs

type EngineSuite struct {
	suite.Suite
	clock    *testutil.Clock
	registry *adapters.MemoryRegistry
	outbox   *outboxmemory.Store
	metrics  *Metrics
	engine   *Engine
	jurors   []id.AccountID
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.clock = testutil.NewClock(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC))
	s.registry = adapters.NewMemoryRegistry()
	s.registry.Register(ids.Subject, ids.Owner)
	s.registry.AuthorizeAttester(ids.Subject, ids.Attester)
	s.outbox = outboxmemory.New()
	s.metrics = NewMetrics(prometheus.NewRegistry())
	s.engine = New(NewMemoryTx(s.outbox), s.registry, ids.Admin, DefaultParams(), WithMetrics(s.metrics))

	s.Require().NoError(s.engine.GrantRole(s.clock.As(ids.Admin), ids.Issuer, rulesetmodels.RoleIssuer))
	s.Require().NoError(s.engine.GrantRole(s.clock.As(ids.Admin), ids.Verifier, rulesetmodels.RoleVerifier))
	_, err := s.engine.IssueCredential(s.clock.As(ids.Issuer), credentialservice.IssueCommand{
		Holder:     ids.Attester,
		LicenseRef: "MD-1",
		ExpiresAt:  s.clock.Now().Add(365 * 24 * time.Hour),
	})
	s.Require().NoError(err)

	s.jurors = testutil.Jurors(21)
	for _, j := range s.jurors {
		s.enroll(j)
	}
	_, err = s.engine.FundAccount(s.clock.As(ids.Admin), ids.Owner, 1000)
	s.Require().NoError(err)
	_, err = s.engine.Deposit(s.clock.As(ids.Owner), ids.Subject, 500)
	s.Require().NoError(err)
}

func (s *EngineSuite) enroll(juror id.AccountID) {
	_, err := s.engine.RegisterParticipant(s.clock.As(ids.Admin), eligibilityservice.RegisterCommand{
		Participant: juror,
		DID:         "did:example:" + juror.String(),
	})
	s.Require().NoError(err)
	_, err = s.engine.PerformCheck(s.clock.As(ids.Verifier), juror, "hash-"+juror.String(), true)
	s.Require().NoError(err)
	_, err = s.engine.FundAccount(s.clock.As(ids.Admin), juror, 100)
	s.Require().NoError(err)
	_, err = s.engine.Stake(s.clock.As(juror), 100)
	s.Require().NoError(err)
}

func (s *EngineSuite) submit(amount uint64) *claimsmodels.Claim {
	claim, err := s.engine.SubmitClaim(s.clock.As(ids.Owner), claimsservice.SubmitCommand{
		Subject:     ids.Subject,
		Attester:    ids.Attester,
		EvidenceRef: "ipfs://assessment",
		Amount:      amount,
	})
	s.Require().NoError(err)
	return claim
}

func (s *EngineSuite) inReview(amount uint64) *claimsmodels.Claim {
	claim := s.submit(amount)
	claim, err := s.engine.SelectPanel(s.clock.As(ids.Admin), claim.ID)
	s.Require().NoError(err)
	return claim
}

func (s *EngineSuite) vote(claimID id.ClaimID, approvals, rejections int) *claimsmodels.Claim {
	var claim *claimsmodels.Claim
	for i := 0; i < approvals+rejections; i++ {
		var err error
		claim, err = s.engine.Vote(s.clock.As(s.jurors[i]), claimID, i < approvals)
		s.Require().NoError(err)
	}
	return claim
}

func (s *EngineSuite) eventTypes() []string {
	var out []string
	for _, e := range s.outbox.All() {
		out = append(out, e.EventType)
	}
	return out
}

func (s *EngineSuite) TestApprovedClaimEndToEnd() {
	before := len(s.outbox.All())
	claim := s.inReview(100)
	claim = s.vote(claim.ID, 15, 6)

	s.Equal(claimsmodels.StatusApproved, claim.Status)
	s.True(claim.PaidOut)

	pool, err := s.engine.Pool(s.clock.As(ids.Owner))
	s.Require().NoError(err)
	s.Equal(uint64(500+10-100-15), pool.Total())

	attester, err := s.engine.Balance(s.clock.As(ids.Attester), ids.Attester)
	s.Require().NoError(err)
	s.Equal(uint64(80), attester.Wallet)
	owner, err := s.engine.Balance(s.clock.As(ids.Owner), ids.Owner)
	s.Require().NoError(err)
	s.Equal(uint64(1000-500-10+20), owner.Wallet)

	winner, err := s.engine.Participant(s.clock.As(ids.Admin), s.jurors[0])
	s.Require().NoError(err)
	s.Equal(505, winner.Reputation)
	loser, err := s.engine.Participant(s.clock.As(ids.Admin), s.jurors[20])
	s.Require().NoError(err)
	s.Equal(498, loser.Reputation)

	credential, err := s.engine.Credential(s.clock.As(ids.Admin), ids.Attester)
	s.Require().NoError(err)
	s.Equal(uint64(1), credential.ClaimsApproved)

	var types []string
	for _, t := range s.eventTypes()[before:] {
		if strings.HasPrefix(t, "claim.") {
			types = append(types, t)
		}
	}
	s.Require().Len(types, 25)
	s.Equal(string(events.ClaimSubmitted), types[0])
	s.Equal(string(events.ClaimPanelSelected), types[1])
	s.Equal(string(events.ClaimVoteRecorded), types[2])
	s.Equal(string(events.ClaimStatusChanged), types[23])
	s.Equal(string(events.ClaimPayoutExecuted), types[24])

	s.Equal(float64(395), promtestutil.ToFloat64(s.metrics.Fund.PoolBalance.WithLabelValues("immediate"))+
		promtestutil.ToFloat64(s.metrics.Fund.PoolBalance.WithLabelValues("stable"))+
		promtestutil.ToFloat64(s.metrics.Fund.PoolBalance.WithLabelValues("risk")))
}

func (s *EngineSuite) TestRejectedClaimKeepsPool() {
	claim := s.inReview(100)
	claim = s.vote(claim.ID, 14, 7)

	s.Equal(claimsmodels.StatusRejected, claim.Status)
	pool, err := s.engine.Pool(s.clock.As(ids.Owner))
	s.Require().NoError(err)
	s.Equal(uint64(510), pool.Total())

	history, err := s.engine.ReputationHistory(s.clock.As(ids.Admin), s.jurors[0])
	s.Require().NoError(err)
	s.Require().Len(history, 1)
	s.Equal(-2, history[0].Delta)
	s.Equal(claim.ID, history[0].Claim)
}

func (s *EngineSuite) TestFinalizeAfterVotingWindow() {
	claim := s.inReview(100)
	s.vote(claim.ID, 3, 1)

	_, err := s.engine.Finalize(s.clock.As(ids.Owner), claim.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))

	s.clock.Advance(72 * time.Hour)
	_, err = s.engine.Vote(s.clock.As(s.jurors[10]), claim.ID, false)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState), "late votes are rejected")

	claim, err = s.engine.Finalize(s.clock.As("passer-by"), claim.ID)
	s.Require().NoError(err)
	s.Equal(claimsmodels.StatusApproved, claim.Status)
	s.Len(claim.Votes, 4)
}

func (s *EngineSuite) TestLedgerClockNeverMovesBackwards() {
	s.clock.Advance(10 * time.Hour)
	later := s.clock.Now()
	s.submit(100)

	s.clock.Set(later.Add(-9 * time.Hour))
	claim := s.submit(100)
	s.Equal(later, claim.SubmittedAt)
	s.Equal(later.Add(72*time.Hour), claim.VotingEndsAt)
}

func (s *EngineSuite) TestExpiredCredentialBlocksSubmission() {
	s.clock.Advance(366 * 24 * time.Hour)
	_, err := s.engine.SubmitClaim(s.clock.As(ids.Owner), claimsservice.SubmitCommand{
		Subject: ids.Subject, Attester: ids.Attester, EvidenceRef: "x", Amount: 10,
	})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	s.True(errors.Is(err, sentinel.ErrCredentialInvalid))

	credential, err := s.engine.ExpireCredential(s.clock.As("anyone"), ids.Attester)
	s.Require().NoError(err)
	s.Equal(credentialmodels.StatusExpired, credential.Status)

	validity, err := s.engine.CredentialValidity(s.clock.As(ids.Owner), []id.AccountID{ids.Attester, "nobody"})
	s.Require().NoError(err)
	s.Equal([]credentialmodels.Validity{{Holder: ids.Attester}, {Holder: "nobody"}}, validity)
}

func (s *EngineSuite) TestInactiveJurorsDropOutOfPanels() {
	s.clock.Advance(DefaultParams().InactivityWindow)
	claim := s.submit(100)

	_, err := s.engine.SelectPanel(s.clock.As(ids.Admin), claim.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInsufficientResource))

	eligibility, err := s.engine.Eligibility(s.clock.As(ids.Owner), s.jurors[:2])
	s.Require().NoError(err)
	s.False(eligibility[0].Eligible)
	s.False(eligibility[1].Eligible)
}

func (s *EngineSuite) TestDeferredPayoutRetried() {
	_, err := s.engine.FundAccount(s.clock.As(ids.Admin), ids.Owner, 1000)
	s.Require().NoError(err)
	claim := s.inReview(600)
	claim = s.vote(claim.ID, 21, 0)
	s.Equal(claimsmodels.StatusApproved, claim.Status)
	s.False(claim.PaidOut)
	s.Contains(s.eventTypes(), string(events.ClaimPayoutDeferred))

	_, err = s.engine.Deposit(s.clock.As(ids.Owner), ids.Subject, 200)
	s.Require().NoError(err)
	claim, err = s.engine.Payout(s.clock.As(ids.Owner), claim.ID)
	s.Require().NoError(err)
	s.True(claim.PaidOut)

	_, err = s.engine.Payout(s.clock.As(ids.Owner), claim.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
}

func (s *EngineSuite) TestConcurrentDepositsAreSerialized() {
	result := testutil.RunConcurrent(10, func(int) error {
		_, err := s.engine.Deposit(s.clock.As(ids.Owner), ids.Subject, 100)
		return err
	})
	s.Equal(int32(5), result.Successes)
	s.Equal(int32(5), result.Insufficient)

	pool, err := s.engine.Pool(s.clock.As(ids.Owner))
	s.Require().NoError(err)
	s.Equal(uint64(1000), pool.Total())
	owner, err := s.engine.Balance(s.clock.As(ids.Owner), ids.Owner)
	s.Require().NoError(err)
	s.Zero(owner.Wallet)
}

func (s *EngineSuite) TestQuoteTracksHistory() {
	s.registry.AddRecords(ids.Subject, 3)
	quote, err := s.engine.Quote(s.clock.As(ids.Owner), ids.Subject)
	s.Require().NoError(err)
	s.Equal(Quote{Subject: ids.Subject, BasePremium: 100, Multiplier: 130, Premium: 130}, *quote)

	_, err = s.engine.Deposit(s.clock.As(ids.Owner), ids.Subject, 120)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *EngineSuite) TestFailedOperationLeavesNoTrace() {
	before := len(s.outbox.All())
	err := s.engine.tx.RunInTx(s.clock.As(ids.Owner), func(ctx context.Context, stores Stores) error {
		svc := s.engine.bind(stores)
		ctx = requestcontext.WithTime(ctx, s.clock.Now())
		if _, err := svc.claims.Submit(ctx, claimsservice.SubmitCommand{
			Subject: ids.Subject, Attester: ids.Attester, EvidenceRef: "x", Amount: 50,
		}); err != nil {
			return err
		}
		return errors.New("boom")
	})
	s.Require().EqualError(err, "boom")

	owner, err := s.engine.Balance(s.clock.As(ids.Owner), ids.Owner)
	s.Require().NoError(err)
	s.Equal(uint64(500), owner.Wallet)
	_, err = s.engine.Claim(s.clock.As(ids.Owner), 1)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.Len(s.outbox.All(), before)

	claim := s.submit(50)
	s.Equal(id.ClaimID(1), claim.ID)
}

func (s *EngineSuite) TestCancelledContextAborts() {
	ctx, cancel := context.WithCancel(s.clock.As(ids.Owner))
	cancel()
	_, err := s.engine.Deposit(ctx, ids.Subject, 100)
	s.True(dErrors.HasCode(err, dErrors.CodeTimeout))

	pool, err := s.engine.Pool(s.clock.As(ids.Owner))
	s.Require().NoError(err)
	s.Equal(uint64(500), pool.Total())
}
