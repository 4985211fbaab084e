package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"mutualpool/internal/assets/adapters"
	"mutualpool/internal/claims/metrics"
	"mutualpool/internal/claims/models"
	"mutualpool/internal/claims/selection"
	"mutualpool/internal/claims/store"
	credentialservice "mutualpool/internal/credential/service"
	credentialstore "mutualpool/internal/credential/store"
	eligibilitymodels "mutualpool/internal/eligibility/models"
	eligibilityservice "mutualpool/internal/eligibility/service"
	eligibilitystore "mutualpool/internal/eligibility/store"
	fundmodels "mutualpool/internal/fund/models"
	fundservice "mutualpool/internal/fund/service"
	fundstore "mutualpool/internal/fund/store"
	"mutualpool/internal/premium"
	rulesetmodels "mutualpool/internal/ruleset/models"
	rulesetservice "mutualpool/internal/ruleset/service"
	rulesetstore "mutualpool/internal/ruleset/store"
	id "mutualpool/pkg/domain"
	dErrors "mutualpool/pkg/domain-errors"
	"mutualpool/pkg/platform/events"
	"mutualpool/pkg/platform/sentinel"
	"mutualpool/pkg/requestcontext"
)

const (
	admin    = id.AccountID("root")
	insurer  = id.AccountID("insurer-a")
	owner    = id.AccountID("alice")
	attester = id.AccountID("dr-who")
	subject  = id.SubjectID("vehicle-1")
)

type ClaimsServiceSuite struct {
	suite.Suite
	now         time.Time
	assets      *adapters.MemoryRegistry
	credentials *credentialservice.Service
	eligibility *eligibilityservice.Service
	fund        *fundservice.Service
	recorder    *events.Recorder
	metrics     *metrics.Metrics
	svc         *Service
	jurors      []id.AccountID
}

func TestClaimsServiceSuite(t *testing.T) {
	suite.Run(t, new(ClaimsServiceSuite))
}

func (s *ClaimsServiceSuite) SetupTest() {
	s.now = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	s.recorder = events.NewRecorder()
	s.metrics = metrics.New(prometheus.NewRegistry())

	roles := rulesetservice.New(rulesetstore.NewInMemory(), admin)
	s.Require().NoError(roles.GrantRole(s.as(admin), insurer, rulesetmodels.RoleIssuer))

	s.assets = adapters.NewMemoryRegistry()
	s.assets.Register(subject, owner)
	s.assets.AuthorizeAttester(subject, attester)

	s.credentials = credentialservice.New(credentialstore.NewInMemory(), roles)
	policy := eligibilitymodels.Policy{MinReputation: 400, MinStake: 100, InactivityWindow: 30 * 24 * time.Hour}
	s.eligibility = eligibilityservice.New(eligibilitystore.NewInMemory(), roles, policy)
	calc := premium.NewCalculator(premium.NewHistoryOracle(s.assets), 100)
	s.fund = fundservice.New(fundstore.NewInMemory(), roles, s.assets, calc, s.eligibility)

	cfg := Config{PanelSize: 21, VotingWindow: 72 * time.Hour, SubmissionFee: 10, PanelistReward: 1}
	s.svc = New(store.NewInMemory(), roles, s.assets, s.credentials, s.eligibility, s.fund, cfg,
		WithEvents(s.recorder), WithMetrics(s.metrics))

	_, err := s.credentials.Issue(s.as(insurer), credentialservice.IssueCommand{
		Holder: attester, LicenseRef: "MD-1", ExpiresAt: s.now.Add(365 * 24 * time.Hour),
	})
	s.Require().NoError(err)
	s.fundAccount(owner, 1000)

	s.jurors = nil
	for i := range 21 {
		s.jurors = append(s.jurors, s.enrollJuror(i))
	}
}

func (s *ClaimsServiceSuite) as(caller id.AccountID) context.Context {
	return requestcontext.WithTime(requestcontext.WithCaller(context.Background(), caller), s.now)
}

func (s *ClaimsServiceSuite) fundAccount(account id.AccountID, amount uint64) {
	_, err := s.fund.FundAccount(s.as(admin), account, amount)
	s.Require().NoError(err)
}

func (s *ClaimsServiceSuite) enrollJuror(i int) id.AccountID {
	juror := id.AccountID(fmt.Sprintf("juror-%02d", i))
	_, err := s.eligibility.Register(s.as(admin), eligibilityservice.RegisterCommand{Participant: juror, DID: "did:example:" + string(juror)})
	s.Require().NoError(err)
	_, err = s.eligibility.PerformCheck(s.as(admin), juror, "hash-"+string(juror), true)
	s.Require().NoError(err)
	s.fundAccount(juror, 100)
	_, err = s.fund.Stake(s.as(juror), 100)
	s.Require().NoError(err)
	return juror
}

func (s *ClaimsServiceSuite) submit(amount uint64) *models.Claim {
	claim, err := s.svc.Submit(s.as(owner), SubmitCommand{Subject: subject, Attester: attester, EvidenceRef: "ipfs://report", Amount: amount})
	s.Require().NoError(err)
	return claim
}

func (s *ClaimsServiceSuite) inReview(amount uint64) *models.Claim {
	claim := s.submit(amount)
	claim, err := s.svc.SelectPanel(s.as(admin), claim.ID)
	s.Require().NoError(err)
	return claim
}

func (s *ClaimsServiceSuite) depositPool(amount uint64) {
	_, err := s.fund.Deposit(s.as(owner), subject, amount)
	s.Require().NoError(err)
}

func (s *ClaimsServiceSuite) castVotes(claimID id.ClaimID, approvals, rejections int) *models.Claim {
	var (
		claim *models.Claim
		err   error
	)
	for i := 0; i < approvals+rejections; i++ {
		claim, err = s.svc.Vote(s.as(s.jurors[i]), claimID, i < approvals)
		s.Require().NoError(err)
	}
	return claim
}

func (s *ClaimsServiceSuite) wallet(account id.AccountID) uint64 {
	b, err := s.fund.Balance(s.as(admin), account)
	s.Require().NoError(err)
	return b.Wallet
}

func (s *ClaimsServiceSuite) TestSubmitPreconditions() {
	tests := []struct {
		name   string
		caller id.AccountID
		cmd    SubmitCommand
		code   dErrors.Code
	}{
		{name: "not owner", caller: "bob", cmd: SubmitCommand{Subject: subject, Attester: attester, EvidenceRef: "x", Amount: 1}, code: dErrors.CodeUnauthorized},
		{name: "unknown subject", caller: owner, cmd: SubmitCommand{Subject: "vehicle-9", Attester: attester, EvidenceRef: "x", Amount: 1}, code: dErrors.CodeNotFound},
		{name: "attester not authorized", caller: owner, cmd: SubmitCommand{Subject: subject, Attester: "dr-no", EvidenceRef: "x", Amount: 1}, code: dErrors.CodeUnauthorized},
		{name: "empty evidence", caller: owner, cmd: SubmitCommand{Subject: subject, Attester: attester, EvidenceRef: "", Amount: 1}, code: dErrors.CodeValidation},
		{name: "zero amount", caller: owner, cmd: SubmitCommand{Subject: subject, Attester: attester, EvidenceRef: "x", Amount: 0}, code: dErrors.CodeValidation},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.svc.Submit(s.as(tt.caller), tt.cmd)
			s.True(dErrors.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func (s *ClaimsServiceSuite) TestSubmitRequiresValidCredential() {
	s.assets.AuthorizeAttester(subject, "dr-lapsed")
	_, err := s.svc.Submit(s.as(owner), SubmitCommand{Subject: subject, Attester: "dr-lapsed", EvidenceRef: "x", Amount: 1})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	s.True(errors.Is(err, sentinel.ErrCredentialInvalid))
}

func (s *ClaimsServiceSuite) TestSubmitRequiresFee() {
	_, err := s.fund.Withdraw(s.as(owner), 995)
	s.Require().NoError(err)
	_, err = s.svc.Submit(s.as(owner), SubmitCommand{Subject: subject, Attester: attester, EvidenceRef: "x", Amount: 1})
	s.True(dErrors.HasCode(err, dErrors.CodeInsufficientResource))
}

func (s *ClaimsServiceSuite) TestSubmitCollectsFee() {
	claim := s.submit(100)
	s.Equal(id.ClaimID(1), claim.ID)
	s.Equal(models.StatusPending, claim.Status)
	s.Equal(uint64(990), s.wallet(owner))

	pool, err := s.fund.Pool(s.as(admin))
	s.Require().NoError(err)
	s.Equal(fundmodels.Pool{Risk: 10}, *pool)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.Submitted))
}

func (s *ClaimsServiceSuite) TestSelectPanel() {
	claim := s.submit(100)

	_, err := s.svc.SelectPanel(s.as(owner), claim.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	_, err = s.svc.SelectPanel(s.as(admin), 99)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	claim, err = s.svc.SelectPanel(s.as(admin), claim.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusInReview, claim.Status)
	s.Equal(s.jurors, claim.Panel)

	_, err = s.svc.SelectPanel(s.as(admin), claim.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
}

func (s *ClaimsServiceSuite) TestSelectPanelNeedsEnoughEligibleStakers() {
	claim := s.submit(100)
	_, err := s.eligibility.Suspend(s.as(admin), s.jurors[3], "review")
	s.Require().NoError(err)

	_, err = s.svc.SelectPanel(s.as(admin), claim.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInsufficientResource))
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.PanelShortfalls))

	extra := s.enrollJuror(21)
	claim, err = s.svc.SelectPanel(s.as(admin), claim.ID)
	s.Require().NoError(err)
	s.NotContains(claim.Panel, s.jurors[3])
	s.Contains(claim.Panel, extra)
}

func (s *ClaimsServiceSuite) TestSeededSelectorIsUsed() {
	s.svc.selector = selection.NewSeededShuffle([]byte("seed"))
	claim := s.inReview(100)
	s.ElementsMatch(s.jurors, claim.Panel)
}

func (s *ClaimsServiceSuite) TestVoteGuards() {
	claim := s.submit(100)
	_, err := s.svc.Vote(s.as(s.jurors[0]), claim.ID, true)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState), "pending claims do not accept votes")

	_, err = s.svc.SelectPanel(s.as(admin), claim.ID)
	s.Require().NoError(err)

	_, err = s.svc.Vote(s.as("outsider"), claim.ID, true)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	_, err = s.svc.Vote(s.as(s.jurors[0]), claim.ID, true)
	s.Require().NoError(err)
	_, err = s.svc.Vote(s.as(s.jurors[0]), claim.ID, false)
	s.True(dErrors.HasCode(err, dErrors.CodeDuplicate))

	s.now = s.now.Add(72 * time.Hour)
	_, err = s.svc.Vote(s.as(s.jurors[1]), claim.ID, true)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
}

func (s *ClaimsServiceSuite) TestFourteenToSevenIsRejected() {
	s.depositPool(500)
	claim := s.inReview(100)
	claim = s.castVotes(claim.ID, 14, 7)

	s.Equal(models.StatusRejected, claim.Status)
	s.False(claim.PaidOut)
	s.Zero(s.wallet(attester))

	approver, err := s.eligibility.Get(s.as(admin), s.jurors[0])
	s.Require().NoError(err)
	s.Equal(498, approver.Reputation)
	rejecter, err := s.eligibility.Get(s.as(admin), s.jurors[20])
	s.Require().NoError(err)
	s.Equal(505, rejecter.Reputation)
}

func (s *ClaimsServiceSuite) TestFifteenToSixIsApprovedAndPaid() {
	s.depositPool(500)
	claim := s.inReview(100)
	claim = s.castVotes(claim.ID, 15, 6)

	s.Equal(models.StatusApproved, claim.Status)
	s.True(claim.PaidOut)
	s.Equal(uint64(80), s.wallet(attester))
	s.Equal(uint64(1000-500-10+20), s.wallet(owner))
	s.Equal(uint64(1), s.wallet(s.jurors[0]))
	s.Zero(s.wallet(s.jurors[20]))

	for i, juror := range s.jurors {
		p, err := s.eligibility.Get(s.as(admin), juror)
		s.Require().NoError(err)
		if i < 15 {
			s.Equal(505, p.Reputation)
		} else {
			s.Equal(498, p.Reputation)
		}
	}

	cred, err := s.credentials.Get(s.as(admin), attester)
	s.Require().NoError(err)
	s.Equal(uint64(1), cred.ClaimsApproved)
	s.Len(s.recorder.OfType(events.ClaimPayoutExecuted), 1)

	_, err = s.svc.Payout(s.as(owner), claim.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState), "a claim is paid once")
}

func (s *ClaimsServiceSuite) TestFinalizeAfterWindowWithPartialTurnout() {
	s.depositPool(500)
	claim := s.inReview(100)
	s.castVotes(claim.ID, 3, 1)

	_, err := s.svc.Finalize(s.as("anyone"), claim.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))

	s.now = s.now.Add(72 * time.Hour)
	claim, err = s.svc.Finalize(s.as("anyone"), claim.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusApproved, claim.Status)
	s.Equal(3, claim.Approvals)

	_, err = s.svc.Finalize(s.as("anyone"), claim.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
}

func (s *ClaimsServiceSuite) TestPayoutDeferredUntilPoolIsFunded() {
	claim := s.inReview(100)
	claim = s.castVotes(claim.ID, 21, 0)

	s.Equal(models.StatusApproved, claim.Status)
	s.False(claim.PaidOut)
	s.Len(s.recorder.OfType(events.ClaimPayoutDeferred), 1)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.PayoutsDeferred))

	_, err := s.svc.Payout(s.as(owner), claim.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInsufficientResource))

	s.depositPool(500)
	claim, err = s.svc.Payout(s.as(owner), claim.ID)
	s.Require().NoError(err)
	s.True(claim.PaidOut)
	s.Equal(uint64(80), s.wallet(attester))

	pool, err := s.fund.Pool(s.as(admin))
	s.Require().NoError(err)
	s.Equal(uint64(510-100-21), pool.Total())
}
