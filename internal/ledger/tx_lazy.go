package ledger

import (
	"context"

	claimsmodels "mutualpool/internal/claims/models"
	claimsstore "mutualpool/internal/claims/store"
	credentialmodels "mutualpool/internal/credential/models"
	credentialstore "mutualpool/internal/credential/store"
	eligibilitymodels "mutualpool/internal/eligibility/models"
	eligibilitystore "mutualpool/internal/eligibility/store"
	fundmodels "mutualpool/internal/fund/models"
	fundstore "mutualpool/internal/fund/store"
	rulesetmodels "mutualpool/internal/ruleset/models"
	rulesetstore "mutualpool/internal/ruleset/store"
	id "mutualpool/pkg/domain"
)

// cow reads from the live store until the first write, then works on a
// private clone. The live store is never mutated; the caller holds the
// ledger lock for the lifetime of the wrapper.
type cow[S any] struct {
	live  S
	own   S
	dirty bool
	clone func(S) S
}

func newCOW[S any](live S, clone func(S) S) *cow[S] {
	return &cow[S]{live: live, clone: clone}
}

func (c *cow[S]) read() S {
	if c.dirty {
		return c.own
	}
	return c.live
}

func (c *cow[S]) write() S {
	if !c.dirty {
		c.own = c.clone(c.live)
		c.dirty = true
	}
	return c.own
}

// result is the store to keep after commit.
func (c *cow[S]) result() S {
	return c.read()
}

type cowRuleset struct{ *cow[*rulesetstore.InMemoryStore] }

func (s cowRuleset) HasRole(ctx context.Context, account id.AccountID, role rulesetmodels.Role) (bool, error) {
	return s.read().HasRole(ctx, account, role)
}

func (s cowRuleset) GrantRole(ctx context.Context, grant rulesetmodels.Grant) error {
	return s.write().GrantRole(ctx, grant)
}

func (s cowRuleset) RevokeRole(ctx context.Context, account id.AccountID, role rulesetmodels.Role) (bool, error) {
	return s.write().RevokeRole(ctx, account, role)
}

func (s cowRuleset) ListGrants(ctx context.Context, role rulesetmodels.Role) ([]rulesetmodels.Grant, error) {
	return s.read().ListGrants(ctx, role)
}

func (s cowRuleset) Settings(ctx context.Context) (*rulesetmodels.Settings, error) {
	return s.read().Settings(ctx)
}

func (s cowRuleset) SaveSettings(ctx context.Context, settings *rulesetmodels.Settings) error {
	return s.write().SaveSettings(ctx, settings)
}

type cowCredentials struct{ *cow[*credentialstore.InMemoryStore] }

func (s cowCredentials) Create(ctx context.Context, credential *credentialmodels.Credential) error {
	return s.write().Create(ctx, credential)
}

func (s cowCredentials) FindByHolder(ctx context.Context, holder id.AccountID) (*credentialmodels.Credential, error) {
	return s.read().FindByHolder(ctx, holder)
}

func (s cowCredentials) FindByLicense(ctx context.Context, licenseRef string) (*credentialmodels.Credential, error) {
	return s.read().FindByLicense(ctx, licenseRef)
}

func (s cowCredentials) Update(ctx context.Context, credential *credentialmodels.Credential) error {
	return s.write().Update(ctx, credential)
}

func (s cowCredentials) ListByHolders(ctx context.Context, holders []id.AccountID) (map[id.AccountID]*credentialmodels.Credential, error) {
	return s.read().ListByHolders(ctx, holders)
}

type cowEligibility struct{ *cow[*eligibilitystore.InMemoryStore] }

func (s cowEligibility) Create(ctx context.Context, p *eligibilitymodels.Participant) error {
	return s.write().Create(ctx, p)
}

func (s cowEligibility) Find(ctx context.Context, account id.AccountID) (*eligibilitymodels.Participant, error) {
	return s.read().Find(ctx, account)
}

func (s cowEligibility) FindByDID(ctx context.Context, did string) (*eligibilitymodels.Participant, error) {
	return s.read().FindByDID(ctx, did)
}

func (s cowEligibility) Update(ctx context.Context, p *eligibilitymodels.Participant) error {
	return s.write().Update(ctx, p)
}

func (s cowEligibility) ListByAccounts(ctx context.Context, accounts []id.AccountID) (map[id.AccountID]*eligibilitymodels.Participant, error) {
	return s.read().ListByAccounts(ctx, accounts)
}

func (s cowEligibility) HashOwner(ctx context.Context, hash string) (id.AccountID, error) {
	return s.read().HashOwner(ctx, hash)
}

func (s cowEligibility) MarkHashUsed(ctx context.Context, hash string, account id.AccountID) error {
	return s.write().MarkHashUsed(ctx, hash, account)
}

func (s cowEligibility) AppendCheckpoint(ctx context.Context, cp eligibilitymodels.Checkpoint) error {
	return s.write().AppendCheckpoint(ctx, cp)
}

func (s cowEligibility) ListCheckpoints(ctx context.Context, account id.AccountID) ([]eligibilitymodels.Checkpoint, error) {
	return s.read().ListCheckpoints(ctx, account)
}

func (s cowEligibility) AppendReputationChange(ctx context.Context, change eligibilitymodels.ReputationChange) error {
	return s.write().AppendReputationChange(ctx, change)
}

func (s cowEligibility) ListReputationChanges(ctx context.Context, account id.AccountID) ([]eligibilitymodels.ReputationChange, error) {
	return s.read().ListReputationChanges(ctx, account)
}

type cowFund struct{ *cow[*fundstore.InMemoryStore] }

func (s cowFund) State(ctx context.Context) (*fundmodels.State, error) {
	return s.read().State(ctx)
}

func (s cowFund) SaveState(ctx context.Context, state *fundmodels.State) error {
	return s.write().SaveState(ctx, state)
}

func (s cowFund) Wallet(ctx context.Context, account id.AccountID) (uint64, error) {
	return s.read().Wallet(ctx, account)
}

func (s cowFund) SetWallet(ctx context.Context, account id.AccountID, balance uint64) error {
	return s.write().SetWallet(ctx, account, balance)
}

func (s cowFund) Stake(ctx context.Context, account id.AccountID) (uint64, error) {
	return s.read().Stake(ctx, account)
}

func (s cowFund) SetStake(ctx context.Context, account id.AccountID, amount uint64) error {
	return s.write().SetStake(ctx, account, amount)
}

type cowClaims struct{ *cow[*claimsstore.InMemoryStore] }

func (s cowClaims) NextID(ctx context.Context) (id.ClaimID, error) {
	return s.write().NextID(ctx)
}

func (s cowClaims) Create(ctx context.Context, claim *claimsmodels.Claim) error {
	return s.write().Create(ctx, claim)
}

func (s cowClaims) Find(ctx context.Context, claimID id.ClaimID) (*claimsmodels.Claim, error) {
	return s.read().Find(ctx, claimID)
}

func (s cowClaims) Update(ctx context.Context, claim *claimsmodels.Claim) error {
	return s.write().Update(ctx, claim)
}
