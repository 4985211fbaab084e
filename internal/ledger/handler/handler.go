package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	claimsmodels "mutualpool/internal/claims/models"
	claimsservice "mutualpool/internal/claims/service"
	credentialmodels "mutualpool/internal/credential/models"
	credentialservice "mutualpool/internal/credential/service"
	eligibilitymodels "mutualpool/internal/eligibility/models"
	eligibilityservice "mutualpool/internal/eligibility/service"
	fundmodels "mutualpool/internal/fund/models"
	"mutualpool/internal/ledger"
	rulesetmodels "mutualpool/internal/ruleset/models"
	id "mutualpool/pkg/domain"
	dErrors "mutualpool/pkg/domain-errors"
	"mutualpool/pkg/platform/httputil"
	"mutualpool/pkg/requestcontext"
)

// Ledger is the engine surface exposed over HTTP. Every call is attributed to
// the authenticated caller carried in the request context.
type Ledger interface {
	GrantRole(ctx context.Context, account id.AccountID, role rulesetmodels.Role) error
	RevokeRole(ctx context.Context, account id.AccountID, role rulesetmodels.Role) error
	Grants(ctx context.Context, role rulesetmodels.Role) ([]rulesetmodels.Grant, error)
	SetOpenRegistration(ctx context.Context, open bool) error

	IssueCredential(ctx context.Context, cmd credentialservice.IssueCommand) (*credentialmodels.Credential, error)
	SuspendCredential(ctx context.Context, holder id.AccountID, reason string) (*credentialmodels.Credential, error)
	ReactivateCredential(ctx context.Context, holder id.AccountID, reason string) (*credentialmodels.Credential, error)
	RevokeCredential(ctx context.Context, holder id.AccountID, reason string) (*credentialmodels.Credential, error)
	RenewCredential(ctx context.Context, holder id.AccountID, expiresAt time.Time) (*credentialmodels.Credential, error)
	ExpireCredential(ctx context.Context, holder id.AccountID) (*credentialmodels.Credential, error)
	RecordIssued(ctx context.Context, holder id.AccountID) (*credentialmodels.Credential, error)
	Credential(ctx context.Context, holder id.AccountID) (*credentialmodels.Credential, error)
	CredentialValidity(ctx context.Context, holders []id.AccountID) ([]credentialmodels.Validity, error)

	RegisterParticipant(ctx context.Context, cmd eligibilityservice.RegisterCommand) (*eligibilitymodels.Participant, error)
	PerformCheck(ctx context.Context, account id.AccountID, identityHash string, passed bool) (*eligibilitymodels.Checkpoint, error)
	SuspendParticipant(ctx context.Context, account id.AccountID, reason string) (*eligibilitymodels.Participant, error)
	ReinstateParticipant(ctx context.Context, account id.AccountID, reason string) (*eligibilitymodels.Participant, error)
	BanParticipant(ctx context.Context, account id.AccountID, reason string) (*eligibilitymodels.Participant, error)
	Participant(ctx context.Context, account id.AccountID) (*eligibilitymodels.Participant, error)
	Eligibility(ctx context.Context, accounts []id.AccountID) ([]eligibilitymodels.Eligibility, error)
	ReputationHistory(ctx context.Context, account id.AccountID) ([]eligibilitymodels.ReputationChange, error)
	Checkpoints(ctx context.Context, account id.AccountID) ([]eligibilitymodels.Checkpoint, error)

	FundAccount(ctx context.Context, account id.AccountID, amount uint64) (*fundmodels.Balance, error)
	Withdraw(ctx context.Context, amount uint64) (*fundmodels.Balance, error)
	Deposit(ctx context.Context, subject id.SubjectID, amount uint64) (*fundmodels.Pool, error)
	Stake(ctx context.Context, amount uint64) (*fundmodels.Balance, error)
	Unstake(ctx context.Context, amount uint64) (*fundmodels.Balance, error)
	Pool(ctx context.Context) (*fundmodels.Pool, error)
	Balance(ctx context.Context, account id.AccountID) (*fundmodels.Balance, error)
	Stakers(ctx context.Context) ([]id.AccountID, error)
	Quote(ctx context.Context, subject id.SubjectID) (*ledger.Quote, error)

	SubmitClaim(ctx context.Context, cmd claimsservice.SubmitCommand) (*claimsmodels.Claim, error)
	SelectPanel(ctx context.Context, claimID id.ClaimID) (*claimsmodels.Claim, error)
	Vote(ctx context.Context, claimID id.ClaimID, approve bool) (*claimsmodels.Claim, error)
	Finalize(ctx context.Context, claimID id.ClaimID) (*claimsmodels.Claim, error)
	Payout(ctx context.Context, claimID id.ClaimID) (*claimsmodels.Claim, error)
	Claim(ctx context.Context, claimID id.ClaimID) (*claimsmodels.Claim, error)
}

type Handler struct {
	ledger Ledger
	logger *slog.Logger
}

func New(ledger Ledger, logger *slog.Logger) *Handler {
	return &Handler{ledger: ledger, logger: logger}
}

// Register mounts the ledger routes. Callers wrap r with authentication.
func (h *Handler) Register(r chi.Router) {
	r.Get("/roles/{role}/grants", h.HandleListGrants)
	r.Post("/roles/{role}/grants", h.HandleGrantRole)
	r.Delete("/roles/{role}/grants/{account}", h.HandleRevokeRole)
	r.Put("/settings/registration", h.HandleSetOpenRegistration)

	r.Post("/credentials", h.HandleIssueCredential)
	r.Post("/credentials/validity", h.HandleCredentialValidity)
	r.Get("/credentials/{holder}", h.HandleGetCredential)
	r.Post("/credentials/{holder}/suspend", h.HandleSuspendCredential)
	r.Post("/credentials/{holder}/reactivate", h.HandleReactivateCredential)
	r.Post("/credentials/{holder}/revoke", h.HandleRevokeCredential)
	r.Post("/credentials/{holder}/renew", h.HandleRenewCredential)
	r.Post("/credentials/{holder}/expire", h.HandleExpireCredential)
	r.Post("/credentials/{holder}/records", h.HandleRecordIssued)

	r.Post("/participants", h.HandleRegisterParticipant)
	r.Post("/participants/eligibility", h.HandleEligibility)
	r.Get("/participants/{account}", h.HandleGetParticipant)
	r.Post("/participants/{account}/checks", h.HandlePerformCheck)
	r.Get("/participants/{account}/checks", h.HandleListCheckpoints)
	r.Get("/participants/{account}/reputation", h.HandleReputationHistory)
	r.Post("/participants/{account}/suspend", h.HandleSuspendParticipant)
	r.Post("/participants/{account}/reinstate", h.HandleReinstateParticipant)
	r.Post("/participants/{account}/ban", h.HandleBanParticipant)

	r.Post("/accounts/{account}/fund", h.HandleFundAccount)
	r.Get("/accounts/{account}/balance", h.HandleBalance)
	r.Post("/wallet/withdraw", h.HandleWithdraw)
	r.Post("/stake", h.HandleStake)
	r.Post("/unstake", h.HandleUnstake)
	r.Get("/pool", h.HandlePool)
	r.Get("/pool/stakers", h.HandleStakers)
	r.Get("/subjects/{subject}/quote", h.HandleQuote)
	r.Post("/subjects/{subject}/deposits", h.HandleDeposit)

	r.Post("/claims", h.HandleSubmitClaim)
	r.Get("/claims/{id}", h.HandleGetClaim)
	r.Post("/claims/{id}/panel", h.HandleSelectPanel)
	r.Post("/claims/{id}/votes", h.HandleVote)
	r.Post("/claims/{id}/finalize", h.HandleFinalize)
	r.Post("/claims/{id}/payout", h.HandlePayout)
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error, args ...any) {
	attrs := append([]any{"error", err, "request_id", requestcontext.RequestID(ctx)}, args...)
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, attrs...)
	} else {
		h.logger.WarnContext(ctx, msg, attrs...)
	}
	httputil.WriteError(w, err)
}

func pathRole(r *http.Request) (rulesetmodels.Role, error) {
	role := rulesetmodels.Role(chi.URLParam(r, "role"))
	if !role.IsValid() {
		return "", dErrors.New(dErrors.CodeBadRequest, "unknown role")
	}
	return role, nil
}

func pathAccount(r *http.Request, name string) (id.AccountID, error) {
	account, err := id.ParseAccountID(chi.URLParam(r, name))
	if err != nil {
		return "", dErrors.New(dErrors.CodeBadRequest, "invalid "+name)
	}
	return account, nil
}

func pathClaim(r *http.Request) (id.ClaimID, error) {
	claimID, err := id.ParseClaimID(chi.URLParam(r, "id"))
	if err != nil {
		return 0, dErrors.New(dErrors.CodeBadRequest, "invalid claim id")
	}
	return claimID, nil
}

func pathSubject(r *http.Request) (id.SubjectID, error) {
	subject, err := id.ParseSubjectID(chi.URLParam(r, "subject"))
	if err != nil {
		return "", dErrors.New(dErrors.CodeBadRequest, "invalid subject")
	}
	return subject, nil
}

// Ruleset

func (h *Handler) HandleListGrants(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	role, err := pathRole(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	grants, err := h.ledger.Grants(ctx, role)
	if err != nil {
		h.fail(ctx, w, "list grants failed", err, "role", role)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toGrantsResponse(grants))
}

func (h *Handler) HandleGrantRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	role, err := pathRole(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[GrantRoleRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	if err := h.ledger.GrantRole(ctx, id.AccountID(req.Account), role); err != nil {
		h.fail(ctx, w, "grant role failed", err, "role", role)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleRevokeRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	role, err := pathRole(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	account, err := pathAccount(r, "account")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.ledger.RevokeRole(ctx, account, role); err != nil {
		h.fail(ctx, w, "revoke role failed", err, "role", role, "account", account)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleSetOpenRegistration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[RegistrationRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	if err := h.ledger.SetOpenRegistration(ctx, *req.Open); err != nil {
		h.fail(ctx, w, "set open registration failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Credentials

func (h *Handler) HandleIssueCredential(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[IssueCredentialRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	credential, err := h.ledger.IssueCredential(ctx, credentialservice.IssueCommand{
		Holder:      id.AccountID(req.Holder),
		LicenseRef:  req.LicenseRef,
		EvidenceRef: req.EvidenceRef,
		ExpiresAt:   req.ExpiresAt,
	})
	if err != nil {
		h.fail(ctx, w, "issue credential failed", err, "holder", req.Holder)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toCredentialResponse(credential))
}

func (h *Handler) HandleCredentialValidity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[HoldersRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	holders, err := id.ParseAccountIDs(req.Holders)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	validity, err := h.ledger.CredentialValidity(ctx, holders)
	if err != nil {
		h.fail(ctx, w, "credential validity failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, validity)
}

func (h *Handler) HandleGetCredential(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	holder, err := pathAccount(r, "holder")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	credential, err := h.ledger.Credential(ctx, holder)
	if err != nil {
		h.fail(ctx, w, "get credential failed", err, "holder", holder)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCredentialResponse(credential))
}

type credentialTransition func(ctx context.Context, holder id.AccountID, reason string) (*credentialmodels.Credential, error)

func (h *Handler) transitionCredential(w http.ResponseWriter, r *http.Request, name string, fn credentialTransition) {
	ctx := r.Context()
	holder, err := pathAccount(r, "holder")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[ReasonRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	credential, err := fn(ctx, holder, req.Reason)
	if err != nil {
		h.fail(ctx, w, name+" credential failed", err, "holder", holder)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCredentialResponse(credential))
}

func (h *Handler) HandleSuspendCredential(w http.ResponseWriter, r *http.Request) {
	h.transitionCredential(w, r, "suspend", h.ledger.SuspendCredential)
}

func (h *Handler) HandleReactivateCredential(w http.ResponseWriter, r *http.Request) {
	h.transitionCredential(w, r, "reactivate", h.ledger.ReactivateCredential)
}

func (h *Handler) HandleRevokeCredential(w http.ResponseWriter, r *http.Request) {
	h.transitionCredential(w, r, "revoke", h.ledger.RevokeCredential)
}

func (h *Handler) HandleRenewCredential(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	holder, err := pathAccount(r, "holder")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[RenewCredentialRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	credential, err := h.ledger.RenewCredential(ctx, holder, req.ExpiresAt)
	if err != nil {
		h.fail(ctx, w, "renew credential failed", err, "holder", holder)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCredentialResponse(credential))
}

func (h *Handler) HandleExpireCredential(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	holder, err := pathAccount(r, "holder")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	credential, err := h.ledger.ExpireCredential(ctx, holder)
	if err != nil {
		h.fail(ctx, w, "expire credential failed", err, "holder", holder)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCredentialResponse(credential))
}

func (h *Handler) HandleRecordIssued(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	holder, err := pathAccount(r, "holder")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	credential, err := h.ledger.RecordIssued(ctx, holder)
	if err != nil {
		h.fail(ctx, w, "record issued failed", err, "holder", holder)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCredentialResponse(credential))
}

// Participants

func (h *Handler) HandleRegisterParticipant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[RegisterParticipantRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	participant, err := h.ledger.RegisterParticipant(ctx, eligibilityservice.RegisterCommand{
		Participant: id.AccountID(req.Participant),
		DID:         req.DID,
		ProofRef:    req.ProofRef,
	})
	if err != nil {
		h.fail(ctx, w, "register participant failed", err, "participant", req.Participant)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toParticipantResponse(participant))
}

func (h *Handler) HandleEligibility(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[ParticipantsRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	accounts, err := id.ParseAccountIDs(req.Participants)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	eligibility, err := h.ledger.Eligibility(ctx, accounts)
	if err != nil {
		h.fail(ctx, w, "eligibility failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, eligibility)
}

func (h *Handler) HandleGetParticipant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account, err := pathAccount(r, "account")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	participant, err := h.ledger.Participant(ctx, account)
	if err != nil {
		h.fail(ctx, w, "get participant failed", err, "participant", account)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toParticipantResponse(participant))
}

func (h *Handler) HandlePerformCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account, err := pathAccount(r, "account")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[CheckRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	checkpoint, err := h.ledger.PerformCheck(ctx, account, req.IdentityHash, *req.Passed)
	if err != nil {
		h.fail(ctx, w, "perform check failed", err, "participant", account)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, checkpoint)
}

func (h *Handler) HandleListCheckpoints(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account, err := pathAccount(r, "account")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	checkpoints, err := h.ledger.Checkpoints(ctx, account)
	if err != nil {
		h.fail(ctx, w, "list checkpoints failed", err, "participant", account)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, checkpoints)
}

func (h *Handler) HandleReputationHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account, err := pathAccount(r, "account")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	history, err := h.ledger.ReputationHistory(ctx, account)
	if err != nil {
		h.fail(ctx, w, "reputation history failed", err, "participant", account)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, history)
}

type participantTransition func(ctx context.Context, account id.AccountID, reason string) (*eligibilitymodels.Participant, error)

func (h *Handler) transitionParticipant(w http.ResponseWriter, r *http.Request, name string, fn participantTransition) {
	ctx := r.Context()
	account, err := pathAccount(r, "account")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[ReasonRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	participant, err := fn(ctx, account, req.Reason)
	if err != nil {
		h.fail(ctx, w, name+" participant failed", err, "participant", account)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toParticipantResponse(participant))
}

func (h *Handler) HandleSuspendParticipant(w http.ResponseWriter, r *http.Request) {
	h.transitionParticipant(w, r, "suspend", h.ledger.SuspendParticipant)
}

func (h *Handler) HandleReinstateParticipant(w http.ResponseWriter, r *http.Request) {
	h.transitionParticipant(w, r, "reinstate", h.ledger.ReinstateParticipant)
}

func (h *Handler) HandleBanParticipant(w http.ResponseWriter, r *http.Request) {
	h.transitionParticipant(w, r, "ban", h.ledger.BanParticipant)
}

// Fund

func (h *Handler) HandleFundAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account, err := pathAccount(r, "account")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[AmountRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	balance, err := h.ledger.FundAccount(ctx, account, req.Amount)
	if err != nil {
		h.fail(ctx, w, "fund account failed", err, "account", account)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, balance)
}

func (h *Handler) HandleBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account, err := pathAccount(r, "account")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	balance, err := h.ledger.Balance(ctx, account)
	if err != nil {
		h.fail(ctx, w, "balance failed", err, "account", account)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, balance)
}

type walletMove func(ctx context.Context, amount uint64) (*fundmodels.Balance, error)

func (h *Handler) moveFunds(w http.ResponseWriter, r *http.Request, name string, fn walletMove) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[AmountRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	balance, err := fn(ctx, req.Amount)
	if err != nil {
		h.fail(ctx, w, name+" failed", err, "amount", req.Amount)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, balance)
}

func (h *Handler) HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	h.moveFunds(w, r, "withdraw", h.ledger.Withdraw)
}

func (h *Handler) HandleStake(w http.ResponseWriter, r *http.Request) {
	h.moveFunds(w, r, "stake", h.ledger.Stake)
}

func (h *Handler) HandleUnstake(w http.ResponseWriter, r *http.Request) {
	h.moveFunds(w, r, "unstake", h.ledger.Unstake)
}

func (h *Handler) HandlePool(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pool, err := h.ledger.Pool(ctx)
	if err != nil {
		h.fail(ctx, w, "pool failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPoolResponse(pool))
}

func (h *Handler) HandleStakers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stakers, err := h.ledger.Stakers(ctx)
	if err != nil {
		h.fail(ctx, w, "stakers failed", err)
		return
	}
	out := make([]string, len(stakers))
	for i, s := range stakers {
		out[i] = s.String()
	}
	httputil.WriteJSON(w, http.StatusOK, &StakersResponse{Stakers: out})
}

func (h *Handler) HandleQuote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subject, err := pathSubject(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	quote, err := h.ledger.Quote(ctx, subject)
	if err != nil {
		h.fail(ctx, w, "quote failed", err, "subject", subject)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toQuoteResponse(quote))
}

func (h *Handler) HandleDeposit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subject, err := pathSubject(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[AmountRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	pool, err := h.ledger.Deposit(ctx, subject, req.Amount)
	if err != nil {
		h.fail(ctx, w, "deposit failed", err, "subject", subject)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPoolResponse(pool))
}

// Claims

func (h *Handler) HandleSubmitClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[SubmitClaimRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	claim, err := h.ledger.SubmitClaim(ctx, claimsservice.SubmitCommand{
		Subject:     id.SubjectID(req.Subject),
		Attester:    id.AccountID(req.Attester),
		EvidenceRef: req.EvidenceRef,
		Amount:      req.Amount,
	})
	if err != nil {
		h.fail(ctx, w, "submit claim failed", err, "subject", req.Subject)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toClaimResponse(claim))
}

func (h *Handler) HandleGetClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claimID, err := pathClaim(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	claim, err := h.ledger.Claim(ctx, claimID)
	if err != nil {
		h.fail(ctx, w, "get claim failed", err, "claim_id", claimID)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toClaimResponse(claim))
}

func (h *Handler) HandleVote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claimID, err := pathClaim(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[VoteRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	claim, err := h.ledger.Vote(ctx, claimID, *req.Approve)
	if err != nil {
		h.fail(ctx, w, "vote failed", err, "claim_id", claimID)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toClaimResponse(claim))
}

type claimStep func(ctx context.Context, claimID id.ClaimID) (*claimsmodels.Claim, error)

func (h *Handler) advanceClaim(w http.ResponseWriter, r *http.Request, name string, fn claimStep) {
	ctx := r.Context()
	claimID, err := pathClaim(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	claim, err := fn(ctx, claimID)
	if err != nil {
		h.fail(ctx, w, name+" failed", err, "claim_id", claimID)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toClaimResponse(claim))
}

func (h *Handler) HandleSelectPanel(w http.ResponseWriter, r *http.Request) {
	h.advanceClaim(w, r, "select panel", h.ledger.SelectPanel)
}

func (h *Handler) HandleFinalize(w http.ResponseWriter, r *http.Request) {
	h.advanceClaim(w, r, "finalize", h.ledger.Finalize)
}

func (h *Handler) HandlePayout(w http.ResponseWriter, r *http.Request) {
	h.advanceClaim(w, r, "payout", h.ledger.Payout)
}
