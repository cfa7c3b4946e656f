package einvoice

import (
	"context"
	"time"

	"github.com/einvoice/backend/internal/domain/einvoice"
	"github.com/einvoice/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultSubmitTimeout    = 30 * time.Second
	defaultInitialPollDelay = 2 * time.Minute
)

// SubmissionService drives documents through the exchange lifecycle:
// submission with an optimistic sending pre-mark, the duplicate-submission
// confirmation flow, on-demand status checks, and scheduling of the
// background poller after an accepted submission.
type SubmissionService struct {
	repo      einvoice.DocumentRepository
	provider  einvoice.ExchangeProvider
	directory einvoice.TaxpayerDirectory
	publisher shared.EventPublisher
	gate      *ConfirmationGate
	poller    *StatusPoller
	checker   statusChecker
	logger    *zap.Logger

	submitTimeout    time.Duration
	initialPollDelay time.Duration
}

// SubmissionServiceConfig holds configuration for the submission service
type SubmissionServiceConfig struct {
	Repo           einvoice.DocumentRepository
	Provider       einvoice.ExchangeProvider
	Directory      einvoice.TaxpayerDirectory
	EventPublisher shared.EventPublisher
	Gate           *ConfirmationGate
	Poller         *StatusPoller
	Logger         *zap.Logger

	SubmitTimeout    time.Duration // Deadline for the remote submit call
	InitialPollDelay time.Duration // Delay before the first scheduled poll
}

// NewSubmissionService creates a new SubmissionService
func NewSubmissionService(config SubmissionServiceConfig) *SubmissionService {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.SubmitTimeout <= 0 {
		config.SubmitTimeout = defaultSubmitTimeout
	}
	if config.InitialPollDelay <= 0 {
		config.InitialPollDelay = defaultInitialPollDelay
	}
	gate := config.Gate
	if gate == nil {
		gate = NewConfirmationGate(logger)
	}

	return &SubmissionService{
		repo:      config.Repo,
		provider:  config.Provider,
		directory: config.Directory,
		publisher: config.EventPublisher,
		gate:      gate,
		poller:    config.Poller,
		checker: statusChecker{
			repo:      config.Repo,
			provider:  config.Provider,
			publisher: config.EventPublisher,
			logger:    logger,
		},
		logger:           logger,
		submitTimeout:    config.SubmitTimeout,
		initialPollDelay: config.InitialPollDelay,
	}
}

// Gate exposes the confirmation gate for read access by the transport layer
func (s *SubmissionService) Gate() *ConfirmationGate {
	return s.gate
}

// Submit sends a document to the exchange provider. A terminal document is
// explicitly reset and submitted anew, as is an already sent document when
// the resend was explicitly forced. The document is pre-marked sending
// before the remote call so concurrent viewers see the in-flight state; the
// remote call races a timeout, and a timed-out call is not cancelled
// because the provider may still complete it.
//
// Classified submission failures are reported in the returned outcome, not
// as a Go error. Errors are reserved for infrastructure problems such as a
// failed repository write.
func (s *SubmissionService) Submit(ctx context.Context, tenantID, documentID uuid.UUID, opts SubmitOptions) (*SubmitOutcome, error) {
	if _, open := s.gate.Get(documentID); open {
		return nil, ErrConfirmationPending
	}
	return s.submit(ctx, tenantID, documentID, opts)
}

// submit runs the submission flow without the gate-open guard, so a
// confirmed resend can run while its own request is still open.
func (s *SubmissionService) submit(ctx context.Context, tenantID, documentID uuid.UUID, opts SubmitOptions) (*SubmitOutcome, error) {
	doc, err := s.repo.FindByIDForTenant(ctx, tenantID, documentID)
	if err != nil {
		return nil, err
	}

	// A document the provider already holds is not resent blindly. The
	// operator sees the last known provider state and decides.
	if !opts.ForceResend && doc.HasExternalRef() && !doc.Status.IsTerminal() {
		return s.openConfirmation(doc, priorSnapshot(doc), opts)
	}

	// A terminal document and a forced resend of a sent document both
	// restart the lifecycle from draft. The external reference is kept
	// until the provider assigns a fresh one.
	if doc.Status.IsTerminal() || (opts.ForceResend && doc.Status == einvoice.StatusSent) {
		doc.ResetToDraft()
	}

	profile, err := s.resolveProfile(ctx, doc, opts)
	if err != nil {
		return nil, err
	}

	if err := doc.MarkSending(profile); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, doc); err != nil {
		return nil, err
	}
	s.checker.publishEvents(ctx, doc)

	s.logger.Info("submitting document to exchange provider",
		zap.String("document_id", doc.ID.String()),
		zap.String("invoice_number", doc.InvoiceNumber),
		zap.String("profile", profile.String()),
		zap.Bool("force_resend", opts.ForceResend),
	)

	res, submitErr := s.submitWithTimeout(ctx, einvoice.SubmitRequest{
		TenantID:        tenantID,
		DocumentID:      doc.ID,
		InvoiceNumber:   doc.InvoiceNumber,
		Profile:         profile,
		ForceResend:     opts.ForceResend,
		DeliveryChannel: opts.DeliveryChannel,
		NotifyAddresses: opts.NotifyAddresses,
	})

	if submitErr == nil && res != nil && res.NeedsConfirmation {
		return s.openConfirmation(doc, res.Snapshot, opts)
	}
	if submitErr == nil && res != nil && res.Accepted {
		return s.acceptSubmission(ctx, doc, res)
	}

	var body []byte
	if res != nil {
		body = []byte(res.ErrorBody)
	}
	verdict := einvoice.Classify(submitErr, body)

	switch {
	case verdict.Kind == einvoice.KindNeedsConfirmation:
		return s.openConfirmation(doc, verdict.Snapshot, opts)
	case verdict.Kind == einvoice.KindTimeout:
		// The remote side may still land the submission. The document
		// stays in sending; a later status check settles it.
		s.logger.Warn("submission timed out",
			zap.String("document_id", doc.ID.String()),
		)
		return &SubmitOutcome{
			DocumentID: doc.ID,
			Status:     doc.Status,
			Kind:       verdict.Kind,
			Message:    verdict.Message,
		}, nil
	default:
		return s.failSubmission(ctx, doc, verdict)
	}
}

// ConfirmResend submits the document again with the duplicate guard
// bypassed and then resolves the open confirmation request. The request is
// consumed only once the resubmit has been dispatched, so a failed attempt
// can be confirmed again.
func (s *SubmissionService) ConfirmResend(ctx context.Context, tenantID, documentID uuid.UUID) (*SubmitOutcome, error) {
	req, ok := s.gate.Get(documentID)
	if !ok || req.TenantID != tenantID {
		return nil, ErrNoConfirmationPending
	}

	opts := req.Options
	opts.ForceResend = true

	s.logger.Info("operator confirmed duplicate resend",
		zap.String("document_id", documentID.String()),
	)

	outcome, err := s.submit(ctx, tenantID, documentID, opts)
	if err != nil {
		return nil, err
	}
	if _, resolveErr := s.gate.Resolve(documentID); resolveErr != nil {
		s.logger.Debug("confirmation request already resolved",
			zap.String("document_id", documentID.String()),
		)
	}
	return outcome, nil
}

// CancelResend resolves an open confirmation request without resubmitting.
// The document keeps its current status.
func (s *SubmissionService) CancelResend(ctx context.Context, tenantID, documentID uuid.UUID) error {
	if _, err := s.resolveGate(tenantID, documentID); err != nil {
		return err
	}
	s.logger.Info("operator cancelled duplicate resend",
		zap.String("document_id", documentID.String()),
	)
	return nil
}

// CheckStatus runs one on-demand provider status lookup for a document
func (s *SubmissionService) CheckStatus(ctx context.Context, tenantID, documentID uuid.UUID) (*CheckOutcome, error) {
	doc, err := s.repo.FindByIDForTenant(ctx, tenantID, documentID)
	if err != nil {
		return nil, err
	}

	verdict, err := s.checker.check(ctx, doc)
	if err != nil {
		return nil, err
	}

	return &CheckOutcome{
		DocumentID: doc.ID,
		Status:     doc.Status,
		Kind:       verdict.Kind,
		StateCode:  verdict.StateCode,
		Message:    verdict.Message,
	}, nil
}

// resolveGate closes the gate for a document after verifying tenant
// ownership of the open request.
func (s *SubmissionService) resolveGate(tenantID, documentID uuid.UUID) (*ConfirmationRequest, error) {
	req, ok := s.gate.Get(documentID)
	if !ok || req.TenantID != tenantID {
		return nil, ErrNoConfirmationPending
	}
	return s.gate.Resolve(documentID)
}

// resolveProfile picks the submission profile: an explicit override wins,
// then the profile persisted on the document, then counterpart capability
// via the taxpayer directory.
func (s *SubmissionService) resolveProfile(ctx context.Context, doc *einvoice.Document, opts SubmitOptions) (einvoice.Profile, error) {
	if opts.Profile != nil {
		if !opts.Profile.IsValid() {
			return "", einvoice.ErrInvalidProfile
		}
		return *opts.Profile, nil
	}
	if doc.Profile.IsValid() {
		return doc.Profile, nil
	}

	if doc.CounterpartTaxID == "" {
		return "", einvoice.ErrMissingCounterpartID
	}
	registered, err := s.directory.IsRegistered(ctx, doc.TenantID, doc.CounterpartTaxID)
	if err != nil {
		return "", err
	}
	if registered {
		return einvoice.ProfileEInvoice, nil
	}
	return einvoice.ProfileEArchive, nil
}

// submitWithTimeout races the remote submit call against the configured
// deadline. The call runs on a detached context so a lost race does not
// cancel it mid-flight; the buffered channel lets the late result be
// dropped without leaking the goroutine.
func (s *SubmissionService) submitWithTimeout(ctx context.Context, req einvoice.SubmitRequest) (*einvoice.SubmitResult, error) {
	type submitReply struct {
		res *einvoice.SubmitResult
		err error
	}

	deadlined, cancel := context.WithTimeout(ctx, s.submitTimeout)
	defer cancel()
	detached := context.WithoutCancel(ctx)

	replies := make(chan submitReply, 1)
	go func() {
		res, err := s.provider.Submit(detached, req)
		replies <- submitReply{res: res, err: err}
	}()

	select {
	case reply := <-replies:
		return reply.res, reply.err
	case <-deadlined.Done():
		return nil, deadlined.Err()
	}
}

// openConfirmation records the duplicate-submission conflict and hands the
// decision to the operator. The document stays in sending until the
// operator confirms or cancels.
func (s *SubmissionService) openConfirmation(doc *einvoice.Document, snapshot *einvoice.StatusSnapshot, opts SubmitOptions) (*SubmitOutcome, error) {
	snap := einvoice.StatusSnapshot{}
	if snapshot != nil {
		snap = *snapshot
	}

	req, err := s.gate.Open(doc.TenantID, doc.ID, snap, opts)
	if err != nil {
		return nil, err
	}

	return &SubmitOutcome{
		DocumentID:        doc.ID,
		Status:            doc.Status,
		Kind:              einvoice.KindNeedsConfirmation,
		NeedsConfirmation: true,
		Snapshot:          &req.Snapshot,
		Message:           "the provider already holds this document, confirm to send again",
	}, nil
}

// priorSnapshot rebuilds a provider snapshot from the state last recorded
// on the document, for conflicts detected before any remote call.
func priorSnapshot(doc *einvoice.Document) *einvoice.StatusSnapshot {
	code := einvoice.StateQueued
	if doc.ProviderStateCode != nil {
		code = *doc.ProviderStateCode
	}
	return &einvoice.StatusSnapshot{
		StateCode:          code,
		StateName:          einvoice.StateName(code),
		UserFriendlyStatus: "document was already transferred to the provider",
	}
}

// acceptSubmission records provider acceptance and queues the first
// background status poll.
func (s *SubmissionService) acceptSubmission(ctx context.Context, doc *einvoice.Document, res *einvoice.SubmitResult) (*SubmitOutcome, error) {
	stateCode := einvoice.StateQueued
	if res.Snapshot != nil {
		stateCode = res.Snapshot.StateCode
	}
	if err := doc.MarkSent(res.ExternalRefID, stateCode); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, doc); err != nil {
		return nil, err
	}
	s.checker.publishEvents(ctx, doc)

	if s.poller != nil {
		s.poller.Schedule(doc.ID, s.initialPollDelay, 0)
	}

	s.logger.Info("document accepted by exchange provider",
		zap.String("document_id", doc.ID.String()),
		zap.String("external_ref_id", doc.ExternalRefID),
	)

	return &SubmitOutcome{
		DocumentID:    doc.ID,
		Status:        doc.Status,
		ExternalRefID: doc.ExternalRefID,
	}, nil
}

// failSubmission persists the classified failure on the document
func (s *SubmissionService) failSubmission(ctx context.Context, doc *einvoice.Document, verdict einvoice.Classification) (*SubmitOutcome, error) {
	if err := doc.MarkFailed(verdict.Message, verdict.StateCode); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, doc); err != nil {
		return nil, err
	}
	s.checker.publishEvents(ctx, doc)

	s.logger.Warn("submission failed",
		zap.String("document_id", doc.ID.String()),
		zap.String("kind", string(verdict.Kind)),
		zap.String("message", verdict.Message),
	)

	return &SubmitOutcome{
		DocumentID: doc.ID,
		Status:     doc.Status,
		Kind:       verdict.Kind,
		Message:    verdict.Message,
	}, nil
}
