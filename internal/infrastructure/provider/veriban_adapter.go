package provider

import (
	"context"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/einvoice/backend/internal/domain/einvoice"
	"github.com/einvoice/backend/internal/infrastructure/cache"
)

// maxResponseSize is the maximum allowed response size from the Veriban
// service (10MB)
const maxResponseSize = 10 * 1024 * 1024

// Session channels. Each profile authenticates against its own endpoint, so
// session codes are cached separately.
const (
	channelInvoice = "invoice"
	channelArchive = "archive"
)

// SOAPAction values, bare operation names as the service expects them
const (
	actionLogin          = "Login"
	actionLogout         = "Logout"
	actionTransfer       = "TransferSalesInvoiceFile"
	actionTransferStatus = "GetTransferSalesInvoiceFileStatus"
	actionAliasList      = "GetCustomerAliasListWithRegisterNumber"
)

// ErrVeribanMissingPayloadSource indicates the adapter was built without a
// payload source
var ErrVeribanMissingPayloadSource = errors.New("veriban: payload source is required")

// VeribanAdapter implements the exchange provider and taxpayer directory
// interfaces against the Veriban integration service. Sessions are acquired
// with Login and reused through the session cache until the service rejects
// them.
type VeribanAdapter struct {
	config     *VeribanConfig
	httpClient *http.Client
	sessions   cache.SessionCache
	payloads   PayloadSource
	sessionTTL time.Duration
	logger     *zap.Logger

	// tenantConfigs stores per-tenant credentials
	// In production, this would be loaded from database
	tenantConfigs map[uuid.UUID]*VeribanConfig
	mu            sync.RWMutex // Protects tenantConfigs map
}

// VeribanAdapterConfig configures a VeribanAdapter
type VeribanAdapterConfig struct {
	// DefaultConfig is the fallback account used when a tenant has no
	// credentials of its own. Optional.
	DefaultConfig *VeribanConfig
	// Sessions caches session codes. Defaults to an in-memory cache.
	Sessions cache.SessionCache
	// Payloads resolves prepared transfer files. Required.
	Payloads PayloadSource
	// HTTPClient overrides the default client
	HTTPClient *http.Client
	// RequestTimeout bounds each SOAP round trip. Defaults to 30s.
	RequestTimeout time.Duration
	// SessionTTL bounds cached session reuse. Defaults to 30m.
	SessionTTL time.Duration
	// Logger defaults to a no-op logger
	Logger *zap.Logger
}

// NewVeribanAdapter creates a Veriban adapter
func NewVeribanAdapter(config VeribanAdapterConfig) (*VeribanAdapter, error) {
	if config.Payloads == nil {
		return nil, ErrVeribanMissingPayloadSource
	}
	if config.DefaultConfig != nil {
		if err := config.DefaultConfig.Validate(); err != nil {
			return nil, err
		}
	}
	if config.Sessions == nil {
		config.Sessions = cache.NewInMemorySessionCache()
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 30 * time.Second
	}
	if config.SessionTTL <= 0 {
		config.SessionTTL = 30 * time.Minute
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.RequestTimeout}
	}

	return &VeribanAdapter{
		config:        config.DefaultConfig,
		httpClient:    httpClient,
		sessions:      config.Sessions,
		payloads:      config.Payloads,
		sessionTTL:    config.SessionTTL,
		logger:        config.Logger,
		tenantConfigs: make(map[uuid.UUID]*VeribanConfig),
	}, nil
}

var (
	_ einvoice.ExchangeProvider  = (*VeribanAdapter)(nil)
	_ einvoice.TaxpayerDirectory = (*VeribanAdapter)(nil)
)

// SetTenantConfig sets the Veriban credentials for a specific tenant
func (a *VeribanAdapter) SetTenantConfig(tenantID uuid.UUID, config *VeribanConfig) error {
	if err := config.Validate(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tenantConfigs[tenantID] = config
	return nil
}

// tenantConfig retrieves the credentials for a tenant
func (a *VeribanAdapter) tenantConfig(tenantID uuid.UUID) (*VeribanConfig, error) {
	a.mu.RLock()
	config, ok := a.tenantConfigs[tenantID]
	a.mu.RUnlock()
	if ok {
		return config, nil
	}
	if a.config != nil {
		return a.config, nil
	}
	return nil, einvoice.ErrProviderNotConfigured
}

// route picks the session channel and service endpoint for a profile
func (a *VeribanAdapter) route(config *VeribanConfig, profile einvoice.Profile) (string, string, error) {
	switch profile {
	case einvoice.ProfileEInvoice:
		return channelInvoice, config.InvoiceServiceURL, nil
	case einvoice.ProfileEArchive:
		return channelArchive, config.ArchiveServiceURL, nil
	default:
		return "", "", einvoice.ErrInvalidProfile
	}
}

// Submit uploads the prepared document package to the transfer endpoint for
// the requested profile.
func (a *VeribanAdapter) Submit(ctx context.Context, req einvoice.SubmitRequest) (*einvoice.SubmitResult, error) {
	config, err := a.tenantConfig(req.TenantID)
	if err != nil {
		return nil, err
	}
	channel, serviceURL, err := a.route(config, req.Profile)
	if err != nil {
		return nil, err
	}

	payload, err := a.payloads.Fetch(ctx, req.TenantID, req.DocumentID, req.Profile)
	if err != nil {
		return nil, fmt.Errorf("resolving transfer payload: %w", err)
	}

	hash := md5.Sum(payload.Content)
	file := transferFile{
		FileName:           payload.FileName,
		BinaryData:         base64.StdEncoding.EncodeToString(payload.Content),
		BinaryDataHash:     hex.EncodeToString(hash[:]),
		CustomerAlias:      config.CustomerAlias,
		IsDirectSend:       config.IsDirectSend,
		NotifyAddresses:    req.NotifyAddresses,
		TransportationType: transportationType(req.DeliveryChannel),
	}

	build := func(session string) string {
		if req.Profile == einvoice.ProfileEArchive {
			return transferArchiveEnvelope(session, file)
		}
		return transferInvoiceEnvelope(session, file)
	}

	body, err := a.call(ctx, req.TenantID, config, channel, serviceURL, actionTransfer, build)
	if err != nil {
		return nil, err
	}

	reply := parseTransferReply(body)
	if !reply.OperationCompleted {
		desc := reply.Description
		if desc == "" {
			desc = "transfer was not completed"
		}
		return &einvoice.SubmitResult{ErrorBody: desc},
			fmt.Errorf("%w: %s", einvoice.ErrProviderRequestFailed, desc)
	}
	if reply.TransferFileUniqueID == "" {
		return nil, fmt.Errorf("%w: transfer completed without a file id", einvoice.ErrProviderInvalidReply)
	}

	a.logger.Info("veriban accepted transfer",
		zap.String("invoice_number", req.InvoiceNumber),
		zap.String("profile", req.Profile.String()),
		zap.String("transfer_file_id", reply.TransferFileUniqueID),
		zap.Bool("force_resend", req.ForceResend),
	)

	return &einvoice.SubmitResult{
		Accepted:      true,
		ExternalRefID: reply.TransferFileUniqueID,
		Snapshot: &einvoice.StatusSnapshot{
			StateCode:          einvoice.StateQueued,
			StateName:          einvoice.StateName(einvoice.StateQueued),
			UserFriendlyStatus: userFriendlyStatus(einvoice.StateQueued),
		},
	}, nil
}

// GetStatus queries the transfer state of a previously accepted document
func (a *VeribanAdapter) GetStatus(ctx context.Context, req einvoice.StatusRequest) (*einvoice.StatusResult, error) {
	if req.ExternalRefID == "" {
		return nil, einvoice.ErrMissingExternalRef
	}
	config, err := a.tenantConfig(req.TenantID)
	if err != nil {
		return nil, err
	}
	channel, serviceURL, err := a.route(config, req.Profile)
	if err != nil {
		return nil, err
	}

	body, err := a.call(ctx, req.TenantID, config, channel, serviceURL, actionTransferStatus, func(session string) string {
		return transferStatusEnvelope(session, req.ExternalRefID)
	})
	if err != nil {
		return nil, err
	}

	reply := parseStatusReply(body)
	if reply.StateCode == 0 && reply.StateName == "" {
		return nil, fmt.Errorf("%w: status reply carries no state", einvoice.ErrProviderInvalidReply)
	}

	stateName := reply.StateName
	if stateName == "" {
		stateName = einvoice.StateName(reply.StateCode)
	}

	return &einvoice.StatusResult{
		StateCode:          reply.StateCode,
		StateName:          stateName,
		UserFriendlyStatus: userFriendlyStatus(reply.StateCode),
		AnswerStatus:       reply.AnswerStateName,
		Description:        reply.Description,
	}, nil
}

// IsRegistered reports whether the counterpart tax number resolves to at
// least one registered e-invoice mailbox alias.
func (a *VeribanAdapter) IsRegistered(ctx context.Context, tenantID uuid.UUID, taxID string) (bool, error) {
	if taxID == "" {
		return false, einvoice.ErrMissingCounterpartID
	}
	config, err := a.tenantConfig(tenantID)
	if err != nil {
		return false, err
	}

	body, err := a.call(ctx, tenantID, config, channelInvoice, config.InvoiceServiceURL, actionAliasList, func(session string) string {
		return aliasListEnvelope(session, taxID)
	})
	if err != nil {
		return false, err
	}

	count := countAliases(body)
	a.logger.Debug("veriban alias lookup",
		zap.String("tax_id", taxID),
		zap.Int("alias_count", count),
	)
	return count > 0, nil
}

// Logout releases a cached session for a tenant channel. Best effort, the
// service expires sessions on its own.
func (a *VeribanAdapter) Logout(ctx context.Context, tenantID uuid.UUID, profile einvoice.Profile) error {
	config, err := a.tenantConfig(tenantID)
	if err != nil {
		return err
	}
	channel, serviceURL, err := a.route(config, profile)
	if err != nil {
		return err
	}

	session, ok, err := a.sessions.Get(ctx, tenantID, channel)
	if err != nil || !ok {
		return err
	}
	if err := a.sessions.Delete(ctx, tenantID, channel); err != nil {
		return err
	}
	_, _, err = a.post(ctx, serviceURL, actionLogout, logoutEnvelope(session))
	return err
}

// call runs one SOAP operation with a session code, logging in again and
// retrying once when the service rejects a cached session.
func (a *VeribanAdapter) call(ctx context.Context, tenantID uuid.UUID, config *VeribanConfig, channel, serviceURL, action string, build func(session string) string) ([]byte, error) {
	session, err := a.session(ctx, tenantID, config, channel, serviceURL)
	if err != nil {
		return nil, err
	}

	body, fault, err := a.post(ctx, serviceURL, action, build(session))
	if err != nil {
		return nil, err
	}
	if fault != nil && fault.isSessionFault() {
		a.logger.Debug("veriban rejected cached session, logging in again",
			zap.String("channel", channel),
		)
		if err := a.sessions.Delete(ctx, tenantID, channel); err != nil {
			a.logger.Warn("evicting stale session failed", zap.Error(err))
		}
		session, err = a.login(ctx, tenantID, config, channel, serviceURL)
		if err != nil {
			return nil, err
		}
		body, fault, err = a.post(ctx, serviceURL, action, build(session))
		if err != nil {
			return nil, err
		}
	}
	if fault != nil {
		return nil, faultError(fault)
	}
	return body, nil
}

// session returns a cached session code or logs in for a fresh one
func (a *VeribanAdapter) session(ctx context.Context, tenantID uuid.UUID, config *VeribanConfig, channel, serviceURL string) (string, error) {
	code, ok, err := a.sessions.Get(ctx, tenantID, channel)
	if err != nil {
		a.logger.Warn("session cache read failed", zap.Error(err))
	}
	if ok && code != "" {
		return code, nil
	}
	return a.login(ctx, tenantID, config, channel, serviceURL)
}

// login authenticates against the service and caches the issued session code
func (a *VeribanAdapter) login(ctx context.Context, tenantID uuid.UUID, config *VeribanConfig, channel, serviceURL string) (string, error) {
	body, fault, err := a.post(ctx, serviceURL, actionLogin, loginEnvelope(config.Username, config.Password))
	if err != nil {
		return "", err
	}
	if fault != nil {
		return "", fmt.Errorf("%w: %s", einvoice.ErrProviderAuthFailed, fault.Message)
	}

	code := parseLoginReply(body)
	if code == "" {
		return "", fmt.Errorf("%w: login returned no session code", einvoice.ErrProviderAuthFailed)
	}

	if err := a.sessions.Set(ctx, tenantID, channel, code, a.sessionTTL); err != nil {
		a.logger.Warn("caching session code failed", zap.Error(err))
	}
	return code, nil
}

// post runs one SOAP round trip and separates faults from transport errors
func (a *VeribanAdapter) post(ctx context.Context, serviceURL, action, envelope string) ([]byte, *soapFault, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, serviceURL, strings.NewReader(envelope))
	if err != nil {
		return nil, nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "text/xml; charset=utf-8")
	httpReq.Header.Set("SOAPAction", action)

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", einvoice.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: reading response: %v", einvoice.ErrProviderInvalidReply, err)
	}

	// .NET SOAP endpoints report faults with HTTP 500, so the body is
	// inspected before the status code.
	if fault := parseFault(body); fault != nil {
		return body, fault, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("%w: http %d", einvoice.ErrProviderUnavailable, resp.StatusCode)
	}
	return body, nil, nil
}

// faultError maps a non-session SOAP fault onto a provider sentinel
func faultError(fault *soapFault) error {
	if fault.isSessionFault() {
		return fmt.Errorf("%w: %s", einvoice.ErrProviderSessionExpired, fault.Message)
	}
	msg := strings.ToLower(fault.Message)
	for _, kw := range []string{"unauthorized", "authentication", "password", "kullanıcı", "şifre"} {
		if strings.Contains(msg, kw) {
			return fmt.Errorf("%w: %s", einvoice.ErrProviderAuthFailed, fault.Message)
		}
	}
	return fmt.Errorf("%w: %s", einvoice.ErrProviderRequestFailed, fault.Message)
}

// transportationType maps the requested delivery channel onto the Veriban
// e-archive transportation enum. Anything but an explicit paper request
// means electronic delivery.
func transportationType(channel string) string {
	switch strings.ToLower(strings.TrimSpace(channel)) {
	case "paper", "kagit", "kağıt":
		return "KAGIT"
	default:
		return "ELEKTRONIK"
	}
}

// userFriendlyStatus renders a provider state code for operators
func userFriendlyStatus(code int) string {
	switch code {
	case einvoice.StateDraft:
		return "draft at the provider"
	case einvoice.StateQueued:
		return "queued for dispatch"
	case einvoice.StateInDispatch:
		return "in the dispatch list"
	case einvoice.StateError:
		return "provider reported a processing error"
	case einvoice.StateDelivered:
		return "delivered to the recipient"
	default:
		return "unknown provider state"
	}
}
