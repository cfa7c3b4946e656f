package provider

import "errors"

// Veriban integration service endpoints. The e-invoice endpoint is assigned
// per account and always comes from tenant settings; the e-archive endpoint
// is shared and only varies between test and production.
const (
	VeribanArchiveProductionURL = "https://earsivtransfer.veriban.com.tr/IntegrationService.svc"
	VeribanArchiveTestURL       = "https://earsivtransfertest.veriban.com.tr/IntegrationService.svc"
)

// Errors for Veriban configuration
var (
	ErrVeribanConfigMissingUsername   = errors.New("veriban: username is required")
	ErrVeribanConfigMissingPassword   = errors.New("veriban: password is required")
	ErrVeribanConfigMissingInvoiceURL = errors.New("veriban: invoice service URL is required")
)

// VeribanConfig holds the per-tenant Veriban account settings
type VeribanConfig struct {
	// Username is the integration account user name
	Username string
	// Password is the integration account password
	Password string
	// InvoiceServiceURL is the tenant's assigned e-invoice transfer endpoint
	InvoiceServiceURL string
	// ArchiveServiceURL is the e-archive transfer endpoint. Defaults by TestMode.
	ArchiveServiceURL string
	// CustomerAlias is the registered mailbox alias used for direct sends
	CustomerAlias string
	// IsDirectSend dispatches the document to the authority without manual approval
	IsDirectSend bool
	// TestMode points defaulted endpoints at the Veriban test environment
	TestMode bool
}

// NewVeribanConfig creates a Veriban configuration with defaults
func NewVeribanConfig(username, password, invoiceServiceURL string) *VeribanConfig {
	return &VeribanConfig{
		Username:          username,
		Password:          password,
		InvoiceServiceURL: invoiceServiceURL,
		ArchiveServiceURL: VeribanArchiveProductionURL,
		IsDirectSend:      true,
	}
}

// Validate validates the Veriban configuration and fills defaulted endpoints
func (c *VeribanConfig) Validate() error {
	if c.Username == "" {
		return ErrVeribanConfigMissingUsername
	}
	if c.Password == "" {
		return ErrVeribanConfigMissingPassword
	}
	if c.InvoiceServiceURL == "" {
		return ErrVeribanConfigMissingInvoiceURL
	}
	if c.ArchiveServiceURL == "" {
		if c.TestMode {
			c.ArchiveServiceURL = VeribanArchiveTestURL
		} else {
			c.ArchiveServiceURL = VeribanArchiveProductionURL
		}
	}
	return nil
}
