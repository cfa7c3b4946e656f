package provider

import (
	"encoding/xml"
	"regexp"
	"strconv"
	"strings"
)

// fileDataTypeZip is the Veriban enum value for a zipped UBL package
const fileDataTypeZip = 2

// The Veriban integration service is a .NET SOAP endpoint on the tempuri.org
// namespace. Requests are built from templates; responses are read by tag
// because the service mixes namespace prefixes between environments and the
// payloads are a handful of scalar fields.

var (
	loginResultPattern        = tagPattern("LoginResult")
	operationCompletedPattern = tagPattern("OperationCompleted")
	transferFileIDPattern     = tagPattern("TransferFileUniqueId")
	descriptionPattern        = tagPattern("Description")
	messagePattern            = tagPattern("Message")
	errorMessagePattern       = tagPattern("ErrorMessage")
	stateCodePattern          = tagPattern("StateCode")
	stateNamePattern          = tagPattern("StateName")
	stateDescriptionPattern   = tagPattern("StateDescription")
	answerStateNamePattern    = tagPattern("AnswerStateName")
	faultStringPattern        = tagPattern("faultstring")
	faultDescriptionPattern   = tagPattern("FaultDescription")
	faultCodePattern          = tagPattern("FaultCode")
	aliasPattern              = tagPattern("Alias")
)

func tagPattern(tag string) *regexp.Regexp {
	return regexp.MustCompile(`(?is)<(?:[a-z0-9]+:)?` + tag + `\b[^>]*>(.*?)</(?:[a-z0-9]+:)?` + tag + `\s*>`)
}

func firstTag(re *regexp.Regexp, body []byte) string {
	m := re.FindSubmatch(body)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(string(m[1]))
}

func xmlEscape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

// ---------------------------------------------------------------------------
// Request envelopes
// ---------------------------------------------------------------------------

const envelopeHeader = `<?xml version="1.0" encoding="utf-8"?>
<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/" xmlns:tem="http://tempuri.org/">
  <soapenv:Header/>
  <soapenv:Body>`

const envelopeFooter = `
  </soapenv:Body>
</soapenv:Envelope>`

func loginEnvelope(username, password string) string {
	var b strings.Builder
	b.WriteString(envelopeHeader)
	b.WriteString(`
    <tem:Login>
      <tem:userName>` + xmlEscape(username) + `</tem:userName>
      <tem:password>` + xmlEscape(password) + `</tem:password>
    </tem:Login>`)
	b.WriteString(envelopeFooter)
	return b.String()
}

func logoutEnvelope(sessionCode string) string {
	var b strings.Builder
	b.WriteString(envelopeHeader)
	b.WriteString(`
    <tem:Logout>
      <tem:sessionCode>` + xmlEscape(sessionCode) + `</tem:sessionCode>
    </tem:Logout>`)
	b.WriteString(envelopeFooter)
	return b.String()
}

// transferFile is the wire shape of one document upload
type transferFile struct {
	FileName           string
	BinaryData         string // base64 of the zipped UBL package
	BinaryDataHash     string // md5 hex of the raw bytes
	CustomerAlias      string
	IsDirectSend       bool
	NotifyAddresses    []string // e-archive delivery mail targets
	TransportationType string   // e-archive delivery mode enum
}

func transferInvoiceEnvelope(sessionCode string, file transferFile) string {
	var b strings.Builder
	b.WriteString(envelopeHeader)
	b.WriteString(`
    <tem:TransferSalesInvoiceFile>
      <tem:sessionCode>` + xmlEscape(sessionCode) + `</tem:sessionCode>
      <tem:transferFile>
        <tem:FileNameWithExtension>` + xmlEscape(file.FileName) + `</tem:FileNameWithExtension>
        <tem:FileDataType>` + strconv.Itoa(fileDataTypeZip) + `</tem:FileDataType>
        <tem:BinaryData>` + file.BinaryData + `</tem:BinaryData>
        <tem:BinaryDataHash>` + xmlEscape(file.BinaryDataHash) + `</tem:BinaryDataHash>
        <tem:CustomerAlias>` + xmlEscape(file.CustomerAlias) + `</tem:CustomerAlias>
        <tem:IsDirectSend>` + strconv.FormatBool(file.IsDirectSend) + `</tem:IsDirectSend>
      </tem:transferFile>
    </tem:TransferSalesInvoiceFile>`)
	b.WriteString(envelopeFooter)
	return b.String()
}

func transferArchiveEnvelope(sessionCode string, file transferFile) string {
	var extras strings.Builder
	if len(file.NotifyAddresses) > 0 {
		extras.WriteString(`
        <tem:ReceiverMailTargetAddresses>`)
		for _, mail := range file.NotifyAddresses {
			extras.WriteString(`
          <tem:string>` + xmlEscape(mail) + `</tem:string>`)
		}
		extras.WriteString(`
        </tem:ReceiverMailTargetAddresses>`)
	}

	var b strings.Builder
	b.WriteString(envelopeHeader)
	b.WriteString(`
    <tem:TransferSalesInvoiceFile>
      <tem:sessionCode>` + xmlEscape(sessionCode) + `</tem:sessionCode>
      <tem:transferFile>
        <tem:FileDataType>` + strconv.Itoa(fileDataTypeZip) + `</tem:FileDataType>
        <tem:FileNameWithExtension>` + xmlEscape(file.FileName) + `</tem:FileNameWithExtension>
        <tem:BinaryData>` + file.BinaryData + `</tem:BinaryData>
        <tem:BinaryDataHash>` + xmlEscape(file.BinaryDataHash) + `</tem:BinaryDataHash>
        <tem:InvoiceTransportationType>` + xmlEscape(file.TransportationType) + `</tem:InvoiceTransportationType>` + extras.String() + `
      </tem:transferFile>
    </tem:TransferSalesInvoiceFile>`)
	b.WriteString(envelopeFooter)
	return b.String()
}

func transferStatusEnvelope(sessionCode, transferFileUniqueID string) string {
	var b strings.Builder
	b.WriteString(envelopeHeader)
	b.WriteString(`
    <tem:GetTransferSalesInvoiceFileStatus>
      <tem:sessionCode>` + xmlEscape(sessionCode) + `</tem:sessionCode>
      <tem:transferFileUniqueId>` + xmlEscape(transferFileUniqueID) + `</tem:transferFileUniqueId>
    </tem:GetTransferSalesInvoiceFileStatus>`)
	b.WriteString(envelopeFooter)
	return b.String()
}

func aliasListEnvelope(sessionCode, registerNumber string) string {
	var b strings.Builder
	b.WriteString(envelopeHeader)
	b.WriteString(`
    <tem:GetCustomerAliasListWithRegisterNumber>
      <tem:sessionCode>` + xmlEscape(sessionCode) + `</tem:sessionCode>
      <tem:customerRegisterNumber>` + xmlEscape(registerNumber) + `</tem:customerRegisterNumber>
    </tem:GetCustomerAliasListWithRegisterNumber>`)
	b.WriteString(envelopeFooter)
	return b.String()
}

// ---------------------------------------------------------------------------
// Response parsing
// ---------------------------------------------------------------------------

// soapFault is a parsed SOAP fault or service-level failure
type soapFault struct {
	Code    string
	Message string
}

// isSessionFault reports whether the fault means the session code was
// rejected. Veriban faults in Turkish, so both languages are checked.
func (f *soapFault) isSessionFault() bool {
	msg := strings.ToLower(f.Message)
	return strings.Contains(msg, "session") || strings.Contains(msg, "oturum")
}

// parseFault extracts a SOAP fault from a response body, nil when the body
// carries no fault.
func parseFault(body []byte) *soapFault {
	if msg := firstTag(faultStringPattern, body); msg != "" {
		return &soapFault{Code: firstTag(faultCodePattern, body), Message: msg}
	}
	if msg := firstTag(faultDescriptionPattern, body); msg != "" {
		return &soapFault{Code: firstTag(faultCodePattern, body), Message: msg}
	}
	return nil
}

// parseLoginReply returns the session code issued by Login
func parseLoginReply(body []byte) string {
	return firstTag(loginResultPattern, body)
}

// transferReply is the parsed answer to a transfer upload
type transferReply struct {
	OperationCompleted   bool
	TransferFileUniqueID string
	Description          string
}

func parseTransferReply(body []byte) transferReply {
	reply := transferReply{
		OperationCompleted:   strings.EqualFold(firstTag(operationCompletedPattern, body), "true"),
		TransferFileUniqueID: firstTag(transferFileIDPattern, body),
	}
	for _, re := range []*regexp.Regexp{errorMessagePattern, messagePattern, descriptionPattern} {
		if v := firstTag(re, body); v != "" {
			reply.Description = v
			break
		}
	}
	return reply
}

// statusReply is the parsed answer to a transfer status query
type statusReply struct {
	StateCode       int
	StateName       string
	Description     string
	AnswerStateName string
}

func parseStatusReply(body []byte) statusReply {
	code, _ := strconv.Atoi(firstTag(stateCodePattern, body))
	return statusReply{
		StateCode:       code,
		StateName:       firstTag(stateNamePattern, body),
		Description:     firstTag(stateDescriptionPattern, body),
		AnswerStateName: firstTag(answerStateNamePattern, body),
	}
}

// countAliases counts registered mailbox aliases in an alias list response
func countAliases(body []byte) int {
	return len(aliasPattern.FindAllSubmatch(body, -1))
}
