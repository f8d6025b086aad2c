package rules

import (
	"sort"
	"strings"

	"github.com/pcs-platform/edocs-service/internal/domain"
)

// Header fields required for every submission regardless of port
var alwaysRequiredFields = []string{
	"bnfCode", "locId", "vesselNm", "terminalCode", "service", "pod",
	"cargoTp", "origin", "shipperNm", "bookNo", "cntnrStatus", "formType",
	"viaNo", "mobileNo",
}

// DocumentRequirement is one resolved supporting document
type DocumentRequirement struct {
	Code      string `json:"code"`
	Title     string `json:"title"`
	Mandatory bool   `json:"mandatory"`
}

// Requirements is the output of a resolution run: which header fields are
// required and which supporting documents must be attached.
type Requirements struct {
	requiredFields map[string]bool
	Documents      []DocumentRequirement
}

// FieldRequired reports whether the named header field is required
func (r Requirements) FieldRequired(name string) bool {
	return r.requiredFields[name]
}

// RequiredFields returns the required header field names, sorted
func (r Requirements) RequiredFields() []string {
	fields := make([]string, 0, len(r.requiredFields))
	for f := range r.requiredFields {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// MandatoryDocuments returns only the documents that must be present
func (r Requirements) MandatoryDocuments() []DocumentRequirement {
	var docs []DocumentRequirement
	for _, d := range r.Documents {
		if d.Mandatory {
			docs = append(docs, d)
		}
	}
	return docs
}

// Resolve evaluates the rule tables against a shipment context. It is a
// pure function: the same context always resolves to the same
// requirements, and the context is never mutated.
func Resolve(ctx *domain.ShipmentContext) Requirements {
	req := Requirements{requiredFields: make(map[string]bool)}

	for _, f := range alwaysRequiredFields {
		req.requiredFields[f] = true
	}

	port := strings.TrimSpace(ctx.PortCode)

	if contains(portsConsigneeRequired, port) {
		req.requiredFields["consigneeNm"] = true
		req.requiredFields["consigneeAddr"] = true
		req.requiredFields["cargoDesc"] = true
		req.requiredFields["terminalLoginId"] = true
	}

	if contains(portsFPODRequired, port) {
		req.requiredFields["fpod"] = true
	}

	if port == PortTuticorin && ctx.TerminalCode == TerminalDBGT {
		req.requiredFields["ShipperCity"] = true
	}

	if ctx.BeneficiaryCode == LineHapagLloyd && !strings.EqualFold(ctx.CargoType, domain.CargoReefer) {
		req.requiredFields["bookCopyBlNo"] = true
	}

	if ctx.Origin == domain.OriginCFS || ctx.Origin == domain.OriginFactoryViaCFS {
		req.requiredFields["cfsCode"] = true
	}

	// Booking copy is required at every port, no conditions.
	req.Documents = append(req.Documents, DocumentRequirement{
		Code:      DocBookingCopy,
		Title:     DocumentTitle(DocBookingCopy),
		Mandatory: true,
	})
	seen := map[string]int{DocBookingCopy: 0}

	for _, rule := range documentRules {
		if !contains(rule.Ports, port) {
			continue
		}
		if len(rule.Origins) > 0 && !contains(rule.Origins, ctx.Origin) {
			continue
		}
		if rule.Condition != nil && !rule.Condition(ctx) {
			continue
		}

		// A code fired by more than one rule resolves to a single
		// document; mandatory wins over optional.
		if i, ok := seen[rule.Code]; ok {
			if rule.Mandatory {
				req.Documents[i].Mandatory = true
			}
			continue
		}

		seen[rule.Code] = len(req.Documents)
		req.Documents = append(req.Documents, DocumentRequirement{
			Code:      rule.Code,
			Title:     DocumentTitle(rule.Code),
			Mandatory: rule.Mandatory,
		})
	}

	return req
}
