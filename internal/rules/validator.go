package rules

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pcs-platform/edocs-service/internal/domain"
)

var (
	containerNoPattern = regexp.MustCompile(`^[A-Z]{4}\d{7}$`)
	mobileNoPattern    = regexp.MustCompile(`^\d{10,12}$`)
	panPattern         = regexp.MustCompile(`^[A-Z]{5}\d{4}[A-Z]{1}$`)
	iecPattern         = regexp.MustCompile(`^\d{10}$`)
)

// MaxVGMWeightMT is the upper bound for a VGM declaration in metric tons
const MaxVGMWeightMT = 999.99

const vgmWeightExceededMessage = "VGM Weight exceeds maximum allowed (999.99 MT). " +
	"Please enter weight in Metric Tons (e.g., 25.50 instead of 25500)."

// Human-readable labels for header fields used in error messages
var fieldLabels = map[string]string{
	"bnfCode":         "Shipping Line",
	"locId":           "Port",
	"vesselNm":        "Vessel Name",
	"terminalCode":    "Terminal",
	"service":         "Service",
	"pod":             "Port of Discharge",
	"fpod":            "Final Port of Discharge",
	"cargoTp":         "Cargo Type",
	"origin":          "Origin",
	"shipperNm":       "Shipper Name",
	"bookNo":          "Booking Number",
	"cntnrStatus":     "Container Status",
	"formType":        "Form Type",
	"viaNo":           "VIA Number",
	"mobileNo":        "Mobile Number",
	"consigneeNm":     "Consignee Name",
	"consigneeAddr":   "Consignee Address",
	"cargoDesc":       "Cargo Description",
	"terminalLoginId": "Terminal Login ID",
	"ShipperCity":     "Shipper City",
	"bookCopyBlNo":    "Booking Copy BL Number",
	"cfsCode":         "CFS Code",
}

// Validate runs the complete rule set against a shipment context and
// returns every violation keyed by field. An empty map means the context
// is ready for submission.
func Validate(ctx *domain.ShipmentContext) domain.ValidationErrorMap {
	errs := make(domain.ValidationErrorMap)
	req := Resolve(ctx)

	validateHeaderFields(ctx, req, errs)
	validateCHAParties(ctx, errs)
	validateContainers(ctx, errs)
	validateShippingBills(ctx, errs)
	validateAttachments(ctx, req, errs)

	return errs
}

func validateHeaderFields(ctx *domain.ShipmentContext, req Requirements, errs domain.ValidationErrorMap) {
	for _, field := range req.RequiredFields() {
		if headerValue(ctx, field) == "" {
			errs.Add(field, fmt.Sprintf("%s is required", labelFor(field)))
		}
	}

	if mobile := strings.Join(strings.Fields(ctx.MobileNo), ""); mobile != "" {
		if !mobileNoPattern.MatchString(mobile) {
			errs.Add("mobileNo", "Mobile number must be 10 to 12 digits")
		}
	}
}

// validateCHAParties enforces the Nhava Sheva party rule: at least one of
// CHA, freight forwarder or importer-exporter code must identify the
// requesting party. A single error is reported on CHACode.
func validateCHAParties(ctx *domain.ShipmentContext, errs domain.ValidationErrorMap) {
	if strings.TrimSpace(ctx.PortCode) != PortNhavaSheva {
		return
	}

	if strings.TrimSpace(ctx.CHACode) == "" &&
		strings.TrimSpace(ctx.FFCode) == "" &&
		strings.TrimSpace(ctx.IECode) == "" {
		errs.Add("CHACode", "One of CHA Code, FF Code, or IE Code is required for Nhavasheva")
	}
}

func validateContainers(ctx *domain.ShipmentContext, errs domain.ValidationErrorMap) {
	port := strings.TrimSpace(ctx.PortCode)
	specialStowRequired := port == PortNhavaSheva && contains(nhavaShevaSpecialStowTerminals, ctx.TerminalCode)
	vehicleRequired := port == PortMundra &&
		(ctx.Origin == domain.OriginFactory || ctx.Origin == domain.OriginRail)
	shippingInstructionRequired := ctx.BeneficiaryCode == LineMSC

	for i, c := range ctx.Containers {
		key := func(field string) string { return fmt.Sprintf("container_%d_%s", i, field) }

		cntnrNo := strings.TrimSpace(c.ContainerNo)
		if cntnrNo == "" {
			errs.Add(key("cntnrNo"), "Container number is required")
		} else if !containerNoPattern.MatchString(cntnrNo) {
			errs.Add(key("cntnrNo"), "Container number must be 4 letters followed by 7 digits")
		}

		requireContainerField(errs, key("cntnrSize"), c.Size, "Container size is required")
		requireContainerField(errs, key("iso"), c.ISOCode, "ISO code is required")

		if vehicleRequired {
			requireContainerField(errs, key("vehicleNo"), c.VehicleNo, "Vehicle number is required for Mundra")
		}

		if c.HasManualVGM() {
			validateVGMWeight(errs, key("vgmWt"), c.VGMWeight)
		}

		if ctx.IsHazardous() {
			requireContainerField(errs, key("imoNo1"), c.IMONo1, "IMO number is required for hazardous cargo")
			requireContainerField(errs, key("unNo1"), c.UNNo1, "UN number is required for hazardous cargo")
		}

		if ctx.IsReefer() {
			temp := strings.TrimSpace(c.Temperature)
			if temp == "" || temp == "0" {
				errs.Add(key("temp"), "Temperature is required for reefer cargo")
			}
		}

		if ctx.IsOverDimension() {
			validateDimension(errs, key("rightDimensions"), c.RightDim, "Right")
			validateDimension(errs, key("topDimensions"), c.TopDim, "Top")
			validateDimension(errs, key("backDimensions"), c.BackDim, "Back")
			validateDimension(errs, key("leftDimensions"), c.LeftDim, "Left")
			validateDimension(errs, key("frontDimensions"), c.FrontDim, "Front")
			requireContainerField(errs, key("odcUnits"), c.ODCUnits, "Dimension units are required for ODC cargo")
		}

		if specialStowRequired {
			requireContainerField(errs, key("spclStow"), c.SpecialStow, "Special stowage is required for this terminal")
			requireContainerField(errs, key("spclStowRemark"), c.SpecialStowRemark, "Special stowage remark is required for this terminal")
		}

		if shippingInstructionRequired {
			requireContainerField(errs, key("shpInstructNo"), c.ShippingInstructionNo, "Shipping instruction number is required for MSC")
		}
	}
}

func validateVGMWeight(errs domain.ValidationErrorMap, key, weight string) {
	w := strings.TrimSpace(weight)
	if w == "" {
		errs.Add(key, "VGM weight is required when VGM is not declared via the portal")
		return
	}

	value, err := strconv.ParseFloat(w, 64)
	if err != nil {
		errs.Add(key, "VGM weight must be numeric")
		return
	}

	if value > MaxVGMWeightMT {
		errs.Add(key, vgmWeightExceededMessage)
	}
}

func validateDimension(errs domain.ValidationErrorMap, key, value, side string) {
	v := strings.TrimSpace(value)
	if v == "" || v == "0.00" {
		errs.Add(key, fmt.Sprintf("%s dimension is required for ODC cargo", side))
	}
}

// validateShippingBills enforces the customs details on the first shipping
// bill row, which carries the export declaration.
func validateShippingBills(ctx *domain.ShipmentContext, errs domain.ValidationErrorMap) {
	if len(ctx.ShippingBills) == 0 {
		errs.Add("shipBillInvNo", "Shipping bill details are required")
		return
	}

	sb := ctx.ShippingBills[0]

	if strings.TrimSpace(sb.ShipBillInvNo) == "" {
		errs.Add("shipBillInvNo", "Shipping bill invoice number is required")
	}
	if strings.TrimSpace(sb.ShipBillDate) == "" {
		errs.Add("shipBillDt", "Shipping bill date is required")
	}
	if strings.TrimSpace(sb.CHAName) == "" {
		errs.Add("chaNm", "CHA name is required")
	}

	pan := strings.TrimSpace(sb.CHAPan)
	if pan == "" {
		errs.Add("chaPan", "CHA PAN is required")
	} else if !panPattern.MatchString(pan) {
		errs.Add("chaPan", "CHA PAN must be a valid PAN (e.g., ABCDE1234F)")
	}

	if strings.TrimSpace(sb.ExporterName) == "" {
		errs.Add("exporterNm", "Exporter name is required")
	}

	iec := strings.TrimSpace(sb.ExporterIEC)
	if iec == "" {
		errs.Add("exporterIec", "Exporter IEC is required")
	} else if !iecPattern.MatchString(iec) {
		errs.Add("exporterIec", "Exporter IEC must be 10 digits")
	}

	pkgs := strings.TrimSpace(sb.NoOfPackages)
	if n, err := strconv.Atoi(pkgs); err != nil || n <= 0 {
		errs.Add("noOfPkg", "Number of packages must be greater than zero")
	}

	if strings.TrimSpace(sb.LEONo) != "" && strings.TrimSpace(sb.LEODate) == "" {
		errs.Add("leoDt", "LEO date is required when LEO number is provided")
	}
}

func validateAttachments(ctx *domain.ShipmentContext, req Requirements, errs domain.ValidationErrorMap) {
	for _, doc := range req.MandatoryDocuments() {
		if !ctx.HasAttachment(AcceptedCodes(doc.Code)...) {
			errs.Add("attachment_"+doc.Code, fmt.Sprintf("%s is required", doc.Title))
		}
	}
}

func requireContainerField(errs domain.ValidationErrorMap, key, value, message string) {
	if strings.TrimSpace(value) == "" {
		errs.Add(key, message)
	}
}

func labelFor(field string) string {
	if label, ok := fieldLabels[field]; ok {
		return label
	}
	return field
}

func headerValue(ctx *domain.ShipmentContext, field string) string {
	var v string
	switch field {
	case "bnfCode":
		v = ctx.BeneficiaryCode
	case "locId":
		v = ctx.PortCode
	case "vesselNm":
		v = ctx.VesselName
	case "terminalCode":
		v = ctx.TerminalCode
	case "service":
		v = ctx.Service
	case "pod":
		v = ctx.POD
	case "fpod":
		v = ctx.FPOD
	case "cargoTp":
		v = ctx.CargoType
	case "origin":
		v = ctx.Origin
	case "shipperNm":
		v = ctx.ShipperName
	case "ShipperCity":
		v = ctx.ShipperCity
	case "bookNo":
		v = ctx.BookingNo
	case "cntnrStatus":
		v = ctx.ContainerStatus
	case "formType":
		v = ctx.FormType
	case "viaNo":
		v = ctx.ViaNo
	case "mobileNo":
		v = ctx.MobileNo
	case "consigneeNm":
		v = ctx.ConsigneeName
	case "consigneeAddr":
		v = ctx.ConsigneeAddress
	case "cargoDesc":
		v = ctx.CargoDescription
	case "terminalLoginId":
		v = ctx.TerminalLoginID
	case "bookCopyBlNo":
		v = ctx.BookCopyBLNo
	case "cfsCode":
		v = ctx.CFSCode
	}
	return strings.TrimSpace(v)
}
