package rules

import "github.com/pcs-platform/edocs-service/internal/domain"

// Port groups. Membership in these lists is what switches most document
// and field requirements on or off.
var (
	// portsListA covers the major gateway ports on the standard ruleset
	portsListA = []string{
		"INNSA1", "INMUN1", "INNML1", "INTUT1", "INCCU1", "INPAV1",
		"INHZA1", "INMRM1", "INCOK1", "INVTZ1", "INHAL1", "INKRI1", "INIXY1",
	}

	// portsChennaiGroup carries extra documentary requirements
	portsChennaiGroup = []string{"INMAA1", "INKAT1", "INENN1"}

	// portsVGM is every port where VGM declarations are accepted
	portsVGM = concat(portsListA, portsChennaiGroup, []string{"INPRT1", "INKAK1"})

	// portsInvoiceAndDO requires commercial invoice / delivery order documents
	portsInvoiceAndDO = concat(portsListA, []string{"INMAA1"})

	// portsDG requires the dangerous goods declaration
	portsDG = concat(portsListA, []string{"INMAA1", "INKAT1"})
)

// Ports where consignee and cargo description details are mandatory
var portsConsigneeRequired = []string{"INMAA1", "INPRT1", "INKAT1", "INCCU1", "INENN1", "INMUN1"}

// Ports where the final port of discharge is mandatory
var portsFPODRequired = []string{"INMAA1", "INPRT1", "INKAT1", "INCCU1", "INENN1"}

// Nhava Sheva terminals that demand special stowage instructions
var nhavaShevaSpecialStowTerminals = []string{"NSICT", "NSIGT", "BMCT", "CCTL", "ICT"}

// Well-known port and party codes referenced by individual rules
const (
	PortNhavaSheva = "INNSA1"
	PortTuticorin  = "INTUT1"
	PortMundra     = "INMUN1"
	PortChennai    = "INMAA1"
	PortVizag      = "INVTZ1"

	TerminalDBGT = "DBGT"

	LineHapagLloyd = "Hapag Llyod"
	LineMSC        = "MSCU"
)

// Document codes
const (
	DocBookingCopy        = "BOOKING_COPY"
	DocPreEGM             = "PRE_EGM"
	DocShipBill           = "SHIP_BILL"
	DocShippingInstruction = "SHIPPING_INSTRUCTION"
	DocSurveyReport       = "SURVY_RPRT"
	DocVGMAnnexure1       = "VGM_ANXR1"
	DocMSDS               = "MSDS"
	DocMSDSSheet          = "MSDS_SHEET"
	DocODCSurveyorPhotos  = "ODC_SURVEYOR_REPORT_PHOTOS"
	DocPackingList        = "PACK_LIST"
	DocHazDGDeclaration   = "HAZ_DG_DECLARATION"
	DocInvoice            = "INVOICE"
	DocLashingCertificate = "LASHING_CERTIFICATE"
	DocMMDApproval        = "MMD_APPRVL"
	DocCustomsExamReport  = "CUSTOMS_EXAM_REPORT"
	DocDGDeclaration      = "DG_DCLRTION"
	DocDeliveryOrder      = "DLVRY_ORDER"
	DocFireOfficeCert     = "FIRE_OFC_CRTFCT"
	DocBookConfirmCopy    = "BOOK_CNFRM_CPY"
	DocBookingConfCopy    = "BOOKING_CONF_COPY"
	DocCheckList          = "CHK_LIST"
	DocCleanCertificate   = "CLN_CRTFCT"
	DocContainerLoadPlan  = "CNTNR_LOAD_PLAN"
)

// documentTitles maps codes to their display titles
var documentTitles = map[string]string{
	DocBookingCopy:        "Booking Copy",
	DocPreEGM:             "Pre-EGM Copy",
	DocShipBill:           "Shipping Bill",
	DocShippingInstruction: "Shipping Instruction",
	DocSurveyReport:       "Survey Report",
	DocVGMAnnexure1:       "VGM Annexure-1",
	DocMSDS:               "MSDS",
	DocMSDSSheet:          "MSDS Sheet",
	DocODCSurveyorPhotos:  "ODC Surveyor Report with Photos",
	DocPackingList:        "Packing List",
	DocHazDGDeclaration:   "HAZ DG Declaration",
	DocInvoice:            "Invoice",
	DocLashingCertificate: "Lashing Certificate",
	DocMMDApproval:        "MMD Approval",
	DocCustomsExamReport:  "Customs Examination Report",
	DocDGDeclaration:      "DG Declaration",
	DocDeliveryOrder:      "Delivery Order",
	DocFireOfficeCert:     "Fire Office Certificate",
	DocBookConfirmCopy:    "Booking Confirmation Copy",
	DocBookingConfCopy:    "Booking Confirmation Copy",
	DocCheckList:          "Check List",
	DocCleanCertificate:   "Cleaning Certificate",
	DocContainerLoadPlan:  "Container Load Plan",
}

// documentAliases maps a canonical code to legacy spellings still sent by
// older clients. Attachment matching accepts either.
var documentAliases = map[string][]string{
	DocPackingList:     {"PCKNG_LST"},
	DocBookConfirmCopy: {DocBookingConfCopy},
	DocBookingConfCopy: {DocBookConfirmCopy},
}

// DocumentRule describes when one supporting document becomes required.
// A rule fires when the port matches, the origin matches (empty = any
// origin) and the condition holds (nil = always).
type DocumentRule struct {
	Code      string
	Ports     []string
	Origins   []string
	Condition func(*domain.ShipmentContext) bool
	Mandatory bool
}

// documentRules is the full conditional attachment matrix. BOOKING_COPY
// is handled separately by the resolver since it applies everywhere.
var documentRules = []DocumentRule{
	{
		Code:      DocPreEGM,
		Ports:     []string{PortChennai},
		Mandatory: false,
	},
	{
		Code:      DocShipBill,
		Ports:     portsListA,
		Origins:   []string{domain.OriginCFS, domain.OriginFactory, domain.OriginWarehouse, domain.OriginTankEmpty},
		Mandatory: true,
	},
	{
		Code:      DocShippingInstruction,
		Ports:     []string{PortVizag},
		Origins:   []string{domain.OriginCFS, domain.OriginFactory, domain.OriginWarehouse, domain.OriginTankEmpty},
		Mandatory: true,
	},
	{
		Code:      DocSurveyReport,
		Ports:     portsChennaiGroup,
		Condition: hazardousOrOverDimension,
		Mandatory: true,
	},
	{
		Code:    DocVGMAnnexure1,
		Ports:   portsVGM,
		Origins: []string{domain.OriginBuffer, domain.OriginCFS, domain.OriginFactory, domain.OriginWarehouse, domain.OriginTankEmpty},
		Condition: func(ctx *domain.ShipmentContext) bool {
			return ctx.HasManualVGMContainer()
		},
		Mandatory: true,
	},
	{
		Code:      DocMSDS,
		Ports:     portsVGM,
		Condition: hazardousOrOverDimension,
		Mandatory: true,
	},
	{
		Code:      DocMSDSSheet,
		Ports:     portsChennaiGroup,
		Condition: hazardousOrOverDimension,
		Mandatory: true,
	},
	{
		Code:      DocODCSurveyorPhotos,
		Ports:     portsVGM,
		Condition: hazardousOrOverDimension,
		Mandatory: true,
	},
	{
		Code:      DocPackingList,
		Ports:     portsListA,
		Origins:   []string{domain.OriginFactory},
		Mandatory: true,
	},
	{
		Code:      DocHazDGDeclaration,
		Ports:     portsVGM,
		Condition: hazardousOrOverDimension,
		Mandatory: true,
	},
	{
		Code:      DocInvoice,
		Ports:     portsInvoiceAndDO,
		Origins:   []string{domain.OriginFactory, domain.OriginTankEmpty},
		Mandatory: true,
	},
	{
		Code:      DocLashingCertificate,
		Ports:     portsVGM,
		Condition: hazardousOrOverDimension,
		Mandatory: true,
	},
	{
		Code:      DocMMDApproval,
		Ports:     portsChennaiGroup,
		Condition: hazardousOrOverDimension,
		Mandatory: true,
	},
	{
		Code:      DocCustomsExamReport,
		Ports:     portsListA,
		Origins:   []string{domain.OriginWarehouse},
		Mandatory: true,
	},
	{
		Code:      DocDGDeclaration,
		Ports:     portsDG,
		Condition: hazardousOrOverDimension,
		Mandatory: true,
	},
	{
		Code:      DocDeliveryOrder,
		Ports:     portsInvoiceAndDO,
		Origins:   []string{domain.OriginBuffer, domain.OriginFactory, domain.OriginCFS, domain.OriginWarehouse, domain.OriginTankEmpty},
		Mandatory: true,
	},
	{
		Code:      DocFireOfficeCert,
		Ports:     portsChennaiGroup,
		Condition: hazardousOrOverDimension,
		Mandatory: true,
	},
	{
		Code:      DocBookConfirmCopy,
		Ports:     portsChennaiGroup,
		Condition: anyKnownFacet,
		Mandatory: true,
	},
	{
		Code:      DocBookingConfCopy,
		Ports:     []string{PortVizag},
		Origins:   []string{domain.OriginCFS, domain.OriginFactory, domain.OriginWarehouse, domain.OriginTankEmpty},
		Mandatory: true,
	},
	{
		Code:      DocCheckList,
		Ports:     portsChennaiGroup,
		Condition: anyKnownFacet,
		Mandatory: true,
	},
	{
		Code:  DocCleanCertificate,
		Ports: portsListA,
		Condition: func(ctx *domain.ShipmentContext) bool {
			return ctx.IsHazardous() && ctx.ContainerStatus == "EMPTY"
		},
		Mandatory: true,
	},
	{
		Code:      DocContainerLoadPlan,
		Ports:     portsListA,
		Origins:   []string{domain.OriginBuffer, domain.OriginCFS},
		Mandatory: true,
	},
}

func hazardousOrOverDimension(ctx *domain.ShipmentContext) bool {
	return ctx.IsHazardous() || ctx.IsOverDimension()
}

func anyKnownFacet(ctx *domain.ShipmentContext) bool {
	for _, facet := range []string{
		domain.CargoHazardous, domain.CargoOverDimension, domain.CargoGeneral,
		domain.CargoOnion, domain.CargoReefer,
	} {
		if ctx.HasCargoFacet(facet) {
			return true
		}
	}
	return false
}

// DocumentTitle returns the display title for a document code
func DocumentTitle(code string) string {
	if title, ok := documentTitles[code]; ok {
		return title
	}
	return code
}

// AcceptedCodes returns the code plus its legacy aliases
func AcceptedCodes(code string) []string {
	return append([]string{code}, documentAliases[code]...)
}

// PortAcceptsVGM reports whether VGM declarations are accepted at the port
func PortAcceptsVGM(portCode string) bool {
	return contains(portsVGM, portCode)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func concat(lists ...[]string) []string {
	var out []string
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}
