package domain

import "strings"

// Module names scope submissions of different e-doc types
const (
	ModuleVGM    = "VGM_SUBMISSION"
	ModuleForm13 = "FORM13_SUBMISSION"
)

// Cargo facets. Cargo type is a free-form code that may carry several
// facets at once (e.g. "HAZ-ODC"), so checks are substring based.
const (
	CargoGeneral      = "GEN"
	CargoHazardous    = "HAZ"
	CargoReefer       = "REF"
	CargoOnion        = "ONION"
	CargoOverDimension = "ODC"
)

// Container origin codes
const (
	OriginBuffer        = "B"
	OriginCFS           = "C"
	OriginFactory       = "F"
	OriginFactoryViaCFS = "F_CFS"
	OriginWarehouse     = "W"
	OriginRail          = "R"
	OriginTankEmpty     = "E_TANK"
)

// Container holds the per-container details of a gate-pass or VGM request
type Container struct {
	ContainerNo    string `json:"cntnrNo" bson:"cntnrNo"`
	Size           string `json:"cntnrSize" bson:"cntnrSize"`
	ISOCode        string `json:"iso" bson:"iso"`
	AgentSealNo    string `json:"agentSealNo" bson:"agentSealNo"`
	CustomSealNo   string `json:"customSealNo" bson:"customSealNo"`
	DriverName     string `json:"driverNm" bson:"driverNm"`
	VehicleNo      string `json:"vehicleNo,omitempty" bson:"vehicleNo,omitempty"`
	VGMViaPortal   string `json:"vgmViaODeX" bson:"vgmViaODeX"` // "Y" or "N"
	VGMWeight      string `json:"vgmWt,omitempty" bson:"vgmWt,omitempty"`
	VGMMethod      string `json:"vgmMethod,omitempty" bson:"vgmMethod,omitempty"` // M1 or M2
	WeightUOM      string `json:"weightUom,omitempty" bson:"weightUom,omitempty"`
	IMONo1         string `json:"imoNo1,omitempty" bson:"imoNo1,omitempty"`
	UNNo1          string `json:"unNo1,omitempty" bson:"unNo1,omitempty"`
	Temperature    string `json:"temp,omitempty" bson:"temp,omitempty"`
	RightDim       string `json:"rightDimensions,omitempty" bson:"rightDimensions,omitempty"`
	TopDim         string `json:"topDimensions,omitempty" bson:"topDimensions,omitempty"`
	BackDim        string `json:"backDimensions,omitempty" bson:"backDimensions,omitempty"`
	LeftDim        string `json:"leftDimensions,omitempty" bson:"leftDimensions,omitempty"`
	FrontDim       string `json:"frontDimensions,omitempty" bson:"frontDimensions,omitempty"`
	ODCUnits       string `json:"odcUnits,omitempty" bson:"odcUnits,omitempty"`
	SpecialStow    string `json:"spclStow,omitempty" bson:"spclStow,omitempty"`
	SpecialStowRemark string `json:"spclStowRemark,omitempty" bson:"spclStowRemark,omitempty"`
	ShippingInstructionNo string `json:"shpInstructNo,omitempty" bson:"shpInstructNo,omitempty"`
}

// HasManualVGM reports whether the container's VGM is declared outside the portal
func (c Container) HasManualVGM() bool {
	return strings.EqualFold(strings.TrimSpace(c.VGMViaPortal), "N")
}

// ShippingBillDetail is one customs shipping bill row attached to the request
type ShippingBillDetail struct {
	ShipBillInvNo string `json:"shipBillInvNo" bson:"shipBillInvNo"`
	ShipBillDate  string `json:"shipBillDt" bson:"shipBillDt"`
	CHAName       string `json:"chaNm" bson:"chaNm"`
	CHAPan        string `json:"chaPan" bson:"chaPan"`
	ExporterName  string `json:"exporterNm" bson:"exporterNm"`
	ExporterIEC   string `json:"exporterIec" bson:"exporterIec"`
	NoOfPackages  string `json:"noOfPkg" bson:"noOfPkg"`
	LEONo         string `json:"leoNo,omitempty" bson:"leoNo,omitempty"`
	LEODate       string `json:"leoDt,omitempty" bson:"leoDt,omitempty"`
}

// Attachment is an uploaded supporting document. Older clients populate
// AttTitle instead of Title, so both are matched against document codes.
type Attachment struct {
	Title    string `json:"title,omitempty" bson:"title,omitempty"`
	AttTitle string `json:"attTitle,omitempty" bson:"attTitle,omitempty"`
	FileName string `json:"fileName,omitempty" bson:"fileName,omitempty"`
	Content  string `json:"content,omitempty" bson:"content,omitempty"`
}

// Matches reports whether the attachment satisfies the given document code
func (a Attachment) Matches(code string) bool {
	return a.Title == code || a.AttTitle == code
}

// ShipmentContext is the full submission context a requirement resolution
// and validation run against: header fields, containers, shipping bills
// and uploaded attachments.
type ShipmentContext struct {
	BeneficiaryCode string `json:"bnfCode" bson:"bnfCode"` // shipping line
	PortCode        string `json:"locId" bson:"locId"`
	VesselName      string `json:"vesselNm" bson:"vesselNm"`
	ViaNo           string `json:"viaNo" bson:"viaNo"`
	TerminalCode    string `json:"terminalCode" bson:"terminalCode"`
	Service         string `json:"service" bson:"service"`
	POD             string `json:"pod" bson:"pod"`
	FPOD            string `json:"fpod,omitempty" bson:"fpod,omitempty"`
	CargoType       string `json:"cargoTp" bson:"cargoTp"`
	Origin          string `json:"origin" bson:"origin"`
	ShipperName     string `json:"shipperNm" bson:"shipperNm"`
	ShipperCity     string `json:"shipperCity,omitempty" bson:"shipperCity,omitempty"`
	BookingNo       string `json:"bookNo" bson:"bookNo"`
	ContainerStatus string `json:"cntnrStatus" bson:"cntnrStatus"`
	FormType        string `json:"formType" bson:"formType"`
	MobileNo        string `json:"mobileNo,omitempty" bson:"mobileNo,omitempty"`

	ConsigneeName    string `json:"consigneeNm,omitempty" bson:"consigneeNm,omitempty"`
	ConsigneeAddress string `json:"consigneeAddr,omitempty" bson:"consigneeAddr,omitempty"`
	CargoDescription string `json:"cargoDesc,omitempty" bson:"cargoDesc,omitempty"`
	TerminalLoginID  string `json:"terminalLoginId,omitempty" bson:"terminalLoginId,omitempty"`

	CHACode string `json:"CHACode,omitempty" bson:"CHACode,omitempty"`
	FFCode  string `json:"FFCode,omitempty" bson:"FFCode,omitempty"`
	IECode  string `json:"IECode,omitempty" bson:"IECode,omitempty"`

	BookCopyBLNo string `json:"bookCopyBlNo,omitempty" bson:"bookCopyBlNo,omitempty"`
	CFSCode      string `json:"cfsCode,omitempty" bson:"cfsCode,omitempty"`

	Containers    []Container          `json:"containerDtls" bson:"containerDtls"`
	ShippingBills []ShippingBillDetail `json:"sbDtlsVo" bson:"sbDtlsVo"`
	Attachments   []Attachment         `json:"attachments" bson:"attachments"`
}

// HasCargoFacet reports whether the cargo type carries the given facet.
// The cargo code may combine facets, so this is a substring check.
func (s *ShipmentContext) HasCargoFacet(facet string) bool {
	return strings.Contains(strings.ToUpper(s.CargoType), facet)
}

// IsHazardous reports whether any hazardous facet applies
func (s *ShipmentContext) IsHazardous() bool {
	return s.HasCargoFacet(CargoHazardous)
}

// IsOverDimension reports whether the ODC facet applies
func (s *ShipmentContext) IsOverDimension() bool {
	return s.HasCargoFacet(CargoOverDimension)
}

// IsReefer reports whether the reefer facet applies
func (s *ShipmentContext) IsReefer() bool {
	return s.HasCargoFacet(CargoReefer)
}

// HasManualVGMContainer reports whether any container declares VGM outside the portal
func (s *ShipmentContext) HasManualVGMContainer() bool {
	for _, c := range s.Containers {
		if c.HasManualVGM() {
			return true
		}
	}
	return false
}

// HasAttachment reports whether an uploaded attachment satisfies any of the codes
func (s *ShipmentContext) HasAttachment(codes ...string) bool {
	for _, att := range s.Attachments {
		for _, code := range codes {
			if att.Matches(code) {
				return true
			}
		}
	}
	return false
}

// ValidationErrorMap maps field keys to human-readable messages. Container
// errors are keyed container_<idx>_<field>, attachment errors attachment_<code>.
type ValidationErrorMap map[string]string

// Valid reports whether the map holds no errors
func (m ValidationErrorMap) Valid() bool {
	return len(m) == 0
}

// Add records an error for a field unless one is already present
func (m ValidationErrorMap) Add(field, message string) {
	if _, exists := m[field]; !exists {
		m[field] = message
	}
}
