package rules

// Master data served to clients for form population.

// ContainerSizes are the supported container size codes
var ContainerSizes = []string{"1X20", "1X40", "1X45"}

// CargoTypes are the supported cargo type codes, including the compound
// codes that carry more than one facet
var CargoTypes = []string{
	"GEN", "HAZ", "REF", "ONION", "ODC",
	"ODC(HAZ)", "REF(HAZ)", "FLT", "FLT(HAZ)", "PERISH",
}

// Origins are the supported container origin codes
var Origins = []string{"B", "C", "F", "F_CFS", "W", "R", "E_TANK"}

// VGMMethods are the weighing methods accepted for VGM declarations
var VGMMethods = []string{"M1", "M2"}

// WeightUOMs are the accepted weight units
var WeightUOMs = []string{"KG", "MT"}

// Port describes a port and the terminals operating in it
type Port struct {
	Code      string   `json:"code"`
	Name      string   `json:"name"`
	Terminals []string `json:"terminals"`
}

// Ports is the master port list with their terminals
var Ports = []Port{
	{Code: "INNSA1", Name: "Nhava Sheva", Terminals: []string{"NSICT", "NSIGT", "BMCT", "CCTL", "ICT", "GTI", "JNPCT"}},
	{Code: "INMUN1", Name: "Mundra", Terminals: []string{"AMCT", "CT3", "AICTPL"}},
	{Code: "INMAA1", Name: "Chennai", Terminals: []string{"CCTL", "CITPL"}},
	{Code: "INKAT1", Name: "Kattupalli", Terminals: []string{"KICT"}},
	{Code: "INENN1", Name: "Ennore", Terminals: []string{"ACCT"}},
	{Code: "INTUT1", Name: "Tuticorin", Terminals: []string{"DBGT", "PSA"}},
	{Code: "INCCU1", Name: "Kolkata", Terminals: []string{"KDS", "NSD"}},
	{Code: "INHAL1", Name: "Haldia", Terminals: []string{"HDC"}},
	{Code: "INVTZ1", Name: "Visakhapatnam", Terminals: []string{"VCTPL"}},
	{Code: "INKRI1", Name: "Krishnapatnam", Terminals: []string{"KPCT"}},
	{Code: "INKAK1", Name: "Kakinada", Terminals: []string{"KSPL"}},
	{Code: "INCOK1", Name: "Cochin", Terminals: []string{"ICTT"}},
	{Code: "INNML1", Name: "New Mangalore", Terminals: []string{"NMPT"}},
	{Code: "INMRM1", Name: "Marmagao", Terminals: []string{"MPT"}},
	{Code: "INPAV1", Name: "Pipavav", Terminals: []string{"GPPL"}},
	{Code: "INHZA1", Name: "Hazira", Terminals: []string{"AHCT"}},
	{Code: "INIXY1", Name: "Kandla", Terminals: []string{"KICTPL"}},
	{Code: "INPRT1", Name: "Paradip", Terminals: []string{"PICT"}},
	{Code: "INPAT1", Name: "Patna", Terminals: nil},
}

// IMOClasses are the IMO hazard class codes accepted on HAZ declarations
var IMOClasses = []string{
	"1", "1.1", "1.2", "1.3", "1.4", "1.5", "1.6",
	"2", "2.1", "2.2", "2.3",
	"3", "4.1", "4.2", "4.3",
	"5.1", "5.2", "6.1", "6.2", "7", "8", "9",
}

// TerminalsForPort returns the terminals operating at the given port
func TerminalsForPort(portCode string) []string {
	for _, p := range Ports {
		if p.Code == portCode {
			return p.Terminals
		}
	}
	return nil
}
