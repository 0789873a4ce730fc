package dut

import "regexp"

// rule is one entry of a field's cascade. The first capture group holds the
// value. Rules are tried in slice order, so more specific layouts go first.
type rule struct {
	Name    string
	Pattern *regexp.Regexp
}

func newRule(name, expr string) rule {
	return rule{Name: name, Pattern: regexp.MustCompile(expr)}
}

var documentNumberRules = []rule{
	newRule("dte", `(?i)DT-e\s*N[°º]?\s*(\d+[\w-]*)`),
	newRule("dte-dut", `(?i)DTe\s*-\s*DUT\s*N[°º]?\s*(\d+[\w-]*)`),
	newRule("dut", `(?i)DUT\s*N[°º]?\s*(\d+[\w-]*)`),
	newRule("numero-de-dut", `(?i)N[°º]?\s*de\s*DUT:\s*(\d+)`),
	newRule("nro-de-dut", `(?i)Nro\.?\s*de\s*DUT:\s*(\d+)`),
	newRule("leading-zero", `(?i)N[°º]\s*(0\d{8,}[\w-]*)`),
}

// destinoBlock matches the "Destino / Titular / Establecimiento" block that
// DT-e printouts repeat once per transport leg. Only the first one is used.
var destinoBlock = regexp.MustCompile(`(?i)Destino:[^\n\r]*?\s*Titular:[ \t]*([^\n\r]+?)\s*Establecimiento:`)

var (
	destinoSectionStart  = regexp.MustCompile(`(?i)DATOS\s+DEL\s+DESTINO`)
	origenSectionStart   = regexp.MustCompile(`(?i)DATOS\s+DEL\s+ORIGEN`)
	movementSectionStart = regexp.MustCompile(`(?i)DATOS\s+DEL\s+MOVIMIENTO`)
	sectionTitular       = regexp.MustCompile(`(?im)Titular:[ \t]*([^\n\r]+?)(?:\s*CUIT|[ \t]*$)`)
)

var holderRules = []rule{
	newRule("titular-destino", `(?im)Titular\s+Destino:[ \t]*([^\n\r]+?)[ \t]*$`),
	newRule("titular-cuit", `(?im)Titular:[ \t]*([^\n\r]+?)(?:\s*CUIT|[ \t]*$)`),
	newRule("destino-titular", `(?is)Destino:.*?Titular:[ \t]*([^\n\r]+)`),
	newRule("hacia-titular", `(?is)HACIA.*?Titular:[ \t]*([^\n\r]+)`),
	newRule("frigorifico", `(?im)FRIGOR[IÍ]FICO\s+([^\n\r]+?)(?:\s*Localidad|[ \t]*$)`),
	newRule("estancia", `(?im)ESTANCIA\s+([^\n\r]+?)(?:\s*SOCIEDAD|[ \t]*$)`),
	newRule("titular-destino-cliente", `(?i)(?:titular|destino|cliente)[\s:]*([^\n\r]+)`),
	newRule("comprador", `(?i)(?:comprador|adquirente)[\s:]*([^\n\r]+)`),
	newRule("establecimiento", `(?i)(?:establecimiento|empresa)[\s:]*([^\n\r]+)`),
}

const renspaExpr = `\d{2}\.\d{3}\.\d\.\d{5}/\d{2}`

var (
	renspaAny         = regexp.MustCompile(renspaExpr)
	renspaExact       = regexp.MustCompile(`^` + renspaExpr + `$`)
	renspaSectionEnd  = regexp.MustCompile(`(?i)Consignatario|Especie`)
	renspaSectionFrom = regexp.MustCompile(`(?i)Destino:`)
)

var renspaRules = []rule{
	newRule("destino", `(?i)Destino:\s*(`+renspaExpr+`)`),
	newRule("renspa-de-destino", `(?i)RENSPA\s+de\s+Destino:\s*(`+renspaExpr+`)`),
	newRule("id-destino", `(?i)ID\s+Destino:\s*(`+renspaExpr+`)`),
}

// dateToken finds every date-shaped substring, year-first or day-first.
var dateToken = regexp.MustCompile(`\b(?:\d{4}[/.-]\d{1,2}[/.-]\d{1,2}|\d{1,2}[/.-]\d{1,2}[/.-]\d{2,4})\b`)

type dateRole int

const (
	roleIssue dateRole = iota
	roleLoad
	roleExpiration
)

// dateKeywords are matched against the text immediately preceding a date token.
var dateKeywords = []struct {
	Role    dateRole
	Pattern *regexp.Regexp
}{
	{roleIssue, regexp.MustCompile(`(?i)(?:Fecha\s+y\s+hora\s+de\s+emisi[oó]n|Fecha\s+(?:de\s+)?Emisi[oó]n)[\s:]*$`)},
	{roleLoad, regexp.MustCompile(`(?i)Fecha\s+(?:de\s+)?Carga[\s:]*$`)},
	{roleExpiration, regexp.MustCompile(`(?i)Fecha\s+(?:de\s+)?Vencimiento[\s:]*$`)},
}

var reproduccionUERules = []rule{
	newRule("exact", `(?i)Motivo:\s*(Reproducci[oó]n\s*UE)`),
	newRule("loose", `(?i)Motivo:[ \t]*([^\n\r]*?Reproducci[oó]n[^\n\r]*?UE)`),
}

var motivoRule = newRule("motivo", `(?im)Motivo:[ \t]*([^\n\r]+?)(?:[ \t]*(?:Oficina|Tel[eé]fono)|[ \t]*$)`)

// reasonHints infer a reason from keywords anywhere in the text.
var reasonHints = []struct {
	Pattern *regexp.Regexp
	Reason  string
}{
	{regexp.MustCompile(`(?i)\bfaena\b`), "Faena"},
	{regexp.MustCompile(`(?i)frigor[ií]fico`), "Faena"},
	{regexp.MustCompile(`(?i)reproducci[oó]n`), "Reproducción UE"},
	{regexp.MustCompile(`(?i)\bcr[ií]a\b`), "Cría"},
}

var categoryRules = []rule{
	newRule("categorias", `(?i)Categor[ií]as?:[ \t]*([^\n\r]+)`),
	newRule("ovinos", `(?i)Ovinos\s*-\s*([^\n\r]+)`),
	newRule("keyword", `(?i)((?:oveja|borrego|cordero|cap[oó]n|carnero|borrega))`),
}

// categoryKeywords is checked by substring containment on folded text.
// carnero goes first so "carnero/oveja" style listings pick the male.
var categoryKeywords = []struct {
	Keyword  string
	Category Category
}{
	{"carnero", CategoryCarnero},
	{"oveja", CategoryOveja},
	{"borrego", CategoryBorrego},
	{"cordero", CategoryCordero},
	{"capon", CategoryCapon},
	{"borrega", CategoryBorrega},
}

type feeRole int

const (
	feeUnassigned feeRole = iota
	feeDocument
	feeGuide
)

const amountExpr = `(\d+(?:[.,]\d+)*)`

// labelledFeeRules are anchored to the resolution codes SENASA prints next
// to each charge.
var labelledFeeRules = []struct {
	Role    feeRole
	Pattern *regexp.Regexp
}{
	{feeDocument, regexp.MustCompile(`(?i)Res\.\s*189/2018\s*Cod\.\s*SA008\s*\$\s*` + amountExpr)},
	{feeGuide, regexp.MustCompile(`(?i)Res\.\s*189/2018\s*Cod\.\s*SA013\s*\$\s*` + amountExpr)},
	{feeUnassigned, regexp.MustCompile(`(?i)Res\.\s*1/2022\s*Cod\.\s*SA008-A\s*\$\s*` + amountExpr)},
}

const decimalAmountExpr = `(\d+(?:[.,]\d+)+)`

var genericFeeRules = []rule{
	newRule("valor", `(?i)(?:valor|precio|importe)[\p{L} ]{0,20}:?[ \t]*\$?[ \t]*`+decimalAmountExpr),
	newRule("dollar-sign-before", `\$[ \t]*`+decimalAmountExpr),
	newRule("dollar-sign-after", decimalAmountExpr+`[ \t]*\$`),
	newRule("pesos", `(?i)`+decimalAmountExpr+`[ \t]*pesos?`),
	newRule("dolares", `(?i)`+decimalAmountExpr+`[ \t]*d[oó]lares?`),
}

var quantityRules = []rule{
	newRule("cantidad-total", `(?i)Cantidad\s+Total:\s*(\d+)`),
	newRule("cantidad", `(?i)Cantidad:\s*(\d+)`),
	newRule("especie-cantidad", `(?i)ESPECIE:[^\n\r]*\s*CANTIDAD:\s*(\d+)`),
}
