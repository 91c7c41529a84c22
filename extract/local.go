package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/sesampe/preaplus/ficha"
	"github.com/sesampe/preaplus/normalize"
)

var greetingRe = regexp.MustCompile(`(?i)^\s*(hola|buenas|hey|hi|que\s+tal|buen\s*dia|buenas\s*tardes|buenas\s*noches)\b`)

var (
	dniRe      = regexp.MustCompile(`(?:^|\D)(\d[\d.]{5,12})(?:\D|$)`)
	nameRe     = regexp.MustCompile(`(?i)(?:me\s+llamo|soy)\s+([a-zñ' -]{3,})`)
	sexoRe     = regexp.MustCompile(`(?i)\bsexo\s*:?\s*([mf])\b`)
	sexoBareRe = regexp.MustCompile(`(?:^|\s)([MF])(?:[\s.,]|$)`)
	weightRe   = regexp.MustCompile(`(?i)(?:peso|pesa)\D{0,5}(\d{1,3}(?:[.,]\d+)?)|(\d{1,3}(?:[.,]\d+)?)\s*(?:kg|kilos?)`)
	heightRe   = regexp.MustCompile(`(?i)(?:mido|talla|altura)\D{0,5}(\d{2,3}|\d[.,]\d{1,2})|(\d{2,3})\s*cm\b|(\d[.,]\d{1,2})\s*m(?:ts|etros)?\b`)

	obraSocialRe = regexp.MustCompile(`(?i)(?:obra\s+social|prepaga|cobertura)\s*:?\s*([a-zñ0-9. '-]{2,})`)
	afiliadoRe   = regexp.MustCompile(`(?i)(?:nro\.?\s*)?afiliad[oa]\s*:?\s*([a-z0-9/.-]{3,})`)
	motivoRe     = regexp.MustCompile(`(?i)(?:motivo|cirugia|procedimiento|operan?\s+de|me\s+operan)\s*:?\s*(?:de\s+)?([a-zñ0-9,. '-]{3,})`)

	alergiasRe   = regexp.MustCompile(`(?i)(?:alergias?|alergic[oa](?:\s+a)?)\s*:?\s*(.+)`)
	noAlergiasRe = regexp.MustCompile(`(?i)\b(?:no\s+(?:tengo|tiene)\s+alergias?|sin\s+alergias?|ninguna\s+alergia)\b`)
	medicacionRe = regexp.MustCompile(`(?i)(?:medicacion|medicación|tomo|toma)\s*:?\s*(.+)`)
	noMedicRe    = regexp.MustCompile(`(?i)\b(?:no\s+tomo\s+(?:nada|medicacion|medicación)|sin\s+medicacion|sin\s+medicación)\b`)
	medicItemRe  = regexp.MustCompile(`(?i)([a-zñ]{4,})\s+(\d+(?:[.,]\d+)?\s*(?:mg|mcg|g|ui|ml))`)
	antecedRe    = regexp.MustCompile(`(?i)(?:antecedentes?|enfermedades?|patologias?|padezco)\s*:?\s*(.+)`)
	noAntecedRe  = regexp.MustCompile(`(?i)^\s*(?:no|ninguno|ninguna|nada|sin\s+antecedentes)\b`)
	estudiosRe   = regexp.MustCompile(`(?i)(?:estudios?|laboratorio|labs?|analisis|análisis|electro|ecg|ekg|rx|placa|radiografia|radiografía|ecografia|ecografía|tomografia|tomografía)\s*:?\s*(.*)`)
	noEstudiosRe = regexp.MustCompile(`(?i)\b(?:no\s+tengo\s+estudios|sin\s+estudios)\b`)
	tabacoRe     = regexp.MustCompile(`(?i)(?:tabaco|fumo|fuma|cigarrillos?)\s*:?\s*(.*)`)
	noTabacoRe   = regexp.MustCompile(`(?i)\b(?:no\s+fumo|no\s+fuma|nunca\s+fum[eo]|ex\s*fumador)\b`)
	paquetesRe   = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(?:paquetes?|atados?)`)
	alcoholRe    = regexp.MustCompile(`(?i)(?:alcohol|bebo|bebe|tomo\s+(?:vino|cerveza|fernet))\s*:?\s*(.*)`)
	noAlcoholRe  = regexp.MustCompile(`(?i)\b(?:no\s+(?:bebo|bebe|tomo\s+alcohol)|abstemi[oa])\b`)
	otrasSustRe  = regexp.MustCompile(`(?i)(?:drogas?|sustancias?|marihuana|cocaina|cocaína)\s*:?\s*(.*)`)
	viaAereaRe   = regexp.MustCompile(`(?i)(?:via\s*aerea|vía\s*aérea|mallampati|apertura\s+bucal|dentari[ao]s?|piezas|protesis|prótesis)\s*:?\s*(.*)`)
	mallampatiRe = regexp.MustCompile(`(?i)mallampati\s*:?\s*(iv|iii|ii|i|[1-4])\b`)
	protesisRe   = regexp.MustCompile(`(?i)\b(?:protesis|prótesis)\s+dental`)
	noProtesisRe = regexp.MustCompile(`(?i)\bsin\s+(?:protesis|prótesis)\b`)
	intubacionRe = regexp.MustCompile(`(?i)intubacion\s+dificil|intubación\s+difícil`)
)

type localParser func(text string, current ficha.Ficha) ficha.Ficha

var localParsers = map[int]localParser{
	ModuleIdentificacion: parseIdentificacion,
	ModuleCobertura:      parseCobertura,
	ModuleAlergias:       parseAlergias,
	ModuleAntecedentes:   parseAntecedentes,
	ModuleEstudios:       parseEstudios,
	ModuleSustancias:     parseSustancias,
	ModuleViaAerea:       parseViaAerea,
}

// Local runs the deterministic per-module rules over one message. current is
// the accumulated record, consulted only for composite fields (BMI needs
// weight and height from either side). A bare greeting on the first module
// yields the start sentinel instead of data.
func Local(moduleIdx int, rawText string, current ficha.Ficha) Patch {
	text := normalize.StripChatMarkup(rawText)
	parser, ok := localParsers[moduleIdx]
	if !ok || text == "" {
		return Patch{}
	}

	patch := Patch{Ficha: parser(text, current)}
	if moduleIdx == ModuleIdentificacion && patch.Ficha.IsEmpty() && greetingRe.MatchString(text) {
		patch.Start = true
	}
	return patch
}

// labeledValue scans "Label: value" lines for any of the given aliases.
// Matching is accent-insensitive.
func labeledValue(text string, aliases ...string) string {
	for _, line := range strings.Split(text, "\n") {
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		name = foldAccents(strings.ToLower(strings.TrimSpace(name)))
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		for _, alias := range aliases {
			if name == alias {
				return value
			}
		}
	}
	return ""
}

var accentFolder = strings.NewReplacer(
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ü", "u",
	"Á", "A", "É", "E", "Í", "I", "Ó", "O", "Ú", "U", "Ü", "U",
)

func foldAccents(s string) string {
	return accentFolder.Replace(s)
}

func parseIdentificacion(text string, current ficha.Ficha) ficha.Ficha {
	var out ficha.Ficha

	name := labeledValue(text, "nombre y apellido", "nombre", "nombre completo", "paciente")
	if name == "" {
		if m := nameRe.FindStringSubmatch(foldAccents(text)); m != nil {
			name = m[1]
		}
	}
	if name != "" {
		out.Paciente.NombreCompleto = normalize.CapitalizeName(name)
	}

	dniRaw := labeledValue(text, "dni", "documento", "nro documento")
	if dniRaw == "" {
		if m := dniRe.FindStringSubmatch(text); m != nil {
			dniRaw = m[1]
		}
	}
	if dni, ok := normalize.NormalizeDNI(dniRaw); ok {
		out.Paciente.DNI = dni
	}

	dobRaw := labeledValue(text, "fecha nacimiento", "fecha de nacimiento", "nacimiento", "fecha nac")
	if dobRaw == "" {
		dobRaw = text
	}
	if dob, ok := normalize.ParseDate(dobRaw); ok {
		out.Paciente.FechaNacimiento = normalize.FormatDate(dob)
		edad := normalize.Age(dob)
		out.Paciente.Edad = &edad
	}

	weightRaw := labeledValue(text, "peso", "peso kg")
	if weightRaw == "" {
		if m := weightRe.FindStringSubmatch(text); m != nil {
			weightRaw = firstGroup(m)
		}
	}
	if peso, ok := normalize.ParseWeightKg(weightRaw); ok {
		out.Antropometria.PesoKg = &peso
	}

	heightRaw := labeledValue(text, "talla", "talla cm", "altura")
	if heightRaw == "" {
		if m := heightRe.FindStringSubmatch(text); m != nil {
			heightRaw = firstGroup(m)
		}
	}
	if talla, ok := normalize.ParseHeightCm(heightRaw); ok {
		out.Antropometria.TallaCm = &talla
	}

	if m := sexoRe.FindStringSubmatch(text); m != nil {
		out.Paciente.Sexo = strings.ToUpper(m[1])
	} else if m := sexoBareRe.FindStringSubmatch(text); m != nil {
		out.Paciente.Sexo = m[1]
	}

	// Composite: BMI once both inputs are known, from this patch or the
	// accumulated record.
	peso := out.Antropometria.PesoKg
	if peso == nil {
		peso = current.Antropometria.PesoKg
	}
	talla := out.Antropometria.TallaCm
	if talla == nil {
		talla = current.Antropometria.TallaCm
	}
	if peso != nil && talla != nil {
		if imc, ok := normalize.BMI(*peso, *talla); ok {
			out.Antropometria.IMC = &imc
		}
	}

	return out
}

func parseCobertura(text string, _ ficha.Ficha) ficha.Ficha {
	var out ficha.Ficha

	os := labeledValue(text, "obra social", "prepaga", "cobertura")
	if os == "" {
		if m := obraSocialRe.FindStringSubmatch(foldAccents(text)); m != nil {
			os = m[1]
		}
	}
	if os = strings.Trim(os, " -:."); os != "" {
		out.Cobertura.ObraSocial = normalize.CapitalizeName(os)
	}

	afil := labeledValue(text, "nro afiliado", "afiliado", "numero de afiliado")
	if afil == "" {
		if m := afiliadoRe.FindStringSubmatch(foldAccents(text)); m != nil {
			afil = m[1]
		}
	}
	if afil != "" {
		out.Cobertura.NroAfiliado = strings.ToUpper(strings.TrimSpace(afil))
	}

	motivo := labeledValue(text, "motivo", "motivo de la cirugia", "motivo cirugia", "procedimiento")
	if motivo == "" {
		if m := motivoRe.FindStringSubmatch(foldAccents(text)); m != nil {
			motivo = m[1]
		}
	}
	if motivo = strings.Trim(motivo, " -:."); motivo != "" {
		out.Cobertura.MotivoCirugia = motivo
	}

	return out
}

func parseAlergias(text string, _ ficha.Ficha) ficha.Ficha {
	var out ficha.Ficha
	folded := foldAccents(text)

	switch {
	case noAlergiasRe.MatchString(folded):
		no := false
		out.Alergias.Tiene = &no
		out.Alergias.Descripcion = "Niega alergias"
	default:
		if m := alergiasRe.FindStringSubmatch(folded); m != nil {
			desc := strings.Trim(m[1], " -:.")
			if desc != "" {
				si := true
				out.Alergias.Tiene = &si
				out.Alergias.Descripcion = desc
			}
		}
	}

	if noMedicRe.MatchString(folded) {
		out.Medicacion.Habitual = "Niega medicación habitual"
	} else if m := medicacionRe.FindStringSubmatch(folded); m != nil {
		if habitual := strings.Trim(m[1], " -:."); habitual != "" {
			out.Medicacion.Habitual = habitual
			for _, item := range medicItemRe.FindAllStringSubmatch(habitual, -1) {
				out.Medicacion.Detalle = append(out.Medicacion.Detalle, ficha.MedicacionItem{
					Droga: normalize.CapitalizeName(item[1]),
					Dosis: strings.TrimSpace(item[2]),
				})
			}
		}
	}

	return out
}

func parseAntecedentes(text string, _ ficha.Ficha) ficha.Ficha {
	var out ficha.Ficha
	folded := foldAccents(text)

	if noAntecedRe.MatchString(folded) {
		out.Antecedentes.Resumen = "Niega antecedentes"
		return out
	}

	resumen := ""
	if m := antecedRe.FindStringSubmatch(folded); m != nil {
		resumen = strings.Trim(m[1], " -:.")
	}
	if resumen != "" {
		out.Antecedentes.Resumen = resumen
	}

	probe := resumen
	if probe == "" {
		probe = folded
	}
	var terms []string
	flagged := false
	setFlag := func(dst **bool, keywords ...string) {
		low := strings.ToLower(probe)
		for _, kw := range keywords {
			if strings.Contains(low, kw) {
				yes := true
				*dst = &yes
				flagged = true
				if canon, ok := normalize.CanonicalTerm(kw); ok {
					terms = append(terms, canon)
				}
				return
			}
		}
	}
	setFlag(&out.Antecedentes.HTA, "hta", "hipertension", "presion alta")
	setFlag(&out.Antecedentes.Diabetes, "diabetes", "diabetico", "dbt")
	setFlag(&out.Antecedentes.AsmaEPOC, "asma", "epoc")
	setFlag(&out.Antecedentes.Cardiopatia, "cardiopatia", "infarto", "arritmia", "soplo")

	// Without a labeled summary the canonical terms of the matched keywords
	// become the summary, not the raw chat text.
	if out.Antecedentes.Resumen == "" && len(terms) > 0 {
		out.Antecedentes.Resumen = strings.Join(terms, "; ")
	} else if out.Antecedentes.Resumen == "" && flagged {
		out.Antecedentes.Resumen = strings.TrimSpace(strings.Trim(folded, " -:."))
	}

	return out
}

func parseEstudios(text string, _ ficha.Ficha) ficha.Ficha {
	var out ficha.Ficha
	folded := foldAccents(text)

	if noEstudiosRe.MatchString(folded) {
		out.Estudios.Resumen = "Sin estudios recientes"
		return out
	}

	if m := estudiosRe.FindStringSubmatch(text); m != nil {
		resumen := strings.Trim(m[1], " -:.")
		if resumen == "" {
			resumen = strings.TrimSpace(text)
		}
		out.Estudios.Resumen = resumen
	}
	if fecha, ok := normalize.ParseDate(text); ok {
		out.Estudios.Fecha = normalize.FormatDate(fecha)
	}

	return out
}

func parseSustancias(text string, _ ficha.Ficha) ficha.Ficha {
	var out ficha.Ficha
	folded := foldAccents(text)

	switch {
	case noTabacoRe.MatchString(folded):
		out.Sustancias.Tabaco = "No"
	default:
		if m := tabacoRe.FindStringSubmatch(folded); m != nil {
			detail := strings.Trim(m[1], " -:.")
			if detail == "" {
				detail = "Sí"
			}
			out.Sustancias.Tabaco = detail
		}
	}
	if m := paquetesRe.FindStringSubmatch(folded); m != nil {
		if pd, ok := parseFloatComma(m[1]); ok {
			out.Sustancias.PaquetesDia = &pd
		}
	}

	switch {
	case noAlcoholRe.MatchString(folded):
		out.Sustancias.Alcohol = "No"
	default:
		if m := alcoholRe.FindStringSubmatch(folded); m != nil {
			detail := strings.Trim(m[1], " -:.")
			if detail == "" {
				detail = "Sí"
			}
			out.Sustancias.Alcohol = detail
		}
	}

	if m := otrasSustRe.FindStringSubmatch(folded); m != nil {
		detail := strings.Trim(m[1], " -:.")
		if detail == "" {
			detail = strings.TrimSpace(folded)
		}
		out.Sustancias.Otras = detail
	}

	return out
}

func parseViaAerea(text string, _ ficha.Ficha) ficha.Ficha {
	var out ficha.Ficha
	folded := foldAccents(text)

	if m := viaAereaRe.FindStringSubmatch(text); m != nil {
		resumen := strings.Trim(m[1], " -:.")
		if resumen == "" {
			resumen = strings.TrimSpace(text)
		}
		out.ViaAerea.Resumen = resumen
	}
	if m := mallampatiRe.FindStringSubmatch(folded); m != nil {
		out.ViaAerea.Mallampati = strings.ToUpper(m[1])
	}
	if protesisRe.MatchString(folded) {
		yes := true
		out.ViaAerea.ProtesisDental = &yes
	}
	if noProtesisRe.MatchString(folded) {
		no := false
		out.ViaAerea.ProtesisDental = &no
	}
	if intubacionRe.MatchString(folded) {
		yes := true
		out.ViaAerea.IntubacionDificil = &yes
	}

	return out
}

func firstGroup(m []string) string {
	for _, g := range m[1:] {
		if g != "" {
			return g
		}
	}
	return ""
}

func parseFloatComma(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
