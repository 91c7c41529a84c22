package intake

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sesampe/preaplus/extract"
	"github.com/sesampe/preaplus/ficha"
)

// Greeting opens every dialogue; the first module's prompt follows it.
const Greeting = "¡Hola! Soy el asistente de evaluación preanestésica. Te voy a hacer unas preguntas cortas para armar tu ficha antes de la cirugía."

// CompletionMessage closes the dialogue once every module has been visited.
const CompletionMessage = "¡Listo! Ya tengo toda la información que necesitaba. El equipo de anestesia va a revisar tu ficha antes de la cirugía. ¡Gracias!"

// fieldLabels maps dotted record paths to the wording used in confirmations
// and re-prompts. Order matters: summaries list fields in this order.
var fieldLabels = []struct {
	Path  string
	Label string
}{
	{"paciente.nombre_completo", "Nombre"},
	{"paciente.dni", "DNI"},
	{"paciente.fecha_nacimiento", "Nacimiento"},
	{"paciente.edad", "Edad"},
	{"paciente.sexo", "Sexo"},
	{"antropometria.peso_kg", "Peso"},
	{"antropometria.talla_cm", "Talla"},
	{"antropometria.imc", "IMC"},
	{"cobertura.obra_social", "Obra social"},
	{"cobertura.nro_afiliado", "Nro. afiliado"},
	{"cobertura.motivo_cirugia", "Motivo"},
	{"alergias.descripcion", "Alergias"},
	{"medicacion.habitual", "Medicación"},
	{"antecedentes.resumen", "Antecedentes"},
	{"estudios.resumen", "Estudios"},
	{"estudios.fecha", "Fecha estudios"},
	{"sustancias.tabaco", "Tabaco"},
	{"sustancias.paquetes_dia", "Paquetes/día"},
	{"sustancias.alcohol", "Alcohol"},
	{"sustancias.otras", "Otras sustancias"},
	{"via_aerea.resumen", "Vía aérea"},
	{"via_aerea.mallampati", "Mallampati"},
	{"via_aerea.protesis_dental", "Prótesis dental"},
	{"via_aerea.intubacion_dificil", "Intubación difícil"},
}

// FieldLabel names a dotted record path for subject-facing text.
func FieldLabel(path string) string {
	for _, fl := range fieldLabels {
		if fl.Path == path {
			return fl.Label
		}
	}
	return path
}

func formatLeaf(path string, v any) string {
	switch val := v.(type) {
	case bool:
		if val {
			return "Sí"
		}
		return "No"
	case int:
		if path == "antropometria.talla_cm" {
			return strconv.Itoa(val) + " cm"
		}
		return strconv.Itoa(val)
	case float64:
		s := strconv.FormatFloat(val, 'f', -1, 64)
		switch path {
		case "antropometria.peso_kg":
			return s + " kg"
		case "antropometria.talla_cm":
			return s + " cm"
		}
		return s
	case string:
		switch path {
		case "antropometria.peso_kg":
			return val + " kg"
		}
		return val
	case []ficha.MedicacionItem:
		parts := make([]string, 0, len(val))
		for _, it := range val {
			if it.Dosis != "" {
				parts = append(parts, it.Droga+" "+it.Dosis)
			} else {
				parts = append(parts, it.Droga)
			}
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprintf("%v", v)
	}
}

func presentPairs(f ficha.Ficha) []string {
	var out []string
	for _, fl := range fieldLabels {
		v, ok := ficha.Lookup(f, fl.Path)
		if !ok {
			continue
		}
		out = append(out, fl.Label+": "+formatLeaf(fl.Path, v))
	}
	return out
}

// Summarize renders the confirmation line(s) for one turn's captured patch.
// The start sentinel yields the greeting, an empty patch yields "", the
// identification module gets a multi-line card and every other module a
// single "Anoté en ..." line.
func Summarize(patch extract.Patch, m Module) string {
	if patch.Start {
		return Greeting
	}
	pairs := presentPairs(patch.Ficha)
	if len(pairs) == 0 {
		return ""
	}
	if m.Index == extract.ModuleIdentificacion {
		return "Anoté:\n" + strings.Join(pairs, "\n")
	}
	return "Anoté en " + m.Name + ": " + strings.Join(pairs, "; ")
}

// MissingPrompt asks again for the still-unfilled fields of a module.
func MissingPrompt(m Module, missing []string) string {
	if len(missing) == 0 {
		return m.Prompt
	}
	labels := make([]string, 0, len(missing))
	for _, path := range missing {
		labels = append(labels, FieldLabel(path))
	}
	if len(labels) == 1 {
		return "Me falta " + labels[0] + ". ¿Me lo pasás?"
	}
	return "Me faltan estos datos: " + strings.Join(labels, ", ") + ". ¿Me los pasás?"
}
