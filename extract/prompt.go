package extract

import "strings"

const remoteSystemPrompt = "Sos un asistente clínico de preanestesia. Extraés datos estructurados " +
	"de mensajes de pacientes argentinos. Respondé SOLO con el JSON pedido, sin comentarios ni " +
	"markdown. Si un dato no aparece en el mensaje usá null; nunca inventes valores."

// Per-module JSON shapes. Every field is nullable; the model must not guess.
var moduleShapes = map[int]string{
	ModuleIdentificacion: `{
  "paciente": {"nombre_completo": null, "dni": null, "fecha_nacimiento": "dd/mm/aaaa o null", "sexo": "M, F o null"},
  "antropometria": {"peso_kg": null, "talla_cm": null}
}`,
	ModuleCobertura: `{
  "cobertura": {"obra_social": null, "nro_afiliado": null, "motivo_cirugia": null}
}`,
	ModuleAlergias: `{
  "alergias": {"tiene": null, "descripcion": null},
  "medicacion": {"habitual": null, "detalle": [{"droga": "", "dosis": ""}]}
}`,
	ModuleAntecedentes: `{
  "antecedentes": {"resumen": null, "hta": null, "diabetes": null, "asma_epoc": null, "cardiopatia": null},
  "terminos": [{"campo": "antecedentes.resumen", "texto_usuario": "", "termino": "", "confianza": 0.0}]
}`,
	ModuleEstudios: `{
  "estudios": {"resumen": null, "fecha": "dd/mm/aaaa o null"}
}`,
	ModuleSustancias: `{
  "sustancias": {"tabaco": null, "paquetes_dia": null, "alcohol": null, "otras": null}
}`,
	ModuleViaAerea: `{
  "via_aerea": {"resumen": null, "mallampati": "I a IV o null", "protesis_dental": null, "intubacion_dificil": null}
}`,
}

// Few-shot pairs for colloquial phrasings the rules miss.
var moduleExamples = map[int][][2]string{
	ModuleIdentificacion: {
		{"hola soy juan perez, peso como 80 y mido uno setenta y cinco",
			`{"paciente": {"nombre_completo": "Juan Perez", "dni": null, "fecha_nacimiento": null, "sexo": null}, "antropometria": {"peso_kg": 80, "talla_cm": 175}}`},
	},
	ModuleCobertura: {
		{"tengo osde, me opero de la rodilla",
			`{"cobertura": {"obra_social": "OSDE", "nro_afiliado": null, "motivo_cirugia": "cirugía de rodilla"}}`},
	},
	ModuleAlergias: {
		{"a la penicilina me hincho todo, tomo enalapril a la mañana",
			`{"alergias": {"tiene": true, "descripcion": "penicilina (edema)"}, "medicacion": {"habitual": "enalapril a la mañana", "detalle": [{"droga": "Enalapril", "dosis": ""}]}}`},
	},
	ModuleAntecedentes: {
		{"tengo el azucar alta y la presion me la controlo",
			`{"antecedentes": {"resumen": "Diabetes; Hipertensión arterial", "hta": true, "diabetes": true, "asma_epoc": null, "cardiopatia": null}, "terminos": [{"campo": "antecedentes.resumen", "texto_usuario": "el azucar alta", "termino": "Diabetes", "confianza": 0.9}, {"campo": "antecedentes.resumen", "texto_usuario": "la presion", "termino": "Hipertensión arterial", "confianza": 0.85}]}`},
	},
	ModuleSustancias: {
		{"fumo un atado por dia, los findes alguna cerveza",
			`{"sustancias": {"tabaco": "1 atado/día", "paquetes_dia": 1, "alcohol": "cerveza los fines de semana", "otras": null}}`},
	},
}

// BuildPrompt assembles the user payload for one remote extraction pass.
func BuildPrompt(moduleIdx int, rawText string) string {
	shape, ok := moduleShapes[moduleIdx]
	if !ok {
		return ""
	}

	var b strings.Builder
	b.WriteString("Extraé del mensaje los campos de este JSON (todos opcionales, null si faltan):\n")
	b.WriteString(shape)
	b.WriteString("\n")
	if examples := moduleExamples[moduleIdx]; len(examples) > 0 {
		b.WriteString("\nEjemplos:\n")
		for _, ex := range examples {
			b.WriteString("Mensaje: ")
			b.WriteString(ex[0])
			b.WriteString("\nJSON: ")
			b.WriteString(ex[1])
			b.WriteString("\n")
		}
	}
	b.WriteString("\nMensaje del paciente:\n")
	b.WriteString(rawText)
	return b.String()
}
