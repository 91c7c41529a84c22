package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/sesampe/preaplus/ficha"
	"github.com/sesampe/preaplus/internal/jsonutil"
	"github.com/sesampe/preaplus/llm"
	"github.com/sesampe/preaplus/normalize"
)

const defaultRemoteMaxTokens = 400

// Remote extracts a patch through one bounded language-model call. Garbled
// or missing output degrades to an empty patch; the dialogue never depends
// on this pass succeeding.
type Remote struct {
	Client    llm.Client
	Model     string
	MaxTokens int
	Logger    *slog.Logger
}

// wirePatch is the nullable JSON shape the model is asked to produce.
type wirePatch struct {
	Paciente struct {
		NombreCompleto  *string `json:"nombre_completo"`
		DNI             *string `json:"dni"`
		FechaNacimiento *string `json:"fecha_nacimiento"`
		Sexo            *string `json:"sexo"`
	} `json:"paciente"`
	Antropometria struct {
		PesoKg  *float64 `json:"peso_kg"`
		TallaCm *float64 `json:"talla_cm"`
	} `json:"antropometria"`
	Cobertura struct {
		ObraSocial    *string `json:"obra_social"`
		NroAfiliado   *string `json:"nro_afiliado"`
		MotivoCirugia *string `json:"motivo_cirugia"`
	} `json:"cobertura"`
	Alergias struct {
		Tiene       *bool   `json:"tiene"`
		Descripcion *string `json:"descripcion"`
	} `json:"alergias"`
	Medicacion struct {
		Habitual *string `json:"habitual"`
		Detalle  []struct {
			Droga string `json:"droga"`
			Dosis string `json:"dosis"`
		} `json:"detalle"`
	} `json:"medicacion"`
	Antecedentes struct {
		Resumen     *string `json:"resumen"`
		HTA         *bool   `json:"hta"`
		Diabetes    *bool   `json:"diabetes"`
		AsmaEPOC    *bool   `json:"asma_epoc"`
		Cardiopatia *bool   `json:"cardiopatia"`
	} `json:"antecedentes"`
	Estudios struct {
		Resumen *string `json:"resumen"`
		Fecha   *string `json:"fecha"`
	} `json:"estudios"`
	Sustancias struct {
		Tabaco      *string  `json:"tabaco"`
		PaquetesDia *float64 `json:"paquetes_dia"`
		Alcohol     *string  `json:"alcohol"`
		Otras       *string  `json:"otras"`
	} `json:"sustancias"`
	ViaAerea struct {
		Resumen           *string `json:"resumen"`
		Mallampati        *string `json:"mallampati"`
		ProtesisDental    *bool   `json:"protesis_dental"`
		IntubacionDificil *bool   `json:"intubacion_dificil"`
	} `json:"via_aerea"`
	Terminos []wireTermino `json:"terminos"`
}

type wireTermino struct {
	Campo        string  `json:"campo"`
	TextoUsuario string  `json:"texto_usuario"`
	Termino      string  `json:"termino"`
	Confianza    float64 `json:"confianza"`
}

// Extract issues exactly one model call; retry policy belongs to the caller.
func (r *Remote) Extract(ctx context.Context, moduleIdx int, rawText string, current ficha.Ficha) (Patch, error) {
	if r == nil || r.Client == nil {
		return Patch{}, nil
	}
	prompt := BuildPrompt(moduleIdx, rawText)
	if prompt == "" {
		return Patch{}, nil
	}

	maxTokens := r.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultRemoteMaxTokens
	}
	res, err := r.Client.Chat(ctx, llm.Request{
		Model: r.Model,
		Messages: []llm.Message{
			{Role: "system", Content: remoteSystemPrompt},
			{Role: "user", Content: prompt},
		},
		ForceJSON:   true,
		MaxTokens:   maxTokens,
		Temperature: 0,
	})
	if err != nil {
		return Patch{}, fmt.Errorf("remote extract module %d: %w", moduleIdx, err)
	}

	var wire wirePatch
	if err := jsonutil.DecodeObject(res.Text, &wire); err != nil {
		// Garbled output counts as "model returned nothing".
		if r.Logger != nil {
			r.Logger.Debug("remote_extract_unparseable", "module", moduleIdx, "text_len", len(res.Text))
		}
		return Patch{}, nil
	}

	return Patch{Ficha: r.validate(wire, current)}, nil
}

// validate re-runs every model-provided field through the same normalizers
// the local pass uses; anything that fails is dropped silently.
func (r *Remote) validate(wire wirePatch, current ficha.Ficha) ficha.Ficha {
	var out ficha.Ficha

	if v := deref(wire.Paciente.NombreCompleto); v != "" {
		out.Paciente.NombreCompleto = normalize.CapitalizeName(v)
	}
	if v := deref(wire.Paciente.DNI); v != "" {
		if dni, ok := normalize.NormalizeDNI(v); ok {
			out.Paciente.DNI = dni
		}
	}
	if v := deref(wire.Paciente.FechaNacimiento); v != "" {
		if dob, ok := normalize.ParseDate(v); ok {
			out.Paciente.FechaNacimiento = normalize.FormatDate(dob)
			edad := normalize.Age(dob)
			out.Paciente.Edad = &edad
		}
	}
	if v := strings.ToUpper(strings.TrimSpace(deref(wire.Paciente.Sexo))); v == "M" || v == "F" {
		out.Paciente.Sexo = v
	}

	if wire.Antropometria.PesoKg != nil {
		if peso, ok := normalize.ParseWeightKg(strconv.FormatFloat(*wire.Antropometria.PesoKg, 'f', -1, 64)); ok {
			out.Antropometria.PesoKg = &peso
		}
	}
	if wire.Antropometria.TallaCm != nil {
		if talla, ok := normalize.ParseHeightCm(strconv.FormatFloat(*wire.Antropometria.TallaCm, 'f', -1, 64)); ok {
			out.Antropometria.TallaCm = &talla
		}
	}
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

	out.Cobertura.ObraSocial = strings.TrimSpace(deref(wire.Cobertura.ObraSocial))
	out.Cobertura.NroAfiliado = strings.TrimSpace(deref(wire.Cobertura.NroAfiliado))
	out.Cobertura.MotivoCirugia = strings.TrimSpace(deref(wire.Cobertura.MotivoCirugia))

	out.Alergias.Tiene = wire.Alergias.Tiene
	out.Alergias.Descripcion = strings.TrimSpace(deref(wire.Alergias.Descripcion))

	out.Medicacion.Habitual = strings.TrimSpace(deref(wire.Medicacion.Habitual))
	for _, item := range wire.Medicacion.Detalle {
		droga := strings.TrimSpace(item.Droga)
		if droga == "" {
			continue
		}
		out.Medicacion.Detalle = append(out.Medicacion.Detalle, ficha.MedicacionItem{
			Droga: normalize.CapitalizeName(droga),
			Dosis: strings.TrimSpace(item.Dosis),
		})
	}

	out.Antecedentes.Resumen = strings.TrimSpace(deref(wire.Antecedentes.Resumen))
	out.Antecedentes.HTA = wire.Antecedentes.HTA
	out.Antecedentes.Diabetes = wire.Antecedentes.Diabetes
	out.Antecedentes.AsmaEPOC = wire.Antecedentes.AsmaEPOC
	out.Antecedentes.Cardiopatia = wire.Antecedentes.Cardiopatia

	out.Estudios.Resumen = strings.TrimSpace(deref(wire.Estudios.Resumen))
	if v := deref(wire.Estudios.Fecha); v != "" {
		if fecha, ok := normalize.ParseDate(v); ok {
			out.Estudios.Fecha = normalize.FormatDate(fecha)
		}
	}

	out.Sustancias.Tabaco = strings.TrimSpace(deref(wire.Sustancias.Tabaco))
	out.Sustancias.PaquetesDia = wire.Sustancias.PaquetesDia
	out.Sustancias.Alcohol = strings.TrimSpace(deref(wire.Sustancias.Alcohol))
	out.Sustancias.Otras = strings.TrimSpace(deref(wire.Sustancias.Otras))

	out.ViaAerea.Resumen = strings.TrimSpace(deref(wire.ViaAerea.Resumen))
	if v := strings.ToUpper(strings.TrimSpace(deref(wire.ViaAerea.Mallampati))); v != "" {
		switch v {
		case "I", "II", "III", "IV", "1", "2", "3", "4":
			out.ViaAerea.Mallampati = v
		}
	}
	out.ViaAerea.ProtesisDental = wire.ViaAerea.ProtesisDental
	out.ViaAerea.IntubacionDificil = wire.ViaAerea.IntubacionDificil

	applyTerminos(&out, wire.Terminos)
	return out
}

// applyTerminos folds canonical-term suggestions in. A term is accepted only
// above the confidence threshold; below it the patient's own wording is kept
// as a quoted literal rather than a guessed diagnosis.
func applyTerminos(out *ficha.Ficha, terminos []wireTermino) {
	for _, t := range terminos {
		value := strings.TrimSpace(t.Termino)
		raw := strings.TrimSpace(t.TextoUsuario)
		if value == "" && raw == "" {
			continue
		}
		if t.Confianza < normalize.ConfidenceThreshold {
			if raw == "" {
				continue
			}
			// the keyword rules are deterministic, so they outrank a low
			// model confidence; only unmatched wording stays quoted
			if canon, ok := normalize.CanonicalTerm(raw); ok {
				value = canon
			} else {
				value = strconv.Quote(raw)
			}
		}
		switch t.Campo {
		case "antecedentes.resumen":
			out.Antecedentes.Resumen = appendTerm(out.Antecedentes.Resumen, value)
		case "alergias.descripcion":
			out.Alergias.Descripcion = appendTerm(out.Alergias.Descripcion, value)
		case "cobertura.motivo_cirugia":
			if out.Cobertura.MotivoCirugia == "" {
				out.Cobertura.MotivoCirugia = value
			}
		}
	}
}

func appendTerm(existing, term string) string {
	if existing == "" {
		return term
	}
	if strings.Contains(strings.ToLower(existing), strings.ToLower(term)) {
		return existing
	}
	return existing + "; " + term
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
