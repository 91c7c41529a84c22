// Package intake drives the guided dialogue: an ordered registry of topic
// modules, the advance/retry policy between them, and the engine that turns
// inbound messages into record patches and outbound replies.
package intake

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sesampe/preaplus/extract"
	"github.com/sesampe/preaplus/ficha"
)

// DefaultRetryLimit is how many re-prompts a module gets before the engine
// force-advances past it.
const DefaultRetryLimit = 3

// Module describes one topic slot of the dialogue. Required lists the dotted
// record paths the module must fill before the dialogue moves on.
type Module struct {
	Index      int
	Name       string
	Prompt     string
	Required   []string
	UsesRemote bool
}

// Registry is the ordered module list. Index i of the dialogue is modules[i];
// reaching len(modules) means the record is complete.
type Registry struct {
	modules    []Module
	retryLimit int
}

func DefaultRegistry() *Registry {
	return &Registry{
		retryLimit: DefaultRetryLimit,
		modules: []Module{
			{
				Index:  extract.ModuleIdentificacion,
				Name:   "Identificación",
				Prompt: "Para empezar necesito tus datos. Respondeme con:\nNombre y apellido:\nDNI:\nFecha de nacimiento (dd/mm/aaaa):\nPeso (kg):\nTalla (cm):",
				Required: []string{
					"paciente.nombre_completo",
					"paciente.dni",
					"paciente.fecha_nacimiento",
					"antropometria.peso_kg",
					"antropometria.talla_cm",
				},
				UsesRemote: true,
			},
			{
				Index:  extract.ModuleCobertura,
				Name:   "Cobertura y motivo",
				Prompt: "¿Qué obra social o prepaga tenés, y cuál es el motivo de la cirugía?",
				Required: []string{
					"cobertura.obra_social",
					"cobertura.motivo_cirugia",
				},
				UsesRemote: true,
			},
			{
				Index:  extract.ModuleAlergias,
				Name:   "Alergias y medicación",
				Prompt: "¿Tenés alguna alergia (medicamentos, látex, alimentos)? ¿Tomás alguna medicación habitual? Si no, escribí \"no tengo alergias\".",
				Required: []string{
					"alergias.descripcion",
				},
				UsesRemote: true,
			},
			{
				Index:  extract.ModuleAntecedentes,
				Name:   "Antecedentes",
				Prompt: "¿Tenés enfermedades o antecedentes médicos? Por ejemplo presión alta, diabetes, asma, problemas de corazón. Si no, escribí \"ninguno\".",
				Required: []string{
					"antecedentes.resumen",
				},
				UsesRemote: true,
			},
			{
				Index:  extract.ModuleEstudios,
				Name:   "Estudios",
				Prompt: "¿Te hiciste estudios recientes (laboratorio, electrocardiograma, radiografías)? Contame cuáles y de cuándo son.",
				Required: []string{
					"estudios.resumen",
				},
				UsesRemote: true,
			},
			{
				Index:  extract.ModuleSustancias,
				Name:   "Sustancias",
				Prompt: "¿Fumás o fumaste? ¿Tomás alcohol? ¿Consumís alguna otra sustancia?",
				Required: []string{
					"sustancias.tabaco",
				},
				UsesRemote: true,
			},
			{
				Index:      extract.ModuleViaAerea,
				Name:       "Vía aérea",
				Prompt:     "Por último: ¿tenés prótesis dental o piezas dentarias flojas? ¿Alguna vez te dijeron que fue difícil intubarte?",
				Required:   nil, // free text, advances on any answer
				UsesRemote: true,
			},
		},
	}
}

func (r *Registry) Len() int { return len(r.modules) }

func (r *Registry) RetryLimit() int { return r.retryLimit }

func (r *Registry) Module(idx int) (Module, bool) {
	if idx < 0 || idx >= len(r.modules) {
		return Module{}, false
	}
	return r.modules[idx], true
}

// Missing returns the required paths of m that the record does not yet hold.
func Missing(m Module, f ficha.Ficha) []string {
	var out []string
	for _, path := range m.Required {
		if _, ok := ficha.Lookup(f, path); !ok {
			out = append(out, path)
		}
	}
	return out
}

// moduleOverride is the YAML shape accepted by LoadOverrides. Modules keep
// their built-in order and required fields; only wording and the retry limit
// can be tuned per deployment.
type moduleOverride struct {
	Name   string `yaml:"name,omitempty"`
	Prompt string `yaml:"prompt,omitempty"`
}

type registryOverrides struct {
	RetryLimit int                    `yaml:"retry_limit,omitempty"`
	Modules    map[int]moduleOverride `yaml:"modules,omitempty"`
}

// LoadOverrides applies prompt wording and retry limit overrides from a YAML
// file onto r.
func (r *Registry) LoadOverrides(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read module overrides: %w", err)
	}
	var ov registryOverrides
	if err := yaml.Unmarshal(data, &ov); err != nil {
		return fmt.Errorf("parse module overrides: %w", err)
	}
	if ov.RetryLimit > 0 {
		r.retryLimit = ov.RetryLimit
	}
	for idx, mo := range ov.Modules {
		if idx < 0 || idx >= len(r.modules) {
			return fmt.Errorf("module overrides: no module with index %d", idx)
		}
		if mo.Name != "" {
			r.modules[idx].Name = mo.Name
		}
		if mo.Prompt != "" {
			r.modules[idx].Prompt = mo.Prompt
		}
	}
	return nil
}
