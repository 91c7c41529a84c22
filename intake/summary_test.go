package intake

import (
	"strings"
	"testing"

	"github.com/sesampe/preaplus/extract"
)

func TestSummarizeStartSentinel(t *testing.T) {
	reg := DefaultRegistry()
	m, _ := reg.Module(extract.ModuleIdentificacion)
	got := Summarize(extract.Patch{Start: true}, m)
	if got != Greeting {
		t.Errorf("start sentinel summary = %q", got)
	}
}

func TestSummarizeEmptyPatch(t *testing.T) {
	reg := DefaultRegistry()
	m, _ := reg.Module(extract.ModuleCobertura)
	if got := Summarize(extract.Patch{}, m); got != "" {
		t.Errorf("empty patch summary = %q, want empty", got)
	}
}

func TestSummarizeIdentificacionCard(t *testing.T) {
	reg := DefaultRegistry()
	m, _ := reg.Module(extract.ModuleIdentificacion)

	var patch extract.Patch
	patch.Ficha.Paciente.NombreCompleto = "Juan Perez"
	patch.Ficha.Paciente.DNI = "12345678"
	peso := 80.0
	patch.Ficha.Antropometria.PesoKg = &peso
	talla := 180
	patch.Ficha.Antropometria.TallaCm = &talla
	imc := 24.7
	patch.Ficha.Antropometria.IMC = &imc

	got := Summarize(patch, m)
	for _, want := range []string{"Nombre: Juan Perez", "DNI: 12345678", "Peso: 80 kg", "Talla: 180 cm", "IMC: 24.7"} {
		if !strings.Contains(got, want) {
			t.Errorf("summary missing %q:\n%s", want, got)
		}
	}
}

func TestSummarizeOtherModulesSingleLine(t *testing.T) {
	reg := DefaultRegistry()
	m, _ := reg.Module(extract.ModuleAlergias)

	var patch extract.Patch
	no := false
	patch.Ficha.Alergias.Tiene = &no
	patch.Ficha.Alergias.Descripcion = "Niega alergias"

	got := Summarize(patch, m)
	if !strings.HasPrefix(got, "Anoté en Alergias y medicación: ") {
		t.Errorf("summary = %q", got)
	}
	if !strings.Contains(got, "Alergias: Niega alergias") {
		t.Errorf("summary = %q", got)
	}
}

func TestMissingPromptNamesFields(t *testing.T) {
	reg := DefaultRegistry()
	m, _ := reg.Module(extract.ModuleIdentificacion)

	got := MissingPrompt(m, []string{"paciente.dni", "antropometria.peso_kg"})
	if !strings.Contains(got, "DNI") || !strings.Contains(got, "Peso") {
		t.Errorf("prompt = %q", got)
	}

	single := MissingPrompt(m, []string{"paciente.dni"})
	if !strings.Contains(single, "Me falta DNI") {
		t.Errorf("prompt = %q", single)
	}
}
