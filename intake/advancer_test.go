package intake

import (
	"testing"

	"github.com/sesampe/preaplus/extract"
	"github.com/sesampe/preaplus/ficha"
)

func fichaWithIdentificacion() ficha.Ficha {
	var f ficha.Ficha
	f.Paciente.NombreCompleto = "Juan Perez"
	f.Paciente.DNI = "12345678"
	f.Paciente.FechaNacimiento = "01/02/1990"
	peso := 80.0
	f.Antropometria.PesoKg = &peso
	talla := 180
	f.Antropometria.TallaCm = &talla
	return f
}

func TestDecideAdvancesWhenRequiredComplete(t *testing.T) {
	reg := DefaultRegistry()
	retries := map[int]int{}

	dec := reg.Decide(extract.ModuleIdentificacion, fichaWithIdentificacion(), true, retries)
	if !dec.Advanced || dec.Forced {
		t.Fatalf("dec = %+v, want clean advance", dec)
	}
	if dec.NextIndex != extract.ModuleCobertura {
		t.Errorf("next = %d, want %d", dec.NextIndex, extract.ModuleCobertura)
	}
}

func TestDecideStaysAndCountsFailedAttempts(t *testing.T) {
	reg := DefaultRegistry()
	retries := map[int]int{}

	for attempt := 1; attempt <= DefaultRetryLimit; attempt++ {
		dec := reg.Decide(extract.ModuleCobertura, ficha.Ficha{}, false, retries)
		if dec.Advanced {
			t.Fatalf("attempt %d: advanced early: %+v", attempt, dec)
		}
		if retries[extract.ModuleCobertura] != attempt {
			t.Fatalf("attempt %d: counter = %d", attempt, retries[extract.ModuleCobertura])
		}
		if len(dec.Missing) == 0 {
			t.Fatal("missing should list the unfilled required paths")
		}
	}

	// One past the limit: abandon the module instead of looping forever.
	dec := reg.Decide(extract.ModuleCobertura, ficha.Ficha{}, false, retries)
	if !dec.Advanced || !dec.Forced {
		t.Fatalf("dec = %+v, want forced advance", dec)
	}
	if _, ok := retries[extract.ModuleCobertura]; ok {
		t.Error("counter should be cleared after force-advance")
	}
}

func TestDecideProgressResetsCounter(t *testing.T) {
	reg := DefaultRegistry()
	retries := map[int]int{extract.ModuleCobertura: 2}

	var f ficha.Ficha
	f.Cobertura.ObraSocial = "Osde" // one of two required fields

	dec := reg.Decide(extract.ModuleCobertura, f, true, retries)
	if dec.Advanced {
		t.Fatalf("dec = %+v, should stay with motivo still missing", dec)
	}
	if retries[extract.ModuleCobertura] != 0 {
		t.Errorf("counter = %d, progress should reset it", retries[extract.ModuleCobertura])
	}
}

func TestDecideSkipsModulesAlreadyCaptured(t *testing.T) {
	reg := DefaultRegistry()
	f := fichaWithIdentificacion()
	// Coverage got captured in passing during the first module.
	f.Cobertura.ObraSocial = "Osde"
	f.Cobertura.MotivoCirugia = "hernia inguinal"

	dec := reg.Decide(extract.ModuleIdentificacion, f, true, map[int]int{})
	if !dec.Advanced {
		t.Fatalf("dec = %+v, want advance", dec)
	}
	if dec.NextIndex != extract.ModuleAlergias {
		t.Errorf("next = %d, want %d (cobertura already complete)", dec.NextIndex, extract.ModuleAlergias)
	}
}

func TestDecideNeverSkipsFreeTextModules(t *testing.T) {
	reg := DefaultRegistry()
	var f ficha.Ficha
	f.Sustancias.Tabaco = "No"

	dec := reg.Decide(extract.ModuleSustancias, f, true, map[int]int{})
	if !dec.Advanced || dec.Completed {
		t.Fatalf("dec = %+v, via aerea must still be asked", dec)
	}
	if dec.NextIndex != extract.ModuleViaAerea {
		t.Errorf("next = %d, want %d", dec.NextIndex, extract.ModuleViaAerea)
	}
}

func TestDecideCompletesAfterLastModule(t *testing.T) {
	reg := DefaultRegistry()
	dec := reg.Decide(extract.ModuleViaAerea, ficha.Ficha{}, true, map[int]int{})
	if !dec.Completed {
		t.Fatalf("dec = %+v, want completion", dec)
	}
	if dec.NextIndex != reg.Len() {
		t.Errorf("next = %d, want %d", dec.NextIndex, reg.Len())
	}
}
