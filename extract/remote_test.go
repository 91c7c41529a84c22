package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/sesampe/preaplus/ficha"
	"github.com/sesampe/preaplus/llm"
)

type fakeClient struct {
	text string
	err  error
	last llm.Request
}

func (f *fakeClient) Chat(_ context.Context, req llm.Request) (llm.Result, error) {
	f.last = req
	if f.err != nil {
		return llm.Result{}, f.err
	}
	return llm.Result{Text: f.text}, nil
}

func TestRemoteExtractParsesFencedJSON(t *testing.T) {
	client := &fakeClient{text: "```json\n{\"paciente\":{\"dni\":\"12.345.678\",\"fecha_nacimiento\":\"01/02/1990\"}}\n```"}
	r := &Remote{Client: client, Model: "test"}

	patch, err := r.Extract(context.Background(), ModuleIdentificacion, "dni 12.345.678, 01/02/1990", ficha.Ficha{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if patch.Ficha.Paciente.DNI != "12345678" {
		t.Errorf("dni = %q", patch.Ficha.Paciente.DNI)
	}
	if patch.Ficha.Paciente.FechaNacimiento != "01/02/1990" {
		t.Errorf("fecha = %q", patch.Ficha.Paciente.FechaNacimiento)
	}
	if !client.last.ForceJSON {
		t.Error("request should force JSON output")
	}
	if client.last.Temperature != 0 {
		t.Errorf("temperature = %v, want 0", client.last.Temperature)
	}
}

func TestRemoteExtractGarbledOutputYieldsEmptyPatch(t *testing.T) {
	client := &fakeClient{text: "no puedo ayudarte con eso"}
	r := &Remote{Client: client, Model: "test"}

	patch, err := r.Extract(context.Background(), ModuleIdentificacion, "hola", ficha.Ficha{})
	if err != nil {
		t.Fatalf("garbled output must not be an error: %v", err)
	}
	if !patch.IsEmpty() {
		t.Errorf("patch = %+v, want empty", patch)
	}
}

func TestRemoteExtractPropagatesTransportError(t *testing.T) {
	client := &fakeClient{err: errors.New("boom")}
	r := &Remote{Client: client, Model: "test"}

	if _, err := r.Extract(context.Background(), ModuleIdentificacion, "hola", ficha.Ficha{}); err == nil {
		t.Fatal("expected transport error")
	}
}

func TestRemoteExtractDropsOutOfRangeValues(t *testing.T) {
	client := &fakeClient{text: `{"antropometria":{"peso_kg":500,"talla_cm":1.8}}`}
	r := &Remote{Client: client, Model: "test"}

	patch, err := r.Extract(context.Background(), ModuleIdentificacion, "peso 500", ficha.Ficha{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if patch.Ficha.Antropometria.PesoKg != nil {
		t.Errorf("peso = %v, out-of-range value should be dropped", *patch.Ficha.Antropometria.PesoKg)
	}
	// 1.8 is a meters form, still valid after conversion.
	if patch.Ficha.Antropometria.TallaCm == nil || *patch.Ficha.Antropometria.TallaCm != 180 {
		t.Errorf("talla = %v, want 180", patch.Ficha.Antropometria.TallaCm)
	}
}

func TestRemoteExtractTermConfidenceGate(t *testing.T) {
	client := &fakeClient{text: `{"terminos":[
		{"campo":"antecedentes.resumen","texto_usuario":"presion alta","termino":"Hipertensión arterial","confianza":0.9},
		{"campo":"antecedentes.resumen","texto_usuario":"algo raro en el corazon","termino":"Cardiopatía","confianza":0.3}
	]}`}
	r := &Remote{Client: client, Model: "test"}

	patch, err := r.Extract(context.Background(), ModuleAntecedentes, "presion alta y algo raro en el corazon", ficha.Ficha{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resumen := patch.Ficha.Antecedentes.Resumen
	if resumen != "Hipertensión arterial; \"algo raro en el corazon\"" {
		t.Errorf("resumen = %q", resumen)
	}
}

func TestRemoteExtractLowConfidenceTermCanonicalized(t *testing.T) {
	client := &fakeClient{text: `{"terminos":[
		{"campo":"antecedentes.resumen","texto_usuario":"azucar alta","termino":"Hiperglucemia","confianza":0.2}
	]}`}
	r := &Remote{Client: client, Model: "test"}

	patch, err := r.Extract(context.Background(), ModuleAntecedentes, "tengo azucar alta", ficha.Ficha{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// the keyword rules recognize the wording, so the canonical term wins
	// over both the distrusted model guess and the quoted literal
	if got := patch.Ficha.Antecedentes.Resumen; got != "Diabetes" {
		t.Errorf("resumen = %q", got)
	}
}

func TestRemoteExtractNilReceiverIsNoop(t *testing.T) {
	var r *Remote
	patch, err := r.Extract(context.Background(), ModuleIdentificacion, "hola", ficha.Ficha{})
	if err != nil || !patch.IsEmpty() {
		t.Errorf("nil remote should be a no-op, got %+v, %v", patch, err)
	}
}
