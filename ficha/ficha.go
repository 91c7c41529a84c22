// Package ficha defines the nested pre-anesthesia record accumulated across
// the intake dialogue, plus the non-destructive deep merge used to fold
// per-turn patches into it. JSON tags are the wire contract handed to the
// report collaborator when the dialogue completes.
package ficha

type Paciente struct {
	NombreCompleto  string `json:"nombre_completo,omitempty"`
	DNI             string `json:"dni,omitempty"`
	FechaNacimiento string `json:"fecha_nacimiento,omitempty"` // dd/mm/yyyy
	Edad            *int   `json:"edad,omitempty"`
	Sexo            string `json:"sexo,omitempty"` // M|F
}

type Antropometria struct {
	PesoKg  *float64 `json:"peso_kg,omitempty"`
	TallaCm *int     `json:"talla_cm,omitempty"`
	IMC     *float64 `json:"imc,omitempty"`
}

type Cobertura struct {
	ObraSocial    string `json:"obra_social,omitempty"`
	NroAfiliado   string `json:"nro_afiliado,omitempty"`
	MotivoCirugia string `json:"motivo_cirugia,omitempty"`
}

type Alergias struct {
	Tiene       *bool  `json:"tiene,omitempty"`
	Descripcion string `json:"descripcion,omitempty"`
}

type MedicacionItem struct {
	Droga string `json:"droga"`
	Dosis string `json:"dosis,omitempty"`
}

type Medicacion struct {
	Habitual string           `json:"habitual,omitempty"`
	Detalle  []MedicacionItem `json:"detalle,omitempty"`
}

type Antecedentes struct {
	Resumen     string `json:"resumen,omitempty"`
	HTA         *bool  `json:"hta,omitempty"`
	Diabetes    *bool  `json:"diabetes,omitempty"`
	AsmaEPOC    *bool  `json:"asma_epoc,omitempty"`
	Cardiopatia *bool  `json:"cardiopatia,omitempty"`
}

type Estudios struct {
	Resumen string `json:"resumen,omitempty"`
	Fecha   string `json:"fecha,omitempty"` // dd/mm/yyyy
}

type Sustancias struct {
	Tabaco      string   `json:"tabaco,omitempty"`
	PaquetesDia *float64 `json:"paquetes_dia,omitempty"`
	Alcohol     string   `json:"alcohol,omitempty"`
	Otras       string   `json:"otras,omitempty"`
}

type ViaAerea struct {
	Resumen           string `json:"resumen,omitempty"`
	Mallampati        string `json:"mallampati,omitempty"`
	ProtesisDental    *bool  `json:"protesis_dental,omitempty"`
	IntubacionDificil *bool  `json:"intubacion_dificil,omitempty"`
}

type Ficha struct {
	Paciente      Paciente      `json:"paciente"`
	Antropometria Antropometria `json:"antropometria"`
	Cobertura     Cobertura     `json:"cobertura"`
	Alergias      Alergias      `json:"alergias"`
	Medicacion    Medicacion    `json:"medicacion"`
	Antecedentes  Antecedentes  `json:"antecedentes"`
	Estudios      Estudios      `json:"estudios"`
	Sustancias    Sustancias    `json:"sustancias"`
	ViaAerea      ViaAerea      `json:"via_aerea"`
}
