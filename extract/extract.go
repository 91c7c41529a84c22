// Package extract turns one inbound chat message into a partial record
// patch, first through deterministic per-module rules (local), then through
// a best-effort language-model pass (remote). Local wins field conflicts.
package extract

import "github.com/sesampe/preaplus/ficha"

// Module indices, in dialogue order. The intake registry builds its
// descriptors on top of these.
const (
	ModuleIdentificacion = iota
	ModuleCobertura
	ModuleAlergias
	ModuleAntecedentes
	ModuleEstudios
	ModuleSustancias
	ModuleViaAerea

	ModuleCount
)

// Patch is the transient result of one extraction pass. Start is the
// greeting sentinel for the very first turn: acknowledged, never merged.
type Patch struct {
	Ficha ficha.Ficha
	Start bool
}

func (p Patch) IsEmpty() bool {
	return !p.Start && p.Ficha.IsEmpty()
}

// HasData reports whether the patch carries mergeable record data (the
// start sentinel alone does not count).
func (p Patch) HasData() bool {
	return !p.Ficha.IsEmpty()
}

// Overlay merges the remote patch under the local one: every field the
// local pass filled stays as-is, remote only contributes what local missed.
func Overlay(local, remote Patch) Patch {
	out := remote
	ficha.Merge(&out.Ficha, local.Ficha)
	out.Start = local.Start || remote.Start
	return out
}
