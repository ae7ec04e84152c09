package strategyabi

import (
	"fmt"
	"plugin"
)

// Strategy is a loaded strategy plugin bound to its five resolved exports.
type Strategy struct {
	Create  CreateFunc
	Destroy DestroyFunc
	OnStart OnStartFunc
	OnBar   OnBarFunc
	OnEnd   OnEndFunc

	path string
}

// Load opens a Go plugin at path and resolves the five required exports.
// A missing symbol or a type mismatch is fatal, per the ABI's load-time
// contract.
func Load(path string) (*Strategy, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("strategyabi: loading plugin %s: %w", path, err)
	}

	s := &Strategy{path: path}

	createSym, err := p.Lookup(ExportNames[0])
	if err != nil {
		return nil, fmt.Errorf("strategyabi: %s: missing export %s: %w", path, ExportNames[0], err)
	}
	create, ok := createSym.(*CreateFunc)
	if !ok {
		return nil, fmt.Errorf("strategyabi: %s: export %s has the wrong signature", path, ExportNames[0])
	}
	s.Create = *create

	destroySym, err := p.Lookup(ExportNames[1])
	if err != nil {
		return nil, fmt.Errorf("strategyabi: %s: missing export %s: %w", path, ExportNames[1], err)
	}
	destroy, ok := destroySym.(*DestroyFunc)
	if !ok {
		return nil, fmt.Errorf("strategyabi: %s: export %s has the wrong signature", path, ExportNames[1])
	}
	s.Destroy = *destroy

	onStartSym, err := p.Lookup(ExportNames[2])
	if err != nil {
		return nil, fmt.Errorf("strategyabi: %s: missing export %s: %w", path, ExportNames[2], err)
	}
	onStart, ok := onStartSym.(*OnStartFunc)
	if !ok {
		return nil, fmt.Errorf("strategyabi: %s: export %s has the wrong signature", path, ExportNames[2])
	}
	s.OnStart = *onStart

	onBarSym, err := p.Lookup(ExportNames[3])
	if err != nil {
		return nil, fmt.Errorf("strategyabi: %s: missing export %s: %w", path, ExportNames[3], err)
	}
	onBar, ok := onBarSym.(*OnBarFunc)
	if !ok {
		return nil, fmt.Errorf("strategyabi: %s: export %s has the wrong signature", path, ExportNames[3])
	}
	s.OnBar = *onBar

	onEndSym, err := p.Lookup(ExportNames[4])
	if err != nil {
		return nil, fmt.Errorf("strategyabi: %s: missing export %s: %w", path, ExportNames[4], err)
	}
	onEnd, ok := onEndSym.(*OnEndFunc)
	if !ok {
		return nil, fmt.Errorf("strategyabi: %s: export %s has the wrong signature", path, ExportNames[4])
	}
	s.OnEnd = *onEnd

	return s, nil
}
