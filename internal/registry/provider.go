// Package registry supplies principal profiles, KPI definitions and the
// business-process vocabulary, and loads them into the profile store and KPI
// catalog.
package registry

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ashita-ai/beacon/internal/model"
)

// Provider is the read side of a registry.
type Provider interface {
	PrincipalProfiles(ctx context.Context) ([]model.PrincipalProfile, error)
	KPIDefinitions(ctx context.Context) ([]model.KPIDefinition, error)
	BusinessProcesses(ctx context.Context) ([]string, error)
}

// DefaultProfileProvider is implemented by providers that also name the
// profile used for unresolvable identifiers.
type DefaultProfileProvider interface {
	DefaultProfile(ctx context.Context) (*model.PrincipalProfile, error)
}

// Document is a complete registry snapshot. It is also the YAML file format.
type Document struct {
	Principals        []model.PrincipalProfile `yaml:"principals"`
	KPIs              []model.KPIDefinition    `yaml:"kpis"`
	BusinessProcesses []string                 `yaml:"business_processes"`
	DefaultProfile    *model.PrincipalProfile  `yaml:"default_profile"`
}

// snapshotter is implemented by providers that can return every section from
// one consistent read.
type snapshotter interface {
	Document(ctx context.Context) (Document, error)
}

// fetch reads a full document from p.
func fetch(ctx context.Context, p Provider) (Document, error) {
	if s, ok := p.(snapshotter); ok {
		return s.Document(ctx)
	}
	var (
		doc Document
		err error
	)
	if doc.Principals, err = p.PrincipalProfiles(ctx); err != nil {
		return Document{}, fmt.Errorf("principal profiles: %w", err)
	}
	if doc.KPIs, err = p.KPIDefinitions(ctx); err != nil {
		return Document{}, fmt.Errorf("kpi definitions: %w", err)
	}
	if doc.BusinessProcesses, err = p.BusinessProcesses(ctx); err != nil {
		return Document{}, fmt.Errorf("business processes: %w", err)
	}
	if dp, ok := p.(DefaultProfileProvider); ok {
		if doc.DefaultProfile, err = dp.DefaultProfile(ctx); err != nil {
			return Document{}, fmt.Errorf("default profile: %w", err)
		}
	}
	return doc, nil
}

// FileProvider reads the registry from a YAML file on every call, so edits
// are picked up by the next refresh.
type FileProvider struct {
	path string
}

var (
	_ Provider               = (*FileProvider)(nil)
	_ DefaultProfileProvider = (*FileProvider)(nil)
)

// NewFileProvider returns a provider for the YAML document at path.
func NewFileProvider(path string) *FileProvider {
	return &FileProvider{path: path}
}

// Path returns the file path.
func (f *FileProvider) Path() string { return f.path }

// Document parses the whole file. Unknown keys are rejected so typos in
// threshold or profile fields do not silently load as zero values.
func (f *FileProvider) Document(ctx context.Context) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	raw, err := os.Open(f.path)
	if err != nil {
		return Document{}, fmt.Errorf("registry: open %s: %w", f.path, err)
	}
	defer func() { _ = raw.Close() }()

	dec := yaml.NewDecoder(raw)
	dec.KnownFields(true)
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("registry: parse %s: %w", f.path, err)
	}
	return doc, nil
}

func (f *FileProvider) PrincipalProfiles(ctx context.Context) ([]model.PrincipalProfile, error) {
	doc, err := f.Document(ctx)
	return doc.Principals, err
}

func (f *FileProvider) KPIDefinitions(ctx context.Context) ([]model.KPIDefinition, error) {
	doc, err := f.Document(ctx)
	return doc.KPIs, err
}

func (f *FileProvider) BusinessProcesses(ctx context.Context) ([]string, error) {
	doc, err := f.Document(ctx)
	return doc.BusinessProcesses, err
}

func (f *FileProvider) DefaultProfile(ctx context.Context) (*model.PrincipalProfile, error) {
	doc, err := f.Document(ctx)
	return doc.DefaultProfile, err
}
