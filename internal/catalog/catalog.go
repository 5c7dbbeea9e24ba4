// Package catalog holds the ordered technician normalization rules.
//
// Rule order is part of the contract: resolution is first-match-wins over substring
// containment, so a multi-word key ("gustavo kauan") has to be declared before any
// shorter key it contains ("gustavo").
package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"supportlog/internal"
)

var validate = validator.New()

// Default returns a fresh copy of the built-in catalog.
func Default() internal.TechnicianCatalog {
	rules := []internal.NormalizationRule{
		{Key: "claudia", Canonical: "Claudia Liliane"},
		{Key: "liliane", Canonical: "Claudia Liliane"},

		{Key: "gustavo almeida", Canonical: "Gustavo Almeida"},
		{Key: "gustavo kauan", Canonical: "Gustavo Kauan"},
		{Key: "gutavo", Canonical: "Gustavo Kauan"},
		{Key: "gustavo", Canonical: "Gustavo Kauan"},

		{Key: "alcelio", Canonical: "Alcelio Santos"},
		{Key: "santos", Canonical: "Alcelio Santos"},

		{Key: "jarbas", Canonical: "Jarbas Fred"},
		{Key: "fred", Canonical: "Jarbas Fred"},

		{Key: "daniela", Canonical: "Daniela Nogueira"},
		{Key: "nogueira", Canonical: "Daniela Nogueira"},

		{Key: "eulis", Canonical: "Eulis Gaudencio"},
		{Key: "gaudencio", Canonical: "Eulis Gaudencio"},

		{Key: "gabriel", Canonical: "Gabriel Gilvan"},
		{Key: "gilvan", Canonical: "Gabriel Gilvan"},

		{Key: "luiz", Canonical: "Luiz Eduardo"},
		{Key: "eduardo", Canonical: "Luiz Eduardo"},
		{Key: "luis", Canonical: "Luiz Eduardo"},

		{Key: "ricardo", Canonical: "Ricardo"},

		{Key: "lucas", Canonical: "Lucas Correa"},
		{Key: "correa", Canonical: "Lucas Correa"},

		{Key: "ludmilla", Canonical: "Ludmilla Oliveira"},
	}

	official := []string{
		"Claudia Liliane",
		"Gustavo Almeida",
		"Gustavo Kauan",
		"Alcelio Santos",
		"Jarbas Fred",
		"Daniela Nogueira",
		"Eulis Gaudencio",
		"Gabriel Gilvan",
		"Luiz Eduardo",
		"Ricardo",
		"Lucas Correa",
	}

	return internal.TechnicianCatalog{Rules: rules, Official: official}
}

// LoadFile reads a YAML catalog:
//
//	rules:
//	  - {key: "gustavo kauan", name: "Gustavo Kauan"}
//	  - {key: "gustavo", name: "Gustavo Kauan"}
//	official: ["Gustavo Kauan"]
func LoadFile(path string) (internal.TechnicianCatalog, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return internal.TechnicianCatalog{}, err
	}
	cat, err := Parse(blob)
	if err != nil {
		return internal.TechnicianCatalog{}, fmt.Errorf("catalog %s: %w", path, err)
	}
	return cat, nil
}

func Parse(blob []byte) (internal.TechnicianCatalog, error) {
	var cat internal.TechnicianCatalog
	dec := yaml.NewDecoder(bytes.NewReader(blob))
	dec.KnownFields(true)
	if err := dec.Decode(&cat); err != nil {
		return internal.TechnicianCatalog{}, err
	}
	if err := Validate(cat); err != nil {
		return internal.TechnicianCatalog{}, err
	}
	return cat, nil
}

func Marshal(cat internal.TechnicianCatalog) ([]byte, error) {
	return yaml.Marshal(cat)
}

// Validate checks the rule fields and rejects rules that can never fire because an
// earlier key is a substring of theirs.
func Validate(cat internal.TechnicianCatalog) error {
	if err := validate.Struct(cat); err != nil {
		return fmt.Errorf("invalid catalog: %w", err)
	}

	var errs []error
	for i, rule := range cat.Rules {
		if strings.TrimSpace(rule.Key) != rule.Key {
			errs = append(errs, fmt.Errorf("rule %d: key %q has surrounding whitespace", i, rule.Key))
			continue
		}
		for j := 0; j < i; j++ {
			if strings.Contains(rule.Key, cat.Rules[j].Key) {
				errs = append(errs, fmt.Errorf("rule %d (%q) is shadowed by rule %d (%q)", i, rule.Key, j, cat.Rules[j].Key))
				break
			}
		}
	}
	return errors.Join(errs...)
}
