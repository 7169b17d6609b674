package main

import (
	"fmt"

	"github.com/nerrad567/gray-logic-hub/internal/entity"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-hub/internal/template"
)

type parsedTemplate struct {
	cfg       config.TemplateConfig
	tmpl      *template.Template
	validator template.Validator
}

// parseTemplates compiles every configured template sensor.
func parseTemplates(cfgs []config.TemplateConfig) ([]parsedTemplate, error) {
	out := make([]parsedTemplate, 0, len(cfgs))
	for _, c := range cfgs {
		tmpl, err := template.Parse(c.Template)
		if err != nil {
			return nil, fmt.Errorf("template %s: %w", c.ID, err)
		}
		if tmpl.References(entity.ID("sensor", c.ID)) {
			return nil, fmt.Errorf("template %s: %w", c.ID, entity.ErrSelfReference)
		}
		out = append(out, parsedTemplate{cfg: c, tmpl: tmpl, validator: buildValidator(c.Validator)})
	}
	return out, nil
}

// buildValidator maps a validator config to a template.Validator. An empty
// type accepts any value.
func buildValidator(c config.ValidatorConfig) template.Validator {
	switch c.Type {
	case "number":
		return template.Number(c.Min, c.Max)
	case "boolean":
		return template.Boolean()
	case "string":
		return template.String()
	case "one_of":
		return template.OneOf(c.Values...)
	default:
		return nil
	}
}

// attachTemplates creates and attaches the template sensors. The returned
// function detaches them.
func attachTemplates(parsed []parsedTemplate, sink entity.Sink) (detach func(), err error) {
	var attached []*entity.TemplateEntity
	detach = func() {
		for i := len(attached) - 1; i >= 0; i-- {
			attached[i].Detach()
		}
	}

	for _, p := range parsed {
		ent, err := entity.NewTemplateEntity(entity.ID("sensor", p.cfg.ID), p.cfg.Name, p.cfg.Unit, p.tmpl, p.validator, sink)
		if err != nil {
			detach()
			return nil, fmt.Errorf("template %s: %w", p.cfg.ID, err)
		}
		if err := ent.Attach(); err != nil {
			detach()
			return nil, fmt.Errorf("template %s: %w", p.cfg.ID, err)
		}
		attached = append(attached, ent)
	}
	return detach, nil
}
