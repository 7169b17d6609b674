// Package template derives entity values from expressions over live state.
//
// A Template is a gjson path over the state snapshot in which entity ids
// are written as {{domain.object_id}} placeholders:
//
//	{{sensor.controller_zone_1_state}}.value
//	{{sensor.weather_temperature}}.attributes.feels_like
//
// Evaluation produces a Result tagged with one of three kinds:
//   - KindOK: the expression evaluated. Value may be nil when the path
//     selects nothing under an existing entity ("no value").
//   - KindTemplateError: the expression could not be evaluated, for example
//     because a referenced entity is unknown or unavailable.
//   - KindValidationError: a value was computed but the attribute's
//     Validator rejected it.
//
// A Tracker owns the attributes of one entity. It re-evaluates an attribute
// only when an entity that attribute references changes, routes each
// Result to the attribute's callback, and defers writes of the owner's
// visible state until Attach has finished evaluating every attribute once.
package template
