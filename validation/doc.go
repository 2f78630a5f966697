// Package validation validates API input and turns failures into
// INVALID_INPUT AppErrors carrying per-field details.
//
// # Struct Tag Validation
//
//	type renameSpeakerRequest struct {
//	    DisplayName string `json:"display_name" validate:"required,max=120"`
//	}
//	err := validation.Validate(req)
//
// # Programmatic Validation
//
//	v := validation.New()
//	v.RequiredUUID("meeting_id", id).TimeWindow("start", "end", start, end)
//	if appErr := v.Validate(); appErr != nil { ... }
package validation
