// annotations.go defines the annotation types and parser for the Oxy GLSL hook pre-processor. The
// composer emits single-line comments prefixed with @oxy: at every point where user hook code may be
// spliced. The pre-processor replaces each annotation with the hook call, or drops it when the active
// custom shader does not bind that hook.
package shader

import (
	"fmt"
	"slices"
	"strings"
)

// annotationPrefix marks an Oxy annotation within a GLSL comment line.
const annotationPrefix = "@oxy:"

// AnnotationType identifies the kind of annotation parsed from a GLSL comment line.
type AnnotationType string

const (
	// annotationTypeCode splices the custom shader's code block at the annotation site. It is placed
	// between the declarations and main so hook functions can see every uniform and varying.
	//
	// Syntax: //@oxy:code
	annotationTypeCode AnnotationType = "code"

	// annotationTypeHook emits a call to the function bound to a hook point. Without a mode the value
	// is replaced by the function's result. With the discard mode the fragment is discarded when the
	// function returns false.
	//
	// Syntax: //@oxy:hook <hook_point> <variable> [discard]
	//
	// Examples:
	//   //@oxy:hook worldPos worldVertex
	//   //@oxy:hook worldPosClip vWorldVertex discard
	annotationTypeHook AnnotationType = "hook"
)

// hookModeDiscard marks a hook whose function is a predicate.
const hookModeDiscard = "discard"

// Hook points a custom shader can bind.
const (
	HookModelPos              = "modelPos"
	HookWorldPos              = "worldPos"
	HookViewPos               = "viewPos"
	HookWorldPosClip          = "worldPosClip"
	HookViewPosClip           = "viewPosClip"
	HookPixelColor            = "pixelColor"
	HookMaterialBaseColor     = "materialBaseColor"
	HookMaterialAlpha         = "materialAlpha"
	HookMaterialEmit          = "materialEmit"
	HookMaterialSpecular      = "materialSpecular"
	HookMaterialSpecularColor = "materialSpecularColor"
	HookMaterialShine         = "materialShine"
)

// validHookPoints lists the hook points the composer places annotations for.
var validHookPoints = []string{
	HookModelPos, HookWorldPos, HookViewPos,
	HookWorldPosClip, HookViewPosClip, HookPixelColor,
	HookMaterialBaseColor, HookMaterialAlpha, HookMaterialEmit,
	HookMaterialSpecular, HookMaterialSpecularColor, HookMaterialShine,
}

// Annotation is one parsed @oxy: annotation.
type Annotation struct {
	Type AnnotationType

	// Hook is the hook point name, set for hook annotations.
	Hook string

	// Var is the GLSL variable passed to the hook function.
	Var string

	// Discard is set when the hook is a predicate that discards the fragment on false.
	Discard bool

	// Line is the 1-based line number in the composed source.
	Line int
}

// parseAnnotation attempts to parse a single line of GLSL source as an @oxy: annotation.
// Returns nil with no error for lines that do not contain the annotation prefix.
//
// Parameters:
//   - line: the raw GLSL source line to parse
//   - lineNum: the 1-based line number for error reporting
//
// Returns:
//   - *Annotation: the parsed annotation, or nil if the line is not an annotation
//   - error: a descriptive error if the annotation is malformed
func parseAnnotation(line string, lineNum int) (*Annotation, error) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "//") {
		return nil, nil
	}
	_, after, ok := strings.Cut(trimmed, annotationPrefix)
	if !ok {
		return nil, nil
	}

	args := strings.Fields(after)
	if len(args) == 0 {
		return nil, fmt.Errorf("line %d: empty @oxy annotation", lineNum)
	}

	switch args[0] {
	case string(annotationTypeCode):
		if len(args) != 1 {
			return nil, fmt.Errorf("line %d: @oxy code annotation takes no arguments", lineNum)
		}
		return &Annotation{Type: annotationTypeCode, Line: lineNum}, nil
	case string(annotationTypeHook):
		if len(args) < 3 || len(args) > 4 {
			return nil, fmt.Errorf("line %d: @oxy hook annotation requires a hook point, a variable and an optional mode", lineNum)
		}
		if !slices.Contains(validHookPoints, args[1]) {
			return nil, fmt.Errorf("line %d: unknown hook point %q in @oxy hook annotation", lineNum, args[1])
		}
		if !isIdent(args[2]) {
			return nil, fmt.Errorf("line %d: invalid variable %q in @oxy hook annotation", lineNum, args[2])
		}
		a := &Annotation{Type: annotationTypeHook, Hook: args[1], Var: args[2], Line: lineNum}
		if len(args) == 4 {
			if args[3] != hookModeDiscard {
				return nil, fmt.Errorf("line %d: unknown hook mode %q in @oxy hook annotation", lineNum, args[3])
			}
			a.Discard = true
		}
		return a, nil
	default:
		return nil, fmt.Errorf("line %d: unknown @oxy annotation type %q", lineNum, args[0])
	}
}

// isIdent reports whether s is a valid GLSL identifier.
func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
