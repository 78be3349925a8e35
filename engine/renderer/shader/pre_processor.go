// pre_processor.go implements the Oxy GLSL hook pre-processor. It scans composed shader source for
// @oxy: annotations and replaces them with the custom shader's code block and hook calls.
package shader

import (
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-scene/engine/state"
)

type preProcessor struct {
	stage state.HookStage
}

// PreProcessor splices one stage of a custom shader into composed source.
type PreProcessor interface {
	// Process replaces @oxy:code with the stage's code block and every @oxy:hook whose hook point is
	// bound with a call to the bound function. Annotations for unbound hooks are removed. Source
	// without annotations is returned unchanged.
	//
	// Parameters:
	//   - source: composed GLSL containing annotations
	//
	// Returns:
	//   - string: the processed source
	//   - error: if an annotation is malformed or a bound function name is not a GLSL identifier
	Process(source string) (string, error)
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a PreProcessor for one hook stage. A zero stage removes every annotation.
func NewPreProcessor(stage state.HookStage) PreProcessor {
	return &preProcessor{stage: stage}
}

func (p *preProcessor) Process(source string) (string, error) {
	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines))

	for i, line := range lines {
		a, err := parseAnnotation(line, i+1)
		if err != nil {
			return "", err
		}
		if a == nil {
			out = append(out, line)
			continue
		}

		switch a.Type {
		case annotationTypeCode:
			if p.stage.Code != "" {
				out = append(out, p.stage.Code)
			}
		case annotationTypeHook:
			fn, ok := p.stage.Hooks[a.Hook]
			if !ok {
				continue
			}
			if !isIdent(fn) {
				return "", fmt.Errorf("line %d: invalid function name %q bound to hook %q", i+1, fn, a.Hook)
			}
			indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
			if a.Discard {
				out = append(out, fmt.Sprintf("%sif (%s(%s) == false) { discard; }", indent, fn, a.Var))
			} else {
				out = append(out, fmt.Sprintf("%s%s = %s(%s);", indent, a.Var, fn, a.Var))
			}
		default:
			return "", fmt.Errorf("line %d: unknown annotation type %q", i+1, a.Type)
		}
	}
	return strings.Join(out, "\n"), nil
}
