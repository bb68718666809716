package legis

import (
	"context"
	"strings"

	model "github.com/tigerroll/congresso/pkg/batch/core/domain/model"
	"github.com/tigerroll/congresso/pkg/batch/core/processor"
	"github.com/tigerroll/congresso/pkg/batch/support/util/exception"
)

// Job runs one processor on a prepared context.
type Job func(ctx context.Context, pc *processor.ProcessingContext) *model.ProcessingResult

// Names lists the processors in CLI order.
func Names() []string {
	return []string{NameMaterias, NameDiscursos, NameMesas}
}

// NewJob builds the named processor over deps.
func NewJob(name string, deps Deps) (Job, error) {
	switch name {
	case NameMaterias:
		p, err := NewMateriasProcessor(deps)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, pc *processor.ProcessingContext) *model.ProcessingResult {
			return processor.Run[[]SenadorMaterias, []Document](ctx, p, pc)
		}, nil
	case NameDiscursos:
		p, err := NewDiscursosProcessor(deps)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, pc *processor.ProcessingContext) *model.ProcessingResult {
			return processor.Run[[]DeputadoDiscursos, []Document](ctx, p, pc)
		}, nil
	case NameMesas:
		p, err := NewMesasProcessor(deps)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, pc *processor.ProcessingContext) *model.ProcessingResult {
			return processor.Run[[]MesaComposicao, []Document](ctx, p, pc)
		}, nil
	}
	return nil, exception.NewValidationError(moduleName, "unknown processor "+name, "available: "+strings.Join(Names(), ", "))
}
