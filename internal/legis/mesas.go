package legis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/tigerroll/congresso/pkg/batch/adapter/api"
	"github.com/tigerroll/congresso/pkg/batch/component/item"
	"github.com/tigerroll/congresso/pkg/batch/component/step/reader"
	model "github.com/tigerroll/congresso/pkg/batch/core/domain/model"
	"github.com/tigerroll/congresso/pkg/batch/core/processor"
	"github.com/tigerroll/congresso/pkg/batch/engine/step/skip"
	"github.com/tigerroll/congresso/pkg/batch/engine/throttle"
	"github.com/tigerroll/congresso/pkg/batch/support/util/exception"
	"github.com/tigerroll/congresso/pkg/batch/support/util/logger"
)

// NameMesas is the processor name of the board composition job.
const NameMesas = "mesas"

// Board identifiers, used as document ids.
const (
	CasaSenado    = "senado"
	CasaCongresso = "congresso"
	CasaCamara    = "camara"
)

type mesaSource struct {
	casa     string
	reader   *reader.APIReader
	endpoint api.Endpoint
}

// MesaComposicao is what Extract produces for one board.
type MesaComposicao struct {
	Casa   string
	Record *model.ConsolidatedRecord
}

// MembroMesa is one seat of a board.
type MembroMesa struct {
	Cargo   string `json:"cargo"`
	Codigo  string `json:"codigo,omitempty"`
	Nome    string `json:"nome"`
	Partido string `json:"siglaPartido,omitempty"`
	UF      string `json:"uf,omitempty"`
	Inicio  string `json:"dataInicio,omitempty"`
	Fim     string `json:"dataFim,omitempty"`
}

// MesaDocument is stored at {root}/{legislature}/mesas/{casa}.
type MesaDocument struct {
	Casa         string       `json:"casa"`
	Legislatura  int          `json:"legislatura"`
	TotalMembros int          `json:"totalMembros"`
	Membros      []MembroMesa `json:"membros"`
}

// MesasProcessor loads the board composition of the Senate, the National Congress and the
// Chamber of Deputies.
type MesasProcessor struct {
	deps         Deps
	skip         skip.SkipPolicy
	consolidator *item.Consolidator
}

// NewMesasProcessor creates the boards processor of one run.
func NewMesasProcessor(deps Deps) (*MesasProcessor, error) {
	policy, err := skip.NewDefaultSkipPolicyFactory().Create(deps.Config.Congresso.Batch.ItemSkip)
	if err != nil {
		return nil, err
	}
	return &MesasProcessor{deps: deps, skip: policy, consolidator: item.NewConsolidator()}, nil
}

func (p *MesasProcessor) Name() string { return NameMesas }

func (p *MesasProcessor) Validate(ctx context.Context, pc *processor.ProcessingContext) error {
	if err := p.deps.validate(); err != nil {
		return err
	}
	if pc.Options().EntityID() != "" {
		return exception.NewValidationError(moduleName, "mesas does not filter by legislator", "drop --senador/--deputado")
	}
	return nil
}

func (p *MesasProcessor) sources() []mesaSource {
	s := p.deps.Sources
	return []mesaSource{
		{casa: CasaSenado, reader: s.Senado, endpoint: SenadoMesaSF},
		{casa: CasaCongresso, reader: s.Senado, endpoint: SenadoMesaCN},
		{casa: CasaCamara, reader: s.Camara, endpoint: CamaraMesa},
	}
}

func (p *MesasProcessor) Extract(ctx context.Context, pc *processor.ProcessingContext) ([]MesaComposicao, error) {
	sources := model.ApplyLimit(pc.Options(), p.sources())
	pc.SetTotal(len(sources))
	legislatura := strconv.Itoa(pc.Options().Legislature())

	results := fanOut(ctx, pc, p.deps, throttle.Unpaced(NameMesas), p.skip, sources,
		func(s mesaSource) string { return "mesa " + s.casa },
		func(ctx context.Context, _ int, s mesaSource) (MesaComposicao, error) {
			frag, err := s.reader.Fetch(ctx, s.endpoint, map[string]string{"legislatura": legislatura}, nil)
			if err != nil {
				return MesaComposicao{}, err
			}
			return MesaComposicao{Casa: s.casa, Record: p.consolidator.Consolidate("mesa/"+s.casa, []model.ExtractionFragment{frag})}, nil
		})

	for _, r := range results {
		pc.AddExtracted(r.Record.Len())
	}
	return results, nil
}

func (p *MesasProcessor) Transform(ctx context.Context, pc *processor.ProcessingContext, extracted []MesaComposicao) ([]Document, error) {
	legislatura := pc.Options().Legislature()
	coll, err := collection(p.deps.Config, legislatura, NameMesas)
	if err != nil {
		return nil, err
	}
	docs := make([]Document, 0, len(extracted))
	for _, e := range extracted {
		if e.Record == nil {
			logger.Warnf("[%s] board %s is empty", p.Name(), e.Casa)
			pc.IncrementWarnings(1)
			continue
		}
		doc := MesaDocument{Casa: e.Casa, Legislatura: legislatura, Membros: make([]MembroMesa, 0, len(e.Record.Items))}
		for _, it := range e.Record.Items {
			doc.Membros = append(doc.Membros, toMembro(it))
		}
		doc.TotalMembros = len(doc.Membros)
		docs = append(docs, Document{Collection: coll, ID: e.Casa, Data: doc})
		pc.AddTransformed(1)
	}
	return docs, nil
}

// toMembro reads a seat from either the Senado (PascalCase, nested identification) or the
// Câmara (camelCase) shape.
func toMembro(it any) MembroMesa {
	return MembroMesa{
		Cargo:   firstText(it, []string{"DescricaoCargo"}, []string{"Cargo"}, []string{"titulo"}, []string{"cargo"}),
		Codigo:  firstText(it, []string{"IdentificacaoParlamentar", "CodigoParlamentar"}, []string{"CodigoParlamentar"}, []string{"id"}),
		Nome:    firstText(it, []string{"IdentificacaoParlamentar", "NomeParlamentar"}, []string{"NomeParlamentar"}, []string{"nome"}),
		Partido: firstText(it, []string{"IdentificacaoParlamentar", "SiglaPartidoParlamentar"}, []string{"SiglaPartido"}, []string{"siglaPartido"}),
		UF:      firstText(it, []string{"IdentificacaoParlamentar", "UfParlamentar"}, []string{"UfParlamentar"}, []string{"siglaUf"}),
		Inicio:  firstText(it, []string{"DataInicio"}, []string{"dataInicio"}),
		Fim:     firstText(it, []string{"DataFim"}, []string{"dataFim"}),
	}
}

func (p *MesasProcessor) Load(ctx context.Context, pc *processor.ProcessingContext, docs []Document) error {
	if len(docs) == 0 {
		logger.Warnf("[%s] nothing to load", p.Name())
		return nil
	}
	pc.EmitProgress(model.ProgressLoading, 80, fmt.Sprintf("%d documents", len(docs)))
	return loadDocuments(ctx, pc, p.deps, docs)
}

var _ processor.Processor[[]MesaComposicao, []Document] = (*MesasProcessor)(nil)
