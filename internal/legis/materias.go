package legis

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/tigerroll/congresso/pkg/batch/component/item"
	model "github.com/tigerroll/congresso/pkg/batch/core/domain/model"
	"github.com/tigerroll/congresso/pkg/batch/core/processor"
	"github.com/tigerroll/congresso/pkg/batch/engine/step/skip"
	"github.com/tigerroll/congresso/pkg/batch/support/util/exception"
	"github.com/tigerroll/congresso/pkg/batch/support/util/logger"
)

// NameMaterias is the processor name of the authored bills job.
const NameMaterias = "materias"

// Senador identifies a senator.
type Senador struct {
	Codigo  string `json:"codigo"`
	Nome    string `json:"nome"`
	Partido string `json:"siglaPartido,omitempty"`
	UF      string `json:"uf,omitempty"`
}

// SenadorMaterias is what Extract produces for one senator.
type SenadorMaterias struct {
	Senador Senador
	Record  *model.ConsolidatedRecord
}

// Materia is one authored bill.
type Materia struct {
	Codigo           string `json:"codigo"`
	Sigla            string `json:"sigla,omitempty"`
	Numero           string `json:"numero,omitempty"`
	Ano              string `json:"ano,omitempty"`
	Ementa           string `json:"ementa,omitempty"`
	Data             string `json:"data,omitempty"`
	AutorPrincipal   bool   `json:"autorPrincipal"`
	Identificacao    string `json:"identificacao,omitempty"`
	DescricaoAutoria string `json:"descricaoAutoria,omitempty"`
}

// MateriasDocument is stored at {root}/{legislature}/materias/{senator code}.
type MateriasDocument struct {
	Senador
	Legislatura   int            `json:"legislatura"`
	TotalMaterias int            `json:"totalMaterias"`
	PorTipo       map[string]int `json:"porTipo"`
	PorAno        map[string]int `json:"porAno"`
	Materias      []Materia      `json:"materias"`
}

func senatorProbes() []item.ShapeProbe {
	return append([]item.ShapeProbe{item.PathProbe("ListaParlamentarLegislatura", "Parlamentares", "Parlamentar")}, item.DefaultProbes()...)
}

func authorshipProbes() []item.ShapeProbe {
	return append([]item.ShapeProbe{item.PathProbe("MateriasAutoriaParlamentar", "Parlamentar", "Autorias", "Autoria")}, item.DefaultProbes()...)
}

// MateriasProcessor collects the bills authored by every senator of a legislature, one
// request per calendar-year window.
type MateriasProcessor struct {
	deps     Deps
	skip     skip.SkipPolicy
	senators *item.Consolidator
	autorias *item.Consolidator
}

// NewMateriasProcessor creates the bills processor of one run.
func NewMateriasProcessor(deps Deps) (*MateriasProcessor, error) {
	policy, err := skip.NewDefaultSkipPolicyFactory().Create(deps.Config.Congresso.Batch.ItemSkip)
	if err != nil {
		return nil, err
	}
	return &MateriasProcessor{
		deps:     deps,
		skip:     policy,
		senators: item.NewConsolidator(senatorProbes()...),
		autorias: item.NewConsolidator(authorshipProbes()...),
	}, nil
}

func (p *MateriasProcessor) Name() string { return NameMaterias }

func (p *MateriasProcessor) Validate(ctx context.Context, pc *processor.ProcessingContext) error {
	if err := p.deps.validate(); err != nil {
		return err
	}
	return validateNumericID("--senador", pc.Options().EntityID())
}

func (p *MateriasProcessor) Extract(ctx context.Context, pc *processor.ProcessingContext) ([]SenadorMaterias, error) {
	opts := pc.Options()
	senadores, err := p.senadores(ctx, pc)
	if err != nil {
		return nil, err
	}
	senadores = model.ApplyLimit(opts, senadores)
	pc.SetTotal(len(senadores))
	logger.Infof("[%s] %d senators to crawl in legislature %d", p.Name(), len(senadores), opts.Legislature())

	windows := extractionWindows(opts, p.deps.now(), p.deps.Config.Congresso.Batch.IncrementalWindowDays, true)
	senado := p.deps.Sources.Senado

	results := fanOut(ctx, pc, p.deps, senado.Client().Pacer(), p.skip, senadores,
		func(s Senador) string { return "senador " + s.Codigo },
		func(ctx context.Context, _ int, s Senador) (SenadorMaterias, error) {
			return p.extractSenador(ctx, s, windows)
		})

	for _, r := range results {
		pc.AddExtracted(r.Record.Len())
	}
	return results, nil
}

func (p *MateriasProcessor) senadores(ctx context.Context, pc *processor.ProcessingContext) ([]Senador, error) {
	opts := pc.Options()
	if id := opts.EntityID(); id != "" {
		return []Senador{{Codigo: id}}, nil
	}
	frag, err := p.deps.Sources.Senado.Fetch(ctx, SenadoSenadores,
		map[string]string{"legislatura": strconv.Itoa(opts.Legislature())}, nil)
	if err != nil {
		return nil, err
	}
	items, _, ok := p.senators.FragmentItems(frag)
	if !ok {
		return nil, exception.NewShapeError(moduleName, frag.Source, "senator list")
	}
	seen := make(map[string]bool, len(items))
	senadores := make([]Senador, 0, len(items))
	for _, it := range items {
		id := object(it, "IdentificacaoParlamentar")
		s := Senador{
			Codigo:  text(id, "CodigoParlamentar"),
			Nome:    text(id, "NomeParlamentar"),
			Partido: text(id, "SiglaPartidoParlamentar"),
			UF:      text(id, "UfParlamentar"),
		}
		// Alternates are listed once per mandate.
		if s.Codigo == "" || seen[s.Codigo] {
			continue
		}
		seen[s.Codigo] = true
		senadores = append(senadores, s)
	}
	return senadores, nil
}

// extractSenador requests one authorship fragment per window. Windows answered with not
// found become failed fragments and are skipped by the consolidator.
func (p *MateriasProcessor) extractSenador(ctx context.Context, s Senador, windows []model.DateRange) (SenadorMaterias, error) {
	senado := p.deps.Sources.Senado
	pathParams := map[string]string{"codigo": s.Codigo}
	frags := make([]model.ExtractionFragment, 0, len(windows))
	for i, w := range windows {
		if i > 0 {
			if err := senado.Client().Pacer().PagePause(ctx); err != nil {
				return SenadorMaterias{}, err
			}
		}
		query := dateParams(w, senadoDate)
		frag, err := senado.Fetch(ctx, SenadoAutorias, pathParams, query)
		if exception.IsNotFound(err) {
			frags = append(frags, model.ExtractionFragment{Source: SenadoAutorias.Name, Params: query, Err: err.Error()})
			continue
		}
		if err != nil {
			return SenadorMaterias{}, err
		}
		frags = append(frags, frag)
	}
	if s.Nome == "" {
		for _, f := range frags {
			if f.Failed() {
				continue
			}
			id := object(f.Payload, "MateriasAutoriaParlamentar", "Parlamentar", "IdentificacaoParlamentar")
			s.Nome = text(id, "NomeParlamentar")
			s.Partido = text(id, "SiglaPartidoParlamentar")
			s.UF = text(id, "UfParlamentar")
			break
		}
	}
	return SenadorMaterias{Senador: s, Record: p.autorias.Consolidate("senador/"+s.Codigo, frags)}, nil
}

func (p *MateriasProcessor) Transform(ctx context.Context, pc *processor.ProcessingContext, extracted []SenadorMaterias) ([]Document, error) {
	legislatura := pc.Options().Legislature()
	coll, err := collection(p.deps.Config, legislatura, NameMaterias)
	if err != nil {
		return nil, err
	}
	docs := make([]Document, 0, len(extracted))
	for _, e := range extracted {
		if e.Record == nil {
			logger.Warnf("[%s] senador %s authored nothing in the requested period", p.Name(), e.Senador.Codigo)
			pc.IncrementWarnings(1)
			continue
		}
		docs = append(docs, Document{Collection: coll, ID: e.Senador.Codigo, Data: buildMateriasDocument(e, legislatura)})
		pc.AddTransformed(1)
	}
	sort.SliceStable(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

func buildMateriasDocument(e SenadorMaterias, legislatura int) MateriasDocument {
	doc := MateriasDocument{
		Senador:     e.Senador,
		Legislatura: legislatura,
		PorTipo:     map[string]int{},
		PorAno:      map[string]int{},
		Materias:    make([]Materia, 0, len(e.Record.Items)),
	}
	seen := make(map[string]bool, len(e.Record.Items))
	for _, it := range e.Record.Items {
		m := toMateria(it)
		// The same bill shows up in adjacent windows when it was amended across years.
		if m.Codigo == "" || seen[m.Codigo] {
			continue
		}
		seen[m.Codigo] = true
		doc.Materias = append(doc.Materias, m)
		if m.Sigla != "" {
			doc.PorTipo[m.Sigla]++
		}
		doc.PorAno[firstNonEmpty(m.Ano, year(m.Data))]++
	}
	doc.TotalMaterias = len(doc.Materias)
	return doc
}

func toMateria(it any) Materia {
	m := object(it, "Materia")
	if m == nil {
		m = object(it, "IdentificacaoMateria")
	}
	if m == nil {
		m, _ = it.(map[string]any)
	}
	materia := Materia{
		Codigo:           firstText(m, []string{"Codigo"}, []string{"CodigoMateria"}),
		Sigla:            firstText(m, []string{"Sigla"}, []string{"SiglaSubtipoMateria"}),
		Numero:           firstText(m, []string{"Numero"}, []string{"NumeroMateria"}),
		Ano:              firstText(m, []string{"Ano"}, []string{"AnoMateria"}),
		Ementa:           firstText(m, []string{"Ementa"}, []string{"EmentaMateria"}),
		Data:             firstText(m, []string{"Data"}, []string{"DataApresentacao"}),
		AutorPrincipal:   text(it, "IndicadorAutorPrincipal") == "Sim",
		DescricaoAutoria: text(it, "DescricaoTipoAutor"),
	}
	if materia.Sigla != "" && materia.Numero != "" && materia.Ano != "" {
		materia.Identificacao = fmt.Sprintf("%s %s/%s", materia.Sigla, materia.Numero, materia.Ano)
	}
	return materia
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func (p *MateriasProcessor) Load(ctx context.Context, pc *processor.ProcessingContext, docs []Document) error {
	if len(docs) == 0 {
		logger.Warnf("[%s] nothing to load", p.Name())
		return nil
	}
	pc.EmitProgress(model.ProgressLoading, 80, fmt.Sprintf("%d documents", len(docs)))
	return loadDocuments(ctx, pc, p.deps, docs)
}

var _ processor.Processor[[]SenadorMaterias, []Document] = (*MateriasProcessor)(nil)
