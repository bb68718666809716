package legis

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/tigerroll/congresso/pkg/batch/component/item"
	"github.com/tigerroll/congresso/pkg/batch/component/step/reader"
	model "github.com/tigerroll/congresso/pkg/batch/core/domain/model"
	"github.com/tigerroll/congresso/pkg/batch/core/processor"
	"github.com/tigerroll/congresso/pkg/batch/engine/step/skip"
	"github.com/tigerroll/congresso/pkg/batch/support/util/exception"
	"github.com/tigerroll/congresso/pkg/batch/support/util/logger"
)

// NameDiscursos is the processor name of the speeches job.
const NameDiscursos = "discursos"

// Deputado identifies a deputy.
type Deputado struct {
	ID           string `json:"id"`
	Nome         string `json:"nome"`
	SiglaPartido string `json:"siglaPartido,omitempty"`
	SiglaUF      string `json:"siglaUf,omitempty"`
}

// DeputadoDiscursos is what Extract produces for one deputy.
type DeputadoDiscursos struct {
	Deputado Deputado
	// Fallback is true when the profile lookup failed with not found and the speeches were
	// fetched with a single unpaginated request.
	Fallback bool
	Record   *model.ConsolidatedRecord
}

// Discurso is one speech in the stored document.
type Discurso struct {
	DataHoraInicio string `json:"dataHoraInicio"`
	TipoDiscurso   string `json:"tipoDiscurso,omitempty"`
	FaseEvento     string `json:"faseEvento,omitempty"`
	Sumario        string `json:"sumario,omitempty"`
	Keywords       string `json:"keywords,omitempty"`
	URLTexto       string `json:"urlTexto,omitempty"`
}

func (d Discurso) key() string {
	return d.DataHoraInicio + "|" + d.FaseEvento + "|" + d.URLTexto + "|" + d.Sumario
}

// DiscursosDocument is stored at {root}/{legislature}/discursos/{deputy id}.
type DiscursosDocument struct {
	Deputado
	Legislatura    int            `json:"legislatura"`
	PerfilCompleto bool           `json:"perfilCompleto"`
	TotalDiscursos int            `json:"totalDiscursos"`
	PorTipo        map[string]int `json:"porTipo"`
	PorAno         map[string]int `json:"porAno"`
	Discursos      []Discurso     `json:"discursos"`
}

// DiscursosProcessor crawls the speeches of the deputies of a legislature.
type DiscursosProcessor struct {
	deps         Deps
	skip         skip.SkipPolicy
	consolidator *item.Consolidator
}

// NewDiscursosProcessor creates the speeches processor of one run.
func NewDiscursosProcessor(deps Deps) (*DiscursosProcessor, error) {
	policy, err := skip.NewDefaultSkipPolicyFactory().Create(deps.Config.Congresso.Batch.ItemSkip)
	if err != nil {
		return nil, err
	}
	return &DiscursosProcessor{deps: deps, skip: policy, consolidator: item.NewConsolidator()}, nil
}

func (p *DiscursosProcessor) Name() string { return NameDiscursos }

func (p *DiscursosProcessor) Validate(ctx context.Context, pc *processor.ProcessingContext) error {
	if err := p.deps.validate(); err != nil {
		return err
	}
	return validateNumericID("--deputado", pc.Options().EntityID())
}

func (p *DiscursosProcessor) Extract(ctx context.Context, pc *processor.ProcessingContext) ([]DeputadoDiscursos, error) {
	opts := pc.Options()
	deputados, err := p.deputados(ctx, pc)
	if err != nil {
		return nil, err
	}
	deputados = model.ApplyLimit(opts, deputados)
	pc.SetTotal(len(deputados))
	logger.Infof("[%s] %d deputies to crawl in legislature %d", p.Name(), len(deputados), opts.Legislature())

	batch := p.deps.Config.Congresso.Batch
	windows := extractionWindows(opts, p.deps.now(), batch.IncrementalWindowDays, false)
	maxPages := opts.MaxPages(batch.MaxPages, batch.IncrementalMaxPages)
	camara := p.deps.Sources.Camara

	results := fanOut(ctx, pc, p.deps, camara.Client().Pacer(), p.skip, deputados,
		func(d Deputado) string { return "deputado " + d.ID },
		func(ctx context.Context, _ int, d Deputado) (DeputadoDiscursos, error) {
			return p.extractDeputado(ctx, pc, d, windows, maxPages)
		})

	for _, r := range results {
		pc.AddExtracted(r.Record.Len())
	}
	return results, nil
}

// deputados lists the deputies of the legislature, or the single deputy of --deputado.
func (p *DiscursosProcessor) deputados(ctx context.Context, pc *processor.ProcessingContext) ([]Deputado, error) {
	opts := pc.Options()
	if id := opts.EntityID(); id != "" {
		return []Deputado{{ID: id}}, nil
	}
	frag, err := p.deps.Sources.Camara.FetchAll(ctx, CamaraDeputados, nil,
		map[string]string{"idLegislatura": strconv.Itoa(opts.Legislature())},
		reader.PageOptions{Context: "deputados", MaxPages: p.deps.Config.Congresso.Batch.MaxPages})
	if err != nil {
		return nil, err
	}
	items, _ := frag.Payload.([]any)
	seen := make(map[string]bool, len(items))
	deputados := make([]Deputado, 0, len(items))
	for _, it := range items {
		d := Deputado{
			ID:           text(it, "id"),
			Nome:         text(it, "nome"),
			SiglaPartido: text(it, "siglaPartido"),
			SiglaUF:      text(it, "siglaUf"),
		}
		// Deputies who changed party are listed once per affiliation.
		if d.ID == "" || seen[d.ID] {
			continue
		}
		seen[d.ID] = true
		deputados = append(deputados, d)
	}
	return deputados, nil
}

func (p *DiscursosProcessor) extractDeputado(ctx context.Context, pc *processor.ProcessingContext, d Deputado, windows []model.DateRange, maxPages int) (DeputadoDiscursos, error) {
	camara := p.deps.Sources.Camara
	pathParams := map[string]string{"id": d.ID}
	legislatura := strconv.Itoa(pc.Options().Legislature())
	key := "deputado/" + d.ID

	profile, err := camara.Fetch(ctx, CamaraDeputado, pathParams, nil)
	if exception.IsNotFound(err) {
		logger.Warnf("[%s] deputado %s: profile not found, fetching speeches with a single request", p.Name(), d.ID)
		pc.IncrementWarnings(1)
		frag, err := camara.Fetch(ctx, CamaraDiscursos, pathParams, map[string]string{"idLegislatura": legislatura})
		if err != nil {
			return DeputadoDiscursos{}, err
		}
		return DeputadoDiscursos{Deputado: d, Fallback: true, Record: p.consolidator.Consolidate(key, []model.ExtractionFragment{frag})}, nil
	}
	if err != nil {
		return DeputadoDiscursos{}, err
	}
	d = mergeProfile(d, profile.Payload)

	frags := make([]model.ExtractionFragment, 0, len(windows))
	for _, w := range windows {
		query := dateParams(w, camaraDate)
		query["idLegislatura"] = legislatura
		frag, err := camara.FetchAll(ctx, CamaraDiscursos, pathParams, query,
			reader.PageOptions{Context: "discursos " + d.ID, MaxPages: maxPages})
		if err != nil {
			return DeputadoDiscursos{}, err
		}
		frags = append(frags, frag)
	}
	return DeputadoDiscursos{Deputado: d, Record: p.consolidator.Consolidate(key, frags)}, nil
}

func mergeProfile(d Deputado, payload any) Deputado {
	dados := object(payload, "dados")
	if dados == nil {
		return d
	}
	if s := firstText(dados, []string{"ultimoStatus", "nome"}, []string{"nomeCivil"}); s != "" {
		d.Nome = s
	}
	if s := text(dados, "ultimoStatus", "siglaPartido"); s != "" {
		d.SiglaPartido = s
	}
	if s := text(dados, "ultimoStatus", "siglaUf"); s != "" {
		d.SiglaUF = s
	}
	return d
}

func (p *DiscursosProcessor) Transform(ctx context.Context, pc *processor.ProcessingContext, extracted []DeputadoDiscursos) ([]Document, error) {
	legislatura := pc.Options().Legislature()
	coll, err := collection(p.deps.Config, legislatura, NameDiscursos)
	if err != nil {
		return nil, err
	}
	docs := make([]Document, 0, len(extracted))
	for _, e := range extracted {
		if e.Record == nil {
			logger.Warnf("[%s] deputado %s has no speeches in the requested period", p.Name(), e.Deputado.ID)
			pc.IncrementWarnings(1)
			continue
		}
		docs = append(docs, Document{Collection: coll, ID: e.Deputado.ID, Data: buildDiscursosDocument(e, legislatura)})
		pc.AddTransformed(1)
	}
	sort.SliceStable(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

func buildDiscursosDocument(e DeputadoDiscursos, legislatura int) DiscursosDocument {
	doc := DiscursosDocument{
		Deputado:       e.Deputado,
		Legislatura:    legislatura,
		PerfilCompleto: !e.Fallback,
		PorTipo:        map[string]int{},
		PorAno:         map[string]int{},
		Discursos:      make([]Discurso, 0, len(e.Record.Items)),
	}
	seen := make(map[string]bool, len(e.Record.Items))
	for _, it := range e.Record.Items {
		d := Discurso{
			DataHoraInicio: text(it, "dataHoraInicio"),
			TipoDiscurso:   text(it, "tipoDiscurso"),
			FaseEvento:     text(it, "faseEvento", "titulo"),
			Sumario:        text(it, "sumario"),
			Keywords:       text(it, "keywords"),
			URLTexto:       text(it, "urlTexto"),
		}
		if seen[d.key()] {
			continue
		}
		seen[d.key()] = true
		doc.Discursos = append(doc.Discursos, d)
		if d.TipoDiscurso != "" {
			doc.PorTipo[d.TipoDiscurso]++
		}
		doc.PorAno[year(d.DataHoraInicio)]++
	}
	doc.TotalDiscursos = len(doc.Discursos)
	return doc
}

func (p *DiscursosProcessor) Load(ctx context.Context, pc *processor.ProcessingContext, docs []Document) error {
	if len(docs) == 0 {
		logger.Warnf("[%s] nothing to load", p.Name())
		return nil
	}
	pc.EmitProgress(model.ProgressLoading, 80, fmt.Sprintf("%d documents", len(docs)))
	return loadDocuments(ctx, pc, p.deps, docs)
}

var _ processor.Processor[[]DeputadoDiscursos, []Document] = (*DiscursosProcessor)(nil)
